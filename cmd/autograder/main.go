package main

import (
	"fmt"
	"os"

	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "autograder: %v\n", err)
		os.Exit(1)
	}
}
