package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// zyBooks
	ZybooksBaseURL     string
	ZybooksBookCode    string
	ZybooksAuthToken   string
	ZybooksAPIInterval time.Duration
	// ZybooksEgressGuard が有効な場合、プライベートアドレスへの送信を拒否する
	ZybooksEgressGuard bool

	// Canvas
	CanvasToken string

	// Fetch
	FetchTimeout time.Duration

	// Rate Limit
	RateLimitLogin int

	// Logging
	LogLevel slog.Level

	// Server
	ServerPort string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.ZybooksBookCode = os.Getenv("ZYBOOKS_BOOK_CODE")
	if cfg.ZybooksBookCode == "" {
		missing = append(missing, "ZYBOOKS_BOOK_CODE")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.ZybooksBaseURL = getEnvString("ZYBOOKS_BASE_URL", "https://zyserver.zybooks.com")
	cfg.ZybooksAuthToken = getEnvString("ZYBOOKS_AUTH_TOKEN", "")
	cfg.ZybooksAPIInterval = getEnvDuration("ZYBOOKS_API_INTERVAL", 1*time.Second)
	cfg.ZybooksEgressGuard = getEnvBool("ZYBOOKS_EGRESS_GUARD", true)
	cfg.CanvasToken = getEnvString("CANVAS_TOKEN", "")
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 10)
	cfg.LogLevel = getEnvLogLevel("LOG_LEVEL", slog.LevelInfo)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

// getEnvLogLevel はdebug/info/warn/errorを大文字小文字を区別せずに解釈する。
func getEnvLogLevel(key string, defaultVal slog.Level) slog.Level {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return defaultVal
	}
	return level
}
