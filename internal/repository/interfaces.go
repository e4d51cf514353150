// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/model"
)

// GradeRepository は成績レコードの永続化インターフェース。
type GradeRepository interface {
	// Save は学生の成績レコードを保存する。同じ学生のレコードが存在する場合は上書きする。
	Save(ctx context.Context, record *model.GradeRecord) error

	// FindByStudentID は学生の成績レコードを取得する。見つからない場合はnilを返す。
	FindByStudentID(ctx context.Context, studentID string) (*model.GradeRecord, error)
}
