package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/model"
)

// PostgresGradeRepo はPostgreSQLを使用した成績リポジトリ。
// チャプター別スコアはDOUBLE PRECISION[]として1行に保存する。
type PostgresGradeRepo struct {
	db *sql.DB
}

// NewPostgresGradeRepo はPostgresGradeRepoを生成する。
func NewPostgresGradeRepo(db *sql.DB) *PostgresGradeRepo {
	return &PostgresGradeRepo{db: db}
}

// Save は学生の成績レコードをUPSERTする。
// 既存レコードがある場合はIDを維持したままスコアと同期日時を更新する。
func (r *PostgresGradeRepo) Save(ctx context.Context, record *model.GradeRecord) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO grade_records (id, student_id, grades, synced_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (student_id) DO UPDATE
		 SET grades = EXCLUDED.grades, synced_at = EXCLUDED.synced_at
		 RETURNING id`,
		record.ID, record.StudentID, pq.Array(gradesOrEmpty(record.Grades)), record.SyncedAt,
	).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("failed to save grade record: %w", err)
	}
	return nil
}

// FindByStudentID は学生の成績レコードを取得する。見つからない場合はnilを返す。
func (r *PostgresGradeRepo) FindByStudentID(ctx context.Context, studentID string) (*model.GradeRecord, error) {
	record := &model.GradeRecord{}
	var grades pq.Float64Array
	err := r.db.QueryRowContext(ctx,
		`SELECT id, student_id, grades, synced_at
		 FROM grade_records
		 WHERE student_id = $1`,
		studentID,
	).Scan(&record.ID, &record.StudentID, &grades, &record.SyncedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find grade record: %w", err)
	}

	record.Grades = gradesOrEmpty(grades)
	return record, nil
}

// gradesOrEmpty はnilスライスを空スライスに正規化する。
// NULLではなく空配列として保存・返却するため。
func gradesOrEmpty(grades []float64) []float64 {
	if grades == nil {
		return []float64{}
	}
	return grades
}
