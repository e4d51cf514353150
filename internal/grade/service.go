package grade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/model"
	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/repository"
)

// ErrNotAuthenticated はzyBooksのトークンがない状態で同期しようとした場合のエラー。
var ErrNotAuthenticated = errors.New("zybooks is not authenticated")

// CompletionFetcher はzyBooksから完了データを取得するインターフェース。
// レスポンスに埋め込まれたエラーは呼び出し元に返す前にエラーへ変換されていること。
type CompletionFetcher interface {
	FetchRawCompletion(ctx context.Context, token, zybooksID string) (model.RawCompletion, error)
}

// TokenSource は現在のプロバイダートークンを提供するインターフェース。
type TokenSource interface {
	Token(provider model.Provider) string
}

// SyncRecorder は成績同期のメトリクスを記録するインターフェース。
type SyncRecorder interface {
	RecordGradeSync(result string)
	RecordChaptersAggregated(count int)
}

// Service は学生1人分の成績同期を行う。
// トークン取得 → 完了データ取得 → 集計 → 保存の順に処理し、
// 失敗は呼び出し元へそのまま返す。
type Service struct {
	fetcher  CompletionFetcher
	tokens   TokenSource
	repo     repository.GradeRepository
	recorder SyncRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	fetcher CompletionFetcher,
	tokens TokenSource,
	repo repository.GradeRepository,
	recorder SyncRecorder,
	logger *slog.Logger,
) *Service {
	return &Service{
		fetcher:  fetcher,
		tokens:   tokens,
		repo:     repo,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// SyncStudent は学生の完了データを取得し、チャプター別スコアを算出して保存する。
func (s *Service) SyncStudent(ctx context.Context, student model.Student) (*model.GradeRecord, error) {
	if strings.TrimSpace(student.ID) == "" {
		return nil, model.NewInvalidStudentError("student id is required")
	}
	if strings.TrimSpace(student.ZybooksID) == "" {
		return nil, model.NewInvalidStudentError("zybooks id is required")
	}

	token := s.tokens.Token(model.ProviderZybooks)
	if token == "" {
		s.recordSync("unauthenticated")
		return nil, fmt.Errorf("sync student %s: %w", student.ID, ErrNotAuthenticated)
	}

	raw, err := s.fetcher.FetchRawCompletion(ctx, token, student.ZybooksID)
	if err != nil {
		s.recordSync("fetch_failed")
		s.logger.Error("failed to fetch zybooks completion",
			slog.String("student_id", student.ID),
			slog.String("zybooks_id", student.ZybooksID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("fetch completion for student %s: %w", student.ID, err)
	}

	record := Aggregate(student.ID, raw)
	record.ID = uuid.New().String()
	record.SyncedAt = s.now()

	if err := s.repo.Save(ctx, &record); err != nil {
		s.recordSync("save_failed")
		return nil, fmt.Errorf("save grades for student %s: %w", student.ID, err)
	}

	s.recordSync("success")
	if s.recorder != nil {
		s.recorder.RecordChaptersAggregated(len(record.Grades))
	}

	s.logger.Info("student grades synced",
		slog.String("student_id", student.ID),
		slog.Int("chapters", len(record.Grades)),
	)

	return &record, nil
}

// GetStudentGrades は保存済みの成績を取得する。見つからない場合はnilを返す。
func (s *Service) GetStudentGrades(ctx context.Context, studentID string) (*model.GradeRecord, error) {
	if strings.TrimSpace(studentID) == "" {
		return nil, model.NewInvalidStudentError("student id is required")
	}

	record, err := s.repo.FindByStudentID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("find grades for student %s: %w", studentID, err)
	}
	return record, nil
}

func (s *Service) recordSync(result string) {
	if s.recorder != nil {
		s.recorder.RecordGradeSync(result)
	}
}
