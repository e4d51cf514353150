package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/model"
)

// GradeServiceInterface は成績ハンドラーが必要とするサービスインターフェース。
type GradeServiceInterface interface {
	SyncStudent(ctx context.Context, student model.Student) (*model.GradeRecord, error)
	GetStudentGrades(ctx context.Context, studentID string) (*model.GradeRecord, error)
}

// GradeHandler は成績同期のHTTPハンドラー。
type GradeHandler struct {
	service GradeServiceInterface
	logger  *slog.Logger
}

// NewGradeHandler はGradeHandlerを生成する。
func NewGradeHandler(service GradeServiceInterface, logger *slog.Logger) *GradeHandler {
	return &GradeHandler{service: service, logger: logger}
}

// syncGradesRequest は成績同期リクエストのボディ。
type syncGradesRequest struct {
	ZybooksID string `json:"zybooks_id"`
}

// gradeResponse は成績レコードのAPIレスポンス。
type gradeResponse struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	Grades    []float64 `json:"grades"`
	SyncedAt  time.Time `json:"synced_at"`
}

// SyncGrades はzyBooksから学生の完了データを取得し、チャプター別スコアを保存する。
// POST /api/students/{id}/grades/sync
func (h *GradeHandler) SyncGrades(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "id")

	var req syncGradesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("JSONの解析に失敗しました"))
		return
	}

	record, err := h.service.SyncStudent(r.Context(), model.Student{
		ID:        studentID,
		ZybooksID: req.ZybooksID,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toGradeResponse(record))
}

// GetGrades は保存済みの成績を返す。
// GET /api/students/{id}/grades
func (h *GradeHandler) GetGrades(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "id")

	record, err := h.service.GetStudentGrades(r.Context(), studentID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	if record == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewGradesNotFoundError(studentID))
		return
	}

	writeJSON(w, http.StatusOK, toGradeResponse(record))
}

func toGradeResponse(record *model.GradeRecord) gradeResponse {
	grades := record.Grades
	if grades == nil {
		grades = []float64{}
	}
	return gradeResponse{
		ID:        record.ID,
		StudentID: record.StudentID,
		Grades:    grades,
		SyncedAt:  record.SyncedAt,
	}
}
