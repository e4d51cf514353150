package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/auth"
	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/grade"
	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/middleware"
	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/model"
)

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeJSON(w, statusCode, apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if errors.Is(err, grade.ErrNotAuthenticated) {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError(model.ProviderZybooks))
		return
	}
	if errors.Is(err, auth.ErrUnknownProvider) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewUnknownProviderError(err.Error()))
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	logger.Error("internal server error",
		slog.String("error", err.Error()),
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
	)
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeNotAuthenticated:
		return http.StatusUnauthorized
	case model.ErrCodeInvalidRequest, model.ErrCodeInvalidStudent, model.ErrCodeUnknownProvider:
		return http.StatusBadRequest
	case model.ErrCodeFetchFailed, model.ErrCodeRemoteError, model.ErrCodeMalformedPayload:
		return http.StatusBadGateway
	case model.ErrCodeGradesNotFound:
		return http.StatusNotFound
	case model.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
