package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/model"
)

// ErrorResponseBody は成績・認証APIが失敗時に返すJSON。
// categoryはauth, validation, grade, systemのいずれか。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse はAPIErrorをstatusCodeで書き出す。
// トークンなどの資格情報はAPIErrorに載せないこと。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteInternalServerError は想定外のエラーを500で返す。
// 原因はログ側に残し、レスポンスは常に同じ内容にする。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
