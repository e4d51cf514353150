package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/model"
)

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) ErrorResponseBody {
	t.Helper()
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

func TestWriteErrorResponse_GradeAndAuthErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		apiErr   *model.APIError
		category string
	}{
		{"zybooks not authenticated", http.StatusUnauthorized, model.NewNotAuthenticatedError(model.ProviderZybooks), "auth"},
		{"invalid student", http.StatusBadRequest, model.NewInvalidStudentError("zybooks id is required"), "validation"},
		{"grades not found", http.StatusNotFound, model.NewGradesNotFoundError("s-42"), "grade"},
		{"malformed completion", http.StatusBadGateway, model.NewMalformedPayloadError(), "grade"},
		{"rate limited", http.StatusTooManyRequests, model.NewRateLimitExceededError(), "system"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			WriteErrorResponse(w, tt.status, tt.apiErr)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}

			body := decodeErrorBody(t, w)
			want := ErrorResponseBody{
				Code:     tt.apiErr.Code,
				Message:  tt.apiErr.Message,
				Category: tt.apiErr.Category,
				Action:   tt.apiErr.Action,
			}
			if body != want {
				t.Errorf("body = %+v, want %+v", body, want)
			}
			if body.Category != tt.category {
				t.Errorf("category = %q, want %q", body.Category, tt.category)
			}
		})
	}
}

func TestWriteInternalServerError_FixedSystemBody(t *testing.T) {
	w := httptest.NewRecorder()

	WriteInternalServerError(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	body := decodeErrorBody(t, w)
	if body.Code != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInternal)
	}
	if body.Category != "system" {
		t.Errorf("category = %q, want system", body.Category)
	}
	if body.Message == "" || body.Action == "" {
		t.Errorf("message and action must be set, got %+v", body)
	}
}

func TestWriteErrorResponse_UsesSnakeCaseKeys(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusBadGateway, model.NewRemoteError("Invalid auth token"))

	var raw map[string]any
	if err := json.NewDecoder(w.Result().Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	for _, key := range []string{"code", "message", "category", "action"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing key %q in %v", key, raw)
		}
	}
	if msg, _ := raw["message"].(string); !strings.Contains(msg, "Invalid auth token") {
		t.Errorf("message = %q, want remote message included", msg)
	}
}
