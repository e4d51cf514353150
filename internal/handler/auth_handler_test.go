package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/auth"
	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/model"
)

// --- モック定義 ---

// mockCoordinator はAuthCoordinatorのモック実装。
type mockCoordinator struct {
	initAuthFn func(ctx context.Context) <-chan struct{}
	loginFn    func(ctx context.Context, provider model.Provider, creds model.Credentials) (<-chan struct{}, error)
	viewFn     func() model.AuthView
}

func (m *mockCoordinator) InitAuth(ctx context.Context) <-chan struct{} {
	if m.initAuthFn != nil {
		return m.initAuthFn(ctx)
	}
	return closedChan()
}

func (m *mockCoordinator) LoginWithCredentials(ctx context.Context, provider model.Provider, creds model.Credentials) (<-chan struct{}, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, provider, creds)
	}
	return closedChan(), nil
}

func (m *mockCoordinator) View() model.AuthView {
	if m.viewFn != nil {
		return m.viewFn()
	}
	return model.AuthView{}
}

// --- テストヘルパー ---

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestAuthHandler(c AuthCoordinator) *AuthHandler {
	return NewAuthHandler(c, newTestLogger(), time.Second)
}

func decodeAuthView(t *testing.T, w *httptest.ResponseRecorder) authViewResponse {
	t.Helper()
	var resp authViewResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode auth view: %v", err)
	}
	return resp
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

var settledAt = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

// --- Status ---

func TestAuthHandler_Status_ReturnsViewWithoutTokens(t *testing.T) {
	c := &mockCoordinator{
		viewFn: func() model.AuthView {
			return model.NewAuthView(
				model.AuthState{Token: "zy-secret", UpdatedAt: settledAt},
				model.AuthState{LastError: "canvas authentication failed due to internal bug", UpdatedAt: settledAt},
			)
		},
	}
	h := newTestAuthHandler(c)

	w := httptest.NewRecorder()
	h.Status(w, httptest.NewRequest(http.MethodGet, "/api/auth/status", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if strings.Contains(w.Body.String(), "zy-secret") {
		t.Fatal("response must not contain the token")
	}

	resp := decodeAuthView(t, w)
	if resp.FullyAuthenticated {
		t.Error("fully_authenticated should be false")
	}
	if resp.Resolving {
		t.Error("resolving should be false")
	}
	if !resp.Zybooks.Authenticated || resp.Zybooks.Phase != "authenticated" {
		t.Errorf("zybooks = %+v, want authenticated", resp.Zybooks)
	}
	if resp.Canvas.Phase != "failed" || resp.Canvas.LastError == "" {
		t.Errorf("canvas = %+v, want failed with last_error", resp.Canvas)
	}
	if resp.Canvas.UpdatedAt == nil || !resp.Canvas.UpdatedAt.Equal(settledAt) {
		t.Errorf("canvas updated_at = %v, want %v", resp.Canvas.UpdatedAt, settledAt)
	}
}

func TestAuthHandler_Status_IdleOmitsUpdatedAt(t *testing.T) {
	h := newTestAuthHandler(&mockCoordinator{})

	w := httptest.NewRecorder()
	h.Status(w, httptest.NewRequest(http.MethodGet, "/api/auth/status", nil))

	body := w.Body.String()
	if strings.Contains(body, "updated_at") {
		t.Errorf("idle states should omit updated_at: %s", body)
	}
	if !strings.Contains(body, `"phase":"idle"`) {
		t.Errorf("expected idle phase in body: %s", body)
	}
}

// --- Init ---

func TestAuthHandler_Init_WaitsForCompletion(t *testing.T) {
	settled := false
	c := &mockCoordinator{
		initAuthFn: func(ctx context.Context) <-chan struct{} {
			done := make(chan struct{})
			go func() {
				time.Sleep(20 * time.Millisecond)
				settled = true
				close(done)
			}()
			return done
		},
		viewFn: func() model.AuthView {
			if !settled {
				return model.NewAuthView(model.AuthState{Pending: true}, model.AuthState{Pending: true})
			}
			return model.NewAuthView(
				model.AuthState{Token: "zy", UpdatedAt: settledAt},
				model.AuthState{Token: "cv", UpdatedAt: settledAt},
			)
		},
	}
	h := newTestAuthHandler(c)

	w := httptest.NewRecorder()
	h.Init(w, httptest.NewRequest(http.MethodPost, "/api/auth/init", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	resp := decodeAuthView(t, w)
	if !resp.FullyAuthenticated || resp.Resolving {
		t.Errorf("resp = %+v, want fully authenticated and not resolving", resp)
	}
}

func TestAuthHandler_Init_TimeoutReturnsAccepted(t *testing.T) {
	c := &mockCoordinator{
		initAuthFn: func(ctx context.Context) <-chan struct{} {
			return make(chan struct{}) // 確定しない
		},
		viewFn: func() model.AuthView {
			return model.NewAuthView(model.AuthState{Pending: true}, model.AuthState{})
		},
	}
	h := NewAuthHandler(c, newTestLogger(), 20*time.Millisecond)

	w := httptest.NewRecorder()
	h.Init(w, httptest.NewRequest(http.MethodPost, "/api/auth/init", nil))

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	if resp := decodeAuthView(t, w); !resp.Resolving {
		t.Error("resolving should be true while the flow is pending")
	}
}

// --- ZybooksLogin ---

func TestAuthHandler_ZybooksLogin_PassesCredentials(t *testing.T) {
	var gotProvider model.Provider
	var gotCreds model.Credentials
	c := &mockCoordinator{
		loginFn: func(ctx context.Context, provider model.Provider, creds model.Credentials) (<-chan struct{}, error) {
			gotProvider, gotCreds = provider, creds
			return closedChan(), nil
		},
	}
	h := newTestAuthHandler(c)

	body := bytes.NewBufferString(`{"email": "prof@uvu.edu", "password": "secret"}`)
	w := httptest.NewRecorder()
	h.ZybooksLogin(w, httptest.NewRequest(http.MethodPost, "/api/auth/zybooks/login", body))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotProvider != model.ProviderZybooks {
		t.Errorf("provider = %q, want zybooks", gotProvider)
	}
	if gotCreds.Email != "prof@uvu.edu" || gotCreds.Password != "secret" {
		t.Errorf("creds = %+v", gotCreds)
	}
}

func TestAuthHandler_ZybooksLogin_InvalidBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "email=prof"},
		{"missing password", `{"email": "prof@uvu.edu"}`},
		{"missing email", `{"password": "secret"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			c := &mockCoordinator{
				loginFn: func(ctx context.Context, provider model.Provider, creds model.Credentials) (<-chan struct{}, error) {
					called = true
					return closedChan(), nil
				},
			}
			h := newTestAuthHandler(c)

			w := httptest.NewRecorder()
			h.ZybooksLogin(w, httptest.NewRequest(http.MethodPost, "/api/auth/zybooks/login", strings.NewReader(tt.body)))

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			if errResp := parseAPIErrorResponse(t, w); errResp["code"] != model.ErrCodeInvalidRequest {
				t.Errorf("code = %q, want %q", errResp["code"], model.ErrCodeInvalidRequest)
			}
			if called {
				t.Error("coordinator should not be called for invalid requests")
			}
		})
	}
}

func TestAuthHandler_ZybooksLogin_FailureIsReportedInView(t *testing.T) {
	c := &mockCoordinator{
		viewFn: func() model.AuthView {
			return model.NewAuthView(
				model.AuthState{LastError: "Invalid email or password", UpdatedAt: settledAt},
				model.AuthState{},
			)
		},
	}
	h := newTestAuthHandler(c)

	body := strings.NewReader(`{"email": "prof@uvu.edu", "password": "wrong"}`)
	w := httptest.NewRecorder()
	h.ZybooksLogin(w, httptest.NewRequest(http.MethodPost, "/api/auth/zybooks/login", body))

	resp := decodeAuthView(t, w)
	if resp.Zybooks.Authenticated {
		t.Error("zybooks should not be authenticated")
	}
	if resp.Zybooks.LastError != "Invalid email or password" {
		t.Errorf("last_error = %q", resp.Zybooks.LastError)
	}
}

// --- CanvasToken ---

func TestAuthHandler_CanvasToken_PassesToken(t *testing.T) {
	var gotProvider model.Provider
	var gotCreds model.Credentials
	c := &mockCoordinator{
		loginFn: func(ctx context.Context, provider model.Provider, creds model.Credentials) (<-chan struct{}, error) {
			gotProvider, gotCreds = provider, creds
			return closedChan(), nil
		},
	}
	h := newTestAuthHandler(c)

	w := httptest.NewRecorder()
	h.CanvasToken(w, httptest.NewRequest(http.MethodPost, "/api/auth/canvas/token", strings.NewReader(`{"token": "canvas-abc"}`)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotProvider != model.ProviderCanvas || gotCreds.Token != "canvas-abc" {
		t.Errorf("provider = %q, creds = %+v", gotProvider, gotCreds)
	}
}

func TestAuthHandler_CanvasToken_EmptyToken(t *testing.T) {
	h := newTestAuthHandler(&mockCoordinator{})

	w := httptest.NewRecorder()
	h.CanvasToken(w, httptest.NewRequest(http.MethodPost, "/api/auth/canvas/token", strings.NewReader(`{"token": ""}`)))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestAuthHandler_CanvasToken_UnknownProviderError(t *testing.T) {
	c := &mockCoordinator{
		loginFn: func(ctx context.Context, provider model.Provider, creds model.Credentials) (<-chan struct{}, error) {
			return nil, fmt.Errorf("%w: %s", auth.ErrUnknownProvider, provider)
		},
	}
	h := newTestAuthHandler(c)

	w := httptest.NewRecorder()
	h.CanvasToken(w, httptest.NewRequest(http.MethodPost, "/api/auth/canvas/token", strings.NewReader(`{"token": "abc"}`)))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if errResp := parseAPIErrorResponse(t, w); errResp["code"] != model.ErrCodeUnknownProvider {
		t.Errorf("code = %q, want %q", errResp["code"], model.ErrCodeUnknownProvider)
	}
}

func TestAuthHandler_ClientDisconnectWritesNothing(t *testing.T) {
	c := &mockCoordinator{
		initAuthFn: func(ctx context.Context) <-chan struct{} {
			return make(chan struct{})
		},
	}
	h := NewAuthHandler(c, newTestLogger(), time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/init", nil).WithContext(ctx)

	w := httptest.NewRecorder()
	h.Init(w, req)

	if w.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", w.Body.String())
	}
}

func TestNewAuthHandler_DefaultWaitTimeout(t *testing.T) {
	h := NewAuthHandler(&mockCoordinator{}, newTestLogger(), 0)
	if h.waitTimeout != DefaultAuthWaitTimeout {
		t.Errorf("waitTimeout = %v, want %v", h.waitTimeout, DefaultAuthWaitTimeout)
	}
}
