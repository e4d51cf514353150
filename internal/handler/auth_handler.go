// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/model"
)

// DefaultAuthWaitTimeout は認証フローの完了を待つ既定の上限時間。
const DefaultAuthWaitTimeout = 15 * time.Second

// AuthCoordinator は認証ハンドラーが必要とするコーディネーターのインターフェース。
type AuthCoordinator interface {
	InitAuth(ctx context.Context) <-chan struct{}
	LoginWithCredentials(ctx context.Context, provider model.Provider, creds model.Credentials) (<-chan struct{}, error)
	View() model.AuthView
}

// AuthHandler はプロバイダー認証のHTTPハンドラー。
// 各操作はフローの完了を待ってから合成ビューを返す。
// 待機が上限を超えた場合は202で解決中のビューを返す。
type AuthHandler struct {
	coordinator AuthCoordinator
	logger      *slog.Logger
	waitTimeout time.Duration
}

// NewAuthHandler はAuthHandlerを生成する。waitTimeoutが0以下の場合は既定値を使う。
func NewAuthHandler(coordinator AuthCoordinator, logger *slog.Logger, waitTimeout time.Duration) *AuthHandler {
	if waitTimeout <= 0 {
		waitTimeout = DefaultAuthWaitTimeout
	}
	return &AuthHandler{
		coordinator: coordinator,
		logger:      logger,
		waitTimeout: waitTimeout,
	}
}

// zybooksLoginRequest はzyBooksログインリクエストのボディ。
type zybooksLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// canvasTokenRequest はCanvasトークン保存リクエストのボディ。
type canvasTokenRequest struct {
	Token string `json:"token"`
}

// providerStateResponse は1プロバイダー分の認証状態のAPIレスポンス。
// トークン自体はレスポンスに含めない。
type providerStateResponse struct {
	Phase         string     `json:"phase"`
	Authenticated bool       `json:"authenticated"`
	Pending       bool       `json:"pending"`
	LastError     string     `json:"last_error,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// authViewResponse は合成ビューのAPIレスポンス。
type authViewResponse struct {
	FullyAuthenticated bool                  `json:"fully_authenticated"`
	Resolving          bool                  `json:"resolving"`
	Zybooks            providerStateResponse `json:"zybooks"`
	Canvas             providerStateResponse `json:"canvas"`
}

// Status は現在の認証状態を返す。
// GET /api/auth/status
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toAuthViewResponse(h.coordinator.View()))
}

// Init は両プロバイダーの保存済み資格情報を再確認する。
// POST /api/auth/init
func (h *AuthHandler) Init(w http.ResponseWriter, r *http.Request) {
	done := h.coordinator.InitAuth(r.Context())
	h.respondAfter(w, r, done)
}

// ZybooksLogin はメールアドレスとパスワードでzyBooksにログインする。
// POST /api/auth/zybooks/login
func (h *AuthHandler) ZybooksLogin(w http.ResponseWriter, r *http.Request) {
	var req zybooksLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("JSONの解析に失敗しました"))
		return
	}
	if req.Email == "" || req.Password == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("emailとpasswordは必須です"))
		return
	}

	done, err := h.coordinator.LoginWithCredentials(r.Context(), model.ProviderZybooks, model.Credentials{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	h.respondAfter(w, r, done)
}

// CanvasToken は外部で発行されたCanvasトークンを保存する。
// POST /api/auth/canvas/token
func (h *AuthHandler) CanvasToken(w http.ResponseWriter, r *http.Request) {
	var req canvasTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("JSONの解析に失敗しました"))
		return
	}
	if req.Token == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("tokenは必須です"))
		return
	}

	done, err := h.coordinator.LoginWithCredentials(r.Context(), model.ProviderCanvas, model.Credentials{
		Token: req.Token,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	h.respondAfter(w, r, done)
}

// respondAfter はフローの完了を待ってから合成ビューを書き込む。
// クライアント切断時はフローを中断せず、レスポンスだけを諦める。
func (h *AuthHandler) respondAfter(w http.ResponseWriter, r *http.Request, done <-chan struct{}) {
	timer := time.NewTimer(h.waitTimeout)
	defer timer.Stop()

	select {
	case <-done:
		writeJSON(w, http.StatusOK, toAuthViewResponse(h.coordinator.View()))
	case <-timer.C:
		h.logger.Warn("auth flow still resolving after wait timeout",
			slog.String("path", r.URL.Path),
			slog.Duration("timeout", h.waitTimeout),
		)
		writeJSON(w, http.StatusAccepted, toAuthViewResponse(h.coordinator.View()))
	case <-r.Context().Done():
	}
}

// --- ヘルパー関数 ---

func toAuthViewResponse(view model.AuthView) authViewResponse {
	return authViewResponse{
		FullyAuthenticated: view.FullyAuthenticated,
		Resolving:          view.Resolving,
		Zybooks:            toProviderStateResponse(view.Zybooks),
		Canvas:             toProviderStateResponse(view.Canvas),
	}
}

func toProviderStateResponse(state model.AuthState) providerStateResponse {
	resp := providerStateResponse{
		Phase:         string(state.Phase()),
		Authenticated: state.Authenticated(),
		Pending:       state.Pending,
		LastError:     state.LastError,
	}
	if !state.UpdatedAt.IsZero() {
		updatedAt := state.UpdatedAt
		resp.UpdatedAt = &updatedAt
	}
	return resp
}
