// Package canvas はCanvas LMSの認証連携を提供する。
// Canvasのトークンは外部で発行されたものを受け取って保存する。
package canvas

import (
	"context"
	"errors"
	"strings"

	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/auth"
	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/model"
)

// ErrNoTokenStored はCanvasのトークンが保存されていないことを示すセンチネル。
var ErrNoTokenStored = errors.New("NO_CANVAS_TOKEN_STORED")

// FailureMessage はセンチネル以外の認証失敗時にユーザーへ表示する固定メッセージ。
const FailureMessage = "canvas authentication failed due to internal bug"

// TokenStore はセッション中のトークンを保持するインターフェース。
type TokenStore interface {
	Get(provider model.Provider) (string, bool)
	Save(provider model.Provider, token string)
}

// AuthClient はCanvasの認証クライアント。
type AuthClient struct {
	store TokenStore
}

// NewAuthClient はAuthClientを生成する。
func NewAuthClient(store TokenStore) *AuthClient {
	return &AuthClient{store: store}
}

// CheckStoredCredential は保存済みトークンを返す。未保存の場合はErrNoTokenStoredを返す。
func (a *AuthClient) CheckStoredCredential(ctx context.Context) (model.AuthResponse, error) {
	token, ok := a.store.Get(model.ProviderCanvas)
	if !ok || token == "" {
		return model.AuthResponse{}, ErrNoTokenStored
	}
	return model.AuthResponse{Token: token}, nil
}

// Login は外部で取得したcreds.Tokenを整形して返す。
// 保存はCoordinatorが成功を確定したときにProviderConfig.Persistで行う。
func (a *AuthClient) Login(ctx context.Context, creds model.Credentials) (model.AuthResponse, error) {
	if err := ctx.Err(); err != nil {
		return model.AuthResponse{}, err
	}

	token := strings.TrimSpace(creds.Token)
	if token == "" {
		return model.AuthResponse{Error: "canvas token is required"}, nil
	}
	return model.AuthResponse{Token: token}, nil
}

// ProviderConfig はCoordinatorに登録するCanvasの設定を返す。
func (a *AuthClient) ProviderConfig() auth.ProviderConfig {
	return auth.ProviderConfig{
		Client:         a,
		NoCredential:   ErrNoTokenStored,
		FailureMessage: FailureMessage,
		Persist: func(token string) {
			a.store.Save(model.ProviderCanvas, token)
		},
	}
}

// compile-time interface check
var _ auth.ProviderClient = (*AuthClient)(nil)
