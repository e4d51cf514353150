package zybooks

import (
	"context"
	"errors"
	"strings"

	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/auth"
	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/model"
)

// ErrNoTokenStored はzyBooksのトークンが保存されていないことを示すセンチネル。
var ErrNoTokenStored = errors.New("NO_ZYBOOKS_TOKEN_STORED")

// FailureMessage はセンチネル以外の認証失敗時にユーザーへ表示する固定メッセージ。
const FailureMessage = "zybooks authentication failed due to internal bug"

// TokenStore はセッション中のトークンを保持するインターフェース。
type TokenStore interface {
	Get(provider model.Provider) (string, bool)
	Save(provider model.Provider, token string)
}

// Signer はzyBooksへのサインインを行うインターフェース。
type Signer interface {
	SignIn(ctx context.Context, email, password string) (model.AuthResponse, error)
}

// AuthClient はzyBooksの認証クライアント。
// 保存済みトークンの確認と、メール/パスワードによる対話的ログインを提供する。
type AuthClient struct {
	signer Signer
	store  TokenStore
}

// NewAuthClient はAuthClientを生成する。
func NewAuthClient(signer Signer, store TokenStore) *AuthClient {
	return &AuthClient{signer: signer, store: store}
}

// CheckStoredCredential は保存済みトークンを返す。未保存の場合はErrNoTokenStoredを返す。
func (a *AuthClient) CheckStoredCredential(ctx context.Context) (model.AuthResponse, error) {
	token, ok := a.store.Get(model.ProviderZybooks)
	if !ok || token == "" {
		return model.AuthResponse{}, ErrNoTokenStored
	}
	return model.AuthResponse{Token: token}, nil
}

// Login はメールアドレスとパスワードでサインインする。
// トークンの保存はCoordinatorが成功を確定したときにProviderConfig.Persistで行う。
func (a *AuthClient) Login(ctx context.Context, creds model.Credentials) (model.AuthResponse, error) {
	if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		return model.AuthResponse{Error: "email and password are required"}, nil
	}

	resp, err := a.signer.SignIn(ctx, creds.Email, creds.Password)
	if err != nil {
		return model.AuthResponse{}, err
	}
	return resp, nil
}

// ProviderConfig はCoordinatorに登録するzyBooksの設定を返す。
func (a *AuthClient) ProviderConfig() auth.ProviderConfig {
	return auth.ProviderConfig{
		Client:         a,
		NoCredential:   ErrNoTokenStored,
		FailureMessage: FailureMessage,
		Persist: func(token string) {
			a.store.Save(model.ProviderZybooks, token)
		},
	}
}

// compile-time interface check
var _ auth.ProviderClient = (*AuthClient)(nil)
