// Package model はドメインモデルを定義する。
package model

import "time"

// Provider は認証対象の外部プロバイダーを表す。
type Provider string

const (
	// ProviderZybooks はメール/パスワードで対話的にログインするプロバイダー。
	// 課題の完了データの取得元でもある。
	ProviderZybooks Provider = "zybooks"
	// ProviderCanvas は外部で発行されたトークンを保存して認証するプロバイダー。
	ProviderCanvas Provider = "canvas"
)

// Providers は管理対象のプロバイダー一覧を固定順で返す。
func Providers() []Provider {
	return []Provider{ProviderZybooks, ProviderCanvas}
}

// Valid は既知のプロバイダーかどうかを返す。
func (p Provider) Valid() bool {
	return p == ProviderZybooks || p == ProviderCanvas
}

// AuthPhase はプロバイダーごとの認証状態機械のフェーズ。
type AuthPhase string

const (
	AuthPhaseIdle            AuthPhase = "idle"
	AuthPhasePending         AuthPhase = "pending"
	AuthPhaseAuthenticated   AuthPhase = "authenticated"
	AuthPhaseUnauthenticated AuthPhase = "unauthenticated"
	AuthPhaseFailed          AuthPhase = "failed"
)

// AuthState は1プロバイダー分の認証状態。
// Tokenが空なら未認証、LastErrorが空ならエラーなし。
// UpdatedAtがゼロ値の間は一度も確定していない（Idle）。
type AuthState struct {
	Token     string
	Pending   bool
	LastError string
	UpdatedAt time.Time
}

// Authenticated はトークンを保持しているかを返す。
func (s AuthState) Authenticated() bool {
	return s.Token != ""
}

// Phase はフィールドから状態機械のフェーズを導出する。
func (s AuthState) Phase() AuthPhase {
	switch {
	case s.Pending:
		return AuthPhasePending
	case s.Token != "":
		return AuthPhaseAuthenticated
	case s.LastError != "":
		return AuthPhaseFailed
	case s.UpdatedAt.IsZero():
		return AuthPhaseIdle
	default:
		return AuthPhaseUnauthenticated
	}
}

// AuthView は2つのAuthStateから導出される合成ビュー。
// 独立した状態としては保持しない。
type AuthView struct {
	FullyAuthenticated bool
	Resolving          bool
	Zybooks            AuthState
	Canvas             AuthState
}

// NewAuthView は2つのAuthStateから合成ビューを計算する。
func NewAuthView(zybooks, canvas AuthState) AuthView {
	return AuthView{
		FullyAuthenticated: zybooks.Token != "" && canvas.Token != "",
		Resolving:          zybooks.Pending || canvas.Pending,
		Zybooks:            zybooks,
		Canvas:             canvas,
	}
}

// AuthResponse はプロバイダー認証操作の正規化済みレスポンス。
// Errorが空でなければ論理的な失敗を表す。
type AuthResponse struct {
	Token string
	Error string
}

// Credentials は明示的ログインに使う資格情報。
// zyBooksはEmail/Password、CanvasはTokenを使用する。
type Credentials struct {
	Email    string
	Password string
	Token    string
}
