// Package auth は2つの外部プロバイダーの認証状態を同期管理する。
package auth

import (
	"context"
	"errors"

	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/model"
)

// ProviderClient は外部プロバイダーの認証クライアントのインターフェース。
// 返却した操作は必ず成功か失敗のどちらかで完了しなければならない。
// タイムアウトはクライアント側の責務。
type ProviderClient interface {
	// CheckStoredCredential は保存済みの資格情報を確認する。
	// 資格情報が保存されていない場合はProviderConfig.NoCredentialに一致するエラーを返す。
	CheckStoredCredential(ctx context.Context) (model.AuthResponse, error)
	// Login は明示的な資格情報で認証する。
	Login(ctx context.Context, creds model.Credentials) (model.AuthResponse, error)
}

// ProviderConfig はプロバイダーごとの静的設定。
// センチネルと汎用エラーメッセージは各プロバイダーモジュールが所有する。
type ProviderConfig struct {
	Client ProviderClient
	// NoCredential は「資格情報が保存されていない」ことを示すセンチネル。
	NoCredential error
	// FailureMessage はそれ以外の失敗時にユーザーへ表示する固定メッセージ。
	FailureMessage string
	// Persist は最新の操作が成功として確定したときだけ呼ばれ、トークンを保存する。
	// 破棄された確定では呼ばれない。nilの場合は保存しない。
	Persist func(token string)
}

// isNoCredential はエラーがセンチネルを示すかを判定する。
// ラップされたセンチネルに加え、メッセージが一致するエラーも同一視する。
func (pc ProviderConfig) isNoCredential(err error) bool {
	if err == nil || pc.NoCredential == nil {
		return false
	}
	if errors.Is(err, pc.NoCredential) {
		return true
	}
	return err.Error() == pc.NoCredential.Error()
}

// TransitionRecorder は状態遷移のメトリクスを記録するインターフェース。
type TransitionRecorder interface {
	RecordAuthTransition(provider string, outcome string)
	RecordAuthSuperseded(provider string)
}

// nopRecorder はメトリクスを記録しないTransitionRecorder。
type nopRecorder struct{}

func (nopRecorder) RecordAuthTransition(string, string) {}
func (nopRecorder) RecordAuthSuperseded(string)         {}
