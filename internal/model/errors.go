// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, grade, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeNotAuthenticated  = "NOT_AUTHENTICATED"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeInvalidStudent    = "INVALID_STUDENT"
	ErrCodeUnknownProvider   = "UNKNOWN_PROVIDER"
	ErrCodeFetchFailed       = "FETCH_FAILED"
	ErrCodeRemoteError       = "REMOTE_ERROR"
	ErrCodeMalformedPayload  = "MALFORMED_PAYLOAD"
	ErrCodeGradesNotFound    = "GRADES_NOT_FOUND"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// NewNotAuthenticatedError はプロバイダー未認証エラーを生成する。
func NewNotAuthenticatedError(provider Provider) *APIError {
	return &APIError{
		Code:     ErrCodeNotAuthenticated,
		Message:  fmt.Sprintf("%s に認証されていません。", provider),
		Category: "auth",
		Action:   "ログインし直してから再度お試しください。",
	}
}

// NewInvalidRequestError はリクエストボディ不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewInvalidStudentError は学生IDが不正な場合のエラーを生成する。
func NewInvalidStudentError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStudent,
		Message:  fmt.Sprintf("学生の指定が不正です: %s", reason),
		Category: "validation",
		Action:   "学生IDとzyBooksのユーザーIDを確認してください。",
	}
}

// NewUnknownProviderError は未知のプロバイダーが指定された場合のエラーを生成する。
func NewUnknownProviderError(provider string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownProvider,
		Message:  fmt.Sprintf("未知のプロバイダーです: %s", provider),
		Category: "validation",
		Action:   "プロバイダーには zybooks または canvas を指定してください。",
	}
}

// NewFetchFailedError は完了データの取得失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("zyBooksからの取得に失敗しました: %s", reason),
		Category: "grade",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewRemoteError はレスポンスに埋め込まれた論理エラーを表すエラーを生成する。
func NewRemoteError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeRemoteError,
		Message:  fmt.Sprintf("zyBooksがエラーを返しました: %s", message),
		Category: "grade",
		Action:   "zyBooksのユーザーIDとトークンの有効期限を確認してください。",
	}
}

// NewMalformedPayloadError は完了データの構造が不正な場合のエラーを生成する。
func NewMalformedPayloadError() *APIError {
	return &APIError{
		Code:     ErrCodeMalformedPayload,
		Message:  "zyBooksの完了データの構造が不正です。",
		Category: "grade",
		Action:   "zyBooksのAPI仕様が変更されていないか確認してください。",
	}
}

// NewGradesNotFoundError は保存済みの成績が見つからない場合のエラーを生成する。
func NewGradesNotFoundError(studentID string) *APIError {
	return &APIError{
		Code:     ErrCodeGradesNotFound,
		Message:  fmt.Sprintf("成績が見つかりません: %s", studentID),
		Category: "grade",
		Action:   "先に成績の同期を実行してください。",
	}
}

// NewRateLimitExceededError はレート制限超過エラーを生成する。
func NewRateLimitExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "リクエスト数が上限を超えました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInternalError は成績同期や認証の処理中に起きた想定外のエラーを表す。
// 詳細はログにのみ残し、レスポンスには含めない。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "サーバー内部で成績の処理に失敗しました。",
		Category: "system",
		Action:   "時間をおいて同期をやり直してください。解決しない場合は管理者に連絡してください。",
	}
}
