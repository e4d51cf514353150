// Package zybooks はzyBooks連携機能を提供する。
// 学生ごとの完了データの取得とサインインを含む。
package zybooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/model"
)

const (
	// DefaultBaseURL はzyBooks APIのベースURL。
	DefaultBaseURL = "https://zyserver.zybooks.com"
	// maxResponseSize はレスポンスボディの最大サイズ（8MB）。
	maxResponseSize = 8 << 20
	userAgent       = "zybooks-auto-grader/1.0"
)

// FetchRecorder はzyBooks API呼び出しのメトリクスを記録するインターフェース。
type FetchRecorder interface {
	RecordZybooksStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
}

// MessageSanitizer はzyBooksが返したエラーメッセージを表示用に整える。
type MessageSanitizer interface {
	SanitizeMessage(msg string) string
}

// ClientConfig はClientの設定。
type ClientConfig struct {
	BaseURL  string
	BookCode string
	// APIInterval はAPI呼び出しの最低間隔。0以下の場合は制限しない。
	APIInterval time.Duration
	// Sanitizer がnilの場合、メッセージはそのまま使う。
	Sanitizer MessageSanitizer
}

// Client はzyBooks APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	recorder   FetchRecorder
	sanitizer  MessageSanitizer
	limiter    *rate.Limiter
	baseURL    string
	bookCode   string
}

// NewClient はClientの新しいインスタンスを生成する。
// recorderがnilの場合はメトリクスを記録しない。
func NewClient(httpClient *http.Client, logger *slog.Logger, cfg ClientConfig, recorder FetchRecorder) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	limit := rate.Inf
	if cfg.APIInterval > 0 {
		limit = rate.Every(cfg.APIInterval)
	}

	return &Client{
		httpClient: httpClient,
		logger:     logger,
		recorder:   recorder,
		sanitizer:  cfg.Sanitizer,
		limiter:    rate.NewLimiter(limit, 1),
		baseURL:    baseURL,
		bookCode:   cfg.BookCode,
	}
}

// envelope はzyBooks APIの共通レスポンス形式。
// errorは論理的な失敗を示し、HTTPステータスが200でも含まれることがある。
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
	Success *bool           `json:"success"`
	Session *struct {
		AuthToken string `json:"auth_token"`
	} `json:"session"`
}

// FetchRawCompletion は学生の完了データを取得する。
// レスポンスにerrorが含まれる場合は集計に渡さずエラーとして返す。
// dataが無い場合とデータの入れ子構造が想定と異なる場合もエラーとする。
func (c *Client) FetchRawCompletion(ctx context.Context, token, zybooksID string) (model.RawCompletion, error) {
	if token == "" {
		return nil, fmt.Errorf("zybooks auth token is required")
	}
	if zybooksID == "" {
		return nil, fmt.Errorf("zybooks user id is required")
	}

	reqURL, err := url.Parse(fmt.Sprintf("%s/v1/zybook/%s/activities/%s",
		c.baseURL, url.PathEscape(c.bookCode), url.PathEscape(zybooksID)))
	if err != nil {
		return nil, fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}
	q := reqURL.Query()
	q.Set("auth_token", token)
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	env, status, err := c.do(req)
	if err != nil {
		return nil, err
	}

	if msg, ok := c.remoteError(env.Error); ok {
		c.logger.Warn("zyBooksが完了データの取得でエラーを返しました",
			slog.String("zybooks_id", zybooksID),
			slog.Int("http_status", status),
			slog.String("error", msg),
		)
		return nil, model.NewRemoteError(msg)
	}

	if status != http.StatusOK {
		c.logger.Error("zyBooks APIがエラーステータスを返しました",
			slog.Int("http_status", status),
			slog.String("zybooks_id", zybooksID),
		)
		return nil, model.NewFetchFailedError(fmt.Sprintf("status %d", status))
	}

	// dataが無いかnullの場合、空の成績として保存されないよう失敗させる。
	// 明示的な空配列は完了データなしとして扱う。
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		c.logger.Error("完了データが含まれていません",
			slog.String("zybooks_id", zybooksID),
		)
		return nil, model.NewMalformedPayloadError()
	}

	var raw model.RawCompletion
	if err := json.Unmarshal(data, &raw); err != nil {
		c.logger.Error("完了データの構造が不正です",
			slog.String("zybooks_id", zybooksID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewMalformedPayloadError()
	}
	if raw == nil {
		raw = model.RawCompletion{}
	}

	return raw, nil
}

// SignIn はメールアドレスとパスワードでzyBooksにサインインする。
// 資格情報の誤りなどの論理的な失敗はAuthResponse.Errorで返し、
// 通信失敗や想定外のレスポンスはerrorで返す。
func (c *Client) SignIn(ctx context.Context, email, password string) (model.AuthResponse, error) {
	body, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return model.AuthResponse{}, fmt.Errorf("リクエストボディの生成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/signin", bytes.NewReader(body))
	if err != nil {
		return model.AuthResponse{}, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	env, status, err := c.do(req)
	if err != nil {
		return model.AuthResponse{}, err
	}

	if msg, ok := c.remoteError(env.Error); ok {
		return model.AuthResponse{Error: msg}, nil
	}
	if status != http.StatusOK {
		return model.AuthResponse{}, fmt.Errorf("zyBooksサインインがステータス %d を返しました", status)
	}
	if env.Success != nil && !*env.Success {
		return model.AuthResponse{Error: "zybooks sign in was not successful"}, nil
	}
	if env.Session == nil || env.Session.AuthToken == "" {
		return model.AuthResponse{}, fmt.Errorf("zyBooksサインインのレスポンスにトークンが含まれていません")
	}

	return model.AuthResponse{Token: env.Session.AuthToken}, nil
}

// do はレート制限を待ってからリクエストを実行し、共通レスポンスをデコードする。
func (c *Client) do(req *http.Request) (*envelope, int, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, 0, fmt.Errorf("zyBooks APIの呼び出し待機が中断されました: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.recorder != nil {
		c.recorder.RecordFetchLatency(time.Since(start))
	}
	if err != nil {
		c.logger.Error("zyBooks APIの呼び出しに失敗しました",
			slog.String("path", req.URL.Path),
			slog.String("error", err.Error()),
		)
		return nil, 0, model.NewFetchFailedError(err.Error())
	}
	defer resp.Body.Close()

	if c.recorder != nil {
		c.recorder.RecordZybooksStatus(resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, resp.StatusCode, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	env := &envelope{}
	if len(bytes.TrimSpace(body)) == 0 {
		return env, resp.StatusCode, nil
	}
	if err := json.Unmarshal(body, env); err != nil {
		if resp.StatusCode != http.StatusOK {
			// エラーステータスの非JSONボディはステータスで判定する
			return env, resp.StatusCode, nil
		}
		c.logger.Error("zyBooks APIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, resp.StatusCode, model.NewMalformedPayloadError()
	}

	return env, resp.StatusCode, nil
}

// remoteError はerrorフィールドのメッセージを取り出し、サニタイズする。
// サニタイズ後に空になった場合も失敗として扱う。
func (c *Client) remoteError(raw json.RawMessage) (string, bool) {
	msg, ok := remoteErrorMessage(raw)
	if !ok || c.sanitizer == nil {
		return msg, ok
	}
	if clean := c.sanitizer.SanitizeMessage(msg); clean != "" {
		return clean, true
	}
	return "zybooks returned an error", true
}

// remoteErrorMessage はレスポンスのerrorフィールドからメッセージを取り出す。
// フィールドが存在しない、null、false、0の場合はエラーなしとする。
func remoteErrorMessage(raw json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("false")) || bytes.Equal(trimmed, []byte("0")) {
		return "", false
	}

	var withMessage struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(trimmed, &withMessage); err == nil && withMessage.Message != "" {
		return withMessage.Message, true
	}

	var plain string
	if err := json.Unmarshal(trimmed, &plain); err == nil {
		if plain == "" {
			return "", false
		}
		return plain, true
	}

	return string(trimmed), true
}
