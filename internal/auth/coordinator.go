package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/model"
)

// ErrUnknownProvider は管理対象外のプロバイダーが指定された場合のエラー。
var ErrUnknownProvider = errors.New("unknown auth provider")

// 遷移結果のラベル（メトリクス用）
const (
	outcomePending         = "pending"
	outcomeAuthenticated   = "authenticated"
	outcomeUnauthenticated = "unauthenticated"
	outcomeFailed          = "failed"
)

// slot は1プロバイダー分の状態と排他制御。
// seqは開始された操作の通し番号で、最新の操作の確定だけを反映するために使う。
type slot struct {
	mu    sync.Mutex
	state model.AuthState
	seq   uint64
}

// Coordinator は2つのプロバイダーの認証フローを独立に進め、
// 合成ビュー（完全認証済み / 解決中）を提供する。
// 認証エラーは呼び出し元に返さず、すべて状態に吸収する。
type Coordinator struct {
	providers map[model.Provider]ProviderConfig
	slots     map[model.Provider]*slot
	recorder  TransitionRecorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewCoordinator はCoordinatorを生成する。
// recorderがnilの場合はメトリクスを記録しない。
func NewCoordinator(zybooks, canvas ProviderConfig, recorder TransitionRecorder, logger *slog.Logger) *Coordinator {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		providers: map[model.Provider]ProviderConfig{
			model.ProviderZybooks: zybooks,
			model.ProviderCanvas:  canvas,
		},
		slots: map[model.Provider]*slot{
			model.ProviderZybooks: {},
			model.ProviderCanvas:  {},
		},
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// InitAuth は両プロバイダーの保存済み資格情報を並行して確認する。
// 戻る前に両方をpendingへ遷移させるため、呼び出し直後にView().Resolvingはtrueになる。
// 戻り値のチャネルは両方のフローが確定した時点でクローズされる。
// 一方の失敗が他方をキャンセルすることはない。
func (c *Coordinator) InitAuth(ctx context.Context) <-chan struct{} {
	providers := model.Providers()
	seqs := make([]uint64, len(providers))
	for i, p := range providers {
		seqs[i] = c.begin(p)
	}

	ctx = context.WithoutCancel(ctx)

	var g errgroup.Group
	for i, p := range providers {
		p := p
		seq := seqs[i]
		client := c.providers[p].Client
		g.Go(func() error {
			resp, err := client.CheckStoredCredential(ctx)
			c.settle(p, seq, resp, err)
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()
	return done
}

// LoginWithCredentials は指定プロバイダーに明示的な資格情報でログインする。
// 戻る前にそのプロバイダーだけをpendingへ遷移させる。他方の状態には触れない。
// 戻り値のチャネルは操作が確定した時点でクローズされる。
func (c *Coordinator) LoginWithCredentials(ctx context.Context, provider model.Provider, creds model.Credentials) (<-chan struct{}, error) {
	cfg, ok := c.providers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	seq := c.begin(provider)
	ctx = context.WithoutCancel(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		resp, err := cfg.Client.Login(ctx, creds)
		c.settle(provider, seq, resp, err)
	}()
	return done, nil
}

// HandleAuthResponse はプロバイダーのレスポンスを状態へ反映する。
// Errorが空でなければ失敗、そうでなければTokenで認証成功とする。
// 実行中の操作があれば、これを最新の確定として扱い、その操作の確定は破棄する。
func (c *Coordinator) HandleAuthResponse(provider model.Provider, resp model.AuthResponse) error {
	s, ok := c.slots[provider]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.supersedeInFlight(s)
	c.applyResponse(provider, s, resp)
	return nil
}

// HandleAuthError は失敗した操作のエラーを分類して状態へ反映する。
// センチネルに一致する場合は空メッセージで失敗（再ログインを促すだけ）とし、
// それ以外はプロバイダー固有の固定メッセージで失敗とする。
// 元のエラー詳細はログにのみ残す。
// 実行中の操作の扱いはHandleAuthResponseと同じ。
func (c *Coordinator) HandleAuthError(provider model.Provider, err error) error {
	s, ok := c.slots[provider]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.supersedeInFlight(s)
	c.applyError(provider, s, err)
	return nil
}

// View は現在の合成ビューを返す。
func (c *Coordinator) View() model.AuthView {
	return model.NewAuthView(
		c.State(model.ProviderZybooks),
		c.State(model.ProviderCanvas),
	)
}

// State は指定プロバイダーの状態のスナップショットを返す。
func (c *Coordinator) State(provider model.Provider) model.AuthState {
	s, ok := c.slots[provider]
	if !ok {
		return model.AuthState{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Token は指定プロバイダーの現在のトークンを返す。未認証の場合は空文字列。
func (c *Coordinator) Token(provider model.Provider) string {
	return c.State(provider).Token
}

// begin はプロバイダーをpendingへ遷移させ、新しい操作の通し番号を返す。
// 実行中の操作があれば、その確定は以後無視される。
func (c *Coordinator) begin(provider model.Provider) uint64 {
	s := c.slots[provider]
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.state.Pending = true
	c.recorder.RecordAuthTransition(string(provider), outcomePending)
	return s.seq
}

// supersedeInFlight は通し番号を進め、実行中の操作の確定を無効にする。
// 呼び出し元がs.muを保持していること。
func (c *Coordinator) supersedeInFlight(s *slot) {
	s.seq++
}

// settle は操作の結果を反映する。より新しい操作が開始されている場合は破棄する。
func (c *Coordinator) settle(provider model.Provider, seq uint64, resp model.AuthResponse, err error) {
	s := c.slots[provider]
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.seq {
		c.logger.Info("superseded auth settlement dropped",
			slog.String("provider", string(provider)),
			slog.Uint64("settled_seq", seq),
			slog.Uint64("current_seq", s.seq),
		)
		c.recorder.RecordAuthSuperseded(string(provider))
		return
	}

	if err != nil {
		c.applyError(provider, s, err)
		return
	}
	c.applyResponse(provider, s, resp)
}

// applyResponse はレスポンスの正規化ポイント。呼び出し元がs.muを保持していること。
func (c *Coordinator) applyResponse(provider model.Provider, s *slot, resp model.AuthResponse) {
	if resp.Error != "" {
		c.logger.Warn("auth provider rejected login",
			slog.String("provider", string(provider)),
			slog.String("error", resp.Error),
		)
		c.commitFailure(provider, s, resp.Error)
		return
	}
	if resp.Token == "" {
		// 成功時はトークンが空であってはならない
		c.logger.Error("auth provider returned empty token without error",
			slog.String("provider", string(provider)),
		)
		c.commitFailure(provider, s, c.providers[provider].FailureMessage)
		return
	}
	c.commitSuccess(provider, s, resp.Token)
}

// applyError はエラーを分類して反映する。呼び出し元がs.muを保持していること。
func (c *Coordinator) applyError(provider model.Provider, s *slot, err error) {
	cfg := c.providers[provider]
	if cfg.isNoCredential(err) {
		c.logger.Info("no stored credential",
			slog.String("provider", string(provider)),
		)
		c.commitFailure(provider, s, "")
		return
	}

	c.logger.Error("auth operation failed",
		slog.String("provider", string(provider)),
		slog.String("error", errorString(err)),
	)
	c.commitFailure(provider, s, cfg.FailureMessage)
}

func (c *Coordinator) commitSuccess(provider model.Provider, s *slot, token string) {
	if persist := c.providers[provider].Persist; persist != nil {
		persist(token)
	}
	s.state.Token = token
	s.state.LastError = ""
	s.state.Pending = false
	s.state.UpdatedAt = c.now()
	c.recorder.RecordAuthTransition(string(provider), outcomeAuthenticated)
}

func (c *Coordinator) commitFailure(provider model.Provider, s *slot, message string) {
	s.state.Token = ""
	s.state.LastError = message
	s.state.Pending = false
	s.state.UpdatedAt = c.now()

	outcome := outcomeUnauthenticated
	if message != "" {
		outcome = outcomeFailed
	}
	c.recorder.RecordAuthTransition(string(provider), outcome)
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
