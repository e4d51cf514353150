package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/metrics"
	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/middleware"
)

// HealthChecker はDB接続の疎通確認を行うインターフェース。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger        *slog.Logger
	HealthChecker HealthChecker
	RateLimiter   *middleware.RateLimiter
	Gatherer      prometheus.Gatherer

	// 認証
	Coordinator     AuthCoordinator
	AuthWaitTimeout time.Duration

	// 成績
	GradeService GradeServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → RequestID → Logging → Recovery
//
// ログイン系エンドポイントにのみクライアントIP単位のレート制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))

	authHandler := NewAuthHandler(deps.Coordinator, deps.Logger, deps.AuthWaitTimeout)
	gradeHandler := NewGradeHandler(deps.GradeService, deps.Logger)

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Get("/status", authHandler.Status)
		r.Post("/init", authHandler.Init)

		r.Group(func(r chi.Router) {
			if deps.RateLimiter != nil {
				r.Use(deps.RateLimiter.LoginMiddleware())
			}
			r.Post("/zybooks/login", authHandler.ZybooksLogin)
			r.Post("/canvas/token", authHandler.CanvasToken)
		})
	})

	r.Route("/api/students/{id}/grades", func(r chi.Router) {
		r.Get("/", gradeHandler.GetGrades)
		r.Post("/sync", gradeHandler.SyncGrades)
	})

	return r
}

// healthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
