package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/auth"
	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/canvas"
	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/config"
	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/database"
	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/grade"
	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/handler"
	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/logger"
	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/metrics"
	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/middleware"
	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/model"
	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/repository"
	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/security"
	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/tokenstore"
	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/zybooks"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再セットアップ
	logger.SetupDefault(w, cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("zybooks_base_url", cfg.ZybooksBaseURL),
		slog.String("book_code", cfg.ZybooksBookCode),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 3. リポジトリとトークンストアの初期化
	gradeRepo := repository.NewPostgresGradeRepo(db)
	tokens := tokenstore.NewMemory(map[model.Provider]string{
		model.ProviderZybooks: cfg.ZybooksAuthToken,
		model.ProviderCanvas:  cfg.CanvasToken,
	})

	// 4. プロバイダークライアントの初期化
	httpClient, err := newZybooksHTTPClient(cfg)
	if err != nil {
		return err
	}
	zybooksClient := zybooks.NewClient(
		httpClient,
		slog.Default(),
		zybooks.ClientConfig{
			BaseURL:     cfg.ZybooksBaseURL,
			BookCode:    cfg.ZybooksBookCode,
			APIInterval: cfg.ZybooksAPIInterval,
			Sanitizer:   security.NewMessageSanitizer(),
		},
		collector,
	)
	zybooksAuth := zybooks.NewAuthClient(zybooksClient, tokens)
	canvasAuth := canvas.NewAuthClient(tokens)

	// 5. 認証コーディネーターの初期化と保存済み資格情報の確認
	coordinator := auth.NewCoordinator(
		zybooksAuth.ProviderConfig(),
		canvasAuth.ProviderConfig(),
		collector,
		slog.Default(),
	)
	coordinator.InitAuth(context.Background())

	// 6. 成績同期サービスの初期化
	gradeService := grade.NewService(zybooksClient, coordinator, gradeRepo, collector, slog.Default())

	// 7. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.DefaultRateLimiterConfig(cfg.RateLimitLogin),
		slog.Default(),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:        slog.Default(),
		HealthChecker: db,
		RateLimiter:   rateLimiter,
		Gatherer:      registry,

		Coordinator:     coordinator,
		AuthWaitTimeout: cfg.FetchTimeout + 5*time.Second,

		GradeService: gradeService,
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.FetchTimeout + 20*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// newZybooksHTTPClient はzyBooks API用のHTTPクライアントを生成する。
// 送信先ガードが有効な場合はベースURLを検証し、内部アドレスへの接続を拒否するクライアントを返す。
func newZybooksHTTPClient(cfg *config.Config) (*http.Client, error) {
	if !cfg.ZybooksEgressGuard {
		slog.Warn("zybooks egress guard is disabled",
			slog.String("zybooks_base_url", cfg.ZybooksBaseURL),
		)
		return &http.Client{Timeout: cfg.FetchTimeout}, nil
	}

	guard := security.NewEgressGuard()
	if err := guard.ValidateBaseURL(cfg.ZybooksBaseURL); err != nil {
		return nil, fmt.Errorf("invalid ZYBOOKS_BASE_URL (set ZYBOOKS_EGRESS_GUARD=false for local servers): %w", err)
	}
	return guard.NewClient(cfg.FetchTimeout), nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
