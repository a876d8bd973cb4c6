// Package app はアプリケーションの初期化・依存関係の組み立て・起動を行う。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/growthdesk/internal/approval"
	"github.com/hitoshi/growthdesk/internal/auth"
	"github.com/hitoshi/growthdesk/internal/config"
	"github.com/hitoshi/growthdesk/internal/credential"
	"github.com/hitoshi/growthdesk/internal/database"
	"github.com/hitoshi/growthdesk/internal/generation"
	"github.com/hitoshi/growthdesk/internal/handler"
	"github.com/hitoshi/growthdesk/internal/llm"
	"github.com/hitoshi/growthdesk/internal/logger"
	"github.com/hitoshi/growthdesk/internal/metrics"
	"github.com/hitoshi/growthdesk/internal/middleware"
	"github.com/hitoshi/growthdesk/internal/repository"
	"github.com/hitoshi/growthdesk/internal/security"
	"github.com/hitoshi/growthdesk/internal/token"
)

const (
	dbPingTimeout   = 5 * time.Second
	shutdownTimeout = 30 * time.Second
)

// Init はアプリケーションの初期化を行う。
// .envがあれば読み込み、環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. .envの読み込み。既存の環境変数は上書きしない。本番では存在しなくてよい
	if err := godotenv.Load(); err == nil {
		slog.Debug(".env loaded")
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// server はHTTPハンドラーと、停止時に解放が必要な部品を保持する。
type server struct {
	handler     http.Handler
	rateLimiter *middleware.RateLimiter
}

// close はバックグラウンド処理を停止する。
func (s *server) close() {
	s.rateLimiter.Stop()
}

// newServer は全依存関係をワイヤリングしてHTTPハンドラーを構築する。
// DB接続は遅延されるため、dbは未接続でもよい。
func newServer(ctx context.Context, cfg *config.Config, db *sql.DB, reg *prometheus.Registry) (*server, error) {
	collector := metrics.NewCollector(reg)

	// 1. トークン
	authTokens, err := token.NewService(cfg.SecretKey, token.SaltAuth)
	if err != nil {
		return nil, fmt.Errorf("failed to init auth tokens: %w", err)
	}
	approvalTokens, err := token.NewService(cfg.SecretKey, token.SaltApproval)
	if err != nil {
		return nil, fmt.Errorf("failed to init approval tokens: %w", err)
	}

	// 2. 認証
	userRepo := repository.NewPostgresUserRepo(db)
	store, err := credential.NewStore(userRepo, cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to init credential store: %w", err)
	}
	authService := auth.NewService(store, authTokens, cfg.TokenMaxAge, collector)

	// 3. 生成
	generator, err := newGenerator(ctx, cfg)
	if err != nil {
		return nil, err
	}
	gate := approval.NewGate(approvalTokens, cfg.ApprovalTokenTTL, cfg.ApprovalTokenRequired)
	genService := generation.NewService(
		generator, gate, security.NewInputSanitizer(), collector,
		generation.ServiceConfig{
			HistoryMaxEntries: cfg.HistoryMaxEntries,
			UpstreamTimeout:   cfg.UpstreamTimeout,
		},
	)

	// 4. ルーター
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralPerMinute: cfg.RateLimitGeneral,
		ImagePerMinute:   cfg.RateLimitImage,
		CleanupInterval:  middleware.DefaultRateLimiterConfig().CleanupInterval,
	}, collector)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:             slog.Default(),
		Authenticator:      authService,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        rateLimiter,
		StatusRecorder:     collector,
		MetricsHandler:     metrics.Handler(reg),
		Configured:         cfg.GenerationConfigured(),
		AuthService:        authService,
		GenerationService:  genService,
	})

	return &server{handler: router, rateLimiter: rateLimiter}, nil
}

// newGenerator はAPIキーが設定されていればGeminiClientを、なければUnconfiguredを返す。
// キー未設定でも起動は継続し、生成エンドポイントが呼ばれた時点で500を返す。
func newGenerator(ctx context.Context, cfg *config.Config) (llm.Generator, error) {
	if !cfg.GenerationConfigured() {
		slog.Warn("GEMINI_API_KEYが未設定のため生成エンドポイントは利用できません")
		return llm.Unconfigured{}, nil
	}

	client, err := llm.NewGeminiClient(ctx, llm.GeminiConfig{
		APIKey:     cfg.GeminiAPIKey,
		TextModel:  cfg.GeminiTextModel,
		ImageModel: cfg.GeminiImageModel,
		BaseURL:    cfg.GeminiBaseURL,
		HTTPClient: security.NewUpstreamClient(cfg.UpstreamTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init generative client: %w", err)
	}
	return client, nil
}

// runServe はAPIサーバーを起動する。
// DB接続を開き、必要ならマイグレーションを適用し、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Ping(ctx, db, dbPingTimeout); err != nil {
		return err
	}
	slog.Info("database connection established")

	// 2. マイグレーション
	if cfg.AutoMigrate {
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	// 3. 依存関係の組み立て
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv, err := newServer(ctx, cfg, db, reg)
	if err != nil {
		return err
	}
	defer srv.close()

	// 4. HTTPサーバーの起動
	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           srv.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// 画像生成は同期で行うため、上流タイムアウトより長く取る
		WriteTimeout: cfg.UpstreamTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("API server starting",
			slog.String("addr", httpServer.Addr),
			slog.Bool("generation_configured", cfg.GenerationConfigured()),
			slog.Bool("approval_token_required", cfg.ApprovalTokenRequired),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down API server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("API server stopped gracefully")
	return nil
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
// /api/health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(ctx context.Context, baseURL string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/health", nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
