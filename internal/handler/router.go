package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/growthdesk/internal/middleware"
	"github.com/hitoshi/growthdesk/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger             *slog.Logger
	Authenticator      middleware.TokenAuthenticator
	CORSAllowedOrigins []string
	RateLimiter        *middleware.RateLimiter
	StatusRecorder     middleware.StatusRecorder

	// /metrics。nilの場合は公開しない
	MetricsHandler http.Handler

	// 生成APIのキーが設定されているか
	Configured bool

	AuthService       AuthServiceInterface
	GenerationService GenerationServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Identity → Logging → Metrics → Recovery → SecurityHeaders → CORS
//
// /api/health と /metrics 以外のAPIにはGeneralMiddlewareのレート制限がかかり、
// 画像生成にはさらにImageMiddlewareが加わる。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	// ログにsubjectを含めるため、Loggingより外側に置く
	r.Use(middleware.NewIdentityMiddleware(deps.Authenticator))
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	}
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))

	healthHandler := NewHealthHandler(deps.Configured)
	authHandler := NewAuthHandler(deps.AuthService)
	genHandler := NewGenerationHandler(deps.GenerationService)

	// --- レート制限なし ---
	r.Get("/api/health", healthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- レート制限あり ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 認証
		r.Post("/api/signup", authHandler.Signup)
		r.Post("/api/login", authHandler.Login)
		r.Get("/api/me", authHandler.Me)

		// チャット形式の生成
		r.Post("/api/generate-content", genHandler.GenerateContent)

		// 承認ゲート付きの画像アシスタント
		r.Route("/api/image-assistant", func(r chi.Router) {
			r.Post("/generate-text", genHandler.GenerateText)
			r.Post("/generate-prompts", genHandler.GeneratePrompts)
			r.With(deps.RateLimiter.ImageMiddleware()).Post("/generate-image", genHandler.GenerateImage)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewRouteNotFoundError())
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusMethodNotAllowed, model.NewMethodNotAllowedError())
	})

	return r
}
