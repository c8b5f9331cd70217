package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/shelf/internal/metrics"
	"github.com/hitoshi/shelf/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	TokenValidator    middleware.TokenValidator
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler
	// StorageHandler はローカルストレージの画像配信ハンドラー。S3利用時はnil。
	StorageHandler http.Handler

	// 認証・ユーザー
	AuthService AuthServiceInterface
	UserService UserServiceInterface

	// 商品
	ProductService ProductServiceInterface
	MaxUploadBytes int64
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS → MethodOverride
//	  /api/register, /api/login: + RateLimit(Login)
//	  その他の /api/*:           + Auth → RateLimit(General)
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	if deps.Metrics != nil {
		r.Use(metrics.Middleware(deps.Metrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	// ルーティング前にメソッドを確定させる
	r.Use(middleware.NewMethodOverrideMiddleware())

	loginLimit, generalLimit := passthrough, passthrough
	if deps.RateLimiter != nil {
		loginLimit = deps.RateLimiter.LoginMiddleware()
		generalLimit = deps.RateLimiter.GeneralMiddleware()
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.UserService)
	productHandler := NewProductHandler(deps.ProductService, deps.MaxUploadBytes)

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	if deps.StorageHandler != nil {
		r.Handle("/storage/*", http.StripPrefix("/storage", deps.StorageHandler))
	}

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(loginLimit)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAuthMiddleware(deps.TokenValidator))
			r.Use(generalLimit)

			r.Post("/logout", authHandler.Logout)
			r.Post("/logout/all", authHandler.LogoutAll)
			r.Get("/profile", authHandler.Profile)

			r.Route("/products", func(r chi.Router) {
				r.Get("/", productHandler.List)
				r.Post("/", productHandler.Create)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", productHandler.Get)
					r.Put("/", productHandler.Update)
					r.Patch("/", productHandler.Update)
					r.Delete("/", productHandler.Delete)
				})
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"status":   false,
			"message":  "Not found.",
			"code":     "NOT_FOUND",
			"category": "system",
		})
	})

	return r
}

// passthrough はレート制限を無効にした場合のミドルウェア。
func passthrough(next http.Handler) http.Handler {
	return next
}
