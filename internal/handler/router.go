package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/moviefav/internal/metrics"
	"github.com/hitoshi/moviefav/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter // nilの場合はレート制限を行わない
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler // nilの場合は/metricsを公開しない

	// サービス
	AuthService     AuthServiceInterface
	MovieService    MovieServiceInterface
	FavoriteService FavoriteServiceInterface

	// ヘルスチェック
	DB Pinger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → RealIP → SecurityHeaders → CORS → Logging → Metrics → RateLimit
//
// APIルートは"/"と"/api"の両方にマウントする。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.NopCollector{}
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(collector))
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.Middleware())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, messageResponse{Message: "Not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, messageResponse{Message: "Method not allowed"})
	})

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	routes := apiRoutes(deps, collector)
	r.Group(routes)
	r.Route("/api", routes)

	return r
}

// apiRoutes はAPIルートを登録する関数を返す。
func apiRoutes(deps *RouterDeps, collector metrics.MetricsCollector) func(r chi.Router) {
	authHandler := NewAuthHandler(deps.AuthService, collector)
	movieHandler := NewMovieHandler(deps.MovieService)
	favoriteHandler := NewFavoriteHandler(deps.FavoriteService)
	healthHandler := NewHealthHandler(deps.DB)
	requireAuth := middleware.NewAuthMiddleware(deps.TokenVerifier)

	return func(r chi.Router) {
		r.Get("/health", healthHandler.Health)

		// 認証
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.With(requireAuth).Get("/me", authHandler.Me)
		})

		// 映画検索（認証不要）
		r.Route("/movies", func(r chi.Router) {
			r.Get("/search", movieHandler.Search)
			r.Get("/{id}", movieHandler.Details)
		})

		// お気に入り
		r.Route("/favorites", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", favoriteHandler.ListFavorites)
			r.Post("/", favoriteHandler.AddFavorite)
			r.Delete("/{id}", favoriteHandler.RemoveFavorite)
		})
	}
}
