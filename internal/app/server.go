package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/moviefav/internal/auth"
	"github.com/hitoshi/moviefav/internal/config"
	"github.com/hitoshi/moviefav/internal/database"
	"github.com/hitoshi/moviefav/internal/favorite"
	"github.com/hitoshi/moviefav/internal/handler"
	"github.com/hitoshi/moviefav/internal/metrics"
	"github.com/hitoshi/moviefav/internal/middleware"
	"github.com/hitoshi/moviefav/internal/movie"
	"github.com/hitoshi/moviefav/internal/repository"
	"github.com/hitoshi/moviefav/internal/security"
)

const (
	databasePingTimeout = 5 * time.Second
	shutdownTimeout     = 30 * time.Second
)

// server はワイヤリング済みのHTTPハンドラーと、停止時に解放するリソースを保持する。
type server struct {
	handler     http.Handler
	rateLimiter *middleware.RateLimiter
}

// Close はバックグラウンドで動作するリソースを停止する。
func (s *server) Close() {
	s.rateLimiter.Stop()
}

// newServer は設定と接続済みリソースから全依存関係を組み立てる。
// redisClientがnilの場合は映画情報キャッシュを使用しない。
func newServer(cfg *config.Config, db *sql.DB, redisClient *redis.Client, log *slog.Logger) (*server, error) {
	// 1. 外部通信の検証（内部ネットワーク宛ての設定ミスを起動時に検出する）
	guard := security.NewOutboundGuard()
	if err := guard.ValidateURL(cfg.OMDbBaseURL); err != nil {
		return nil, fmt.Errorf("invalid OMDB_BASE_URL: %w", err)
	}

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 3. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	favoriteRepo := repository.NewPostgresFavoriteRepo(db)

	// 4. ドメインサービスの初期化
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	authService := auth.NewService(userRepo, issuer, auth.ServiceConfig{BcryptCost: cfg.BcryptCost})
	favoriteService := favorite.NewService(favoriteRepo, security.NewMetadataSanitizer())

	var cache movie.Cache
	if redisClient != nil {
		cache = movie.NewRedisCache(redisClient, cfg.MovieCacheTTL)
	}
	movieClient := movie.NewClient(guard.NewClient(cfg.ProviderTimeout), log, movie.ClientConfig{
		BaseURL:         cfg.OMDbBaseURL,
		APIKey:          cfg.OMDbAPIKey,
		MaxResponseSize: cfg.ProviderMaxSize,
	})
	movieService := movie.NewService(movieClient, cache, collector, log)

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Requests: cfg.RateLimitRequests,
		Window:   cfg.RateLimitWindow,
		KeyFunc:  middleware.NewUserOrIPKeyFunc(issuer),
	})

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		TokenVerifier:     issuer,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(registry),

		AuthService:     authService,
		MovieService:    movieService,
		FavoriteService: favoriteService,

		DB: db,
	})

	return &server{handler: router, rateLimiter: rateLimiter}, nil
}

// connectCache はREDIS_URLが設定されている場合にRedisへ接続する。
// 接続できない場合はキャッシュなしで起動を続ける。
func connectCache(cfg *config.Config, log *slog.Logger) *redis.Client {
	if !cfg.CacheEnabled() {
		return nil
	}

	client, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Warn("movie cache disabled: redis unavailable", slog.String("error", err.Error()))
		return nil
	}

	log.Info("redis connection established", slog.Duration("movie_cache_ttl", cfg.MovieCacheTTL))
	return client
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config, log *slog.Logger) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Ping(context.Background(), db, databasePingTimeout); err != nil {
		return err
	}
	log.Info("database connection established")

	// 2. キャッシュ接続（任意）
	redisClient := connectCache(cfg, log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	// 3. ワイヤリング
	srv, err := newServer(cfg, db, redisClient, log)
	if err != nil {
		return err
	}
	defer srv.Close()

	// 4. HTTPサーバーの起動
	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.ProviderTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("API server starting", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("API server stopped gracefully")
	return nil
}
