package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/cache"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/config"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/consumer"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/db"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/handlers"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/hub"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/logging"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/middleware"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/reports"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLogger := logging.Setup("info", false)
		bootLogger.Fatal().Err(err).Msg("invalid configuration")
	}

	logger := logging.Setup(cfg.Log.Level, cfg.Log.Pretty)
	logger.Info().Str("addr", cfg.Server.Addr).Msg("starting bet ledger")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ledger, err := db.NewLedgerPostgres(cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to ledger database")
	}
	store := db.NewResilientLedger(ledger, cfg.Breaker, logger)
	defer store.Close()
	logger.Info().Msg("connected to ledger database")

	var redisClient *redis.Client
	if cfg.Redis.CacheEnabled || cfg.Stream.Enabled {
		redisClient, err = connectRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		logger.Info().Msg("connected to redis")
	}

	// a typed nil would defeat the service's nil check
	var reportCache reports.Cache
	if cfg.Redis.CacheEnabled {
		reportCache = cache.NewReportCache(redisClient, cfg.Redis.CacheTTL)
	}

	svc := reports.NewService(store, reportCache, cfg.Analytics, logger)

	wsHub := hub.NewHub(logger)
	go wsHub.Run(ctx)

	if cfg.Stream.Enabled {
		sc := consumer.NewStreamConsumer(redisClient, svc, wsHub, cfg.Stream, logger)
		go func() {
			if err := sc.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("settlement consumer stopped")
			}
		}()
	}

	h := handlers.NewHandler(ctx, store, svc, wsHub)
	r := newRouter(ctx, cfg, h, logger)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("bet ledger listening")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatal().Err(err).Msg("server error")

	case sig := <-shutdown:
		logger.Warn().Str("signal", sig.String()).Msg("shutting down")

		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("graceful shutdown failed")
			if err := srv.Close(); err != nil {
				logger.Error().Err(err).Msg("could not stop server")
			}
		}
	}

	logger.Info().Msg("shutdown complete")
}

func newRouter(ctx context.Context, cfg *config.Config, h *handlers.Handler, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)
	r.Handle("/metrics", metrics.Handler())

	// websocket connections outlive the request timeout
	r.Get("/ws", h.HandleWebSocket)
	r.Get("/ws/stats", h.HandleHubStats)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(cfg.Server.RequestTimeout))
		if cfg.RateLimit.Enabled {
			limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
			go limiter.Cleanup(ctx, time.Minute)
			r.Use(limiter.Handler)
		}
		h.Routes(r)
	})

	return r
}

func connectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
