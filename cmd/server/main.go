// Package main is the entry point for the procura API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"procura/internal/app"
	"procura/internal/config"
	"procura/internal/infrastructure/auth"
	"procura/internal/infrastructure/cache"
	v1 "procura/internal/infrastructure/http/v1"
	"procura/internal/infrastructure/http/v1/handlers"
	"procura/internal/infrastructure/numerator"
	"procura/internal/infrastructure/storage"
	"procura/internal/infrastructure/storage/postgres"
	"procura/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err == nil {
		err = cfg.ValidateServer()
	}
	if err != nil {
		fmt.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.LogDevelopment,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx := context.Background()
	log.Info("starting procura server")

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.MaxConns = cfg.DBMaxConns
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	if err := pool.RegisterMetrics(); err != nil {
		log.Warnw("pool metrics not registered", "error", err)
	}

	if cfg.MigrationsAuto {
		if err := postgres.Migrate(ctx, pool); err != nil {
			log.Fatalw("failed to apply migrations", "error", err)
		}
		log.Info("migrations applied")
	}

	txManager := postgres.NewTxManager(pool)
	audit, err := postgres.NewAuditService(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit", "error", err)
	}

	// --- Services ---
	policies, err := cfg.Policies()
	if err != nil {
		log.Fatalw("invalid business policies", "error", err)
	}
	services, err := app.New(
		storage.NewPostgresRepositories(txManager),
		txManager,
		numerator.New(pool),
		postgres.NewEventSink(txManager, audit),
		policies,
	)
	if err != nil {
		log.Fatalw("failed to build services", "error", err)
	}

	// --- Redis ---
	redisClient, err := cache.OpenRedis(ctx, cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(cfg.JWTSecret))

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Services:     services,
		Logger:       log,
		JWTValidator: jwtService,
		Idempotency:  cache.NewIdempotencyStore(redisClient, cfg.IdempotencyTTL),
		HealthChecks: map[string]handlers.HealthCheck{
			"postgres": pool.Ping,
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		},
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	pool.LogStats(ctx)

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
