// Package main is the entry point for the procura background worker.
// It relays committed domain events from the outbox to the message broker.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"procura/internal/config"
	"procura/internal/infrastructure/cache"
	"procura/internal/infrastructure/messaging"
	"procura/internal/infrastructure/storage/postgres"
	"procura/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting procura worker")

	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.MaxConns = cfg.DBMaxConns
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	redisClient, err := cache.OpenRedis(ctx, cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	conn, err := messaging.Dial(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		log.Fatalw("failed to connect to message broker", "error", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Warnw("broker close failed", "error", err)
		}
	}()

	publisher := messaging.NewPublisher(conn.Channel(), cfg.AMQPExchange, messaging.DefaultBreakerConfig())
	relay := postgres.NewOutboxRelay(postgres.NewTxManager(pool), cfg.OutboxBatchSize, publisher)

	worker := NewWorker(relay, cache.NewLocker(redisClient, cache.DefaultLockOptions()), cfg.OutboxPollInterval, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// isShutdown reports errors caused by the worker context ending.
func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled)
}
