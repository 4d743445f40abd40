package main

import (
	"context"
	"errors"
	"time"

	appctx "procura/internal/core/context"
	"procura/internal/infrastructure/cache"
	"procura/pkg/logger"
)

const (
	relayLockName   = "outbox-relay"
	purgeInterval   = time.Hour
	publishedMaxAge = 7 * 24 * time.Hour
)

// Relay is the outbox side of the worker.
type Relay interface {
	ProcessBatch(ctx context.Context) (int, error)
	PurgePublished(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Locker serializes relays across worker replicas.
type Locker interface {
	WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

// Worker polls the outbox and purges delivered messages.
type Worker struct {
	relay    Relay
	locker   Locker
	interval time.Duration
	log      *logger.Logger
}

// NewWorker creates a worker polling every interval.
func NewWorker(relay Relay, locker Locker, interval time.Duration, log *logger.Logger) *Worker {
	return &Worker{
		relay:    relay,
		locker:   locker,
		interval: interval,
		log:      log.WithComponent("worker"),
	}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	purgeTicker := time.NewTicker(purgeInterval)
	defer purgeTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.relayOnce(ctx)
		case <-purgeTicker.C:
			w.purge(ctx)
		}
	}
}

// relayOnce drains the outbox while full batches keep coming.
func (w *Worker) relayOnce(ctx context.Context) {
	ctx = appctx.WithTrace(ctx, appctx.NewTraceContext())
	err := w.locker.WithLock(ctx, relayLockName, func(ctx context.Context) error {
		for {
			n, err := w.relay.ProcessBatch(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				w.log.WithContext(ctx).Debugw("outbox batch relayed", "published", n)
			}
			if n == 0 || ctx.Err() != nil {
				return nil
			}
		}
	})
	switch {
	case err == nil, isShutdown(err):
	case errors.Is(err, cache.ErrLockHeld):
		w.log.Debugw("outbox relay running elsewhere")
	default:
		w.log.WithContext(ctx).Errorw("outbox relay failed", "error", err)
	}
}

func (w *Worker) purge(ctx context.Context) {
	n, err := w.relay.PurgePublished(ctx, publishedMaxAge)
	if err != nil {
		if !isShutdown(err) {
			w.log.Errorw("outbox purge failed", "error", err)
		}
		return
	}
	if n > 0 {
		w.log.Infow("purged published outbox messages", "count", n)
	}
}
