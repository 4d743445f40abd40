package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"procura/pkg/logger"
)

// ErrLockHeld is returned when another process owns the lock.
var ErrLockHeld = errors.New("lock held by another process")

// LockOptions tunes mutex acquisition.
type LockOptions struct {
	Expiry     time.Duration
	Tries      int
	RetryDelay time.Duration
}

// DefaultLockOptions suits short periodic jobs: a single attempt, so a
// replica that loses simply skips its turn.
func DefaultLockOptions() LockOptions {
	return LockOptions{
		Expiry:     30 * time.Second,
		Tries:      1,
		RetryDelay: 100 * time.Millisecond,
	}
}

// Locker hands out Redis mutexes (Redlock).
type Locker struct {
	rs   *redsync.Redsync
	opts LockOptions
}

// NewLocker creates a Locker on top of client.
func NewLocker(client redis.UniversalClient, opts LockOptions) *Locker {
	if opts.Expiry <= 0 {
		opts = DefaultLockOptions()
	}
	return &Locker{
		rs:   redsync.New(goredis.NewPool(client)),
		opts: opts,
	}
}

// WithLock runs fn while holding name. Returns ErrLockHeld without running fn
// when another holder owns it.
func (l *Locker) WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	mutex := l.rs.NewMutex(
		"lock:"+name,
		redsync.WithExpiry(l.opts.Expiry),
		redsync.WithTries(l.opts.Tries),
		redsync.WithRetryDelay(l.opts.RetryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		// redsync reports a taken lock and an unreachable node alike once tries run out.
		return fmt.Errorf("%w: %s: %v", ErrLockHeld, name, err)
	}

	defer func() {
		// Use a fresh context: ctx may already be cancelled on shutdown.
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if ok, err := mutex.UnlockContext(unlockCtx); !ok || err != nil {
			logger.Warn(ctx, "lock release failed", "lock", name, "error", err)
		}
	}()

	return fn(ctx)
}
