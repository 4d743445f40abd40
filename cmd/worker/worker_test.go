package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"procura/internal/infrastructure/cache"
	"procura/pkg/logger"
)

type fakeRelay struct {
	batches []int
	calls   int
	err     error
	purged  time.Duration
}

func (r *fakeRelay) ProcessBatch(context.Context) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	if r.calls >= len(r.batches) {
		r.calls++
		return 0, nil
	}
	n := r.batches[r.calls]
	r.calls++
	return n, nil
}

func (r *fakeRelay) PurgePublished(_ context.Context, olderThan time.Duration) (int64, error) {
	r.purged = olderThan
	return 3, nil
}

type fakeLocker struct {
	held  bool
	names []string
}

func (l *fakeLocker) WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	l.names = append(l.names, name)
	if l.held {
		return cache.ErrLockHeld
	}
	return fn(ctx)
}

func newTestWorker(relay *fakeRelay, locker *fakeLocker) *Worker {
	return NewWorker(relay, locker, time.Second, logger.NewFromZap(zap.NewNop()))
}

func TestRelayDrainsUntilEmptyBatch(t *testing.T) {
	relay := &fakeRelay{batches: []int{100, 100, 7}}
	locker := &fakeLocker{}

	newTestWorker(relay, locker).relayOnce(context.Background())

	assert.Equal(t, 4, relay.calls)
	assert.Equal(t, []string{relayLockName}, locker.names)
}

func TestRelaySkipsWhenLockHeld(t *testing.T) {
	relay := &fakeRelay{batches: []int{5}}
	locker := &fakeLocker{held: true}

	newTestWorker(relay, locker).relayOnce(context.Background())

	assert.Zero(t, relay.calls)
}

func TestRelayStopsOnError(t *testing.T) {
	relay := &fakeRelay{err: errors.New("connection reset")}

	newTestWorker(relay, &fakeLocker{}).relayOnce(context.Background())

	assert.Equal(t, 0, relay.calls)
}

func TestPurgeUsesRetention(t *testing.T) {
	relay := &fakeRelay{}

	newTestWorker(relay, &fakeLocker{}).purge(context.Background())

	assert.Equal(t, publishedMaxAge, relay.purged)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		newTestWorker(&fakeRelay{}, &fakeLocker{}).Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
