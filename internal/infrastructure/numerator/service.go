// Package numerator implements document numbering on the sys_sequences table.
package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	corenumerator "procura/internal/core/numerator"
)

// Querier is the single-row query used to advance counters.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type cachedRange struct {
	current int64
	max     int64
}

// Service generates document numbers.
//
// Numbers are drawn outside business transactions: a rolled back document
// may leave a gap in cached sequences, while strict sequences are advanced
// by a single upsert per number.
type Service struct {
	querier Querier

	mu     sync.Mutex
	ranges map[string]*cachedRange
}

var _ corenumerator.Generator = (*Service)(nil)

// New creates a numerator over querier, normally the connection pool.
func New(querier Querier) *Service {
	return &Service{
		querier: querier,
		ranges:  make(map[string]*cachedRange),
	}
}

// GetNextNumber returns the next number of cfg's sequence for period's year.
func (s *Service) GetNextNumber(ctx context.Context, cfg corenumerator.Config, period time.Time) (string, error) {
	key := sequenceKey(cfg, period)

	var (
		num int64
		err error
	)
	switch cfg.Strategy {
	case corenumerator.StrategyCached:
		num, err = s.nextCached(ctx, key, cfg.RangeSize)
	default:
		num, err = s.advance(ctx, key, 1)
	}
	if err != nil {
		return "", fmt.Errorf("next %s number: %w", cfg.Prefix, err)
	}
	return corenumerator.Format(cfg, period, num), nil
}

// advance adds step to the counter and returns its new value.
func (s *Service) advance(ctx context.Context, key string, step int64) (int64, error) {
	var val int64
	err := s.querier.QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + EXCLUDED.current_val
		RETURNING current_val
	`, key, step).Scan(&val)
	if err != nil {
		return 0, err
	}
	return val, nil
}

// nextCached serves numbers from an in-memory range, reserving a new range when exhausted.
func (s *Service) nextCached(ctx context.Context, key string, size int64) (int64, error) {
	if size <= 0 {
		size = 50
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rng, ok := s.ranges[key]
	if !ok {
		rng = &cachedRange{}
		s.ranges[key] = rng
	}

	if rng.current >= rng.max {
		newMax, err := s.advance(ctx, key, size)
		if err != nil {
			return 0, fmt.Errorf("reserve range: %w", err)
		}
		rng.current = newMax - size
		rng.max = newMax
	}

	rng.current++
	return rng.current, nil
}

func sequenceKey(cfg corenumerator.Config, period time.Time) string {
	if cfg.IncludeYear {
		return fmt.Sprintf("%s_%s", cfg.Prefix, period.Format("2006"))
	}
	return cfg.Prefix
}
