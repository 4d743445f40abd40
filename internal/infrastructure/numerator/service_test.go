package numerator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corenumerator "procura/internal/core/numerator"
)

type fakeRow struct {
	val int64
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*int64)) = r.val
	return nil
}

// fakeSequences simulates the sys_sequences upsert: args are (key, step).
type fakeSequences struct {
	mu    sync.Mutex
	vals  map[string]int64
	calls int
	err   error
}

func (f *fakeSequences) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return fakeRow{err: f.err}
	}
	if f.vals == nil {
		f.vals = make(map[string]int64)
	}
	key := args[0].(string)
	f.vals[key] += args[1].(int64)
	return fakeRow{val: f.vals[key]}
}

var period = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func TestStrictNumbersAreConsecutive(t *testing.T) {
	q := &fakeSequences{}
	svc := New(q)
	cfg := corenumerator.DefaultConfig(corenumerator.PrefixInvoice)

	for _, want := range []string{"INV-2026-00001", "INV-2026-00002", "INV-2026-00003"} {
		got, err := svc.GetNextNumber(context.Background(), cfg, period)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 3, q.calls)
}

func TestSequencesAreYearly(t *testing.T) {
	q := &fakeSequences{}
	svc := New(q)
	cfg := corenumerator.DefaultConfig(corenumerator.PrefixPayment)

	_, err := svc.GetNextNumber(context.Background(), cfg, period)
	require.NoError(t, err)
	got, err := svc.GetNextNumber(context.Background(), cfg, period.AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, "PAY-2027-00001", got)
}

func TestCachedNumbersReserveRanges(t *testing.T) {
	q := &fakeSequences{}
	svc := New(q)
	cfg := corenumerator.CachedConfig(corenumerator.PrefixPurchaseOrder)
	cfg.RangeSize = 10
	ctx := context.Background()

	got, err := svc.GetNextNumber(ctx, cfg, period)
	require.NoError(t, err)
	assert.Equal(t, "PO-2026-00001", got)
	assert.Equal(t, int64(10), q.vals["PO_2026"])

	for range 9 {
		_, err := svc.GetNextNumber(ctx, cfg, period)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, q.calls)

	got, err = svc.GetNextNumber(ctx, cfg, period)
	require.NoError(t, err)
	assert.Equal(t, "PO-2026-00011", got)
	assert.Equal(t, 2, q.calls)
	assert.Equal(t, int64(20), q.vals["PO_2026"])
}

func TestCachedNumbersAreUniqueUnderConcurrency(t *testing.T) {
	svc := New(&fakeSequences{})
	cfg := corenumerator.CachedConfig(corenumerator.PrefixRequisition)
	cfg.RangeSize = 7

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]bool)
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			num, err := svc.GetNextNumber(context.Background(), cfg, period)
			assert.NoError(t, err)
			mu.Lock()
			seen[num] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 50)
}

func TestDatabaseErrorIsWrapped(t *testing.T) {
	svc := New(&fakeSequences{err: errors.New("connection reset")})

	_, err := svc.GetNextNumber(context.Background(), corenumerator.DefaultConfig(corenumerator.PrefixInvoice), period)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "next INV number")
}
