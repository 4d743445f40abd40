package budget_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain/budget"
	"procura/internal/infrastructure/storage/memory"
)

func seedLine(t *testing.T, store *memory.Store, allocated string) *budget.Line {
	t.Helper()
	line := budget.NewLine("finance")
	line.Number = "BL-2026-000001"
	line.Department = "science"
	line.FiscalYear = 2026
	line.Category = "laboratory"
	line.Currency = "USD"
	line.Allocated = types.MustMoney(allocated)
	line.Available = line.Allocated
	line.Status = budget.StatusApproved
	require.NoError(t, store.BudgetLines().Create(context.Background(), line))
	return line
}

func ref() budget.Ref {
	return budget.Ref{DocumentType: "requisition", DocumentID: id.New(), Actor: "alice"}
}

func TestReserveReleaseConsume(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	line := seedLine(t, store, "1000")
	ledger := budget.NewLedger(store.BudgetLines(), store, budget.OverrunReserveExcess)

	got, err := ledger.Reserve(ctx, line.ID, types.MustMoney("400"), ref())
	require.NoError(t, err)
	assert.Equal(t, "400.00", got.Committed.StringFixed(2))
	assert.Equal(t, "600.00", got.Available.StringFixed(2))

	got, err = ledger.Release(ctx, line.ID, types.MustMoney("100"), ref())
	require.NoError(t, err)
	assert.Equal(t, "300.00", got.Committed.StringFixed(2))

	got, err = ledger.Consume(ctx, line.ID, types.MustMoney("300"), types.MustMoney("290"), ref())
	require.NoError(t, err)
	assert.True(t, got.Committed.IsZero())
	assert.Equal(t, "290.00", got.Spent.StringFixed(2))
	assert.Equal(t, "710.00", got.Available.StringFixed(2))

	entries, err := store.BudgetLines().ListEntries(ctx, line.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, budget.EntryReserve, entries[0].Kind)
	assert.Equal(t, budget.EntryRelease, entries[1].Kind)
	assert.Equal(t, budget.EntryConsume, entries[2].Kind)
	assert.Equal(t, "290.00", entries[2].SpentAfter.StringFixed(2))
}

func TestReserveInsufficientFundsLeavesLineUnchanged(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	line := seedLine(t, store, "1000")
	ledger := budget.NewLedger(store.BudgetLines(), store, "")

	_, err := ledger.Reserve(ctx, line.ID, types.MustMoney("1000.01"), ref())
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientFunds))

	got, err := store.BudgetLines().GetByID(ctx, line.ID)
	require.NoError(t, err)
	assert.True(t, got.Committed.IsZero())
	assert.Equal(t, line.Version, got.Version)

	entries, err := store.BudgetLines().ListEntries(ctx, line.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReserveExactAvailableSucceeds(t *testing.T) {
	store := memory.NewStore()
	line := seedLine(t, store, "1000")
	ledger := budget.NewLedger(store.BudgetLines(), store, "")

	got, err := ledger.Reserve(context.Background(), line.ID, types.MustMoney("1000"), ref())
	require.NoError(t, err)
	assert.True(t, got.AvailableAmount().IsZero())
}

func TestReserveRequiresApprovedLine(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	line := budget.NewLine("finance")
	line.Department, line.FiscalYear, line.Category, line.Currency = "science", 2026, "lab", "USD"
	line.Allocated = types.MustMoney("1000")
	require.NoError(t, store.BudgetLines().Create(ctx, line))
	ledger := budget.NewLedger(store.BudgetLines(), store, "")

	_, err := ledger.Reserve(ctx, line.ID, types.MustMoney("1"), ref())
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))
}

func TestLedgerRejectsNonPositiveAmounts(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	line := seedLine(t, store, "1000")
	ledger := budget.NewLedger(store.BudgetLines(), store, "")

	_, err := ledger.Reserve(ctx, line.ID, types.Zero(), ref())
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	_, err = ledger.Release(ctx, line.ID, types.MustMoney("-1"), ref())
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	_, err = ledger.Consume(ctx, line.ID, types.MustMoney("-1"), types.MustMoney("1"), ref())
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	_, err = ledger.Consume(ctx, line.ID, types.Zero(), types.Zero(), ref())
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestReleaseMoreThanCommitted(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	line := seedLine(t, store, "1000")
	ledger := budget.NewLedger(store.BudgetLines(), store, "")

	_, err := ledger.Reserve(ctx, line.ID, types.MustMoney("100"), ref())
	require.NoError(t, err)

	_, err = ledger.Release(ctx, line.ID, types.MustMoney("100.01"), ref())
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidRelease))

	_, err = ledger.Consume(ctx, line.ID, types.MustMoney("150"), types.MustMoney("150"), ref())
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidRelease))
}

func TestConsumeOverrunPolicies(t *testing.T) {
	tests := []struct {
		name     string
		policy   budget.OverrunPolicy
		invoiced string
		wantCode string
		spent    string
	}{
		{name: "excess within available", policy: budget.OverrunReserveExcess, invoiced: "150", spent: "150.00"},
		{name: "excess beyond available", policy: budget.OverrunReserveExcess, invoiced: "1000.01", wantCode: apperror.CodeBudgetExceeded},
		{name: "reject policy refuses any excess", policy: budget.OverrunReject, invoiced: "100.01", wantCode: apperror.CodeBudgetExceeded},
		{name: "reject policy accepts exact amount", policy: budget.OverrunReject, invoiced: "100", spent: "100.00"},
		{name: "under-run returns the rest", policy: budget.OverrunReject, invoiced: "80", spent: "80.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := memory.NewStore()
			line := seedLine(t, store, "1000")
			ledger := budget.NewLedger(store.BudgetLines(), store, tt.policy)

			_, err := ledger.Reserve(ctx, line.ID, types.MustMoney("100"), ref())
			require.NoError(t, err)

			got, err := ledger.Consume(ctx, line.ID, types.MustMoney("100"), types.MustMoney(tt.invoiced), ref())
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, apperror.HasCode(err, tt.wantCode))

				after, err := store.BudgetLines().GetByID(ctx, line.ID)
				require.NoError(t, err)
				assert.Equal(t, "100.00", after.Committed.StringFixed(2))
				assert.True(t, after.Spent.IsZero())
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Committed.IsZero())
			assert.Equal(t, tt.spent, got.Spent.StringFixed(2))
		})
	}
}

func TestConcurrentReserveOnlyOneSucceeds(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	line := seedLine(t, store, "1000")
	ledger := budget.NewLedger(store.BudgetLines(), store, "")

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		failed    int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Reserve(ctx, line.ID, types.MustMoney("600"), ref())
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			if apperror.HasCode(err, apperror.CodeInsufficientFunds) {
				failed++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, failed)

	got, err := store.BudgetLines().GetByID(ctx, line.ID)
	require.NoError(t, err)
	assert.Equal(t, "600.00", got.Committed.StringFixed(2))
	assert.Equal(t, "400.00", got.AvailableAmount().StringFixed(2))
}

func TestParseOverrunPolicy(t *testing.T) {
	p, err := budget.ParseOverrunPolicy("")
	require.NoError(t, err)
	assert.Equal(t, budget.OverrunReserveExcess, p)

	p, err = budget.ParseOverrunPolicy("reject")
	require.NoError(t, err)
	assert.Equal(t, budget.OverrunReject, p)

	_, err = budget.ParseOverrunPolicy("ignore")
	assert.Error(t, err)
}

func TestDeletedLineRefusesLedgerOperations(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	line := seedLine(t, store, "1000")
	ledger := budget.NewLedger(store.BudgetLines(), store, "")
	require.NoError(t, store.BudgetLines().Delete(ctx, line.ID))

	_, err := ledger.Reserve(ctx, line.ID, types.MustMoney("100"), ref())
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))

	got, err := store.BudgetLines().GetByID(ctx, line.ID)
	require.NoError(t, err)
	assert.True(t, got.Committed.IsZero())
	entries, err := store.BudgetLines().ListEntries(ctx, line.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
