package budget_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procura/internal/app"
	"procura/internal/core/apperror"
	"procura/internal/core/numerator"
	"procura/internal/core/types"
	"procura/internal/domain/approval"
	"procura/internal/domain/budget"
	"procura/internal/infrastructure/storage/memory"
)

func newService(t *testing.T) *budget.Service {
	t.Helper()
	store := memory.NewStore()
	svc, err := app.New(store.Repositories(), store, &numerator.MockGenerator{}, store, app.DefaultPolicies())
	require.NoError(t, err)
	return svc.Budget
}

func createLine(t *testing.T, svc *budget.Service, allocated string) *budget.Line {
	t.Helper()
	line, err := svc.Create(context.Background(), "finance", budget.CreateCommand{
		Department: "history", FiscalYear: 2026, Category: "books", Currency: "USD",
		Allocated: types.MustMoney(allocated),
	})
	require.NoError(t, err)
	return line
}

func TestReviewRequiresIndependentApprovers(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	line := createLine(t, svc, "50000")

	line, err := svc.Submit(ctx, "finance", line.ID)
	require.NoError(t, err)
	assert.Equal(t, budget.StatusPendingReview, line.Status)

	_, err = svc.Approve(ctx, "finance", line.ID, approval.LevelHOD, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeSegregationOfDuties))

	_, err = svc.Approve(ctx, "principal", line.ID, approval.LevelPrincipal, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))

	line, err = svc.Approve(ctx, "hod-history", line.ID, approval.LevelHOD, "")
	require.NoError(t, err)
	assert.Equal(t, budget.StatusPendingReview, line.Status)

	_, err = svc.Approve(ctx, "hod-history", line.ID, approval.LevelPrincipal, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeSegregationOfDuties))

	line, err = svc.Approve(ctx, "principal", line.ID, approval.LevelPrincipal, "ok")
	require.NoError(t, err)
	assert.Equal(t, budget.StatusApproved, line.Status)

	again, err := svc.Approve(ctx, "principal", line.ID, approval.LevelPrincipal, "ok")
	require.NoError(t, err)
	assert.Equal(t, line.Version, again.Version)
}

func TestSmallLineStillNeedsReviewer(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	line := createLine(t, svc, "500")

	line, err := svc.Submit(ctx, "finance", line.ID)
	require.NoError(t, err)
	assert.Equal(t, budget.StatusPendingReview, line.Status)
	assert.NotNil(t, line.Approvals.NextPending())
}

func TestRejectAndResubmit(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	line := createLine(t, svc, "20000")

	_, err := svc.Submit(ctx, "finance", line.ID)
	require.NoError(t, err)

	_, err = svc.Reject(ctx, "hod-history", line.ID, approval.LevelHOD, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	line, err = svc.Reject(ctx, "hod-history", line.ID, approval.LevelHOD, "too generous")
	require.NoError(t, err)
	assert.Equal(t, budget.StatusRejected, line.Status)

	line, err = svc.Update(ctx, "finance", budget.UpdateCommand{
		ID:        line.ID,
		Version:   line.Version,
		Category:  "books",
		Allocated: types.MustMoney("15000"),
	})
	require.NoError(t, err)
	assert.Equal(t, "15000.00", line.Available.StringFixed(2))

	line, err = svc.Submit(ctx, "finance", line.ID)
	require.NoError(t, err)
	assert.Equal(t, budget.StatusPendingReview, line.Status)
	assert.Equal(t, 2, line.Approvals.CurrentRound())
}

func TestReallocateMustCoverCommitments(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	line := createLine(t, svc, "50000")

	_, err := svc.Reallocate(ctx, "finance", line.ID, types.MustMoney("60000"))
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))

	_, err = svc.Submit(ctx, "finance", line.ID)
	require.NoError(t, err)
	_, err = svc.Approve(ctx, "hod-history", line.ID, approval.LevelHOD, "")
	require.NoError(t, err)
	_, err = svc.Approve(ctx, "principal", line.ID, approval.LevelPrincipal, "")
	require.NoError(t, err)

	_, err = svc.Ledger().Reserve(ctx, line.ID, types.MustMoney("30000"), ref())
	require.NoError(t, err)

	_, err = svc.Reallocate(ctx, "finance", line.ID, types.MustMoney("29999.99"))
	assert.True(t, apperror.HasCode(err, apperror.CodeBudgetExceeded))
	_, err = svc.Reallocate(ctx, "finance", line.ID, types.MustMoney("-1"))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	line, err = svc.Reallocate(ctx, "finance", line.ID, types.MustMoney("40000"))
	require.NoError(t, err)
	assert.Equal(t, "10000.00", line.Available.StringFixed(2))

	err = svc.Delete(ctx, "finance", line.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))

	entries, err := svc.Journal(ctx, line.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDeletedLineIsClosedToWorkflow(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	line := createLine(t, svc, "800")

	require.NoError(t, svc.Delete(ctx, "finance", line.ID))

	_, err := svc.Submit(ctx, "finance", line.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))
	_, err = svc.Reallocate(ctx, "finance", line.ID, types.MustMoney("900"))
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))
	err = svc.Delete(ctx, "finance", line.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))

	got, err := svc.Get(ctx, line.ID)
	require.NoError(t, err)
	assert.True(t, got.DeletionMark)
	assert.Equal(t, budget.StatusDraft, got.Status)
}
