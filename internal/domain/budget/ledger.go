package budget

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/core/tx"
	"procura/internal/core/types"
	"procura/pkg/logger"
)

var tracer = otel.Tracer("procura/budget")

// Ledger is the only mutator of committed and spent.
//
// Every operation reads the line under a row lock and writes it back inside one
// transaction, so concurrent operations on one line serialize and a failed
// operation leaves the line exactly as it was. Callers that also change a
// document pass a ctx already carrying their transaction.
type Ledger struct {
	repo   Repository
	txm    tx.Manager
	policy OverrunPolicy
	ops    metric.Int64Counter
}

// NewLedger creates a ledger with the given over-run policy.
func NewLedger(repo Repository, txm tx.Manager, policy OverrunPolicy) *Ledger {
	ops, err := otel.Meter("procura/budget").Int64Counter("budget.ledger.operations",
		metric.WithDescription("Budget ledger operations by kind and outcome"))
	if err != nil {
		ops = noop.Int64Counter{}
	}
	if policy == "" {
		policy = OverrunReserveExcess
	}
	return &Ledger{repo: repo, txm: txm, policy: policy, ops: ops}
}

// Policy returns the configured over-run policy.
func (l *Ledger) Policy() OverrunPolicy { return l.policy }

// Reserve commits amount against the line.
// Fails with INSUFFICIENT_FUNDS when available < amount.
func (l *Ledger) Reserve(ctx context.Context, lineID id.ID, amount types.Money, ref Ref) (*Line, error) {
	if !amount.IsPositive() {
		return nil, apperror.NewValidation("reservation amount must be positive").WithDetail("amount", amount.String())
	}
	return l.apply(ctx, EntryReserve, lineID, amount, types.Zero(), ref, func(line *Line) error {
		if line.Status != StatusApproved {
			return apperror.NewInvalidTransition("budget line", string(line.Status), "reserve")
		}
		available := line.AvailableAmount()
		if available.LessThan(amount) {
			return apperror.NewInsufficientFunds(line.ID, amount.StringFixed(2), available.StringFixed(2))
		}
		line.Committed = line.Committed.Add(amount)
		return nil
	})
}

// Release returns committed amount to available.
// Fails with INVALID_RELEASE when amount exceeds committed.
func (l *Ledger) Release(ctx context.Context, lineID id.ID, amount types.Money, ref Ref) (*Line, error) {
	if !amount.IsPositive() {
		return nil, apperror.NewValidation("release amount must be positive").WithDetail("amount", amount.String())
	}
	return l.apply(ctx, EntryRelease, lineID, amount, types.Zero(), ref, func(line *Line) error {
		if amount.GreaterThan(line.Committed) {
			return apperror.NewInvalidRelease(line.ID, amount.StringFixed(2), line.Committed.StringFixed(2))
		}
		line.Committed = line.Committed.Sub(amount)
		return nil
	})
}

// Consume converts a reservation into actual spend.
//
// committed decreases by reserved (the amount originally reserved for the
// invoiced goods) and spent increases by invoiced. An invoiced amount above
// the reservation is an over-run, handled by the configured policy: under
// OverrunReserveExcess the excess must fit the available amount, under
// OverrunReject any excess fails. Both failures are BUDGET_EXCEEDED.
func (l *Ledger) Consume(ctx context.Context, lineID id.ID, reserved, invoiced types.Money, ref Ref) (*Line, error) {
	if reserved.IsNegative() {
		return nil, apperror.NewValidation("reserved amount cannot be negative").WithDetail("reserved", reserved.String())
	}
	if !invoiced.IsPositive() {
		return nil, apperror.NewValidation("invoiced amount must be positive").WithDetail("invoiced", invoiced.String())
	}
	return l.apply(ctx, EntryConsume, lineID, invoiced, reserved, ref, func(line *Line) error {
		if reserved.GreaterThan(line.Committed) {
			return apperror.NewInvalidRelease(line.ID, reserved.StringFixed(2), line.Committed.StringFixed(2))
		}

		excess := invoiced.Sub(reserved)
		if excess.IsPositive() {
			if l.policy == OverrunReject {
				return apperror.NewBudgetExceeded(fmt.Sprintf(
					"invoiced amount %s exceeds the reservation of %s",
					invoiced.StringFixed(2), reserved.StringFixed(2))).
					WithDetail("excess", excess.StringFixed(2))
			}
			if available := line.AvailableAmount(); available.LessThan(excess) {
				return apperror.NewBudgetExceeded(fmt.Sprintf(
					"invoiced amount exceeds the reservation by %s but only %s is available",
					excess.StringFixed(2), available.StringFixed(2))).
					WithDetail("excess", excess.StringFixed(2)).
					WithDetail("available", available.StringFixed(2))
			}
		}

		line.Committed = line.Committed.Sub(reserved)
		line.Spent = line.Spent.Add(invoiced)
		return nil
	})
}

// apply runs mutate on a locked copy of the line and persists it with a journal entry.
func (l *Ledger) apply(
	ctx context.Context,
	kind EntryKind,
	lineID id.ID,
	amount, reserved types.Money,
	ref Ref,
	mutate func(line *Line) error,
) (*Line, error) {
	ctx, span := tracer.Start(ctx, "budget."+string(kind))
	defer span.End()

	var result *Line
	err := l.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		line, err := l.repo.GetForUpdate(ctx, lineID)
		if err != nil {
			return err
		}
		if err := line.CheckLive(Machine.Entity()); err != nil {
			return err
		}

		before := line.AvailableAmount()
		if err := mutate(line); err != nil {
			return err
		}
		if err := line.checkBalances(); err != nil {
			return err
		}
		line.Available = line.AvailableAmount()

		if err := l.repo.SaveBalances(ctx, line); err != nil {
			return err
		}
		if err := l.repo.AppendEntry(ctx, &Entry{
			ID:             id.New(),
			BudgetLineID:   line.ID,
			Kind:           kind,
			Amount:         amount,
			Reserved:       reserved,
			DocumentType:   ref.DocumentType,
			DocumentID:     ref.DocumentID,
			Actor:          ref.Actor,
			CommittedAfter: line.Committed,
			SpentAfter:     line.Spent,
			CreatedAt:      time.Now().UTC(),
		}); err != nil {
			return err
		}

		logger.Debug(ctx, "budget ledger "+string(kind),
			"budget_line_id", line.ID,
			"amount", amount.String(),
			"available_before", before.String(),
			"available_after", line.Available.String(),
			"document_type", ref.DocumentType,
			"document_id", ref.DocumentID)
		result = line
		return nil
	})

	outcome := "ok"
	if err != nil {
		outcome = "failed"
		if appErr, ok := apperror.AsAppError(err); ok {
			outcome = appErr.Code
		}
	}
	l.ops.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("outcome", outcome)))

	if err != nil {
		return nil, err
	}
	return result, nil
}
