package budget

import (
	"context"
	"fmt"
	"time"

	"procura/internal/core/apperror"
	"procura/internal/core/entity"
	"procura/internal/core/id"
	"procura/internal/core/numerator"
	"procura/internal/core/tx"
	"procura/internal/core/types"
	"procura/internal/domain"
	"procura/internal/domain/approval"
	"procura/pkg/logger"
)

// AggregateType names budget lines in events and approval records.
const AggregateType = approval.DocumentBudgetLine

// CreateCommand describes a new budget line.
type CreateCommand struct {
	Department  string
	FiscalYear  int
	Category    string
	Currency    string
	Description string
	Allocated   types.Money
}

// UpdateCommand revises a draft or rejected line.
type UpdateCommand struct {
	ID          id.ID
	Version     int
	Category    string
	Description string
	Allocated   types.Money
}

// Service runs the budget line review lifecycle and exposes ledger reads.
type Service struct {
	repo      Repository
	approvals approval.Repository
	ledger    *Ledger
	router    *approval.Router
	numerator numerator.Generator
	txManager tx.Manager
	events    domain.EventPublisher
	now       func() time.Time
}

// NewService creates a budget service. A nil publisher discards events.
func NewService(
	repo Repository,
	approvals approval.Repository,
	ledger *Ledger,
	router *approval.Router,
	numerator numerator.Generator,
	txManager tx.Manager,
	events domain.EventPublisher,
) *Service {
	if events == nil {
		events = domain.NopPublisher{}
	}
	return &Service{
		repo:      repo,
		approvals: approvals,
		ledger:    ledger,
		router:    router,
		numerator: numerator,
		txManager: txManager,
		events:    events,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Ledger returns the ledger bound to this service's repository.
func (s *Service) Ledger() *Ledger { return s.ledger }

// Create registers a draft budget line.
func (s *Service) Create(ctx context.Context, actor string, cmd CreateCommand) (*Line, error) {
	if err := entity.RequireActor(actor); err != nil {
		return nil, err
	}

	line := NewLine(actor)
	line.Department = cmd.Department
	line.FiscalYear = cmd.FiscalYear
	line.Category = cmd.Category
	line.Currency = cmd.Currency
	line.Description = cmd.Description
	line.Allocated = cmd.Allocated
	line.Available = line.AvailableAmount()
	if err := line.Validate(); err != nil {
		return nil, err
	}

	number, err := s.numerator.GetNextNumber(ctx, numerator.CachedConfig(numerator.PrefixBudgetLine), s.now())
	if err != nil {
		return nil, fmt.Errorf("generate number: %w", err)
	}
	line.Number = number

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, line); err != nil {
			return fmt.Errorf("create budget line: %w", err)
		}
		return s.publish(ctx, line, "budget_line.created", actor)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "budget line created",
		"id", line.ID,
		"number", line.Number,
		"department", line.Department,
		"allocated", line.Allocated.String(),
		"actor", actor)
	return line, nil
}

// Update revises header and allocation while the line is draft or rejected.
func (s *Service) Update(ctx context.Context, actor string, cmd UpdateCommand) (*Line, error) {
	if err := entity.RequireActor(actor); err != nil {
		return nil, err
	}

	var line *Line
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		line, err = s.load(ctx, cmd.ID, true)
		if err != nil {
			return err
		}
		if err := line.CheckVersion(AggregateType, cmd.Version); err != nil {
			return err
		}
		if !line.IsEditable() {
			return apperror.NewInvalidTransition(Machine.Entity(), string(line.Status), "update")
		}

		line.Category = cmd.Category
		line.Description = cmd.Description
		line.Allocated = cmd.Allocated
		line.Available = line.AvailableAmount()
		if err := line.Validate(); err != nil {
			return err
		}
		line.Touch(actor)
		return s.repo.Update(ctx, line)
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// Delete soft-deletes a line that carries no commitment or spend.
func (s *Service) Delete(ctx context.Context, actor string, lineID id.ID) error {
	if err := entity.RequireActor(actor); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		line, err := s.repo.GetForUpdate(ctx, lineID)
		if err != nil {
			return err
		}
		if err := line.CheckLive(Machine.Entity()); err != nil {
			return err
		}
		if line.Status == StatusPendingReview {
			return apperror.NewInvalidTransition(Machine.Entity(), string(line.Status), "delete")
		}
		if !line.Committed.IsZero() || !line.Spent.IsZero() {
			return apperror.NewConflict("budget line with committed or spent amounts cannot be deleted").
				WithDetail("committed", line.Committed.StringFixed(2)).
				WithDetail("spent", line.Spent.StringFixed(2))
		}
		if err := s.repo.Delete(ctx, lineID); err != nil {
			return err
		}
		return s.publish(ctx, line, "budget_line.deleted", actor)
	})
}

// Submit sends the line for review and opens a new approval round.
func (s *Service) Submit(ctx context.Context, actor string, lineID id.ID) (*Line, error) {
	if err := entity.RequireActor(actor); err != nil {
		return nil, err
	}

	return s.transition(ctx, actor, lineID, EventSubmit, func(line *Line) error {
		chain, err := s.router.Route(approval.Input{
			DocumentType: AggregateType,
			Department:   line.Department,
			Category:     line.Category,
			Amount:       line.Allocated,
		})
		if err != nil {
			return fmt.Errorf("route budget line: %w", err)
		}
		// A line is always reviewed by someone other than its creator.
		if chain.Highest() == approval.LevelRequester {
			chain.Levels = append(chain.Levels, approval.LevelHOD)
		}
		line.Approvals = line.Approvals.Open(AggregateType, line.ID, chain, actor, s.now())
		return nil
	})
}

// Approve records a review decision at level. The line becomes approved,
// and reservable, once every level of the round is approved.
func (s *Service) Approve(ctx context.Context, actor string, lineID id.ID, level approval.Level, comments string) (*Line, error) {
	if err := entity.RequireActor(actor); err != nil {
		return nil, err
	}

	var line *Line
	var outcome approval.Outcome
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		line, err = s.load(ctx, lineID, true)
		if err != nil {
			return err
		}

		// A retry of an applied approval reports success without touching the line.
		if line.Status != StatusPendingReview {
			if line.Approvals.ApprovedBy(level, actor) {
				outcome = approval.OutcomeNoop
				return nil
			}
			return apperror.NewInvalidTransition(Machine.Entity(), string(line.Status), string(EventApprove))
		}

		outcome, err = line.Approvals.Approve(level, actor, line.CreatedBy, comments, s.now())
		if err != nil || outcome == approval.OutcomeNoop {
			return err
		}
		if outcome == approval.OutcomeCompleted {
			if line.Status, err = Machine.Fire(line.Status, EventApprove); err != nil {
				return err
			}
		}
		if err := s.save(ctx, line, actor); err != nil {
			return err
		}
		return s.publish(ctx, line, "budget_line.approval_recorded", actor)
	})
	if err != nil {
		return nil, err
	}

	if outcome != approval.OutcomeNoop {
		logger.Info(ctx, "budget line approval recorded",
			"id", line.ID,
			"number", line.Number,
			"level", level,
			"status", line.Status,
			"actor", actor)
	}
	return line, nil
}

// Reject ends the review round; the creator revises and resubmits.
func (s *Service) Reject(ctx context.Context, actor string, lineID id.ID, level approval.Level, comments string) (*Line, error) {
	if err := entity.RequireActor(actor); err != nil {
		return nil, err
	}

	return s.transition(ctx, actor, lineID, EventReject, func(line *Line) error {
		return line.Approvals.Reject(level, actor, line.CreatedBy, comments, s.now())
	})
}

// Reallocate changes the allocation of an approved line.
// The new allocation must still cover committed + spent.
func (s *Service) Reallocate(ctx context.Context, actor string, lineID id.ID, allocated types.Money) (*Line, error) {
	if err := entity.RequireActor(actor); err != nil {
		return nil, err
	}
	if allocated.IsNegative() {
		return nil, apperror.NewValidation("allocated amount cannot be negative").WithDetail("field", "allocated")
	}

	var line *Line
	var previous types.Money
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		line, err = s.load(ctx, lineID, true)
		if err != nil {
			return err
		}
		if line.Status != StatusApproved {
			return apperror.NewInvalidTransition(Machine.Entity(), string(line.Status), "reallocate")
		}

		previous = line.Allocated
		line.Allocated = allocated
		if err := line.checkBalances(); err != nil {
			return err
		}
		line.Available = line.AvailableAmount()
		line.Touch(actor)
		if err := s.repo.Update(ctx, line); err != nil {
			return err
		}
		return s.publish(ctx, line, "budget_line.reallocated", actor)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "budget line reallocated",
		"id", line.ID,
		"number", line.Number,
		"from", previous.String(),
		"to", allocated.String(),
		"actor", actor)
	return line, nil
}

// Get returns a line with its approval history and a freshly computed available amount.
func (s *Service) Get(ctx context.Context, lineID id.ID) (*Line, error) {
	line, err := s.load(ctx, lineID, false)
	if err != nil {
		return nil, err
	}
	line.Available = line.AvailableAmount()
	return line, nil
}

// List returns lines matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Line], error) {
	result, err := s.repo.List(ctx, filter)
	if err != nil {
		return result, err
	}
	for _, line := range result.Items {
		line.Available = line.AvailableAmount()
	}
	return result, nil
}

// Journal returns the ledger entries of a line, oldest first.
func (s *Service) Journal(ctx context.Context, lineID id.ID) ([]*Entry, error) {
	if _, err := s.repo.GetByID(ctx, lineID); err != nil {
		return nil, err
	}
	return s.repo.ListEntries(ctx, lineID)
}

// transition applies event under a row lock, runs guard, and persists the line.
func (s *Service) transition(
	ctx context.Context,
	actor string,
	lineID id.ID,
	event Event,
	guard func(line *Line) error,
) (*Line, error) {
	var line *Line
	var from Status
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		line, err = s.load(ctx, lineID, true)
		if err != nil {
			return err
		}

		from = line.Status
		to, err := Machine.Fire(from, event)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(line); err != nil {
				return err
			}
		}

		line.Status = to
		if err := s.save(ctx, line, actor); err != nil {
			return err
		}
		return s.publish(ctx, line, "budget_line."+string(event), actor)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "budget line "+string(event),
		"id", line.ID,
		"number", line.Number,
		"from", from,
		"to", line.Status,
		"actor", actor)
	return line, nil
}

// load reads a line with its approval trail, locking the row when lock is set.
func (s *Service) load(ctx context.Context, lineID id.ID, lock bool) (*Line, error) {
	get := s.repo.GetByID
	if lock {
		get = s.repo.GetForUpdate
	}
	line, err := get(ctx, lineID)
	if err != nil {
		return nil, err
	}
	if lock {
		if err := line.CheckLive(Machine.Entity()); err != nil {
			return nil, err
		}
	}
	if line.Approvals, err = s.approvals.GetTrail(ctx, AggregateType, lineID); err != nil {
		return nil, fmt.Errorf("get approvals: %w", err)
	}
	return line, nil
}

func (s *Service) save(ctx context.Context, line *Line, actor string) error {
	line.Touch(actor)
	if err := s.repo.Update(ctx, line); err != nil {
		return err
	}
	if err := s.approvals.SaveTrail(ctx, line.Approvals); err != nil {
		return fmt.Errorf("save approvals: %w", err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, line *Line, eventType, actor string) error {
	return s.events.Publish(ctx, domain.Event{
		AggregateType: AggregateType,
		AggregateID:   line.ID,
		EventType:     eventType,
		Actor:         actor,
		Payload: map[string]any{
			"number":     line.Number,
			"status":     line.Status,
			"department": line.Department,
			"allocated":  line.Allocated.StringFixed(2),
			"committed":  line.Committed.StringFixed(2),
			"spent":      line.Spent.StringFixed(2),
		},
	})
}
