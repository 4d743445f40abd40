package requisition

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
	"procura/internal/domain/budget"
	"procura/pkg/logger"
)

// CreateCommand describes a new requisition.
type CreateCommand struct {
	Department    string
	Currency      string
	Category      string
	Justification string
	BudgetLineID  *id.ID
	Emergency     bool
	SingleSource  bool
	Lines         []LineInput
}

// UpdateCommand replaces the editable content of a draft or rejected requisition.
type UpdateCommand struct {
	ID      id.ID
	Version int
	CreateCommand
}

// Service provides business operations for requisitions.
type Service struct {
	repo      Repository
	approvals approval.Repository
	budgets   budget.Repository
	ledger    *budget.Ledger
	router    *approval.Router
	numerator numerator.Generator
	txManager tx.Manager
	events    domain.EventPublisher
	now       func() time.Time
}

// NewService creates a requisition service. A nil publisher discards events.
func NewService(
	repo Repository,
	approvals approval.Repository,
	budgets budget.Repository,
	ledger *budget.Ledger,
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
		budgets:   budgets,
		ledger:    ledger,
		router:    router,
		numerator: numerator,
		txManager: txManager,
		events:    events,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create registers a draft requisition owned by actor.
func (s *Service) Create(ctx context.Context, actor string, cmd CreateCommand) (*Requisition, error) {
	if err := entity.RequireActor(actor); err != nil {
		return nil, err
	}

	doc := New(actor)
	apply(doc, cmd)
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	number, err := s.numerator.GetNextNumber(ctx, NumberConfig(), s.now())
	if err != nil {
		return nil, fmt.Errorf("generate number: %w", err)
	}
	doc.Number = number

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if doc.BudgetLineID != nil {
			if err := s.checkBudgetLine(ctx, doc); err != nil {
				return err
			}
		}
		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return s.publish(ctx, doc, "requisition.created", actor)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "requisition created",
		"id", doc.ID,
		"number", doc.Number,
		"total", doc.Total.String(),
		"actor", actor)
	return doc, nil
}

// Update replaces content while the requisition is draft or rejected.
// Only the requester may edit.
func (s *Service) Update(ctx context.Context, actor string, cmd UpdateCommand) (*Requisition, error) {
	if err := entity.RequireActor(actor); err != nil {
		return nil, err
	}

	var doc *Requisition
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.load(ctx, cmd.ID, true)
		if err != nil {
			return err
		}
		if err := doc.CheckVersion(AggregateType, cmd.Version); err != nil {
			return err
		}
		if err := s.requireEditable(doc, actor, "update"); err != nil {
			return err
		}

		apply(doc, cmd.CreateCommand)
		if err := doc.Validate(); err != nil {
			return err
		}
		if doc.BudgetLineID != nil {
			if err := s.checkBudgetLine(ctx, doc); err != nil {
				return err
			}
		}

		doc.Touch(actor)
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Delete soft-deletes a draft or rejected requisition.
func (s *Service) Delete(ctx context.Context, actor string, docID id.ID) error {
	if err := entity.RequireActor(actor); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if err := doc.CheckLive(Machine.Entity()); err != nil {
			return err
		}
		if err := s.requireEditable(doc, actor, "delete"); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, docID); err != nil {
			return err
		}
		return s.publish(ctx, doc, "requisition.deleted", actor)
	})
}

// Submit routes the requisition and opens a new approval round.
// The requester level is recorded as approved by the submitter; a chain with
// no higher level approves the requisition, and reserves its total, at once.
func (s *Service) Submit(ctx context.Context, actor string, docID id.ID) (*Requisition, error) {
	if err := entity.RequireActor(actor); err != nil {
		return nil, err
	}

	return s.transition(ctx, actor, docID, EventSubmit, func(ctx context.Context, doc *Requisition) error {
		if doc.RequesterID != actor {
			return apperror.NewForbidden("only the requester can submit a requisition")
		}
		if doc.BudgetLineID != nil {
			if err := s.checkBudgetLine(ctx, doc); err != nil {
				return err
			}
		}

		chain, err := s.router.Route(approval.Input{
			DocumentType: AggregateType,
			Department:   doc.Department,
			Category:     doc.Category,
			Amount:       doc.Total,
			Emergency:    doc.Emergency,
			SingleSource: doc.SingleSource,
		})
		if err != nil {
			return fmt.Errorf("route requisition: %w", err)
		}
		doc.Approvals = doc.Approvals.Open(AggregateType, doc.ID, chain, actor, s.now())
		return nil
	}, func(ctx context.Context, doc *Requisition) error {
		if !doc.Approvals.Complete() {
			return nil
		}
		return s.approveAndReserve(ctx, doc, actor)
	})
}

// Approve records actor's approval at level.
//
// When the last level approves, the requisition becomes approved and its total
// is reserved on the linked budget line in the same transaction; if the
// reservation fails nothing is recorded. Retrying an applied approval is a no-op.
func (s *Service) Approve(ctx context.Context, actor string, docID id.ID, level approval.Level, comments string) (*Requisition, error) {
	if err := entity.RequireActor(actor); err != nil {
		return nil, err
	}

	var doc *Requisition
	var outcome approval.Outcome
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.load(ctx, docID, true)
		if err != nil {
			return err
		}

		if doc.Status != StatusPendingApproval {
			if doc.Approvals.ApprovedBy(level, actor) {
				outcome = approval.OutcomeNoop
				return nil
			}
			return apperror.NewInvalidTransition(Machine.Entity(), string(doc.Status), string(EventApprove))
		}

		outcome, err = doc.Approvals.Approve(level, actor, doc.RequesterID, comments, s.now())
		if err != nil || outcome == approval.OutcomeNoop {
			return err
		}

		if outcome == approval.OutcomeCompleted {
			if err := s.approveAndReserve(ctx, doc, actor); err != nil {
				return err
			}
		}

		if err := s.save(ctx, doc, actor); err != nil {
			return err
		}
		return s.publish(ctx, doc, "requisition.approval_recorded", actor)
	})
	if err != nil {
		return nil, err
	}

	if outcome != approval.OutcomeNoop {
		logger.Info(ctx, "requisition approval recorded",
			"id", doc.ID,
			"number", doc.Number,
			"level", level,
			"status", doc.Status,
			"reserved", doc.Reserved.String(),
			"actor", actor)
	}
	return doc, nil
}

// Reject records a rejection at level, terminating the current round.
func (s *Service) Reject(ctx context.Context, actor string, docID id.ID, level approval.Level, comments string) (*Requisition, error) {
	if err := entity.RequireActor(actor); err != nil {
		return nil, err
	}

	return s.transition(ctx, actor, docID, EventReject, func(_ context.Context, doc *Requisition) error {
		return doc.Approvals.Reject(level, actor, doc.RequesterID, comments, s.now())
	}, nil)
}

// Cancel withdraws the requisition. Cancelling an approved requisition
// releases its reservation in the same transaction.
func (s *Service) Cancel(ctx context.Context, actor string, docID id.ID, reason string) (*Requisition, error) {
	if err := entity.RequireActor(actor); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, apperror.NewValidation("a cancellation reason is required").WithDetail("field", "reason")
	}

	return s.transition(ctx, actor, docID, EventCancel, func(ctx context.Context, doc *Requisition) error {
		if doc.RequesterID != actor {
			return apperror.NewForbidden("only the requester can cancel a requisition")
		}
		if doc.Status == StatusApproved && doc.BudgetLineID != nil && doc.Reserved.IsPositive() {
			if _, err := s.ledger.Release(ctx, *doc.BudgetLineID, doc.Reserved, s.ref(doc, actor)); err != nil {
				return err
			}
			doc.Reserved = types.Zero()
		}
		doc.CancelReason = reason
		return nil
	}, nil)
}

// Get returns a requisition with lines and approval history.
func (s *Service) Get(ctx context.Context, docID id.ID) (*Requisition, error) {
	return s.load(ctx, docID, false)
}

// List retrieves requisitions with filtering. Lines are not loaded.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Requisition], error) {
	return s.repo.List(ctx, filter)
}

// transition loads the document under lock, checks event against the machine,
// runs guard, fires event, runs after (when set) and persists the result.
func (s *Service) transition(
	ctx context.Context,
	actor string,
	docID id.ID,
	event Event,
	guard func(ctx context.Context, doc *Requisition) error,
	after func(ctx context.Context, doc *Requisition) error,
) (*Requisition, error) {
	var doc *Requisition
	var from Status
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.load(ctx, docID, true)
		if err != nil {
			return err
		}

		from = doc.Status
		if err := Machine.Check(from, event); err != nil {
			return err
		}
		if err := guard(ctx, doc); err != nil {
			return err
		}
		if err := doc.Fire(event); err != nil {
			return err
		}
		if after != nil {
			if err := after(ctx, doc); err != nil {
				return err
			}
		}

		if err := s.save(ctx, doc, actor); err != nil {
			return err
		}
		return s.publish(ctx, doc, "requisition."+string(event), actor)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "requisition "+string(event),
		"id", doc.ID,
		"number", doc.Number,
		"from", from,
		"to", doc.Status,
		"actor", actor)
	return doc, nil
}

// approveAndReserve completes approval and reserves the total on the linked line.
func (s *Service) approveAndReserve(ctx context.Context, doc *Requisition, actor string) error {
	if err := doc.Fire(EventApprove); err != nil {
		return err
	}
	if doc.BudgetLineID == nil {
		return nil
	}
	if _, err := s.ledger.Reserve(ctx, *doc.BudgetLineID, doc.Total, s.ref(doc, actor)); err != nil {
		return err
	}
	doc.Reserved = doc.Total
	return nil
}

func (s *Service) requireEditable(doc *Requisition, actor, operation string) error {
	if !doc.IsEditable() {
		return apperror.NewInvalidTransition(Machine.Entity(), string(doc.Status), operation)
	}
	if doc.RequesterID != actor {
		return apperror.NewForbidden("only the requester can " + operation + " a requisition")
	}
	return nil
}

// checkBudgetLine verifies the linked line can fund this requisition.
func (s *Service) checkBudgetLine(ctx context.Context, doc *Requisition) error {
	line, err := s.budgets.GetByID(ctx, *doc.BudgetLineID)
	if err != nil {
		return err
	}
	if err := line.CheckLive(budget.Machine.Entity()); err != nil {
		return err
	}
	if line.Status != budget.StatusApproved {
		return apperror.NewValidation(fmt.Sprintf("budget line %s is not approved", line.Number)).
			WithDetail("field", "budgetLineId")
	}
	if line.Department != doc.Department {
		return apperror.NewValidation(fmt.Sprintf("budget line %s belongs to department %s", line.Number, line.Department)).
			WithDetail("field", "budgetLineId")
	}
	if line.Currency != doc.Currency {
		return apperror.NewValidation(fmt.Sprintf("budget line %s is kept in %s", line.Number, line.Currency)).
			WithDetail("field", "currency")
	}
	return nil
}

func (s *Service) load(ctx context.Context, docID id.ID, lock bool) (*Requisition, error) {
	get := s.repo.GetByID
	if lock {
		get = s.repo.GetForUpdate
	}
	doc, err := get(ctx, docID)
	if err != nil {
		return nil, err
	}
	if lock {
		if err := doc.CheckLive(Machine.Entity()); err != nil {
			return nil, err
		}
	}
	if doc.Lines, err = s.repo.GetLines(ctx, docID); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	if doc.Approvals, err = s.approvals.GetTrail(ctx, AggregateType, docID); err != nil {
		return nil, fmt.Errorf("get approvals: %w", err)
	}
	return doc, nil
}

func (s *Service) save(ctx context.Context, doc *Requisition, actor string) error {
	doc.Touch(actor)
	if err := s.repo.Update(ctx, doc); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if err := s.approvals.SaveTrail(ctx, doc.Approvals); err != nil {
		return fmt.Errorf("save approvals: %w", err)
	}
	return nil
}

func (s *Service) ref(doc *Requisition, actor string) budget.Ref {
	return budget.Ref{DocumentType: AggregateType, DocumentID: doc.ID, Actor: actor}
}

func (s *Service) publish(ctx context.Context, doc *Requisition, eventType, actor string) error {
	return s.events.Publish(ctx, domain.Event{
		AggregateType: AggregateType,
		AggregateID:   doc.ID,
		EventType:     eventType,
		Actor:         actor,
		Payload: map[string]any{
			"number":     doc.Number,
			"status":     doc.Status,
			"department": doc.Department,
			"total":      doc.Total.StringFixed(2),
		},
	})
}

// apply copies command fields onto doc and rebuilds its lines.
func apply(doc *Requisition, cmd CreateCommand) {
	doc.Department = cmd.Department
	doc.Currency = cmd.Currency
	doc.Category = cmd.Category
	doc.Justification = cmd.Justification
	doc.BudgetLineID = cmd.BudgetLineID
	doc.Emergency = cmd.Emergency
	doc.SingleSource = cmd.SingleSource
	doc.SetLines(cmd.Lines)
}
