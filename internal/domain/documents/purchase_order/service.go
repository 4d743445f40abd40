package purchase_order

import (
	"context"
	"fmt"
	"time"

	"procura/internal/core/apperror"
	"procura/internal/core/entity"
	"procura/internal/core/id"
	"procura/internal/core/numerator"
	"procura/internal/core/tx"
	"procura/internal/domain"
	"procura/internal/domain/budget"
	"procura/internal/domain/documents/requisition"
	"procura/internal/domain/supplier"
	"procura/pkg/logger"
)

// ConvertCommand raises an order from an approved requisition.
// Without lines, the requisition's lines are ordered at their estimated prices.
type ConvertCommand struct {
	RequisitionID id.ID
	SupplierID    id.ID
	Lines         []LineInput
}

// Service provides business operations for purchase orders.
type Service struct {
	repo         Repository
	requisitions requisition.Repository
	suppliers    supplier.Repository
	ledger       *budget.Ledger
	numerator    numerator.Generator
	txManager    tx.Manager
	events       domain.EventPublisher
	now          func() time.Time
}

// NewService creates a purchase order service. A nil publisher discards events.
func NewService(
	repo Repository,
	requisitions requisition.Repository,
	suppliers supplier.Repository,
	ledger *budget.Ledger,
	numerator numerator.Generator,
	txManager tx.Manager,
	events domain.EventPublisher,
) *Service {
	if events == nil {
		events = domain.NopPublisher{}
	}
	return &Service{
		repo:         repo,
		requisitions: requisitions,
		suppliers:    suppliers,
		ledger:       ledger,
		numerator:    numerator,
		txManager:    txManager,
		events:       events,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// CreateFromRequisition converts an approved requisition into a draft order.
//
// The order total may not exceed the requisition's reservation (or its total
// when unbudgeted). Any reservation surplus is released, so the order's
// commitment equals its total.
func (s *Service) CreateFromRequisition(ctx context.Context, actor string, cmd ConvertCommand) (*PurchaseOrder, error) {
	if err := entity.RequireActor(actor); err != nil {
		return nil, err
	}

	number, err := s.numerator.GetNextNumber(ctx, NumberConfig(), s.now())
	if err != nil {
		return nil, fmt.Errorf("generate number: %w", err)
	}

	var po *PurchaseOrder
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		req, err := s.requisitions.GetForUpdate(ctx, cmd.RequisitionID)
		if err != nil {
			return err
		}
		if err := req.CheckLive(requisition.Machine.Entity()); err != nil {
			return err
		}
		if err := requisition.Machine.Check(req.Status, requisition.EventConvert); err != nil {
			return err
		}
		if req.Lines, err = s.requisitions.GetLines(ctx, req.ID); err != nil {
			return fmt.Errorf("get requisition lines: %w", err)
		}

		sup, err := s.suppliers.GetByID(ctx, cmd.SupplierID)
		if err != nil {
			return err
		}
		if !sup.Active {
			return apperror.NewValidation(fmt.Sprintf("supplier %s is inactive", sup.Code)).
				WithDetail("field", "supplierId")
		}

		po = New(actor)
		po.Number = number
		po.SupplierID = sup.ID
		po.RequisitionID = req.ID
		po.Department = req.Department
		po.Currency = req.Currency
		po.BudgetLineID = req.BudgetLineID
		po.SetLines(linesFor(req, cmd.Lines))
		if err := po.Validate(); err != nil {
			return err
		}

		limit := req.Total
		if req.BudgetLineID != nil {
			limit = req.Reserved
		}
		if po.Total.GreaterThan(limit) {
			return apperror.NewBudgetExceeded(fmt.Sprintf(
				"purchase order total %s exceeds the approved reservation of %s",
				po.Total.StringFixed(2), limit.StringFixed(2))).
				WithDetail("total", po.Total.StringFixed(2)).
				WithDetail("reserved", limit.StringFixed(2))
		}

		if req.BudgetLineID != nil {
			if surplus := req.Reserved.Sub(po.Total); surplus.IsPositive() {
				if _, err := s.ledger.Release(ctx, *req.BudgetLineID, surplus, s.ref(po, actor)); err != nil {
					return err
				}
			}
			po.Committed = po.Total
		}

		if err := req.Fire(requisition.EventConvert); err != nil {
			return err
		}
		req.Touch(actor)
		if err := s.requisitions.Update(ctx, req); err != nil {
			return fmt.Errorf("update requisition: %w", err)
		}

		if err := s.repo.Create(ctx, po); err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		if err := s.repo.SaveLines(ctx, po.ID, po.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return s.publish(ctx, po, "purchase_order.created", actor)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "purchase order created",
		"id", po.ID,
		"number", po.Number,
		"requisition_id", po.RequisitionID,
		"total", po.Total.String(),
		"actor", actor)
	return po, nil
}

// Issue sends a draft order to the supplier.
func (s *Service) Issue(ctx context.Context, actor string, docID id.ID) (*PurchaseOrder, error) {
	if err := entity.RequireActor(actor); err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, docID, EventIssue, func(_ context.Context, po *PurchaseOrder) error {
		now := s.now()
		po.IssuedAt = &now
		return nil
	})
}

// Acknowledge records the supplier's confirmation of an issued order.
func (s *Service) Acknowledge(ctx context.Context, actor string, docID id.ID, supplierRef string) (*PurchaseOrder, error) {
	if err := entity.RequireActor(actor); err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, docID, EventAcknowledge, func(_ context.Context, po *PurchaseOrder) error {
		now := s.now()
		po.AcknowledgedAt = &now
		po.SupplierRef = supplierRef
		return nil
	})
}

// Cancel cancels an order that is not fully received.
//
// Cancellation is refused while receipts still hold quantity. The commitment
// attached to unreceived quantity is released in the same transaction; the
// part covering received but not yet invoiced goods stays committed.
func (s *Service) Cancel(ctx context.Context, actor string, docID id.ID, reason string) (*PurchaseOrder, error) {
	if err := entity.RequireActor(actor); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, apperror.NewValidation("a cancellation reason is required").WithDetail("field", "reason")
	}

	return s.transition(ctx, actor, docID, EventCancel, func(ctx context.Context, po *PurchaseOrder) error {
		if po.HasPendingReceipts() {
			return apperror.NewInvalidTransition(Machine.Entity(), string(po.Status), string(EventCancel)).
				WithDetail("reason", "receipts are awaiting inspection or posting")
		}

		release := po.UnreceivedValue()
		if release.GreaterThan(po.Committed) {
			release = po.Committed
		}
		if po.BudgetLineID != nil && release.IsPositive() {
			if _, err := s.ledger.Release(ctx, *po.BudgetLineID, release, s.ref(po, actor)); err != nil {
				return err
			}
			po.Committed = po.Committed.Sub(release)
		}
		po.CancelReason = reason
		return nil
	})
}

// Get returns an order with its lines.
func (s *Service) Get(ctx context.Context, docID id.ID) (*PurchaseOrder, error) {
	return Load(ctx, s.repo, docID, false)
}

// List retrieves orders with filtering. Lines are not loaded.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*PurchaseOrder], error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) transition(
	ctx context.Context,
	actor string,
	docID id.ID,
	event Event,
	guard func(ctx context.Context, po *PurchaseOrder) error,
) (*PurchaseOrder, error) {
	var po *PurchaseOrder
	var from Status
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		po, err = Load(ctx, s.repo, docID, true)
		if err != nil {
			return err
		}

		from = po.Status
		if err := Machine.Check(from, event); err != nil {
			return err
		}
		if err := guard(ctx, po); err != nil {
			return err
		}
		if err := po.Fire(event); err != nil {
			return err
		}

		if err := Save(ctx, s.repo, po, actor); err != nil {
			return err
		}
		return s.publish(ctx, po, "purchase_order."+string(event), actor)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "purchase order "+string(event),
		"id", po.ID,
		"number", po.Number,
		"from", from,
		"to", po.Status,
		"actor", actor)
	return po, nil
}

func (s *Service) ref(po *PurchaseOrder, actor string) budget.Ref {
	return budget.Ref{DocumentType: AggregateType, DocumentID: po.ID, Actor: actor}
}

func (s *Service) publish(ctx context.Context, po *PurchaseOrder, eventType, actor string) error {
	return s.events.Publish(ctx, domain.Event{
		AggregateType: AggregateType,
		AggregateID:   po.ID,
		EventType:     eventType,
		Actor:         actor,
		Payload: map[string]any{
			"number":     po.Number,
			"status":     po.Status,
			"supplierId": po.SupplierID,
			"total":      po.Total.StringFixed(2),
			"committed":  po.Committed.StringFixed(2),
		},
	})
}

// Load reads an order with its lines, locking the header when lock is set.
// Receipt and invoice services use it to work on the order inside their
// own transaction.
func Load(ctx context.Context, repo Repository, docID id.ID, lock bool) (*PurchaseOrder, error) {
	get := repo.GetByID
	if lock {
		get = repo.GetForUpdate
	}
	po, err := get(ctx, docID)
	if err != nil {
		return nil, err
	}
	if lock {
		if err := po.CheckLive(Machine.Entity()); err != nil {
			return nil, err
		}
	}
	if po.Lines, err = repo.GetLines(ctx, docID); err != nil {
		return nil, fmt.Errorf("get purchase order lines: %w", err)
	}
	return po, nil
}

// Save writes header and lines of an order loaded with Load.
func Save(ctx context.Context, repo Repository, po *PurchaseOrder, actor string) error {
	po.Touch(actor)
	if err := repo.Update(ctx, po); err != nil {
		return fmt.Errorf("update purchase order: %w", err)
	}
	if err := repo.SaveLines(ctx, po.ID, po.Lines); err != nil {
		return fmt.Errorf("save purchase order lines: %w", err)
	}
	return nil
}

func linesFor(req *requisition.Requisition, inputs []LineInput) []LineInput {
	if len(inputs) > 0 {
		return inputs
	}
	out := make([]LineInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		lineID := l.ID
		out = append(out, LineInput{
			RequisitionLineID: &lineID,
			Description:       l.Description,
			Quantity:          l.Quantity,
			UnitPrice:         l.UnitPrice,
		})
	}
	return out
}
