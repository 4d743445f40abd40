package goods_receipt

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
	po "procura/internal/domain/documents/purchase_order"
	"procura/pkg/logger"
)

// ReceiveCommand records a delivery.
type ReceiveCommand struct {
	PurchaseOrderID id.ID
	DeliveryNote    string
	Lines           []LineInput
}

// AcceptLine sets the accepted quantity of one receipt line.
type AcceptLine struct {
	LineID   id.ID
	Accepted types.Quantity
}

// AcceptCommand carries the department's acceptance.
// Lines not listed are accepted in full.
type AcceptCommand struct {
	Lines  []AcceptLine
	Reason string
}

// Service provides business operations for goods receipts.
type Service struct {
	repo         Repository
	orders       po.Repository
	numerator    numerator.Generator
	txManager    tx.Manager
	events       domain.EventPublisher
	expiryWindow time.Duration
	now          func() time.Time
}

// NewService creates a goods receipt service. A nil publisher discards events;
// a zero expiry window uses DefaultExpiryWarningWindow.
func NewService(
	repo Repository,
	orders po.Repository,
	numerator numerator.Generator,
	txManager tx.Manager,
	events domain.EventPublisher,
	expiryWindow time.Duration,
) *Service {
	if events == nil {
		events = domain.NopPublisher{}
	}
	if expiryWindow <= 0 {
		expiryWindow = DefaultExpiryWarningWindow
	}
	return &Service{
		repo:         repo,
		orders:       orders,
		numerator:    numerator,
		txManager:    txManager,
		events:       events,
		expiryWindow: expiryWindow,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source used for expiry checks and timestamps.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Receive records a delivery and holds its quantities on the order lines.
// The order row lock serializes concurrent receipts, so received plus held
// quantity never exceeds the ordered quantity.
func (s *Service) Receive(ctx context.Context, actor string, cmd ReceiveCommand) (*GoodsReceipt, error) {
	if err := entity.RequireActor(actor); err != nil {
		return nil, err
	}

	doc := New(actor, s.now())
	doc.PurchaseOrderID = cmd.PurchaseOrderID
	doc.DeliveryNote = cmd.DeliveryNote
	doc.SetLines(cmd.Lines)
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	number, err := s.numerator.GetNextNumber(ctx, NumberConfig(), s.now())
	if err != nil {
		return nil, fmt.Errorf("generate number: %w", err)
	}
	doc.Number = number

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		order, err := po.Load(ctx, s.orders, cmd.PurchaseOrderID, true)
		if err != nil {
			return err
		}
		if !order.CanReceive() {
			return apperror.NewInvalidTransition(po.Machine.Entity(), string(order.Status), "receive")
		}
		for _, line := range doc.Lines {
			if err := order.Hold(line.PurchaseOrderLineID, line.Quantity); err != nil {
				return err
			}
		}
		if err := po.Save(ctx, s.orders, order, actor); err != nil {
			return err
		}

		doc.SupplierID = order.SupplierID
		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return s.publish(ctx, doc, "goods_receipt.received", actor)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "goods receipt recorded",
		"id", doc.ID,
		"number", doc.Number,
		"purchase_order_id", doc.PurchaseOrderID,
		"actor", actor)
	return doc, nil
}

// Inspect records the quality inspection outcome.
func (s *Service) Inspect(ctx context.Context, actor string, docID id.ID, outcome Inspection, notes string) (*GoodsReceipt, error) {
	if err := entity.RequireActor(actor); err != nil {
		return nil, err
	}
	if outcome != InspectionPassed && outcome != InspectionRejected {
		return nil, apperror.NewValidation(fmt.Sprintf("inspection outcome must be %q or %q", InspectionPassed, InspectionRejected)).
			WithDetail("field", "outcome")
	}
	if outcome == InspectionRejected && notes == "" {
		return nil, apperror.NewValidation("notes are required for a failed inspection").WithDetail("field", "notes")
	}

	return s.transition(ctx, actor, docID, EventInspect, func(_ context.Context, doc *GoodsReceipt) error {
		doc.Inspection = outcome
		doc.InspectedBy = actor
		doc.InspectionNotes = notes
		return nil
	})
}

// Accept records the department's acceptance of an inspected receipt.
//
// Acceptance requires a passed inspection and is blocked outright while any
// line expires within the warning window; such receipts must be rejected or
// replaced.
func (s *Service) Accept(ctx context.Context, actor string, docID id.ID, cmd AcceptCommand) (*GoodsReceipt, error) {
	if err := entity.RequireActor(actor); err != nil {
		return nil, err
	}

	accepted := make(map[id.ID]types.Quantity, len(cmd.Lines))
	for _, l := range cmd.Lines {
		accepted[l.LineID] = l.Accepted
	}

	return s.transition(ctx, actor, docID, EventAccept, func(ctx context.Context, doc *GoodsReceipt) error {
		if doc.Inspection != InspectionPassed {
			return apperror.NewInvalidTransition(Machine.Entity(), string(doc.Status), string(EventAccept)).
				WithDetail("inspection", doc.Inspection)
		}

		now := s.now()
		if expiring := doc.ExpiringLines(now, s.expiryWindow); len(expiring) > 0 {
			lineNos := make([]int, 0, len(expiring))
			for _, l := range expiring {
				lineNos = append(lineNos, l.LineNo)
			}
			return apperror.NewInvalidTransition(Machine.Entity(), string(doc.Status), string(EventAccept)).
				WithDetail("reason", fmt.Sprintf("items expire within %d days", int(s.expiryWindow.Hours()/24))).
				WithDetail("lines", lineNos)
		}

		for lineID := range accepted {
			if !hasLine(doc, lineID) {
				return apperror.NewValidation(fmt.Sprintf("receipt %s has no line %s", doc.Number, lineID)).
					WithDetail("field", "lines")
			}
		}

		if err := doc.Accept(accepted, cmd.Reason, now); err != nil {
			return err
		}
		doc.AcceptedBy = actor
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		if len(doc.Discrepancies) > 0 {
			if err := s.repo.AddDiscrepancies(ctx, doc.ID, doc.Discrepancies); err != nil {
				return fmt.Errorf("save discrepancies: %w", err)
			}
		}
		return nil
	})
}

// Reject refuses the delivery and releases its hold on the order lines.
func (s *Service) Reject(ctx context.Context, actor string, docID id.ID, reason string) (*GoodsReceipt, error) {
	if err := entity.RequireActor(actor); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, apperror.NewValidation("a rejection reason is required").WithDetail("field", "reason")
	}

	return s.transition(ctx, actor, docID, EventReject, func(ctx context.Context, doc *GoodsReceipt) error {
		order, err := po.Load(ctx, s.orders, doc.PurchaseOrderID, true)
		if err != nil {
			return err
		}
		for _, line := range doc.Lines {
			if err := order.ReleaseHold(line.PurchaseOrderLineID, line.Quantity); err != nil {
				return err
			}
		}
		if err := po.Save(ctx, s.orders, order, actor); err != nil {
			return err
		}

		doc.Acceptance = AcceptanceRejected
		doc.RejectionReason = reason
		return nil
	})
}

// Post moves accepted quantities into the order's received quantities and
// advances the order to partially or fully received.
func (s *Service) Post(ctx context.Context, actor string, docID id.ID) (*GoodsReceipt, error) {
	if err := entity.RequireActor(actor); err != nil {
		return nil, err
	}

	return s.transition(ctx, actor, docID, EventPost, func(ctx context.Context, doc *GoodsReceipt) error {
		order, err := po.Load(ctx, s.orders, doc.PurchaseOrderID, true)
		if err != nil {
			return err
		}
		for _, line := range doc.Lines {
			if err := order.ApplyReceipt(line.PurchaseOrderLineID, line.Quantity, line.Accepted); err != nil {
				return fmt.Errorf("apply receipt line %d: %w", line.LineNo, err)
			}
		}
		if err := order.Fire(order.ReceiptEvent()); err != nil {
			return err
		}
		if err := po.Save(ctx, s.orders, order, actor); err != nil {
			return err
		}

		now := s.now()
		doc.PostedAt = &now
		return nil
	})
}

// Get returns a receipt with lines and discrepancies.
func (s *Service) Get(ctx context.Context, docID id.ID) (*GoodsReceipt, error) {
	return s.load(ctx, docID, false)
}

// List retrieves receipts with filtering. Lines are not loaded.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*GoodsReceipt], error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) transition(
	ctx context.Context,
	actor string,
	docID id.ID,
	event Event,
	guard func(ctx context.Context, doc *GoodsReceipt) error,
) (*GoodsReceipt, error) {
	var doc *GoodsReceipt
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

		doc.Touch(actor)
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		return s.publish(ctx, doc, "goods_receipt."+string(event), actor)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "goods receipt "+string(event),
		"id", doc.ID,
		"number", doc.Number,
		"from", from,
		"to", doc.Status,
		"actor", actor)
	return doc, nil
}

func (s *Service) load(ctx context.Context, docID id.ID, lock bool) (*GoodsReceipt, error) {
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
	if doc.Discrepancies, err = s.repo.GetDiscrepancies(ctx, docID); err != nil {
		return nil, fmt.Errorf("get discrepancies: %w", err)
	}
	return doc, nil
}

func (s *Service) publish(ctx context.Context, doc *GoodsReceipt, eventType, actor string) error {
	return s.events.Publish(ctx, domain.Event{
		AggregateType: AggregateType,
		AggregateID:   doc.ID,
		EventType:     eventType,
		Actor:         actor,
		Payload: map[string]any{
			"number":          doc.Number,
			"status":          doc.Status,
			"purchaseOrderId": doc.PurchaseOrderID,
			"inspection":      doc.Inspection,
			"acceptance":      doc.Acceptance,
		},
	})
}

func hasLine(doc *GoodsReceipt, lineID id.ID) bool {
	for _, l := range doc.Lines {
		if l.ID == lineID {
			return true
		}
	}
	return false
}
