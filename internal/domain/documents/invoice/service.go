package invoice

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
	"procura/internal/domain/budget"
	gr "procura/internal/domain/documents/goods_receipt"
	po "procura/internal/domain/documents/purchase_order"
	"procura/internal/domain/matching"
	"procura/pkg/logger"
)

// CreateCommand registers a supplier invoice against an order.
type CreateCommand struct {
	PurchaseOrderID       id.ID
	GoodsReceiptID        *id.ID
	SupplierInvoiceNumber string
	InvoiceDate           time.Time
	DueDate               *time.Time
	Tax                   types.Money
	Lines                 []LineInput
}

// UpdateCommand replaces the editable content of a draft invoice.
type UpdateCommand struct {
	ID      id.ID
	Version int
	CreateCommand
}

// Service provides business operations for supplier invoices.
type Service struct {
	repo      Repository
	orders    po.Repository
	receipts  gr.Repository
	validator *matching.Validator
	ledger    *budget.Ledger
	numerator numerator.Generator
	txManager tx.Manager
	events    domain.EventPublisher
	now       func() time.Time
}

// NewService creates an invoice service. A nil publisher discards events.
func NewService(
	repo Repository,
	orders po.Repository,
	receipts gr.Repository,
	validator *matching.Validator,
	ledger *budget.Ledger,
	numerator numerator.Generator,
	txManager tx.Manager,
	events domain.EventPublisher,
) *Service {
	if events == nil {
		events = domain.NopPublisher{}
	}
	return &Service{
		repo:      repo,
		orders:    orders,
		receipts:  receipts,
		validator: validator,
		ledger:    ledger,
		numerator: numerator,
		txManager: txManager,
		events:    events,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create registers a draft invoice. Supplier and currency come from the order.
func (s *Service) Create(ctx context.Context, actor string, cmd CreateCommand) (*Invoice, error) {
	if err := entity.RequireActor(actor); err != nil {
		return nil, err
	}

	number, err := s.numerator.GetNextNumber(ctx, NumberConfig(), s.now())
	if err != nil {
		return nil, fmt.Errorf("generate number: %w", err)
	}

	doc := New(actor)
	doc.Number = number
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.apply(ctx, doc, cmd); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return s.publish(ctx, doc, "invoice.created", actor)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "invoice created",
		"id", doc.ID,
		"number", doc.Number,
		"supplier_invoice_number", doc.SupplierInvoiceNumber,
		"total", doc.Total.String(),
		"actor", actor)
	return doc, nil
}

// Update replaces the content of a draft invoice.
func (s *Service) Update(ctx context.Context, actor string, cmd UpdateCommand) (*Invoice, error) {
	if err := entity.RequireActor(actor); err != nil {
		return nil, err
	}

	var doc *Invoice
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.load(ctx, cmd.ID, true)
		if err != nil {
			return err
		}
		if err := doc.CheckVersion(AggregateType, cmd.Version); err != nil {
			return err
		}
		if doc.Status != StatusDraft {
			return apperror.NewInvalidTransition(Machine.Entity(), string(doc.Status), "update")
		}
		if err := s.apply(ctx, doc, cmd.CreateCommand); err != nil {
			return err
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

// Submit sends a draft invoice for verification.
func (s *Service) Submit(ctx context.Context, actor string, docID id.ID) (*Invoice, error) {
	if err := entity.RequireActor(actor); err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, docID, EventSubmit, nil)
}

// Resubmit returns a rejected invoice to draft for correction.
func (s *Service) Resubmit(ctx context.Context, actor string, docID id.ID) (*Invoice, error) {
	if err := entity.RequireActor(actor); err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, docID, EventResubmit, func(_ context.Context, doc *Invoice) error {
		doc.Discrepancies = nil
		return nil
	})
}

// Verify runs the three-way match on a submitted invoice.
//
// On a pass the invoice becomes verified and, in the same transaction, the
// order's reservation for the invoiced quantities is consumed on the budget
// line and the invoiced quantities are recorded on the order. On a failure
// the invoice moves to rejected with the discrepancy report, that state is
// committed, and MATCH_FAILURE is returned together with the rejected invoice.
func (s *Service) Verify(ctx context.Context, actor string, docID id.ID) (*Invoice, error) {
	if err := entity.RequireActor(actor); err != nil {
		return nil, err
	}

	var doc *Invoice
	var result matching.Result
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.load(ctx, docID, true)
		if err != nil {
			return err
		}
		if err := Machine.Check(doc.Status, EventVerify); err != nil {
			return err
		}

		order, err := po.Load(ctx, s.orders, doc.PurchaseOrderID, true)
		if err != nil {
			return err
		}
		result, err = s.match(ctx, order, doc)
		if err != nil {
			return err
		}

		if !result.Passed {
			if err := doc.Fire(EventFailMatch); err != nil {
				return err
			}
			doc.Discrepancies = result.Discrepancies
			if err := s.save(ctx, doc, actor); err != nil {
				return err
			}
			return s.publish(ctx, doc, "invoice.match_failed", actor)
		}

		reserved := reservedPortion(order, doc)
		if order.BudgetLineID != nil {
			ref := budget.Ref{DocumentType: AggregateType, DocumentID: doc.ID, Actor: actor}
			if _, err := s.ledger.Consume(ctx, *order.BudgetLineID, reserved, doc.Total, ref); err != nil {
				return err
			}
			order.Committed = order.Committed.Sub(reserved)
		}
		for _, line := range doc.Lines {
			orderLine, err := order.Line(line.PurchaseOrderLineID)
			if err != nil {
				return err
			}
			orderLine.Invoiced += line.Quantity
		}
		if err := po.Save(ctx, s.orders, order, actor); err != nil {
			return err
		}

		if err := doc.Fire(EventVerify); err != nil {
			return err
		}
		now := s.now()
		doc.VerifiedBy = actor
		doc.VerifiedAt = &now
		doc.Consumed = reserved
		doc.Discrepancies = nil
		if err := s.save(ctx, doc, actor); err != nil {
			return err
		}
		return s.publish(ctx, doc, "invoice.verified", actor)
	})
	if err != nil {
		return nil, err
	}

	if !result.Passed {
		logger.Info(ctx, "invoice failed three-way match",
			"id", doc.ID,
			"number", doc.Number,
			"discrepancies", len(result.Discrepancies),
			"actor", actor)
		return doc, apperror.NewMatchFailure(result.Discrepancies)
	}

	logger.Info(ctx, "invoice verified",
		"id", doc.ID,
		"number", doc.Number,
		"total", doc.Total.String(),
		"consumed", doc.Consumed.String(),
		"actor", actor)
	return doc, nil
}

// CheckMatch evaluates the three-way match without changing anything.
func (s *Service) CheckMatch(ctx context.Context, docID id.ID) (matching.Result, error) {
	doc, err := s.load(ctx, docID, false)
	if err != nil {
		return matching.Result{}, err
	}
	order, err := po.Load(ctx, s.orders, doc.PurchaseOrderID, false)
	if err != nil {
		return matching.Result{}, err
	}
	return s.match(ctx, order, doc)
}

// Get returns an invoice with its lines.
func (s *Service) Get(ctx context.Context, docID id.ID) (*Invoice, error) {
	return s.load(ctx, docID, false)
}

// List retrieves invoices with filtering. Lines are not loaded.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Invoice], error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) match(ctx context.Context, order *po.PurchaseOrder, doc *Invoice) (matching.Result, error) {
	receipts, err := s.receipts.ListPosted(ctx, order.ID)
	if err != nil {
		return matching.Result{}, fmt.Errorf("list posted receipts: %w", err)
	}

	in := matching.Input{
		Order:   make([]matching.OrderLine, 0, len(order.Lines)),
		Invoice: make([]matching.InvoiceLine, 0, len(doc.Lines)),
	}
	for _, l := range order.Lines {
		in.Order = append(in.Order, matching.OrderLine{
			ID:        l.ID,
			LineNo:    l.LineNo,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Invoiced:  l.Invoiced,
		})
	}
	for _, r := range receipts {
		for _, l := range r.Lines {
			in.Receipts = append(in.Receipts, matching.ReceiptLine{OrderLineID: l.PurchaseOrderLineID, Accepted: l.Accepted})
		}
	}
	for _, l := range doc.Lines {
		in.Invoice = append(in.Invoice, matching.InvoiceLine{
			LineNo:      l.LineNo,
			OrderLineID: l.PurchaseOrderLineID,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
		})
	}
	return s.validator.Match(in), nil
}

// apply validates cmd against the order and copies it onto doc.
func (s *Service) apply(ctx context.Context, doc *Invoice, cmd CreateCommand) error {
	order, err := po.Load(ctx, s.orders, cmd.PurchaseOrderID, false)
	if err != nil {
		return err
	}
	if order.Status == po.StatusDraft {
		return apperror.NewValidation(fmt.Sprintf("purchase order %s has not been issued", order.Number)).
			WithDetail("field", "purchaseOrderId")
	}
	if cmd.GoodsReceiptID != nil {
		receipt, err := s.receipts.GetByID(ctx, *cmd.GoodsReceiptID)
		if err != nil {
			return err
		}
		if receipt.PurchaseOrderID != order.ID {
			return apperror.NewValidation(fmt.Sprintf("goods receipt %s belongs to another purchase order", receipt.Number)).
				WithDetail("field", "goodsReceiptId")
		}
	}

	lines := make([]LineInput, len(cmd.Lines))
	copy(lines, cmd.Lines)
	for i := range lines {
		if lines[i].Description != "" {
			continue
		}
		if orderLine, err := order.Line(lines[i].PurchaseOrderLineID); err == nil {
			lines[i].Description = orderLine.Description
		}
	}

	doc.PurchaseOrderID = order.ID
	doc.SupplierID = order.SupplierID
	doc.Currency = order.Currency
	doc.GoodsReceiptID = cmd.GoodsReceiptID
	doc.SupplierInvoiceNumber = cmd.SupplierInvoiceNumber
	doc.InvoiceDate = cmd.InvoiceDate
	doc.DueDate = cmd.DueDate
	doc.SetLines(lines)
	doc.SetTax(cmd.Tax)
	if err := doc.Validate(); err != nil {
		return err
	}

	dup, err := s.repo.ExistsSupplierNumber(ctx, doc.SupplierID, doc.SupplierInvoiceNumber, doc.ID)
	if err != nil {
		return fmt.Errorf("check duplicate invoice: %w", err)
	}
	if dup {
		return apperror.NewConflict(fmt.Sprintf("supplier invoice %s is already registered", doc.SupplierInvoiceNumber)).
			WithDetail("field", "supplierInvoiceNumber")
	}
	return nil
}

func (s *Service) transition(
	ctx context.Context,
	actor string,
	docID id.ID,
	event Event,
	guard func(ctx context.Context, doc *Invoice) error,
) (*Invoice, error) {
	var doc *Invoice
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
		if guard != nil {
			if err := guard(ctx, doc); err != nil {
				return err
			}
		}
		if err := doc.Fire(event); err != nil {
			return err
		}
		if err := s.save(ctx, doc, actor); err != nil {
			return err
		}
		return s.publish(ctx, doc, "invoice."+string(event), actor)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "invoice "+string(event),
		"id", doc.ID,
		"number", doc.Number,
		"from", from,
		"to", doc.Status,
		"actor", actor)
	return doc, nil
}

func (s *Service) load(ctx context.Context, docID id.ID, lock bool) (*Invoice, error) {
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
	return doc, nil
}

func (s *Service) save(ctx context.Context, doc *Invoice, actor string) error {
	doc.Touch(actor)
	if err := s.repo.Update(ctx, doc); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, doc *Invoice, eventType, actor string) error {
	return s.events.Publish(ctx, domain.Event{
		AggregateType: AggregateType,
		AggregateID:   doc.ID,
		EventType:     eventType,
		Actor:         actor,
		Payload: map[string]any{
			"number":                doc.Number,
			"status":                doc.Status,
			"supplierId":            doc.SupplierID,
			"supplierInvoiceNumber": doc.SupplierInvoiceNumber,
			"total":                 doc.Total.StringFixed(2),
		},
	})
}

// reservedPortion is the commitment originally reserved for the invoiced
// quantities: quantity times ordered price, capped at what the order still holds.
func reservedPortion(order *po.PurchaseOrder, doc *Invoice) types.Money {
	total := types.Zero()
	for _, line := range doc.Lines {
		if orderLine, err := order.Line(line.PurchaseOrderLineID); err == nil {
			total = total.Add(line.Quantity.Times(orderLine.UnitPrice))
		}
	}
	total = types.RoundMoney(total)
	if total.GreaterThan(order.Committed) {
		return order.Committed
	}
	return total
}
