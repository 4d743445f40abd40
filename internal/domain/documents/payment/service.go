package payment

import (
	"context"
	"fmt"
	"slices"
	"time"

	"procura/internal/core/apperror"
	"procura/internal/core/entity"
	"procura/internal/core/id"
	"procura/internal/core/numerator"
	"procura/internal/core/tx"
	"procura/internal/domain"
	"procura/internal/domain/documents/invoice"
	"procura/internal/domain/supplier"
	"procura/pkg/logger"
)

// CreateCommand drafts a payment for verified invoices of one supplier.
type CreateCommand struct {
	InvoiceIDs    []id.ID
	PaymentMethod Method
}

// Service runs the payment disbursement workflow.
type Service struct {
	repo      Repository
	invoices  invoice.Repository
	suppliers supplier.Repository
	policy    WHTPolicy
	numerator numerator.Generator
	txManager tx.Manager
	events    domain.EventPublisher
	now       func() time.Time
}

// NewService creates a payment service. A nil publisher discards events.
func NewService(
	repo Repository,
	invoices invoice.Repository,
	suppliers supplier.Repository,
	policy WHTPolicy,
	numerator numerator.Generator,
	txManager tx.Manager,
	events domain.EventPublisher,
) *Service {
	if events == nil {
		events = domain.NopPublisher{}
	}
	return &Service{
		repo:      repo,
		invoices:  invoices,
		suppliers: suppliers,
		policy:    policy,
		numerator: numerator,
		txManager: txManager,
		events:    events,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create drafts a payment and allocates the invoices to it.
// Every invoice must be verified, unpaid and not allocated to another payment.
func (s *Service) Create(ctx context.Context, actor string, cmd CreateCommand) (*Payment, error) {
	if err := entity.RequireActor(actor); err != nil {
		return nil, err
	}
	if len(cmd.InvoiceIDs) == 0 {
		return nil, apperror.NewValidation("at least one invoice is required").WithDetail("field", "invoiceIds")
	}
	if dup := firstDuplicate(cmd.InvoiceIDs); dup != nil {
		return nil, apperror.NewValidation(fmt.Sprintf("invoice %s is listed twice", *dup)).WithDetail("field", "invoiceIds")
	}

	number, err := s.numerator.GetNextNumber(ctx, NumberConfig(), s.now())
	if err != nil {
		return nil, fmt.Errorf("generate number: %w", err)
	}

	p := New(actor)
	p.Number = number
	if cmd.PaymentMethod != "" {
		p.PaymentMethod = cmd.PaymentMethod
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		ordered := slices.Clone(cmd.InvoiceIDs)
		slices.SortFunc(ordered, id.Compare)

		invoices := make([]*invoice.Invoice, 0, len(ordered))
		for _, invID := range ordered {
			inv, err := s.invoices.GetForUpdate(ctx, invID)
			if err != nil {
				return err
			}
			if !inv.Payable() {
				return apperror.NewValidation(fmt.Sprintf("invoice %s is not payable", inv.Number)).
					WithDetail("field", "invoiceIds").
					WithDetail("status", inv.Status).
					WithDetail("paymentStatus", inv.PaymentStatus)
			}
			if len(invoices) == 0 {
				p.SupplierID = inv.SupplierID
				p.Currency = inv.Currency
			} else if inv.SupplierID != p.SupplierID || inv.Currency != p.Currency {
				return apperror.NewValidation("all invoices of a payment must share supplier and currency").
					WithDetail("field", "invoiceIds")
			}
			p.Gross = p.Gross.Add(inv.Total)
			p.InvoiceIDs = append(p.InvoiceIDs, inv.ID)
			invoices = append(invoices, inv)
		}
		p.Net = p.Gross
		if err := p.Validate(); err != nil {
			return err
		}

		if err := s.repo.Create(ctx, p); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		for _, inv := range invoices {
			inv.PaymentID = &p.ID
			inv.Touch(actor)
			if err := s.invoices.Update(ctx, inv); err != nil {
				return fmt.Errorf("allocate invoice %s: %w", inv.Number, err)
			}
		}
		return s.publish(ctx, p, "payment.created", actor)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "payment created",
		"id", p.ID,
		"number", p.Number,
		"supplier_id", p.SupplierID,
		"gross", p.Gross.String(),
		"invoices", len(p.InvoiceIDs),
		"actor", actor)
	return p, nil
}

// Delete removes a draft payment and frees its invoices. Only the creator may delete.
func (s *Service) Delete(ctx context.Context, actor string, paymentID id.ID) error {
	if err := entity.RequireActor(actor); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.load(ctx, paymentID, true)
		if err != nil {
			return err
		}
		if p.Status != StatusDraft {
			return apperror.NewInvalidTransition(Machine.Entity(), string(p.Status), "delete")
		}
		if actor != p.Creator() {
			return apperror.NewForbidden("only the creator may delete a draft payment")
		}

		invoices, err := s.invoices.ListByPayment(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("list allocated invoices: %w", err)
		}
		for _, inv := range invoices {
			inv.PaymentID = nil
			inv.Touch(actor)
			if err := s.invoices.Update(ctx, inv); err != nil {
				return fmt.Errorf("free invoice %s: %w", inv.Number, err)
			}
		}
		if err := s.repo.Delete(ctx, p.ID); err != nil {
			return err
		}
		return s.publish(ctx, p, "payment.deleted", actor)
	})
}

// Submit sends the payment for approval and computes withholding tax.
// Only the creator submits.
func (s *Service) Submit(ctx context.Context, actor string, paymentID id.ID) (*Payment, error) {
	if err := entity.RequireActor(actor); err != nil {
		return nil, err
	}

	return s.transition(ctx, actor, paymentID, EventSubmit, nil, func(ctx context.Context, p *Payment) error {
		if actor != p.Creator() {
			return apperror.NewForbidden("only the creator may submit a payment").WithDetail("role", "creator")
		}
		sup, err := s.suppliers.GetByID(ctx, p.SupplierID)
		if err != nil {
			return err
		}
		p.ApplyWithholding(s.policy.Compute(p.Gross, sup))
		now := s.now()
		p.SubmittedAt = &now
		p.RejectionReason = ""
		return nil
	})
}

// Approve authorizes a submitted payment. The approver must differ from the
// creator; a retry by the recorded approver is a no-op.
func (s *Service) Approve(ctx context.Context, actor string, paymentID id.ID) (*Payment, error) {
	if err := entity.RequireActor(actor); err != nil {
		return nil, err
	}

	applied := func(p *Payment) bool {
		return p.ApprovedBy == actor && p.Status != StatusPendingApproval && p.Status != StatusDraft
	}
	return s.transition(ctx, actor, paymentID, EventApprove, applied, func(_ context.Context, p *Payment) error {
		now := s.now()
		p.ApprovedBy = actor
		p.ApprovedAt = &now
		return nil
	}, checkApprover)
}

// Reject returns a submitted payment to draft. The creator cannot reject their own payment.
func (s *Service) Reject(ctx context.Context, actor string, paymentID id.ID, reason string) (*Payment, error) {
	if err := entity.RequireActor(actor); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, apperror.NewValidation("a rejection reason is required").WithDetail("field", "reason")
	}

	return s.transition(ctx, actor, paymentID, EventReject, nil, func(_ context.Context, p *Payment) error {
		p.RejectionReason = reason
		p.SubmittedAt = nil
		return nil
	}, checkApprover)
}

// Process records the disbursement. The processor differs from creator and
// approver and must supply the bank or payment reference; a retry by the
// recorded processor is a no-op.
func (s *Service) Process(ctx context.Context, actor string, paymentID id.ID, bankReference string) (*Payment, error) {
	if err := entity.RequireActor(actor); err != nil {
		return nil, err
	}

	applied := func(p *Payment) bool {
		return p.ProcessedBy == actor && (p.Status == StatusProcessed || p.Status == StatusPaid)
	}
	return s.transition(ctx, actor, paymentID, EventProcess, applied, func(_ context.Context, p *Payment) error {
		if err := p.SetBankReference(bankReference); err != nil {
			return err
		}
		now := s.now()
		p.ProcessedBy = actor
		p.ProcessedAt = &now
		return nil
	}, checkProcessor)
}

// ConfirmSettlement marks a processed payment and all its invoices paid in one transaction.
func (s *Service) ConfirmSettlement(ctx context.Context, actor string, paymentID id.ID) (*Payment, error) {
	if err := entity.RequireActor(actor); err != nil {
		return nil, err
	}

	return s.transition(ctx, actor, paymentID, EventSettle, nil, func(ctx context.Context, p *Payment) error {
		invoices, err := s.invoices.ListByPayment(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("list allocated invoices: %w", err)
		}
		if len(invoices) == 0 {
			return apperror.NewValidation(fmt.Sprintf("payment %s has no allocated invoices", p.Number)).
				WithDetail("field", "invoiceIds")
		}
		slices.SortFunc(invoices, func(a, b *invoice.Invoice) int { return id.Compare(a.ID, b.ID) })
		for _, listed := range invoices {
			inv, err := s.invoices.GetForUpdate(ctx, listed.ID)
			if err != nil {
				return err
			}
			if err := inv.MarkPaid(); err != nil {
				return err
			}
			inv.Touch(actor)
			if err := s.invoices.Update(ctx, inv); err != nil {
				return fmt.Errorf("mark invoice %s paid: %w", inv.Number, err)
			}
		}
		now := s.now()
		p.PaidAt = &now
		return nil
	})
}

// Get returns a payment with its allocated invoice ids.
func (s *Service) Get(ctx context.Context, paymentID id.ID) (*Payment, error) {
	return s.load(ctx, paymentID, false)
}

// List retrieves payments with filtering. Invoice ids are not loaded.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Payment], error) {
	return s.repo.List(ctx, filter)
}

// transition runs one payment transition under the payment row lock.
//
// Segregation checks run before anything else so that a conflicting actor
// is refused whatever state the payment is in. applied, when set, detects a
// retry of an already applied transition, which returns the payment unchanged.
func (s *Service) transition(
	ctx context.Context,
	actor string,
	paymentID id.ID,
	event Event,
	applied func(p *Payment) bool,
	guard func(ctx context.Context, p *Payment) error,
	duties ...func(p *Payment, actor string) error,
) (*Payment, error) {
	var p *Payment
	var from Status
	noop := false
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.load(ctx, paymentID, true)
		if err != nil {
			return err
		}

		for _, check := range duties {
			if err := check(p, actor); err != nil {
				return err
			}
		}
		if applied != nil && applied(p) {
			noop = true
			return nil
		}

		from = p.Status
		if err := Machine.Check(from, event); err != nil {
			return err
		}
		if err := guard(ctx, p); err != nil {
			return err
		}
		if err := p.Fire(event); err != nil {
			return err
		}

		p.Touch(actor)
		if err := s.repo.Update(ctx, p); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		return s.publish(ctx, p, "payment."+string(event), actor)
	})
	if err != nil {
		return nil, err
	}
	if noop {
		logger.Debug(ctx, "payment "+string(event)+" already applied", "id", p.ID, "actor", actor)
		return p, nil
	}

	logger.Info(ctx, "payment "+string(event),
		"id", p.ID,
		"number", p.Number,
		"from", from,
		"to", p.Status,
		"net", p.Net.String(),
		"actor", actor)
	return p, nil
}

func (s *Service) load(ctx context.Context, paymentID id.ID, lock bool) (*Payment, error) {
	get := s.repo.GetByID
	if lock {
		get = s.repo.GetForUpdate
	}
	p, err := get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if lock {
		if err := p.CheckLive(Machine.Entity()); err != nil {
			return nil, err
		}
	}
	invoices, err := s.invoices.ListByPayment(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("list allocated invoices: %w", err)
	}
	p.InvoiceIDs = make([]id.ID, 0, len(invoices))
	for _, inv := range invoices {
		p.InvoiceIDs = append(p.InvoiceIDs, inv.ID)
	}
	return p, nil
}

func (s *Service) publish(ctx context.Context, p *Payment, eventType, actor string) error {
	return s.events.Publish(ctx, domain.Event{
		AggregateType: AggregateType,
		AggregateID:   p.ID,
		EventType:     eventType,
		Actor:         actor,
		Payload: map[string]any{
			"number":     p.Number,
			"status":     p.Status,
			"supplierId": p.SupplierID,
			"gross":      p.Gross.StringFixed(2),
			"whtAmount":  p.WHTAmount.StringFixed(2),
			"net":        p.Net.StringFixed(2),
		},
	})
}

func firstDuplicate(ids []id.ID) *id.ID {
	seen := make(map[id.ID]bool, len(ids))
	for i, v := range ids {
		if seen[v] {
			return &ids[i]
		}
		seen[v] = true
	}
	return nil
}
