// Package payment provides supplier payments: disbursement of verified
// invoices under segregation of duties, net of withholding tax.
package payment

import (
	"strings"
	"time"

	"procura/internal/core/apperror"
	"procura/internal/core/entity"
	"procura/internal/core/fsm"
	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain/supplier"
)

// Status is the payment lifecycle state.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusProcessed       Status = "processed"
	StatusPaid            Status = "paid"
)

// Event is a payment transition.
type Event string

const (
	EventSubmit  Event = "submit"
	EventApprove Event = "approve"
	EventReject  Event = "reject"
	EventProcess Event = "process"
	EventSettle  Event = "settle"
)

// Machine is the payment lifecycle. Rejection at approval returns the payment to draft.
var Machine = fsm.New[Status, Event]("payment",
	[]Status{StatusDraft, StatusPendingApproval, StatusApproved, StatusProcessed, StatusPaid},
	fsm.Transition[Status, Event]{From: []Status{StatusDraft}, Event: EventSubmit, To: StatusPendingApproval},
	fsm.Transition[Status, Event]{From: []Status{StatusPendingApproval}, Event: EventApprove, To: StatusApproved},
	fsm.Transition[Status, Event]{From: []Status{StatusPendingApproval}, Event: EventReject, To: StatusDraft},
	fsm.Transition[Status, Event]{From: []Status{StatusApproved}, Event: EventProcess, To: StatusProcessed},
	fsm.Transition[Status, Event]{From: []Status{StatusProcessed}, Event: EventSettle, To: StatusPaid},
)

// Method is how the money leaves the institution.
type Method string

const (
	MethodBankTransfer Method = "bank_transfer"
	MethodCheque       Method = "cheque"
	MethodMobileMoney  Method = "mobile_money"
)

// Valid reports whether m is a known method.
func (m Method) Valid() bool {
	switch m {
	case MethodBankTransfer, MethodCheque, MethodMobileMoney:
		return true
	}
	return false
}

// Payment disburses one or more verified invoices of a single supplier.
//
// CreatedBy is the creator role. ApprovedBy and ProcessedBy hold the other
// two roles; the three are always distinct people.
type Payment struct {
	entity.BaseDocument

	SupplierID    id.ID  `db:"supplier_id" json:"supplierId"`
	Currency      string `db:"currency" json:"currency"`
	PaymentMethod Method `db:"payment_method" json:"paymentMethod"`

	Gross       types.Money          `db:"gross" json:"gross"`
	WHTCategory supplier.WHTCategory `db:"wht_category" json:"whtCategory,omitempty"`
	WHTRate     types.Money          `db:"wht_rate" json:"whtRate"`
	WHTAmount   types.Money          `db:"wht_amount" json:"whtAmount"`
	Net         types.Money          `db:"net" json:"net"`

	Status Status `db:"status" json:"status"`

	ApprovedBy      string     `db:"approved_by" json:"approvedBy,omitempty"`
	ProcessedBy     string     `db:"processed_by" json:"processedBy,omitempty"`
	SubmittedAt     *time.Time `db:"submitted_at" json:"submittedAt,omitempty"`
	ApprovedAt      *time.Time `db:"approved_at" json:"approvedAt,omitempty"`
	ProcessedAt     *time.Time `db:"processed_at" json:"processedAt,omitempty"`
	PaidAt          *time.Time `db:"paid_at" json:"paidAt,omitempty"`
	BankReference   string     `db:"bank_reference" json:"bankReference,omitempty"`
	RejectionReason string     `db:"rejection_reason" json:"rejectionReason,omitempty"`

	InvoiceIDs []id.ID `db:"-" json:"invoiceIds"`
}

// New creates a draft payment created by actor.
func New(actor string) *Payment {
	return &Payment{
		BaseDocument:  entity.NewBaseDocument(actor),
		PaymentMethod: MethodBankTransfer,
		Gross:         types.Zero(),
		WHTRate:       types.Zero(),
		WHTAmount:     types.Zero(),
		Status:        StatusDraft,
	}
}

// Creator returns the identity that drafted the payment.
func (p *Payment) Creator() string { return p.CreatedBy }

// Validate checks header invariants.
func (p *Payment) Validate() error {
	if id.IsNil(p.SupplierID) {
		return apperror.NewValidation("supplier is required").WithDetail("field", "supplierId")
	}
	if len(p.InvoiceIDs) == 0 {
		return apperror.NewValidation("at least one invoice is required").WithDetail("field", "invoiceIds")
	}
	if !p.PaymentMethod.Valid() {
		return apperror.NewValidation("unknown payment method").WithDetail("field", "paymentMethod")
	}
	if !p.Gross.IsPositive() {
		return apperror.NewValidation("gross amount must be positive").WithDetail("field", "invoiceIds")
	}
	return nil
}

// Fire applies event to the payment's status.
func (p *Payment) Fire(event Event) error {
	to, err := Machine.Fire(p.Status, event)
	if err != nil {
		return err
	}
	p.Status = to
	return nil
}

// ApplyWithholding stores the withholding computed for the payment's gross.
func (p *Payment) ApplyWithholding(w Withholding) {
	p.WHTCategory = w.Category
	p.WHTRate = w.Rate
	p.WHTAmount = w.Amount
	p.Net = p.Gross.Sub(w.Amount)
}

// SetBankReference records the disbursement reference supplied by the processor.
func (p *Payment) SetBankReference(ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return apperror.NewValidation("a bank or payment reference is required").WithDetail("field", "bankReference")
	}
	p.BankReference = ref
	return nil
}
