// Package invoice provides the supplier invoice document, verified by the
// three-way match before it can be paid.
package invoice

import (
	"strings"
	"time"

	"procura/internal/core/apperror"
	"procura/internal/core/entity"
	"procura/internal/core/fsm"
	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain/matching"
)

// Status is the invoice lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusVerified  Status = "verified"
	StatusRejected  Status = "rejected"
	StatusPaid      Status = "paid"
)

// PaymentStatus tracks settlement independently of verification.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

// Event is an invoice transition.
type Event string

const (
	EventSubmit    Event = "submit"
	EventVerify    Event = "verify"
	EventFailMatch Event = "fail_match"
	EventResubmit  Event = "resubmit"
	EventPay       Event = "pay"
)

// Machine is the invoice lifecycle.
var Machine = fsm.New[Status, Event]("invoice",
	[]Status{StatusDraft, StatusSubmitted, StatusVerified, StatusRejected, StatusPaid},
	fsm.Transition[Status, Event]{From: []Status{StatusDraft}, Event: EventSubmit, To: StatusSubmitted},
	fsm.Transition[Status, Event]{From: []Status{StatusSubmitted}, Event: EventVerify, To: StatusVerified},
	fsm.Transition[Status, Event]{From: []Status{StatusSubmitted}, Event: EventFailMatch, To: StatusRejected},
	fsm.Transition[Status, Event]{From: []Status{StatusRejected}, Event: EventResubmit, To: StatusDraft},
	fsm.Transition[Status, Event]{From: []Status{StatusVerified}, Event: EventPay, To: StatusPaid},
)

// Invoice is a supplier's bill against a purchase order.
type Invoice struct {
	entity.BaseDocument

	SupplierID      id.ID  `db:"supplier_id" json:"supplierId"`
	PurchaseOrderID id.ID  `db:"purchase_order_id" json:"purchaseOrderId"`
	GoodsReceiptID  *id.ID `db:"goods_receipt_id" json:"goodsReceiptId,omitempty"`

	SupplierInvoiceNumber string     `db:"supplier_invoice_number" json:"supplierInvoiceNumber"`
	InvoiceDate           time.Time  `db:"invoice_date" json:"invoiceDate"`
	DueDate               *time.Time `db:"due_date" json:"dueDate,omitempty"`
	Currency              string     `db:"currency" json:"currency"`

	Subtotal types.Money `db:"subtotal" json:"subtotal"`
	Tax      types.Money `db:"tax" json:"tax"`
	Total    types.Money `db:"total" json:"total"`

	Status        Status        `db:"status" json:"status"`
	PaymentStatus PaymentStatus `db:"payment_status" json:"paymentStatus"`
	// PaymentID is the open payment this invoice is allocated to.
	PaymentID *id.ID `db:"payment_id" json:"paymentId,omitempty"`

	VerifiedBy string     `db:"verified_by" json:"verifiedBy,omitempty"`
	VerifiedAt *time.Time `db:"verified_at" json:"verifiedAt,omitempty"`
	// Consumed is the reservation converted to spend at verification.
	Consumed types.Money `db:"consumed" json:"consumed"`

	// Discrepancies is the report of the last failed match.
	Discrepancies []matching.Discrepancy `db:"discrepancies" json:"discrepancies,omitempty"`

	Lines []Line `db:"-" json:"lines"`
}

// Line is one invoiced item, referencing the order line it bills.
type Line struct {
	ID                  id.ID          `db:"id" json:"id"`
	InvoiceID           id.ID          `db:"invoice_id" json:"-"`
	PurchaseOrderLineID id.ID          `db:"purchase_order_line_id" json:"purchaseOrderLineId"`
	LineNo              int            `db:"line_no" json:"lineNo"`
	Description         string         `db:"description" json:"description"`
	Quantity            types.Quantity `db:"quantity" json:"quantity"`
	UnitPrice           types.Money    `db:"unit_price" json:"unitPrice"`
	Amount              types.Money    `db:"amount" json:"amount"`
}

// LineInput is the caller-supplied part of a line.
type LineInput struct {
	PurchaseOrderLineID id.ID
	Description         string
	Quantity            types.Quantity
	UnitPrice           types.Money
}

// New creates a draft, unpaid invoice.
func New(actor string) *Invoice {
	return &Invoice{
		BaseDocument:  entity.NewBaseDocument(actor),
		Subtotal:      types.Zero(),
		Tax:           types.Zero(),
		Total:         types.Zero(),
		Consumed:      types.Zero(),
		Status:        StatusDraft,
		PaymentStatus: PaymentUnpaid,
	}
}

// SetLines replaces the lines and recomputes subtotal and total.
func (inv *Invoice) SetLines(inputs []LineInput) {
	inv.Lines = make([]Line, 0, len(inputs))
	for i, in := range inputs {
		inv.Lines = append(inv.Lines, Line{
			ID:                  id.New(),
			InvoiceID:           inv.ID,
			PurchaseOrderLineID: in.PurchaseOrderLineID,
			LineNo:              i + 1,
			Description:         strings.TrimSpace(in.Description),
			Quantity:            in.Quantity,
			UnitPrice:           in.UnitPrice,
			Amount:              types.RoundMoney(in.Quantity.Times(in.UnitPrice)),
		})
	}
	inv.recalculateTotals()
}

func (inv *Invoice) recalculateTotals() {
	inv.Subtotal = types.Zero()
	for _, line := range inv.Lines {
		inv.Subtotal = inv.Subtotal.Add(line.Amount)
	}
	inv.Total = inv.Subtotal.Add(inv.Tax)
}

// SetTax sets the tax amount and recomputes the total.
func (inv *Invoice) SetTax(tax types.Money) {
	inv.Tax = types.RoundMoney(tax)
	inv.recalculateTotals()
}

// Validate checks header and line invariants.
func (inv *Invoice) Validate() error {
	if id.IsNil(inv.PurchaseOrderID) {
		return apperror.NewValidation("purchase order is required").WithDetail("field", "purchaseOrderId")
	}
	if strings.TrimSpace(inv.SupplierInvoiceNumber) == "" {
		return apperror.NewValidation("supplier invoice number is required").WithDetail("field", "supplierInvoiceNumber")
	}
	if inv.InvoiceDate.IsZero() {
		return apperror.NewValidation("invoice date is required").WithDetail("field", "invoiceDate")
	}
	if inv.DueDate != nil && inv.DueDate.Before(inv.InvoiceDate) {
		return apperror.NewValidation("due date precedes invoice date").WithDetail("field", "dueDate")
	}
	if inv.Tax.IsNegative() {
		return apperror.NewValidation("tax cannot be negative").WithDetail("field", "tax")
	}
	if len(inv.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").WithDetail("field", "lines")
	}
	for _, line := range inv.Lines {
		if !line.Quantity.IsPositive() {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "lines").
				WithDetail("lineNo", line.LineNo)
		}
		if line.UnitPrice.IsNegative() {
			return apperror.NewValidation("unit price cannot be negative").
				WithDetail("field", "lines").
				WithDetail("lineNo", line.LineNo)
		}
	}
	if !inv.Total.IsPositive() {
		return apperror.NewValidation("invoice total must be positive").WithDetail("field", "lines")
	}
	return nil
}

// Fire applies event to the invoice's status.
func (inv *Invoice) Fire(event Event) error {
	to, err := Machine.Fire(inv.Status, event)
	if err != nil {
		return err
	}
	inv.Status = to
	return nil
}

// Payable reports whether the invoice may be allocated to a new payment.
func (inv *Invoice) Payable() bool {
	return inv.Status == StatusVerified && inv.PaymentStatus == PaymentUnpaid && inv.PaymentID == nil
}

// MarkPaid records settlement of the invoice.
func (inv *Invoice) MarkPaid() error {
	if err := inv.Fire(EventPay); err != nil {
		return err
	}
	inv.PaymentStatus = PaymentPaid
	return nil
}
