// Package purchase_order provides the PurchaseOrder document: the supplier
// order raised from an approved requisition, which carries the requisition's
// budget commitment until it is invoiced or cancelled.
package purchase_order

import (
	"fmt"
	"strings"
	"time"

	"procura/internal/core/apperror"
	"procura/internal/core/entity"
	"procura/internal/core/fsm"
	"procura/internal/core/id"
	"procura/internal/core/types"
)

// Status is the purchase order lifecycle state.
type Status string

const (
	StatusDraft             Status = "draft"
	StatusIssued            Status = "issued"
	StatusAcknowledged      Status = "acknowledged"
	StatusPartiallyReceived Status = "partially_received"
	StatusFullyReceived     Status = "fully_received"
	StatusCancelled         Status = "cancelled"
)

// Event is a purchase order transition.
type Event string

const (
	EventIssue          Event = "issue"
	EventAcknowledge    Event = "acknowledge"
	EventReceivePartial Event = "receive_partial"
	EventReceiveFull    Event = "receive_full"
	EventCancel         Event = "cancel"
)

var receivable = []Status{StatusIssued, StatusAcknowledged, StatusPartiallyReceived}

// Machine is the purchase order lifecycle.
var Machine = fsm.New[Status, Event]("purchase order",
	[]Status{StatusDraft, StatusIssued, StatusAcknowledged, StatusPartiallyReceived, StatusFullyReceived, StatusCancelled},
	fsm.Transition[Status, Event]{From: []Status{StatusDraft}, Event: EventIssue, To: StatusIssued},
	fsm.Transition[Status, Event]{From: []Status{StatusIssued}, Event: EventAcknowledge, To: StatusAcknowledged},
	fsm.Transition[Status, Event]{From: receivable, Event: EventReceivePartial, To: StatusPartiallyReceived},
	fsm.Transition[Status, Event]{From: receivable, Event: EventReceiveFull, To: StatusFullyReceived},
	fsm.Transition[Status, Event]{
		From:  []Status{StatusDraft, StatusIssued, StatusAcknowledged, StatusPartiallyReceived},
		Event: EventCancel,
		To:    StatusCancelled,
	},
)

// PurchaseOrder is an order placed with a supplier.
type PurchaseOrder struct {
	entity.BaseDocument

	SupplierID    id.ID  `db:"supplier_id" json:"supplierId"`
	RequisitionID id.ID  `db:"requisition_id" json:"requisitionId"`
	Department    string `db:"department" json:"department"`
	Currency      string `db:"currency" json:"currency"`

	// BudgetLineID is inherited from the requisition; nil for unbudgeted orders.
	BudgetLineID *id.ID `db:"budget_line_id" json:"budgetLineId,omitempty"`

	Total types.Money `db:"total" json:"total"`
	// Committed is the part of the budget commitment this order still holds:
	// its value not yet consumed by verified invoices nor released by cancellation.
	Committed types.Money `db:"committed" json:"committed"`

	Status         Status     `db:"status" json:"status"`
	SupplierRef    string     `db:"supplier_ref" json:"supplierRef,omitempty"`
	IssuedAt       *time.Time `db:"issued_at" json:"issuedAt,omitempty"`
	AcknowledgedAt *time.Time `db:"acknowledged_at" json:"acknowledgedAt,omitempty"`
	CancelReason   string     `db:"cancel_reason" json:"cancelReason,omitempty"`

	Lines []Line `db:"-" json:"lines"`
}

// Line is one ordered item with its fulfilment counters.
type Line struct {
	ID                id.ID          `db:"id" json:"id"`
	PurchaseOrderID   id.ID          `db:"purchase_order_id" json:"-"`
	RequisitionLineID *id.ID         `db:"requisition_line_id" json:"requisitionLineId,omitempty"`
	LineNo            int            `db:"line_no" json:"lineNo"`
	Description       string         `db:"description" json:"description"`
	Quantity          types.Quantity `db:"quantity" json:"quantity"`
	UnitPrice         types.Money    `db:"unit_price" json:"unitPrice"`
	Amount            types.Money    `db:"amount" json:"amount"`

	// Received is accepted quantity from posted receipts.
	Received types.Quantity `db:"received" json:"received"`
	// Pending is quantity held by receipts not yet posted or rejected.
	Pending types.Quantity `db:"pending" json:"pending"`
	// Invoiced is quantity covered by verified invoices.
	Invoiced types.Quantity `db:"invoiced" json:"invoiced"`
}

// Outstanding is the quantity that may still be delivered.
func (l *Line) Outstanding() types.Quantity {
	return l.Quantity - l.Received - l.Pending
}

// LineInput is the caller-supplied part of a line.
type LineInput struct {
	RequisitionLineID *id.ID
	Description       string
	Quantity          types.Quantity
	UnitPrice         types.Money
}

// New creates a draft order.
func New(actor string) *PurchaseOrder {
	return &PurchaseOrder{
		BaseDocument: entity.NewBaseDocument(actor),
		Total:        types.Zero(),
		Committed:    types.Zero(),
		Status:       StatusDraft,
	}
}

// SetLines replaces the lines and recomputes amounts and total.
func (po *PurchaseOrder) SetLines(inputs []LineInput) {
	po.Lines = make([]Line, 0, len(inputs))
	po.Total = types.Zero()
	for i, in := range inputs {
		line := Line{
			ID:                id.New(),
			PurchaseOrderID:   po.ID,
			RequisitionLineID: in.RequisitionLineID,
			LineNo:            i + 1,
			Description:       strings.TrimSpace(in.Description),
			Quantity:          in.Quantity,
			UnitPrice:         in.UnitPrice,
			Amount:            types.RoundMoney(in.Quantity.Times(in.UnitPrice)),
		}
		po.Total = po.Total.Add(line.Amount)
		po.Lines = append(po.Lines, line)
	}
}

// Validate checks header and line invariants.
func (po *PurchaseOrder) Validate() error {
	if id.IsNil(po.SupplierID) {
		return apperror.NewValidation("supplier is required").WithDetail("field", "supplierId")
	}
	if id.IsNil(po.RequisitionID) {
		return apperror.NewValidation("requisition is required").WithDetail("field", "requisitionId")
	}
	if len(po.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").WithDetail("field", "lines")
	}
	for _, line := range po.Lines {
		if line.Description == "" {
			return apperror.NewValidation("line description is required").
				WithDetail("field", "lines").
				WithDetail("lineNo", line.LineNo)
		}
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
	return nil
}

// Fire applies event to the order's status.
func (po *PurchaseOrder) Fire(event Event) error {
	to, err := Machine.Fire(po.Status, event)
	if err != nil {
		return err
	}
	po.Status = to
	return nil
}

// Line returns the line with lineID.
func (po *PurchaseOrder) Line(lineID id.ID) (*Line, error) {
	for i := range po.Lines {
		if po.Lines[i].ID == lineID {
			return &po.Lines[i], nil
		}
	}
	return nil, apperror.NewValidation(fmt.Sprintf("purchase order %s has no line %s", po.Number, lineID)).
		WithDetail("field", "purchaseOrderLineId")
}

// CanReceive reports whether deliveries may be recorded against the order.
func (po *PurchaseOrder) CanReceive() bool {
	return Machine.Can(po.Status, EventReceivePartial)
}

// Hold reserves qty of a line for a receipt awaiting inspection.
// Received plus held quantity never exceeds the ordered quantity.
func (po *PurchaseOrder) Hold(lineID id.ID, qty types.Quantity) error {
	line, err := po.Line(lineID)
	if err != nil {
		return err
	}
	if qty > line.Outstanding() {
		return apperror.NewValidation(fmt.Sprintf(
			"line %d: receiving %s would exceed the ordered quantity %s (received %s, awaiting inspection %s)",
			line.LineNo, qty, line.Quantity, line.Received, line.Pending)).
			WithDetail("field", "lines").
			WithDetail("lineNo", line.LineNo).
			WithDetail("outstanding", line.Outstanding().String())
	}
	line.Pending += qty
	return nil
}

// ReleaseHold drops a receipt's hold on a line.
func (po *PurchaseOrder) ReleaseHold(lineID id.ID, qty types.Quantity) error {
	line, err := po.Line(lineID)
	if err != nil {
		return err
	}
	if qty > line.Pending {
		return fmt.Errorf("purchase order %s line %d: releasing %s exceeds held %s", po.Number, line.LineNo, qty, line.Pending)
	}
	line.Pending -= qty
	return nil
}

// ApplyReceipt converts a held quantity into accepted received quantity.
// The unaccepted remainder of the hold is returned to outstanding.
func (po *PurchaseOrder) ApplyReceipt(lineID id.ID, held, accepted types.Quantity) error {
	if accepted > held {
		return fmt.Errorf("accepted %s exceeds held %s", accepted, held)
	}
	if err := po.ReleaseHold(lineID, held); err != nil {
		return err
	}
	line, _ := po.Line(lineID)
	line.Received += accepted
	return nil
}

// ReceiptEvent returns receive_full when every line is fully received.
func (po *PurchaseOrder) ReceiptEvent() Event {
	for _, line := range po.Lines {
		if line.Received < line.Quantity {
			return EventReceivePartial
		}
	}
	return EventReceiveFull
}

// HasPendingReceipts reports whether any receipt still holds quantity.
func (po *PurchaseOrder) HasPendingReceipts() bool {
	for _, line := range po.Lines {
		if line.Pending > 0 {
			return true
		}
	}
	return false
}

// UnreceivedValue is the value of ordered but not received quantity.
func (po *PurchaseOrder) UnreceivedValue() types.Money {
	total := types.Zero()
	for _, line := range po.Lines {
		if open := line.Quantity - line.Received; open > 0 {
			total = total.Add(open.Times(line.UnitPrice))
		}
	}
	return types.RoundMoney(total)
}
