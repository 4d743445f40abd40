// Package goods_receipt provides the GoodsReceipt document: a physical delivery
// against a purchase order, inspected and accepted by the department before it
// is posted to inventory.
package goods_receipt

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

// Status is the receipt lifecycle state.
type Status string

const (
	StatusReceived          Status = "received"
	StatusInspected         Status = "inspected"
	StatusAccepted          Status = "accepted"
	StatusRejected          Status = "rejected"
	StatusPostedToInventory Status = "posted_to_inventory"
)

// Event is a receipt transition.
type Event string

const (
	EventInspect Event = "inspect"
	EventAccept  Event = "accept"
	EventReject  Event = "reject"
	EventPost    Event = "post"
)

// Machine is the receipt lifecycle.
var Machine = fsm.New[Status, Event]("goods receipt",
	[]Status{StatusReceived, StatusInspected, StatusAccepted, StatusRejected, StatusPostedToInventory},
	fsm.Transition[Status, Event]{From: []Status{StatusReceived}, Event: EventInspect, To: StatusInspected},
	fsm.Transition[Status, Event]{From: []Status{StatusInspected}, Event: EventAccept, To: StatusAccepted},
	fsm.Transition[Status, Event]{From: []Status{StatusReceived, StatusInspected}, Event: EventReject, To: StatusRejected},
	fsm.Transition[Status, Event]{From: []Status{StatusAccepted}, Event: EventPost, To: StatusPostedToInventory},
)

// Inspection is the quality inspection outcome.
type Inspection string

const (
	InspectionPending  Inspection = "pending"
	InspectionPassed   Inspection = "passed"
	InspectionRejected Inspection = "rejected"
)

// Acceptance is the department's acceptance decision.
type Acceptance string

const (
	AcceptanceNone              Acceptance = ""
	AcceptanceAccepted          Acceptance = "accepted"
	AcceptancePartiallyAccepted Acceptance = "partially_accepted"
	AcceptanceRejected          Acceptance = "rejected"
)

// Condition describes the state goods arrived in.
type Condition string

const (
	ConditionGood    Condition = "good"
	ConditionDamaged Condition = "damaged"
	ConditionWrong   Condition = "wrong_item"
)

// GoodsReceipt records a delivery against a purchase order.
type GoodsReceipt struct {
	entity.BaseDocument

	PurchaseOrderID id.ID     `db:"purchase_order_id" json:"purchaseOrderId"`
	SupplierID      id.ID     `db:"supplier_id" json:"supplierId"`
	DeliveryNote    string    `db:"delivery_note" json:"deliveryNote,omitempty"`
	ReceivedAt      time.Time `db:"received_at" json:"receivedAt"`

	Status Status `db:"status" json:"status"`

	Inspection      Inspection `db:"inspection" json:"inspection"`
	InspectedBy     string     `db:"inspected_by" json:"inspectedBy,omitempty"`
	InspectionNotes string     `db:"inspection_notes" json:"inspectionNotes,omitempty"`

	Acceptance      Acceptance `db:"acceptance" json:"acceptance,omitempty"`
	AcceptedBy      string     `db:"accepted_by" json:"acceptedBy,omitempty"`
	RejectionReason string     `db:"rejection_reason" json:"rejectionReason,omitempty"`

	PostedAt *time.Time `db:"posted_at" json:"postedAt,omitempty"`

	Lines         []Line        `db:"-" json:"lines"`
	Discrepancies []Discrepancy `db:"-" json:"discrepancies,omitempty"`
}

// Line is the delivered quantity of one purchase order line.
type Line struct {
	ID                  id.ID          `db:"id" json:"id"`
	GoodsReceiptID      id.ID          `db:"goods_receipt_id" json:"-"`
	PurchaseOrderLineID id.ID          `db:"purchase_order_line_id" json:"purchaseOrderLineId"`
	LineNo              int            `db:"line_no" json:"lineNo"`
	Quantity            types.Quantity `db:"quantity" json:"quantity"`
	Accepted            types.Quantity `db:"accepted" json:"accepted"`
	Condition           Condition      `db:"condition" json:"condition"`
	BatchNumber         string         `db:"batch_number" json:"batchNumber,omitempty"`
	ExpiryDate          *time.Time     `db:"expiry_date" json:"expiryDate,omitempty"`
}

// Discrepancy records quantity that was delivered but not accepted.
type Discrepancy struct {
	ID                  id.ID          `db:"id" json:"id"`
	GoodsReceiptID      id.ID          `db:"goods_receipt_id" json:"-"`
	PurchaseOrderLineID id.ID          `db:"purchase_order_line_id" json:"purchaseOrderLineId"`
	LineNo              int            `db:"line_no" json:"lineNo"`
	Received            types.Quantity `db:"received" json:"received"`
	Accepted            types.Quantity `db:"accepted" json:"accepted"`
	Reason              string         `db:"reason" json:"reason"`
	CreatedAt           time.Time      `db:"created_at" json:"createdAt"`
}

// LineInput is the caller-supplied part of a delivered line.
type LineInput struct {
	PurchaseOrderLineID id.ID
	Quantity            types.Quantity
	Condition           Condition
	BatchNumber         string
	ExpiryDate          *time.Time
}

// New creates a receipt in received state.
func New(actor string, receivedAt time.Time) *GoodsReceipt {
	return &GoodsReceipt{
		BaseDocument: entity.NewBaseDocument(actor),
		ReceivedAt:   receivedAt,
		Status:       StatusReceived,
		Inspection:   InspectionPending,
	}
}

// SetLines replaces the lines.
func (g *GoodsReceipt) SetLines(inputs []LineInput) {
	g.Lines = make([]Line, 0, len(inputs))
	for i, in := range inputs {
		cond := in.Condition
		if cond == "" {
			cond = ConditionGood
		}
		g.Lines = append(g.Lines, Line{
			ID:                  id.New(),
			GoodsReceiptID:      g.ID,
			PurchaseOrderLineID: in.PurchaseOrderLineID,
			LineNo:              i + 1,
			Quantity:            in.Quantity,
			Condition:           cond,
			BatchNumber:         strings.TrimSpace(in.BatchNumber),
			ExpiryDate:          in.ExpiryDate,
		})
	}
}

// Validate checks header and line invariants.
func (g *GoodsReceipt) Validate() error {
	if id.IsNil(g.PurchaseOrderID) {
		return apperror.NewValidation("purchase order is required").WithDetail("field", "purchaseOrderId")
	}
	if len(g.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").WithDetail("field", "lines")
	}
	seen := make(map[id.ID]bool, len(g.Lines))
	for _, line := range g.Lines {
		if !line.Quantity.IsPositive() {
			return apperror.NewValidation("received quantity must be positive").
				WithDetail("field", "lines").
				WithDetail("lineNo", line.LineNo)
		}
		if seen[line.PurchaseOrderLineID] {
			return apperror.NewValidation("each purchase order line may appear once per receipt").
				WithDetail("field", "lines").
				WithDetail("lineNo", line.LineNo)
		}
		seen[line.PurchaseOrderLineID] = true
	}
	return nil
}

// Fire applies event to the receipt's status.
func (g *GoodsReceipt) Fire(event Event) error {
	to, err := Machine.Fire(g.Status, event)
	if err != nil {
		return err
	}
	g.Status = to
	return nil
}

// ExpiringLines returns the lines whose expiry date falls before now + window.
func (g *GoodsReceipt) ExpiringLines(now time.Time, window time.Duration) []Line {
	limit := now.Add(window)
	var out []Line
	for _, line := range g.Lines {
		if line.ExpiryDate != nil && line.ExpiryDate.Before(limit) {
			out = append(out, line)
		}
	}
	return out
}

// Accept records accepted quantities and derives the acceptance decision.
// Lines absent from accepted are accepted in full. Short lines produce discrepancies.
func (g *GoodsReceipt) Accept(accepted map[id.ID]types.Quantity, reason string, now time.Time) error {
	total := types.Quantity(0)
	short := false
	g.Discrepancies = nil
	for i := range g.Lines {
		line := &g.Lines[i]
		qty, ok := accepted[line.ID]
		if !ok {
			qty = line.Quantity
		}
		if qty.IsNegative() || qty > line.Quantity {
			return apperror.NewValidation(fmt.Sprintf("line %d: accepted quantity %s must be between 0 and received %s",
				line.LineNo, qty, line.Quantity)).
				WithDetail("field", "lines").
				WithDetail("lineNo", line.LineNo)
		}
		line.Accepted = qty
		total += qty
		if qty < line.Quantity {
			short = true
			g.Discrepancies = append(g.Discrepancies, Discrepancy{
				ID:                  id.New(),
				GoodsReceiptID:      g.ID,
				PurchaseOrderLineID: line.PurchaseOrderLineID,
				LineNo:              line.LineNo,
				Received:            line.Quantity,
				Accepted:            qty,
				Reason:              reason,
				CreatedAt:           now,
			})
		}
	}
	if total == 0 {
		return apperror.NewValidation("nothing accepted: reject the receipt instead").WithDetail("field", "lines")
	}

	g.Acceptance = AcceptanceAccepted
	if short {
		g.Acceptance = AcceptancePartiallyAccepted
	}
	return nil
}
