// Package requisition provides the purchase requisition document: a department's
// request to spend, approved through a routed chain and reserved against a budget line.
package requisition

import (
	"strings"

	"procura/internal/core/apperror"
	"procura/internal/core/entity"
	"procura/internal/core/fsm"
	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain/approval"
)

// Status is the requisition lifecycle state.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusConverted       Status = "converted"
	StatusCancelled       Status = "cancelled"
)

// Event is a requisition transition.
type Event string

const (
	EventSubmit  Event = "submit"
	EventApprove Event = "approve"
	EventReject  Event = "reject"
	EventConvert Event = "convert"
	EventCancel  Event = "cancel"
)

// Machine is the requisition lifecycle.
// approve fires only when the last level of the chain approves.
var Machine = fsm.New[Status, Event]("requisition",
	[]Status{StatusDraft, StatusPendingApproval, StatusApproved, StatusRejected, StatusConverted, StatusCancelled},
	fsm.Transition[Status, Event]{From: []Status{StatusDraft, StatusRejected}, Event: EventSubmit, To: StatusPendingApproval},
	fsm.Transition[Status, Event]{From: []Status{StatusPendingApproval}, Event: EventApprove, To: StatusApproved},
	fsm.Transition[Status, Event]{From: []Status{StatusPendingApproval}, Event: EventReject, To: StatusRejected},
	fsm.Transition[Status, Event]{From: []Status{StatusApproved}, Event: EventConvert, To: StatusConverted},
	fsm.Transition[Status, Event]{
		From:  []Status{StatusDraft, StatusPendingApproval, StatusRejected, StatusApproved},
		Event: EventCancel,
		To:    StatusCancelled,
	},
)

// Requisition is a request to buy.
type Requisition struct {
	entity.BaseDocument

	Department    string `db:"department" json:"department"`
	RequesterID   string `db:"requester_id" json:"requesterId"`
	Currency      string `db:"currency" json:"currency"`
	Category      string `db:"category" json:"category"`
	Justification string `db:"justification" json:"justification,omitempty"`

	// BudgetLineID is the line reserved against on approval; nil for unbudgeted requests.
	BudgetLineID *id.ID `db:"budget_line_id" json:"budgetLineId,omitempty"`

	Emergency    bool `db:"emergency" json:"emergency"`
	SingleSource bool `db:"single_source" json:"singleSource"`

	Total types.Money `db:"total" json:"total"`
	// Reserved is the amount committed on the budget line at approval.
	Reserved types.Money `db:"reserved" json:"reserved"`

	Status       Status `db:"status" json:"status"`
	CancelReason string `db:"cancel_reason" json:"cancelReason,omitempty"`

	Lines     []Line         `db:"-" json:"lines"`
	Approvals approval.Trail `db:"-" json:"approvals,omitempty"`
}

// Line is one requested item.
type Line struct {
	ID            id.ID          `db:"id" json:"id"`
	RequisitionID id.ID          `db:"requisition_id" json:"-"`
	LineNo        int            `db:"line_no" json:"lineNo"`
	Description   string         `db:"description" json:"description"`
	Quantity      types.Quantity `db:"quantity" json:"quantity"`
	UnitPrice     types.Money    `db:"unit_price" json:"unitPrice"`
	Amount        types.Money    `db:"amount" json:"amount"`
}

// LineInput is the caller-supplied part of a line.
type LineInput struct {
	Description string
	Quantity    types.Quantity
	UnitPrice   types.Money
}

// New creates a draft requisition owned by requester.
func New(requester string) *Requisition {
	return &Requisition{
		BaseDocument: entity.NewBaseDocument(requester),
		RequesterID:  requester,
		Total:        types.Zero(),
		Reserved:     types.Zero(),
		Status:       StatusDraft,
	}
}

// SetLines replaces the lines and recomputes amounts and total.
func (r *Requisition) SetLines(inputs []LineInput) {
	r.Lines = make([]Line, 0, len(inputs))
	for i, in := range inputs {
		r.Lines = append(r.Lines, Line{
			ID:            id.New(),
			RequisitionID: r.ID,
			LineNo:        i + 1,
			Description:   strings.TrimSpace(in.Description),
			Quantity:      in.Quantity,
			UnitPrice:     in.UnitPrice,
		})
	}
	r.recalculateTotals()
}

func (r *Requisition) recalculateTotals() {
	r.Total = types.Zero()
	for i := range r.Lines {
		r.Lines[i].Amount = types.RoundMoney(r.Lines[i].Quantity.Times(r.Lines[i].UnitPrice))
		r.Total = r.Total.Add(r.Lines[i].Amount)
	}
}

// IsEditable reports whether lines and header may change.
func (r *Requisition) IsEditable() bool {
	return r.Status == StatusDraft || r.Status == StatusRejected
}

// Validate checks header and line invariants.
func (r *Requisition) Validate() error {
	if strings.TrimSpace(r.Department) == "" {
		return apperror.NewValidation("department is required").WithDetail("field", "department")
	}
	if r.RequesterID == "" {
		return apperror.NewValidation("requester is required").WithDetail("field", "requesterId")
	}
	if len(r.Currency) != 3 {
		return apperror.NewValidation("currency must be an ISO 4217 code").WithDetail("field", "currency")
	}
	if len(r.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").WithDetail("field", "lines")
	}
	for _, line := range r.Lines {
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
	if !r.Total.IsPositive() {
		return apperror.NewValidation("requisition total must be positive").WithDetail("field", "lines")
	}
	return nil
}

// Fire applies event to the requisition's status.
func (r *Requisition) Fire(event Event) error {
	to, err := Machine.Fire(r.Status, event)
	if err != nil {
		return err
	}
	r.Status = to
	return nil
}
