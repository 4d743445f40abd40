// Package budget owns budget lines and the ledger operations that move money
// between allocated, committed and spent.
package budget

import (
	"fmt"
	"strings"
	"time"

	"procura/internal/core/apperror"
	"procura/internal/core/entity"
	"procura/internal/core/fsm"
	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain/approval"
)

// Status is the review status of a budget line.
type Status string

const (
	StatusDraft         Status = "draft"
	StatusPendingReview Status = "pending_review"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
)

// Event is a budget line review transition.
type Event string

const (
	EventSubmit  Event = "submit"
	EventApprove Event = "approve"
	EventReject  Event = "reject"
)

// Machine is the budget line review lifecycle. A rejected line is revised and resubmitted.
var Machine = fsm.New[Status, Event]("budget line",
	[]Status{StatusDraft, StatusPendingReview, StatusApproved, StatusRejected},
	fsm.Transition[Status, Event]{From: []Status{StatusDraft, StatusRejected}, Event: EventSubmit, To: StatusPendingReview},
	fsm.Transition[Status, Event]{From: []Status{StatusPendingReview}, Event: EventApprove, To: StatusApproved},
	fsm.Transition[Status, Event]{From: []Status{StatusPendingReview}, Event: EventReject, To: StatusRejected},
)

// Line is one department's allocation for a fiscal year and category.
//
// Committed and Spent are written only by Ledger. Available is a display
// cache refreshed on every ledger write; decisions always recompute it.
type Line struct {
	entity.BaseDocument

	Department  string      `db:"department" json:"department"`
	FiscalYear  int         `db:"fiscal_year" json:"fiscalYear"`
	Category    string      `db:"category" json:"category"`
	Currency    string      `db:"currency" json:"currency"`
	Description string      `db:"description" json:"description,omitempty"`
	Allocated   types.Money `db:"allocated" json:"allocated"`
	Committed   types.Money `db:"committed" json:"committed"`
	Spent       types.Money `db:"spent" json:"spent"`
	Available   types.Money `db:"available" json:"available"`
	Status      Status      `db:"status" json:"status"`

	Approvals approval.Trail `db:"-" json:"approvals,omitempty"`
}

// NewLine creates a draft line with zero balances.
func NewLine(actor string) *Line {
	return &Line{
		BaseDocument: entity.NewBaseDocument(actor),
		Allocated:    types.Zero(),
		Committed:    types.Zero(),
		Spent:        types.Zero(),
		Available:    types.Zero(),
		Status:       StatusDraft,
	}
}

// AvailableAmount computes allocated - committed - spent.
func (l *Line) AvailableAmount() types.Money {
	return l.Allocated.Sub(l.Committed).Sub(l.Spent)
}

// IsEditable reports whether header and allocation may change freely.
func (l *Line) IsEditable() bool {
	return l.Status == StatusDraft || l.Status == StatusRejected
}

// Validate checks header invariants.
func (l *Line) Validate() error {
	if strings.TrimSpace(l.Department) == "" {
		return apperror.NewValidation("department is required").WithDetail("field", "department")
	}
	if l.FiscalYear < 2000 || l.FiscalYear > 2200 {
		return apperror.NewValidation("fiscal year is out of range").WithDetail("field", "fiscalYear")
	}
	if strings.TrimSpace(l.Category) == "" {
		return apperror.NewValidation("category is required").WithDetail("field", "category")
	}
	if len(l.Currency) != 3 {
		return apperror.NewValidation("currency must be an ISO 4217 code").WithDetail("field", "currency")
	}
	if l.Allocated.IsNegative() {
		return apperror.NewValidation("allocated amount cannot be negative").WithDetail("field", "allocated")
	}
	return nil
}

// checkBalances verifies committed >= 0, spent >= 0 and committed + spent <= allocated.
func (l *Line) checkBalances() error {
	if l.Committed.IsNegative() || l.Spent.IsNegative() {
		return fmt.Errorf("budget line %s: negative balance (committed %s, spent %s)", l.ID, l.Committed, l.Spent)
	}
	if l.Committed.Add(l.Spent).GreaterThan(l.Allocated) {
		return apperror.NewBudgetExceeded(fmt.Sprintf(
			"budget line %s would exceed its allocation: committed %s + spent %s > allocated %s",
			l.Number, l.Committed.StringFixed(2), l.Spent.StringFixed(2), l.Allocated.StringFixed(2)))
	}
	return nil
}

// EntryKind is the ledger operation recorded in the journal.
type EntryKind string

const (
	EntryReserve EntryKind = "reserve"
	EntryRelease EntryKind = "release"
	EntryConsume EntryKind = "consume"
)

// Entry is an append-only journal row describing one ledger operation.
type Entry struct {
	ID             id.ID       `db:"id" json:"id"`
	BudgetLineID   id.ID       `db:"budget_line_id" json:"budgetLineId"`
	Kind           EntryKind   `db:"kind" json:"kind"`
	Amount         types.Money `db:"amount" json:"amount"`
	Reserved       types.Money `db:"reserved" json:"reserved"`
	DocumentType   string      `db:"document_type" json:"documentType"`
	DocumentID     id.ID       `db:"document_id" json:"documentId"`
	Actor          string      `db:"actor" json:"actor"`
	CommittedAfter types.Money `db:"committed_after" json:"committedAfter"`
	SpentAfter     types.Money `db:"spent_after" json:"spentAfter"`
	CreatedAt      time.Time   `db:"created_at" json:"createdAt"`
}

// Ref identifies the document and actor behind a ledger operation.
type Ref struct {
	DocumentType string
	DocumentID   id.ID
	Actor        string
}
