// Package approval computes required approval chains and tracks per-level decisions.
package approval

import (
	"time"

	"procura/internal/core/id"
)

// Level is an approval authority level. Levels are totally ordered.
type Level string

const (
	LevelRequester Level = "requester"
	LevelHOD       Level = "hod"
	LevelPrincipal Level = "principal"
	LevelBoard     Level = "board"
)

// Levels lists all levels from lowest to highest authority.
var Levels = []Level{LevelRequester, LevelHOD, LevelPrincipal, LevelBoard}

// Rank returns the position of l in the hierarchy, or -1 for an unknown level.
func (l Level) Rank() int {
	for i, v := range Levels {
		if v == l {
			return i
		}
	}
	return -1
}

// Valid reports whether l is a known level.
func (l Level) Valid() bool { return l.Rank() >= 0 }

// Decision is the outcome recorded for one level.
type Decision string

const (
	DecisionPending  Decision = "pending"
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// Approval is one level's decision on one document within an approval round.
type Approval struct {
	ID           id.ID      `db:"id" json:"id"`
	DocumentType string     `db:"document_type" json:"documentType"`
	DocumentID   id.ID      `db:"document_id" json:"documentId"`
	Round        int        `db:"round" json:"round"`
	Seq          int        `db:"seq" json:"seq"`
	Level        Level      `db:"level" json:"level"`
	ApproverID   string     `db:"approver_id" json:"approverId,omitempty"`
	Decision     Decision   `db:"decision" json:"decision"`
	DecidedAt    *time.Time `db:"decided_at" json:"decidedAt,omitempty"`
	Comments     string     `db:"comments" json:"comments,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
}

// Document types routed through approval chains.
const (
	DocumentRequisition = "requisition"
	DocumentBudgetLine  = "budget_line"
)
