package approval

import (
	"fmt"
	"slices"
	"time"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
)

// Outcome tells the document service what an approve call changed.
type Outcome int

const (
	// OutcomeNoop means the same actor already approved this level.
	OutcomeNoop Outcome = iota
	// OutcomeAdvanced means the level was approved and further levels remain.
	OutcomeAdvanced
	// OutcomeCompleted means the last level was approved.
	OutcomeCompleted
)

// Trail is the full approval history of one document.
type Trail []*Approval

// CurrentRound returns the highest round number, 0 when empty.
func (t Trail) CurrentRound() int {
	round := 0
	for _, a := range t {
		if a.Round > round {
			round = a.Round
		}
	}
	return round
}

// Round returns the records of round n ordered by Seq.
func (t Trail) Round(n int) Trail {
	var out Trail
	for _, a := range t {
		if a.Round == n {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b *Approval) int { return a.Seq - b.Seq })
	return out
}

// Open appends a new round for chain and returns the extended trail.
// The requester level is recorded as approved by submitter at now.
func (t Trail) Open(documentType string, documentID id.ID, chain Chain, submitter string, now time.Time) Trail {
	round := t.CurrentRound() + 1
	out := append(Trail{}, t...)
	for i, level := range chain.Levels {
		a := &Approval{
			ID:           id.New(),
			DocumentType: documentType,
			DocumentID:   documentID,
			Round:        round,
			Seq:          i + 1,
			Level:        level,
			Decision:     DecisionPending,
			CreatedAt:    now,
		}
		if level == LevelRequester {
			decided := now
			a.ApproverID = submitter
			a.Decision = DecisionApproved
			a.DecidedAt = &decided
			a.Comments = "submitted"
		}
		out = append(out, a)
	}
	return out
}

// NextPending returns the lowest pending record of the current round, or nil.
func (t Trail) NextPending() *Approval {
	for _, a := range t.Round(t.CurrentRound()) {
		if a.Decision == DecisionPending {
			return a
		}
	}
	return nil
}

// Complete reports whether every level of the current round is approved.
func (t Trail) Complete() bool {
	current := t.Round(t.CurrentRound())
	if len(current) == 0 {
		return false
	}
	for _, a := range current {
		if a.Decision != DecisionApproved {
			return false
		}
	}
	return true
}

// Approve records actor's approval of level in the current round.
//
// owner is the document's requester or creator: nobody approves a level above
// requester on their own document, and nobody approves two levels of one round.
// A retry by the actor who already approved the level is a no-op.
func (t Trail) Approve(level Level, actor, owner, comments string, now time.Time) (Outcome, error) {
	current := t.Round(t.CurrentRound())
	target := current.find(level)
	if target == nil {
		return OutcomeNoop, apperror.NewValidation(fmt.Sprintf("level %q is not part of the approval chain", level)).
			WithDetail("level", level)
	}

	if target.Decision == DecisionApproved {
		if target.ApproverID == actor {
			return OutcomeNoop, nil
		}
		return OutcomeNoop, apperror.NewInvalidTransition("approval", string(target.Decision), "approve").
			WithDetail("level", level)
	}
	if target.Decision == DecisionRejected {
		return OutcomeNoop, apperror.NewInvalidTransition("approval", string(target.Decision), "approve").
			WithDetail("level", level)
	}

	if next := current.NextPending(); next != target {
		return OutcomeNoop, apperror.NewInvalidTransition("approval", "awaiting "+string(next.Level), "approve").
			WithDetail("level", level)
	}

	if actor == owner {
		return OutcomeNoop, apperror.NewSegregationOfDuties("the requester cannot approve their own document above requester level").
			WithDetail("level", level)
	}
	for _, a := range current {
		if a.Level != LevelRequester && a.Decision == DecisionApproved && a.ApproverID == actor {
			return OutcomeNoop, apperror.NewSegregationOfDuties(
				fmt.Sprintf("%s already approved level %q of this document", actor, a.Level)).
				WithDetail("level", level)
		}
	}

	decided := now
	target.Decision = DecisionApproved
	target.ApproverID = actor
	target.DecidedAt = &decided
	target.Comments = comments

	if current.Complete() {
		return OutcomeCompleted, nil
	}
	return OutcomeAdvanced, nil
}

// Reject records a rejection at the current pending level, ending the round.
func (t Trail) Reject(level Level, actor, owner, comments string, now time.Time) error {
	if comments == "" {
		return apperror.NewValidation("a rejection reason is required").WithDetail("field", "comments")
	}
	current := t.Round(t.CurrentRound())
	target := current.find(level)
	if target == nil {
		return apperror.NewValidation(fmt.Sprintf("level %q is not part of the approval chain", level)).
			WithDetail("level", level)
	}
	if next := current.NextPending(); next == nil || next != target {
		return apperror.NewInvalidTransition("approval", string(target.Decision), "reject").
			WithDetail("level", level)
	}
	if actor == owner {
		return apperror.NewSegregationOfDuties("the requester cannot decide on their own document").
			WithDetail("level", level)
	}

	decided := now
	target.Decision = DecisionRejected
	target.ApproverID = actor
	target.DecidedAt = &decided
	target.Comments = comments
	return nil
}

// ApprovedBy reports whether actor approved level in the current round.
func (t Trail) ApprovedBy(level Level, actor string) bool {
	a := t.Round(t.CurrentRound()).find(level)
	return a != nil && a.Decision == DecisionApproved && a.ApproverID == actor
}

func (t Trail) find(level Level) *Approval {
	for _, a := range t {
		if a.Level == level {
			return a
		}
	}
	return nil
}
