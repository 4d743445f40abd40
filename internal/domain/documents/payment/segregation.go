package payment

import "procura/internal/core/apperror"

// checkApprover enforces that whoever decides on approval is not the creator.
func checkApprover(p *Payment, actor string) error {
	if actor == p.Creator() {
		return apperror.NewSegregationOfDuties("the creator of a payment cannot decide on its approval").
			WithDetail("role", "approver").
			WithDetail("conflictsWith", "creator")
	}
	return nil
}

// checkProcessor enforces that the processor is neither the creator nor the approver.
func checkProcessor(p *Payment, actor string) error {
	switch actor {
	case p.Creator():
		return apperror.NewSegregationOfDuties("the creator of a payment cannot process it").
			WithDetail("role", "processor").
			WithDetail("conflictsWith", "creator")
	case p.ApprovedBy:
		return apperror.NewSegregationOfDuties("the approver of a payment cannot process it").
			WithDetail("role", "processor").
			WithDetail("conflictsWith", "approver")
	}
	return nil
}
