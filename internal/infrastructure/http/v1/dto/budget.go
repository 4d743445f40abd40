package dto

import (
	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain/budget"
)

// CreateBudgetLineRequest is the body of POST /budget-lines.
type CreateBudgetLineRequest struct {
	Department  string      `json:"department" binding:"required"`
	FiscalYear  int         `json:"fiscalYear" binding:"required,min=2000,max=2999"`
	Category    string      `json:"category" binding:"required"`
	Currency    string      `json:"currency" binding:"required,len=3"`
	Description string      `json:"description"`
	Allocated   types.Money `json:"allocated"`
}

// ToCommand converts the request.
func (r CreateBudgetLineRequest) ToCommand() budget.CreateCommand {
	return budget.CreateCommand{
		Department:  r.Department,
		FiscalYear:  r.FiscalYear,
		Category:    r.Category,
		Currency:    r.Currency,
		Description: r.Description,
		Allocated:   r.Allocated,
	}
}

// UpdateBudgetLineRequest is the body of PUT /budget-lines/:id.
type UpdateBudgetLineRequest struct {
	Version     int         `json:"version" binding:"required,min=1"`
	Category    string      `json:"category" binding:"required"`
	Description string      `json:"description"`
	Allocated   types.Money `json:"allocated"`
}

// ToCommand converts the request.
func (r UpdateBudgetLineRequest) ToCommand(lineID id.ID) budget.UpdateCommand {
	return budget.UpdateCommand{
		ID:          lineID,
		Version:     r.Version,
		Category:    r.Category,
		Description: r.Description,
		Allocated:   r.Allocated,
	}
}

// ReallocateRequest is the body of POST /budget-lines/:id/reallocate.
type ReallocateRequest struct {
	Allocated types.Money `json:"allocated"`
}

// BudgetListQuery adds budget filters to ListQuery.
type BudgetListQuery struct {
	ListQuery
	FiscalYear int    `form:"fiscalYear"`
	Category   string `form:"category"`
}

// ToFilter converts the query.
func (q BudgetListQuery) ToFilter() budget.ListFilter {
	return budget.ListFilter{
		ListFilter: q.ListQuery.ToFilter(),
		FiscalYear: q.FiscalYear,
		Category:   q.Category,
	}
}
