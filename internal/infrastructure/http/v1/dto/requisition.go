package dto

import (
	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain/documents/requisition"
)

// RequisitionLineRequest is one requested item.
type RequisitionLineRequest struct {
	Description string         `json:"description" binding:"required"`
	Quantity    types.Quantity `json:"quantity"`
	UnitPrice   types.Money    `json:"unitPrice"`
}

// CreateRequisitionRequest is the body of POST /requisitions.
type CreateRequisitionRequest struct {
	Department    string                   `json:"department" binding:"required"`
	Currency      string                   `json:"currency" binding:"required,len=3"`
	Category      string                   `json:"category" binding:"required"`
	Justification string                   `json:"justification"`
	BudgetLineID  *id.ID                   `json:"budgetLineId"`
	Emergency     bool                     `json:"emergency"`
	SingleSource  bool                     `json:"singleSource"`
	Lines         []RequisitionLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ToCommand converts the request.
func (r CreateRequisitionRequest) ToCommand() requisition.CreateCommand {
	lines := make([]requisition.LineInput, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = requisition.LineInput{
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
		}
	}
	return requisition.CreateCommand{
		Department:    r.Department,
		Currency:      r.Currency,
		Category:      r.Category,
		Justification: r.Justification,
		BudgetLineID:  r.BudgetLineID,
		Emergency:     r.Emergency,
		SingleSource:  r.SingleSource,
		Lines:         lines,
	}
}

// UpdateRequisitionRequest is the body of PUT /requisitions/:id.
type UpdateRequisitionRequest struct {
	Version int `json:"version" binding:"required,min=1"`
	CreateRequisitionRequest
}

// ToCommand converts the request.
func (r UpdateRequisitionRequest) ToCommand(docID id.ID) requisition.UpdateCommand {
	return requisition.UpdateCommand{
		ID:            docID,
		Version:       r.Version,
		CreateCommand: r.CreateRequisitionRequest.ToCommand(),
	}
}

// RequisitionListQuery adds requisition filters to ListQuery.
type RequisitionListQuery struct {
	ListQuery
	RequesterID  string `form:"requesterId"`
	BudgetLineID string `form:"budgetLineId"`
}

// ToFilter converts the query.
func (q RequisitionListQuery) ToFilter() (requisition.ListFilter, error) {
	lineID, err := optionalID(q.BudgetLineID)
	if err != nil {
		return requisition.ListFilter{}, err
	}
	return requisition.ListFilter{
		ListFilter:   q.ListQuery.ToFilter(),
		RequesterID:  q.RequesterID,
		BudgetLineID: lineID,
	}, nil
}
