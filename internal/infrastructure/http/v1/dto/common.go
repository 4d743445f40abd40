// Package dto provides Data Transfer Objects for API requests/responses.
// Responses serialize domain documents directly; requests are bound here and
// converted into service commands.
package dto

import (
	"procura/internal/core/id"
	"procura/internal/domain"
)

// --- Listing ---

// ListQuery contains the common list parameters.
type ListQuery struct {
	Search         string `form:"search"`
	Status         string `form:"status"`
	Department     string `form:"department"`
	OrderBy        string `form:"orderBy"`
	IncludeDeleted bool   `form:"includeDeleted"`
	Limit          int    `form:"limit" binding:"omitempty,min=1,max=200"`
	Offset         int    `form:"offset" binding:"omitempty,min=0"`
}

// ToFilter converts the query into a domain filter with defaults applied.
func (q ListQuery) ToFilter() domain.ListFilter {
	f := domain.DefaultListFilter()
	f.Search = q.Search
	f.Status = q.Status
	f.Department = q.Department
	f.IncludeDeleted = q.IncludeDeleted
	if q.OrderBy != "" {
		f.OrderBy = q.OrderBy
	}
	if q.Limit > 0 {
		f.Limit = q.Limit
	}
	f.Offset = q.Offset
	return f
}

// optionalID parses an optional id query value.
func optionalID(s string) (*id.ID, error) {
	if s == "" {
		return nil, nil
	}
	v, err := id.Parse(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// --- Transition bodies ---

// DecisionRequest carries an approval decision at one level.
type DecisionRequest struct {
	Level    string `json:"level" binding:"required"`
	Comments string `json:"comments"`
}

// ReasonRequest carries a mandatory free-text reason.
type ReasonRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// --- ID Response ---

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// --- Error Response ---

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
