// Package domain provides contracts shared by all workflow services.
package domain

import (
	"context"

	"procura/internal/core/id"
)

// --- Filter & Pagination ---

// ListFilter contains common filtering options for list operations.
type ListFilter struct {
	// Search matches the document number
	Search string

	// Status filters by lifecycle status
	Status string

	// Department filters documents owned by a department
	Department string

	// IncludeDeleted includes soft-deleted records
	IncludeDeleted bool

	// OrderBy specifies sorting (e.g., "number", "-created_at")
	OrderBy string

	// Pagination
	Limit  int
	Offset int
}

// DefaultListFilter returns sensible defaults.
func DefaultListFilter() ListFilter {
	return ListFilter{
		Limit:   50,
		OrderBy: "-created_at",
	}
}

// ListResult contains paginated results.
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// --- Domain events ---

// Event is a fact produced by a state transition.
// It is written in the same transaction as the transition and delivered
// asynchronously; delivery failures never affect the transition.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Actor         string
	Payload       map[string]any
}

// EventPublisher records events inside the caller's transaction.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher discards events.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }
