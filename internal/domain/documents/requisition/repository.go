package requisition

import (
	"context"

	"procura/internal/core/id"
	"procura/internal/domain"
)

// Repository defines operations for requisition documents.
type Repository interface {
	Create(ctx context.Context, doc *Requisition) error
	GetByID(ctx context.Context, docID id.ID) (*Requisition, error)
	// Update writes the header with an optimistic version check.
	Update(ctx context.Context, doc *Requisition) error
	Delete(ctx context.Context, docID id.ID) error

	GetLines(ctx context.Context, docID id.ID) ([]Line, error)
	SaveLines(ctx context.Context, docID id.ID, lines []Line) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Requisition], error)

	// GetForUpdate reads the header under a row lock.
	GetForUpdate(ctx context.Context, docID id.ID) (*Requisition, error)
}

// ListFilter for filtering requisitions.
type ListFilter struct {
	domain.ListFilter

	RequesterID  string
	BudgetLineID *id.ID
}
