package budget

import (
	"context"

	"procura/internal/core/id"
	"procura/internal/domain"
)

// ListFilter extends the common filter with ledger dimensions.
type ListFilter struct {
	domain.ListFilter

	FiscalYear int
	Category   string
}

// Repository persists budget lines and their journal.
type Repository interface {
	Create(ctx context.Context, line *Line) error

	// Update writes header, allocation and status with a version check.
	// It never writes committed or spent.
	Update(ctx context.Context, line *Line) error

	// SaveBalances writes committed, spent and available with a version check.
	// Only Ledger calls it.
	SaveBalances(ctx context.Context, line *Line) error

	// Delete soft-deletes a line.
	Delete(ctx context.Context, lineID id.ID) error

	GetByID(ctx context.Context, lineID id.ID) (*Line, error)

	// GetForUpdate reads the line under a row lock held until the transaction ends.
	GetForUpdate(ctx context.Context, lineID id.ID) (*Line, error)

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Line], error)

	// AppendEntry writes a journal row. Journal rows are never updated.
	AppendEntry(ctx context.Context, entry *Entry) error

	ListEntries(ctx context.Context, lineID id.ID) ([]*Entry, error)
}
