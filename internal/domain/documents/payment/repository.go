package payment

import (
	"context"

	"procura/internal/core/id"
	"procura/internal/domain"
)

// Repository defines operations for payments.
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, paymentID id.ID) (*Payment, error)
	// Update writes the header with an optimistic version check.
	Update(ctx context.Context, p *Payment) error
	// Delete soft-deletes a draft payment.
	Delete(ctx context.Context, paymentID id.ID) error

	// GetForUpdate reads the header under a row lock.
	GetForUpdate(ctx context.Context, paymentID id.ID) (*Payment, error)

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Payment], error)
}

// ListFilter for filtering payments.
type ListFilter struct {
	domain.ListFilter

	SupplierID *id.ID
}
