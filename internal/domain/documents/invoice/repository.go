package invoice

import (
	"context"

	"procura/internal/core/id"
	"procura/internal/domain"
)

// Repository defines operations for invoice documents.
type Repository interface {
	Create(ctx context.Context, doc *Invoice) error
	GetByID(ctx context.Context, docID id.ID) (*Invoice, error)
	// Update writes the header with an optimistic version check.
	Update(ctx context.Context, doc *Invoice) error

	GetLines(ctx context.Context, docID id.ID) ([]Line, error)
	SaveLines(ctx context.Context, docID id.ID, lines []Line) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Invoice], error)

	// GetForUpdate reads the header under a row lock.
	GetForUpdate(ctx context.Context, docID id.ID) (*Invoice, error)

	// ExistsSupplierNumber reports whether supplierID already has an invoice
	// numbered number, other than excludeID.
	ExistsSupplierNumber(ctx context.Context, supplierID id.ID, number string, excludeID id.ID) (bool, error)

	// ListByPayment returns the invoices allocated to a payment.
	ListByPayment(ctx context.Context, paymentID id.ID) ([]*Invoice, error)
}

// ListFilter for filtering invoices.
type ListFilter struct {
	domain.ListFilter

	SupplierID      *id.ID
	PurchaseOrderID *id.ID
	PaymentStatus   PaymentStatus
}
