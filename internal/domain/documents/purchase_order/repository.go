package purchase_order

import (
	"context"

	"procura/internal/core/id"
	"procura/internal/domain"
)

// Repository defines operations for purchase order documents.
type Repository interface {
	Create(ctx context.Context, doc *PurchaseOrder) error
	GetByID(ctx context.Context, docID id.ID) (*PurchaseOrder, error)
	// Update writes the header with an optimistic version check.
	Update(ctx context.Context, doc *PurchaseOrder) error

	GetLines(ctx context.Context, docID id.ID) ([]Line, error)
	// SaveLines upserts lines by id and removes lines no longer present.
	SaveLines(ctx context.Context, docID id.ID, lines []Line) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*PurchaseOrder], error)

	// GetForUpdate reads the header under a row lock. Receipt and invoice
	// services take this lock to serialize quantity accumulation.
	GetForUpdate(ctx context.Context, docID id.ID) (*PurchaseOrder, error)

	// GetByRequisition returns the order raised from a requisition.
	GetByRequisition(ctx context.Context, requisitionID id.ID) (*PurchaseOrder, error)
}

// ListFilter for filtering purchase orders.
type ListFilter struct {
	domain.ListFilter

	SupplierID    *id.ID
	RequisitionID *id.ID
}
