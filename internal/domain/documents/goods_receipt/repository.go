package goods_receipt

import (
	"context"

	"procura/internal/core/id"
	"procura/internal/domain"
)

// Repository defines operations for goods receipt documents.
type Repository interface {
	Create(ctx context.Context, doc *GoodsReceipt) error
	GetByID(ctx context.Context, docID id.ID) (*GoodsReceipt, error)
	// Update writes the header with an optimistic version check.
	Update(ctx context.Context, doc *GoodsReceipt) error

	// Line operations
	GetLines(ctx context.Context, docID id.ID) ([]Line, error)
	SaveLines(ctx context.Context, docID id.ID, lines []Line) error

	// Discrepancies are append-only.
	GetDiscrepancies(ctx context.Context, docID id.ID) ([]Discrepancy, error)
	AddDiscrepancies(ctx context.Context, docID id.ID, items []Discrepancy) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*GoodsReceipt], error)

	// ListPosted returns posted receipts of an order with their lines.
	ListPosted(ctx context.Context, purchaseOrderID id.ID) ([]*GoodsReceipt, error)

	// Locking
	GetForUpdate(ctx context.Context, docID id.ID) (*GoodsReceipt, error)
}

// ListFilter for filtering goods receipts.
type ListFilter struct {
	domain.ListFilter

	PurchaseOrderID *id.ID
	SupplierID      *id.ID
}
