package document_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"procura/internal/core/id"
	"procura/internal/domain"
	po "procura/internal/domain/documents/purchase_order"
	"procura/internal/infrastructure/storage/postgres"
)

const (
	purchaseOrdersTable     = "doc_purchase_orders"
	purchaseOrderLinesTable = "doc_purchase_order_lines"
)

var _ po.Repository = (*PurchaseOrderRepo)(nil)

// PurchaseOrderRepo implements purchase_order.Repository.
type PurchaseOrderRepo struct {
	*BaseDocumentRepo[*po.PurchaseOrder]
	lines *lineTable[po.Line]
}

// NewPurchaseOrderRepo creates a purchase order repository.
func NewPurchaseOrderRepo(txm *postgres.TxManager) *PurchaseOrderRepo {
	return &PurchaseOrderRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txm,
			"purchase_order",
			purchaseOrdersTable,
			postgres.ExtractDBColumns[po.PurchaseOrder](),
			func() *po.PurchaseOrder { return &po.PurchaseOrder{} },
		),
		lines: newLineTable(txm, purchaseOrderLinesTable, "purchase_order_id",
			func(l po.Line) id.ID { return l.ID }),
	}
}

// GetLines retrieves the lines of an order.
func (r *PurchaseOrderRepo) GetLines(ctx context.Context, docID id.ID) ([]po.Line, error) {
	return r.lines.get(ctx, docID)
}

// SaveLines upserts order lines by id and removes missing ones.
func (r *PurchaseOrderRepo) SaveLines(ctx context.Context, docID id.ID, lines []po.Line) error {
	return r.lines.save(ctx, docID, lines)
}

// GetByRequisition returns the order raised from a requisition.
func (r *PurchaseOrderRepo) GetByRequisition(ctx context.Context, requisitionID id.ID) (*po.PurchaseOrder, error) {
	q := r.BaseSelect().
		Where(squirrel.Eq{"requisition_id": requisitionID}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Limit(1)
	return r.FindOne(ctx, q, requisitionID.String())
}

// List retrieves orders with filtering.
func (r *PurchaseOrderRepo) List(ctx context.Context, filter po.ListFilter) (domain.ListResult[*po.PurchaseOrder], error) {
	var where []squirrel.Sqlizer
	if filter.SupplierID != nil {
		where = append(where, squirrel.Eq{"supplier_id": *filter.SupplierID})
	}
	if filter.RequisitionID != nil {
		where = append(where, squirrel.Eq{"requisition_id": *filter.RequisitionID})
	}
	return r.BaseDocumentRepo.List(ctx, filter.ListFilter, where...)
}
