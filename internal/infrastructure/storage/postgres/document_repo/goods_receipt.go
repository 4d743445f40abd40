package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"procura/internal/core/id"
	"procura/internal/domain"
	gr "procura/internal/domain/documents/goods_receipt"
	"procura/internal/infrastructure/storage/postgres"
)

const (
	goodsReceiptsTable             = "doc_goods_receipts"
	goodsReceiptLinesTable         = "doc_goods_receipt_lines"
	goodsReceiptDiscrepanciesTable = "doc_goods_receipt_discrepancies"
)

var _ gr.Repository = (*GoodsReceiptRepo)(nil)

// GoodsReceiptRepo implements goods_receipt.Repository.
type GoodsReceiptRepo struct {
	*BaseDocumentRepo[*gr.GoodsReceipt]
	lines           *lineTable[gr.Line]
	discrepancyCols []string
}

// NewGoodsReceiptRepo creates a goods receipt repository.
func NewGoodsReceiptRepo(txm *postgres.TxManager) *GoodsReceiptRepo {
	return &GoodsReceiptRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txm,
			"goods_receipt",
			goodsReceiptsTable,
			postgres.ExtractDBColumns[gr.GoodsReceipt](),
			func() *gr.GoodsReceipt { return &gr.GoodsReceipt{} },
		),
		lines: newLineTable(txm, goodsReceiptLinesTable, "goods_receipt_id",
			func(l gr.Line) id.ID { return l.ID }),
		discrepancyCols: postgres.ExtractDBColumns[gr.Discrepancy](),
	}
}

// GetLines retrieves the lines of a receipt.
func (r *GoodsReceiptRepo) GetLines(ctx context.Context, docID id.ID) ([]gr.Line, error) {
	return r.lines.get(ctx, docID)
}

// SaveLines replaces the lines of a receipt.
func (r *GoodsReceiptRepo) SaveLines(ctx context.Context, docID id.ID, lines []gr.Line) error {
	return r.lines.save(ctx, docID, lines)
}

// GetDiscrepancies returns the recorded acceptance shortfalls of a receipt.
func (r *GoodsReceiptRepo) GetDiscrepancies(ctx context.Context, docID id.ID) ([]gr.Discrepancy, error) {
	sql, args, err := r.Builder().
		Select(r.discrepancyCols...).
		From(goodsReceiptDiscrepanciesTable).
		Where(squirrel.Eq{"goods_receipt_id": docID}).
		OrderBy("created_at", "line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []gr.Discrepancy
	if err := pgxscan.Select(ctx, r.Querier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("get discrepancies: %w", err)
	}
	return items, nil
}

// AddDiscrepancies appends discrepancy rows with the COPY protocol.
func (r *GoodsReceiptRepo) AddDiscrepancies(ctx context.Context, docID id.ID, items []gr.Discrepancy) error {
	rows := make([][]any, 0, len(items))
	for _, d := range items {
		d.GoodsReceiptID = docID
		rows = append(rows, postgres.RowValues(d, r.discrepancyCols))
	}
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		_, err := r.txm.CopyFromSlice(ctx, goodsReceiptDiscrepanciesTable, r.discrepancyCols, rows)
		return err
	})
}

// ListPosted returns the posted receipts of an order with their lines.
func (r *GoodsReceiptRepo) ListPosted(ctx context.Context, purchaseOrderID id.ID) ([]*gr.GoodsReceipt, error) {
	receipts, err := r.FindAll(ctx, r.BaseSelect().
		Where(squirrel.Eq{"purchase_order_id": purchaseOrderID}).
		Where(squirrel.Eq{"status": gr.StatusPostedToInventory}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("posted_at", "number"))
	if err != nil || len(receipts) == 0 {
		return receipts, err
	}

	ids := make([]id.ID, 0, len(receipts))
	byID := make(map[id.ID]*gr.GoodsReceipt, len(receipts))
	for _, rc := range receipts {
		ids = append(ids, rc.ID)
		byID[rc.ID] = rc
	}

	lines, err := r.lines.selectWhere(ctx, squirrel.Eq{"goods_receipt_id": ids})
	if err != nil {
		return nil, err
	}
	for _, l := range lines {
		if rc, ok := byID[l.GoodsReceiptID]; ok {
			rc.Lines = append(rc.Lines, l)
		}
	}
	return receipts, nil
}

// List retrieves receipts with filtering.
func (r *GoodsReceiptRepo) List(ctx context.Context, filter gr.ListFilter) (domain.ListResult[*gr.GoodsReceipt], error) {
	var where []squirrel.Sqlizer
	if filter.PurchaseOrderID != nil {
		where = append(where, squirrel.Eq{"purchase_order_id": *filter.PurchaseOrderID})
	}
	if filter.SupplierID != nil {
		where = append(where, squirrel.Eq{"supplier_id": *filter.SupplierID})
	}
	return r.BaseDocumentRepo.List(ctx, filter.ListFilter, where...)
}
