package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/domain"
	"procura/internal/domain/documents/invoice"
	"procura/internal/infrastructure/storage/postgres"
)

const (
	invoicesTable     = "doc_invoices"
	invoiceLinesTable = "doc_invoice_lines"
)

var _ invoice.Repository = (*InvoiceRepo)(nil)

// InvoiceRepo implements invoice.Repository.
type InvoiceRepo struct {
	*BaseDocumentRepo[*invoice.Invoice]
	lines *lineTable[invoice.Line]
}

// NewInvoiceRepo creates an invoice repository.
func NewInvoiceRepo(txm *postgres.TxManager) *InvoiceRepo {
	return &InvoiceRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txm,
			"invoice",
			invoicesTable,
			postgres.ExtractDBColumns[invoice.Invoice](),
			func() *invoice.Invoice { return &invoice.Invoice{} },
		),
		lines: newLineTable(txm, invoiceLinesTable, "invoice_id",
			func(l invoice.Line) id.ID { return l.ID }),
	}
}

// Create inserts an invoice. The (supplier, supplier number) pair is unique.
func (r *InvoiceRepo) Create(ctx context.Context, doc *invoice.Invoice) error {
	err := r.BaseDocumentRepo.Create(ctx, doc)
	if apperror.HasCode(err, apperror.CodeConflict) {
		return apperror.NewConflict("duplicate supplier invoice number").
			WithDetail("supplier_invoice_number", doc.SupplierInvoiceNumber).
			WithCause(err)
	}
	return err
}

// GetLines retrieves the lines of an invoice.
func (r *InvoiceRepo) GetLines(ctx context.Context, docID id.ID) ([]invoice.Line, error) {
	return r.lines.get(ctx, docID)
}

// SaveLines replaces the lines of an invoice.
func (r *InvoiceRepo) SaveLines(ctx context.Context, docID id.ID, lines []invoice.Line) error {
	return r.lines.save(ctx, docID, lines)
}

// ExistsSupplierNumber reports whether supplierID already used number on another invoice.
func (r *InvoiceRepo) ExistsSupplierNumber(ctx context.Context, supplierID id.ID, number string, excludeID id.ID) (bool, error) {
	sql, args, err := r.Builder().
		Select("1").
		Prefix("SELECT EXISTS (").
		From(invoicesTable).
		Where(squirrel.Eq{"supplier_id": supplierID}).
		Where(squirrel.Eq{"supplier_invoice_number": number}).
		Where(squirrel.NotEq{"id": excludeID}).
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var exists bool
	if err := r.Querier(ctx).QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check supplier invoice number: %w", err)
	}
	return exists, nil
}

// ListByPayment returns the invoices allocated to a payment ordered by number.
func (r *InvoiceRepo) ListByPayment(ctx context.Context, paymentID id.ID) ([]*invoice.Invoice, error) {
	return r.FindAll(ctx, r.BaseSelect().
		Where(squirrel.Eq{"payment_id": paymentID}).
		OrderBy("number"))
}

// List retrieves invoices with filtering.
func (r *InvoiceRepo) List(ctx context.Context, filter invoice.ListFilter) (domain.ListResult[*invoice.Invoice], error) {
	var where []squirrel.Sqlizer
	if filter.SupplierID != nil {
		where = append(where, squirrel.Eq{"supplier_id": *filter.SupplierID})
	}
	if filter.PurchaseOrderID != nil {
		where = append(where, squirrel.Eq{"purchase_order_id": *filter.PurchaseOrderID})
	}
	if filter.PaymentStatus != "" {
		where = append(where, squirrel.Eq{"payment_status": filter.PaymentStatus})
	}
	return r.BaseDocumentRepo.List(ctx, filter.ListFilter, where...)
}
