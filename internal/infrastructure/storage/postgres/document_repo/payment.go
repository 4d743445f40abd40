package document_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"procura/internal/domain"
	"procura/internal/domain/documents/payment"
	"procura/internal/infrastructure/storage/postgres"
)

const paymentsTable = "doc_payments"

var _ payment.Repository = (*PaymentRepo)(nil)

// PaymentRepo implements payment.Repository.
// Invoice allocation lives on doc_invoices.payment_id; the service loads it.
type PaymentRepo struct {
	*BaseDocumentRepo[*payment.Payment]
}

// NewPaymentRepo creates a payment repository.
func NewPaymentRepo(txm *postgres.TxManager) *PaymentRepo {
	return &PaymentRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txm,
			"payment",
			paymentsTable,
			postgres.ExtractDBColumns[payment.Payment](),
			func() *payment.Payment { return &payment.Payment{} },
		),
	}
}

// List retrieves payments with filtering.
func (r *PaymentRepo) List(ctx context.Context, filter payment.ListFilter) (domain.ListResult[*payment.Payment], error) {
	var where []squirrel.Sqlizer
	if filter.SupplierID != nil {
		where = append(where, squirrel.Eq{"supplier_id": *filter.SupplierID})
	}
	return r.BaseDocumentRepo.List(ctx, filter.ListFilter, where...)
}
