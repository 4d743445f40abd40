// Package storage assembles the repository set of a storage backend.
package storage

import (
	"procura/internal/app"
	"procura/internal/infrastructure/storage/postgres"
	"procura/internal/infrastructure/storage/postgres/catalog_repo"
	"procura/internal/infrastructure/storage/postgres/document_repo"
	"procura/internal/infrastructure/storage/postgres/register_repo"
)

// NewPostgresRepositories returns every repository backed by PostgreSQL.
func NewPostgresRepositories(txm *postgres.TxManager) app.Repositories {
	return app.Repositories{
		BudgetLines:    register_repo.NewBudgetRepo(txm),
		Approvals:      document_repo.NewApprovalRepo(txm),
		Suppliers:      catalog_repo.NewSupplierRepo(txm),
		Requisitions:   document_repo.NewRequisitionRepo(txm),
		PurchaseOrders: document_repo.NewPurchaseOrderRepo(txm),
		GoodsReceipts:  document_repo.NewGoodsReceiptRepo(txm),
		Invoices:       document_repo.NewInvoiceRepo(txm),
		Payments:       document_repo.NewPaymentRepo(txm),
	}
}
