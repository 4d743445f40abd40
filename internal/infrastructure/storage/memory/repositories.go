package memory

import "procura/internal/app"

// Repositories returns every repository of the store.
func (s *Store) Repositories() app.Repositories {
	return app.Repositories{
		BudgetLines:    s.BudgetLines(),
		Approvals:      s.Approvals(),
		Suppliers:      s.Suppliers(),
		Requisitions:   s.Requisitions(),
		PurchaseOrders: s.PurchaseOrders(),
		GoodsReceipts:  s.GoodsReceipts(),
		Invoices:       s.Invoices(),
		Payments:       s.Payments(),
	}
}
