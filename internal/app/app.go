// Package app wires the workflow services over a set of repositories.
// The server binary passes PostgreSQL repositories; tests pass the in-memory store.
package app

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"procura/internal/core/numerator"
	"procura/internal/core/tx"
	"procura/internal/domain"
	"procura/internal/domain/approval"
	"procura/internal/domain/budget"
	gr "procura/internal/domain/documents/goods_receipt"
	"procura/internal/domain/documents/invoice"
	"procura/internal/domain/documents/payment"
	po "procura/internal/domain/documents/purchase_order"
	"procura/internal/domain/documents/requisition"
	"procura/internal/domain/matching"
	"procura/internal/domain/supplier"
)

// Repositories is every persistence contract the services need.
type Repositories struct {
	BudgetLines    budget.Repository
	Approvals      approval.Repository
	Suppliers      supplier.Repository
	Requisitions   requisition.Repository
	PurchaseOrders po.Repository
	GoodsReceipts  gr.Repository
	Invoices       invoice.Repository
	Payments       payment.Repository
}

// Policies are the configurable business rules.
type Policies struct {
	Routing           approval.RouterConfig
	PriceTolerancePct decimal.Decimal
	Overrun           budget.OverrunPolicy
	ExpiryWindow      time.Duration
	Withholding       payment.WHTPolicy
}

// DefaultPolicies returns the standard thresholds: 2% price tolerance,
// excess reservation on over-run, 30-day expiry window.
func DefaultPolicies() Policies {
	return Policies{
		Routing:           approval.DefaultRouterConfig(),
		PriceTolerancePct: matching.DefaultTolerancePct,
		Overrun:           budget.OverrunReserveExcess,
		ExpiryWindow:      gr.DefaultExpiryWarningWindow,
		Withholding:       payment.DefaultWHTPolicy(),
	}
}

// Services is the assembled workflow engine.
type Services struct {
	Ledger         *budget.Ledger
	Router         *approval.Router
	Validator      *matching.Validator
	Budget         *budget.Service
	Suppliers      *supplier.Service
	Requisitions   *requisition.Service
	PurchaseOrders *po.Service
	GoodsReceipts  *gr.Service
	Invoices       *invoice.Service
	Payments       *payment.Service
}

// New builds every service. events receives domain events inside each
// transaction; nil discards them.
func New(repos Repositories, txm tx.Manager, gen numerator.Generator, events domain.EventPublisher, p Policies) (*Services, error) {
	router, err := approval.NewRouter(p.Routing)
	if err != nil {
		return nil, err
	}
	validator, err := matching.NewValidator(p.PriceTolerancePct)
	if err != nil {
		return nil, err
	}
	if err := p.Withholding.Validate(); err != nil {
		return nil, fmt.Errorf("withholding policy: %w", err)
	}

	ledger := budget.NewLedger(repos.BudgetLines, txm, p.Overrun)

	return &Services{
		Ledger:    ledger,
		Router:    router,
		Validator: validator,
		Budget:    budget.NewService(repos.BudgetLines, repos.Approvals, ledger, router, gen, txm, events),
		Suppliers: supplier.NewService(repos.Suppliers, txm),
		Requisitions: requisition.NewService(repos.Requisitions, repos.Approvals, repos.BudgetLines,
			ledger, router, gen, txm, events),
		PurchaseOrders: po.NewService(repos.PurchaseOrders, repos.Requisitions, repos.Suppliers,
			ledger, gen, txm, events),
		GoodsReceipts: gr.NewService(repos.GoodsReceipts, repos.PurchaseOrders, gen, txm, events, p.ExpiryWindow),
		Invoices: invoice.NewService(repos.Invoices, repos.PurchaseOrders, repos.GoodsReceipts,
			validator, ledger, gen, txm, events),
		Payments: payment.NewService(repos.Payments, repos.Invoices, repos.Suppliers,
			p.Withholding, gen, txm, events),
	}, nil
}
