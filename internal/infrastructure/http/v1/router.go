// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"procura/internal/app"
	"procura/internal/infrastructure/http/v1/handlers"
	"procura/internal/infrastructure/http/v1/middleware"
	"procura/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Services is the wired procure-to-pay service graph.
	Services *app.Services

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// Idempotency stores Idempotency-Key outcomes. Nil disables the middleware.
	Idempotency middleware.IdempotencyStore

	// HealthChecks are probed by /health/ready.
	HealthChecks map[string]handlers.HealthCheck
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.HealthChecks)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.JWTValidator))
	if cfg.Idempotency != nil {
		v1.Use(middleware.Idempotency(cfg.Idempotency))
	}

	base := handlers.NewBaseHandler()
	svc := cfg.Services

	budgetHandler := handlers.NewBudgetHandler(base, svc.Budget)
	budget := v1.Group("/budget-lines")
	RegisterEditableRoutes(budget, budgetHandler)
	RegisterApprovalRoutes(budget, budgetHandler)
	budget.POST("/:id/reallocate", budgetHandler.Reallocate)
	budget.GET("/:id/journal", budgetHandler.Journal)

	requisitionHandler := handlers.NewRequisitionHandler(base, svc.Requisitions)
	requisitions := v1.Group("/requisitions")
	RegisterEditableRoutes(requisitions, requisitionHandler)
	RegisterApprovalRoutes(requisitions, requisitionHandler)
	requisitions.POST("/:id/cancel", requisitionHandler.Cancel)

	orderHandler := handlers.NewPurchaseOrderHandler(base, svc.PurchaseOrders)
	orders := v1.Group("/purchase-orders")
	RegisterReadRoutes(orders, orderHandler)
	orders.POST("", orderHandler.Create)
	orders.POST("/:id/issue", orderHandler.Issue)
	orders.POST("/:id/acknowledge", orderHandler.Acknowledge)
	orders.POST("/:id/cancel", orderHandler.Cancel)

	receiptHandler := handlers.NewGoodsReceiptHandler(base, svc.GoodsReceipts)
	receipts := v1.Group("/goods-receipts")
	RegisterReadRoutes(receipts, receiptHandler)
	receipts.POST("", receiptHandler.Receive)
	receipts.POST("/:id/inspect", receiptHandler.Inspect)
	receipts.POST("/:id/accept", receiptHandler.Accept)
	receipts.POST("/:id/reject", receiptHandler.Reject)
	receipts.POST("/:id/post", receiptHandler.Post)

	invoiceHandler := handlers.NewInvoiceHandler(base, svc.Invoices)
	invoices := v1.Group("/invoices")
	RegisterReadRoutes(invoices, invoiceHandler)
	invoices.POST("", invoiceHandler.Create)
	invoices.PUT("/:id", invoiceHandler.Update)
	invoices.POST("/:id/submit", invoiceHandler.Submit)
	invoices.POST("/:id/verify", invoiceHandler.Verify)
	invoices.GET("/:id/match", invoiceHandler.Match)
	invoices.POST("/:id/resubmit", invoiceHandler.Resubmit)

	paymentHandler := handlers.NewPaymentHandler(base, svc.Payments)
	payments := v1.Group("/payments")
	RegisterReadRoutes(payments, paymentHandler)
	payments.POST("", paymentHandler.Create)
	payments.DELETE("/:id", paymentHandler.Delete)
	payments.POST("/:id/submit", paymentHandler.Submit)
	payments.POST("/:id/approve", paymentHandler.Approve)
	payments.POST("/:id/reject", paymentHandler.Reject)
	payments.POST("/:id/process", paymentHandler.Process)
	payments.POST("/:id/settle", paymentHandler.Settle)

	supplierHandler := handlers.NewSupplierHandler(base, svc.Suppliers)
	suppliers := v1.Group("/suppliers")
	RegisterReadRoutes(suppliers, supplierHandler)
	suppliers.POST("", supplierHandler.Create)

	return router
}
