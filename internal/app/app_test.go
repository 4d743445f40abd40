package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procura/internal/app"
	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/core/numerator"
	"procura/internal/core/types"
	"procura/internal/domain/approval"
	"procura/internal/domain/budget"
	gr "procura/internal/domain/documents/goods_receipt"
	"procura/internal/domain/documents/invoice"
	"procura/internal/domain/documents/payment"
	po "procura/internal/domain/documents/purchase_order"
	"procura/internal/domain/documents/requisition"
	"procura/internal/domain/supplier"
	"procura/internal/infrastructure/storage/memory"
)

func newEngine(t *testing.T) (*app.Services, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc, err := app.New(store.Repositories(), store, &numerator.MockGenerator{}, store, app.DefaultPolicies())
	require.NoError(t, err)
	return svc, store
}

func approvedLine(t *testing.T, ctx context.Context, svc *app.Services, allocated string) *budget.Line {
	t.Helper()
	line, err := svc.Budget.Create(ctx, "finance", budget.CreateCommand{
		Department: "science",
		FiscalYear: 2026,
		Category:   "laboratory",
		Currency:   "USD",
		Allocated:  types.MustMoney(allocated),
	})
	require.NoError(t, err)
	_, err = svc.Budget.Submit(ctx, "finance", line.ID)
	require.NoError(t, err)
	_, err = svc.Budget.Approve(ctx, "hod-science", line.ID, approval.LevelHOD, "")
	require.NoError(t, err)
	line, err = svc.Budget.Approve(ctx, "principal", line.ID, approval.LevelPrincipal, "")
	require.NoError(t, err)
	require.Equal(t, budget.StatusApproved, line.Status)
	return line
}

func assertBalances(t *testing.T, ctx context.Context, svc *app.Services, lineID id.ID, committed, spent, available string) {
	t.Helper()
	line, err := svc.Budget.Get(ctx, lineID)
	require.NoError(t, err)
	assert.Equal(t, committed, line.Committed.StringFixed(2), "committed")
	assert.Equal(t, spent, line.Spent.StringFixed(2), "spent")
	assert.Equal(t, available, line.AvailableAmount().StringFixed(2), "available")
}

func TestProcureToPay(t *testing.T) {
	ctx := context.Background()
	svc, store := newEngine(t)

	sup, err := svc.Suppliers.Create(ctx, "ap-clerk", supplier.CreateCommand{
		Code:        "ACME",
		Name:        "Acme Scientific",
		WHTSubject:  true,
		WHTCategory: supplier.WHTStandard,
	})
	require.NoError(t, err)

	line := approvedLine(t, ctx, svc, "100000")
	assertBalances(t, ctx, svc, line.ID, "0.00", "0.00", "100000.00")

	// Requisition: 4 microscopes at 10000 needs HOD and principal approval.
	req, err := svc.Requisitions.Create(ctx, "alice", requisition.CreateCommand{
		Department:    "science",
		Currency:      "USD",
		Category:      "laboratory",
		Justification: "replace broken microscopes",
		BudgetLineID:  &line.ID,
		Lines: []requisition.LineInput{
			{Description: "Microscope", Quantity: types.NewQuantity(4), UnitPrice: types.MustMoney("10000")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "40000.00", req.Total.StringFixed(2))

	req, err = svc.Requisitions.Submit(ctx, "alice", req.ID)
	require.NoError(t, err)
	assert.Equal(t, requisition.StatusPendingApproval, req.Status)
	assertBalances(t, ctx, svc, line.ID, "0.00", "0.00", "100000.00")

	_, err = svc.Requisitions.Approve(ctx, "hod-science", req.ID, approval.LevelHOD, "ok")
	require.NoError(t, err)
	req, err = svc.Requisitions.Approve(ctx, "principal", req.ID, approval.LevelPrincipal, "ok")
	require.NoError(t, err)
	assert.Equal(t, requisition.StatusApproved, req.Status)
	assertBalances(t, ctx, svc, line.ID, "40000.00", "0.00", "60000.00")

	// Purchase order at the estimated prices keeps the full commitment.
	order, err := svc.PurchaseOrders.CreateFromRequisition(ctx, "buyer", po.ConvertCommand{
		RequisitionID: req.ID,
		SupplierID:    sup.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "40000.00", order.Committed.StringFixed(2))
	assertBalances(t, ctx, svc, line.ID, "40000.00", "0.00", "60000.00")

	_, err = svc.PurchaseOrders.Issue(ctx, "buyer", order.ID)
	require.NoError(t, err)
	_, err = svc.PurchaseOrders.Acknowledge(ctx, "buyer", order.ID, "ACME-SO-77")
	require.NoError(t, err)

	// Full delivery, inspected, accepted and posted.
	receipt, err := svc.GoodsReceipts.Receive(ctx, "storekeeper", gr.ReceiveCommand{
		PurchaseOrderID: order.ID,
		DeliveryNote:    "DN-1",
		Lines: []gr.LineInput{
			{PurchaseOrderLineID: order.Lines[0].ID, Quantity: types.NewQuantity(4)},
		},
	})
	require.NoError(t, err)
	_, err = svc.GoodsReceipts.Inspect(ctx, "inspector", receipt.ID, gr.InspectionPassed, "")
	require.NoError(t, err)
	_, err = svc.GoodsReceipts.Accept(ctx, "hod-science", receipt.ID, gr.AcceptCommand{})
	require.NoError(t, err)
	receipt, err = svc.GoodsReceipts.Post(ctx, "storekeeper", receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, gr.StatusPostedToInventory, receipt.Status)

	order, err = svc.PurchaseOrders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, po.StatusFullyReceived, order.Status)

	// Invoice at 9875 per unit is within the 2% tolerance.
	inv, err := svc.Invoices.Create(ctx, "ap-clerk", invoice.CreateCommand{
		PurchaseOrderID:       order.ID,
		SupplierInvoiceNumber: "ACME-INV-1001",
		InvoiceDate:           time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Lines: []invoice.LineInput{
			{PurchaseOrderLineID: order.Lines[0].ID, Quantity: types.NewQuantity(4), UnitPrice: types.MustMoney("9875")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "39500.00", inv.Total.StringFixed(2))

	_, err = svc.Invoices.Submit(ctx, "ap-clerk", inv.ID)
	require.NoError(t, err)
	inv, err = svc.Invoices.Verify(ctx, "ap-lead", inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusVerified, inv.Status)
	assertBalances(t, ctx, svc, line.ID, "0.00", "39500.00", "60500.00")

	// Payment: created by A, approved by B, processed by C.
	pay, err := svc.Payments.Create(ctx, "user-a", payment.CreateCommand{InvoiceIDs: []id.ID{inv.ID}})
	require.NoError(t, err)
	assert.Equal(t, "39500.00", pay.Gross.StringFixed(2))

	pay, err = svc.Payments.Submit(ctx, "user-a", pay.ID)
	require.NoError(t, err)
	assert.Equal(t, "1975.00", pay.WHTAmount.StringFixed(2))
	assert.Equal(t, "37525.00", pay.Net.StringFixed(2))

	pay, err = svc.Payments.Approve(ctx, "user-b", pay.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusApproved, pay.Status)

	pay, err = svc.Payments.Process(ctx, "user-c", pay.ID, "BANK-REF-1")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusProcessed, pay.Status)

	_, err = svc.Payments.Approve(ctx, "user-a", pay.ID)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeSegregationOfDuties))

	pay, err = svc.Payments.ConfirmSettlement(ctx, "user-c", pay.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPaid, pay.Status)

	inv, err = svc.Invoices.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusPaid, inv.Status)
	assert.Equal(t, invoice.PaymentPaid, inv.PaymentStatus)

	// Settlement does not move the budget.
	assertBalances(t, ctx, svc, line.ID, "0.00", "39500.00", "60500.00")

	assert.Contains(t, store.EventTypes(), "invoice.verified")
	assert.Contains(t, store.EventTypes(), "payment.settle")
}

func TestCancelledOrderReleasesCommitment(t *testing.T) {
	ctx := context.Background()
	svc, _ := newEngine(t)

	sup, err := svc.Suppliers.Create(ctx, "ap-clerk", supplier.CreateCommand{Code: "LABCO", Name: "Lab Co"})
	require.NoError(t, err)
	line := approvedLine(t, ctx, svc, "100000")

	req, err := svc.Requisitions.Create(ctx, "alice", requisition.CreateCommand{
		Department:   "science",
		Currency:     "USD",
		Category:     "laboratory",
		BudgetLineID: &line.ID,
		Lines: []requisition.LineInput{
			{Description: "Beakers", Quantity: types.NewQuantity(100), UnitPrice: types.MustMoney("50")},
		},
	})
	require.NoError(t, err)
	_, err = svc.Requisitions.Submit(ctx, "alice", req.ID)
	require.NoError(t, err)
	_, err = svc.Requisitions.Approve(ctx, "hod-science", req.ID, approval.LevelHOD, "")
	require.NoError(t, err)
	assertBalances(t, ctx, svc, line.ID, "5000.00", "0.00", "95000.00")

	order, err := svc.PurchaseOrders.CreateFromRequisition(ctx, "buyer", po.ConvertCommand{
		RequisitionID: req.ID,
		SupplierID:    sup.ID,
		Lines: []po.LineInput{
			{Description: "Beakers", Quantity: types.NewQuantity(100), UnitPrice: types.MustMoney("45")},
		},
	})
	require.NoError(t, err)
	// The price saving goes back to the line at conversion.
	assertBalances(t, ctx, svc, line.ID, "4500.00", "0.00", "95500.00")

	_, err = svc.PurchaseOrders.Issue(ctx, "buyer", order.ID)
	require.NoError(t, err)
	order, err = svc.PurchaseOrders.Cancel(ctx, "buyer", order.ID, "supplier out of stock")
	require.NoError(t, err)
	assert.Equal(t, po.StatusCancelled, order.Status)
	assertBalances(t, ctx, svc, line.ID, "0.00", "0.00", "100000.00")
}

func TestNewRejectsInvalidPolicies(t *testing.T) {
	store := memory.NewStore()

	p := app.DefaultPolicies()
	p.PriceTolerancePct = types.MustMoney("-1")
	_, err := app.New(store.Repositories(), store, &numerator.MockGenerator{}, store, p)
	assert.Error(t, err)

	p = app.DefaultPolicies()
	p.Withholding.Threshold = types.MustMoney("-5")
	_, err = app.New(store.Repositories(), store, &numerator.MockGenerator{}, store, p)
	assert.Error(t, err)
}
