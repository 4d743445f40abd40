package purchase_order_test

import (
	"context"
	"testing"

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
	po "procura/internal/domain/documents/purchase_order"
	"procura/internal/domain/documents/requisition"
	"procura/internal/domain/supplier"
	"procura/internal/infrastructure/storage/memory"
)

type env struct {
	svc  *app.Services
	line *budget.Line
	sup  *supplier.Supplier
	req  *requisition.Requisition
}

// approvedRequisition reserves 10 x 50.00 on a 2000.00 line.
func approvedRequisition(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	svc, err := app.New(store.Repositories(), store, &numerator.MockGenerator{}, store, app.DefaultPolicies())
	require.NoError(t, err)

	sup, err := svc.Suppliers.Create(ctx, "ap-clerk", supplier.CreateCommand{Code: "SPORT", Name: "Sport Supplies"})
	require.NoError(t, err)

	line, err := svc.Budget.Create(ctx, "finance", budget.CreateCommand{
		Department: "pe", FiscalYear: 2026, Category: "equipment", Currency: "USD",
		Allocated: types.MustMoney("2000"),
	})
	require.NoError(t, err)
	_, err = svc.Budget.Submit(ctx, "finance", line.ID)
	require.NoError(t, err)
	_, err = svc.Budget.Approve(ctx, "hod-pe", line.ID, approval.LevelHOD, "")
	require.NoError(t, err)
	line, err = svc.Budget.Approve(ctx, "principal", line.ID, approval.LevelPrincipal, "")
	require.NoError(t, err)

	req, err := svc.Requisitions.Create(ctx, "coach", requisition.CreateCommand{
		Department: "pe", Currency: "USD", Category: "equipment", BudgetLineID: &line.ID,
		Lines: []requisition.LineInput{
			{Description: "Football", Quantity: types.NewQuantity(10), UnitPrice: types.MustMoney("50")},
		},
	})
	require.NoError(t, err)
	req, err = svc.Requisitions.Submit(ctx, "coach", req.ID)
	require.NoError(t, err)
	require.Equal(t, requisition.StatusApproved, req.Status)

	return &env{svc: svc, line: line, sup: sup, req: req}
}

func (e *env) committed(t *testing.T) string {
	t.Helper()
	line, err := e.svc.Budget.Get(context.Background(), e.line.ID)
	require.NoError(t, err)
	return line.Committed.StringFixed(2)
}

func TestConvertCopiesRequisitionAndMarksItConverted(t *testing.T) {
	ctx := context.Background()
	e := approvedRequisition(t)

	order, err := e.svc.PurchaseOrders.CreateFromRequisition(ctx, "buyer", po.ConvertCommand{
		RequisitionID: e.req.ID, SupplierID: e.sup.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, po.StatusDraft, order.Status)
	assert.Equal(t, "500.00", order.Total.StringFixed(2))
	assert.Equal(t, "500.00", order.Committed.StringFixed(2))
	require.Len(t, order.Lines, 1)
	assert.Equal(t, "Football", order.Lines[0].Description)
	require.NotNil(t, order.BudgetLineID)
	assert.Equal(t, e.line.ID, *order.BudgetLineID)

	req, err := e.svc.Requisitions.Get(ctx, e.req.ID)
	require.NoError(t, err)
	assert.Equal(t, requisition.StatusConverted, req.Status)

	_, err = e.svc.PurchaseOrders.CreateFromRequisition(ctx, "buyer", po.ConvertCommand{
		RequisitionID: e.req.ID, SupplierID: e.sup.ID,
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))
}

func TestConvertAboveReservationFails(t *testing.T) {
	ctx := context.Background()
	e := approvedRequisition(t)

	_, err := e.svc.PurchaseOrders.CreateFromRequisition(ctx, "buyer", po.ConvertCommand{
		RequisitionID: e.req.ID,
		SupplierID:    e.sup.ID,
		Lines: []po.LineInput{
			{Description: "Football", Quantity: types.NewQuantity(10), UnitPrice: types.MustMoney("50.01")},
		},
	})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeBudgetExceeded))

	req, err := e.svc.Requisitions.Get(ctx, e.req.ID)
	require.NoError(t, err)
	assert.Equal(t, requisition.StatusApproved, req.Status)
	assert.Equal(t, "500.00", e.committed(t))
}

func TestConvertUnknownSupplier(t *testing.T) {
	e := approvedRequisition(t)

	_, err := e.svc.PurchaseOrders.CreateFromRequisition(context.Background(), "buyer", po.ConvertCommand{
		RequisitionID: e.req.ID, SupplierID: id.New(),
	})
	assert.True(t, apperror.IsNotFound(err))
}

func TestCancelAfterPartialReceiptReleasesOnlyUnreceivedValue(t *testing.T) {
	ctx := context.Background()
	e := approvedRequisition(t)

	order, err := e.svc.PurchaseOrders.CreateFromRequisition(ctx, "buyer", po.ConvertCommand{
		RequisitionID: e.req.ID, SupplierID: e.sup.ID,
	})
	require.NoError(t, err)
	_, err = e.svc.PurchaseOrders.Issue(ctx, "buyer", order.ID)
	require.NoError(t, err)

	receipt, err := e.svc.GoodsReceipts.Receive(ctx, "storekeeper", gr.ReceiveCommand{
		PurchaseOrderID: order.ID,
		Lines:           []gr.LineInput{{PurchaseOrderLineID: order.Lines[0].ID, Quantity: types.NewQuantity(4)}},
	})
	require.NoError(t, err)

	// Receipts awaiting inspection block cancellation.
	_, err = e.svc.PurchaseOrders.Cancel(ctx, "buyer", order.ID, "budget cut")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))

	_, err = e.svc.GoodsReceipts.Inspect(ctx, "inspector", receipt.ID, gr.InspectionPassed, "")
	require.NoError(t, err)
	_, err = e.svc.GoodsReceipts.Accept(ctx, "hod-pe", receipt.ID, gr.AcceptCommand{})
	require.NoError(t, err)
	_, err = e.svc.GoodsReceipts.Post(ctx, "storekeeper", receipt.ID)
	require.NoError(t, err)

	cancelled, err := e.svc.PurchaseOrders.Cancel(ctx, "buyer", order.ID, "budget cut")
	require.NoError(t, err)
	assert.Equal(t, po.StatusCancelled, cancelled.Status)
	assert.Equal(t, "200.00", cancelled.Committed.StringFixed(2))
	// 6 unreceived units at 50.00 go back; the 4 received stay committed for invoicing.
	assert.Equal(t, "200.00", e.committed(t))
}

func TestAcknowledgeOnlyIssued(t *testing.T) {
	ctx := context.Background()
	e := approvedRequisition(t)

	order, err := e.svc.PurchaseOrders.CreateFromRequisition(ctx, "buyer", po.ConvertCommand{
		RequisitionID: e.req.ID, SupplierID: e.sup.ID,
	})
	require.NoError(t, err)

	_, err = e.svc.PurchaseOrders.Acknowledge(ctx, "buyer", order.ID, "SO-1")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))

	_, err = e.svc.PurchaseOrders.Issue(ctx, "buyer", order.ID)
	require.NoError(t, err)
	ack, err := e.svc.PurchaseOrders.Acknowledge(ctx, "buyer", order.ID, "SO-1")
	require.NoError(t, err)
	assert.Equal(t, po.StatusAcknowledged, ack.Status)
	assert.Equal(t, "SO-1", ack.SupplierRef)
	assert.NotNil(t, ack.AcknowledgedAt)
}
