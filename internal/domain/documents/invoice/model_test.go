package invoice

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/core/types"
)

func TestMachineClosure(t *testing.T) {
	legal := map[Status][]Event{
		StatusDraft:     {EventSubmit},
		StatusSubmitted: {EventVerify, EventFailMatch},
		StatusVerified:  {EventPay},
		StatusRejected:  {EventResubmit},
		StatusPaid:      {},
	}
	all := []Event{EventSubmit, EventVerify, EventFailMatch, EventResubmit, EventPay}

	for _, s := range Machine.States() {
		assert.ElementsMatch(t, legal[s], Machine.Events(s), "state %s", s)
		for _, e := range all {
			if !Machine.Can(s, e) {
				assert.True(t, apperror.HasCode(Machine.Check(s, e), apperror.CodeInvalidTransition), "%s/%s", s, e)
			}
		}
	}
}

func TestSetLinesComputesTotals(t *testing.T) {
	inv := New("ap-clerk")
	inv.SetLines([]LineInput{
		{PurchaseOrderLineID: id.New(), Description: "a", Quantity: types.MustQuantity("2.5"), UnitPrice: types.MustMoney("10.01")},
		{PurchaseOrderLineID: id.New(), Description: "b", Quantity: types.NewQuantity(3), UnitPrice: types.MustMoney("5")},
	})
	inv.SetTax(types.MustMoney("4.00"))

	assert.Equal(t, "25.03", inv.Lines[0].Amount.StringFixed(2))
	assert.Equal(t, "40.03", inv.Subtotal.StringFixed(2))
	assert.Equal(t, "44.03", inv.Total.StringFixed(2))
	assert.Equal(t, 2, inv.Lines[1].LineNo)
}

func TestMarkPaidOnlyFromVerified(t *testing.T) {
	inv := New("ap-clerk")
	assert.Error(t, inv.MarkPaid())
	assert.Equal(t, PaymentUnpaid, inv.PaymentStatus)

	inv.Status = StatusVerified
	assert.True(t, inv.Payable())
	assert.NoError(t, inv.MarkPaid())
	assert.Equal(t, StatusPaid, inv.Status)
	assert.Equal(t, PaymentPaid, inv.PaymentStatus)
	assert.False(t, inv.Payable())
}
