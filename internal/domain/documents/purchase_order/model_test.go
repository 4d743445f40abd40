package purchase_order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procura/internal/core/apperror"
	"procura/internal/core/types"
)

func TestMachineClosure(t *testing.T) {
	legal := map[Status][]Event{
		StatusDraft:             {EventIssue, EventCancel},
		StatusIssued:            {EventAcknowledge, EventReceivePartial, EventReceiveFull, EventCancel},
		StatusAcknowledged:      {EventReceivePartial, EventReceiveFull, EventCancel},
		StatusPartiallyReceived: {EventReceivePartial, EventReceiveFull, EventCancel},
		StatusFullyReceived:     {},
		StatusCancelled:         {},
	}
	all := []Event{EventIssue, EventAcknowledge, EventReceivePartial, EventReceiveFull, EventCancel}

	for _, s := range Machine.States() {
		assert.ElementsMatch(t, legal[s], Machine.Events(s), "state %s", s)
		for _, e := range all {
			if !Machine.Can(s, e) {
				assert.True(t, apperror.HasCode(Machine.Check(s, e), apperror.CodeInvalidTransition), "%s/%s", s, e)
			}
		}
	}
}

func TestHoldAndApplyReceipt(t *testing.T) {
	po := New("buyer")
	po.SetLines([]LineInput{{Description: "Desk", Quantity: types.NewQuantity(10), UnitPrice: types.MustMoney("80")}})
	lineID := po.Lines[0].ID

	require.NoError(t, po.Hold(lineID, types.NewQuantity(7)))
	assert.True(t, apperror.HasCode(po.Hold(lineID, types.NewQuantity(4)), apperror.CodeValidation))
	assert.True(t, po.HasPendingReceipts())

	require.NoError(t, po.ApplyReceipt(lineID, types.NewQuantity(7), types.NewQuantity(6)))
	line, err := po.Line(lineID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(6), line.Received)
	assert.Equal(t, types.Quantity(0), line.Pending)
	assert.Equal(t, types.NewQuantity(4), line.Outstanding())
	assert.Equal(t, EventReceivePartial, po.ReceiptEvent())
	assert.Equal(t, "320.00", po.UnreceivedValue().StringFixed(2))

	require.NoError(t, po.Hold(lineID, types.NewQuantity(4)))
	require.NoError(t, po.ApplyReceipt(lineID, types.NewQuantity(4), types.NewQuantity(4)))
	assert.Equal(t, EventReceiveFull, po.ReceiptEvent())
	assert.True(t, po.UnreceivedValue().IsZero())
}

func TestReleaseHoldBeyondPending(t *testing.T) {
	po := New("buyer")
	po.SetLines([]LineInput{{Description: "Chair", Quantity: types.NewQuantity(2), UnitPrice: types.MustMoney("30")}})
	assert.Error(t, po.ReleaseHold(po.Lines[0].ID, types.NewQuantity(1)))
}
