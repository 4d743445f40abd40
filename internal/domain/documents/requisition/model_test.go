package requisition

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"procura/internal/core/apperror"
	"procura/internal/core/types"
)

func TestMachineClosure(t *testing.T) {
	legal := map[Status][]Event{
		StatusDraft:           {EventSubmit, EventCancel},
		StatusPendingApproval: {EventApprove, EventReject, EventCancel},
		StatusApproved:        {EventConvert, EventCancel},
		StatusRejected:        {EventSubmit, EventCancel},
		StatusConverted:       {},
		StatusCancelled:       {},
	}
	all := []Event{EventSubmit, EventApprove, EventReject, EventConvert, EventCancel}

	for _, s := range Machine.States() {
		assert.ElementsMatch(t, legal[s], Machine.Events(s), "state %s", s)
		for _, e := range all {
			if !Machine.Can(s, e) {
				assert.True(t, apperror.HasCode(Machine.Check(s, e), apperror.CodeInvalidTransition), "%s/%s", s, e)
			}
		}
	}
}

func TestValidateAndTotals(t *testing.T) {
	r := New("alice")
	r.Department = "science"
	r.Currency = "USD"

	err := r.Validate()
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	r.SetLines([]LineInput{
		{Description: " Pipette ", Quantity: types.MustQuantity("1.5"), UnitPrice: types.MustMoney("3.33")},
		{Description: "Gloves", Quantity: types.NewQuantity(2), UnitPrice: types.MustMoney("7")},
	})
	assert.NoError(t, r.Validate())
	assert.Equal(t, "Pipette", r.Lines[0].Description)
	assert.Equal(t, "5.00", r.Lines[0].Amount.StringFixed(2))
	assert.Equal(t, "19.00", r.Total.StringFixed(2))

	r.SetLines([]LineInput{{Description: "Free sample", Quantity: types.NewQuantity(1), UnitPrice: types.Zero()}})
	assert.True(t, apperror.HasCode(r.Validate(), apperror.CodeValidation))
}
