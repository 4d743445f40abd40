package matching

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procura/internal/core/id"
	"procura/internal/core/types"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator(DefaultTolerancePct)
	require.NoError(t, err)
	return v
}

func singleLine(orderPrice, invoicePrice string, ordered, received, invoiced int64) Input {
	lineID := id.New()
	return Input{
		Order: []OrderLine{{
			ID:        lineID,
			LineNo:    1,
			Quantity:  types.NewQuantity(ordered),
			UnitPrice: types.MustMoney(orderPrice),
		}},
		Receipts: []ReceiptLine{{OrderLineID: lineID, Accepted: types.NewQuantity(received)}},
		Invoice: []InvoiceLine{{
			LineNo:      1,
			OrderLineID: lineID,
			Quantity:    types.NewQuantity(invoiced),
			UnitPrice:   types.MustMoney(invoicePrice),
		}},
	}
}

func TestMatchPriceToleranceBoundary(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name         string
		invoicePrice string
		wantPass     bool
	}{
		{name: "exact price", invoicePrice: "100.00", wantPass: true},
		{name: "at upper tolerance", invoicePrice: "102.00", wantPass: true},
		{name: "at lower tolerance", invoicePrice: "98.00", wantPass: true},
		{name: "one cent above tolerance", invoicePrice: "102.01", wantPass: false},
		{name: "one cent below tolerance", invoicePrice: "97.99", wantPass: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := singleLine("100.00", tt.invoicePrice, 10, 10, 10)
			res := v.Match(in)

			assert.Equal(t, tt.wantPass, res.Passed)
			if tt.wantPass {
				assert.Empty(t, res.Discrepancies)
				return
			}
			require.Len(t, res.Discrepancies, 1)
			d := res.Discrepancies[0]
			assert.Equal(t, FieldUnitPrice, d.Field)
			assert.Equal(t, 1, d.LineNo)
			assert.Equal(t, in.Order[0].ID, d.OrderLineID)
			assert.True(t, d.Expected.Equal(types.MustMoney("100.00")))
			assert.True(t, d.Actual.Equal(types.MustMoney(tt.invoicePrice)))
		})
	}
}

func TestMatchQuantityRules(t *testing.T) {
	v := newValidator(t)

	t.Run("invoiced above received fails", func(t *testing.T) {
		res := v.Match(singleLine("50", "50", 10, 6, 8))
		require.False(t, res.Passed)
		require.Len(t, res.Discrepancies, 1)
		d := res.Discrepancies[0]
		assert.Equal(t, FieldQuantity, d.Field)
		assert.True(t, d.Expected.Equal(decimal.NewFromInt(6)))
		assert.True(t, d.Actual.Equal(decimal.NewFromInt(8)))
		assert.True(t, d.Variance.Equal(decimal.NewFromInt(2)))
	})

	t.Run("under invoicing passes", func(t *testing.T) {
		res := v.Match(singleLine("50", "50", 10, 10, 4))
		assert.True(t, res.Passed)
	})

	t.Run("previously invoiced quantity is not available again", func(t *testing.T) {
		in := singleLine("50", "50", 10, 10, 5)
		in.Order[0].Invoiced = types.NewQuantity(6)
		res := v.Match(in)
		require.False(t, res.Passed)
		assert.True(t, res.Discrepancies[0].Expected.Equal(decimal.NewFromInt(4)))
	})

	t.Run("receipts accumulate", func(t *testing.T) {
		in := singleLine("50", "50", 10, 4, 10)
		in.Receipts = append(in.Receipts, ReceiptLine{OrderLineID: in.Order[0].ID, Accepted: types.NewQuantity(6)})
		assert.True(t, v.Match(in).Passed)
	})

	t.Run("split invoice lines are summed", func(t *testing.T) {
		in := singleLine("50", "50", 10, 10, 6)
		in.Invoice = append(in.Invoice, InvoiceLine{
			LineNo:      2,
			OrderLineID: in.Order[0].ID,
			Quantity:    types.NewQuantity(6),
			UnitPrice:   types.MustMoney("50"),
		})
		res := v.Match(in)
		assert.False(t, res.Passed)
	})
}

func TestMatchUnknownOrderLine(t *testing.T) {
	v := newValidator(t)
	in := singleLine("10", "10", 1, 1, 1)
	in.Invoice[0].OrderLineID = id.New()

	res := v.Match(in)
	require.False(t, res.Passed)
	require.Len(t, res.Discrepancies, 1)
	assert.Equal(t, FieldOrderLine, res.Discrepancies[0].Field)
}

func TestMatchReportsEveryFailingLine(t *testing.T) {
	v := newValidator(t)
	a, b := id.New(), id.New()
	in := Input{
		Order: []OrderLine{
			{ID: a, LineNo: 1, Quantity: types.NewQuantity(5), UnitPrice: types.MustMoney("20")},
			{ID: b, LineNo: 2, Quantity: types.NewQuantity(5), UnitPrice: types.MustMoney("30")},
		},
		Receipts: []ReceiptLine{
			{OrderLineID: a, Accepted: types.NewQuantity(5)},
			{OrderLineID: b, Accepted: types.NewQuantity(3)},
		},
		Invoice: []InvoiceLine{
			{LineNo: 1, OrderLineID: a, Quantity: types.NewQuantity(5), UnitPrice: types.MustMoney("25")},
			{LineNo: 2, OrderLineID: b, Quantity: types.NewQuantity(5), UnitPrice: types.MustMoney("30")},
		},
	}

	res := v.Match(in)
	require.False(t, res.Passed)
	require.Len(t, res.Discrepancies, 2)
	assert.Equal(t, FieldUnitPrice, res.Discrepancies[0].Field)
	assert.Equal(t, 1, res.Discrepancies[0].LineNo)
	assert.Equal(t, FieldQuantity, res.Discrepancies[1].Field)
	assert.Equal(t, 2, res.Discrepancies[1].LineNo)
	assert.False(t, res.Lines[0].Passed)
	assert.False(t, res.Lines[1].Passed)
}

func TestMatchIsRepeatable(t *testing.T) {
	v := newValidator(t)
	in := singleLine("100", "103", 2, 2, 2)

	first := v.Match(in)
	second := v.Match(in)
	assert.Equal(t, first, second)
}

func TestNewValidatorRejectsNegativeTolerance(t *testing.T) {
	_, err := NewValidator(decimal.NewFromInt(-1))
	assert.Error(t, err)

	zero, err := NewValidator(decimal.Zero)
	require.NoError(t, err)
	assert.False(t, zero.Match(singleLine("10.00", "10.01", 1, 1, 1)).Passed)
}
