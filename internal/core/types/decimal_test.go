package types

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in      string
		want    Quantity
		wantErr bool
	}{
		{in: "1", want: 10_000},
		{in: "2.5", want: 25_000},
		{in: "0.0001", want: 1},
		{in: "-3.25", want: -32_500},
		{in: ".5", want: 5_000},
		{in: "1.23456", wantErr: true},
		{in: "1e3", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseQuantity(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuantityJSON(t *testing.T) {
	var payload struct {
		Qty Quantity `json:"qty"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"qty":"12.5"}`), &payload))
	assert.Equal(t, MustQuantity("12.5"), payload.Qty)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"qty":12.5}`, string(out))
}

func TestQuantityTimes(t *testing.T) {
	amount := MustQuantity("2.5").Times(MustMoney("100.10"))
	assert.True(t, amount.Equal(MustMoney("250.25")), amount.String())
}

func TestMinorUnitsAndPercent(t *testing.T) {
	assert.Equal(t, int64(4000000), MinorUnits(MustMoney("40000")))
	assert.Equal(t, int64(1999), MinorUnits(MustMoney("19.999")))
	assert.True(t, Percent(MustMoney("40000"), decimal.NewFromInt(5)).Equal(MustMoney("2000")))
	assert.True(t, RoundMoney(MustMoney("10.005")).Equal(MustMoney("10.01")))
}
