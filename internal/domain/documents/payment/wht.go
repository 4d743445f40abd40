package payment

import (
	"fmt"

	"github.com/shopspring/decimal"

	"procura/internal/core/types"
	"procura/internal/domain/supplier"
)

// WHTPolicy holds the withholding threshold and the percentage rate per category.
type WHTPolicy struct {
	Threshold types.Money
	Rates     map[supplier.WHTCategory]decimal.Decimal
}

// DefaultWHTPolicy withholds above 1000.00 at category rates between 2 and 5 percent.
func DefaultWHTPolicy() WHTPolicy {
	return WHTPolicy{
		Threshold: decimal.NewFromInt(1_000),
		Rates: map[supplier.WHTCategory]decimal.Decimal{
			supplier.WHTStandard:  decimal.NewFromInt(5),
			supplier.WHTServices:  decimal.NewFromInt(5),
			supplier.WHTSupplies:  decimal.NewFromInt(3),
			supplier.WHTEquipment: decimal.NewFromInt(3),
			supplier.WHTOther:     decimal.NewFromInt(2),
		},
	}
}

// Validate checks that every category has a rate between 0 and 100.
func (p WHTPolicy) Validate() error {
	if p.Threshold.IsNegative() {
		return fmt.Errorf("withholding threshold cannot be negative")
	}
	for _, c := range supplier.WHTCategories {
		rate, ok := p.Rates[c]
		if !ok {
			return fmt.Errorf("no withholding rate for category %q", c)
		}
		if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("withholding rate for category %q out of range: %s", c, rate)
		}
	}
	return nil
}

// Withholding is the tax withheld from one payment.
type Withholding struct {
	Category supplier.WHTCategory
	Rate     decimal.Decimal
	Amount   types.Money
}

// Compute returns the withholding for gross paid to sup.
// Nothing is withheld unless the supplier is WHT-subject and gross exceeds the threshold.
func (p WHTPolicy) Compute(gross types.Money, sup *supplier.Supplier) Withholding {
	w := Withholding{Category: sup.WHTCategory, Rate: decimal.Zero, Amount: types.Zero()}
	if !sup.WHTSubject || !gross.GreaterThan(p.Threshold) {
		return w
	}
	w.Rate = p.Rates[sup.WHTCategory]
	w.Amount = types.RoundMoney(types.Percent(gross, w.Rate))
	return w
}
