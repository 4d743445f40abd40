// Package matching implements the three-way match between purchase order,
// goods receipts and supplier invoice.
//
// The validator is a pure function of its input: it never loads or writes
// documents, so calling it repeatedly with the same input yields the same result.
package matching

import (
	"fmt"

	"github.com/shopspring/decimal"

	"procura/internal/core/id"
	"procura/internal/core/types"
)

// DefaultTolerancePct is the default unit price tolerance in percent.
var DefaultTolerancePct = decimal.NewFromInt(2)

// Discrepancy fields.
const (
	FieldOrderLine = "order_line"
	FieldQuantity  = "quantity"
	FieldUnitPrice = "unit_price"
)

// OrderLine is a purchase order line as seen by the match.
type OrderLine struct {
	ID        id.ID
	LineNo    int
	Quantity  types.Quantity
	UnitPrice types.Money
	// Invoiced is the quantity already covered by verified invoices.
	Invoiced types.Quantity
}

// ReceiptLine is accepted quantity from one posted goods receipt.
type ReceiptLine struct {
	OrderLineID id.ID
	Accepted    types.Quantity
}

// InvoiceLine is one line of the invoice under verification.
type InvoiceLine struct {
	LineNo      int
	OrderLineID id.ID
	Quantity    types.Quantity
	UnitPrice   types.Money
}

// Input groups the three documents of a match.
type Input struct {
	Order    []OrderLine
	Receipts []ReceiptLine
	Invoice  []InvoiceLine
}

// Discrepancy describes one failed comparison.
type Discrepancy struct {
	LineNo      int             `json:"lineNo"`
	OrderLineID id.ID           `json:"orderLineId"`
	Field       string          `json:"field"`
	Expected    decimal.Decimal `json:"expected"`
	Actual      decimal.Decimal `json:"actual"`
	Variance    decimal.Decimal `json:"variance"`
	Message     string          `json:"message"`
}

// LineResult is the verdict for one invoice line.
type LineResult struct {
	LineNo       int            `json:"lineNo"`
	OrderLineID  id.ID          `json:"orderLineId"`
	Ordered      types.Quantity `json:"ordered"`
	Received     types.Quantity `json:"received"`
	Invoiced     types.Quantity `json:"invoiced"`
	OrderPrice   types.Money    `json:"orderPrice"`
	InvoicePrice types.Money    `json:"invoicePrice"`
	Passed       bool           `json:"passed"`
}

// Result is the verdict for the whole invoice.
type Result struct {
	Passed        bool            `json:"passed"`
	TolerancePct  decimal.Decimal `json:"tolerancePct"`
	Lines         []LineResult    `json:"lines"`
	Discrepancies []Discrepancy   `json:"discrepancies,omitempty"`
}

// Validator compares invoice lines against order and receipts.
type Validator struct {
	tolerancePct decimal.Decimal
}

// NewValidator creates a validator with the given unit price tolerance in percent.
func NewValidator(tolerancePct decimal.Decimal) (*Validator, error) {
	if tolerancePct.IsNegative() {
		return nil, fmt.Errorf("price tolerance cannot be negative: %s", tolerancePct)
	}
	return &Validator{tolerancePct: tolerancePct}, nil
}

// TolerancePct returns the configured tolerance.
func (v *Validator) TolerancePct() decimal.Decimal { return v.tolerancePct }

// Match runs the three-way match.
//
// A line passes when its quantity, summed with every other invoice line for
// the same order line, does not exceed received minus previously invoiced,
// and its unit price lies within ordered price +/- tolerance. Under-invoicing
// passes. The invoice passes only if every line passes.
func (v *Validator) Match(in Input) Result {
	orders := make(map[id.ID]OrderLine, len(in.Order))
	for _, ol := range in.Order {
		orders[ol.ID] = ol
	}
	received := make(map[id.ID]types.Quantity)
	for _, rl := range in.Receipts {
		received[rl.OrderLineID] += rl.Accepted
	}
	invoiced := make(map[id.ID]types.Quantity)
	for _, il := range in.Invoice {
		invoiced[il.OrderLineID] += il.Quantity
	}

	res := Result{Passed: true, TolerancePct: v.tolerancePct, Lines: make([]LineResult, 0, len(in.Invoice))}
	for _, il := range in.Invoice {
		lr := LineResult{
			LineNo:       il.LineNo,
			OrderLineID:  il.OrderLineID,
			Invoiced:     il.Quantity,
			InvoicePrice: il.UnitPrice,
			Passed:       true,
		}

		ol, ok := orders[il.OrderLineID]
		if !ok {
			lr.Passed = false
			res.Discrepancies = append(res.Discrepancies, Discrepancy{
				LineNo:      il.LineNo,
				OrderLineID: il.OrderLineID,
				Field:       FieldOrderLine,
				Expected:    decimal.Zero,
				Actual:      il.Quantity.Decimal(),
				Variance:    il.Quantity.Decimal(),
				Message:     "invoice line does not reference a line of the purchase order",
			})
			res.Passed = false
			res.Lines = append(res.Lines, lr)
			continue
		}
		lr.Ordered = ol.Quantity
		lr.Received = received[ol.ID]
		lr.OrderPrice = ol.UnitPrice

		if d, bad := v.checkQuantity(il, ol, received[ol.ID], invoiced[ol.ID]); bad {
			lr.Passed = false
			res.Discrepancies = append(res.Discrepancies, d)
		}
		if d, bad := v.checkPrice(il, ol); bad {
			lr.Passed = false
			res.Discrepancies = append(res.Discrepancies, d)
		}

		if !lr.Passed {
			res.Passed = false
		}
		res.Lines = append(res.Lines, lr)
	}
	return res
}

func (v *Validator) checkQuantity(il InvoiceLine, ol OrderLine, received, invoicedTotal types.Quantity) (Discrepancy, bool) {
	if !il.Quantity.IsPositive() {
		return Discrepancy{
			LineNo:      il.LineNo,
			OrderLineID: ol.ID,
			Field:       FieldQuantity,
			Expected:    decimal.Zero,
			Actual:      il.Quantity.Decimal(),
			Variance:    il.Quantity.Decimal(),
			Message:     "invoiced quantity must be positive",
		}, true
	}

	open := received - ol.Invoiced
	if invoicedTotal <= open {
		return Discrepancy{}, false
	}
	return Discrepancy{
		LineNo:      il.LineNo,
		OrderLineID: ol.ID,
		Field:       FieldQuantity,
		Expected:    open.Decimal(),
		Actual:      invoicedTotal.Decimal(),
		Variance:    (invoicedTotal - open).Decimal(),
		Message: fmt.Sprintf("invoiced quantity %s exceeds received and not yet invoiced quantity %s",
			invoicedTotal, open),
	}, true
}

func (v *Validator) checkPrice(il InvoiceLine, ol OrderLine) (Discrepancy, bool) {
	variance := il.UnitPrice.Sub(ol.UnitPrice)
	allowed := types.Percent(ol.UnitPrice, v.tolerancePct)
	if variance.Abs().LessThanOrEqual(allowed) {
		return Discrepancy{}, false
	}
	return Discrepancy{
		LineNo:      il.LineNo,
		OrderLineID: ol.ID,
		Field:       FieldUnitPrice,
		Expected:    ol.UnitPrice,
		Actual:      il.UnitPrice,
		Variance:    variance,
		Message: fmt.Sprintf("unit price %s differs from ordered %s by more than %s%%",
			il.UnitPrice.StringFixed(2), ol.UnitPrice.StringFixed(2), v.tolerancePct),
	}, true
}
