package invoice

import "procura/internal/core/numerator"

// AggregateType names invoices in events.
const AggregateType = "invoice"

// NumberConfig numbers invoices strictly, without gaps.
func NumberConfig() numerator.Config {
	return numerator.DefaultConfig(numerator.PrefixInvoice)
}
