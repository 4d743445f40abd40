package payment

import "procura/internal/core/numerator"

// AggregateType names payments in events.
const AggregateType = "payment"

// NumberConfig numbers payments strictly, without gaps.
func NumberConfig() numerator.Config {
	return numerator.DefaultConfig(numerator.PrefixPayment)
}
