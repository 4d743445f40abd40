package purchase_order

import "procura/internal/core/numerator"

// AggregateType names purchase orders in events.
const AggregateType = "purchase_order"

// NumberConfig numbers orders strictly: order numbers are sent to suppliers.
func NumberConfig() numerator.Config {
	return numerator.DefaultConfig(numerator.PrefixPurchaseOrder)
}
