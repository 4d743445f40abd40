package requisition

import "procura/internal/core/numerator"

// AggregateType names requisitions in events and approval records.
const AggregateType = "requisition"

// NumberConfig numbers requisitions from cached ranges; gaps are acceptable
// for internal requests.
func NumberConfig() numerator.Config {
	return numerator.CachedConfig(numerator.PrefixRequisition)
}
