// Package numerator provides domain contracts for document auto-numbering.
package numerator

// Strategy defines the numbering generation strategy.
type Strategy int

const (
	// StrategyStrict increments the database counter for every number.
	// Sequential without gaps; used for invoices and payments.
	StrategyStrict Strategy = iota

	// StrategyCached allocates ranges of numbers in memory.
	// May leave gaps after a restart; used for internal documents.
	StrategyCached
)

// Config holds numbering configuration for one document type.
type Config struct {
	// Prefix added to all numbers (e.g., "REQ", "PO")
	Prefix string

	// IncludeYear adds year to the number
	IncludeYear bool

	// PadWidth is the minimum number width (default 5)
	PadWidth int

	// Strategy selects strict or cached allocation
	Strategy Strategy

	// RangeSize is the number of values reserved at once by StrategyCached (default 50)
	RangeSize int64
}

// DefaultConfig returns yearly numbering with strict allocation.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		IncludeYear: true,
		PadWidth:    5,
		Strategy:    StrategyStrict,
	}
}

// CachedConfig returns yearly numbering with range allocation.
func CachedConfig(prefix string) Config {
	cfg := DefaultConfig(prefix)
	cfg.Strategy = StrategyCached
	cfg.RangeSize = 50
	return cfg
}

// Document number prefixes.
const (
	PrefixBudgetLine    = "BL"
	PrefixRequisition   = "REQ"
	PrefixPurchaseOrder = "PO"
	PrefixGoodsReceipt  = "GRN"
	PrefixInvoice       = "INV"
	PrefixPayment       = "PAY"
)
