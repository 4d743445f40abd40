package goods_receipt

import (
	"time"

	"procura/internal/core/numerator"
)

// AggregateType names goods receipts in events.
const AggregateType = "goods_receipt"

// DefaultExpiryWarningWindow blocks acceptance of goods expiring within 30 days.
const DefaultExpiryWarningWindow = 30 * 24 * time.Hour

// NumberConfig numbers receipts strictly: a receipt is a primary accounting document.
func NumberConfig() numerator.Config {
	return numerator.DefaultConfig(numerator.PrefixGoodsReceipt)
}
