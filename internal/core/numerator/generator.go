package numerator

import (
	"context"
	"fmt"
	"time"
)

// Generator generates sequential document numbers.
// Implementations live in the infrastructure layer.
type Generator interface {
	// GetNextNumber returns the next number, e.g. INV-2026-00001.
	GetNextNumber(ctx context.Context, cfg Config, period time.Time) (string, error)
}

// Format renders a counter value according to cfg.
func Format(cfg Config, period time.Time, num int64) string {
	padWidth := cfg.PadWidth
	if padWidth == 0 {
		padWidth = 5
	}
	if cfg.IncludeYear {
		return fmt.Sprintf("%s-%s-%0*d", cfg.Prefix, period.Format("2006"), padWidth, num)
	}
	return fmt.Sprintf("%s-%0*d", cfg.Prefix, padWidth, num)
}
