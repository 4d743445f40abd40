package budget

import "fmt"

// OverrunPolicy decides what happens when an invoice exceeds its reservation.
type OverrunPolicy string

const (
	// OverrunReserveExcess charges the excess if it fits the line's available amount.
	OverrunReserveExcess OverrunPolicy = "reserve_excess"
	// OverrunReject fails any consume whose invoiced amount exceeds the reservation.
	OverrunReject OverrunPolicy = "reject"
)

// ParseOverrunPolicy validates a configured policy name.
func ParseOverrunPolicy(s string) (OverrunPolicy, error) {
	switch p := OverrunPolicy(s); p {
	case OverrunReserveExcess, OverrunReject:
		return p, nil
	case "":
		return OverrunReserveExcess, nil
	default:
		return "", fmt.Errorf("unknown budget overrun policy %q", s)
	}
}
