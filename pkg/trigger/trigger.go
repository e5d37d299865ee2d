package trigger

import "github.com/ethereum/go-ethereum/common"

// Direction selects which side of the limit price arms the trigger.
type Direction int8

const (
	Lower Direction = iota // fires when price < limit
	Upper                  // fires when price > limit
)

func (d Direction) String() string {
	switch d {
	case Lower:
		return "lower"
	case Upper:
		return "upper"
	default:
		return "unknown"
	}
}

// Trigger is an armed, one-shot watch condition bound to exactly one order.
// Multiple triggers per order are permitted and independent. A fired trigger
// never re-arms and never causes a second emission; the record persists for
// read purposes.
type Trigger struct {
	ID         uint64
	OrderID    uint64
	Maker      common.Address
	Direction  Direction
	LimitPrice uint64 // same fixed-point unit as the derived feed price
	Active     bool   // true while armed, false once fired
	CreatedAt  int64  // unix ms
	FiredAt    int64  // unix ms, 0 until fired
}

// Met reports whether the trigger condition holds at the given price.
func (t *Trigger) Met(price uint64) bool {
	if t.Direction == Lower {
		return price < t.LimitPrice
	}
	return price > t.LimitPrice
}
