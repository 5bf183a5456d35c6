package price

import (
	"github.com/shopspring/decimal"
)

type Stats struct {
	Avg decimal.Decimal
	Min decimal.Decimal
	Max decimal.Decimal
}

// Statistics returns average, min and max, false for an empty distribution.
func Statistics(values []decimal.Decimal) (Stats, bool) {
	if len(values) == 0 {
		return Stats{}, false
	}
	return Stats{
		Avg: decimal.Avg(values[0], values[1:]...),
		Min: decimal.Min(values[0], values[1:]...),
		Max: decimal.Max(values[0], values[1:]...),
	}, true
}
