// Package costzone bands the current spot price into an ordinal zone
// (0 cheap .. 3 expensive) and smooths zone changes with a price lookahead.
package costzone

import (
	"github.com/icodeforyou/spotpilot-go/price"
	"github.com/shopspring/decimal"
)

const (
	Cheap = iota
	BelowAverage
	AboveAverage
	Expensive
)

// Most expensive zone, also the fallback when no zone is known.
const Default = Expensive

var two = decimal.NewFromInt(2)

// Thresholds are midpoint bands of a price distribution.
type Thresholds struct {
	Avg       decimal.Decimal
	Min       decimal.Decimal
	Max       decimal.Decimal
	Cheap     decimal.Decimal
	Expensive decimal.Decimal
}

func NewThresholds(values []decimal.Decimal) (Thresholds, bool) {
	s, ok := price.Statistics(values)
	if !ok {
		return Thresholds{}, false
	}
	return Thresholds{
		Avg:       s.Avg,
		Min:       s.Min,
		Max:       s.Max,
		Cheap:     s.Avg.Add(s.Min).Div(two),
		Expensive: s.Avg.Add(s.Max).Div(two),
	}, true
}

func (t Thresholds) Classify(p decimal.Decimal) int {
	switch {
	case p.LessThan(t.Cheap):
		return Cheap
	case p.LessThan(t.Avg):
		return BelowAverage
	case p.LessThan(t.Expensive):
		return AboveAverage
	default:
		return Expensive
	}
}

const (
	MinLookahead       = 2
	AgreementThreshold = 0.75
)

type Result struct {
	Zone           int
	RawZone        int
	Agreement      float64
	LookaheadCount int
}

// Smooth commits a raw zone change only when the lookahead prices agree with
// it. With no previous zone, or too little lookahead, the raw zone is taken.
func Smooth(t Thresholds, current decimal.Decimal, previous int, hasPrevious bool, lookahead []decimal.Decimal) Result {
	raw := t.Classify(current)
	res := Result{Zone: raw, RawZone: raw, Agreement: 1.0, LookaheadCount: len(lookahead)}
	if !hasPrevious || raw == previous || len(lookahead) < MinLookahead {
		return res
	}

	matching := 0
	for _, p := range lookahead {
		if t.Classify(p) == raw {
			matching++
		}
	}
	res.Agreement = float64(matching) / float64(len(lookahead))
	if res.Agreement < AgreementThreshold {
		res.Zone = previous
	}
	return res
}
