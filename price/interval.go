// Package price turns raw spot price ticks into uniform 15 minute intervals
// and hour pools that the controllers plan against.
package price

import (
	"slices"
	"time"

	"github.com/icodeforyou/spotpilot-go/hours"
	"github.com/shopspring/decimal"
)

// RawTick is a price tick as delivered by a source. Sources publish hourly
// or 15 minute ticks, sometimes mixed within the same day around DST shifts.
type RawTick struct {
	Start *time.Time       `json:"start"`
	End   *time.Time       `json:"end"`
	Value *decimal.Decimal `json:"value"`
}

func NewRawTick(start, end time.Time, value decimal.Decimal) RawTick {
	return RawTick{Start: &start, End: &end, Value: &value}
}

// Interval is a normalized price interval, normally 15 minutes long.
type Interval struct {
	Start time.Time       `json:"start"`
	End   time.Time       `json:"end"`
	Value decimal.Decimal `json:"value"`
}

func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

const splitThreshold = 45 * time.Minute

// Normalize splits every tick longer than 45 minutes into four 15 minute
// intervals carrying the same value. Shorter ticks pass through unchanged.
// Ticks missing start, end or value, or with end not after start, are dropped.
func Normalize(ticks []RawTick) []Interval {
	out := make([]Interval, 0, len(ticks)*4)
	for _, t := range ticks {
		if t.Start == nil || t.End == nil || t.Value == nil || !t.End.After(*t.Start) {
			continue
		}
		start, end, value := *t.Start, *t.End, *t.Value
		if end.Sub(start) > splitThreshold {
			for i := range 4 {
				s := start.Add(time.Duration(i) * hours.Quarter)
				out = append(out, Interval{Start: s, End: s.Add(hours.Quarter), Value: value})
			}
			continue
		}
		out = append(out, Interval{Start: start, End: end, Value: value})
	}
	return out
}

// At returns the interval containing t.
func At(intervals []Interval, t time.Time) (Interval, bool) {
	for _, iv := range intervals {
		if iv.Contains(t) {
			return iv, true
		}
	}
	return Interval{}, false
}

// Following returns up to k intervals starting at or after t, in input order.
func Following(intervals []Interval, t time.Time, k int) []Interval {
	var out []Interval
	for _, iv := range intervals {
		if len(out) >= k {
			break
		}
		if !iv.Start.Before(t) {
			out = append(out, iv)
		}
	}
	return out
}

func Values(intervals []Interval) []decimal.Decimal {
	out := make([]decimal.Decimal, len(intervals))
	for i, iv := range intervals {
		out[i] = iv.Value
	}
	return out
}

// Lookup finds interval prices by exact start instant.
type Lookup map[int64]decimal.Decimal

func NewLookup(intervals []Interval) Lookup {
	l := make(Lookup, len(intervals))
	for _, iv := range intervals {
		l[iv.Start.Unix()] = iv.Value
	}
	return l
}

func (l Lookup) At(start time.Time) (decimal.Decimal, bool) {
	v, ok := l[start.Unix()]
	return v, ok
}

func sortByStart[T any](items []T, start func(T) time.Time) {
	slices.SortStableFunc(items, func(a, b T) int {
		return start(a).Compare(start(b))
	})
}
