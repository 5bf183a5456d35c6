package price

import (
	"slices"
	"time"

	"github.com/icodeforyou/spotpilot-go/hours"
	"github.com/shopspring/decimal"
)

type Source string

const (
	NoData        Source = "no_data"
	TodayOnly     Source = "today_only"
	TodayTomorrow Source = "today_tomorrow"
)

type HourSlot struct {
	Start time.Time
	End   time.Time
	Price decimal.Decimal
}

func (h HourSlot) Contains(t time.Time) bool {
	return !t.Before(h.Start) && t.Before(h.End)
}

type Pool struct {
	Hours  []HourSlot
	Source Source
}

// HourPool averages the feed's normalized intervals per wall clock hour (in
// now's location) and keeps the current and future hours, ordered by start.
func HourPool(f Feed, now time.Time) Pool {
	intervals, source := f.Intervals()
	if source == NoData {
		return Pool{Source: NoData}
	}
	return Pool{Hours: GroupByHour(intervals, now), Source: source}
}

func GroupByHour(intervals []Interval, now time.Time) []HourSlot {
	loc := now.Location()
	currentHour := hours.TruncateHour(now)

	type bucket struct {
		start time.Time
		sum   decimal.Decimal
		n     int64
	}
	buckets := make(map[int64]*bucket)
	for _, iv := range intervals {
		start := hours.TruncateHour(iv.Start.In(loc))
		b, ok := buckets[start.Unix()]
		if !ok {
			b = &bucket{start: start}
			buckets[start.Unix()] = b
		}
		b.sum = b.sum.Add(iv.Value)
		b.n++
	}

	pool := make([]HourSlot, 0, len(buckets))
	for _, b := range buckets {
		if b.start.Before(currentHour) {
			continue
		}
		pool = append(pool, HourSlot{
			Start: b.start,
			End:   b.start.Add(time.Hour),
			Price: b.sum.Div(decimal.NewFromInt(b.n)),
		})
	}
	sortByStart(pool, func(h HourSlot) time.Time { return h.Start })
	return pool
}

// Cheapest returns the n lowest priced hours, ties keep pool order, sorted
// chronologically.
func Cheapest(pool []HourSlot, n int) []HourSlot {
	if n <= 0 || len(pool) == 0 {
		return nil
	}
	byPrice := slices.Clone(pool)
	slices.SortStableFunc(byPrice, func(a, b HourSlot) int {
		return a.Price.Cmp(b.Price)
	})
	cheapest := byPrice[:min(n, len(byPrice))]
	sortByStart(cheapest, func(h HourSlot) time.Time { return h.Start })
	return cheapest
}
