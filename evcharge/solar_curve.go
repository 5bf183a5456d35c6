package evcharge

import (
	"time"

	"github.com/icodeforyou/spotpilot-go/hours"
	"github.com/icodeforyou/spotpilot-go/types/maybe"
)

// Relative production per hour, extended to 05-19 to cover the seasons.
var rawSolarCurve = map[int]float64{
	5: 0.008, 6: 0.020, 7: 0.045, 8: 0.080, 9: 0.105,
	10: 0.120, 11: 0.130, 12: 0.130, 13: 0.120, 14: 0.105,
	15: 0.080, 16: 0.045, 17: 0.020, 18: 0.008, 19: 0.004,
}

// DefaultSolarCurve returns the hourly production shares, summing to 1.
func DefaultSolarCurve() map[int]float64 {
	return NormalizeCurve(rawSolarCurve)
}

func NormalizeCurve(raw map[int]float64) map[int]float64 {
	var sum float64
	for _, v := range raw {
		sum += v
	}
	out := make(map[int]float64, len(raw))
	if sum <= 0 {
		return out
	}
	for h, v := range raw {
		out[h] = v / sum
	}
	return out
}

// SolarForecast holds the daily production forecasts and sun times.
type SolarForecast struct {
	TodayRemaining maybe.Maybe[float64] // kWh
	Tomorrow       maybe.Maybe[float64] // kWh
	Sunrise        maybe.Maybe[time.Time]
	Sunset         maybe.Maybe[time.Time]
}

// Daylight reports whether t lies between sunrise and sunset. The sun
// sensors report the next occurrence, so only their time of day is used.
// Without sun data the window is 06:00-21:00.
func (f SolarForecast) Daylight(t time.Time) bool {
	rise, okRise := f.Sunrise.Get()
	set, okSet := f.Sunset.Get()
	if !okRise || !okSet {
		return t.Hour() >= 6 && t.Hour() < 21
	}
	c := hours.ClockOf(t)
	return c >= hours.ClockOf(rise.In(t.Location())) && c <= hours.ClockOf(set.In(t.Location()))
}

// SolarKW estimates the average solar power left for charging in the slot
// starting at start, after the house base load.
func (p Params) SolarKW(f SolarForecast, start, now time.Time) float64 {
	rise, okRise := f.Sunrise.Get()
	set, okSet := f.Sunset.Get()
	if okRise && okSet {
		c := hours.ClockOf(start)
		if c < hours.ClockOf(rise.In(start.Location())) || c >= hours.ClockOf(set.In(start.Location())) {
			return 0
		}
	}

	share, ok := p.SolarCurve[start.Hour()]
	if !ok {
		return 0
	}

	var daily float64
	switch {
	case hours.SameDay(now, start):
		daily = f.TodayRemaining.ValueOrDefault(0)
	case hours.SameDay(now.AddDate(0, 0, 1), start):
		daily = f.Tomorrow.ValueOrDefault(0)
	default:
		return 0
	}

	// kWh over one hour equals the average kW in that hour
	return max(0, daily*share*p.SolarConfidence-p.BaseloadKW)
}
