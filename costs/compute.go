package costs

import (
	"time"
)

// HourInputs are the prices (per kWh, in price units) and energy deltas
// (kWh) of one completed hour.
type HourInputs struct {
	Buy       float64
	Sell      float64
	Exported  float64
	Produced  float64
	Purchased float64
	EV        float64
	HeatPump  float64
}

// HourCosts are the counter deltas of one hour, in currency.
type HourCosts struct {
	SolarSavings         float64 `json:"solar_savings"`
	EVWithoutSolar       float64 `json:"ev_without_solar"`
	EVWithSolar          float64 `json:"ev_with_solar"`
	HeatPumpWithoutSolar float64 `json:"heat_pump_without_solar"`
	HeatPumpWithSolar    float64 `json:"heat_pump_with_solar"`
}

// Compute derives the hour's cost deltas. Energy bought and exported within
// the same hour is treated as self consumption, and the remaining grid
// purchase is shared between the EV and the heat pump by their share of all
// energy that came into the house. scale converts price units to currency.
func Compute(in HourInputs, scale float64) HourCosts {
	simultaneous := min(in.Purchased, in.Exported)
	netPurchased := in.Purchased - simultaneous
	netExported := in.Exported - simultaneous

	total := in.Purchased + in.Produced
	gridPortion := func(used float64) float64 {
		if total <= 0 {
			return used
		}
		return min(used, netPurchased*used/total)
	}

	return HourCosts{
		SolarSavings:         (in.Buy*(in.Produced-netExported) + in.Sell*netExported) / scale,
		EVWithoutSolar:       in.Buy * in.EV / scale,
		EVWithSolar:          in.Buy * gridPortion(in.EV) / scale,
		HeatPumpWithoutSolar: in.Buy * in.HeatPump / scale,
		HeatPumpWithSolar:    in.Buy * gridPortion(in.HeatPump) / scale,
	}
}

// valueAt returns the state in effect at t.
func valueAt(samples []Sample, t time.Time) (float64, bool) {
	var v float64
	var found bool
	for _, s := range samples {
		if s.Time.After(t) {
			break
		}
		v, found = s.Value, true
	}
	return v, found
}

// delta is the counter increase over [from, to]. A counter first seen
// inside the window counts from its first sample, resets count as zero.
func delta(samples []Sample, from, to time.Time) float64 {
	if len(samples) == 0 {
		return 0
	}
	first, ok := valueAt(samples, from)
	if !ok {
		first = samples[0].Value
	}
	last, ok := valueAt(samples, to)
	if !ok {
		return 0
	}
	return max(last-first, 0)
}

// weightedPrice weighs the price in effect at each quarter by the counter
// delta of that quarter.
func weightedPrice(prices, counter []Sample, from time.Time) (float64, bool) {
	var sum, weight float64
	for q := range 4 {
		start := from.Add(time.Duration(q) * 15 * time.Minute)
		end := start.Add(15 * time.Minute)
		p, ok := valueAt(prices, start)
		if !ok {
			p, ok = firstWithin(prices, start, end)
		}
		if !ok {
			continue
		}
		e := delta(counter, start, end)
		sum += p * e
		weight += e
	}
	if weight <= 0 {
		return 0, false
	}
	return sum / weight, true
}

// meanPrice is the plain mean of the states seen during [from, to).
func meanPrice(prices []Sample, from, to time.Time) (float64, bool) {
	var values []float64
	if v, ok := valueAt(prices, from); ok {
		values = append(values, v)
	}
	for _, s := range prices {
		if s.Time.After(from) && s.Time.Before(to) {
			values = append(values, s.Value)
		}
	}
	if len(values) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), true
}

func firstWithin(samples []Sample, from, to time.Time) (float64, bool) {
	for _, s := range samples {
		if !s.Time.Before(from) && s.Time.Before(to) {
			return s.Value, true
		}
	}
	return 0, false
}
