// Package evcharge plans EV charging into the cheapest 15 minute slots and
// executes the stored plan against the charger.
package evcharge

import (
	"time"

	"github.com/icodeforyou/spotpilot-go/convert"
)

const slotHours = 0.25

type Params struct {
	BatteryKWh     float64
	Efficiency     float64 // wall to battery
	MaxRateKW      float64
	MinAmps        int
	MaxAmps        int
	Voltage        float64
	Phases         int
	MinSOC         float64 // guaranteed by the deadline
	DeadlineHour   int
	DeadlineMinute int

	SolarCurve      map[int]float64 // hour of day -> share of daily production
	SolarConfidence float64
	BaseloadKW      float64
	SellFallback    float64 // sell price as share of buy when no sell price is known

	SolarSlotKWh  float64 // slot counts as solar charging above this
	SolarCountKWh float64 // slot counts towards solar_slots_count above this
	StartDelay    time.Duration
}

func DefaultParams() Params {
	return Params{
		BatteryKWh:      75,
		Efficiency:      0.90,
		MaxRateKW:       9,
		MinAmps:         6,
		MaxAmps:         13,
		Voltage:         230,
		Phases:          3,
		MinSOC:          50,
		DeadlineHour:    7,
		DeadlineMinute:  0,
		SolarCurve:      DefaultSolarCurve(),
		SolarConfidence: 0.80,
		BaseloadKW:      1.0,
		SellFallback:    0.5,
		SolarSlotKWh:    0.5,
		SolarCountKWh:   0.1,
		StartDelay:      2 * time.Second,
	}
}

// SlotEnergy is what one slot delivers at the maximum rate, in kWh.
func (p Params) SlotEnergy() float64 {
	return p.MaxRateKW * slotHours
}

// KWhNeeded is the wall side energy needed to go from one SOC to another.
func (p Params) KWhNeeded(from, to float64) float64 {
	if from >= to {
		return 0
	}
	return (to - from) / 100 * p.BatteryKWh / p.Efficiency
}

// SOCAfter estimates the SOC after charging kwh from the wall, capped at limit.
func (p Params) SOCAfter(soc, kwh, limit float64) float64 {
	return min(soc+kwh*p.Efficiency/p.BatteryKWh*100, limit)
}

func (p Params) WattsPerAmp() float64 {
	return p.Voltage * float64(p.Phases)
}

// MinChargePower is the power drawn at the minimum current, in W.
func (p Params) MinChargePower() float64 {
	return float64(p.MinAmps) * p.WattsPerAmp()
}

func (p Params) ClampAmps(amps int) int {
	return convert.ClampInt(amps, p.MinAmps, p.MaxAmps)
}

// AmpsFor converts a power into a charging current, amps = W / (V * phases).
func (p Params) AmpsFor(watts float64) int {
	return p.ClampAmps(int(watts / p.WattsPerAmp()))
}
