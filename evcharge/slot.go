package evcharge

import (
	"cmp"
	"slices"
	"time"

	"github.com/icodeforyou/spotpilot-go/price"
	"github.com/shopspring/decimal"
)

// Slot is a 15 minute charging opportunity. Energies are in kWh, prices per kWh.
type Slot struct {
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	BuyPrice       float64   `json:"buy_price"`
	SellPrice      float64   `json:"sell_price"`
	EffectivePrice float64   `json:"effective_price"`
	SolarEnergy    float64   `json:"solar_energy"`
	GridEnergy     float64   `json:"grid_energy"`
	Energy         float64   `json:"energy"`
}

func (s Slot) Contains(t time.Time) bool {
	return !t.Before(s.Start) && t.Before(s.End)
}

// BuildSlots prices every remaining interval of the buy feed. The effective
// price weighs the expected solar share at the sell price, which is what
// charging from solar gives up, and the rest at the buy price. The result is
// ordered by effective price, ties keep chronological order.
func BuildSlots(p Params, buy, sell price.Feed, solar SolarForecast, now time.Time) []Slot {
	intervals, source := buy.Intervals()
	if source == price.NoData {
		return nil
	}

	sellIntervals, _ := sell.Intervals()
	sellAt := price.NewLookup(sellIntervals)
	flatSell := sell.Flat.ValueOrDefault(decimal.Zero).InexactFloat64()
	capacity := p.SlotEnergy()

	slots := make([]Slot, 0, len(intervals))
	for _, iv := range intervals {
		if !iv.End.After(now) {
			continue
		}
		buyPrice := iv.Value.InexactFloat64()

		var sellPrice float64
		if v, ok := sellAt.At(iv.Start); ok {
			sellPrice = v.InexactFloat64()
		} else if flatSell > 0 {
			sellPrice = flatSell
		} else {
			sellPrice = buyPrice * p.SellFallback
		}

		solarEnergy := min(p.SolarKW(solar, iv.Start, now)*slotHours, capacity)
		gridEnergy := capacity - solarEnergy
		effective := buyPrice
		if capacity > 0 {
			effective = solarEnergy/capacity*sellPrice + gridEnergy/capacity*buyPrice
		}

		slots = append(slots, Slot{
			Start:          iv.Start,
			End:            iv.End,
			BuyPrice:       buyPrice,
			SellPrice:      sellPrice,
			EffectivePrice: effective,
			SolarEnergy:    solarEnergy,
			GridEnergy:     gridEnergy,
			Energy:         capacity,
		})
	}

	sortByEffectivePrice(slots)
	return slots
}

func sortByEffectivePrice(slots []Slot) {
	slices.SortStableFunc(slots, func(a, b Slot) int {
		return cmp.Compare(a.EffectivePrice, b.EffectivePrice)
	})
}

func totalEnergy(slots []Slot) float64 {
	var sum float64
	for _, s := range slots {
		sum += s.Energy
	}
	return sum
}
