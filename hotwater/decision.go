package hotwater

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/icodeforyou/spotpilot-go/entity"
	"github.com/icodeforyou/spotpilot-go/hours"
	"github.com/icodeforyou/spotpilot-go/price"
	"github.com/icodeforyou/spotpilot-go/types/maybe"
	"github.com/shopspring/decimal"
)

const (
	notEvaluated  = "not_evaluated"
	noneRemaining = "none_remaining"
	unavailable   = "unavailable"
)

// Inputs is everything one evaluation looks at.
type Inputs struct {
	Now            time.Time
	BT7            maybe.Maybe[float64]
	BT6            maybe.Maybe[float64]
	CostZone       maybe.Maybe[float64]
	CurrentStatus  float64
	ManualOverride bool
	InverterPower  maybe.Maybe[float64]
	CompetingLoad  bool
	Pool           price.Pool
	PoolErr        error
}

type Decision struct {
	Status int
	Reason Reason
	Debug  entity.Attributes
}

type slotJSON struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Price float64   `json:"price"`
}

// Evaluate runs the decision layers in priority order, the first layer that
// allows heating wins. Without a BT7 reading heating is always blocked.
func Evaluate(p Params, in Inputs) Decision {
	debug := entity.Attributes{
		"schedule_source":        notEvaluated,
		"schedule_slots":         "[]",
		"next_cheap_start":       notEvaluated,
		"morning_guarantee_slot": notEvaluated,
	}
	allow := func(r Reason) Decision { return Decision{Status: Allow, Reason: r, Debug: debug} }

	bt7, ok := in.BT7.Get()
	if !ok {
		debug["bt7_temperature"] = unavailable
		debug["error"] = "BT7 sensor unavailable"
		return Decision{Status: Block, Reason: ReasonBT7Unavailable, Debug: debug}
	}
	debug["bt7_temperature"] = bt7
	if bt6, ok := in.BT6.Get(); ok {
		debug["bt6_temperature"] = bt6
	} else {
		debug["bt6_temperature"] = unavailable
	}

	zone := p.DefaultCostZone
	if z, ok := in.CostZone.Get(); ok {
		zone = int(z)
		debug["cost_zone"] = zone
	} else {
		debug["cost_zone"] = fmt.Sprintf("unavailable_default_%d", zone)
	}

	if in.ManualOverride {
		return allow(ReasonManualOverride)
	}

	if w, ok := in.InverterPower.Get(); ok && w > p.SolarThreshold && !in.CompetingLoad {
		return allow(ReasonSolarOverride)
	}

	var cheapest, pool []price.HourSlot
	if in.PoolErr != nil {
		debug["schedule_error"] = in.PoolErr.Error()
		debug["schedule_source"] = "error"
	} else {
		pool = in.Pool.Hours
		debug["schedule_source"] = string(in.Pool.Source)
		cheapest = price.Cheapest(pool, p.CheapestHours)
		if slots, err := encodeSlots(cheapest); err != nil {
			debug["schedule_error"] = err.Error()
		} else {
			debug["schedule_slots"] = slots
		}
		debug["next_cheap_start"] = nextCheapStart(cheapest, in.Now)

		currentHour := hours.TruncateHour(in.Now)
		for _, s := range cheapest {
			if s.Contains(currentHour) {
				return allow(ReasonCheapest3h)
			}
		}
	}

	active, info := MorningGuarantee(p, bt7, in.Now, cheapest, pool)
	debug["morning_guarantee_slot"] = info
	if active {
		return allow(ReasonMorningGuarantee)
	}

	// Above the high bound falls through to the default block.
	if zone <= p.SafetyMaxZone {
		if bt7 < p.SafetyLow {
			return allow(ReasonTempSafetyBelow40)
		}
		if bt7 <= p.SafetyHigh && in.CurrentStatus > p.HysteresisStatus {
			return allow(ReasonTempSafetyHysteresis)
		}
	}

	return Decision{Status: Block, Reason: ReasonDefaultBlock, Debug: debug}
}

// MorningGuarantee projects the tank temperature at the morning deadline and,
// when it falls short, picks the cheapest consecutive overnight block that
// heats enough. It reports whether now falls inside that block together with
// a description of the block or why none was chosen.
func MorningGuarantee(p Params, bt7 float64, now time.Time, cheapest, pool []price.HourSlot) (bool, string) {
	h := now.Hour()
	if h >= p.MorningDeadline && h < p.MorningFromHour {
		return false, "not_active_hours"
	}

	deadline := time.Date(now.Year(), now.Month(), now.Day(), p.MorningDeadline, 0, 0, 0, now.Location())
	hoursLeft := p.MorningDeadline - h
	if h >= p.MorningFromHour {
		hoursLeft += 24
		deadline = deadline.AddDate(0, 0, 1)
	}

	projected := bt7 - p.CoolingRate*float64(hoursLeft)
	if projected >= p.MorningTarget {
		return false, "not_needed"
	}
	needed := min(int((p.MorningTarget-projected)/p.HeatPerQuarter)+1, p.MaxQuarters)

	quarters := overnightQuarters(pool, cheapest, deadline, now)
	if len(quarters) < needed {
		return false, "insufficient_intervals"
	}

	block, ok := cheapestBlock(quarters, needed)
	if !ok {
		return false, "no_consecutive_block"
	}
	start, end := block[0].Start, block[len(block)-1].End
	info := fmt.Sprintf("%s - %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	return !now.Before(start) && now.Before(end), info
}

// overnightQuarters splits the pool hours not claimed by the cheapest hours
// and ending by the deadline into quarters. Quarters already over are skipped,
// the running one is kept so a block can be active right now.
func overnightQuarters(pool, cheapest []price.HourSlot, deadline, now time.Time) []price.Interval {
	claimed := make(map[int64]bool, len(cheapest))
	for _, s := range cheapest {
		claimed[s.Start.Unix()] = true
	}

	var out []price.Interval
	for _, s := range pool {
		if claimed[s.Start.Unix()] || s.End.After(deadline) {
			continue
		}
		for i := range 4 {
			start := s.Start.Add(time.Duration(i) * hours.Quarter)
			end := start.Add(hours.Quarter)
			if end.After(now) {
				out = append(out, price.Interval{Start: start, End: end, Value: s.Price})
			}
		}
	}
	return out
}

// cheapestBlock finds the run of n adjacent quarters with the lowest total
// price. The earliest block wins a tie.
func cheapestBlock(quarters []price.Interval, n int) ([]price.Interval, bool) {
	var best []price.Interval
	var bestCost decimal.Decimal
	for i := 0; i+n <= len(quarters); i++ {
		block := quarters[i : i+n]
		if !adjacent(block) {
			continue
		}
		cost := decimal.Sum(decimal.Zero, price.Values(block)...)
		if best == nil || cost.LessThan(bestCost) {
			best, bestCost = block, cost
		}
	}
	return best, best != nil
}

func adjacent(block []price.Interval) bool {
	for j := 1; j < len(block); j++ {
		if !block[j].Start.Equal(block[j-1].End) {
			return false
		}
	}
	return true
}

// Stabilize keeps heating through an hour that was committed as one of the
// cheapest hours, even if a recalculation no longer selects it. prevSlots is
// the schedule stored with the previous decision.
func Stabilize(dec Decision, prevStatus float64, prevReason Reason, prevSlots string, now time.Time) Decision {
	if dec.Reason == ReasonBT7Unavailable {
		return dec
	}
	if prevStatus <= 0.5 || !prevReason.cheapest() || dec.Status != Block {
		return dec
	}
	var slots []slotJSON
	if err := json.Unmarshal([]byte(prevSlots), &slots); err != nil {
		return dec
	}
	currentHour := hours.TruncateHour(now)
	for _, s := range slots {
		if !currentHour.Before(s.Start) && currentHour.Before(s.End) {
			dec.Status = Allow
			dec.Reason = ReasonCheapest3hStability
			if dec.Debug == nil {
				dec.Debug = entity.Attributes{}
			}
			dec.Debug["schedule_slots"] = prevSlots
			return dec
		}
	}
	return dec
}

func encodeSlots(slots []price.HourSlot) (string, error) {
	out := make([]slotJSON, len(slots))
	for i, s := range slots {
		out[i] = slotJSON{Start: s.Start, End: s.End, Price: s.Price.Round(4).InexactFloat64()}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func nextCheapStart(slots []price.HourSlot, now time.Time) string {
	for _, s := range slots {
		if s.End.After(now) {
			return s.Start.Format(time.RFC3339)
		}
	}
	return noneRemaining
}
