package evcharge

import (
	"errors"
	"time"

	"github.com/icodeforyou/spotpilot-go/hours"
)

var (
	ErrNoPriceData           = errors.New("no price data")
	ErrNoSlotsBeforeDeadline = errors.New("no slots before deadline")
)

// Plan is the outcome of one two-pass slot selection.
type Plan struct {
	Mandatory       []Slot
	Optional        []Slot
	Mode            Mode
	Deadline        time.Time
	MandatoryNeeded float64 // kWh
	OptionalNeeded  float64 // kWh
	// Shortfall is set when the slots before the deadline could not cover
	// the mandatory energy. All of them are selected in that case.
	Shortfall bool
}

func (p Plan) Selected() []Slot {
	out := make([]Slot, 0, len(p.Mandatory)+len(p.Optional))
	out = append(out, p.Mandatory...)
	return append(out, p.Optional...)
}

// NewPlan selects slots in two greedy passes over slots ordered by effective
// price. The first pass guarantees the minimum SOC by the next deadline, the
// second tops up towards the charge limit from whatever slots remain.
func NewPlan(p Params, soc, limit float64, slots []Slot, now time.Time) (Plan, error) {
	if soc >= limit {
		return Plan{Mode: ModeComplete}, nil
	}
	if len(slots) == 0 {
		return Plan{}, ErrNoPriceData
	}

	plan := Plan{Deadline: hours.NextClock(now, p.DeadlineHour, p.DeadlineMinute)}

	if soc < p.MinSOC {
		plan.MandatoryNeeded = p.KWhNeeded(soc, p.MinSOC)
		var beforeDeadline []Slot
		for _, s := range slots {
			if s.Start.Before(plan.Deadline) {
				beforeDeadline = append(beforeDeadline, s)
			}
		}
		if len(beforeDeadline) == 0 {
			return Plan{}, ErrNoSlotsBeforeDeadline
		}
		sortByEffectivePrice(beforeDeadline)
		plan.Mandatory = selectForEnergy(beforeDeadline, plan.MandatoryNeeded)
		plan.Shortfall = totalEnergy(plan.Mandatory) < plan.MandatoryNeeded
	}

	socAfter := soc
	if len(plan.Mandatory) > 0 {
		socAfter = p.SOCAfter(soc, totalEnergy(plan.Mandatory), limit)
	}
	plan.OptionalNeeded = p.KWhNeeded(socAfter, limit)

	if plan.OptionalNeeded > 0 {
		taken := make(map[int64]bool, len(plan.Mandatory))
		for _, s := range plan.Mandatory {
			taken[s.Start.Unix()] = true
		}
		remaining := make([]Slot, 0, len(slots))
		for _, s := range slots {
			if !taken[s.Start.Unix()] {
				remaining = append(remaining, s)
			}
		}
		sortByEffectivePrice(remaining)
		plan.Optional = selectForEnergy(remaining, plan.OptionalNeeded)
	}

	switch {
	case len(plan.Mandatory) > 0 && len(plan.Optional) > 0:
		plan.Mode = ModeMandatoryAndOptional
	case len(plan.Mandatory) > 0:
		plan.Mode = ModeMandatory
	case len(plan.Optional) > 0:
		plan.Mode = ModeOptional
	default:
		plan.Mode = ModeIdle
	}
	return plan, nil
}

// selectForEnergy takes whole slots in order until their energy covers needed.
func selectForEnergy(slots []Slot, needed float64) []Slot {
	if needed <= 0 {
		return nil
	}
	var selected []Slot
	var accumulated float64
	for _, s := range slots {
		if accumulated >= needed {
			break
		}
		selected = append(selected, s)
		accumulated += s.Energy
	}
	return selected
}
