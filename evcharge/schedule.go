package evcharge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/icodeforyou/spotpilot-go/convert"
	"github.com/icodeforyou/spotpilot-go/entity"
)

type Mode string

const (
	ModeIdle                 Mode = "idle"
	ModeComplete             Mode = "complete"
	ModeMandatory            Mode = "scheduled_mandatory"
	ModeOptional             Mode = "scheduled_optional"
	ModeMandatoryAndOptional Mode = "scheduled_mandatory_optional"
)

// Active reports whether the executor has anything to do for the mode.
func (m Mode) Active() bool {
	return m != ModeIdle && m != ModeComplete && m != ""
}

// DisplayLimit is the capacity of the display text entity.
const DisplayLimit = 255

// Schedule is the stored charging plan. Slots are ordered by start.
type Schedule struct {
	Slots           []Slot     `json:"slots"`
	SlotCount       int        `json:"slot_count"`
	SolarSlotsCount int        `json:"solar_slots_count"`
	EstimatedCost   float64    `json:"estimated_cost"`
	TotalEnergyKWh  float64    `json:"total_energy_kwh"`
	Mode            Mode       `json:"mode"`
	LastCalculated  time.Time  `json:"last_calculated"`
	NextSlotStart   *time.Time `json:"next_slot_start,omitempty"`
}

func NewSchedule(p Params, selected []Slot, mode Mode, now time.Time) Schedule {
	slots := slices.Clone(selected)
	if slots == nil {
		slots = []Slot{}
	}
	slices.SortStableFunc(slots, func(a, b Slot) int { return a.Start.Compare(b.Start) })

	s := Schedule{
		Slots:          slots,
		SlotCount:      len(slots),
		Mode:           mode,
		LastCalculated: now,
	}
	var cost float64
	for _, slot := range slots {
		cost += slot.EffectivePrice * slot.Energy
		if slot.SolarEnergy > p.SolarCountKWh {
			s.SolarSlotsCount++
		}
	}
	s.EstimatedCost = convert.RoundFloat64(cost, 4)
	s.TotalEnergyKWh = convert.TwoDecimals(totalEnergy(slots))
	if len(slots) > 0 {
		start := slots[0].Start
		s.NextSlotStart = &start
	}
	return s
}

// SlotAt returns the slot containing t.
func (s Schedule) SlotAt(t time.Time) (Slot, bool) {
	for _, slot := range s.Slots {
		if slot.Contains(t) {
			return slot, true
		}
	}
	return Slot{}, false
}

// HasFutureSlots reports whether any slot ends after t.
func (s Schedule) HasFutureSlots(t time.Time) bool {
	for _, slot := range s.Slots {
		if slot.End.After(t) {
			return true
		}
	}
	return false
}

func (s Schedule) End() (time.Time, bool) {
	if len(s.Slots) == 0 {
		return time.Time{}, false
	}
	return s.Slots[len(s.Slots)-1].End, true
}

func (s Schedule) Encode() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encoding schedule: %w", err)
	}
	return string(b), nil
}

// Display truncates an encoded schedule to the display capacity.
func Display(encoded string) string {
	if len(encoded) <= DisplayLimit {
		return encoded
	}
	return encoded[:DisplayLimit]
}

func DecodeSchedule(encoded string) (Schedule, error) {
	var s Schedule
	if err := json.Unmarshal([]byte(encoded), &s); err != nil {
		return Schedule{}, fmt.Errorf("decoding schedule: %w", err)
	}
	return s, nil
}

const attrScheduleJSON = "schedule_json"

var ErrNoSchedule = errors.New("no schedule stored")

// StoreSchedule writes the full schedule and its metadata as attributes of
// the status entity and the truncated projection to the display entity.
func StoreSchedule(ctx context.Context, s entity.Store, sched Schedule) error {
	encoded, err := sched.Encode()
	if err != nil {
		return err
	}

	attrs := entity.Attributes{
		attrScheduleJSON:    encoded,
		"slot_count":        sched.SlotCount,
		"solar_slots_count": sched.SolarSlotsCount,
		"estimated_cost":    sched.EstimatedCost,
		"total_energy_kwh":  sched.TotalEnergyKWh,
		"last_calculated":   entity.FormatTime(sched.LastCalculated),
		"mode":              string(sched.Mode),
		"next_slot_start":   nil,
		"schedule_end":      nil,
	}
	if sched.NextSlotStart != nil {
		attrs["next_slot_start"] = entity.FormatTime(*sched.NextSlotStart)
	}
	if end, ok := sched.End(); ok {
		attrs["schedule_end"] = entity.FormatTime(end)
	}
	if err := entity.SetAttributes(ctx, s, entity.EvChargingStatus, attrs); err != nil {
		return fmt.Errorf("storing schedule: %w", err)
	}

	if err := s.SetState(ctx, entity.EvChargingSchedule, Display(encoded)); err != nil {
		return fmt.Errorf("storing schedule display: %w", err)
	}
	return nil
}

// LoadSchedule reads back the full schedule, ErrNoSchedule when none is stored.
func LoadSchedule(ctx context.Context, s entity.Store) (Schedule, error) {
	attrs, err := s.Attributes(ctx, entity.EvChargingStatus)
	if err != nil {
		return Schedule{}, fmt.Errorf("loading schedule: %w", err)
	}
	encoded, ok := entity.AttrString(attrs, attrScheduleJSON).Get()
	if !ok || encoded == "" {
		return Schedule{}, ErrNoSchedule
	}
	return DecodeSchedule(encoded)
}

// InScheduledSlot reports whether t falls inside a slot of the stored schedule.
func InScheduledSlot(ctx context.Context, s entity.Store, t time.Time) bool {
	sched, err := LoadSchedule(ctx, s)
	if err != nil {
		return false
	}
	_, ok := sched.SlotAt(t)
	return ok
}
