package evcharge

import (
	"context"
	"strings"
	"testing"

	"github.com/icodeforyou/spotpilot-go/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := entity.NewMemStore()
	now := at(15, 0)
	p := DefaultParams()

	plan, err := NewPlan(p, 40, 80, buySlots(t, now, cheapThenExpensive(), cheapThenExpensive()), now)
	require.NoError(t, err)
	sched := NewSchedule(p, plan.Selected(), plan.Mode, now)
	require.NoError(t, StoreSchedule(ctx, s, sched))

	loaded, err := LoadSchedule(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, sched.Mode, loaded.Mode)
	assert.Equal(t, sched.SlotCount, loaded.SlotCount)
	assert.Equal(t, sched.EstimatedCost, loaded.EstimatedCost)
	assert.Equal(t, sched.TotalEnergyKWh, loaded.TotalEnergyKWh)
	require.Len(t, loaded.Slots, len(sched.Slots))
	for i, want := range sched.Slots {
		got := loaded.Slots[i]
		assert.True(t, want.Start.Equal(got.Start))
		assert.True(t, want.End.Equal(got.End))
		assert.Equal(t, want.BuyPrice, got.BuyPrice)
		assert.Equal(t, want.SellPrice, got.SellPrice)
		assert.Equal(t, want.EffectivePrice, got.EffectivePrice)
		if i > 0 {
			assert.True(t, loaded.Slots[i-1].Start.Before(got.Start), "slots ordered by start")
		}
	}

	attrs, err := s.Attributes(ctx, entity.EvChargingStatus)
	require.NoError(t, err)
	assert.Equal(t, float64(15), entity.AttrFloat(attrs, "slot_count").Value())
	assert.Equal(t, entity.FormatTime(at(15, 0)), entity.AttrString(attrs, "next_slot_start").Value())
	assert.Equal(t, string(ModeMandatoryAndOptional), entity.AttrString(attrs, "mode").Value())
}

func TestScheduleDisplayIsTruncated(t *testing.T) {
	ctx := context.Background()
	s := entity.NewMemStore()
	now := at(15, 0)
	p := DefaultParams()

	sched := NewSchedule(p, buySlots(t, now, cheapThenExpensive(), nil), ModeOptional, now)
	encoded, err := sched.Encode()
	require.NoError(t, err)
	require.Greater(t, len(encoded), DisplayLimit)

	require.NoError(t, StoreSchedule(ctx, s, sched))
	display := entity.String(ctx, s, entity.EvChargingSchedule).Value()
	assert.Len(t, display, DisplayLimit)
	assert.True(t, strings.HasPrefix(encoded, display))

	loaded, err := LoadSchedule(ctx, s)
	require.NoError(t, err)
	assert.Len(t, loaded.Slots, 36, "full schedule stays lossless")
}

func TestEmptyScheduleMetadata(t *testing.T) {
	ctx := context.Background()
	s := entity.NewMemStore()

	_, err := LoadSchedule(ctx, s)
	assert.ErrorIs(t, err, ErrNoSchedule)

	require.NoError(t, StoreSchedule(ctx, s, NewSchedule(DefaultParams(), nil, ModeComplete, at(9, 0))))
	loaded, err := LoadSchedule(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, ModeComplete, loaded.Mode)
	assert.Empty(t, loaded.Slots)
	assert.Nil(t, loaded.NextSlotStart)
	assert.False(t, loaded.HasFutureSlots(at(9, 0)))
	assert.False(t, InScheduledSlot(ctx, s, at(9, 0)))

	attrs, err := s.Attributes(ctx, entity.EvChargingStatus)
	require.NoError(t, err)
	assert.Nil(t, attrs["next_slot_start"])
	assert.Nil(t, attrs["schedule_end"])
}

func TestScheduleEstimatedCost(t *testing.T) {
	slots := []Slot{
		{Start: at(2, 0), End: at(2, 15), EffectivePrice: 0.5, Energy: 2.25, SolarEnergy: 0},
		{Start: at(1, 0), End: at(1, 15), EffectivePrice: 0.1, Energy: 2.25, SolarEnergy: 0.3},
	}
	sched := NewSchedule(DefaultParams(), slots, ModeOptional, at(0, 0))

	assert.True(t, sched.Slots[0].Start.Equal(at(1, 0)))
	assert.Equal(t, 1.35, sched.EstimatedCost)
	assert.Equal(t, 4.5, sched.TotalEnergyKWh)
	assert.Equal(t, 1, sched.SolarSlotsCount)
	end, ok := sched.End()
	require.True(t, ok)
	assert.True(t, end.Equal(at(2, 15)))

	_, in := sched.SlotAt(at(1, 14))
	assert.True(t, in)
	_, in = sched.SlotAt(at(1, 15))
	assert.False(t, in)
	assert.True(t, sched.HasFutureSlots(at(1, 30)))
	assert.False(t, sched.HasFutureSlots(at(2, 15)))
}
