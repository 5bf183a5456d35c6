package evcharge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/icodeforyou/spotpilot-go/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func storeTestSchedule(t *testing.T, s entity.Store, slots ...Slot) {
	sched := NewSchedule(DefaultParams(), slots, ModeMandatory, at(0, 0))
	require.NoError(t, StoreSchedule(context.Background(), s, sched))
}

func gridSlot(h, m int) Slot {
	return Slot{Start: at(h, m), End: at(h, m).Add(15 * time.Minute), Energy: 2.25, GridEnergy: 2.25}
}

func newTestExecutor(s entity.Store, c Charger) *Executor {
	return NewExecutor(discardLogger(), s, entity.NewKeyedMutex(), newTestControl(s, c))
}

func TestExecutorStartsInSlot(t *testing.T) {
	ctx := context.Background()
	s := entity.NewMemStore()
	seedVehicle(t, s, vehicleState{soc: "40", limit: "80"})
	storeTestSchedule(t, s, gridSlot(2, 0))

	c := &MockCharger{}
	c.On("SetAmps", mock.Anything, 13).Return(nil).Once()
	c.On("SwitchOn", mock.Anything).Return(nil).Once()

	require.NoError(t, newTestExecutor(s, c).Run(ctx, at(2, 2)))
	c.AssertExpectations(t)

	code, msg := statusOf(t, s)
	assert.Equal(t, "2", code)
	assert.Equal(t, "Charging (grid)", msg)
	assert.Equal(t, StartedBySmart, CurrentStartedBy(ctx, s))
}

func TestExecutorSolarSlotLabel(t *testing.T) {
	ctx := context.Background()
	s := entity.NewMemStore()
	seedVehicle(t, s, vehicleState{soc: "40", limit: "80", charging: true})
	slot := gridSlot(12, 0)
	slot.SolarEnergy = 1.2
	storeTestSchedule(t, s, slot)

	c := &MockCharger{}
	require.NoError(t, newTestExecutor(s, c).Run(ctx, at(12, 2)))
	c.AssertNotCalled(t, "SwitchOn", mock.Anything)

	code, msg := statusOf(t, s)
	assert.Equal(t, "3", code)
	assert.Equal(t, "Charging (solar)", msg)
}

func TestExecutorOutsideSlot(t *testing.T) {
	tests := []struct {
		name      string
		charging  bool
		startedBy StartedBy
		now       time.Time
		wantStop  bool
		wantCode  string
		wantMsg   string
	}{
		{"own session paused", true, StartedBySmart, at(2, 17), true, "4", "Paused - waiting for next slot"},
		{"manual session untouched", true, StartedByNone, at(2, 17), false, "", ""},
		{"solar session untouched", true, StartedBySolar, at(2, 17), false, "", ""},
		{"waiting for later slot", false, StartedByNone, at(1, 47), false, "1", "Waiting for scheduled slot"},
		{"schedule exhausted", false, StartedByNone, at(2, 47), false, "0", "No charging scheduled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := entity.NewMemStore()
			seedVehicle(t, s, vehicleState{soc: "40", limit: "80", charging: tt.charging})
			storeTestSchedule(t, s, gridSlot(2, 0))
			require.NoError(t, s.SetAttribute(ctx, entity.EvChargingStatus, AttrStartedBy, string(tt.startedBy)))

			c := &MockCharger{}
			if tt.wantStop {
				c.On("SwitchOff", mock.Anything).Return(nil).Once()
			}

			require.NoError(t, newTestExecutor(s, c).Run(ctx, tt.now))
			c.AssertExpectations(t)
			if !tt.wantStop {
				c.AssertNotCalled(t, "SwitchOff", mock.Anything)
			}

			code, msg := statusOf(t, s)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantMsg, msg)
			if tt.wantStop {
				assert.Equal(t, StartedByNone, CurrentStartedBy(ctx, s))
			}
		})
	}
}

func TestExecutorSkips(t *testing.T) {
	ctx := context.Background()

	t.Run("cable disconnected", func(t *testing.T) {
		s := entity.NewMemStore()
		seedVehicle(t, s, vehicleState{soc: "40", limit: "80"})
		require.NoError(t, s.SetState(ctx, entity.EvChargeCable, "off"))
		storeTestSchedule(t, s, gridSlot(2, 0))

		c := &MockCharger{}
		require.NoError(t, newTestExecutor(s, c).Run(ctx, at(2, 2)))
		c.AssertNotCalled(t, "SetAmps", mock.Anything, mock.Anything)
	})

	t.Run("complete schedule", func(t *testing.T) {
		s := entity.NewMemStore()
		seedVehicle(t, s, vehicleState{soc: "80", limit: "80"})
		require.NoError(t, StoreSchedule(ctx, s, NewSchedule(DefaultParams(), nil, ModeComplete, at(0, 0))))

		c := &MockCharger{}
		require.NoError(t, newTestExecutor(s, c).Run(ctx, at(2, 2)))
		code, _ := statusOf(t, s)
		assert.Empty(t, code)
	})
}

func TestExecutorStartFailure(t *testing.T) {
	ctx := context.Background()
	s := entity.NewMemStore()
	seedVehicle(t, s, vehicleState{soc: "40", limit: "80"})
	storeTestSchedule(t, s, gridSlot(2, 0))

	c := &MockCharger{}
	c.On("SetAmps", mock.Anything, 13).Return(errors.New("broker down"))

	assert.Error(t, newTestExecutor(s, c).Run(ctx, at(2, 2)))
	code, msg := statusOf(t, s)
	assert.Equal(t, "-1", code)
	assert.Equal(t, "Failed to start charging", msg)
	c.AssertNotCalled(t, "SwitchOn", mock.Anything)
}

func TestControlAdjust(t *testing.T) {
	ctx := context.Background()
	s := entity.NewMemStore()
	require.NoError(t, s.SetState(ctx, entity.EvChargeCurrent, "7"))

	c := &MockCharger{}
	c.On("SetAmps", mock.Anything, 9).Return(nil).Once()
	control := newTestControl(s, c)

	sent, err := control.Adjust(ctx, 7)
	require.NoError(t, err)
	assert.False(t, sent)

	sent, err = control.Adjust(ctx, 9)
	require.NoError(t, err)
	assert.True(t, sent)
	c.AssertExpectations(t)
}

func TestDryRunChargerMirrorsState(t *testing.T) {
	ctx := context.Background()
	s := entity.NewMemStore()
	control := newTestControl(s, NewDryRunCharger(discardLogger(), s))

	amps, err := control.Start(ctx, at(1, 0), 40, StartedBySolar)
	require.NoError(t, err)
	assert.Equal(t, 13, amps)
	assert.True(t, ReadVehicle(ctx, s).Charging)
	assert.Equal(t, 13.0, entity.Float(ctx, s, entity.EvChargeCurrent).Value())
	assert.Equal(t, StartedBySolar, CurrentStartedBy(ctx, s))

	require.NoError(t, control.Stop(ctx, at(2, 0)))
	assert.False(t, ReadVehicle(ctx, s).Charging)
	assert.Equal(t, StartedByNone, CurrentStartedBy(ctx, s))
}

func TestTriggersCableConnected(t *testing.T) {
	tests := []struct {
		name      string
		now       time.Time
		startedBy StartedBy
		wantStop  bool
		wantOwner StartedBy
	}{
		{"adopt session inside slot", at(2, 5), StartedByNone, false, StartedBySmart},
		{"stop own session outside slot", at(3, 5), StartedBySmart, true, StartedByNone},
		{"leave foreign session alone", at(3, 5), StartedByNone, false, StartedByNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := entity.NewMemStore()
			// SOC unknown, so recalculation fails and the stored schedule is kept
			seedVehicle(t, s, vehicleState{soc: "", limit: "80", charging: true})
			storeTestSchedule(t, s, gridSlot(2, 0))
			require.NoError(t, s.SetAttribute(ctx, entity.EvChargingStatus, AttrStartedBy, string(tt.startedBy)))

			c := &MockCharger{}
			if tt.wantStop {
				c.On("SwitchOff", mock.Anything).Return(nil).Once()
			}
			locks := entity.NewKeyedMutex()
			control := newTestControl(s, c)
			trig := NewTriggers(discardLogger(), s, locks, NewScheduler(discardLogger(), s, locks, DefaultParams()), control,
				func() time.Time { return tt.now })
			trig.sleep = noSleep

			require.NoError(t, trig.OnCableConnected(ctx))
			c.AssertExpectations(t)
			assert.Equal(t, tt.wantOwner, CurrentStartedBy(ctx, s))
			code, msg := statusOf(t, s)
			if tt.wantStop {
				assert.Equal(t, "Auto-charge stopped - waiting for slot", msg)
			} else {
				assert.Equal(t, "-1", code, "failed recalculation is reported")
				assert.Equal(t, "SOC unavailable", msg)
			}
		})
	}
}

func TestTriggersDailyDisabled(t *testing.T) {
	ctx := context.Background()
	s := entity.NewMemStore()
	require.NoError(t, s.SetState(ctx, entity.EvSmartCharging, "off"))
	locks := entity.NewKeyedMutex()
	trig := NewTriggers(discardLogger(), s, locks, NewScheduler(discardLogger(), s, locks, DefaultParams()),
		newTestControl(s, &MockCharger{}), func() time.Time { return at(15, 0) })

	require.NoError(t, trig.Daily(ctx))
	code, msg := statusOf(t, s)
	assert.Equal(t, "0", code)
	assert.Equal(t, "Smart charging disabled", msg)
}
