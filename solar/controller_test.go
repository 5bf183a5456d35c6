package solar

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/icodeforyou/spotpilot-go/entity"
	"github.com/icodeforyou/spotpilot-go/evcharge"
	"github.com/icodeforyou/spotpilot-go/hours"
	"github.com/icodeforyou/spotpilot-go/price"
	"github.com/icodeforyou/spotpilot-go/types/maybe"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCharger struct {
	mock.Mock
}

func (m *mockCharger) SetAmps(ctx context.Context, amps int) error {
	return m.Called(ctx, amps).Error(0)
}

func (m *mockCharger) SwitchOn(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockCharger) SwitchOff(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

var noon = time.Date(2025, 6, 10, 12, 0, 0, 0, hours.Location())

func newTestController(s entity.Store, c evcharge.Charger) *Controller {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := evcharge.DefaultParams()
	p.StartDelay = 0
	locks := entity.NewKeyedMutex()
	return NewController(logger, s, locks, evcharge.NewControl(logger, s, c, p), DefaultParams())
}

type carState struct {
	grid      float64
	charging  bool
	startedBy evcharge.StartedBy
	amps      int
	soc       string
}

func seedCar(t *testing.T, s entity.Store, car carState) {
	ctx := context.Background()
	charging := "Stopped"
	if car.charging {
		charging = "Charging"
	}
	soc := car.soc
	if soc == "" {
		soc = "60"
	}
	for id, state := range map[string]string{
		entity.EvSmartCharging: "on",
		entity.EvLocation:      entity.HomeLocation,
		entity.EvChargeCable:   "on",
		entity.EvCharging:      charging,
		entity.EvBatteryLevel:  soc,
		entity.EvChargeLimit:   "80",
		entity.EvChargeCurrent: strconv.Itoa(car.amps),
		entity.GridPower:       strconv.FormatFloat(car.grid, 'f', -1, 64),
	} {
		require.NoError(t, s.SetState(ctx, id, state))
	}
	if car.startedBy != "" {
		require.NoError(t, s.SetAttribute(ctx, entity.EvChargingStatus, evcharge.AttrStartedBy, string(car.startedBy)))
	}
}

// seedPrices writes hourly buy prices for the day of noon, 1.0 except the
// noon hour.
func seedPrices(t *testing.T, s entity.Store, noonPrice float64) {
	day := hours.StartOfDay(noon)
	ticks := make([]price.RawTick, 24)
	for h := range ticks {
		v := 1.0
		if h == 12 {
			v = noonPrice
		}
		start := day.Add(time.Duration(h) * time.Hour)
		ticks[h] = price.NewRawTick(start, start.Add(time.Hour), decimal.NewFromFloat(v))
	}
	require.NoError(t, price.WriteFeed(context.Background(), s, entity.SpotPrice, price.Feed{Today: ticks}, maybe.None[decimal.Decimal]()))
}

func status(t *testing.T, s entity.Store) (string, string) {
	ctx := context.Background()
	attrs, err := s.Attributes(ctx, entity.EvChargingStatus)
	require.NoError(t, err)
	return entity.String(ctx, s, entity.EvChargingStatus).ValueOrDefault(""),
		entity.AttrString(attrs, evcharge.AttrMessage).ValueOrDefault("")
}

func TestPureSolarStartsAtComputedAmps(t *testing.T) {
	ctx := context.Background()
	s := entity.NewMemStore()
	seedCar(t, s, carState{grid: -5000})

	c := &mockCharger{}
	c.On("SetAmps", mock.Anything, 7).Return(nil).Once()
	c.On("SwitchOn", mock.Anything).Return(nil).Once()

	action, err := newTestController(s, c).Handle(ctx, noon)
	require.NoError(t, err)
	assert.Equal(t, ActionStart, action)
	c.AssertExpectations(t)

	code, msg := status(t, s)
	assert.Equal(t, "3", code)
	assert.Equal(t, "Solar charging: 5000W surplus", msg)
	assert.Equal(t, evcharge.StartedBySolar, evcharge.CurrentStartedBy(ctx, s))

	attrs, err := s.Attributes(ctx, entity.EvChargingStatus)
	require.NoError(t, err)
	assert.Equal(t, entity.FormatTime(noon), entity.AttrString(attrs, evcharge.AttrSolarLastChange).Value())
	assert.Equal(t, entity.FormatTime(noon), entity.AttrString(attrs, evcharge.AttrSolarLastCall).Value())
}

func TestInsufficientSurplusStopsOnlyOwnSession(t *testing.T) {
	tests := []struct {
		name      string
		startedBy evcharge.StartedBy
		wantStop  bool
	}{
		{"solar session", evcharge.StartedBySolar, true},
		{"scheduled session", evcharge.StartedBySmart, false},
		{"manual session", evcharge.StartedByNone, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := entity.NewMemStore()
			seedCar(t, s, carState{grid: -1000, charging: true, startedBy: tt.startedBy, amps: 7})

			c := &mockCharger{}
			if tt.wantStop {
				c.On("SwitchOff", mock.Anything).Return(nil).Once()
			}

			action, err := newTestController(s, c).Handle(ctx, noon)
			require.NoError(t, err)
			c.AssertExpectations(t)
			if !tt.wantStop {
				assert.Equal(t, ActionNone, action)
				c.AssertNotCalled(t, "SwitchOff", mock.Anything)
				return
			}
			assert.Equal(t, ActionStop, action)
			code, msg := status(t, s)
			assert.Equal(t, "0", code)
			assert.Equal(t, "Solar charging paused - insufficient surplus", msg)
		})
	}
}

func TestGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("debounce", func(t *testing.T) {
		s := entity.NewMemStore()
		seedCar(t, s, carState{grid: -1000})
		ctrl := newTestController(s, &mockCharger{})

		_, err := ctrl.Handle(ctx, noon)
		require.NoError(t, err)
		seedCar(t, s, carState{grid: -6000})

		action, err := ctrl.Handle(ctx, noon.Add(3*time.Second))
		require.NoError(t, err)
		assert.Equal(t, ActionNone, action)

		attrs, err := s.Attributes(ctx, entity.EvChargingStatus)
		require.NoError(t, err)
		assert.Equal(t, entity.FormatTime(noon), entity.AttrString(attrs, evcharge.AttrSolarLastCall).Value())
	})

	t.Run("scheduled slot defers", func(t *testing.T) {
		s := entity.NewMemStore()
		seedCar(t, s, carState{grid: -6000})
		slot := evcharge.Slot{Start: noon, End: noon.Add(15 * time.Minute), Energy: 2.25}
		require.NoError(t, evcharge.StoreSchedule(ctx, s, evcharge.NewSchedule(evcharge.DefaultParams(), []evcharge.Slot{slot}, evcharge.ModeOptional, noon)))

		c := &mockCharger{}
		action, err := newTestController(s, c).Handle(ctx, noon.Add(5*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, ActionNone, action)
		c.AssertNotCalled(t, "SetAmps", mock.Anything, mock.Anything)
	})

	t.Run("night", func(t *testing.T) {
		s := entity.NewMemStore()
		seedCar(t, s, carState{grid: -6000})
		action, err := newTestController(s, &mockCharger{}).Handle(ctx, noon.Add(11*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, ActionNone, action)
	})

	t.Run("cable disconnected", func(t *testing.T) {
		s := entity.NewMemStore()
		seedCar(t, s, carState{grid: -6000})
		require.NoError(t, s.SetState(ctx, entity.EvChargeCable, "off"))
		action, err := newTestController(s, &mockCharger{}).Handle(ctx, noon)
		require.NoError(t, err)
		assert.Equal(t, ActionNone, action)
	})
}

func TestMinChangeIntervalThrottlesAdjustments(t *testing.T) {
	ctx := context.Background()
	s := entity.NewMemStore()
	seedCar(t, s, carState{grid: -5000})

	c := &mockCharger{}
	c.On("SetAmps", mock.Anything, 7).Return(nil).Once()
	c.On("SwitchOn", mock.Anything).Return(nil).Once()
	ctrl := newTestController(s, c)

	action, err := ctrl.Handle(ctx, noon)
	require.NoError(t, err)
	require.Equal(t, ActionStart, action)

	seedCar(t, s, carState{grid: -8000, charging: true, amps: 7})
	action, err = ctrl.Handle(ctx, noon.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, ActionNone, action)

	c.On("SetAmps", mock.Anything, 11).Return(nil).Once()
	action, err = ctrl.Handle(ctx, noon.Add(6*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, ActionAdjust, action)
	c.AssertExpectations(t)
}

func TestBlendedTier(t *testing.T) {
	ctx := context.Background()

	t.Run("cheap slot starts at minimum current", func(t *testing.T) {
		s := entity.NewMemStore()
		seedCar(t, s, carState{grid: -3000})
		seedPrices(t, s, 0.2)

		c := &mockCharger{}
		c.On("SetAmps", mock.Anything, 6).Return(nil).Once()
		c.On("SwitchOn", mock.Anything).Return(nil).Once()

		action, err := newTestController(s, c).Handle(ctx, noon)
		require.NoError(t, err)
		assert.Equal(t, ActionStart, action)
		c.AssertExpectations(t)
		_, msg := status(t, s)
		assert.Equal(t, "Blended charging: 3000W + grid", msg)
	})

	t.Run("expensive slot stops own session", func(t *testing.T) {
		s := entity.NewMemStore()
		seedCar(t, s, carState{grid: -1600, charging: true, startedBy: evcharge.StartedBySolar, amps: 6})
		seedPrices(t, s, 1.0)

		c := &mockCharger{}
		c.On("SwitchOff", mock.Anything).Return(nil).Once()

		action, err := newTestController(s, c).Handle(ctx, noon)
		require.NoError(t, err)
		assert.Equal(t, ActionStop, action)
		_, msg := status(t, s)
		assert.Equal(t, "Solar paused - blended price too high", msg)
	})

	t.Run("no price data stops own session", func(t *testing.T) {
		s := entity.NewMemStore()
		seedCar(t, s, carState{grid: -2000, charging: true, startedBy: evcharge.StartedBySolar, amps: 6})

		c := &mockCharger{}
		c.On("SwitchOff", mock.Anything).Return(nil).Once()

		action, err := newTestController(s, c).Handle(ctx, noon)
		require.NoError(t, err)
		assert.Equal(t, ActionStop, action)
		_, msg := status(t, s)
		assert.Equal(t, "Solar paused - no price data", msg)
	})

	t.Run("cheap reduces pure solar current", func(t *testing.T) {
		s := entity.NewMemStore()
		seedCar(t, s, carState{grid: -3000, charging: true, startedBy: evcharge.StartedBySolar, amps: 10})
		seedPrices(t, s, 0.2)

		c := &mockCharger{}
		c.On("SetAmps", mock.Anything, 6).Return(nil).Once()

		action, err := newTestController(s, c).Handle(ctx, noon)
		require.NoError(t, err)
		assert.Equal(t, ActionAdjust, action)
		c.AssertExpectations(t)
	})
}

func TestTargetReachedStopsSolarSession(t *testing.T) {
	ctx := context.Background()
	s := entity.NewMemStore()
	seedCar(t, s, carState{grid: -6000, charging: true, startedBy: evcharge.StartedBySolar, amps: 8, soc: "80"})

	c := &mockCharger{}
	c.On("SwitchOff", mock.Anything).Return(nil).Once()

	action, err := newTestController(s, c).Handle(ctx, noon)
	require.NoError(t, err)
	assert.Equal(t, ActionStop, action)
	code, msg := status(t, s)
	assert.Equal(t, "5", code)
	assert.Equal(t, "Target SOC reached", msg)
}
