package evcharge

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/icodeforyou/spotpilot-go/entity"
	"github.com/icodeforyou/spotpilot-go/hours"
	"github.com/icodeforyou/spotpilot-go/price"
	"github.com/icodeforyou/spotpilot-go/types/maybe"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCharger struct {
	mock.Mock
}

func (m *MockCharger) SetAmps(ctx context.Context, amps int) error {
	args := m.Called(ctx, amps)
	return args.Error(0)
}

func (m *MockCharger) SwitchOn(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCharger) SwitchOff(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

var day = time.Date(2025, 3, 10, 0, 0, 0, 0, hours.Location())

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noSleep(context.Context, time.Duration) error { return nil }

func newTestControl(s entity.Store, c Charger) *Control {
	control := NewControl(discardLogger(), s, c, DefaultParams())
	control.sleep = noSleep
	return control
}

// hourlyTicks builds 24 hourly ticks starting at start, hour h priced at values[h].
func hourlyTicks(start time.Time, values []float64) []price.RawTick {
	ticks := make([]price.RawTick, len(values))
	for i, v := range values {
		s := start.Add(time.Duration(i) * time.Hour)
		ticks[i] = price.NewRawTick(s, s.Add(time.Hour), decimal.NewFromFloat(v))
	}
	return ticks
}

// cheapThenExpensive is 18 hours at 0.10 followed by 6 hours at 0.50.
func cheapThenExpensive() []float64 {
	values := make([]float64, 24)
	for h := range values {
		values[h] = 0.10
		if h >= 18 {
			values[h] = 0.50
		}
	}
	return values
}

func seedBuyFeed(t *testing.T, s entity.Store, today, tomorrow []float64) {
	f := price.Feed{Today: hourlyTicks(day, today)}
	if tomorrow != nil {
		f.Tomorrow = hourlyTicks(day.AddDate(0, 0, 1), tomorrow)
		f.TomorrowValid = true
	}
	require.NoError(t, price.WriteFeed(context.Background(), s, entity.SpotPrice, f, maybe.None[decimal.Decimal]()))
}

type vehicleState struct {
	soc, limit string
	charging   bool
}

func seedVehicle(t *testing.T, s entity.Store, v vehicleState) {
	ctx := context.Background()
	charging := "Stopped"
	if v.charging {
		charging = chargingState
	}
	for id, state := range map[string]string{
		entity.EvSmartCharging: "on",
		entity.EvLocation:      entity.HomeLocation,
		entity.EvChargeCable:   "on",
		entity.EvCharging:      charging,
		entity.EvBatteryLevel:  v.soc,
		entity.EvChargeLimit:   v.limit,
	} {
		require.NoError(t, s.SetState(ctx, id, state))
	}
}

func statusOf(t *testing.T, s entity.Store) (string, string) {
	ctx := context.Background()
	attrs, err := s.Attributes(ctx, entity.EvChargingStatus)
	require.NoError(t, err)
	return entity.String(ctx, s, entity.EvChargingStatus).ValueOrDefault(""),
		entity.AttrString(attrs, AttrMessage).ValueOrDefault("")
}
