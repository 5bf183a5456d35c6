package hotwater

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/icodeforyou/spotpilot-go/entity"
	"github.com/icodeforyou/spotpilot-go/price"
	"github.com/icodeforyou/spotpilot-go/types/maybe"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(s entity.Store) *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(logger, s, entity.NewKeyedMutex(), DefaultParams())
}

func writeToday(t *testing.T, s entity.Store, prices map[int]float64) {
	ticks := make([]price.RawTick, 24)
	for h := range 24 {
		v, ok := prices[h]
		if !ok {
			v = 1
		}
		ticks[h] = price.NewRawTick(at(h, 0), at(h+1, 0), decimal.NewFromFloat(v))
	}
	require.NoError(t, price.WriteFeed(context.Background(), s, entity.SpotPrice, price.Feed{Today: ticks}, maybe.None[decimal.Decimal]()))
}

func TestEngineStabilityKeepsCommittedHour(t *testing.T) {
	ctx := context.Background()
	s := entity.NewMemStore()
	require.NoError(t, s.SetState(ctx, entity.HotWaterTop, "55"))
	require.NoError(t, s.SetState(ctx, entity.CostZoneHotWater, "3"))
	e := newTestEngine(s)

	writeToday(t, s, map[int]float64{10: 0.1, 11: 0.1, 12: 0.1})
	dec, err := e.Run(ctx, at(10, 3))
	require.NoError(t, err)
	assert.Equal(t, ReasonCheapest3h, dec.Reason)
	assert.Equal(t, "1", entity.String(ctx, s, entity.HotWaterStatus).Value())

	attrs, err := s.Attributes(ctx, entity.HotWaterStatus)
	require.NoError(t, err)
	committed := entity.AttrString(attrs, "schedule_slots").Value()
	changedAt := entity.AttrString(attrs, "last_decision_change").Value()
	assert.Equal(t, entity.FormatTime(at(10, 3)), changedAt)
	assert.True(t, entity.AttrBool(attrs, "decision_changed"))

	// new prices move the cheapest hours to the evening
	writeToday(t, s, map[int]float64{10: 5, 20: 0.1, 21: 0.1, 22: 0.1})
	dec, err = e.Run(ctx, at(10, 18))
	require.NoError(t, err)
	assert.Equal(t, Allow, dec.Status)
	assert.Equal(t, ReasonCheapest3hStability, dec.Reason)

	attrs, err = s.Attributes(ctx, entity.HotWaterStatus)
	require.NoError(t, err)
	assert.Equal(t, committed, entity.AttrString(attrs, "schedule_slots").Value())
	assert.Equal(t, changedAt, entity.AttrString(attrs, "last_decision_change").Value())
	assert.False(t, entity.AttrBool(attrs, "decision_changed"))

	dec, err = e.Run(ctx, at(11, 3))
	require.NoError(t, err)
	assert.Equal(t, ReasonCheapest3hStability, dec.Reason)

	dec, err = e.Run(ctx, at(13, 3))
	require.NoError(t, err)
	assert.Equal(t, Block, dec.Status)
	assert.Equal(t, ReasonDefaultBlock, dec.Reason)

	attrs, err = s.Attributes(ctx, entity.HotWaterStatus)
	require.NoError(t, err)
	assert.Equal(t, entity.FormatTime(at(13, 3)), entity.AttrString(attrs, "last_decision_change").Value())
	assert.Equal(t, "0", entity.String(ctx, s, entity.HotWaterStatus).Value())
}

func TestEngineWithoutBT7(t *testing.T) {
	ctx := context.Background()
	s := entity.NewMemStore()
	require.NoError(t, s.SetState(ctx, entity.ManualOverride, "on"))
	require.NoError(t, s.SetState(ctx, entity.HotWaterTop, "unavailable"))

	dec, err := newTestEngine(s).Run(ctx, at(10, 3))
	require.NoError(t, err)
	assert.Equal(t, ReasonBT7Unavailable, dec.Reason)

	attrs, err := s.Attributes(ctx, entity.HotWaterStatus)
	require.NoError(t, err)
	assert.Equal(t, "bt7_unavailable", entity.AttrString(attrs, "reason").Value())
	assert.Equal(t, "BT7 sensor unavailable", entity.AttrString(attrs, "error").Value())
	assert.Equal(t, entity.FormatTime(at(10, 3)), entity.AttrString(attrs, "last_calculated").Value())
}

func TestEngineBT7LossOverridesStability(t *testing.T) {
	ctx := context.Background()
	s := entity.NewMemStore()
	require.NoError(t, s.SetState(ctx, entity.HotWaterTop, "55"))
	require.NoError(t, s.SetState(ctx, entity.CostZoneHotWater, "3"))
	e := newTestEngine(s)

	writeToday(t, s, map[int]float64{10: 0.1, 11: 0.1, 12: 0.1})
	dec, err := e.Run(ctx, at(10, 3))
	require.NoError(t, err)
	require.Equal(t, ReasonCheapest3h, dec.Reason)

	require.NoError(t, s.SetState(ctx, entity.HotWaterTop, "unavailable"))
	dec, err = e.Run(ctx, at(10, 18))
	require.NoError(t, err)
	assert.Equal(t, Block, dec.Status)
	assert.Equal(t, ReasonBT7Unavailable, dec.Reason)
	assert.Equal(t, "0", entity.String(ctx, s, entity.HotWaterStatus).Value())
}

func TestEngineSolarOverrideFromSensors(t *testing.T) {
	ctx := context.Background()
	s := entity.NewMemStore()
	require.NoError(t, s.SetState(ctx, entity.HotWaterTop, "55"))
	require.NoError(t, s.SetState(ctx, entity.InverterPower, "4200"))
	require.NoError(t, s.SetState(ctx, entity.WallConnectorOn, "off"))
	e := newTestEngine(s)

	dec, err := e.Run(ctx, at(12, 3))
	require.NoError(t, err)
	assert.Equal(t, ReasonSolarOverride, dec.Reason)

	require.NoError(t, s.SetState(ctx, entity.WallConnectorOn, "on"))
	dec, err = e.Run(ctx, at(12, 18))
	require.NoError(t, err)
	assert.Equal(t, ReasonDefaultBlock, dec.Reason)
}
