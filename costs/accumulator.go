package costs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/icodeforyou/spotpilot-go/convert"
	"github.com/icodeforyou/spotpilot-go/entity"
	"github.com/icodeforyou/spotpilot-go/hours"
	"github.com/shopspring/decimal"
)

var ErrNoPrice = errors.New("no buy price for hour")

type Params struct {
	Currency     string
	PriceScale   float64 // price units per currency unit
	SpotScale    float64 // spot tick units to price units
	SellFallback float64 // sell price as share of buy when unknown
}

func DefaultParams() Params {
	return Params{
		Currency:     "SEK",
		PriceScale:   100,
		SpotScale:    100,
		SellFallback: 0.5,
	}
}

// Ledger remembers which hours have been added to the counters.
type Ledger interface {
	// RecordHour stores the hour and reports false if it was already stored.
	RecordHour(ctx context.Context, hour time.Time, c HourCosts) (bool, error)
}

type Accumulator struct {
	logger  *slog.Logger
	store   entity.Store
	locks   *entity.KeyedMutex
	history History
	ledger  Ledger
	params  Params
	mu      sync.Mutex
}

func NewAccumulator(logger *slog.Logger, store entity.Store, locks *entity.KeyedMutex, history History, ledger Ledger, params Params) *Accumulator {
	return &Accumulator{
		logger:  logger,
		store:   store,
		locks:   locks,
		history: history,
		ledger:  ledger,
		params:  params,
	}
}

// Run accounts the last completed hour before now.
func (a *Accumulator) Run(ctx context.Context, now time.Time) (HourCosts, error) {
	return a.RunHour(ctx, hours.TruncateHour(now).Add(-time.Hour))
}

// RunHour accounts the hour starting at hour. An hour already in the ledger
// is skipped so reruns never double count.
func (a *Accumulator) RunHour(ctx context.Context, hour time.Time) (HourCosts, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	in, err := a.inputs(ctx, hour)
	if err != nil {
		a.logger.Warn("skipping cost hour", slog.Time("hour", hour), slog.Any("error", err))
		a.diagnose(ctx, hour, err)
		return HourCosts{}, err
	}
	c := Compute(in, a.params.PriceScale)

	if a.ledger != nil {
		fresh, err := a.ledger.RecordHour(ctx, hour, c)
		if err != nil {
			return c, fmt.Errorf("recording cost hour: %w", err)
		}
		if !fresh {
			a.logger.Info("cost hour already accounted", slog.Time("hour", hour))
			return c, nil
		}
	}

	for id, v := range map[string]float64{
		entity.SolarSavings:          c.SolarSavings,
		entity.EvCostWithoutSolar:    c.EVWithoutSolar,
		entity.EvCostWithSolar:       c.EVWithSolar,
		entity.HeatPumpCostNoSolar:   c.HeatPumpWithoutSolar,
		entity.HeatPumpCostWithSolar: c.HeatPumpWithSolar,
	} {
		if err := a.add(ctx, id, v, hour); err != nil {
			return c, err
		}
	}

	a.logger.Info("cost hour accounted",
		slog.Time("hour", hour),
		slog.Float64("buy", in.Buy),
		slog.Float64("sell", in.Sell),
		slog.Float64("solar_savings", c.SolarSavings),
		slog.Float64("ev_with_solar", c.EVWithSolar),
		slog.Float64("heat_pump_with_solar", c.HeatPumpWithSolar))
	return c, nil
}

func (a *Accumulator) inputs(ctx context.Context, hour time.Time) (HourInputs, error) {
	from, to := hour, hour.Add(time.Hour)
	samples, err := a.history.Samples(ctx, from, to,
		entity.BuyPrice, entity.SellPrice,
		entity.GridPurchasedEnergy, entity.GridExportedEnergy, entity.SolarProducedEnergy,
		entity.WallConnectorEnergy, entity.HeatPumpEnergy)
	if err != nil {
		return HourInputs{}, err
	}

	in := HourInputs{
		Exported:  delta(samples[entity.GridExportedEnergy], from, to),
		Produced:  delta(samples[entity.SolarProducedEnergy], from, to),
		Purchased: delta(samples[entity.GridPurchasedEnergy], from, to),
		EV:        convert.WhToKWh(delta(samples[entity.WallConnectorEnergy], from, to)),
		HeatPump:  delta(samples[entity.HeatPumpEnergy], from, to),
	}

	buy, ok := weightedPrice(samples[entity.BuyPrice], samples[entity.GridPurchasedEnergy], from)
	if !ok {
		buy, ok = meanPrice(samples[entity.BuyPrice], from, to)
	}
	if !ok {
		spot, err := a.history.SpotPrices(ctx, from, to)
		if err != nil {
			return HourInputs{}, err
		}
		if len(spot) == 0 {
			return HourInputs{}, ErrNoPrice
		}
		buy = decimal.Avg(spot[0], spot[1:]...).InexactFloat64() * a.params.SpotScale
		a.logger.Debug("buy price from spot ticks", slog.Time("hour", hour), slog.Float64("buy", buy))
	}
	in.Buy = buy

	sell, ok := weightedPrice(samples[entity.SellPrice], samples[entity.GridExportedEnergy], from)
	if !ok {
		sell, ok = meanPrice(samples[entity.SellPrice], from, to)
	}
	if !ok {
		sell = buy * a.params.SellFallback
	}
	in.Sell = sell
	return in, nil
}

// add increases a monetary counter, setting its display metadata the first
// time it is touched.
func (a *Accumulator) add(ctx context.Context, id string, v float64, hour time.Time) error {
	unlock := a.locks.Lock(id)
	defer unlock()

	attrs, err := a.store.Attributes(ctx, id)
	if err != nil {
		return fmt.Errorf("reading %s: %w", id, err)
	}
	update := entity.Attributes{
		"last_hour":  entity.FormatTime(hour),
		"last_delta": v,
	}
	if _, ok := attrs["device_class"]; !ok {
		update["state_class"] = "total"
		update["device_class"] = "monetary"
		update["unit_of_measurement"] = a.params.Currency
	}
	if err := entity.SetAttributes(ctx, a.store, id, update); err != nil {
		return fmt.Errorf("writing %s: %w", id, err)
	}

	current := entity.Float(ctx, a.store, id).ValueOrDefault(0)
	if err := a.store.SetState(ctx, id, entity.FormatFloat(current+v)); err != nil {
		return fmt.Errorf("writing %s: %w", id, err)
	}
	return nil
}

func (a *Accumulator) diagnose(ctx context.Context, hour time.Time, cause error) {
	unlock := a.locks.Lock(entity.SolarSavings)
	defer unlock()
	if err := entity.SetAttributes(ctx, a.store, entity.SolarSavings, entity.Attributes{
		"last_error":        cause.Error(),
		"last_skipped_hour": entity.FormatTime(hour),
	}); err != nil {
		a.logger.Error("failed to write cost diagnostics", slog.Any("error", err))
	}
}
