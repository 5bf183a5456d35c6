// Package solar starts, adjusts and stops EV charging on live solar export,
// in between the sessions planned by the charge scheduler.
package solar

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/icodeforyou/spotpilot-go/entity"
	"github.com/icodeforyou/spotpilot-go/evcharge"
	"github.com/icodeforyou/spotpilot-go/hours"
	"github.com/icodeforyou/spotpilot-go/price"
	"github.com/shopspring/decimal"
)

type Params struct {
	PureThresholdW float64 // surplus covering the minimum charge power with margin
	BlendedMinW    float64
	CheapFactor    float64 // share of today's average buy price that counts as cheap
	Debounce       time.Duration
	MinChange      time.Duration // between start, stop and current changes
}

func DefaultParams() Params {
	return Params{
		PureThresholdW: 4500,
		BlendedMinW:    1500,
		CheapFactor:    0.75,
		Debounce:       5 * time.Second,
		MinChange:      300 * time.Second,
	}
}

// Action is what a Handle call did to the charger.
type Action string

const (
	ActionNone   Action = "none"
	ActionStart  Action = "start"
	ActionAdjust Action = "adjust"
	ActionStop   Action = "stop"
)

type Controller struct {
	logger  *slog.Logger
	store   entity.Store
	locks   *entity.KeyedMutex
	control *evcharge.Control
	params  Params
	mu      sync.Mutex
}

func NewController(logger *slog.Logger, store entity.Store, locks *entity.KeyedMutex, control *evcharge.Control, params Params) *Controller {
	return &Controller{
		logger:  logger,
		store:   store,
		locks:   locks,
		control: control,
		params:  params,
	}
}

// Handle runs on every grid power update. The cheap guards come first since
// updates arrive every few seconds.
func (c *Controller) Handle(ctx context.Context, now time.Time) (Action, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := evcharge.ReadVehicle(ctx, c.store)
	if !v.Enabled {
		return ActionNone, nil
	}
	if !evcharge.ReadSolarForecast(ctx, c.store).Daylight(now) {
		return ActionNone, nil
	}
	if !v.Home || !v.Cable {
		return ActionNone, nil
	}

	unlock := c.locks.Lock(entity.EvChargingStatus)
	defer unlock()

	attrs, err := c.store.Attributes(ctx, entity.EvChargingStatus)
	if err != nil {
		return ActionNone, fmt.Errorf("reading charging status: %w", err)
	}
	if last, ok := entity.AttrTime(attrs, evcharge.AttrSolarLastCall).Get(); ok && now.Sub(last) < c.params.Debounce {
		return ActionNone, nil
	}
	if err := c.store.SetAttribute(ctx, entity.EvChargingStatus, evcharge.AttrSolarLastCall, entity.FormatTime(now)); err != nil {
		return ActionNone, err
	}

	if evcharge.InScheduledSlot(ctx, c.store, now) {
		return ActionNone, nil
	}
	if last, ok := entity.AttrTime(attrs, evcharge.AttrSolarLastChange).Get(); ok && now.Sub(last) < c.params.MinChange {
		return ActionNone, nil
	}

	grid, ok := entity.Float(ctx, c.store, entity.GridPower).Get()
	if !ok {
		return ActionNone, nil
	}
	surplus := -grid
	own := v.Charging && evcharge.CurrentStartedBy(ctx, c.store) == evcharge.StartedBySolar

	soc, okSOC := v.SOC.Get()
	limit, okLimit := v.Limit.Get()
	if okSOC && okLimit && soc >= limit {
		if own {
			c.logger.Info("SOC at limit, stopping solar charging")
			return c.stop(ctx, now, evcharge.StatusComplete, "Target SOC reached")
		}
		return ActionNone, nil
	}

	p := c.control.Params()
	switch {
	case surplus >= c.params.PureThresholdW:
		amps := p.AmpsFor(surplus)
		if !v.Charging {
			c.logger.Info("pure solar, starting charging", slog.Int("amps", amps), slog.Float64("surplus", surplus))
			return c.start(ctx, now, amps, fmt.Sprintf("Solar charging: %.0fW surplus", surplus))
		}
		if !own {
			return ActionNone, nil
		}
		sent, err := c.control.Adjust(ctx, amps)
		if err != nil || !sent {
			return ActionNone, err
		}
		return ActionAdjust, c.changed(ctx, now)

	case surplus >= c.params.BlendedMinW:
		eff, cheap, ok := c.blended(ctx, now, surplus)
		if !ok {
			if own {
				c.logger.Info("blended solar, no price data, stopping")
				return c.stop(ctx, now, evcharge.StatusIdle, "Solar paused - no price data")
			}
			return ActionNone, nil
		}
		c.logger.Debug("blended solar", slog.Float64("surplus", surplus), slog.Float64("effective_price", eff), slog.Bool("cheap", cheap))

		if !cheap {
			if own {
				c.logger.Info("blended price too high, stopping", slog.Float64("effective_price", eff))
				return c.stop(ctx, now, evcharge.StatusIdle, "Solar paused - blended price too high")
			}
			return ActionNone, nil
		}
		if !v.Charging {
			c.logger.Info("blended solar, starting charging", slog.Int("amps", p.MinAmps), slog.Float64("effective_price", eff))
			return c.start(ctx, now, p.MinAmps, fmt.Sprintf("Blended charging: %.0fW + grid", surplus))
		}
		if own && int(v.Amps.ValueOrDefault(0)) > p.MinAmps {
			if _, err := c.control.Adjust(ctx, p.MinAmps); err != nil {
				return ActionNone, err
			}
			return ActionAdjust, c.changed(ctx, now)
		}
		return ActionNone, nil

	case own:
		c.logger.Info("insufficient solar surplus, stopping", slog.Float64("surplus", surplus))
		return c.stop(ctx, now, evcharge.StatusIdle, "Solar charging paused - insufficient surplus")
	}
	return ActionNone, nil
}

func (c *Controller) start(ctx context.Context, now time.Time, amps int, message string) (Action, error) {
	if _, err := c.control.Start(ctx, now, amps, evcharge.StartedBySolar); err != nil {
		return ActionNone, err
	}
	if err := c.changed(ctx, now); err != nil {
		return ActionStart, err
	}
	return ActionStart, evcharge.SetStatus(ctx, c.store, evcharge.StatusChargingSolar, message, now)
}

func (c *Controller) stop(ctx context.Context, now time.Time, code evcharge.StatusCode, message string) (Action, error) {
	if err := c.control.Stop(ctx, now); err != nil {
		return ActionNone, err
	}
	if err := c.changed(ctx, now); err != nil {
		return ActionStop, err
	}
	return ActionStop, evcharge.SetStatus(ctx, c.store, code, message, now)
}

func (c *Controller) changed(ctx context.Context, now time.Time) error {
	return c.store.SetAttribute(ctx, entity.EvChargingStatus, evcharge.AttrSolarLastChange, entity.FormatTime(now))
}

// blended prices the current slot with the surplus share at the sell price
// and compares it against today's average buy price.
func (c *Controller) blended(ctx context.Context, now time.Time, surplus float64) (eff float64, cheap bool, ok bool) {
	buyFeed, err := price.ReadFeed(ctx, c.store, entity.SpotPrice)
	if err != nil || len(buyFeed.Today) == 0 {
		return 0, false, false
	}
	current, found := price.At(price.Normalize(buyFeed.Today), now)
	if !found {
		return 0, false, false
	}
	buy := current.Value.InexactFloat64()

	p := c.control.Params()
	sell := buy * p.SellFallback
	if sellFeed, err := price.ReadFeed(ctx, c.store, entity.SellPrice); err == nil {
		if v, found := price.NewLookup(price.Normalize(sellFeed.Today)).At(hours.TruncateQuarter(now)); found {
			sell = v.InexactFloat64()
		} else if flat := sellFeed.Flat.ValueOrDefault(decimal.Zero); flat.IsPositive() {
			sell = flat.InexactFloat64()
		}
	}
	sell = max(sell, 0)

	minPower := p.MinChargePower()
	if surplus >= minPower {
		eff = sell
	} else {
		fraction := max(surplus, 0) / minPower
		eff = fraction*sell + (1-fraction)*buy
	}

	avg, found := todayAverage(buyFeed.Today)
	if !found {
		return eff, false, true
	}
	return eff, eff < c.params.CheapFactor*avg, true
}

// todayAverage is the plain mean of the raw tick values.
func todayAverage(ticks []price.RawTick) (float64, bool) {
	var values []decimal.Decimal
	for _, t := range ticks {
		if t.Value != nil {
			values = append(values, *t.Value)
		}
	}
	if len(values) == 0 {
		return 0, false
	}
	return decimal.Avg(values[0], values[1:]...).InexactFloat64(), true
}
