package hotwater

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/icodeforyou/spotpilot-go/entity"
	"github.com/icodeforyou/spotpilot-go/price"
)

// Engine reads the sensors, evaluates and writes the heating status entity.
type Engine struct {
	logger *slog.Logger
	store  entity.Store
	locks  *entity.KeyedMutex
	params Params
	mu     sync.Mutex
}

func NewEngine(logger *slog.Logger, store entity.Store, locks *entity.KeyedMutex, params Params) *Engine {
	return &Engine{
		logger: logger,
		store:  store,
		locks:  locks,
		params: params,
	}
}

func (e *Engine) Run(ctx context.Context, now time.Time) (Decision, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	unlock := e.locks.Lock(entity.HotWaterStatus)
	defer unlock()

	prev, err := e.store.Attributes(ctx, entity.HotWaterStatus)
	if err != nil {
		return Decision{}, fmt.Errorf("reading previous heating status: %w", err)
	}
	in := e.inputs(ctx, now)

	dec := Evaluate(e.params, in)
	dec = Stabilize(dec, in.CurrentStatus,
		Reason(entity.AttrString(prev, "reason").ValueOrDefault("")),
		entity.AttrString(prev, "schedule_slots").ValueOrDefault("[]"),
		now)

	changed := int(math.Round(in.CurrentStatus)) != dec.Status
	lastChange := entity.FormatTime(now)
	if !changed {
		lastChange = entity.AttrString(prev, "last_decision_change").ValueOrDefault(lastChange)
	}

	attrs := entity.Attributes{
		"reason":               string(dec.Reason),
		"last_calculated":      entity.FormatTime(now),
		"last_decision_change": lastChange,
		"decision_changed":     changed,
	}
	for k, v := range dec.Debug {
		attrs[k] = v
	}
	if err := entity.SetAttributes(ctx, e.store, entity.HotWaterStatus, attrs); err != nil {
		return dec, fmt.Errorf("writing heating status attributes: %w", err)
	}
	if err := e.store.SetState(ctx, entity.HotWaterStatus, strconv.Itoa(dec.Status)); err != nil {
		return dec, fmt.Errorf("writing heating status: %w", err)
	}

	if changed {
		e.logger.Info("hot water decision changed", slog.Int("status", dec.Status), slog.String("reason", string(dec.Reason)))
	} else {
		e.logger.Debug("hot water decision", slog.Int("status", dec.Status), slog.String("reason", string(dec.Reason)))
	}
	return dec, nil
}

func (e *Engine) inputs(ctx context.Context, now time.Time) Inputs {
	in := Inputs{
		Now:            now,
		BT7:            entity.Float(ctx, e.store, entity.HotWaterTop),
		BT6:            entity.Float(ctx, e.store, entity.HotWaterCharge),
		CostZone:       entity.Float(ctx, e.store, entity.CostZoneHotWater),
		CurrentStatus:  entity.Float(ctx, e.store, entity.HotWaterStatus).ValueOrDefault(0),
		ManualOverride: entity.Bool(ctx, e.store, entity.ManualOverride),
		InverterPower:  entity.Float(ctx, e.store, entity.InverterPower),
		CompetingLoad:  entity.Bool(ctx, e.store, entity.WallConnectorOn),
	}
	feed, err := price.ReadFeed(ctx, e.store, entity.SpotPrice)
	if err != nil {
		in.PoolErr = err
		return in
	}
	in.Pool = price.HourPool(feed, now)
	return in
}
