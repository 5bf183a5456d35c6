package evcharge

import (
	"context"
	"log/slog"
	"time"

	"github.com/icodeforyou/spotpilot-go/entity"
)

// Settle delays before the car sensors are trusted after a state change.
const (
	EnabledSettle   = 2 * time.Second
	ArrivalSettle   = 60 * time.Second
	CableSettle     = 5 * time.Second
	AutoStartSettle = 10 * time.Second
)

// Triggers reacts to car state changes by recalculating the schedule.
type Triggers struct {
	logger    *slog.Logger
	store     entity.Store
	locks     *entity.KeyedMutex
	scheduler *Scheduler
	control   *Control
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewTriggers(logger *slog.Logger, store entity.Store, locks *entity.KeyedMutex, scheduler *Scheduler, control *Control, now func() time.Time) *Triggers {
	return &Triggers{
		logger:    logger,
		store:     store,
		locks:     locks,
		scheduler: scheduler,
		control:   control,
		now:       now,
		sleep:     sleepCtx,
	}
}

// Daily is the afternoon recalculation, run once the next day's prices are known.
func (t *Triggers) Daily(ctx context.Context) error {
	now := t.now()
	if !entity.Bool(ctx, t.store, entity.EvSmartCharging) {
		t.logger.Info("smart charging disabled, skipping schedule calculation")
		unlock := t.locks.Lock(entity.EvChargingStatus)
		defer unlock()
		return SetStatus(ctx, t.store, StatusIdle, "Smart charging disabled", now)
	}
	return t.calculate(ctx, "daily")
}

func (t *Triggers) OnEnabled(ctx context.Context) error {
	if err := t.sleep(ctx, EnabledSettle); err != nil {
		return err
	}
	return t.calculate(ctx, "enabled")
}

func (t *Triggers) OnArrival(ctx context.Context) error {
	if err := t.sleep(ctx, ArrivalSettle); err != nil {
		return err
	}
	v := ReadVehicle(ctx, t.store)
	if !v.Enabled {
		t.logger.Debug("smart charging disabled, skipping schedule on arrival")
		return nil
	}
	if !v.Cable {
		t.logger.Info("cable not connected after arrival, skipping schedule")
		return nil
	}
	return t.calculate(ctx, "arrival")
}

// OnCableConnected recalculates and then handles a session the car started
// on its own when the cable went in.
func (t *Triggers) OnCableConnected(ctx context.Context) error {
	if err := t.sleep(ctx, CableSettle); err != nil {
		return err
	}
	v := ReadVehicle(ctx, t.store)
	if !v.Enabled {
		t.logger.Debug("smart charging disabled, skipping schedule on cable connect")
		return nil
	}
	if !v.Home {
		t.logger.Info("car not at home when cable connected, skipping schedule")
		return nil
	}
	if err := t.calculate(ctx, "cable"); err != nil {
		// the stored schedule stays in force, an auto started session is still handled
		t.logger.Info("handling cable connect with the previous schedule")
	}

	if err := t.sleep(ctx, AutoStartSettle); err != nil {
		return err
	}
	if !ReadVehicle(ctx, t.store).Charging {
		return nil
	}

	now := t.now()
	unlock := t.locks.Lock(entity.EvChargingStatus)
	defer unlock()

	if InScheduledSlot(ctx, t.store, now) {
		t.logger.Info("car started charging inside a scheduled slot, adopting session")
		return t.store.SetAttribute(ctx, entity.EvChargingStatus, AttrStartedBy, string(StartedBySmart))
	}
	if CurrentStartedBy(ctx, t.store) != StartedBySmart {
		t.logger.Info("charging started outside smart charging, not interfering")
		return nil
	}
	t.logger.Info("stopping auto started charging outside scheduled slot")
	if err := t.control.Stop(ctx, now); err != nil {
		return err
	}
	return SetStatus(ctx, t.store, StatusPaused, "Auto-charge stopped - waiting for slot", now)
}

func (t *Triggers) calculate(ctx context.Context, trigger string) error {
	plan, err := t.scheduler.Calculate(ctx, t.now())
	if err != nil {
		t.logger.Warn("schedule calculation failed", slog.String("trigger", trigger), slog.Any("error", err))
		return err
	}
	t.logger.Info("schedule calculated", slog.String("trigger", trigger), slog.String("mode", string(plan.Mode)))
	return nil
}
