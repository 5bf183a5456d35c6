package evcharge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/icodeforyou/spotpilot-go/entity"
)

// Executor follows the stored schedule, starting and pausing sessions it owns.
type Executor struct {
	logger  *slog.Logger
	store   entity.Store
	locks   *entity.KeyedMutex
	control *Control
	mu      sync.Mutex
}

func NewExecutor(logger *slog.Logger, store entity.Store, locks *entity.KeyedMutex, control *Control) *Executor {
	return &Executor{
		logger:  logger,
		store:   store,
		locks:   locks,
		control: control,
	}
}

func (e *Executor) Run(ctx context.Context, now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := ReadVehicle(ctx, e.store)
	if !v.Ready() {
		e.logger.Debug("vehicle not ready for smart charging",
			slog.Bool("enabled", v.Enabled), slog.Bool("home", v.Home), slog.Bool("cable", v.Cable))
		return nil
	}

	unlock := e.locks.Lock(entity.EvChargingStatus)
	defer unlock()

	sched, err := LoadSchedule(ctx, e.store)
	if errors.Is(err, ErrNoSchedule) {
		return nil
	}
	if err != nil {
		return err
	}
	if !sched.Mode.Active() {
		return nil
	}

	slot, inSlot := sched.SlotAt(now)
	switch {
	case inSlot && !v.Charging:
		if _, err := e.control.Start(ctx, now, e.control.Params().MaxAmps, StartedBySmart); err != nil {
			e.logger.Error("failed to start charging", slog.Any("error", err))
			return errors.Join(err, SetStatus(ctx, e.store, StatusError, "Failed to start charging", now))
		}
		return e.chargingStatus(ctx, slot, now)

	case inSlot:
		return e.chargingStatus(ctx, slot, now)

	case v.Charging && CurrentStartedBy(ctx, e.store) == StartedBySmart:
		if err := e.control.Stop(ctx, now); err != nil {
			return errors.Join(err, SetStatus(ctx, e.store, StatusError, "Failed to stop charging", now))
		}
		return SetStatus(ctx, e.store, StatusPaused, "Paused - waiting for next slot", now)

	case v.Charging:
		// someone else owns the session
		return nil

	case sched.HasFutureSlots(now):
		return SetStatus(ctx, e.store, StatusScheduled, "Waiting for scheduled slot", now)

	default:
		return SetStatus(ctx, e.store, StatusIdle, "No charging scheduled", now)
	}
}

func (e *Executor) chargingStatus(ctx context.Context, slot Slot, now time.Time) error {
	if slot.SolarEnergy > e.control.Params().SolarSlotKWh {
		return SetStatus(ctx, e.store, StatusChargingSolar, "Charging (solar)", now)
	}
	return SetStatus(ctx, e.store, StatusChargingGrid, "Charging (grid)", now)
}
