package evcharge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/icodeforyou/spotpilot-go/entity"
	"github.com/icodeforyou/spotpilot-go/price"
)

var (
	ErrSOCUnavailable   = errors.New("SOC unavailable")
	ErrLimitUnavailable = errors.New("charge limit unavailable")
)

// Scheduler computes and stores the charging plan.
type Scheduler struct {
	logger *slog.Logger
	store  entity.Store
	locks  *entity.KeyedMutex
	params Params
	mu     sync.Mutex
}

func NewScheduler(logger *slog.Logger, store entity.Store, locks *entity.KeyedMutex, params Params) *Scheduler {
	return &Scheduler{
		logger: logger,
		store:  store,
		locks:  locks,
		params: params,
	}
}

// Calculate replaces the stored schedule. On failure the status is set to
// error and the previous schedule is left untouched.
func (s *Scheduler) Calculate(ctx context.Context, now time.Time) (Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	unlock := s.locks.Lock(entity.EvChargingStatus)
	defer unlock()

	return s.calculate(ctx, now)
}

func (s *Scheduler) calculate(ctx context.Context, now time.Time) (Plan, error) {
	v := ReadVehicle(ctx, s.store)
	soc, ok := v.SOC.Get()
	if !ok {
		return Plan{}, s.fail(ctx, now, "SOC unavailable", ErrSOCUnavailable)
	}
	limit, ok := v.Limit.Get()
	if !ok {
		return Plan{}, s.fail(ctx, now, "Charge limit unavailable", ErrLimitUnavailable)
	}

	if soc >= limit {
		plan := Plan{Mode: ModeComplete}
		if err := StoreSchedule(ctx, s.store, NewSchedule(s.params, nil, ModeComplete, now)); err != nil {
			return plan, err
		}
		s.logger.Info("target SOC reached", slog.Float64("soc", soc), slog.Float64("limit", limit))
		return plan, SetStatus(ctx, s.store, StatusComplete, "Target SOC reached", now)
	}

	buy, err := price.ReadFeed(ctx, s.store, entity.SpotPrice)
	if err != nil {
		return Plan{}, s.fail(ctx, now, "No price data", fmt.Errorf("%w: %w", ErrNoPriceData, err))
	}
	sell, err := price.ReadFeed(ctx, s.store, entity.SellPrice)
	if err != nil {
		s.logger.Warn("sell price unreadable, using fallback", slog.Any("error", err))
		sell = price.Feed{}
	}

	slots := BuildSlots(s.params, buy, sell, ReadSolarForecast(ctx, s.store), now)
	plan, err := NewPlan(s.params, soc, limit, slots, now)
	switch {
	case errors.Is(err, ErrNoPriceData):
		return plan, s.fail(ctx, now, "No price data", err)
	case errors.Is(err, ErrNoSlotsBeforeDeadline):
		return plan, s.fail(ctx, now, "No slots before deadline", err)
	case err != nil:
		return plan, s.fail(ctx, now, err.Error(), err)
	}

	if plan.Shortfall {
		s.logger.Warn("not enough slots before deadline to reach minimum SOC",
			slog.Float64("needed_kwh", plan.MandatoryNeeded),
			slog.Time("deadline", plan.Deadline))
	}

	selected := plan.Selected()
	sched := NewSchedule(s.params, selected, plan.Mode, now)
	if err := StoreSchedule(ctx, s.store, sched); err != nil {
		return plan, err
	}
	if len(selected) == 0 {
		return plan, SetStatus(ctx, s.store, StatusIdle, "No charging needed", now)
	}

	s.logger.Info("charging scheduled",
		slog.Int("slots", sched.SlotCount),
		slog.Int("mandatory", len(plan.Mandatory)),
		slog.Int("optional", len(plan.Optional)),
		slog.Float64("kwh", sched.TotalEnergyKWh),
		slog.Float64("estimated_cost", sched.EstimatedCost))
	msg := fmt.Sprintf("Scheduled: %d slots, %.1f kWh", sched.SlotCount, sched.TotalEnergyKWh)
	return plan, SetStatus(ctx, s.store, StatusScheduled, msg, now)
}

func (s *Scheduler) fail(ctx context.Context, now time.Time, message string, cause error) error {
	s.logger.Error("charging schedule failed", slog.String("reason", message), slog.Any("error", cause))
	if err := SetStatus(ctx, s.store, StatusError, message, now); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// ReadSolarForecast reads the production forecast and sun time entities.
func ReadSolarForecast(ctx context.Context, s entity.Store) SolarForecast {
	return SolarForecast{
		TodayRemaining: entity.Float(ctx, s, entity.SolarTodayRemaining),
		Tomorrow:       entity.Float(ctx, s, entity.SolarTomorrow),
		Sunrise:        entity.Time(ctx, s, entity.SunRising),
		Sunset:         entity.Time(ctx, s, entity.SunSetting),
	}
}
