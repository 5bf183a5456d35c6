package task

import (
	"log/slog"
	"time"

	"github.com/icodeforyou/spotpilot-go/calc"
	"github.com/icodeforyou/spotpilot-go/config"
	"github.com/icodeforyou/spotpilot-go/costs"
	"github.com/icodeforyou/spotpilot-go/costzone"
	"github.com/icodeforyou/spotpilot-go/database"
	"github.com/icodeforyou/spotpilot-go/elprisetjustnu"
	"github.com/icodeforyou/spotpilot-go/entity"
	"github.com/icodeforyou/spotpilot-go/evcharge"
	"github.com/icodeforyou/spotpilot-go/hotwater"
	"github.com/icodeforyou/spotpilot-go/nordpool"
	"github.com/icodeforyou/spotpilot-go/solar"
	"github.com/icodeforyou/spotpilot-go/tibber"
)

// Components are the controllers of the service, wired to one store.
type Components struct {
	Prices      *PricePublisher
	Zones       []*costzone.Classifier
	HotWater    *hotwater.Engine
	EvControl   *evcharge.Control
	EvScheduler *evcharge.Scheduler
	EvTriggers  *evcharge.Triggers
	EvExecutor  *evcharge.Executor
	Solar       *solar.Controller
	Costs       *costs.Accumulator
}

func NewComponents(logger *slog.Logger, cnfg *config.AppConfig, store entity.Store, locks *entity.KeyedMutex, db *database.Database, charger evcharge.Charger, now func() time.Time) *Components {
	var tariff *calc.Tariff
	if cnfg.EnergyPrice.DerivePrices {
		t := calc.NewTariff(cnfg.EnergyPrice.Tax, cnfg.EnergyPrice.TaxReduction, cnfg.EnergyPrice.GridBenefit)
		tariff = &t
	}
	costParams := cnfg.Costs.Params()

	zones := []*costzone.Classifier{
		costzone.NewClassifier(logger.With("module", "cost_zone"), store, locks, entity.CostZoneHotWater, cnfg.CostZones.GetHotWaterHorizon()),
		costzone.NewClassifier(logger.With("module", "cost_zone"), store, locks, entity.CostZoneHeating, cnfg.CostZones.GetHeatingHorizon()),
	}
	if days := cnfg.CostZones.GetLongTermDays(); days > 0 {
		for i := range zones {
			zones[i] = zones[i].WithPriceHistory(db, days)
		}
	}

	evParams := cnfg.EvCharging.Params()
	control := evcharge.NewControl(logger.With("module", "ev_charging"), store, charger, evParams)
	scheduler := evcharge.NewScheduler(logger.With("module", "ev_charging"), store, locks, evParams)

	return &Components{
		Prices:      NewPricePublisher(logger.With("module", "energy_price"), store, locks, db, PriceSources(cnfg.EnergyPrice), tariff, costParams.SpotScale),
		Zones:       zones,
		HotWater:    hotwater.NewEngine(logger.With("module", "hot_water"), store, locks, cnfg.HotWater.Params()),
		EvControl:   control,
		EvScheduler: scheduler,
		EvTriggers:  evcharge.NewTriggers(logger.With("module", "ev_charging"), store, locks, scheduler, control, now),
		EvExecutor:  evcharge.NewExecutor(logger.With("module", "ev_charging"), store, locks, control),
		Solar:       solar.NewController(logger.With("module", "solar"), store, locks, control, cnfg.SolarOpportunism.Params()),
		Costs: costs.NewAccumulator(logger.With("module", "costs"), store, locks,
			costs.NewRetryingHistory(db, cnfg.Costs.GetRetryBudget()), db, costParams),
	}
}

// PriceSources returns the configured source first and the other one as
// fallback.
func PriceSources(cnfg config.AppConfigEnergyPrice) []PriceSource {
	primary, secondary := PriceSource(elprisetjustnu.New(cnfg.Area)), PriceSource(nordpool.New(cnfg.Area))
	if cnfg.GetSource() == secondary.Name() {
		primary, secondary = secondary, primary
	}
	sources := []PriceSource{primary, secondary}
	if cnfg.TibberToken != "" {
		sources = append(sources, tibber.New(cnfg.TibberToken, cnfg.TibberHomeID))
	}
	return sources
}

// NewScheduledTasks builds the periodic tasks. The energy price task fetches
// or publishes prices right away.
func NewScheduledTasks(logger *slog.Logger, c *Components, db *database.Database, cnfg *config.AppConfig, now func() time.Time) *Tasks {
	schedule := DefaultSchedule()
	if cnfg.EnergyPrice.RunAt != "" {
		schedule.EnergyPrice = cnfg.EnergyPrice.RunAt
	}

	tasks := NewTasks(schedule)
	tasks.EnergyPriceTask = NewEnergyPriceTask(logger.With("task", "energy_price"), c.Prices, now)
	tasks.PriceStateTask = NewPriceStateTask(logger.With("task", "price_state"), c.Prices, now)
	tasks.CostZoneTask = NewCostZoneTask(logger.With("task", "cost_zone"), c.Zones, now)
	tasks.HotWaterTask = NewHotWaterTask(logger.With("task", "hot_water"), c.HotWater, now)
	tasks.EvScheduleTask = NewEvScheduleTask(logger.With("task", "ev_schedule"), c.EvTriggers)
	tasks.EvExecutorTask = NewEvExecutorTask(logger.With("task", "ev_executor"), c.EvExecutor, now)
	tasks.CostsTask = NewCostsTask(logger.With("task", "costs"), c.Costs, now)
	tasks.MaintenanceTask = NewMaintenanceTask(logger.With("task", "maintenance"), db, cnfg)
	return tasks
}
