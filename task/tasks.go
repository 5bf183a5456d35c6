package task

import (
	"context"
	"log/slog"

	"github.com/icodeforyou/spotpilot-go/hours"
	"github.com/robfig/cron/v3"
)

// Schedule holds the cron specs of the periodic tasks.
type Schedule struct {
	EnergyPrice string
	PriceState  string
	CostZones   string
	HotWater    string
	EvSchedule  string
	EvExecutor  string
	Costs       string
	Maintenance string
}

func DefaultSchedule() Schedule {
	return Schedule{
		EnergyPrice: "0 13-16 * * *",
		PriceState:  "0,15,30,45 * * * *",
		CostZones:   "1,16,31,46 * * * *",
		HotWater:    "3,18,33,48 * * * *",
		EvSchedule:  "0 15 * * *",
		EvExecutor:  "2,17,32,47 * * * *",
		Costs:       "1 * * * *",
		Maintenance: "30 2 * * *",
	}
}

type Tasks struct {
	cron            *cron.Cron
	schedule        Schedule
	EnergyPriceTask func()
	PriceStateTask  func()
	CostZoneTask    func()
	HotWaterTask    func()
	EvScheduleTask  func()
	EvExecutorTask  func()
	CostsTask       func()
	MaintenanceTask func()
}

func NewTasks(schedule Schedule) *Tasks {
	return &Tasks{
		cron:     cron.New(cron.WithLocation(hours.Location())),
		schedule: schedule,
	}
}

// Services returns the tasks that can be triggered by hand, by name.
func (t *Tasks) Services() map[string]func() {
	services := map[string]func(){
		"energy_price":    t.EnergyPriceTask,
		"cost_zones":      t.CostZoneTask,
		"hot_water":       t.HotWaterTask,
		"ev_schedule":     t.EvScheduleTask,
		"ev_executor":     t.EvExecutorTask,
		"cost_accounting": t.CostsTask,
		"maintenance":     t.MaintenanceTask,
	}
	for name, fn := range services {
		if fn == nil {
			delete(services, name)
		}
	}
	return services
}

func (t *Tasks) Run() {
	for _, job := range []struct {
		spec string
		fn   func()
	}{
		{t.schedule.EnergyPrice, t.EnergyPriceTask},
		{t.schedule.PriceState, t.PriceStateTask},
		{t.schedule.CostZones, t.CostZoneTask},
		{t.schedule.HotWater, t.HotWaterTask},
		{t.schedule.EvSchedule, t.EvScheduleTask},
		{t.schedule.EvExecutor, t.EvExecutorTask},
		{t.schedule.Costs, t.CostsTask},
		{t.schedule.Maintenance, t.MaintenanceTask},
	} {
		if job.fn == nil {
			continue
		}
		if _, err := t.cron.AddFunc(job.spec, job.fn); err != nil {
			panic(err)
		}
	}
	t.cron.Start()
	slog.Default().Info("tasks scheduled", slog.Int("jobs", len(t.cron.Entries())))
}

func (t *Tasks) Stop() context.Context {
	return t.cron.Stop()
}
