package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/icodeforyou/spotpilot-go/costs"
	"github.com/icodeforyou/spotpilot-go/costzone"
	"github.com/icodeforyou/spotpilot-go/evcharge"
	"github.com/icodeforyou/spotpilot-go/hotwater"
)

func NewCostZoneTask(logger *slog.Logger, classifiers []*costzone.Classifier, now func() time.Time) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		for _, c := range classifiers {
			res, err := c.Update(ctx, now())
			if err != nil {
				logger.Error("cost zone task error", slog.String("entity", c.ID()), slog.Any("error", err))
				continue
			}
			logger.Debug("cost zone updated",
				slog.String("entity", c.ID()),
				slog.Int("zone", res.Zone),
				slog.Int("rawZone", res.RawZone),
				slog.Float64("agreement", res.Agreement))
		}
	}
}

func NewHotWaterTask(logger *slog.Logger, engine *hotwater.Engine, now func() time.Time) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		d, err := engine.Run(ctx, now())
		if err != nil {
			logger.Error("hot water task error", slog.Any("error", err))
			return
		}
		logger.Info("hot water task done", slog.Int("status", d.Status), slog.String("reason", string(d.Reason)))
	}
}

// NewEvScheduleTask runs the daily schedule calculation. Settle delays in the
// triggers can make a run last for minutes, hence the generous timeout.
func NewEvScheduleTask(logger *slog.Logger, triggers *evcharge.Triggers) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := triggers.Daily(ctx); err != nil {
			logger.Error("ev schedule task error", slog.Any("error", err))
			return
		}
		logger.Info("ev schedule task done")
	}
}

func NewEvExecutorTask(logger *slog.Logger, executor *evcharge.Executor, now func() time.Time) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := executor.Run(ctx, now()); err != nil {
			logger.Error("ev executor task error", slog.Any("error", err))
		}
	}
}

func NewCostsTask(logger *slog.Logger, acc *costs.Accumulator, now func() time.Time) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := acc.Run(ctx, now()); err != nil {
			logger.Warn("costs task skipped hour", slog.Any("error", err))
		}
	}
}
