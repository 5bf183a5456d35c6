package main

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/icodeforyou/spotpilot-go/entity"
	"github.com/icodeforyou/spotpilot-go/evcharge"
	"github.com/icodeforyou/spotpilot-go/hours"
	"github.com/icodeforyou/spotpilot-go/price"
	"github.com/spf13/cobra"
)

var costsHour string

func init() {
	prices := &cobra.Command{Use: "prices", Short: "Spot prices"}
	prices.AddCommand(
		&cobra.Command{
			Use:   "fetch",
			Short: "Fetch today's and tomorrow's prices and publish them",
			RunE:  run(runPricesFetch),
		},
		&cobra.Command{
			Use:   "show",
			Short: "Show the published spot price intervals",
			RunE:  run(runPricesShow),
		},
	)

	costsCmd := &cobra.Command{
		Use:   "costs",
		Short: "Account the last completed hour, or --hour",
		RunE:  run(runCosts),
	}
	costsCmd.Flags().StringVar(&costsHour, "hour", "", "Start of the hour to account, RFC 3339")

	rootCmd.AddCommand(
		prices,
		&cobra.Command{
			Use:   "zones",
			Short: "Update the cost zone entities",
			RunE:  run(runZones),
		},
		&cobra.Command{
			Use:   "hotwater",
			Short: "Run the hot water decision",
			RunE:  run(runHotWater),
		},
		&cobra.Command{
			Use:   "schedule",
			Short: "Calculate the EV charging schedule",
			RunE:  run(runSchedule),
		},
		costsCmd,
		&cobra.Command{
			Use:   "entities [id...]",
			Short: "Show entity states and attributes, all when no id is given",
			RunE:  run(runEntities),
		},
		&cobra.Command{
			Use:   "config",
			Short: "Print the loaded configuration",
			RunE:  run(runConfig),
		},
	)
}

func runPricesFetch(ctx context.Context, e *env, _ []string) error {
	n, err := e.components.Prices.Fetch(ctx, e.now)
	if err != nil {
		return err
	}
	if err := e.components.Prices.Publish(ctx, e.now); err != nil {
		return err
	}
	fmt.Printf("stored %d ticks\n", n)
	return nil
}

type intervalView struct {
	Start string `yaml:"start"`
	Value string `yaml:"value"`
}

func runPricesShow(ctx context.Context, e *env, _ []string) error {
	feed, err := price.ReadFeed(ctx, e.db, entity.SpotPrice)
	if err != nil {
		return err
	}
	intervals, source := feed.Intervals()
	views := make([]intervalView, len(intervals))
	for i, iv := range intervals {
		views[i] = intervalView{Start: iv.Start.In(hours.Location()).Format("2006-01-02 15:04"), Value: iv.Value.String()}
	}
	out := map[string]any{"source": string(source), "intervals": views}
	if stats, ok := price.Statistics(price.Values(intervals)); ok {
		out["avg"] = stats.Avg.StringFixed(4)
		out["min"] = stats.Min.String()
		out["max"] = stats.Max.String()
	}
	return printYAML(out)
}

func runZones(ctx context.Context, e *env, _ []string) error {
	out := map[string]any{}
	for _, c := range e.components.Zones {
		res, err := c.Update(ctx, e.now)
		if err != nil {
			return fmt.Errorf("%s: %w", c.ID(), err)
		}
		out[c.ID()] = map[string]any{
			"zone":      res.Zone,
			"raw_zone":  res.RawZone,
			"agreement": res.Agreement,
			"lookahead": res.LookaheadCount,
		}
	}
	return printYAML(out)
}

func runHotWater(ctx context.Context, e *env, _ []string) error {
	d, err := e.components.HotWater.Run(ctx, e.now)
	if err != nil {
		return err
	}
	return printYAML(map[string]any{
		"status": d.Status,
		"reason": string(d.Reason),
		"debug":  map[string]any(d.Debug),
	})
}

type slotView struct {
	Start     string  `yaml:"start"`
	Effective float64 `yaml:"effective_price"`
	Solar     float64 `yaml:"solar_kwh"`
	Grid      float64 `yaml:"grid_kwh"`
}

func slotViews(slots []evcharge.Slot) []slotView {
	slots = slices.Clone(slots)
	slices.SortFunc(slots, func(a, b evcharge.Slot) int { return a.Start.Compare(b.Start) })
	views := make([]slotView, len(slots))
	for i, s := range slots {
		views[i] = slotView{
			Start:     s.Start.In(hours.Location()).Format("2006-01-02 15:04"),
			Effective: s.EffectivePrice,
			Solar:     s.SolarEnergy,
			Grid:      s.GridEnergy,
		}
	}
	return views
}

func runSchedule(ctx context.Context, e *env, _ []string) error {
	plan, err := e.components.EvScheduler.Calculate(ctx, e.now)
	if err != nil {
		return err
	}
	return printYAML(map[string]any{
		"mode":            string(plan.Mode),
		"deadline":        plan.Deadline.Format(time.RFC3339),
		"mandatory_kwh":   plan.MandatoryNeeded,
		"optional_kwh":    plan.OptionalNeeded,
		"shortfall":       plan.Shortfall,
		"mandatory_slots": slotViews(plan.Mandatory),
		"optional_slots":  slotViews(plan.Optional),
	})
}

func runCosts(ctx context.Context, e *env, _ []string) error {
	hour := hours.TruncateHour(e.now).Add(-time.Hour)
	if costsHour != "" {
		t, err := time.ParseInLocation(time.RFC3339, costsHour, hours.Location())
		if err != nil {
			return fmt.Errorf("parsing --hour: %w", err)
		}
		hour = hours.TruncateHour(t.In(hours.Location()))
	}

	c, err := e.components.Costs.RunHour(ctx, hour)
	if err != nil {
		return err
	}
	return printYAML(map[string]any{
		"hour":                    hour.Format(time.RFC3339),
		"solar_savings":           c.SolarSavings,
		"ev_without_solar":        c.EVWithoutSolar,
		"ev_with_solar":           c.EVWithSolar,
		"heat_pump_without_solar": c.HeatPumpWithoutSolar,
		"heat_pump_with_solar":    c.HeatPumpWithSolar,
	})
}

type entityView struct {
	State      *string        `yaml:"state"`
	Attributes map[string]any `yaml:"attributes,omitempty"`
}

func runEntities(ctx context.Context, e *env, args []string) error {
	ids := args
	if len(ids) == 0 {
		var err error
		if ids, err = e.db.EntityIDs(ctx); err != nil {
			return err
		}
	}
	out := make(map[string]entityView, len(ids))
	for _, id := range ids {
		state, err := e.db.State(ctx, id)
		if err != nil {
			return err
		}
		attrs, err := e.db.Attributes(ctx, id)
		if err != nil {
			return err
		}
		v := entityView{Attributes: attrs}
		if s, ok := state.Get(); ok {
			v.State = &s
		}
		out[id] = v
	}
	return printYAML(out)
}

func runConfig(_ context.Context, e *env, _ []string) error {
	c := *e.cnfg
	if c.Mqtt.Password != "" {
		c.Mqtt.Password = "********"
	}
	return printYAML(c)
}
