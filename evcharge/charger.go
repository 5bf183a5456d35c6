package evcharge

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/icodeforyou/spotpilot-go/entity"
)

// Charger is the device command sink. Commands are fire and forget, an
// error only means the command could not be sent.
type Charger interface {
	SetAmps(ctx context.Context, amps int) error
	SwitchOn(ctx context.Context) error
	SwitchOff(ctx context.Context) error
}

// Control issues charger commands and records session ownership on the
// status entity. Callers hold the status entity lock.
type Control struct {
	logger  *slog.Logger
	store   entity.Store
	charger Charger
	params  Params
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewControl(logger *slog.Logger, store entity.Store, charger Charger, params Params) *Control {
	return &Control{
		logger:  logger,
		store:   store,
		charger: charger,
		params:  params,
		sleep:   sleepCtx,
	}
}

func (c *Control) Params() Params {
	return c.params
}

// Start sets the current, waits for the car to apply it and then closes the
// contactor. The clamped current is returned.
func (c *Control) Start(ctx context.Context, now time.Time, amps int, by StartedBy) (int, error) {
	amps = c.params.ClampAmps(amps)
	c.logger.Info("starting charging", slog.Int("amps", amps), slog.String("by", string(by)))

	if err := c.charger.SetAmps(ctx, amps); err != nil {
		return amps, fmt.Errorf("setting charging current: %w", err)
	}
	if err := c.sleep(ctx, c.params.StartDelay); err != nil {
		return amps, err
	}
	if err := c.charger.SwitchOn(ctx); err != nil {
		return amps, fmt.Errorf("switching on charging: %w", err)
	}

	return amps, entity.SetAttributes(ctx, c.store, entity.EvChargingStatus, entity.Attributes{
		AttrStartedBy:    string(by),
		AttrStartedAt:    entity.FormatTime(now),
		AttrChargingAmps: amps,
	})
}

// Stop opens the contactor and releases session ownership.
func (c *Control) Stop(ctx context.Context, now time.Time) error {
	c.logger.Info("stopping charging")
	if err := c.charger.SwitchOff(ctx); err != nil {
		return fmt.Errorf("switching off charging: %w", err)
	}
	return entity.SetAttributes(ctx, c.store, entity.EvChargingStatus, entity.Attributes{
		AttrStoppedAt: entity.FormatTime(now),
		AttrStartedBy: string(StartedByNone),
	})
}

// Adjust changes the current of a running session when it differs by at
// least one amp from what the car reports. It reports whether a command was sent.
func (c *Control) Adjust(ctx context.Context, amps int) (bool, error) {
	amps = c.params.ClampAmps(amps)
	current := int(entity.Float(ctx, c.store, entity.EvChargeCurrent).ValueOrDefault(0))
	if math.Abs(float64(current-amps)) < 1 {
		c.logger.Debug("charging current unchanged", slog.Int("amps", amps))
		return false, nil
	}

	c.logger.Info("adjusting charging current", slog.Int("from", current), slog.Int("to", amps))
	if err := c.charger.SetAmps(ctx, amps); err != nil {
		return false, fmt.Errorf("setting charging current: %w", err)
	}
	return true, c.store.SetAttribute(ctx, entity.EvChargingStatus, AttrChargingAmps, amps)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// DryRunCharger only logs commands and mirrors them into the car entities,
// so a full control loop can run without hardware.
type DryRunCharger struct {
	logger *slog.Logger
	store  entity.Store
}

func NewDryRunCharger(logger *slog.Logger, store entity.Store) *DryRunCharger {
	return &DryRunCharger{logger: logger, store: store}
}

func (d *DryRunCharger) SetAmps(ctx context.Context, amps int) error {
	d.logger.Info("dry run: set charging current", slog.Int("amps", amps))
	return d.store.SetState(ctx, entity.EvChargeCurrent, strconv.Itoa(amps))
}

func (d *DryRunCharger) SwitchOn(ctx context.Context) error {
	d.logger.Info("dry run: switch on charging")
	if err := d.store.SetState(ctx, entity.EvChargeSwitch, "on"); err != nil {
		return err
	}
	return d.store.SetState(ctx, entity.EvCharging, chargingState)
}

func (d *DryRunCharger) SwitchOff(ctx context.Context) error {
	d.logger.Info("dry run: switch off charging")
	if err := d.store.SetState(ctx, entity.EvChargeSwitch, "off"); err != nil {
		return err
	}
	return d.store.SetState(ctx, entity.EvCharging, "Stopped")
}
