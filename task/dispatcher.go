package task

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/icodeforyou/spotpilot-go/entity"
	"github.com/icodeforyou/spotpilot-go/solar"
)

type SolarHandler interface {
	Handle(ctx context.Context, now time.Time) (solar.Action, error)
}

type EvTriggers interface {
	OnEnabled(ctx context.Context) error
	OnArrival(ctx context.Context) error
	OnCableConnected(ctx context.Context) error
}

// Dispatcher turns entity changes into controller runs. Every run gets its
// own goroutine so the writer, usually the MQTT router, is never blocked.
type Dispatcher struct {
	logger    *slog.Logger
	solar     SolarHandler
	ev        EvTriggers
	now       func() time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	solarBusy atomic.Bool
}

func NewDispatcher(logger *slog.Logger, solarCtl SolarHandler, ev EvTriggers, now func() time.Time) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		logger: logger,
		solar:  solarCtl,
		ev:     ev,
		now:    now,
		ctx:    ctx,
		cancel: cancel,
	}
}

// OnChange is an entity.Listener.
func (d *Dispatcher) OnChange(_ context.Context, c entity.Change) {
	switch {
	case c.ID == entity.GridPower && c.IsState():
		// readings arriving while a run is busy are dropped, the
		// controller debounces them anyway
		if !d.solarBusy.CompareAndSwap(false, true) {
			return
		}
		d.spawn("solar", func(ctx context.Context) error {
			defer d.solarBusy.Store(false)
			action, err := d.solar.Handle(ctx, d.now())
			if action != solar.ActionNone {
				d.logger.Info("solar opportunism", slog.String("action", string(action)))
			}
			return err
		})
	case c.ID == entity.EvSmartCharging && c.BecameEqual("on"):
		d.spawn("ev_enabled", d.ev.OnEnabled)
	case c.ID == entity.EvLocation && c.BecameEqual(entity.HomeLocation):
		d.spawn("ev_arrival", d.ev.OnArrival)
	case c.ID == entity.EvChargeCable && c.BecameEqual("on"):
		d.spawn("ev_cable", d.ev.OnCableConnected)
	}
}

func (d *Dispatcher) spawn(name string, fn func(ctx context.Context) error) {
	if d.ctx.Err() != nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.logger.Debug("trigger fired", slog.String("trigger", name))
		if err := fn(d.ctx); err != nil {
			d.logger.Error("trigger failed", slog.String("trigger", name), slog.Any("error", err))
		}
	}()
}

// Stop cancels running triggers and waits for them to return.
func (d *Dispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
}

// Wait blocks until all running triggers have returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
