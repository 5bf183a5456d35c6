package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/icodeforyou/spotpilot-go/calc"
	"github.com/icodeforyou/spotpilot-go/entity"
	"github.com/icodeforyou/spotpilot-go/hours"
	"github.com/icodeforyou/spotpilot-go/price"
	"github.com/icodeforyou/spotpilot-go/slice"
	"github.com/icodeforyou/spotpilot-go/types/maybe"
	"github.com/shopspring/decimal"
)

// PriceSource fetches the spot price ticks of one local day.
type PriceSource interface {
	Name() string
	Ticks(ctx context.Context, day time.Time) ([]price.RawTick, error)
}

type PriceStore interface {
	SavePriceTicks(ctx context.Context, source string, ticks []price.RawTick) error
	PriceTicks(ctx context.Context, from, to time.Time) ([]price.RawTick, error)
}

// PricePublisher keeps the price entities in line with the stored ticks.
type PricePublisher struct {
	logger  *slog.Logger
	store   entity.Store
	locks   *entity.KeyedMutex
	db      PriceStore
	sources []PriceSource
	// tariff is nil when the buy and sell prices come from the host
	tariff    *calc.Tariff
	spotScale float64
}

func NewPricePublisher(logger *slog.Logger, store entity.Store, locks *entity.KeyedMutex, db PriceStore, sources []PriceSource, tariff *calc.Tariff, spotScale float64) *PricePublisher {
	return &PricePublisher{
		logger:    logger,
		store:     store,
		locks:     locks,
		db:        db,
		sources:   sources,
		tariff:    tariff,
		spotScale: spotScale,
	}
}

// Fetch downloads today and tomorrow from the first source that has today's
// prices and stores them.
func (p *PricePublisher) Fetch(ctx context.Context, now time.Time) (int, error) {
	today := hours.StartOfDay(now)
	for _, source := range p.sources {
		n, err := p.fetchFrom(ctx, source, today)
		if err != nil {
			p.logger.Error("energy price task error, fetching energy prices", slog.String("source", source.Name()), slog.Any("error", err))
			continue
		}
		return n, nil
	}
	return 0, fmt.Errorf("no prices fetched from %d sources", len(p.sources))
}

func (p *PricePublisher) fetchFrom(ctx context.Context, source PriceSource, today time.Time) (int, error) {
	todayTicks, err := source.Ticks(ctx, today)
	if err != nil {
		return 0, err
	}
	if len(todayTicks) == 0 {
		return 0, fmt.Errorf("no prices for today")
	}
	tomorrowTicks, err := source.Ticks(ctx, today.AddDate(0, 0, 1))
	if err != nil {
		p.logger.Warn("could not fetch tomorrow's prices", slog.String("source", source.Name()), slog.Any("error", err))
		tomorrowTicks = nil
	}
	ticks := append(todayTicks, tomorrowTicks...)
	if err := p.db.SavePriceTicks(ctx, source.Name(), ticks); err != nil {
		return 0, err
	}
	return len(ticks), nil
}

// NeedsFetch reports whether the stored ticks run out within the next 12 hours.
func (p *PricePublisher) NeedsFetch(ctx context.Context, now time.Time) bool {
	ahead := hours.TruncateQuarter(now.Add(12 * time.Hour))
	ticks, err := p.db.PriceTicks(ctx, ahead.Add(-time.Hour), ahead.Add(hours.Quarter))
	if err != nil {
		return true
	}
	_, ok := price.At(price.Normalize(ticks), ahead)
	return !ok
}

// Publish writes the stored ticks of today and tomorrow to the spot price
// entity with the current price as state. With a tariff the sell feed and
// the current buy price are derived too.
func (p *PricePublisher) Publish(ctx context.Context, now time.Time) error {
	today := hours.StartOfDay(now)
	tomorrow := today.AddDate(0, 0, 1)
	ticks, err := p.db.PriceTicks(ctx, today, tomorrow.AddDate(0, 0, 1))
	if err != nil {
		return fmt.Errorf("loading price ticks: %w", err)
	}

	feed := price.Feed{
		Today:    slice.Filter(ticks, func(t price.RawTick) bool { return t.Start.Before(tomorrow) }),
		Tomorrow: slice.Filter(ticks, func(t price.RawTick) bool { return !t.Start.Before(tomorrow) }),
	}
	feed.TomorrowValid = len(feed.Tomorrow) > 0
	current := currentValue(feed.Today, now)

	if err := p.write(ctx, entity.SpotPrice, feed, current); err != nil {
		return err
	}
	if p.tariff == nil {
		return nil
	}

	sell := price.Feed{
		Today:         p.tariff.SellTicks(feed.Today),
		Tomorrow:      p.tariff.SellTicks(feed.Tomorrow),
		TomorrowValid: feed.TomorrowValid,
	}
	if err := p.write(ctx, entity.SellPrice, sell, currentValue(sell.Today, now)); err != nil {
		return err
	}

	unlock := p.locks.Lock(entity.BuyPrice)
	defer unlock()
	state := "unavailable"
	if v, ok := current.Get(); ok {
		state = p.tariff.BuyPrice(v).Mul(decimal.NewFromFloat(p.spotScale)).String()
	}
	return p.store.SetState(ctx, entity.BuyPrice, state)
}

func (p *PricePublisher) write(ctx context.Context, id string, feed price.Feed, current maybe.Maybe[decimal.Decimal]) error {
	unlock := p.locks.Lock(id)
	defer unlock()
	return price.WriteFeed(ctx, p.store, id, feed, current)
}

func currentValue(ticks []price.RawTick, now time.Time) maybe.Maybe[decimal.Decimal] {
	if iv, ok := price.At(price.Normalize(ticks), now); ok {
		return maybe.Some(iv.Value)
	}
	return maybe.None[decimal.Decimal]()
}

// NewEnergyPriceTask fetches and publishes prices. Prices are fetched right
// away when the stored ones run out soon.
func NewEnergyPriceTask(logger *slog.Logger, p *PricePublisher, now func() time.Time) func() {
	if len(p.sources) == 0 {
		panic("no energy price sources")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if p.NeedsFetch(ctx, now()) {
		logger.Info("need an immediate update of energy prices")
		runEnergyPriceTask(logger, p, now())
	} else {
		logger.Debug("no need for immediate update of energy prices")
		if err := p.Publish(ctx, now()); err != nil {
			logger.Error("energy price task error, publishing prices", slog.Any("error", err))
		}
	}

	return func() { runEnergyPriceTask(logger, p, now()) }
}

func runEnergyPriceTask(logger *slog.Logger, p *PricePublisher, now time.Time) {
	logger.Debug("running energy price task...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := p.Fetch(ctx, now)
	if err != nil {
		logger.Error("energy price task error", slog.Any("error", err))
	}
	if err := p.Publish(ctx, now); err != nil {
		logger.Error("energy price task error, publishing prices", slog.Any("error", err))
		return
	}

	logger.Info("energy price task done", slog.Int("noOfTicksUpdated", n))
}

// NewPriceStateTask moves the current price states along every quarter.
func NewPriceStateTask(logger *slog.Logger, p *PricePublisher, now func() time.Time) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := p.Publish(ctx, now()); err != nil {
			logger.Error("price state task error", slog.Any("error", err))
		}
	}
}
