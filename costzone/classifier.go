package costzone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/icodeforyou/spotpilot-go/entity"
	"github.com/icodeforyou/spotpilot-go/hours"
	"github.com/icodeforyou/spotpilot-go/price"
	"github.com/shopspring/decimal"
)

var ErrNoPriceData = errors.New("no price data")

// PriceHistory gives access to stored spot prices, used for the long term band.
type PriceHistory interface {
	SpotPrices(ctx context.Context, from, to time.Time) ([]decimal.Decimal, error)
}

// Classifier maintains one smoothed cost zone entity. Each instance has its
// own lookahead horizon, e.g. 4 quarters for hot water and 16 for heating.
type Classifier struct {
	logger       *slog.Logger
	store        entity.Store
	locks        *entity.KeyedMutex
	id           string
	horizon      int
	history      PriceHistory
	longTermDays int
	mu           sync.Mutex
}

func NewClassifier(logger *slog.Logger, store entity.Store, locks *entity.KeyedMutex, id string, horizon int) *Classifier {
	return &Classifier{
		logger:  logger,
		store:   store,
		locks:   locks,
		id:      id,
		horizon: horizon,
	}
}

// WithPriceHistory adds long term band attributes computed over the given
// number of days of stored prices.
func (c *Classifier) WithPriceHistory(h PriceHistory, days int) *Classifier {
	c.history = h
	c.longTermDays = days
	return c
}

func (c *Classifier) ID() string {
	return c.id
}

func (c *Classifier) Update(ctx context.Context, now time.Time) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	unlock := c.locks.Lock(c.id)
	defer unlock()

	feed, err := price.ReadFeed(ctx, c.store, entity.SpotPrice)
	if err != nil {
		return Result{}, c.fail(ctx, err)
	}
	intervals, source := feed.Intervals()
	thresholds, ok := NewThresholds(price.Values(intervals))
	if !ok {
		return Result{}, c.fail(ctx, ErrNoPriceData)
	}

	var current decimal.Decimal
	lookaheadFrom := now
	if iv, ok := price.At(intervals, now); ok {
		current = iv.Value
		lookaheadFrom = iv.End
	} else if flat, ok := feed.Flat.Get(); ok {
		current = flat
	} else {
		return Result{}, c.fail(ctx, fmt.Errorf("no price for %s: %w", now.Format(time.RFC3339), ErrNoPriceData))
	}
	lookahead := price.Values(price.Following(intervals, lookaheadFrom, c.horizon))

	previous, hasPrevious := 0, false
	if v, ok := entity.Float(ctx, c.store, c.id).Get(); ok {
		previous, hasPrevious = int(math.Round(v)), true
	}

	res := Smooth(thresholds, current, previous, hasPrevious, lookahead)

	attrs := entity.Attributes{
		"raw_zone":            res.RawZone,
		"lookahead_agreement": res.Agreement,
		"lookahead_count":     res.LookaheadCount,
		"price_current":       current.InexactFloat64(),
		"source":              string(source),
		"last_calculated":     entity.FormatTime(now),
		"error":               "",
	}
	addBand(attrs, "short", thresholds)
	if today, ok := NewThresholds(price.Values(price.Normalize(feed.Today))); ok {
		addBand(attrs, "today", today)
	}
	if c.history != nil && c.longTermDays > 0 {
		to := hours.StartOfDay(now)
		long, err := c.history.SpotPrices(ctx, to.AddDate(0, 0, -c.longTermDays), to)
		if err != nil {
			c.logger.Warn("cost zone long term prices unavailable", slog.Any("error", err))
		} else if t, ok := NewThresholds(append(long, price.Values(intervals)...)); ok {
			addBand(attrs, "long", t)
		}
	}

	if err := entity.SetAttributes(ctx, c.store, c.id, attrs); err != nil {
		return res, fmt.Errorf("writing cost zone attributes: %w", err)
	}
	if err := c.store.SetState(ctx, c.id, strconv.Itoa(res.Zone)); err != nil {
		return res, fmt.Errorf("writing cost zone: %w", err)
	}

	if hasPrevious && res.Zone != previous {
		c.logger.Info("cost zone changed", slog.String("entity", c.id), slog.Int("from", previous), slog.Int("to", res.Zone))
	} else if res.Zone != res.RawZone {
		c.logger.Debug("cost zone change not sustained", slog.String("entity", c.id), slog.Int("raw", res.RawZone), slog.Float64("agreement", res.Agreement))
	}
	return res, nil
}

// fail records the error on the entity and leaves the zone untouched.
func (c *Classifier) fail(ctx context.Context, err error) error {
	if serr := c.store.SetAttribute(ctx, c.id, "error", err.Error()); serr != nil {
		c.logger.Warn("could not record cost zone error", slog.Any("error", serr))
	}
	return err
}

func addBand(attrs entity.Attributes, suffix string, t Thresholds) {
	attrs["price_average_"+suffix] = t.Avg.InexactFloat64()
	attrs["price_min_"+suffix] = t.Min.InexactFloat64()
	attrs["price_max_"+suffix] = t.Max.InexactFloat64()
	attrs["price_25_percent_"+suffix] = t.Cheap.InexactFloat64()
	attrs["price_75_percent_"+suffix] = t.Expensive.InexactFloat64()
}
