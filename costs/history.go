// Package costs turns the energy and price history of the last completed hour
// into running cost and savings counters.
package costs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
)

// ErrUnavailable is returned when the history could not be read within the
// retry budget.
var ErrUnavailable = errors.New("history unavailable")

// Sample is a recorded entity state.
type Sample struct {
	Time  time.Time
	Value float64
}

type History interface {
	// Samples returns the numeric states of each id recorded within [from, to],
	// oldest first, led by the last state recorded before from.
	Samples(ctx context.Context, from, to time.Time, ids ...string) (map[string][]Sample, error)
	// SpotPrices returns the raw spot price ticks starting within [from, to).
	SpotPrices(ctx context.Context, from, to time.Time) ([]decimal.Decimal, error)
}

// RetryingHistory retries failing history reads with exponential backoff
// until MaxElapsed has passed.
type RetryingHistory struct {
	History    History
	MaxElapsed time.Duration
}

func NewRetryingHistory(h History, maxElapsed time.Duration) *RetryingHistory {
	return &RetryingHistory{History: h, MaxElapsed: maxElapsed}
}

func (r *RetryingHistory) Samples(ctx context.Context, from, to time.Time, ids ...string) (map[string][]Sample, error) {
	return retry(ctx, r.policy(ctx), func() (map[string][]Sample, error) {
		return r.History.Samples(ctx, from, to, ids...)
	})
}

func (r *RetryingHistory) SpotPrices(ctx context.Context, from, to time.Time) ([]decimal.Decimal, error) {
	return retry(ctx, r.policy(ctx), func() ([]decimal.Decimal, error) {
		return r.History.SpotPrices(ctx, from, to)
	})
}

func (r *RetryingHistory) policy(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(250*time.Millisecond),
		backoff.WithMaxInterval(2*time.Second),
		backoff.WithMaxElapsedTime(r.MaxElapsed),
	)
	return backoff.WithContext(bo, ctx)
}

func retry[T any](ctx context.Context, bo backoff.BackOff, op func() (T, error)) (T, error) {
	res, err := backoff.RetryWithData(func() (T, error) {
		res, err := op()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}, bo)
	if err != nil {
		var zero T
		if ctx.Err() != nil {
			return zero, fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
		}
		return zero, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return res, nil
}
