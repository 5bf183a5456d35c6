package tibber

import (
	"context"
	"time"

	"github.com/icodeforyou/spotpilot-go/hours"
	"github.com/icodeforyou/spotpilot-go/price"
	"github.com/shopspring/decimal"
)

type priceInfo struct {
	StartsAt string          `json:"startsAt"`
	Energy   decimal.Decimal `json:"energy"`
}

type priceInfoResponse struct {
	CurrentSubscription struct {
		PriceInfo struct {
			Today    []priceInfo `json:"today"`
			Tomorrow []priceInfo `json:"tomorrow"`
		} `json:"priceInfo"`
	} `json:"currentSubscription"`
}

// Ticks returns the energy part of the price for the local day. Tibber only
// serves today and tomorrow, other days yield nil. A tick ends where the next
// one starts, the last one is as long as the one before it.
func (t *Tibber) Ticks(ctx context.Context, day time.Time) ([]price.RawTick, error) {
	query := `
		currentSubscription {
			priceInfo(resolution: QUARTER_HOURLY) {
				today { startsAt energy }
				tomorrow { startsAt energy }
			}
		}`

	body, err := doQuery[priceInfoResponse](ctx, t, query)
	if err != nil {
		return nil, err
	}

	info := body.Data.Viewer.Home.CurrentSubscription.PriceInfo
	var starts []time.Time
	var values []decimal.Decimal
	for _, p := range append(info.Today, info.Tomorrow...) {
		startsAt, err := time.Parse(time.RFC3339, p.StartsAt)
		if err != nil {
			return nil, err
		}
		startsAt = startsAt.In(hours.Location())
		if !hours.SameDay(startsAt, day) {
			continue
		}
		starts = append(starts, startsAt)
		values = append(values, p.Energy)
	}

	ticks := make([]price.RawTick, len(starts))
	for i, start := range starts {
		length := time.Hour
		switch {
		case i+1 < len(starts):
			length = starts[i+1].Sub(start)
		case i > 0:
			length = start.Sub(starts[i-1])
		}
		ticks[i] = price.NewRawTick(start, start.Add(length), values[i])
	}
	if len(ticks) == 0 {
		return nil, nil
	}
	return ticks, nil
}
