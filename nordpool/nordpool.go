// Package nordpool fetches day-ahead spot prices from the Nord Pool data
// portal.
package nordpool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/icodeforyou/spotpilot-go/price"
	"github.com/icodeforyou/spotpilot-go/slice"
	"github.com/shopspring/decimal"
)

const DefaultBaseURL = "https://dataportal-api.nordpoolgroup.com"

type dayAheadPrices struct {
	DeliveryDateCET  string      `json:"deliveryDateCET"`
	Currency         string      `json:"currency"`
	MultiAreaEntries []areaEntry `json:"multiAreaEntries"`
}

type areaEntry struct {
	DeliveryStart time.Time          `json:"deliveryStart"`
	DeliveryEnd   time.Time          `json:"deliveryEnd"`
	EntryPerArea  map[string]float64 `json:"entryPerArea"`
}

var perMWh = decimal.NewFromInt(1000)

type Nordpool struct {
	area    string
	baseURL string
	client  *http.Client
}

func New(area string) Nordpool {
	return Nordpool{
		area:    area,
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (n Nordpool) WithBaseURL(url string) Nordpool {
	n.baseURL = url
	return n
}

func (n Nordpool) Name() string {
	return "nordpool"
}

// Ticks returns the SEK/kWh prices for the delivery date of day. Entries
// lacking the configured area are skipped, repeated starts keep the first.
func (n Nordpool) Ticks(ctx context.Context, day time.Time) ([]price.RawTick, error) {
	url := fmt.Sprintf("%s/api/DayAheadPrices?date=%s&market=DayAhead&deliveryArea=%s&currency=SEK",
		n.baseURL, day.Format(time.DateOnly), n.area)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices: %w", err)
	}
	defer resp.Body.Close()

	// 204 is returned before the auction result is published
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var data dayAheadPrices
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	ticks := make([]price.RawTick, 0, len(data.MultiAreaEntries))
	for _, entry := range data.MultiAreaEntries {
		v, ok := entry.EntryPerArea[n.area]
		if !ok {
			continue
		}
		if _, dup := slice.Find(ticks, func(t price.RawTick) bool { return t.Start.Equal(entry.DeliveryStart) }); dup {
			continue
		}
		ticks = append(ticks, price.NewRawTick(
			entry.DeliveryStart.In(day.Location()),
			entry.DeliveryEnd.In(day.Location()),
			decimal.NewFromFloat(v).Div(perMWh).Round(5)))
	}
	return ticks, nil
}
