// Package elprisetjustnu fetches Swedish day-ahead spot prices from
// elprisetjustnu.se.
package elprisetjustnu

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/icodeforyou/spotpilot-go/price"
	"github.com/shopspring/decimal"
)

const DefaultBaseURL = "https://www.elprisetjustnu.se"

type rawPrice struct {
	SEKPerKWh float64   `json:"SEK_per_kWh"`
	EURPerKWh float64   `json:"EUR_per_kWh"`
	EXR       float64   `json:"EXR"`
	TimeStart time.Time `json:"time_start"`
	TimeEnd   time.Time `json:"time_end"`
}

type ElPrisetJustNu struct {
	area    string
	baseURL string
	client  *http.Client
}

func New(area string) ElPrisetJustNu {
	return ElPrisetJustNu{
		area:    area,
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// WithBaseURL points the client to another host, used by tests.
func (e ElPrisetJustNu) WithBaseURL(url string) ElPrisetJustNu {
	e.baseURL = url
	return e
}

func (e ElPrisetJustNu) Name() string {
	return "elprisetjustnu"
}

// Ticks returns the SEK/kWh prices of the local day containing day. A day
// not yet published yields no ticks and no error.
func (e ElPrisetJustNu) Ticks(ctx context.Context, day time.Time) ([]price.RawTick, error) {
	url := fmt.Sprintf("%s/api/v1/prices/%d/%02d-%02d_%s.json",
		e.baseURL, day.Year(), int(day.Month()), day.Day(), e.area)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var rawPrices []rawPrice
	if err := json.NewDecoder(resp.Body).Decode(&rawPrices); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	ticks := make([]price.RawTick, 0, len(rawPrices))
	for _, raw := range rawPrices {
		ticks = append(ticks, price.NewRawTick(raw.TimeStart, raw.TimeEnd, decimal.NewFromFloat(raw.SEKPerKWh)))
	}
	return ticks, nil
}
