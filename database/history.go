package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/icodeforyou/spotpilot-go/costs"
	"github.com/shopspring/decimal"
)

// Samples implements costs.History from the numeric state history.
func (d *Database) Samples(ctx context.Context, from, to time.Time, ids ...string) (map[string][]costs.Sample, error) {
	out := make(map[string][]costs.Sample, len(ids))
	for _, id := range ids {
		rows, err := d.read.QueryContext(ctx, `
			SELECT ts, value FROM (
				SELECT ts, value FROM state_history
				WHERE entity_id = ? AND ts < ?
				ORDER BY ts DESC LIMIT 1
			)
			UNION ALL
			SELECT ts, value FROM state_history
			WHERE entity_id = ? AND ts >= ? AND ts <= ?
			ORDER BY ts`,
			id, from.UnixMilli(), id, from.UnixMilli(), to.UnixMilli())
		if err != nil {
			return nil, fmt.Errorf("fetching history of %s: %w", id, err)
		}
		samples, err := scanSamples(rows)
		if err != nil {
			return nil, fmt.Errorf("reading history of %s: %w", id, err)
		}
		out[id] = samples
	}
	return out, nil
}

func scanSamples(rows *sql.Rows) ([]costs.Sample, error) {
	defer rows.Close()
	var samples []costs.Sample
	for rows.Next() {
		var ts int64
		var v float64
		if err := rows.Scan(&ts, &v); err != nil {
			return nil, err
		}
		samples = append(samples, costs.Sample{Time: time.UnixMilli(ts), Value: v})
	}
	return samples, rows.Err()
}

// SpotPrices implements costs.History and costzone.PriceHistory.
func (d *Database) SpotPrices(ctx context.Context, from, to time.Time) ([]decimal.Decimal, error) {
	rows, err := d.read.QueryContext(ctx, `
		SELECT value FROM price_tick
		WHERE start_ts >= ? AND start_ts < ?
		ORDER BY start_ts`,
		from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("fetching spot prices: %w", err)
	}
	defer rows.Close()

	var prices []decimal.Decimal
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing spot price %q: %w", raw, err)
		}
		prices = append(prices, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading spot price rows: %w", err)
	}
	return prices, nil
}

// PurgeStateHistory drops history older than the retention.
func (d *Database) PurgeStateHistory(ctx context.Context, retentionDays int) error {
	if retentionDays < 1 {
		return nil
	}
	return d.purgeBefore(ctx, "state_history", "ts", d.retentionCutoff(retentionDays).UnixMilli())
}
