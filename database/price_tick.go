package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/icodeforyou/spotpilot-go/price"
	"github.com/shopspring/decimal"
)

// SavePriceTicks upserts fetched ticks. Incomplete ticks are skipped.
func (d *Database) SavePriceTicks(ctx context.Context, source string, ticks []price.RawTick) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO price_tick (start_ts, end_ts, value, source) VALUES (?, ?, ?, ?)
			ON CONFLICT (start_ts) DO UPDATE SET
				end_ts = excluded.end_ts,
				value = excluded.value,
				source = excluded.source`)
		if err != nil {
			return fmt.Errorf("preparing price tick insert: %w", err)
		}
		defer stmt.Close()

		for _, t := range ticks {
			if t.Start == nil || t.End == nil || t.Value == nil {
				continue
			}
			if _, err := stmt.ExecContext(ctx, t.Start.Unix(), t.End.Unix(), t.Value.String(), source); err != nil {
				return fmt.Errorf("saving price tick %s: %w", t.Start, err)
			}
		}
		return nil
	})
}

// PriceTicks returns the stored ticks starting within [from, to).
func (d *Database) PriceTicks(ctx context.Context, from, to time.Time) ([]price.RawTick, error) {
	rows, err := d.read.QueryContext(ctx, `
		SELECT start_ts, end_ts, value FROM price_tick
		WHERE start_ts >= ? AND start_ts < ?
		ORDER BY start_ts`,
		from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("fetching price ticks: %w", err)
	}
	defer rows.Close()

	loc := from.Location()
	var ticks []price.RawTick
	for rows.Next() {
		var start, end int64
		var raw string
		if err := rows.Scan(&start, &end, &raw); err != nil {
			return nil, err
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing price tick value %q: %w", raw, err)
		}
		ticks = append(ticks, price.NewRawTick(time.Unix(start, 0).In(loc), time.Unix(end, 0).In(loc), v))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading price tick rows: %w", err)
	}
	return ticks, nil
}

func (d *Database) PurgePriceTicks(ctx context.Context, retentionDays int) error {
	if retentionDays < 1 {
		return nil
	}
	return d.purgeBefore(ctx, "price_tick", "start_ts", d.retentionCutoff(retentionDays).Unix())
}
