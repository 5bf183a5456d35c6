package database

import (
	"context"
	"fmt"
	"time"

	"github.com/icodeforyou/spotpilot-go/costs"
)

type LedgerRow struct {
	Hour time.Time `json:"hour"`
	costs.HourCosts
}

// RecordHour implements costs.Ledger. It reports false when the hour was
// already recorded, leaving the stored row untouched.
func (d *Database) RecordHour(ctx context.Context, hour time.Time, c costs.HourCosts) (bool, error) {
	res, err := d.write.ExecContext(ctx, `
		INSERT INTO cost_ledger (
			hour_ts, solar_savings, ev_without_solar, ev_with_solar,
			heat_pump_without_solar, heat_pump_with_solar, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (hour_ts) DO NOTHING`,
		hour.Unix(), c.SolarSavings, c.EVWithoutSolar, c.EVWithSolar,
		c.HeatPumpWithoutSolar, c.HeatPumpWithSolar, d.now().Unix())
	if err != nil {
		return false, fmt.Errorf("recording cost hour: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("recording cost hour: %w", err)
	}
	return n == 1, nil
}

// LedgerHours returns the recorded hours within [from, to), oldest first.
func (d *Database) LedgerHours(ctx context.Context, from, to time.Time) ([]LedgerRow, error) {
	rows, err := d.read.QueryContext(ctx, `
		SELECT hour_ts, solar_savings, ev_without_solar, ev_with_solar,
			heat_pump_without_solar, heat_pump_with_solar
		FROM cost_ledger
		WHERE hour_ts >= ? AND hour_ts < ?
		ORDER BY hour_ts`,
		from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("fetching cost ledger: %w", err)
	}
	defer rows.Close()

	var out []LedgerRow
	for rows.Next() {
		var ts int64
		var r LedgerRow
		if err := rows.Scan(&ts, &r.SolarSavings, &r.EVWithoutSolar, &r.EVWithSolar,
			&r.HeatPumpWithoutSolar, &r.HeatPumpWithSolar); err != nil {
			return nil, err
		}
		r.Hour = time.Unix(ts, 0).In(from.Location())
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading cost ledger rows: %w", err)
	}
	return out, nil
}
