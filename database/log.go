package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/icodeforyou/spotpilot-go/hours"
)

type LogEntryRow struct {
	ID        int64
	Timestamp time.Time
	Level     int
	Message   string
	Attrs     string
}

func (d *Database) SaveLogEntry(ctx context.Context, r LogEntryRow) error {
	if _, err := d.write.ExecContext(ctx,
		`INSERT INTO log (ts, level, message, attrs) VALUES (?, ?, ?, ?)`,
		r.Timestamp.UnixMilli(), r.Level, r.Message, r.Attrs); err != nil {
		return fmt.Errorf("saving log entry: %w", err)
	}
	return nil
}

// GetLogEntries pages through entries at or above minLvl, newest first.
// Pages start at 1.
func (d *Database) GetLogEntries(ctx context.Context, minLvl slog.Level, page, pageSize int) ([]LogEntryRow, error) {
	page = max(page, 1)
	if pageSize < 1 {
		pageSize = 10
	}

	rows, err := d.read.QueryContext(ctx, `
		SELECT id, ts, level, message, attrs
		FROM log
		WHERE level >= ?
		ORDER BY id DESC
		LIMIT ? OFFSET ?`,
		int(minLvl), pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("fetching log entries: %w", err)
	}
	defer rows.Close()

	entries := make([]LogEntryRow, 0, pageSize)
	for rows.Next() {
		var r LogEntryRow
		var ms int64
		if err := rows.Scan(&r.ID, &ms, &r.Level, &r.Message, &r.Attrs); err != nil {
			return nil, fmt.Errorf("scanning log entry: %w", err)
		}
		r.Timestamp = time.UnixMilli(ms).In(hours.Location())
		entries = append(entries, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading log rows: %w", err)
	}
	return entries, nil
}

// PurgeLog keeps the newest maxEntries entries, zero keeps everything.
func (d *Database) PurgeLog(ctx context.Context, maxEntries int) error {
	if maxEntries < 1 {
		return nil
	}
	var oldestKept int64
	err := d.read.QueryRowContext(ctx,
		`SELECT id FROM log ORDER BY id DESC LIMIT 1 OFFSET ?`, maxEntries-1).Scan(&oldestKept)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("finding log purge boundary: %w", err)
	}
	return d.purgeBefore(ctx, "log", "id", oldestKept)
}
