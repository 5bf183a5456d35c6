package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/icodeforyou/spotpilot-go/entity"
	"github.com/icodeforyou/spotpilot-go/types/maybe"
)

// State implements entity.Store.
func (d *Database) State(ctx context.Context, id string) (maybe.Maybe[string], error) {
	var state string
	err := d.read.QueryRowContext(ctx, `SELECT state FROM entity WHERE id = ?`, id).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return maybe.None[string](), nil
	}
	if err != nil {
		return maybe.None[string](), fmt.Errorf("reading state of %s: %w", id, err)
	}
	if entity.Unavailable(state) {
		return maybe.None[string](), nil
	}
	return maybe.Some(state), nil
}

// SetState implements entity.Store. Numeric states are also appended to the
// state history.
func (d *Database) SetState(ctx context.Context, id string, state string) error {
	now := d.now()
	return d.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO entity (id, state, updated_at) VALUES (?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
			id, state, now.Unix())
		if err != nil {
			return fmt.Errorf("writing state of %s: %w", id, err)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(state), 64)
		if err != nil {
			return nil
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO state_history (entity_id, ts, value) VALUES (?, ?, ?)`,
			id, now.UnixMilli(), v)
		if err != nil {
			return fmt.Errorf("writing history of %s: %w", id, err)
		}
		return nil
	})
}

// Attributes implements entity.Store.
func (d *Database) Attributes(ctx context.Context, id string) (entity.Attributes, error) {
	var raw string
	err := d.read.QueryRowContext(ctx, `SELECT attributes FROM entity WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Attributes{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading attributes of %s: %w", id, err)
	}
	return decodeAttributes(id, raw)
}

// SetAttribute implements entity.Store.
func (d *Database) SetAttribute(ctx context.Context, id string, name string, value any) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		var raw string
		err := tx.QueryRowContext(ctx, `SELECT attributes FROM entity WHERE id = ?`, id).Scan(&raw)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("reading attributes of %s: %w", id, err)
		}
		attrs := entity.Attributes{}
		if raw != "" {
			if attrs, err = decodeAttributes(id, raw); err != nil {
				return err
			}
		}
		attrs[name] = value
		data, err := json.Marshal(attrs)
		if err != nil {
			return fmt.Errorf("attribute %s.%s: %w", id, name, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO entity (id, attributes, updated_at) VALUES (?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET attributes = excluded.attributes, updated_at = excluded.updated_at`,
			id, string(data), d.now().Unix())
		if err != nil {
			return fmt.Errorf("writing attributes of %s: %w", id, err)
		}
		return nil
	})
}

// EntityIDs lists all known entities in id order.
func (d *Database) EntityIDs(ctx context.Context) ([]string, error) {
	rows, err := d.read.QueryContext(ctx, `SELECT id FROM entity ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading entity rows: %w", err)
	}
	return ids, nil
}

func decodeAttributes(id, raw string) (entity.Attributes, error) {
	attrs := entity.Attributes{}
	if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
		return nil, fmt.Errorf("decoding attributes of %s: %w", id, err)
	}
	return attrs, nil
}
