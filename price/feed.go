package price

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/icodeforyou/spotpilot-go/entity"
	"github.com/icodeforyou/spotpilot-go/types/maybe"
	"github.com/shopspring/decimal"
)

const (
	AttrRawToday      = "raw_today"
	AttrRawTomorrow   = "raw_tomorrow"
	AttrTomorrowValid = "tomorrow_valid"
)

// Feed is the raw tick data of a price entity.
type Feed struct {
	Today         []RawTick
	Tomorrow      []RawTick
	TomorrowValid bool
	// Flat is the entity state, used as fallback when no tick matches.
	Flat maybe.Maybe[decimal.Decimal]
}

// Intervals returns today's normalized intervals followed by tomorrow's when
// they are flagged valid and present. Today without a single well formed tick
// is no data.
func (f Feed) Intervals() ([]Interval, Source) {
	intervals := Normalize(f.Today)
	if len(intervals) == 0 {
		return nil, NoData
	}
	if f.TomorrowValid {
		if tomorrow := Normalize(f.Tomorrow); len(tomorrow) > 0 {
			return append(intervals, tomorrow...), TodayTomorrow
		}
	}
	return intervals, TodayOnly
}

// ReadFeed loads the tick attributes of a price entity. Missing attributes
// yield an empty feed, malformed ones an error.
func ReadFeed(ctx context.Context, s entity.Store, id string) (Feed, error) {
	attrs, err := s.Attributes(ctx, id)
	if err != nil {
		return Feed{}, fmt.Errorf("reading %s: %w", id, err)
	}

	var f Feed
	if err := decodeTicks(attrs, AttrRawToday, &f.Today); err != nil {
		return Feed{}, err
	}
	if err := decodeTicks(attrs, AttrRawTomorrow, &f.Tomorrow); err != nil {
		return Feed{}, err
	}
	f.TomorrowValid = entity.AttrBool(attrs, AttrTomorrowValid)
	if v, ok := entity.Float(ctx, s, id).Get(); ok {
		f.Flat = maybe.Some(decimal.NewFromFloat(v))
	}
	return f, nil
}

// WriteFeed mirrors ticks into a price entity, the state becomes current.
func WriteFeed(ctx context.Context, s entity.Store, id string, f Feed, current maybe.Maybe[decimal.Decimal]) error {
	if err := entity.SetAttributes(ctx, s, id, entity.Attributes{
		AttrRawToday:      nonNil(f.Today),
		AttrRawTomorrow:   nonNil(f.Tomorrow),
		AttrTomorrowValid: f.TomorrowValid,
	}); err != nil {
		return fmt.Errorf("writing %s ticks: %w", id, err)
	}
	state := "unavailable"
	if v, ok := current.Get(); ok {
		state = v.String()
	}
	if err := s.SetState(ctx, id, state); err != nil {
		return fmt.Errorf("writing %s state: %w", id, err)
	}
	return nil
}

// decodeTicks decodes tick by tick, a tick with unparsable fields is kept as
// an empty tick so Normalize drops it like any other malformed tick.
func decodeTicks(attrs entity.Attributes, name string, out *[]RawTick) error {
	var raw []json.RawMessage
	err := entity.DecodeAttribute(attrs, name, &raw)
	if errors.Is(err, entity.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	ticks := make([]RawTick, len(raw))
	for i, r := range raw {
		if err := json.Unmarshal(r, &ticks[i]); err != nil {
			ticks[i] = RawTick{}
		}
	}
	*out = ticks
	return nil
}

func nonNil(ticks []RawTick) []RawTick {
	if ticks == nil {
		return []RawTick{}
	}
	return ticks
}
