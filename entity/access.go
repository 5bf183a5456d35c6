package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/icodeforyou/spotpilot-go/types/maybe"
)

// The accessors below fold store errors and unparsable states into None,
// callers only deal with "known" or "unavailable".

func String(ctx context.Context, s Store, id string) maybe.Maybe[string] {
	m, err := s.State(ctx, id)
	if err != nil {
		return maybe.None[string]()
	}
	return m
}

func Float(ctx context.Context, s Store, id string) maybe.Maybe[float64] {
	str, ok := String(ctx, s, id).Get()
	if !ok {
		return maybe.None[float64]()
	}
	return parseFloat(str)
}

// Bool is true for "on" and "true", anything else including unavailable is false.
func Bool(ctx context.Context, s Store, id string) bool {
	str, ok := String(ctx, s, id).Get()
	return ok && isTrue(str)
}

func Time(ctx context.Context, s Store, id string) maybe.Maybe[time.Time] {
	str, ok := String(ctx, s, id).Get()
	if !ok {
		return maybe.None[time.Time]()
	}
	return parseTime(str)
}

func AttrFloat(attrs Attributes, name string) maybe.Maybe[float64] {
	switch v := attrs[name].(type) {
	case float64:
		return maybe.Some(v)
	case float32:
		return maybe.Some(float64(v))
	case int:
		return maybe.Some(float64(v))
	case int64:
		return maybe.Some(float64(v))
	case json.Number:
		f, err := v.Float64()
		return maybe.SqlNull(f, err == nil)
	case string:
		return parseFloat(v)
	}
	return maybe.None[float64]()
}

func AttrString(attrs Attributes, name string) maybe.Maybe[string] {
	switch v := attrs[name].(type) {
	case string:
		return maybe.Some(v)
	case nil:
		return maybe.None[string]()
	default:
		return maybe.Some(fmt.Sprint(v))
	}
}

func AttrBool(attrs Attributes, name string) bool {
	switch v := attrs[name].(type) {
	case bool:
		return v
	case string:
		return isTrue(v)
	}
	return false
}

func AttrTime(attrs Attributes, name string) maybe.Maybe[time.Time] {
	str, ok := AttrString(attrs, name).Get()
	if !ok {
		return maybe.None[time.Time]()
	}
	return parseTime(str)
}

// DecodeAttribute decodes a structured attribute into out, which must be a pointer.
func DecodeAttribute(attrs Attributes, name string, out any) error {
	v, ok := attrs[name]
	if !ok || v == nil {
		return fmt.Errorf("attribute %s: %w", name, ErrNotFound)
	}
	if str, isStr := v.(string); isStr {
		if err := json.Unmarshal([]byte(str), out); err == nil {
			return nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("attribute %s: %w", name, err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("attribute %s: %w", name, err)
	}
	return nil
}

func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func FormatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func parseFloat(str string) maybe.Maybe[float64] {
	f, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
	return maybe.SqlNull(f, err == nil)
}

func parseTime(str string) maybe.Maybe[time.Time] {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(str))
	return maybe.SqlNull(t, err == nil)
}

func isTrue(str string) bool {
	switch strings.ToLower(strings.TrimSpace(str)) {
	case "on", "true":
		return true
	}
	return false
}
