// Package entity is the named key/value state store shared by all
// controllers. Every entity has a string state and a set of attributes.
package entity

import (
	"context"
	"errors"
	"strings"

	"github.com/icodeforyou/spotpilot-go/types/maybe"
)

var ErrNotFound = errors.New("entity not found")

// Attributes are loosely typed, values must be JSON serializable.
type Attributes map[string]any

type Store interface {
	// State returns None when the entity is unknown or reports an unavailable state.
	State(ctx context.Context, id string) (maybe.Maybe[string], error)
	SetState(ctx context.Context, id string, state string) error
	// Attributes returns an empty, non nil map for unknown entities.
	Attributes(ctx context.Context, id string) (Attributes, error)
	SetAttribute(ctx context.Context, id string, name string, value any) error
}

// Change describes a state or attribute write.
type Change struct {
	ID        string
	Attribute string // empty for state changes
	Old       maybe.Maybe[string]
	New       string
	Value     any // attribute value
}

func (c Change) IsState() bool {
	return c.Attribute == ""
}

// BecameEqual reports whether a state change moved the state to value.
func (c Change) BecameEqual(value string) bool {
	if !c.IsState() || c.New != value {
		return false
	}
	old, ok := c.Old.Get()
	return !ok || old != value
}

// SetAttributes writes several attributes, stopping at the first error.
func SetAttributes(ctx context.Context, s Store, id string, attrs Attributes) error {
	for name, value := range attrs {
		if err := s.SetAttribute(ctx, id, name, value); err != nil {
			return err
		}
	}
	return nil
}

// Unavailable reports whether a raw state means the value is unknown.
func Unavailable(state string) bool {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "", "unavailable", "unknown", "none", "null":
		return true
	}
	return false
}
