package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sync"

	"github.com/icodeforyou/spotpilot-go/types/maybe"
)

type memRecord struct {
	state string
	attrs Attributes
}

// MemStore keeps entities in memory. Attribute values are passed through a
// JSON round trip so readers see the same shapes as with a persistent store.
type MemStore struct {
	mu       sync.RWMutex
	entities map[string]*memRecord
}

func NewMemStore() *MemStore {
	return &MemStore{entities: make(map[string]*memRecord)}
}

func (s *MemStore) State(_ context.Context, id string) (maybe.Maybe[string], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.entities[id]
	if !ok || Unavailable(r.state) {
		return maybe.None[string](), nil
	}
	return maybe.Some(r.state), nil
}

func (s *MemStore) SetState(_ context.Context, id string, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(id).state = state
	return nil
}

func (s *MemStore) Attributes(_ context.Context, id string) (Attributes, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.entities[id]
	if !ok {
		return Attributes{}, nil
	}
	return maps.Clone(r.attrs), nil
}

func (s *MemStore) SetAttribute(_ context.Context, id string, name string, value any) error {
	v, err := normalizeValue(value)
	if err != nil {
		return fmt.Errorf("attribute %s.%s: %w", id, name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(id).attrs[name] = v
	return nil
}

// IDs returns the ids of all known entities.
func (s *MemStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}
	return ids
}

func (s *MemStore) record(id string) *memRecord {
	r, ok := s.entities[id]
	if !ok {
		r = &memRecord{attrs: Attributes{}}
		s.entities[id] = r
	}
	return r
}

func normalizeValue(value any) (any, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}
