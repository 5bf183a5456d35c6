package entity

import (
	"context"
	"sync"

	"github.com/icodeforyou/spotpilot-go/types/maybe"
)

type Listener func(ctx context.Context, c Change)

// Observed wraps a Store and notifies listeners after every successful write.
// Listeners run synchronously on the writing goroutine.
type Observed struct {
	Store
	mu        sync.RWMutex
	listeners []Listener
}

func NewObserved(s Store) *Observed {
	return &Observed{Store: s}
}

func (o *Observed) Subscribe(l Listener) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, l)
}

func (o *Observed) SetState(ctx context.Context, id string, state string) error {
	old, err := o.Store.State(ctx, id)
	if err != nil {
		old = maybe.None[string]()
	}
	if err := o.Store.SetState(ctx, id, state); err != nil {
		return err
	}
	o.notify(ctx, Change{ID: id, Old: old, New: state})
	return nil
}

func (o *Observed) SetAttribute(ctx context.Context, id string, name string, value any) error {
	if err := o.Store.SetAttribute(ctx, id, name, value); err != nil {
		return err
	}
	o.notify(ctx, Change{ID: id, Attribute: name, Value: value})
	return nil
}

func (o *Observed) notify(ctx context.Context, c Change) {
	o.mu.RLock()
	listeners := append([]Listener(nil), o.listeners...)
	o.mu.RUnlock()
	for _, l := range listeners {
		l(ctx, c)
	}
}
