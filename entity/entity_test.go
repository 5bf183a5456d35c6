package entity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStoreStateAndAccessors(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	assert.False(t, Float(ctx, s, "sensor.missing").IsValid())

	require.NoError(t, s.SetState(ctx, "sensor.temp", "47.5"))
	assert.Equal(t, 47.5, Float(ctx, s, "sensor.temp").Value())

	require.NoError(t, s.SetState(ctx, "sensor.temp", "unavailable"))
	assert.False(t, Float(ctx, s, "sensor.temp").IsValid())

	require.NoError(t, s.SetState(ctx, "sensor.temp", "garbage"))
	assert.False(t, Float(ctx, s, "sensor.temp").IsValid())

	require.NoError(t, s.SetState(ctx, "binary_sensor.cable", "on"))
	assert.True(t, Bool(ctx, s, "binary_sensor.cable"))
	require.NoError(t, s.SetState(ctx, "binary_sensor.cable", "off"))
	assert.False(t, Bool(ctx, s, "binary_sensor.cable"))

	ts := time.Date(2025, 5, 1, 4, 30, 0, 0, time.UTC)
	require.NoError(t, s.SetState(ctx, "sensor.sun", FormatTime(ts)))
	assert.True(t, Time(ctx, s, "sensor.sun").Value().Equal(ts))
}

func TestMemStoreAttributes(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	attrs, err := s.Attributes(ctx, "unknown")
	require.NoError(t, err)
	assert.NotNil(t, attrs)
	assert.Empty(t, attrs)

	type tick struct {
		Start string  `json:"start"`
		Value float64 `json:"value"`
	}
	require.NoError(t, s.SetAttribute(ctx, "sensor.price", "raw_today", []tick{{Start: "a", Value: 1.5}}))
	require.NoError(t, s.SetAttribute(ctx, "sensor.price", "count", 3))
	require.NoError(t, s.SetAttribute(ctx, "sensor.price", "valid", true))

	attrs, err = s.Attributes(ctx, "sensor.price")
	require.NoError(t, err)
	assert.Equal(t, 3.0, AttrFloat(attrs, "count").Value())
	assert.True(t, AttrBool(attrs, "valid"))

	var ticks []tick
	require.NoError(t, DecodeAttribute(attrs, "raw_today", &ticks))
	assert.Equal(t, []tick{{Start: "a", Value: 1.5}}, ticks)

	assert.ErrorIs(t, DecodeAttribute(attrs, "missing", &ticks), ErrNotFound)

	// a state of an entity that only has attributes is unavailable
	assert.False(t, String(ctx, s, "sensor.price").IsValid())
}

func TestDecodeAttributeFromJSONString(t *testing.T) {
	attrs := Attributes{"schedule": `{"mode":"idle"}`}
	var out struct {
		Mode string `json:"mode"`
	}
	require.NoError(t, DecodeAttribute(attrs, "schedule", &out))
	assert.Equal(t, "idle", out.Mode)
}

func TestObservedNotifiesTransitions(t *testing.T) {
	ctx := context.Background()
	o := NewObserved(NewMemStore())

	var changes []Change
	o.Subscribe(func(_ context.Context, c Change) { changes = append(changes, c) })

	require.NoError(t, o.SetState(ctx, EvChargeCable, "off"))
	require.NoError(t, o.SetState(ctx, EvChargeCable, "on"))
	require.NoError(t, o.SetState(ctx, EvChargeCable, "on"))
	require.NoError(t, o.SetAttribute(ctx, EvChargeCable, "friendly_name", "Cable"))

	require.Len(t, changes, 4)
	assert.False(t, changes[0].BecameEqual("on"))
	assert.True(t, changes[1].BecameEqual("on"))
	assert.False(t, changes[2].BecameEqual("on"), "unchanged state is not a transition")
	assert.False(t, changes[3].IsState())
}

func TestKeyedMutex(t *testing.T) {
	k := NewKeyedMutex()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("a")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestIsOutput(t *testing.T) {
	assert.True(t, IsOutput(HotWaterStatus))
	assert.False(t, IsOutput(GridPower))
}
