package costzone

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func ds(values ...float64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = d(v)
	}
	return out
}

func testThresholds(t *testing.T) Thresholds {
	th, ok := NewThresholds(ds(1, 2, 3, 6))
	require.True(t, ok)
	return th
}

func TestThresholds(t *testing.T) {
	th := testThresholds(t)
	assert.True(t, th.Avg.Equal(d(3)))
	assert.True(t, th.Cheap.Equal(d(2)))
	assert.True(t, th.Expensive.Equal(d(4.5)))

	_, ok := NewThresholds(nil)
	assert.False(t, ok)
}

func TestClassify(t *testing.T) {
	th := testThresholds(t)
	tests := []struct {
		price float64
		want  int
	}{
		{0.5, Cheap},
		{1.99, Cheap},
		{2, BelowAverage},
		{2.99, BelowAverage},
		{3, AboveAverage},
		{4.49, AboveAverage},
		{4.5, Expensive},
		{100, Expensive},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, th.Classify(d(tt.price)), "price %v", tt.price)
	}
}

func TestClassifyIsMonotonic(t *testing.T) {
	th := testThresholds(t)
	prev := Cheap
	for p := 0.0; p < 8; p += 0.05 {
		z := th.Classify(d(p))
		assert.GreaterOrEqual(t, z, prev)
		prev = z
	}
}

func TestSmooth(t *testing.T) {
	th := testThresholds(t)
	tests := []struct {
		name          string
		current       float64
		previous      int
		hasPrevious   bool
		lookahead     []decimal.Decimal
		wantZone      int
		wantAgreement float64
	}{
		{"no previous zone", 5, 0, false, nil, Expensive, 1},
		{"unchanged", 5, Expensive, true, ds(1, 1, 1, 1), Expensive, 1},
		{"too little lookahead", 5, Cheap, true, ds(1), Expensive, 1},
		{"sustained change", 5, Cheap, true, ds(5, 5, 5, 1), Expensive, 0.75},
		{"spike is ignored", 5, Cheap, true, ds(5, 1, 1, 1), Cheap, 0.25},
		{"no agreement", 2.5, AboveAverage, true, ds(1, 1), AboveAverage, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Smooth(th, d(tt.current), tt.previous, tt.hasPrevious, tt.lookahead)
			assert.Equal(t, tt.wantZone, res.Zone)
			assert.Equal(t, th.Classify(d(tt.current)), res.RawZone)
			assert.InDelta(t, tt.wantAgreement, res.Agreement, 1e-9)
			assert.Equal(t, len(tt.lookahead), res.LookaheadCount)
		})
	}
}

func TestSmoothIsStableWhenRepeated(t *testing.T) {
	th := testThresholds(t)
	res := Smooth(th, d(5), Cheap, true, ds(5, 5, 5, 5))
	for range 5 {
		again := Smooth(th, d(5), res.Zone, true, ds(5, 5, 5, 5))
		assert.Equal(t, res.Zone, again.Zone)
		assert.Equal(t, again.Zone, again.RawZone)
		res = again
	}
}

// An unchanged smoothed zone reports full agreement only when the raw zone
// matched or the lookahead was too short.
func TestSmoothAgreementWhenZoneKept(t *testing.T) {
	th := testThresholds(t)
	lookaheads := [][]decimal.Decimal{nil, ds(1), ds(1, 1), ds(5, 1, 1), ds(5, 5, 5, 5), ds(2.5, 2.5)}
	for prev := Cheap; prev <= Expensive; prev++ {
		for _, p := range []float64{0.5, 2.5, 3.5, 5} {
			for _, la := range lookaheads {
				res := Smooth(th, d(p), prev, true, la)
				if res.Zone != prev || res.Agreement != 1.0 {
					continue
				}
				assert.True(t, res.RawZone == prev || len(la) < MinLookahead,
					"prev %d price %v lookahead %v", prev, p, la)
			}
		}
	}
}
