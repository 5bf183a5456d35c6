package maybe

import "testing"

func TestMaybe(t *testing.T) {
	some := Some(4.5)
	if v, ok := some.Get(); !ok || v != 4.5 {
		t.Errorf("got %f/%v, wanted 4.5/true", v, ok)
	}

	none := None[float64]()
	if none.IsValid() {
		t.Errorf("none should not be valid")
	}
	if got := none.ValueOrDefault(3); got != 3 {
		t.Errorf("got %f, wanted 3", got)
	}
	if none.Any() != nil {
		t.Errorf("none.Any() should be nil")
	}

	doubled := Map(some, func(v float64) int { return int(v * 2) })
	if doubled.Value() != 9 {
		t.Errorf("got %d, wanted 9", doubled.Value())
	}
	if Map(none, func(v float64) int { return 1 }).IsValid() {
		t.Errorf("mapping none should give none")
	}
}
