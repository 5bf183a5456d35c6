package hours

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Quarter is the length of one price and scheduling slot.
const Quarter = 15 * time.Minute

var location atomic.Pointer[time.Location]

func init() {
	loc, err := time.LoadLocation("Europe/Stockholm")
	if err != nil {
		panic(fmt.Sprintf("failed to load Stockholm location: %v", err))
	}
	location.Store(loc)
}

// SetLocation sets the location used for all wall clock calculations.
func SetLocation(timezone string) error {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone %s: %w", timezone, err)
	}
	location.Store(loc)
	return nil
}

func Location() *time.Location {
	return location.Load()
}

// Now returns the current time in the configured location.
func Now() time.Time {
	return time.Now().In(Location())
}

// TruncateHour returns the start of the wall clock hour containing t, in t's
// location. It steps back from the instant instead of rebuilding the date, so
// the repeated hour of a DST fall back keeps its own start.
func TruncateHour(t time.Time) time.Time {
	return t.Add(-sinceHour(t)).Round(0)
}

// TruncateQuarter returns the start of the 15 minute slot containing t, in t's location.
func TruncateQuarter(t time.Time) time.Time {
	return t.Add(-(sinceHour(t) % Quarter)).Round(0)
}

func sinceHour(t time.Time) time.Duration {
	return time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second + time.Duration(t.Nanosecond())
}

func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar date in a's location.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// NextClock returns today's occurrence of hh:mm, or tomorrow's if now is at or past it.
func NextClock(now time.Time, hour, minute int) time.Time {
	at := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !now.Before(at) {
		at = at.AddDate(0, 0, 1)
	}
	return at
}

// ParseClock parses "15:04" into hour and minute.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// ClockOf returns the time of day of t as a duration since midnight.
func ClockOf(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second
}
