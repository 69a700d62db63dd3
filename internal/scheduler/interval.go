package scheduler

import (
	"errors"
	"time"
)

// ErrInvalidInterval is returned when an interval does not satisfy start < end.
var ErrInvalidInterval = errors.New("scheduler: start must be before end")

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval validates and returns the interval [start, end).
func NewInterval(start, end time.Time) (Interval, error) {
	interval := Interval{Start: start, End: end}
	if err := interval.Validate(); err != nil {
		return Interval{}, err
	}
	return interval, nil
}

// Validate rejects zero-length, inverted, and unset intervals.
func (i Interval) Validate() error {
	if i.Start.IsZero() || i.End.IsZero() {
		return ErrInvalidInterval
	}
	if !i.Start.Before(i.End) {
		return ErrInvalidInterval
	}
	return nil
}

// Overlaps reports whether the two intervals share at least one instant.
// Touching endpoints do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Intersects is the inclusive variant used for display range queries: an
// interval ending exactly at the range start is still reported.
func (i Interval) Intersects(rangeStart, rangeEnd time.Time) bool {
	return !i.Start.After(rangeEnd) && !i.End.Before(rangeStart)
}

// Contains reports whether t falls inside [Start, End).
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

// Duration returns the length of the interval.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Equal compares both bounds as instants, ignoring location.
func (i Interval) Equal(other Interval) bool {
	return i.Start.Equal(other.Start) && i.End.Equal(other.End)
}

// UTC returns the interval with both bounds converted to UTC.
func (i Interval) UTC() Interval {
	return Interval{Start: i.Start.UTC(), End: i.End.UTC()}
}
