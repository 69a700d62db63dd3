// Package testfixtures wires the booking engine onto real stores with a
// controllable clock and deterministic identifiers for integration tests.
package testfixtures

import (
	"sync"
	"time"
)

// ReferenceTime is Monday 2025-04-07 09:00 UTC, the default start of every
// test clock.
var ReferenceTime = time.Date(2025, time.April, 7, 9, 0, 0, 0, time.UTC)

// Clock is a manually driven time source.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock returns a clock at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime
	}
	return &Clock{current: start}
}

// Now returns the clock time. It has the signature services expect for
// their now dependency.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}

// At returns ReferenceTime shifted by the given number of minutes. Booking
// scenarios read better in minute offsets.
func At(minutes int) time.Time {
	return ReferenceTime.Add(time.Duration(minutes) * time.Minute)
}
