// Package system provides the wall clock used outside tests.
package system

import "time"

// Clock implements piracy.Clock. Timestamps are UTC at millisecond
// precision so they round-trip through Postgres and JSON unchanged.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// Fixed is a settable clock for deterministic callers such as
// schedule-once runs and tests in other packages.
type Fixed struct {
	At time.Time
}

// Now returns the fixed instant.
func (f Fixed) Now() time.Time {
	return f.At
}
