package engine

import "time"

// Clock abstracts time.Now() to allow deterministic testing.
// It is used by the Engine to determine "today" for every window computation.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

// today returns the UTC calendar date of the clock's current instant.
func today(c Clock) time.Time {
	return dateOf(c.Now().UTC())
}
