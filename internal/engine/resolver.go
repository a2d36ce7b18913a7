package engine

import (
	"time"

	"github.com/tartampluch/onefam/internal/config"
)

const hoursPerDay = 24

// ParseSeed parses a stored seed date in YYYY-MM-DD form.
// It reports false for empty or malformed input instead of returning an error:
// a bad seed only means "no occurrence" for that field.
func ParseSeed(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(config.DateFormatSeed, value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Resolve returns the next occurrence of seed on or after ref.
//
// The seed's year is replaced with ref's year; if that date is strictly
// before ref the following year is used. A Feb-29 seed resolves to March 1
// in non-leap years (time.Date normalization).
func Resolve(seed string, ref time.Time) (time.Time, bool) {
	seedDate, ok := ParseSeed(seed)
	if !ok {
		return time.Time{}, false
	}
	return nextOccurrence(seedDate, dateOf(ref)), true
}

// ResolveInYear returns seed's occurrence inside the given year, without
// rolling forward.
func ResolveInYear(seed string, year int) (time.Time, bool) {
	seedDate, ok := ParseSeed(seed)
	if !ok {
		return time.Time{}, false
	}
	return anchor(seedDate, year), true
}

// MatchesCycle reports whether seed's literal stored date falls in the
// requested month and year. Zero means "any" for either filter. The year is
// compared with the stored year, not a recurrence-adjusted one.
func MatchesCycle(seed string, month, year int) bool {
	seedDate, ok := ParseSeed(seed)
	if !ok {
		return false
	}
	if month != 0 && int(seedDate.Month()) != month {
		return false
	}
	if year != 0 && seedDate.Year() != year {
		return false
	}
	return true
}

// DaysBetween returns the number of whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(dateOf(b).Sub(dateOf(a)).Hours() / hoursPerDay)
}

// nextOccurrence is the year-rollover rule shared by every windowed consumer.
func nextOccurrence(seedDate, ref time.Time) time.Time {
	candidate := anchor(seedDate, ref.Year())
	if candidate.Before(ref) {
		candidate = anchor(seedDate, ref.Year()+1)
	}
	return candidate
}

// anchor places seedDate's month and day in year, at UTC midnight.
func anchor(seedDate time.Time, year int) time.Time {
	return time.Date(year, seedDate.Month(), seedDate.Day(), 0, 0, 0, 0, time.UTC)
}

// dateOf truncates t to its calendar date at UTC midnight.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
