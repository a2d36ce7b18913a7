package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TestResolve verifies the year-rollover rule, including leap-year seeds.
func TestResolve(t *testing.T) {
	// Reference: June 15th, 2025 (non-leap year)
	ref := time.Date(2025, 6, 15, 18, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		seed string
		want time.Time
		desc string
	}{
		{"Passed this year", "1990-01-01", day(2026, 1, 1), "Jan 1 is before June 15, so next occurrence is 2026"},
		{"Later this year", "1990-12-31", day(2025, 12, 31), "Dec 31 is after June 15, so next occurrence is 2025"},
		{"Today", "1990-06-15", day(2025, 6, 15), "An occurrence today is not rolled forward"},
		{"Yesterday", "1990-06-14", day(2026, 6, 14), "Yesterday rolls to next year"},
		{"Future seed year", "2030-07-01", day(2025, 7, 1), "The stored year never matters"},
		{"Leapling, non-leap target", "2000-02-29", day(2026, 3, 1), "Feb 29 normalizes to March 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Resolve(tt.seed, ref)
			require.True(t, ok)
			assert.Equal(t, tt.want, got, tt.desc)
		})
	}
}

func TestResolve_LeapYearContext(t *testing.T) {
	got, ok := Resolve("2000-02-29", day(2024, 1, 1))
	require.True(t, ok)
	assert.Equal(t, day(2024, 2, 29), got, "In a leap year the occurrence stays on Feb 29")

	// March 1st of a non-leap year is the leapling's day itself.
	got, ok = Resolve("2000-02-29", day(2025, 3, 1))
	require.True(t, ok)
	assert.Equal(t, day(2025, 3, 1), got)
}

func TestResolve_Malformed(t *testing.T) {
	for _, seed := range []string{"", "not-a-date", "2024-13-01", "2024-02-30", "14/03/1990", "1990-3-14"} {
		_, ok := Resolve(seed, day(2025, 1, 1))
		assert.False(t, ok, "seed %q must not resolve", seed)
	}
}

// TestResolve_Properties walks a year of references against a set of seeds and
// checks the result keeps month/day, is on or after the reference, and is the
// earliest such date.
func TestResolve_Properties(t *testing.T) {
	seeds := []string{"1990-01-01", "1985-03-14", "2001-07-31", "1970-12-31", "2010-02-28"}
	start := day(2023, 11, 1)

	for i := 0; i < 500; i += 7 {
		ref := start.AddDate(0, 0, i)
		for _, seed := range seeds {
			seedDate, _ := ParseSeed(seed)
			got, ok := Resolve(seed, ref)
			require.True(t, ok)

			assert.Equal(t, seedDate.Month(), got.Month(), "seed %s ref %s", seed, ref)
			assert.Equal(t, seedDate.Day(), got.Day(), "seed %s ref %s", seed, ref)
			assert.False(t, got.Before(ref), "seed %s ref %s", seed, ref)

			previous := got.AddDate(-1, 0, 0)
			assert.True(t, previous.Before(ref), "seed %s ref %s: a year earlier must already be past", seed, ref)
		}
	}
}

func TestResolveInYear_NoRollover(t *testing.T) {
	got, ok := ResolveInYear("1990-01-10", 2024)
	require.True(t, ok)
	assert.Equal(t, day(2024, 1, 10), got)

	_, ok = ResolveInYear("garbage", 2024)
	assert.False(t, ok)
}

func TestMatchesCycle(t *testing.T) {
	const seed = "1990-03-14"

	tests := []struct {
		name  string
		month int
		year  int
		want  bool
	}{
		{"Both match", 3, 1990, true},
		{"Month only", 3, 0, true},
		{"Year only", 0, 1990, true},
		{"No filters", 0, 0, true},
		{"Wrong month", 4, 1990, false},
		{"Recurrence year is not the stored year", 3, 2024, false},
		{"Wrong year only", 0, 1991, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesCycle(seed, tt.month, tt.year))
		})
	}

	assert.False(t, MatchesCycle("not-a-date", 0, 0), "malformed seeds never match")
	assert.False(t, MatchesCycle("", 0, 0), "empty seeds never match")
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 0, DaysBetween(day(2024, 1, 5), time.Date(2024, 1, 5, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, 5, DaysBetween(time.Date(2024, 1, 5, 22, 0, 0, 0, time.UTC), day(2024, 1, 10)))
	assert.Equal(t, 365, DaysBetween(day(2024, 1, 11), day(2025, 1, 10)), "2024 is a leap year")
	assert.Equal(t, 364, DaysBetween(day(2025, 1, 11), day(2026, 1, 10)))
	assert.Equal(t, -1, DaysBetween(day(2024, 1, 2), day(2024, 1, 1)))
}

func TestParseDate_VCardFormats(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		want      time.Time
		yearKnown bool
		wantErr   bool
	}{
		{"ISO8601 Standard", "1990-10-25", day(1990, 10, 25), true, false},
		{"Basic Format", "19901025", day(1990, 10, 25), true, false},
		{"RFC3339", "1990-10-25T00:00:00Z", day(1990, 10, 25), true, false},
		{"Truncated (Month-Day)", "--10-25", day(2000, 10, 25), false, false},
		{"Truncated Basic", "--1025", day(2000, 10, 25), false, false},
		{"Truncated Leap Day", "--02-29", day(2000, 2, 29), false, false},
		{"Garbage Data", "not-a-date", time.Time{}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, yearKnown, err := parseDate(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got))
			assert.Equal(t, tt.yearKnown, yearKnown)
		})
	}
}
