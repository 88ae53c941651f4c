package models

import "time"

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether the interval is well formed: End strictly after
// Start and both endpoints within sane calendar bounds.
func (i Interval) Valid() bool {
	if i.Start.IsZero() || i.End.IsZero() {
		return false
	}
	if !i.End.After(i.Start) {
		return false
	}
	if i.Start.Year() < 2000 || i.End.Year() > 2200 {
		return false
	}
	return true
}

// Overlaps implements the half-open intersection test: two intervals
// [a0,a1) and [b0,b1) overlap iff a0 < b1 && b0 < a1. The predicate is
// symmetric and adjacent intervals (a1 == b0) do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Contains reports whether the interval fully covers other.
func (i Interval) Contains(other Interval) bool {
	return !i.Start.After(other.Start) && !i.End.Before(other.End)
}

// MinuteRange is a half-open range of minutes within a single day,
// used for shift windows and task windows to avoid date arithmetic.
type MinuteRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Valid reports whether the range lies within a day and End > Start.
func (m MinuteRange) Valid() bool {
	return m.Start >= 0 && m.End <= 24*60 && m.End > m.Start
}

// Overlaps applies the same half-open predicate in minutes-of-day.
func (m MinuteRange) Overlaps(other MinuteRange) bool {
	return m.Start < other.End && other.Start < m.End
}

// Contains reports whether the range fully covers other. A task window
// exactly equal to a shift window is contained.
func (m MinuteRange) Contains(other MinuteRange) bool {
	return m.Start <= other.Start && other.End <= m.End
}

// MinuteOfDay converts a timestamp to its minute offset within the day.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
