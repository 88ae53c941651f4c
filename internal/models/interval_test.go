package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(d int, hour int) time.Time {
	return time.Date(2026, time.September, d, hour, 0, 0, 0, time.UTC)
}

func TestIntervalOverlapsSymmetric(t *testing.T) {
	cases := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"nested", Interval{day(1, 10), day(3, 10)}, Interval{day(2, 0), day(2, 12)}, true},
		{"partial", Interval{day(1, 0), day(2, 0)}, Interval{day(1, 12), day(3, 0)}, true},
		{"adjacent", Interval{day(1, 10), day(3, 10)}, Interval{day(3, 10), day(4, 10)}, false},
		{"disjoint", Interval{day(1, 0), day(2, 0)}, Interval{day(5, 0), day(6, 0)}, false},
		{"identical", Interval{day(1, 0), day(2, 0)}, Interval{day(1, 0), day(2, 0)}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.a.Overlaps(tc.b))
			assert.Equal(t, tc.want, tc.b.Overlaps(tc.a), "predicate must be symmetric")
		})
	}
}

func TestIntervalValid(t *testing.T) {
	assert.True(t, Interval{day(1, 10), day(1, 11)}.Valid())
	assert.False(t, Interval{day(1, 11), day(1, 10)}.Valid())
	assert.False(t, Interval{day(1, 10), day(1, 10)}.Valid())
	assert.False(t, Interval{time.Time{}, day(1, 10)}.Valid())
	assert.False(t, Interval{day(1, 10), time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)}.Valid())
}

func TestMinuteRangeContains(t *testing.T) {
	shift := MinuteRange{Start: 9 * 60, End: 17 * 60}

	assert.True(t, shift.Contains(MinuteRange{Start: 9 * 60, End: 17 * 60}), "exact shift window is eligible")
	assert.True(t, shift.Contains(MinuteRange{Start: 10 * 60, End: 11 * 60}))
	assert.False(t, shift.Contains(MinuteRange{Start: 9*60 - 1, End: 11 * 60}), "starting one minute early is not")
	assert.False(t, shift.Contains(MinuteRange{Start: 10 * 60, End: 17*60 + 1}), "ending one minute late is not")
}

func TestMinuteOfDay(t *testing.T) {
	assert.Equal(t, 9*60+30, MinuteOfDay(time.Date(2026, 9, 1, 9, 30, 0, 0, time.UTC)))
}
