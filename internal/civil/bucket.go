package civil

import (
	"fmt"
	"time"
)

// LoadLocation resolves an IANA timezone name, treating "" as UTC.
func LoadLocation(tz string) (*time.Location, error) {
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return loc, nil
}

// Bucket returns the calendar date on which instant falls in loc.
func Bucket(instant time.Time, loc *time.Location) Date {
	return DateOf(instant.In(loc))
}

// Today returns the current date in loc.
func Today(now time.Time, loc *time.Location) Date {
	return Bucket(now, loc)
}

// Bounds expands the inclusive date range [start, end] into instant bounds
// [start 00:00:00, end 23:59:59.999999999] evaluated in loc.
//
// The upper bound is derived from the next local midnight, so days that are
// 23 or 25 hours long around DST transitions are covered exactly.
func Bounds(start, end Date, loc *time.Location) (from, to time.Time) {
	from = start.In(loc)
	to = end.AddDays(1).In(loc).Add(-time.Nanosecond)
	return from, to
}

// Days lists every date in [start, end] in ascending order.
// It returns nil when end is before start.
func Days(start, end Date) []Date {
	n := end.DaysSince(start)
	if n < 0 {
		return nil
	}
	out := make([]Date, 0, n+1)
	for i := 0; i <= n; i++ {
		out = append(out, start.AddDays(i))
	}
	return out
}
