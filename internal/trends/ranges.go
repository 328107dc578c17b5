package trends

import (
	"fmt"
	"strings"
	"time"

	"github.com/kafadas/kinjo/internal/civil"
	"github.com/kafadas/kinjo/internal/model"
)

// RangeAll selects the whole moment log.
const RangeAll = "all"

// RangeSpec is an unresolved range as received at the API boundary: either a
// label (all, 7d, 30d, 90d, 365d) or an explicit inclusive Start/End pair.
type RangeSpec struct {
	Label string
	Start string
	End   string
}

// Range is a resolved inclusive civil date range. When All is set Start is
// zero and the range has no lower bound.
type Range struct {
	Start civil.Date
	End   civil.Date
	All   bool
}

// Len returns the number of days in the range, or 0 for an unbounded range.
func (r Range) Len() int {
	if r.All {
		return 0
	}
	return r.End.DaysSince(r.Start) + 1
}

// Baseline returns the window of equal length that immediately precedes r.
// Unbounded ranges have no baseline.
func (r Range) Baseline() (Range, bool) {
	if r.All {
		return Range{}, false
	}
	n := r.Len()
	return Range{Start: r.Start.AddDays(-n), End: r.Start.AddDays(-1)}, true
}

// Query converts r into instant bounds for the event store.
func (r Range) Query(userID string, loc *time.Location, f Filter) model.MomentQuery {
	q := model.MomentQuery{UserID: userID, Action: f.Action, SignificanceOnly: f.SignificanceOnly}
	if r.All {
		_, to := civil.Bounds(r.End, r.End, loc)
		q.To = &to
		return q
	}
	from, to := civil.Bounds(r.Start, r.End, loc)
	q.From = &from
	q.To = &to
	return q
}

// Contains reports whether d falls inside r.
func (r Range) Contains(d civil.Date) bool {
	if d.After(r.End) {
		return false
	}
	return r.All || !d.Before(r.Start)
}

// PeriodRange resolves a reflection period to the window ending today in loc.
func PeriodRange(p model.Period, now time.Time, loc *time.Location) (Range, error) {
	if !p.Valid() {
		return Range{}, fmt.Errorf("%w: unknown period %q", model.ErrValidation, p)
	}
	today := civil.Today(now, loc)
	return Range{Start: today.AddDays(-(p.Days() - 1)), End: today}, nil
}

// ResolveRange turns rs into a concrete range relative to now in loc.
func ResolveRange(rs RangeSpec, now time.Time, loc *time.Location) (Range, error) {
	label := strings.TrimSpace(rs.Label)
	explicit := rs.Start != "" || rs.End != ""
	switch {
	case label != "" && explicit:
		return Range{}, fmt.Errorf("%w: give either a range label or start/end, not both", model.ErrInvalidRange)
	case label == "" && !explicit:
		return Range{}, fmt.Errorf("%w: range is required", model.ErrInvalidRange)
	case explicit:
		return resolveExplicit(rs.Start, rs.End)
	}

	today := civil.Today(now, loc)
	if label == RangeAll {
		return Range{End: today, All: true}, nil
	}
	days, err := labelDays(label)
	if err != nil {
		return Range{}, err
	}
	return Range{Start: today.AddDays(-(days - 1)), End: today}, nil
}

func resolveExplicit(start, end string) (Range, error) {
	if start == "" || end == "" {
		return Range{}, fmt.Errorf("%w: both start and end are required", model.ErrInvalidRange)
	}
	s, err := civil.ParseDate(start)
	if err != nil {
		return Range{}, fmt.Errorf("%w: %v", model.ErrInvalidRange, err)
	}
	e, err := civil.ParseDate(end)
	if err != nil {
		return Range{}, fmt.Errorf("%w: %v", model.ErrInvalidRange, err)
	}
	if e.Before(s) {
		return Range{}, fmt.Errorf("%w: end %s is before start %s", model.ErrInvalidRange, e, s)
	}
	return Range{Start: s, End: e}, nil
}

func labelDays(label string) (int, error) {
	if p := model.Period(label); p.Valid() {
		return p.Days(), nil
	}
	return 0, fmt.Errorf("%w: unknown range label %q", model.ErrInvalidRange, label)
}
