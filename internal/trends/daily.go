// Package trends turns the raw moment log into timezone-correct aggregates:
// dense daily counts, category shares with deltas, median gaps and streaks.
//
// The aggregation functions are pure; Service wires them to the event store.
package trends

import (
	"time"

	"github.com/kafadas/kinjo/internal/civil"
	"github.com/kafadas/kinjo/internal/model"
)

// Filter selects qualifying moments.
type Filter struct {
	Action           model.ActionFilter
	SignificanceOnly bool
}

// Matches reports whether m qualifies under f.
func (f Filter) Matches(m *model.Moment) bool {
	if m == nil || !f.Action.Matches(m.Action) {
		return false
	}
	return !f.SignificanceOnly || m.Significance
}

// DailyCount is the activity of one civil day.
type DailyCount struct {
	Date     civil.Date `json:"date"`
	Given    int        `json:"given"`
	Received int        `json:"received"`
	Total    int        `json:"total"`
}

// DailySeries is a dense, ascending run of DailyCount with its totals.
type DailySeries struct {
	Start        *civil.Date  `json:"start,omitempty"`
	End          *civil.Date  `json:"end,omitempty"`
	Timezone     string       `json:"timezone"`
	Days         []DailyCount `json:"days"`
	Given        int          `json:"given"`
	Received     int          `json:"received"`
	Total        int          `json:"total"`
	DailyAverage float64      `json:"dailyAverage"`
}

// Daily buckets qualifying moments by their civil date in loc and returns one
// entry per day of r, zero-filled. For an unbounded range the series starts at
// the first qualifying moment's date and is empty when nothing qualifies.
func Daily(moments []*model.Moment, r Range, loc *time.Location, f Filter) []DailyCount {
	buckets := make(map[civil.Date]*DailyCount)
	first := civil.Date{}
	for _, m := range moments {
		if !f.Matches(m) {
			continue
		}
		d := civil.Bucket(m.HappenedAt, loc)
		if !r.Contains(d) {
			continue
		}
		if first.IsZero() || d.Before(first) {
			first = d
		}
		dc := buckets[d]
		if dc == nil {
			dc = &DailyCount{Date: d}
			buckets[d] = dc
		}
		switch m.Action {
		case model.ActionGiven:
			dc.Given++
		case model.ActionReceived:
			dc.Received++
		}
		dc.Total = dc.Given + dc.Received
	}

	start := r.Start
	if r.All {
		if first.IsZero() {
			return []DailyCount{}
		}
		start = first
	}

	days := civil.Days(start, r.End)
	out := make([]DailyCount, 0, len(days))
	for _, d := range days {
		if dc, ok := buckets[d]; ok {
			out = append(out, *dc)
			continue
		}
		out = append(out, DailyCount{Date: d})
	}
	return out
}

// Summarize wraps a dense series with its totals and daily average.
func Summarize(days []DailyCount, tz string) *DailySeries {
	s := &DailySeries{Timezone: tz, Days: days}
	for _, d := range days {
		s.Given += d.Given
		s.Received += d.Received
	}
	s.Total = s.Given + s.Received
	if len(days) > 0 {
		start, end := days[0].Date, days[len(days)-1].Date
		s.Start, s.End = &start, &end
		s.DailyAverage = round(float64(s.Total)/float64(len(days)), 2)
	}
	return s
}
