package reflection

import (
	"math"
	"time"

	"github.com/kafadas/kinjo/internal/civil"
	"github.com/kafadas/kinjo/internal/model"
	"github.com/kafadas/kinjo/internal/people"
	"github.com/kafadas/kinjo/internal/trends"
)

// ComputedAggregate is the canonical aggregate persisted with every
// reflection regardless of period. Presentation code picks the fields it shows.
type ComputedAggregate struct {
	Period       model.Period           `json:"period"`
	RangeStart   civil.Date             `json:"rangeStart"`
	RangeEnd     civil.Date             `json:"rangeEnd"`
	Timezone     string                 `json:"timezone"`
	Total        int                    `json:"total"`
	Given        int                    `json:"given"`
	Received     int                    `json:"received"`
	Significant  int                    `json:"significant"`
	ActiveDays   int                    `json:"activeDays"`
	DailyAverage float64                `json:"dailyAverage"`
	TopCategory  *trends.CategoryShare  `json:"topCategory,omitempty"`
	UniquePeople int                    `json:"uniquePeople"`
	Categories   []trends.CategoryShare `json:"categories"`
	MedianGaps   []trends.MedianGap     `json:"medianGaps"`
	Streak       StreakSummary          `json:"streak"`
}

// StreakSummary is the streak state within the reflection range, evaluated
// as of the range end.
type StreakSummary struct {
	Current       int         `json:"current"`
	Best          int         `json:"best"`
	LastEntryDate *civil.Date `json:"lastEntryDate,omitempty"`
}

// Input is everything Compute needs; it performs no I/O.
type Input struct {
	Period   model.Period
	Range    trends.Range
	Location *time.Location
	Current  []*model.Moment
	Baseline []*model.Moment
	Names    map[string]string
	People   people.Graph
}

// Compute builds the aggregate over all moments of the range, both actions.
func Compute(in Input) (*ComputedAggregate, error) {
	var f trends.Filter
	days := trends.Daily(in.Current, in.Range, in.Location, f)
	series := trends.Summarize(days, in.Location.String())

	c := &ComputedAggregate{
		Period:       in.Period,
		RangeStart:   in.Range.Start,
		RangeEnd:     in.Range.End,
		Timezone:     in.Location.String(),
		Total:        series.Total,
		Given:        series.Given,
		Received:     series.Received,
		DailyAverage: series.DailyAverage,
		Categories:   trends.CategoryShares(in.Current, in.Baseline, true, in.Names, f),
		MedianGaps:   trends.MedianGaps(in.Current, in.Names, f),
	}
	for _, d := range days {
		if d.Total > 0 {
			c.ActiveDays++
		}
	}
	if len(c.Categories) > 0 {
		top := c.Categories[0]
		c.TopCategory = &top
	}

	personIDs := make([]string, 0, len(in.Current))
	instants := make([]time.Time, 0, len(in.Current))
	for _, m := range in.Current {
		if m.Significance {
			c.Significant++
		}
		if m.PersonID != nil {
			personIDs = append(personIDs, *m.PersonID)
		}
		instants = append(instants, m.HappenedAt)
	}
	n, err := in.People.UniqueCount(personIDs)
	if err != nil {
		return nil, err
	}
	c.UniquePeople = n

	st := trends.ComputeStreak(instants, in.Location, in.Range.End)
	c.Streak = StreakSummary{Current: st.Current, Best: st.Best, LastEntryDate: st.LastEntryDate}
	return c, nil
}

// GivenShare returns the given fraction of all moments, 0 when empty.
func (c *ComputedAggregate) GivenShare() float64 {
	if c.Total == 0 {
		return 0
	}
	return math.Round(float64(c.Given)/float64(c.Total)*1000) / 1000
}
