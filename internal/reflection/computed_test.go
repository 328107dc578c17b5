package reflection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kafadas/kinjo/internal/civil"
	"github.com/kafadas/kinjo/internal/model"
	"github.com/kafadas/kinjo/internal/people"
	"github.com/kafadas/kinjo/internal/trends"
)

func strp(s string) *string { return &s }

func moment(at time.Time, action model.Action, cat, person string, sig bool) *model.Moment {
	m := &model.Moment{HappenedAt: at, Action: action, Significance: sig}
	if cat != "" {
		m.CategoryID = strp(cat)
	}
	if person != "" {
		m.PersonID = strp(person)
	}
	return m
}

func TestCompute(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 3, d, 10, 0, 0, 0, time.UTC) }
	r := trends.Range{
		Start: civil.Date{Year: 2024, Month: time.March, Day: 9},
		End:   civil.Date{Year: 2024, Month: time.March, Day: 15},
	}
	current := []*model.Moment{
		moment(day(10), model.ActionGiven, "c1", "p1", true),
		moment(day(11), model.ActionGiven, "c1", "p2", false),
		moment(day(11), model.ActionReceived, "c2", "p3", false),
		moment(day(14), model.ActionGiven, "c1", "", false),
		moment(day(15), model.ActionReceived, "", "p1", true),
	}
	baseline := []*model.Moment{
		moment(day(3), model.ActionGiven, "c2", "", false),
		moment(day(4), model.ActionGiven, "c1", "", false),
	}

	c, err := Compute(Input{
		Period:   model.Period7d,
		Range:    r,
		Location: time.UTC,
		Current:  current,
		Baseline: baseline,
		Names:    map[string]string{"c1": "Help", "c2": "Gifts"},
		People:   people.Graph{"p1": people.Active(), "p2": people.MergedInto("p1"), "p3": people.Active()},
	})
	require.NoError(t, err)

	assert.Equal(t, 5, c.Total)
	assert.Equal(t, 3, c.Given)
	assert.Equal(t, 2, c.Received)
	assert.Equal(t, 2, c.Significant)
	assert.Equal(t, 4, c.ActiveDays)
	assert.Equal(t, 0.71, c.DailyAverage)
	assert.Equal(t, 2, c.UniquePeople, "p2 is merged into p1")
	assert.Equal(t, "UTC", c.Timezone)

	require.NotNil(t, c.TopCategory)
	assert.Equal(t, "c1", c.TopCategory.CategoryID)
	assert.Equal(t, 75.0, c.TopCategory.Pct)
	assert.Equal(t, 25.0, c.TopCategory.DeltaPct)
	require.Len(t, c.Categories, 2)
	assert.Equal(t, -25.0, c.Categories[1].DeltaPct)

	require.Len(t, c.MedianGaps, 1)
	assert.Equal(t, "c1", c.MedianGaps[0].CategoryID)
	assert.Equal(t, 2.0, c.MedianGaps[0].MedianDays)

	// streak is evaluated as of the range end: runs 10-11 and 14-15
	assert.Equal(t, 2, c.Streak.Current)
	assert.Equal(t, 2, c.Streak.Best)
	require.NotNil(t, c.Streak.LastEntryDate)
	assert.Equal(t, "2024-03-15", c.Streak.LastEntryDate.String())
	assert.InDelta(t, 0.6, c.GivenShare(), 0.0001)
}

func TestCompute_MergeCycleSurfaces(t *testing.T) {
	_, err := Compute(Input{
		Period:   model.Period7d,
		Range:    trends.Range{Start: civil.Date{Year: 2024, Month: 1, Day: 1}, End: civil.Date{Year: 2024, Month: 1, Day: 7}},
		Location: time.UTC,
		Current:  []*model.Moment{moment(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), model.ActionGiven, "", "a", false)},
		People:   people.Graph{"a": people.MergedInto("b"), "b": people.MergedInto("a")},
	})
	assert.ErrorIs(t, err, model.ErrMergeCycle)
}

func TestSelectRule(t *testing.T) {
	share := func(pct float64) *trends.CategoryShare { return &trends.CategoryShare{CategoryID: "c", Name: "Help", Pct: pct} }
	two := []trends.CategoryShare{{}, {}}

	tests := []struct {
		name string
		c    ComputedAggregate
		want Rule
	}{
		{"empty", ComputedAggregate{}, RuleQuiet},
		{"given skew", ComputedAggregate{Total: 4, Given: 3, Received: 1}, RuleGivenSkew},
		{"received skew", ComputedAggregate{Total: 8, Given: 2, Received: 6}, RuleReceivedSkew},
		{"skew needs volume", ComputedAggregate{Total: 3, Given: 3}, RuleBalanced},
		{"dominant category", ComputedAggregate{Total: 6, Given: 3, Received: 3, TopCategory: share(50), Categories: two}, RuleDominantCategory},
		{"single category is not dominance", ComputedAggregate{Total: 6, Given: 3, Received: 3, TopCategory: share(100), Categories: two[:1]}, RuleBalanced},
		{"diverse people", ComputedAggregate{Total: 6, Given: 3, Received: 3, TopCategory: share(40), Categories: two, UniquePeople: 5}, RuleDiversePeople},
		{"balanced", ComputedAggregate{Total: 6, Given: 3, Received: 3, UniquePeople: 4}, RuleBalanced},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := tc.c
			assert.Equal(t, tc.want, SelectRule(&c))
			n := RuleNarrative(&c)
			assert.NotEmpty(t, n.Summary)
			assert.NotEmpty(t, n.Suggestions)
		})
	}
}

func TestRuleNarrative_Deterministic(t *testing.T) {
	c := &ComputedAggregate{Total: 5, Given: 4, Received: 1, ActiveDays: 3}
	assert.Equal(t, RuleNarrative(c), RuleNarrative(c))
}
