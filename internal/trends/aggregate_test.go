package trends

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kafadas/kinjo/internal/civil"
	"github.com/kafadas/kinjo/internal/model"

	_ "time/tzdata"
)

func strp(s string) *string { return &s }

func mom(at time.Time, action model.Action, cat string) *model.Moment {
	m := &model.Moment{HappenedAt: at, Action: action}
	if cat != "" {
		m.CategoryID = strp(cat)
	}
	return m
}

func date(y int, m time.Month, d int) civil.Date { return civil.Date{Year: y, Month: m, Day: d} }

func TestDaily_DenseAndSummed(t *testing.T) {
	r := Range{Start: date(2024, 3, 1), End: date(2024, 3, 10)}
	moments := []*model.Moment{
		mom(time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC), model.ActionGiven, ""),
		mom(time.Date(2024, 3, 2, 18, 0, 0, 0, time.UTC), model.ActionReceived, ""),
		mom(time.Date(2024, 3, 9, 9, 0, 0, 0, time.UTC), model.ActionGiven, ""),
		mom(time.Date(2024, 2, 28, 9, 0, 0, 0, time.UTC), model.ActionGiven, ""), // outside
	}

	days := Daily(moments, r, time.UTC, Filter{})
	require.Len(t, days, 10)
	for i, d := range days {
		assert.Equal(t, r.Start.AddDays(i), d.Date, "ascending with no gaps")
		assert.Equal(t, d.Given+d.Received, d.Total)
	}
	assert.Equal(t, DailyCount{Date: date(2024, 3, 2), Given: 1, Received: 1, Total: 2}, days[1])
	assert.Equal(t, 0, days[0].Total)

	s := Summarize(days, "UTC")
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 0.3, s.DailyAverage)
	assert.Equal(t, "2024-03-01", s.Start.String())
	assert.Equal(t, "2024-03-10", s.End.String())
}

func TestDaily_Filters(t *testing.T) {
	r := Range{Start: date(2024, 3, 1), End: date(2024, 3, 1)}
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sig := mom(at, model.ActionReceived, "")
	sig.Significance = true
	moments := []*model.Moment{mom(at, model.ActionGiven, ""), sig}

	days := Daily(moments, r, time.UTC, Filter{Action: model.ActionOnlyGiven})
	assert.Equal(t, 1, days[0].Given)
	assert.Equal(t, 0, days[0].Received)

	days = Daily(moments, r, time.UTC, Filter{SignificanceOnly: true})
	assert.Equal(t, 0, days[0].Given)
	assert.Equal(t, 1, days[0].Received)
}

func TestDaily_AllStartsAtFirstMoment(t *testing.T) {
	r := Range{End: date(2024, 3, 10), All: true}
	moments := []*model.Moment{mom(time.Date(2024, 3, 7, 9, 0, 0, 0, time.UTC), model.ActionGiven, "")}

	days := Daily(moments, r, time.UTC, Filter{})
	require.Len(t, days, 4)
	assert.Equal(t, date(2024, 3, 7), days[0].Date)

	empty := Daily(nil, r, time.UTC, Filter{})
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
	assert.Equal(t, 0.0, Summarize(empty, "UTC").DailyAverage)
}

func TestDaily_TimezoneBoundary(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	r := Range{Start: date(2024, 3, 1), End: date(2024, 3, 2)}
	moments := []*model.Moment{mom(time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC), model.ActionGiven, "")}

	days := Daily(moments, r, la, Filter{})
	assert.Equal(t, 1, days[0].Total, "15:30 local on 2024-03-01")
	assert.Equal(t, 0, days[1].Total)
}

func TestCategoryShares_PercentagesSumToHundred(t *testing.T) {
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var current []*model.Moment
	for i, n := range []int{3, 3, 1} {
		for j := 0; j < n; j++ {
			current = append(current, mom(at, model.ActionGiven, fmt.Sprintf("c%d", i)))
		}
	}
	current = append(current, mom(at, model.ActionGiven, "")) // uncategorised

	shares := CategoryShares(current, nil, false, nil, Filter{})
	require.Len(t, shares, 3)
	sum := 0.0
	for _, s := range shares {
		sum += s.Pct
		assert.Equal(t, 0.0, s.DeltaPct)
		assert.Equal(t, "Unknown", s.Name)
	}
	assert.InDelta(t, 100, sum, 0.1*float64(len(shares)))
	assert.Equal(t, 42.9, shares[0].Pct)
	assert.Equal(t, 14.3, shares[2].Pct)
}

func TestCategoryShares_DeltaSymmetry(t *testing.T) {
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	window := []*model.Moment{mom(at, model.ActionGiven, "a"), mom(at, model.ActionGiven, "a"), mom(at, model.ActionGiven, "b")}

	shares := CategoryShares(window, window, true, map[string]string{"a": "A", "b": "B"}, Filter{})
	require.Len(t, shares, 2)
	for _, s := range shares {
		assert.Equal(t, 0.0, s.DeltaPct)
		assert.False(t, math.Signbit(s.DeltaPct))
	}
}

func TestCategoryShares_EmptyWindow(t *testing.T) {
	shares := CategoryShares(nil, []*model.Moment{mom(time.Now(), model.ActionGiven, "a")}, true, nil, Filter{})
	assert.NotNil(t, shares)
	assert.Empty(t, shares)
}

// Ten moments alternating given/received over five categories in a 30-day
// window; the baseline holds four other categories and one shared one.
func TestCategoryShares_ScenarioVanishedCategoriesOmitted(t *testing.T) {
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	r, err := ResolveRange(RangeSpec{Label: "30d"}, now, time.UTC)
	require.NoError(t, err)
	base, ok := r.Baseline()
	require.True(t, ok)

	var current, baseline []*model.Moment
	for i := 0; i < 10; i++ {
		action := model.ActionGiven
		if i%2 == 1 {
			action = model.ActionReceived
		}
		at := r.Start.AddDays(i * 2).In(time.UTC).Add(10 * time.Hour)
		current = append(current, mom(at, action, fmt.Sprintf("cur-%d", i%5)))
	}
	for i, cat := range []string{"old-1", "old-2", "old-3", "old-4", "cur-0"} {
		baseline = append(baseline, mom(base.Start.AddDays(i).In(time.UTC), model.ActionGiven, cat))
	}

	shares := CategoryShares(current, baseline, true, nil, Filter{})
	require.Len(t, shares, 5)
	got := map[string]CategoryShare{}
	for _, s := range shares {
		got[s.CategoryID] = s
		assert.Equal(t, 20.0, s.Pct)
	}
	for _, old := range []string{"old-1", "old-2", "old-3", "old-4"} {
		assert.NotContains(t, got, old)
	}
	assert.Equal(t, 0.0, got["cur-0"].DeltaPct)
	assert.Equal(t, 20.0, got["cur-1"].DeltaPct)
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 3.0, Median([]float64{1, 3, 5}))
	assert.Equal(t, 2.5, Median([]float64{1, 2, 3, 4}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 3, 2}))
	assert.Equal(t, 0.0, Median(nil))
}

func TestMedianGaps(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	day := 24 * time.Hour
	moments := []*model.Moment{
		// gaps 1, 3, 5 days
		mom(t0, model.ActionGiven, "odd"),
		mom(t0.Add(day), model.ActionGiven, "odd"),
		mom(t0.Add(4*day), model.ActionGiven, "odd"),
		mom(t0.Add(9*day), model.ActionGiven, "odd"),
		// single moment
		mom(t0, model.ActionGiven, "single"),
		// 20 hours apart on the same civil day
		mom(t0.Add(time.Hour), model.ActionGiven, "frac"),
		mom(t0.Add(21*time.Hour), model.ActionGiven, "frac"),
		// same instant twice
		mom(t0, model.ActionGiven, "zero"),
		mom(t0, model.ActionGiven, "zero"),
	}

	gaps := MedianGaps(moments, map[string]string{"odd": "Odd"}, Filter{})
	require.Len(t, gaps, 2)
	assert.Equal(t, MedianGap{CategoryID: "frac", Name: "Unknown", MedianDays: 0.83}, gaps[0])
	assert.Equal(t, MedianGap{CategoryID: "odd", Name: "Odd", MedianDays: 3}, gaps[1])
}

func TestMedianGaps_ShortGapIsKept(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	moments := []*model.Moment{
		mom(t0, model.ActionGiven, "coffee"),
		mom(t0.Add(70*time.Minute), model.ActionReceived, "coffee"),
	}

	gaps := MedianGaps(moments, map[string]string{"coffee": "Coffee"}, Filter{})
	require.Len(t, gaps, 1)
	assert.Equal(t, "coffee", gaps[0].CategoryID)
	assert.Equal(t, 0.05, gaps[0].MedianDays)
}

func TestComputeStreak(t *testing.T) {
	today := date(2024, 3, 20)
	at := func(d civil.Date) time.Time { return d.In(time.UTC).Add(12 * time.Hour) }

	t.Run("reset after gap keeps best", func(t *testing.T) {
		var ins []time.Time
		for _, back := range []int{5, 4, 3, 0} {
			ins = append(ins, at(today.AddDays(-back)))
		}
		st := ComputeStreak(ins, time.UTC, today)
		assert.Equal(t, 1, st.Current)
		assert.Equal(t, 3, st.Best)
		assert.Equal(t, today, *st.LastEntryDate)
	})

	t.Run("yesterday keeps current", func(t *testing.T) {
		ins := []time.Time{at(today.AddDays(-2)), at(today.AddDays(-1)), at(today.AddDays(-1))}
		st := ComputeStreak(ins, time.UTC, today)
		assert.Equal(t, 2, st.Current)
		assert.Equal(t, 2, st.Best)
	})

	t.Run("two days ago resets current", func(t *testing.T) {
		st := ComputeStreak([]time.Time{at(today.AddDays(-2))}, time.UTC, today)
		assert.Equal(t, 0, st.Current)
		assert.Equal(t, 1, st.Best)
	})

	t.Run("empty", func(t *testing.T) {
		st := ComputeStreak(nil, time.UTC, today)
		assert.Equal(t, 0, st.Current)
		assert.Nil(t, st.LastEntryDate)
	})

	t.Run("future days are ignored", func(t *testing.T) {
		var ins []time.Time
		for _, off := range []int{-2, -1, 0, 7} {
			ins = append(ins, at(today.AddDays(off)))
		}
		st := ComputeStreak(ins, time.UTC, today)
		assert.Equal(t, 3, st.Current)
		assert.Equal(t, 3, st.Best)
		require.NotNil(t, st.LastEntryDate)
		assert.Equal(t, today, *st.LastEntryDate)

		st = ComputeStreak([]time.Time{at(today.AddDays(3))}, time.UTC, today)
		assert.Equal(t, model.Streak{}, st)
	})

	t.Run("order independent", func(t *testing.T) {
		ins := []time.Time{at(today), at(today.AddDays(-1)), at(today.AddDays(-7))}
		st := ComputeStreak(ins, time.UTC, today)
		assert.Equal(t, 2, st.Current)
	})
}

func TestResolveRange(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	now := time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC) // 2024-03-11 05:00 in Tokyo

	r, err := ResolveRange(RangeSpec{Label: "7d"}, now, tokyo)
	require.NoError(t, err)
	assert.Equal(t, date(2024, 3, 5), r.Start)
	assert.Equal(t, date(2024, 3, 11), r.End)
	assert.Equal(t, 7, r.Len())
	b, ok := r.Baseline()
	require.True(t, ok)
	assert.Equal(t, date(2024, 2, 27), b.Start)
	assert.Equal(t, date(2024, 3, 4), b.End)

	all, err := ResolveRange(RangeSpec{Label: "all"}, now, time.UTC)
	require.NoError(t, err)
	assert.True(t, all.All)
	_, ok = all.Baseline()
	assert.False(t, ok)
	q := all.Query("u", time.UTC, Filter{})
	assert.Nil(t, q.From)
	require.NotNil(t, q.To)

	explicit, err := ResolveRange(RangeSpec{Start: "2024-01-01", End: "2024-01-31"}, now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 31, explicit.Len())

	for _, bad := range []RangeSpec{
		{},
		{Label: "14d"},
		{Label: "7d", Start: "2024-01-01", End: "2024-01-02"},
		{Start: "2024-01-02"},
		{Start: "2024-01-02", End: "2024-01-01"},
		{Start: "2024-13-01", End: "2024-12-01"},
	} {
		_, err := ResolveRange(bad, now, time.UTC)
		assert.ErrorIs(t, err, model.ErrInvalidRange, "%+v", bad)
	}
}
