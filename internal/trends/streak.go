package trends

import (
	"sort"
	"time"

	"github.com/kafadas/kinjo/internal/civil"
	"github.com/kafadas/kinjo/internal/model"
)

// ComputeStreak replays moment instants into streak state. A streak day is
// any civil date in loc with at least one moment. Current is the run ending at
// the latest streak day when that day is today or yesterday, else 0. Days
// after today are ignored.
func ComputeStreak(instants []time.Time, loc *time.Location, today civil.Date) model.Streak {
	if len(instants) == 0 {
		return model.Streak{}
	}

	seen := make(map[civil.Date]struct{}, len(instants))
	days := make([]civil.Date, 0, len(instants))
	for _, t := range instants {
		d := civil.Bucket(t, loc)
		if d.After(today) {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		days = append(days, d)
	}
	if len(days) == 0 {
		return model.Streak{}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	best, run := 1, 1
	for i := 1; i < len(days); i++ {
		if days[i].DaysSince(days[i-1]) == 1 {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
	}

	last := days[len(days)-1]
	current := 0
	if today.DaysSince(last) <= 1 {
		// run now holds the length of the trailing run
		current = run
	}
	return model.Streak{Current: current, Best: best, LastEntryDate: &last}
}
