package trends

import (
	"sort"
	"time"

	"github.com/kafadas/kinjo/internal/model"
)

const secondsPerDay = 86400

// MedianGap is the median spacing between consecutive moments of a category.
type MedianGap struct {
	CategoryID string  `json:"categoryId"`
	Name       string  `json:"name"`
	MedianDays float64 `json:"medianDays"`
}

// MedianGaps returns, per category with at least two qualifying moments, the
// median of the gaps between consecutive moments in fractional days measured
// on absolute time. Categories whose median is exactly 0 are left out; the
// reported median is rounded to two decimals.
func MedianGaps(moments []*model.Moment, names map[string]string, f Filter) []MedianGap {
	byCat := make(map[string][]time.Time)
	for _, m := range moments {
		if !f.Matches(m) || m.CategoryID == nil || *m.CategoryID == "" {
			continue
		}
		byCat[*m.CategoryID] = append(byCat[*m.CategoryID], m.HappenedAt)
	}

	out := make([]MedianGap, 0, len(byCat))
	for id, ts := range byCat {
		if len(ts) < 2 {
			continue
		}
		sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
		gaps := make([]float64, 0, len(ts)-1)
		for i := 1; i < len(ts); i++ {
			gaps = append(gaps, ts[i].Sub(ts[i-1]).Seconds()/secondsPerDay)
		}
		med := Median(gaps)
		if med == 0 {
			continue
		}
		out = append(out, MedianGap{CategoryID: id, Name: categoryName(names, id), MedianDays: round(med, 2)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MedianDays != out[j].MedianDays {
			return out[i].MedianDays < out[j].MedianDays
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out
}

// Median returns the median of xs, averaging the two middle values for an
// even count. It returns 0 for an empty slice and does not modify xs.
func Median(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
