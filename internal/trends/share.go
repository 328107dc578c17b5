package trends

import (
	"math"
	"sort"

	"github.com/kafadas/kinjo/internal/model"
)

// CategoryShare is a category's share of the qualifying moments in a window
// and its change in percentage points against the baseline window.
type CategoryShare struct {
	CategoryID string  `json:"categoryId"`
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Pct        float64 `json:"pct"`
	DeltaPct   float64 `json:"deltaPct"`
}

// CategoryShares computes shares for every category present in current.
//
// Only categorised moments form the denominator. When compare is set, DeltaPct
// is the share minus the category's share of baseline; otherwise it is 0.
// Categories that appear only in baseline are not reported.
func CategoryShares(current, baseline []*model.Moment, compare bool, names map[string]string, f Filter) []CategoryShare {
	cur, curTotal := countByCategory(current, f)
	base, baseTotal := countByCategory(baseline, f)

	out := make([]CategoryShare, 0, len(cur))
	for id, n := range cur {
		pct := share(n, curTotal)
		cs := CategoryShare{
			CategoryID: id,
			Name:       categoryName(names, id),
			Count:      n,
			Pct:        round(pct, 1),
		}
		if compare {
			cs.DeltaPct = round(pct-share(base[id], baseTotal), 1)
		}
		out = append(out, cs)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out
}

func countByCategory(moments []*model.Moment, f Filter) (map[string]int, int) {
	counts := make(map[string]int)
	total := 0
	for _, m := range moments {
		if !f.Matches(m) || m.CategoryID == nil || *m.CategoryID == "" {
			continue
		}
		counts[*m.CategoryID]++
		total++
	}
	return counts, total
}

func share(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func categoryName(names map[string]string, id string) string {
	if n, ok := names[id]; ok && n != "" {
		return n
	}
	return "Unknown"
}

// round rounds half away from zero to the given number of decimals.
func round(x float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	r := math.Round(x*p) / p
	if r == 0 {
		return 0 // normalise -0
	}
	return r
}
