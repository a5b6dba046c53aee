package database

import "sort"

// Summarize groups runs by sweep. Runs of one sweep share the name, parameter
// and policy of their first run. The result is ordered newest sweep first.
func Summarize(runs []StoredRun) []SweepSummary {
	index := make(map[string]int)
	var out []SweepSummary
	for _, r := range runs {
		key := r.SweepID.String()
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, SweepSummary{
				SweepID:   r.SweepID,
				Name:      r.SweepName,
				Parameter: r.Parameter,
				Policy:    r.Policy,
				BestF1:    r.F1,
				CreatedAt: r.CreatedAt,
			})
			i = len(out) - 1
		}
		s := &out[i]
		s.Runs++
		s.BestF1 = max(s.BestF1, r.F1)
		if r.CreatedAt.Before(s.CreatedAt) {
			s.CreatedAt = r.CreatedAt
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	return out
}

// SortByValue orders runs by their swept parameter value.
func SortByValue(runs []StoredRun) {
	sort.SliceStable(runs, func(a, b int) bool {
		return runs[a].Value < runs[b].Value
	})
}
