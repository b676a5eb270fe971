package unit

import (
	"sort"
	"time"
)

// SortFIFO returns the units oldest donation first. Ties fall back to id so
// the order is deterministic. The input slice is not modified.
func SortFIFO(units []*Unit) []*Unit {
	out := make([]*Unit, len(units))
	copy(out, units)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].donatedAt.Equal(out[j].donatedAt) {
			return out[i].donatedAt.Before(out[j].donatedAt)
		}
		return out[i].id < out[j].id
	})
	return out
}

// SortByExpiration orders soonest-to-expire first.
func SortByExpiration(units []*Unit) []*Unit {
	out := make([]*Unit, len(units))
	copy(out, units)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].expiresAt.Equal(out[j].expiresAt) {
			return out[i].expiresAt.Before(out[j].expiresAt)
		}
		return out[i].id < out[j].id
	})
	return out
}

// SelectFIFO picks up to n dispensable units of the requested type, oldest
// donation first. Request urgency never changes which physical unit is picked.
func SelectFIFO(units []*Unit, bloodType BloodType, n int, now time.Time) []*Unit {
	if n <= 0 {
		return nil
	}
	candidates := make([]*Unit, 0, len(units))
	for _, u := range units {
		if u.bloodType == bloodType && u.IsDispensable(now) {
			candidates = append(candidates, u)
		}
	}
	sorted := SortFIFO(candidates)
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
