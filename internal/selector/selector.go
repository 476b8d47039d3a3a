// Package selector picks a representative subset of archive captures from a
// candidate pool, evenly spread across the pool's index range.
package selector

import "github.com/mandela-labs/report-cli/internal/model"

// Select returns up to requested candidates spread evenly across the pool.
// The chronologically last candidate is always included; for two or more
// picks the first candidate is included as well. An empty pool yields an
// empty result.
//
// Intermediate picks use floor-rounded indices so a pick never lands past
// the position its fraction points at. When flooring collapses picks onto
// the same index, unused indices are backfilled scanning from the end,
// keeping the last candidate in final position.
func Select(candidates []model.Candidate, requested int) []model.Candidate {
	total := len(candidates)
	if total == 0 {
		return nil
	}

	n := requested
	if n < 1 {
		n = 1
	}
	if n > total {
		n = total
	}

	switch n {
	case 1:
		return []model.Candidate{candidates[total-1]}
	case 2:
		return []model.Candidate{candidates[0], candidates[total-1]}
	}

	last := total - 1
	seen := make(map[int]bool, n)
	ordered := make([]int, 0, n)
	for k := 0; k < n; k++ {
		idx := last * k / (n - 1)
		if !seen[idx] {
			seen[idx] = true
			ordered = append(ordered, idx)
		}
	}

	// Backfill indices lost to flooring, inserting before the final element
	// so the most recent candidate stays last.
	for i := last; i >= 0 && len(ordered) < n; i-- {
		if seen[i] {
			continue
		}
		seen[i] = true
		tail := ordered[len(ordered)-1]
		ordered = append(ordered[:len(ordered)-1], i, tail)
	}

	if len(ordered) > n {
		ordered = ordered[:n]
	}
	if ordered[len(ordered)-1] != last {
		// Invariant: the most recent candidate anchors the result.
		ordered[len(ordered)-1] = last
	}

	picks := make([]model.Candidate, len(ordered))
	for i, idx := range ordered {
		picks[i] = candidates[idx]
	}
	return picks
}
