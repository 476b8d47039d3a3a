package textdiff

import "sort"

// matchBlock is a run of identical tokens: a[a:a+size] == b[b:b+size].
type matchBlock struct {
	a, b, size int
}

type tokenSpan struct {
	alo, ahi, blo, bhi int
}

// matchingBlocks finds all maximal matching runs between two token sequences
// by recursively splitting around the longest match in each region. The
// returned list is sorted by position, adjacent runs merged, and terminated
// with a zero-size sentinel at (len(a), len(b)).
func matchingBlocks(a, b []string) []matchBlock {
	b2j := make(map[string][]int, len(b))
	for j, tok := range b {
		b2j[tok] = append(b2j[tok], j)
	}

	queue := []tokenSpan{{0, len(a), 0, len(b)}}
	var found []matchBlock
	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		m := longestMatch(a, b2j, s)
		if m.size == 0 {
			continue
		}
		found = append(found, m)
		if s.alo < m.a && s.blo < m.b {
			queue = append(queue, tokenSpan{s.alo, m.a, s.blo, m.b})
		}
		if m.a+m.size < s.ahi && m.b+m.size < s.bhi {
			queue = append(queue, tokenSpan{m.a + m.size, s.ahi, m.b + m.size, s.bhi})
		}
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].a != found[j].a {
			return found[i].a < found[j].a
		}
		return found[i].b < found[j].b
	})

	// Merge adjacent runs so each block is maximal.
	merged := found[:0]
	for _, m := range found {
		if n := len(merged); n > 0 &&
			merged[n-1].a+merged[n-1].size == m.a &&
			merged[n-1].b+merged[n-1].size == m.b {
			merged[n-1].size += m.size
			continue
		}
		merged = append(merged, m)
	}

	return append(merged, matchBlock{a: len(a), b: len(b)})
}

// longestMatch finds the longest run of tokens common to a[alo:ahi] and
// b[blo:bhi], preferring the earliest such run on ties.
func longestMatch(a []string, b2j map[string][]int, s tokenSpan) matchBlock {
	best := matchBlock{a: s.alo, b: s.blo}
	j2len := map[int]int{}
	for i := s.alo; i < s.ahi; i++ {
		newJ2len := map[int]int{}
		for _, j := range b2j[a[i]] {
			if j < s.blo {
				continue
			}
			if j >= s.bhi {
				break
			}
			k := j2len[j-1] + 1
			newJ2len[j] = k
			if k > best.size {
				best = matchBlock{a: i - k + 1, b: j - k + 1, size: k}
			}
		}
		j2len = newJ2len
	}
	return best
}
