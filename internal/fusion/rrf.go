// Package fusion implements reciprocal rank fusion over ranked id lists.
package fusion

import "sort"

// DefaultK is the standard RRF smoothing constant.
const DefaultK = 60

// Ranked is one (id, score) pair taken from a single ranked retrieval
// list. The score is carried through for callers that want it but plays
// no role in the fusion itself, which is rank-based.
type Ranked struct {
	ID    int64
	Score float32
}

// Fused is one fused (id, accumulated RRF score) pair.
type Fused struct {
	ID    int64
	Score float64
}

// RRF performs reciprocal rank fusion over lists (each already in
// descending-rank order), using smoothing constant k (DefaultK if k<=0).
// Each id at 0-based rank r within a list contributes 1/(k+r+1) to its
// accumulator. Output is accumulator-descending, truncated to topN (no
// truncation if topN<=0). Ties are broken by insertion order: first list
// before second, then by first occurrence within a list — not by id
// value — so fusing a list with itself reproduces the input order
// exactly (spec §4.7, §8).
func RRF(lists [][]Ranked, k int, topN int) []Fused {
	if k <= 0 {
		k = DefaultK
	}

	scores := make(map[int64]float64)
	order := make([]int64, 0)
	seen := make(map[int64]bool)

	for _, list := range lists {
		for rank, item := range list {
			contribution := 1.0 / float64(k+rank+1)
			scores[item.ID] += contribution
			if !seen[item.ID] {
				seen[item.ID] = true
				order = append(order, item.ID)
			}
		}
	}

	result := make([]Fused, len(order))
	for i, id := range order {
		result[i] = Fused{ID: id, Score: scores[id]}
	}

	// Stable sort over `order` (already insertion order) preserves the
	// tie-break rule: equal scores keep their first-seen relative order.
	sort.SliceStable(result, func(i, j int) bool { return result[i].Score > result[j].Score })

	if topN > 0 && len(result) > topN {
		result = result[:topN]
	}
	return result
}
