package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRRF_FuseWithSelfReproducesInputOrder(t *testing.T) {
	// Given: a single ranked list
	list := []Ranked{{ID: 10}, {ID: 20}, {ID: 30}}

	// When: fusing it with itself
	fused := RRF([][]Ranked{list, list}, DefaultK, 0)

	// Then: the output preserves the original relative order (idempotence)
	require.Len(t, fused, 3)
	assert.Equal(t, []int64{10, 20, 30}, []int64{fused[0].ID, fused[1].ID, fused[2].ID})
}

func TestRRF_AccumulatesAcrossLists(t *testing.T) {
	// Given: two lists where id 20 appears in both, id 10 only in the first
	dense := []Ranked{{ID: 10}, {ID: 20}}
	sparse := []Ranked{{ID: 20}, {ID: 30}}

	fused := RRF([][]Ranked{dense, sparse}, 60, 0)

	byID := make(map[int64]float64, len(fused))
	for _, f := range fused {
		byID[f.ID] = f.Score
	}

	// id 20 accumulates contributions from both lists and outranks the
	// single-list ids
	assert.Greater(t, byID[20], byID[10])
	assert.Greater(t, byID[20], byID[30])
	assert.InDelta(t, 1.0/62+1.0/61, byID[20], 1e-9)
}

func TestRRF_TruncatesToTopN(t *testing.T) {
	list := []Ranked{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}

	fused := RRF([][]Ranked{list}, DefaultK, 2)

	assert.Len(t, fused, 2)
	assert.Equal(t, int64(1), fused[0].ID)
	assert.Equal(t, int64(2), fused[1].ID)
}

func TestRRF_ZeroOrNegativeKUsesDefault(t *testing.T) {
	list := []Ranked{{ID: 1}}

	fused := RRF([][]Ranked{list}, 0, 0)

	require.Len(t, fused, 1)
	assert.InDelta(t, 1.0/(DefaultK+1), fused[0].Score, 1e-9)
}

func TestRRF_EmptyListsProduceEmptyResult(t *testing.T) {
	fused := RRF([][]Ranked{{}, {}}, DefaultK, 0)

	assert.Empty(t, fused)
}
