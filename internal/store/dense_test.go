package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitVec(values ...float32) []float32 {
	var sumSquares float32
	for _, v := range values {
		sumSquares += v * v
	}
	if sumSquares == 0 {
		return values
	}
	norm := float32(1)
	for norm*norm < sumSquares {
		norm *= 1.0001
	}
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = v / norm
	}
	return out
}

func TestBuildDense_ChoosesFlatBelowThreshold(t *testing.T) {
	matrix := [][]float32{{1, 0}, {0, 1}, {0.7, 0.7}}

	idx := BuildDense(matrix, DenseConfig{UseANN: true, Nlist: 100, Nprobe: 8})

	_, ok := idx.(*flatIndex)
	assert.True(t, ok, "n (%d) <= nlist*40 must build the flat variant even with UseANN set", len(matrix))
}

func TestBuildDense_ChoosesANNAboveThreshold(t *testing.T) {
	n := 41
	matrix := make([][]float32, n)
	for i := range matrix {
		matrix[i] = []float32{float32(i), 1}
	}

	idx := BuildDense(matrix, DenseConfig{UseANN: true, Nlist: 1, Nprobe: 8})

	_, ok := idx.(*annIndex)
	assert.True(t, ok, "n (%d) > nlist*40 (40) with UseANN must build the ann variant", n)
}

func TestFlatIndex_SearchRanksByDotProduct(t *testing.T) {
	matrix := [][]float32{
		{1, 0},
		{0, 1},
		{0.9, 0.1},
	}
	idx := buildFlat(matrix)

	scores, rows := idx.Search([]float32{1, 0}, 2)

	require.Len(t, rows, 2)
	assert.Equal(t, 0, rows[0]) // exact match on row 0
	assert.GreaterOrEqual(t, scores[0], scores[1])
}

func TestFlatIndex_SaveLoadRoundTrip(t *testing.T) {
	matrix := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	idx := buildFlat(matrix)
	path := filepath.Join(t.TempDir(), "dense.index")

	require.NoError(t, idx.Save(path))

	loaded, err := LoadDense(path)
	require.NoError(t, err)
	assert.Equal(t, idx.Ntotal(), loaded.Ntotal())
	assert.Equal(t, idx.Dim(), loaded.Dim())

	wantScores, wantRows := idx.Search([]float32{0, 1, 0}, 3)
	gotScores, gotRows := loaded.Search([]float32{0, 1, 0}, 3)
	assert.Equal(t, wantRows, gotRows)
	assert.Equal(t, wantScores, gotScores)
}

func TestANNIndex_SaveLoadRoundTrip(t *testing.T) {
	n := 50
	matrix := make([][]float32, n)
	for i := range matrix {
		// i/(n-i) is injective over i in [0,n), so no two rows share a
		// direction and each vector's true nearest neighbour is itself.
		matrix[i] = unitVec(float32(i), float32(n-i), 1)
	}
	idx := buildANN(matrix, DenseConfig{UseANN: true, Nlist: 1, Nprobe: 8})
	path := filepath.Join(t.TempDir(), "dense.index")

	require.NoError(t, idx.Save(path))

	loaded, err := LoadDense(path)
	require.NoError(t, err)
	assert.Equal(t, n, loaded.Ntotal())
	assert.Equal(t, idx.Dim(), loaded.Dim())

	// Every original row must actually be retrievable post-load. Ntotal
	// alone can't catch a lossy Save/Load round trip that silently drops
	// vectors while still reporting the original count.
	for i, vec := range matrix {
		_, rows := loaded.Search(vec, 1)
		require.NotEmptyf(t, rows, "row %d not retrievable after load", i)
		assert.Equalf(t, i, rows[0], "row %d: nearest neighbour of its own vector should be itself", i)
	}
}
