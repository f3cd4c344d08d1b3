package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hermes-search/hermes/internal/chunk"
)

func openTestStore(t *testing.T) *MetadataStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metadata.db")
	s, err := OpenMetadataStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleChunks() []chunk.Chunk {
	return []chunk.Chunk{
		{FilePath: "a.py", Language: "python", StartLine: 1, EndLine: 5, CodeText: "def a(): pass", SymbolName: "a"},
		{FilePath: "b.py", Language: "python", StartLine: 1, EndLine: 3, CodeText: "def b(): pass", SymbolName: "b"},
	}
}

func TestInsertChunks_AssignsMonotonicIDsInOrder(t *testing.T) {
	s := openTestStore(t)

	ids, err := s.InsertChunks(sampleChunks())

	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Less(t, ids[0], ids[1])
}

func TestGetChunk_RoundTripsExactFields(t *testing.T) {
	s := openTestStore(t)
	chunks := sampleChunks()
	ids, err := s.InsertChunks(chunks)
	require.NoError(t, err)

	rec, ok := s.GetChunk(ids[0])

	require.True(t, ok)
	assert.Equal(t, chunks[0].FilePath, rec.FilePath)
	assert.Equal(t, chunks[0].Language, rec.Language)
	assert.Equal(t, chunks[0].StartLine, rec.StartLine)
	assert.Equal(t, chunks[0].EndLine, rec.EndLine)
	assert.Equal(t, chunks[0].CodeText, rec.CodeText)
	assert.Equal(t, chunks[0].SymbolName, rec.SymbolName)
}

func TestGetChunk_MissingIDReturnsFalse(t *testing.T) {
	s := openTestStore(t)

	_, ok := s.GetChunk(99999)

	assert.False(t, ok)
}

func TestGetChunksByIDs_PreservesRequestedOrderAndSkipsMissing(t *testing.T) {
	s := openTestStore(t)
	ids, err := s.InsertChunks(sampleChunks())
	require.NoError(t, err)

	recs, err := s.GetChunksByIDs([]int64{ids[1], 999999, ids[0]})

	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, ids[1], recs[0].ChunkID)
	assert.Equal(t, ids[0], recs[1].ChunkID)
}

func TestAllChunkIDsAndAllTexts_AreAscendingAndAligned(t *testing.T) {
	s := openTestStore(t)
	chunks := sampleChunks()
	ids, err := s.InsertChunks(chunks)
	require.NoError(t, err)

	gotIDs, err := s.AllChunkIDs()
	require.NoError(t, err)
	texts, err := s.AllTexts()
	require.NoError(t, err)

	assert.Equal(t, ids, gotIDs)
	require.Len(t, texts, 2)
	assert.Equal(t, chunks[0].CodeText, texts[0])
	assert.Equal(t, chunks[1].CodeText, texts[1])
}

func TestCount_MatchesInsertedRows(t *testing.T) {
	s := openTestStore(t)
	_, err := s.InsertChunks(sampleChunks())
	require.NoError(t, err)

	n, err := s.Count()

	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestClose_IsIdempotent(t *testing.T) {
	s := openTestStore(t)

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}
