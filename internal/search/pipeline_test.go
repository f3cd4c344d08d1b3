package search

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hermes-search/hermes/internal/chunk"
	"github.com/hermes-search/hermes/internal/config"
	"github.com/hermes-search/hermes/internal/index"
	"github.com/hermes-search/hermes/internal/store"
)

// slowCrossEncoder never returns before its caller gives up, used to force
// the rerank-with-timeout path into its degraded branch.
type slowCrossEncoder struct{ delay time.Duration }

func (s *slowCrossEncoder) ModelID() string { return "slow-test-cross-encoder" }
func (s *slowCrossEncoder) ScorePairs(query string, texts []string) ([]float32, error) {
	time.Sleep(s.delay)
	out := make([]float32, len(texts))
	return out, nil
}

func buildFixtureIndex(t *testing.T) string {
	t.Helper()
	repo := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(repo, "pkg", "auth"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(repo, "pkg", "auth", "login.py"), []byte(
		"def authenticate(user, password):\n    return check_credentials(user, password)\n\n\ndef check_credentials(user, password):\n    return user == 'admin'\n"),
		0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(repo, "web"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(repo, "web", "app.js"), []byte(
		"function renderProfile(user) {\n  return '<div>' + user + '</div>';\n}\n\nfunction renderLogin() {\n  return '<form></form>';\n}\n"),
		0o644))

	artifactsDir := t.TempDir()
	idx := index.New(artifactsDir, index.Config{
		Chunking: chunk.Config{MaxChars: 1500, OverlapLines: 3, MinChars: 1},
		Dense:    store.DenseConfig{UseANN: false},
	})
	_, err := idx.Index(repo)
	require.NoError(t, err)
	return artifactsDir
}

func testSearchConfig() config.SearchConfig {
	return config.SearchConfig{
		TopKRetrieve:        10,
		TopKRerank:          10,
		MaxRerankCandidates: 10,
		RerankTimeout:       2 * time.Second,
		RetrievalMode:       "dense",
		RRFK:                60,
	}
}

func TestSearch_DenseRetrievalRanksAreContiguousFromOne(t *testing.T) {
	artifactsDir := buildFixtureIndex(t)
	p, err := New(artifactsDir, testSearchConfig(), 16)
	require.NoError(t, err)

	resp, err := p.Search(context.Background(), Request{Query: "authenticate user credentials", RetrievalMode: "dense"})

	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	retrievalRanks := make([]int, 0, len(resp.Results))
	for i, r := range resp.Results {
		assert.Equal(t, i+1, r.FinalRank)
		retrievalRanks = append(retrievalRanks, r.RetrievalRank)
	}
	// Reranking may reorder results, but the retrieval ranks they carry
	// must still be distinct and contiguous from 1.
	sort.Ints(retrievalRanks)
	for i, rank := range retrievalRanks {
		assert.Equal(t, i+1, rank)
	}
}

func TestSearch_FiltersByLanguage(t *testing.T) {
	artifactsDir := buildFixtureIndex(t)
	p, err := New(artifactsDir, testSearchConfig(), 16)
	require.NoError(t, err)

	resp, err := p.Search(context.Background(), Request{
		Query:          "render",
		RetrievalMode:  "dense",
		TopKRetrieve:   10,
		FilterLanguage: "javascript",
	})

	require.NoError(t, err)
	for _, r := range resp.Results {
		assert.Equal(t, "javascript", r.Language)
	}
}

func TestSearch_FiltersByPathPrefix(t *testing.T) {
	artifactsDir := buildFixtureIndex(t)
	p, err := New(artifactsDir, testSearchConfig(), 16)
	require.NoError(t, err)

	resp, err := p.Search(context.Background(), Request{
		Query:            "credentials",
		RetrievalMode:    "dense",
		TopKRetrieve:     10,
		FilterPathPrefix: "pkg/auth",
	})

	require.NoError(t, err)
	for _, r := range resp.Results {
		assert.Contains(t, r.FilePath, "pkg/auth")
	}
}

func TestSearch_RerankTimeoutDegradesGracefullyPreservingRetrievalOrder(t *testing.T) {
	artifactsDir := buildFixtureIndex(t)
	cfg := testSearchConfig()
	cfg.RerankTimeout = 20 * time.Millisecond

	p, err := New(artifactsDir, cfg, 16, WithCrossEncoder(&slowCrossEncoder{delay: time.Second}))
	require.NoError(t, err)

	resp, err := p.Search(context.Background(), Request{Query: "render login form", RetrievalMode: "dense"})

	require.NoError(t, err)
	assert.True(t, resp.RerankSkipped)
	for _, r := range resp.Results {
		assert.Nil(t, r.RerankScore)
	}
	for i, r := range resp.Results {
		assert.Equal(t, i+1, r.RetrievalRank, "degraded mode must keep retrieval order as final order")
	}
}

func TestSearch_CacheHitRateProgressesAcrossRepeatedQueries(t *testing.T) {
	artifactsDir := buildFixtureIndex(t)
	p, err := New(artifactsDir, testSearchConfig(), 16)
	require.NoError(t, err)

	_, err = p.Search(context.Background(), Request{Query: "authenticate", RetrievalMode: "dense"})
	require.NoError(t, err)
	stats, err := p.Stats("")
	require.NoError(t, err)
	assert.Equal(t, 0.0, stats.CacheHitRate)

	_, err = p.Search(context.Background(), Request{Query: "authenticate", RetrievalMode: "dense"})
	require.NoError(t, err)
	stats, err = p.Stats("")
	require.NoError(t, err)
	assert.Equal(t, 0.5, stats.CacheHitRate)
}

func TestSearch_ReloadResetsCacheCounters(t *testing.T) {
	artifactsDir := buildFixtureIndex(t)
	p, err := New(artifactsDir, testSearchConfig(), 16)
	require.NoError(t, err)

	_, err = p.Search(context.Background(), Request{Query: "authenticate", RetrievalMode: "dense"})
	require.NoError(t, err)

	require.NoError(t, p.Reload())

	stats, err := p.Stats("")
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.CacheHits)
	assert.Equal(t, int64(0), stats.CacheMisses)
}

func TestSearch_RejectsEmptyQuery(t *testing.T) {
	artifactsDir := buildFixtureIndex(t)
	p, err := New(artifactsDir, testSearchConfig(), 16)
	require.NoError(t, err)

	_, err = p.Search(context.Background(), Request{Query: "   "})

	assert.Error(t, err)
}

func TestSearch_RejectsUnknownRetrievalMode(t *testing.T) {
	artifactsDir := buildFixtureIndex(t)
	p, err := New(artifactsDir, testSearchConfig(), 16)
	require.NoError(t, err)

	_, err = p.Search(context.Background(), Request{Query: "hello", RetrievalMode: "bogus"})

	assert.Error(t, err)
}
