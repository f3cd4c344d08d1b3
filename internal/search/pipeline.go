// Package search implements the query-time pipeline (C10): embed the
// query, retrieve candidates, filter, rerank with a timeout, and project
// the final result page.
package search

import (
	"context"
	"encoding/hex"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hermes-search/hermes/internal/config"
	"github.com/hermes-search/hermes/internal/embed"
	"github.com/hermes-search/hermes/internal/fusion"
	"github.com/hermes-search/hermes/internal/herrors"
	"github.com/hermes-search/hermes/internal/index"
	"github.com/hermes-search/hermes/internal/store"
)

// Request is the service-boundary search request (spec §6).
type Request struct {
	Query            string `json:"query"`
	TopKRetrieve     int    `json:"top_k_retrieve"`
	TopKRerank       int    `json:"top_k_rerank"`
	RetrievalMode    string `json:"retrieval_mode"` // "", "dense", "sparse", "hybrid"; "" = server default
	FilterLanguage   string `json:"filter_language"`
	FilterPathPrefix string `json:"filter_path_prefix"`
	ReturnSnippets   bool   `json:"return_snippets"`
}

// ResultItem is one projected search result (spec §6).
type ResultItem struct {
	ChunkID        int64    `json:"chunk_id"`
	FilePath       string   `json:"file_path"`
	Language       string   `json:"language"`
	StartLine      int      `json:"start_line"`
	EndLine        int      `json:"end_line"`
	SymbolName     string   `json:"symbol_name"`
	CodeSnippet    *string  `json:"code_snippet"`
	RetrievalRank  int      `json:"retrieval_rank"`
	RetrievalScore float64  `json:"retrieval_score"`
	RerankScore    *float64 `json:"rerank_score"`
	FinalRank      int      `json:"final_rank"`
}

// Response is the service-boundary search response (spec §4.10/§6).
type Response struct {
	RequestID       string             `json:"request_id"`
	Query           string             `json:"query"`
	RetrievalMode   string             `json:"retrieval_mode"`
	Results         []ResultItem       `json:"results"`
	Timings         map[string]float64 `json:"timings"`
	RerankSkipped   bool               `json:"rerank_skipped"`
	TotalCandidates int                `json:"total_candidates"`
}

// Stats is the service-boundary stats response (spec §6).
type Stats struct {
	IndexSize      int     `json:"index_size"`
	NChunks        int     `json:"n_chunks"`
	BiEncoderModel string  `json:"biencoder_model"`
	CrossEncoder   string  `json:"crossencoder_model"`
	RetrievalMode  string  `json:"retrieval_mode"`
	CacheHitRate   float64 `json:"cache_hit_rate"`
	CacheHits      int64   `json:"cache_hits"`
	CacheMisses    int64   `json:"cache_misses"`
}

type candidate struct {
	chunkID        int64
	retrievalRank  int
	retrievalScore float64
}

// snapshot bundles the artifact set that a single reload() swaps in as one
// atomic unit, per the Open Question decision recorded in DESIGN.md.
type snapshot struct {
	meta       *store.MetadataStore
	dense      store.DenseIndex
	sparse     *store.SparseIndex // nil if sparse_index.json absent
	rowMapping []int64
}

// chunkIDForRow translates a dense/sparse row index into a chunk_id via
// RowMapping, the ascending chunk_id sequence captured at index build time
// (spec §4.10). Out-of-range rows return (0, false) and are skipped by the
// caller.
func (s *snapshot) chunkIDForRow(row int) (int64, bool) {
	if row < 0 || row >= len(s.rowMapping) {
		return 0, false
	}
	return s.rowMapping[row], true
}

// Pipeline is the query-time search service. Safe for concurrent use by
// multiple callers of Search/Stats; Reload swaps the active snapshot
// atomically.
type Pipeline struct {
	artifactsDir string
	cfg          config.SearchConfig
	biEncoder    embed.BiEncoder
	crossEncoder embed.CrossEncoder
	cache        *embed.Cache

	current atomic.Pointer[snapshot]

	rerankSem chan struct{}
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithBiEncoder overrides the bi-encoder capability.
func WithBiEncoder(enc embed.BiEncoder) Option {
	return func(p *Pipeline) { p.biEncoder = enc }
}

// WithCrossEncoder overrides the cross-encoder capability.
func WithCrossEncoder(enc embed.CrossEncoder) Option {
	return func(p *Pipeline) { p.crossEncoder = enc }
}

// WithRerankWorkers sets the rerank worker pool capacity (minimum 1).
func WithRerankWorkers(n int) Option {
	return func(p *Pipeline) {
		if n < 1 {
			n = 1
		}
		p.rerankSem = make(chan struct{}, n)
	}
}

// New creates a Pipeline and performs the initial artifact load.
func New(artifactsDir string, cfg config.SearchConfig, cacheSize int, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		artifactsDir: artifactsDir,
		cfg:          cfg,
		biEncoder:    embed.NewHashEncoder(64),
		crossEncoder: embed.NewLexicalOverlapReranker(),
		cache:        embed.NewCache(cacheSize),
		rerankSem:    make(chan struct{}, 2),
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload re-opens the metadata store and reloads the dense/sparse indices
// from artifactsDir, then resets the embedding cache, all as a single
// atomic pointer swap (spec §5, §8).
func (p *Pipeline) Reload() error {
	// Hold the indexer's artifacts lock in shared mode while loading, so an
	// index run in progress is never observed half-written.
	lock := flock.New(filepath.Join(p.artifactsDir, ".index.lock"))
	if err := lock.RLock(); err != nil {
		return herrors.IoError(err, "acquiring artifacts lock")
	}
	defer lock.Unlock()

	meta, err := store.OpenMetadataStore(filepath.Join(p.artifactsDir, index.MetadataFile))
	if err != nil {
		return err
	}

	dense, err := store.LoadDense(filepath.Join(p.artifactsDir, index.DenseIndexFile))
	if err != nil {
		meta.Close()
		return herrors.IndexMissing("loading dense index: %v", err)
	}

	sparse, err := store.LoadSparse(filepath.Join(p.artifactsDir, index.SparseIndexFile))
	if err != nil {
		sparse = nil // sparse is optional; hybrid degrades to dense-only.
	}

	rowMapping, err := index.LoadRowMapping(p.artifactsDir)
	if err != nil {
		meta.Close()
		return herrors.IndexMissing("loading row mapping: %v", err)
	}

	next := &snapshot{meta: meta, dense: dense, sparse: sparse, rowMapping: rowMapping}
	prev := p.current.Swap(next)
	p.cache.Clear()
	if prev != nil {
		prev.meta.Close()
	}
	return nil
}

// Stats reports current index/cache statistics.
func (p *Pipeline) Stats(retrievalMode string) (Stats, error) {
	snap := p.current.Load()
	if snap == nil {
		return Stats{}, herrors.IndexMissing("no index loaded")
	}
	n, err := snap.meta.Count()
	if err != nil {
		return Stats{}, err
	}
	if retrievalMode == "" {
		retrievalMode = p.cfg.RetrievalMode
	}
	return Stats{
		IndexSize:      snap.dense.Ntotal(),
		NChunks:        n,
		BiEncoderModel: p.biEncoder.ModelID(),
		CrossEncoder:   p.crossEncoder.ModelID(),
		RetrievalMode:  retrievalMode,
		CacheHitRate:   round4(p.cache.HitRate()),
		CacheHits:      p.cache.Hits(),
		CacheMisses:    p.cache.Misses(),
	}, nil
}

// Search runs the full query pipeline (spec §4.10).
func (p *Pipeline) Search(ctx context.Context, req Request) (Response, error) {
	snap := p.current.Load()
	if snap == nil {
		return Response{}, herrors.IndexMissing("no index loaded")
	}

	if err := validateRequest(&req, p.cfg); err != nil {
		return Response{}, err
	}

	start := time.Now()
	requestID := newRequestID()

	// 1. Embed query (with cache).
	embedStart := time.Now()
	queryVec, ok := p.cache.Get(req.Query)
	if !ok {
		vec, err := p.biEncoder.EncodeQuery(req.Query)
		if err != nil {
			return Response{}, herrors.ModelError(err, "bi-encoder query embedding failed")
		}
		queryVec = vec
		p.cache.Put(req.Query, vec)
	}
	embedMs := msSince(embedStart)

	// 2. Retrieve.
	retrieveStart := time.Now()
	mode := req.RetrievalMode
	if mode == "" {
		mode = p.cfg.RetrievalMode
	}
	candidates, err := p.retrieve(ctx, snap, mode, queryVec, req.Query, req.TopKRetrieve)
	if err != nil {
		return Response{}, err
	}
	retrievalMs := msSince(retrieveStart)

	// 3. Filter.
	candidates, err = p.filter(snap, candidates, req.FilterLanguage, req.FilterPathPrefix)
	if err != nil {
		return Response{}, err
	}
	totalCandidates := len(candidates)

	// 4. Rerank.
	rerankStart := time.Now()
	rerankScores, rerankSkipped, err := p.rerank(ctx, snap, req.Query, candidates, p.cfg.MaxRerankCandidates, p.cfg.RerankTimeout)
	if err != nil {
		return Response{}, err
	}
	rerankMs := msSince(rerankStart)

	// 5. Project.
	topKRerank := req.TopKRerank
	if topKRerank <= 0 {
		topKRerank = p.cfg.TopKRerank
	}
	items, err := p.project(snap, candidates, rerankScores, topKRerank, req.ReturnSnippets)
	if err != nil {
		return Response{}, err
	}

	return Response{
		RequestID:     requestID,
		Query:         req.Query,
		RetrievalMode: mode,
		Results:       items,
		Timings: map[string]float64{
			"embed_query_ms": embedMs,
			"retrieval_ms":   retrievalMs,
			"rerank_ms":      rerankMs,
			"total_ms":       msSince(start),
		},
		RerankSkipped:   rerankSkipped,
		TotalCandidates: totalCandidates,
	}, nil
}

func (p *Pipeline) retrieve(ctx context.Context, snap *snapshot, mode string, queryVec []float32, queryText string, topK int) ([]candidate, error) {
	switch mode {
	case "dense":
		return denseRetrieve(snap, queryVec, topK), nil
	case "sparse":
		return sparseRetrieve(snap, queryText, topK), nil
	case "hybrid":
		var dense, sparse []candidate
		g, _ := errgroup.WithContext(ctx)
		g.Go(func() error {
			dense = denseRetrieve(snap, queryVec, topK)
			return nil
		})
		g.Go(func() error {
			sparse = sparseRetrieve(snap, queryText, topK)
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return fuseHybrid(dense, sparse, p.cfg.RRFK, topK), nil
	default:
		return nil, herrors.ValidationError("unknown retrieval_mode %q", mode)
	}
}

func denseRetrieve(snap *snapshot, queryVec []float32, topK int) []candidate {
	scores, rows := snap.dense.Search(queryVec, topK)
	out := make([]candidate, 0, len(rows))
	for rank, row := range rows {
		chunkID, ok := snap.chunkIDForRow(row)
		if !ok {
			continue
		}
		out = append(out, candidate{chunkID: chunkID, retrievalRank: rank + 1, retrievalScore: float64(scores[rank])})
	}
	return out
}

func sparseRetrieve(snap *snapshot, queryText string, topK int) []candidate {
	if snap.sparse == nil {
		return nil
	}
	scores, rows := snap.sparse.Search(queryText, topK)
	out := make([]candidate, 0, len(rows))
	for rank, row := range rows {
		chunkID, ok := snap.chunkIDForRow(row)
		if !ok {
			continue
		}
		out = append(out, candidate{chunkID: chunkID, retrievalRank: rank + 1, retrievalScore: float64(scores[rank])})
	}
	return out
}

func fuseHybrid(dense, sparse []candidate, rrfK, topK int) []candidate {
	toRanked := func(cands []candidate) []fusion.Ranked {
		r := make([]fusion.Ranked, len(cands))
		for i, c := range cands {
			r[i] = fusion.Ranked{ID: c.chunkID, Score: float32(c.retrievalScore)}
		}
		return r
	}
	fused := fusion.RRF([][]fusion.Ranked{toRanked(dense), toRanked(sparse)}, rrfK, topK)

	out := make([]candidate, len(fused))
	for i, f := range fused {
		out[i] = candidate{chunkID: f.ID, retrievalRank: i + 1, retrievalScore: f.Score}
	}
	return out
}

func (p *Pipeline) filter(snap *snapshot, candidates []candidate, language, pathPrefix string) ([]candidate, error) {
	if language == "" && pathPrefix == "" {
		return candidates, nil
	}

	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.chunkID
	}
	records, err := snap.meta.GetChunksByIDs(ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]store.ChunkRecord, len(records))
	for _, r := range records {
		byID[r.ChunkID] = r
	}

	out := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		rec, ok := byID[c.chunkID]
		if !ok {
			continue
		}
		if language != "" && rec.Language != language {
			continue
		}
		if pathPrefix != "" && !strings.HasPrefix(rec.FilePath, pathPrefix) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// rerank submits the first maxCandidates to the cross-encoder on a
// background worker with a wall-clock timeout. Returns a chunk_id -> score
// map (nil/empty if skipped) and whether the rerank was skipped.
func (p *Pipeline) rerank(ctx context.Context, snap *snapshot, query string, candidates []candidate, maxCandidates int, timeout time.Duration) (map[int64]float64, bool, error) {
	if len(candidates) == 0 {
		return nil, false, nil
	}

	n := maxCandidates
	if n <= 0 || n > len(candidates) {
		n = len(candidates)
	}
	slice := candidates[:n]

	ids := make([]int64, len(slice))
	for i, c := range slice {
		ids[i] = c.chunkID
	}
	records, err := snap.meta.GetChunksByIDs(ids)
	if err != nil {
		return nil, false, err
	}
	textByID := make(map[int64]string, len(records))
	for _, r := range records {
		textByID[r.ChunkID] = r.CodeText
	}
	texts := make([]string, len(slice))
	for i, c := range slice {
		texts[i] = textByID[c.chunkID]
	}

	type result struct {
		scores []float32
		err    error
	}
	resultCh := make(chan result, 1)

	p.rerankSem <- struct{}{}
	go func() {
		defer func() { <-p.rerankSem }()
		scores, err := p.crossEncoder.ScorePairs(query, texts)
		resultCh <- result{scores: scores, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, false, herrors.ModelError(res.err, "cross-encoder scoring failed")
		}
		scores := make(map[int64]float64, len(slice))
		for i, c := range slice {
			scores[c.chunkID] = float64(res.scores[i])
		}
		return scores, false, nil
	case <-timer.C:
		return nil, true, nil
	case <-ctx.Done():
		return nil, true, nil
	}
}

func (p *Pipeline) project(snap *snapshot, candidates []candidate, rerankScores map[int64]float64, topKRerank int, returnSnippets bool) ([]ResultItem, error) {
	if len(candidates) == 0 {
		return []ResultItem{}, nil
	}

	ordered := candidates
	if len(rerankScores) > 0 {
		n := len(rerankScores)
		head := append([]candidate(nil), candidates[:n]...)
		tail := candidates[n:]
		sort.SliceStable(head, func(i, j int) bool {
			return rerankScores[head[i].chunkID] > rerankScores[head[j].chunkID]
		})
		ordered = append(head, tail...)
	}

	if len(ordered) > topKRerank {
		ordered = ordered[:topKRerank]
	}

	ids := make([]int64, len(ordered))
	for i, c := range ordered {
		ids[i] = c.chunkID
	}
	records, err := snap.meta.GetChunksByIDs(ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]store.ChunkRecord, len(records))
	for _, r := range records {
		byID[r.ChunkID] = r
	}

	items := make([]ResultItem, 0, len(ordered))
	for rank, c := range ordered {
		rec, ok := byID[c.chunkID]
		if !ok {
			continue
		}
		var snippet *string
		if returnSnippets {
			text := rec.CodeText
			snippet = &text
		}
		var rerankScore *float64
		if score, ok := rerankScores[c.chunkID]; ok {
			rounded := round4(score)
			rerankScore = &rounded
		}
		items = append(items, ResultItem{
			ChunkID:        rec.ChunkID,
			FilePath:       rec.FilePath,
			Language:       rec.Language,
			StartLine:      rec.StartLine,
			EndLine:        rec.EndLine,
			SymbolName:     rec.SymbolName,
			CodeSnippet:    snippet,
			RetrievalRank:  c.retrievalRank,
			RetrievalScore: round4(c.retrievalScore),
			RerankScore:    rerankScore,
			FinalRank:      rank + 1,
		})
	}
	return items, nil
}

func validateRequest(req *Request, cfg config.SearchConfig) error {
	if strings.TrimSpace(req.Query) == "" {
		return herrors.ValidationError("query must be non-empty")
	}
	if req.TopKRetrieve == 0 {
		req.TopKRetrieve = cfg.TopKRetrieve
	}
	if req.TopKRetrieve < 1 || req.TopKRetrieve > 1000 {
		return herrors.ValidationError("top_k_retrieve must be in [1,1000], got %d", req.TopKRetrieve)
	}
	if req.TopKRerank == 0 {
		req.TopKRerank = cfg.TopKRerank
	}
	if req.TopKRerank < 1 || req.TopKRerank > 200 {
		return herrors.ValidationError("top_k_rerank must be in [1,200], got %d", req.TopKRerank)
	}
	switch req.RetrievalMode {
	case "", "dense", "sparse", "hybrid":
	default:
		return herrors.ValidationError("retrieval_mode must be dense|sparse|hybrid, got %q", req.RetrievalMode)
	}
	return nil
}

func newRequestID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])[:12]
}

func msSince(t time.Time) float64 {
	return round2(float64(time.Since(t).Microseconds()) / 1000)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
