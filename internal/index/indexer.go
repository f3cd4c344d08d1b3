// Package index orchestrates the indexer pipeline (C9): scan, chunk,
// insert, embed, build dense/sparse indices, and write artifacts
// atomically.
package index

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/hermes-search/hermes/internal/chunk"
	"github.com/hermes-search/hermes/internal/embed"
	"github.com/hermes-search/hermes/internal/herrors"
	"github.com/hermes-search/hermes/internal/scan"
	"github.com/hermes-search/hermes/internal/status"
	"github.com/hermes-search/hermes/internal/store"
)

// Artifact file names inside the artifacts directory (spec §6). The
// dense index file is named dense.index rather than the distilled spec's
// faiss.index, since no FAISS library is present in this stack (see
// DESIGN.md).
const (
	MetadataFile    = "metadata.db"
	DenseIndexFile  = "dense.index"
	EmbeddingsFile  = "embeddings.npy"
	SparseIndexFile = "sparse_index.json"
	RowMappingFile  = "row_mapping.json"
)

// Config bundles the knobs the indexer needs from the full configuration.
type Config struct {
	Chunking chunk.Config
	Dense    store.DenseConfig
}

// Summary is returned by Index on success (spec §4.9 step 9).
type Summary struct {
	FileCount      int
	ChunkCount     int
	EmbeddingDim   int
	BiEncoderModel string
	TimeChunkMs    float64
	TimeEmbedMs    float64
	TimeTotalMs    float64
	ChunksPerSec   float64
}

// Indexer runs the full C1->C2->C3->embed->C4/C5/C6 pipeline for a single
// repository and writes its artifacts.
type Indexer struct {
	cfg          Config
	biEncoder    embed.BiEncoder
	registry     *chunk.Registry
	logger       *slog.Logger
	artifactsDir string
	tracker      *status.Tracker
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithBiEncoder overrides the bi-encoder capability used to embed chunk
// text (defaults to embed.NewHashEncoder(64)).
func WithBiEncoder(enc embed.BiEncoder) Option {
	return func(idx *Indexer) { idx.biEncoder = enc }
}

// WithLogger overrides the logger (defaults to slog.Default()).
func WithLogger(logger *slog.Logger) Option {
	return func(idx *Indexer) { idx.logger = logger }
}

// WithRegistry overrides the chunker registry (defaults to
// chunk.DefaultRegistry()).
func WithRegistry(r *chunk.Registry) Option {
	return func(idx *Indexer) { idx.registry = r }
}

// WithStatusTracker attaches a status.Tracker that Index updates as it
// moves through indexing/done/error (SPEC_FULL.md §5). The CLI/daemon layer
// reads the same tracker concurrently to report progress.
func WithStatusTracker(t *status.Tracker) Option {
	return func(idx *Indexer) { idx.tracker = t }
}

// New creates an Indexer writing artifacts to artifactsDir.
func New(artifactsDir string, cfg Config, opts ...Option) *Indexer {
	idx := &Indexer{
		cfg:          cfg,
		artifactsDir: artifactsDir,
		biEncoder:    embed.NewHashEncoder(64),
		registry:     chunk.DefaultRegistry(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Index runs the whole-repo indexing pipeline against repoPath, returning
// a Summary on success or a *herrors.HermesError describing the failure.
func (idx *Indexer) Index(repoPath string) (Summary, error) {
	start := time.Now()

	if idx.tracker != nil {
		idx.tracker.StartIndexing(repoPath)
	}

	summary, err := idx.index(repoPath, start)
	if idx.tracker != nil {
		if err != nil {
			idx.tracker.Error(err.Error())
		} else {
			idx.tracker.Done(summary)
		}
	}
	return summary, err
}

func (idx *Indexer) index(repoPath string, start time.Time) (Summary, error) {
	if err := os.MkdirAll(idx.artifactsDir, 0o755); err != nil {
		return Summary{}, herrors.IoError(err, "creating artifacts dir %q", idx.artifactsDir)
	}

	lockPath := filepath.Join(idx.artifactsDir, ".index.lock")
	lock := flock.New(lockPath)
	if err := lock.Lock(); err != nil {
		return Summary{}, herrors.IoError(err, "acquiring artifacts lock")
	}
	defer lock.Unlock()

	// Step 1: scan.
	files, err := scan.Scan(repoPath)
	if err != nil {
		return Summary{}, err
	}
	if len(files) == 0 {
		return Summary{}, herrors.IndexBuildEmpty("repository %q contains no eligible files", repoPath)
	}

	chunkStart := time.Now()

	// Steps 2-3: read + chunk, accumulating in scan order.
	var chunks []chunk.Chunk
	for _, f := range files {
		data, err := os.ReadFile(f.AbsPath)
		if err != nil {
			idx.logger.Warn("skipping unreadable file", "path", f.AbsPath, "error", err)
			continue
		}
		source := toValidUTF8(data)
		fileChunks := idx.registry.ChunkFile(source, f.RelPath, f.Language, idx.cfg.Chunking)
		chunks = append(chunks, fileChunks...)
	}
	if len(chunks) == 0 {
		return Summary{}, herrors.IndexBuildEmpty("chunking produced zero chunks for %q", repoPath)
	}
	timeChunk := time.Since(chunkStart)

	// Step 4: insert, fixing RowMapping.
	metaPath := filepath.Join(idx.artifactsDir, MetadataFile)
	os.Remove(metaPath)
	metaStore, err := store.OpenMetadataStore(metaPath)
	if err != nil {
		return Summary{}, err
	}
	defer metaStore.Close()

	if _, err := metaStore.InsertChunks(chunks); err != nil {
		return Summary{}, err
	}

	texts, err := metaStore.AllTexts()
	if err != nil {
		return Summary{}, err
	}
	rowMapping, err := metaStore.AllChunkIDs()
	if err != nil {
		return Summary{}, err
	}
	if err := saveRowMapping(filepath.Join(idx.artifactsDir, RowMappingFile), rowMapping); err != nil {
		return Summary{}, err
	}

	// Step 5: embed in ascending-id order, as a single batch.
	embedStart := time.Now()
	matrix, err := idx.biEncoder.EncodeBatch(texts)
	if err != nil {
		return Summary{}, herrors.ModelError(err, "bi-encoder batch embedding failed")
	}
	timeEmbed := time.Since(embedStart)

	// Step 6: build + persist the dense index.
	dense := store.BuildDense(matrix, idx.cfg.Dense)
	if err := dense.Save(filepath.Join(idx.artifactsDir, DenseIndexFile)); err != nil {
		return Summary{}, err
	}

	// Step 7: persist raw embeddings as a side artifact.
	if err := saveEmbeddingsNPY(filepath.Join(idx.artifactsDir, EmbeddingsFile), matrix); err != nil {
		return Summary{}, err
	}

	// Step 8: build + persist the sparse index over the same text order.
	sparse := store.BuildSparse(texts)
	if err := sparse.Save(filepath.Join(idx.artifactsDir, SparseIndexFile)); err != nil {
		return Summary{}, err
	}

	totalTime := time.Since(start)
	chunksPerSec := 0.0
	if totalTime.Seconds() > 0 {
		chunksPerSec = float64(len(chunks)) / totalTime.Seconds()
	}

	return Summary{
		FileCount:      len(files),
		ChunkCount:     len(chunks),
		EmbeddingDim:   idx.biEncoder.Dim(),
		BiEncoderModel: idx.biEncoder.ModelID(),
		TimeChunkMs:    float64(timeChunk.Microseconds()) / 1000,
		TimeEmbedMs:    float64(timeEmbed.Microseconds()) / 1000,
		TimeTotalMs:    float64(totalTime.Microseconds()) / 1000,
		ChunksPerSec:   chunksPerSec,
	}, nil
}

func toValidUTF8(data []byte) string {
	return string([]rune(string(data)))
}

func saveRowMapping(path string, ids []int64) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return herrors.IoError(err, "encoding row mapping")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return herrors.IoError(err, "writing row mapping %q", path)
	}
	return nil
}

func loadRowMapping(path string) ([]int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, herrors.IoError(err, "reading row mapping %q", path)
	}
	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, herrors.IoError(err, "decoding row mapping %q", path)
	}
	return ids, nil
}

// LoadRowMapping exposes loadRowMapping to other packages (e.g. the search
// pipeline), which need RowMapping to translate a dense/sparse row index
// back into a chunk_id (spec §4.10).
func LoadRowMapping(artifactsDir string) ([]int64, error) {
	return loadRowMapping(filepath.Join(artifactsDir, RowMappingFile))
}

func saveEmbeddingsNPY(path string, matrix [][]float32) error {
	rows := len(matrix)
	cols := 0
	if rows > 0 {
		cols = len(matrix[0])
	}

	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%d, %d), }", rows, cols)
	// Pad the header so data starts on a 64-byte boundary, matching the
	// .npy format version 1.0 layout.
	const magicLen = 10
	total := magicLen + len(header) + 1
	pad := (64 - total%64) % 64
	for i := 0; i < pad; i++ {
		header += " "
	}
	header += "\n"

	file, err := os.Create(path)
	if err != nil {
		return herrors.IoError(err, "creating embeddings file %q", path)
	}
	defer file.Close()

	magic := []byte{0x93, 'N', 'U', 'M', 'P', 'Y', 1, 0}
	headerLen := uint16(len(header))
	if _, err := file.Write(magic); err != nil {
		return herrors.IoError(err, "writing npy magic")
	}
	if _, err := file.Write([]byte{byte(headerLen), byte(headerLen >> 8)}); err != nil {
		return herrors.IoError(err, "writing npy header length")
	}
	if _, err := file.WriteString(header); err != nil {
		return herrors.IoError(err, "writing npy header")
	}

	buf := make([]byte, 4)
	for _, row := range matrix {
		for _, v := range row {
			bits := math.Float32bits(v)
			buf[0] = byte(bits)
			buf[1] = byte(bits >> 8)
			buf[2] = byte(bits >> 16)
			buf[3] = byte(bits >> 24)
			if _, err := file.Write(buf); err != nil {
				return herrors.IoError(err, "writing npy data")
			}
		}
	}
	return nil
}
