package store

import (
	"bufio"
	"encoding/gob"
	"os"

	"github.com/coder/hnsw"

	"github.com/hermes-search/hermes/internal/herrors"
)

// DenseIndex is an inner-product index over L2-normalised float32
// vectors. Row index is the id; the index keeps no id mapping of its
// own (spec §4.5).
type DenseIndex interface {
	Search(query []float32, k int) (scores []float32, rows []int)
	Save(path string) error
	Ntotal() int
	Dim() int
}

// DenseConfig controls the exact-vs-approximate decision at build time.
type DenseConfig struct {
	UseANN bool
	Nlist  int
	Nprobe int
}

// BuildDense builds a dense index over matrix (n rows of dimension d,
// already L2-normalised). It chooses the approximate (graph) variant only
// if cfg.UseANN is set and n > nlist*40; otherwise it builds the exact
// flat index. This mirrors the FAISS IndexFlatIP vs IndexIVFFlat decision
// in original_source/src/hermes/index/faiss_index.py, with coder/hnsw's
// graph standing in for FAISS's inverted-file structure.
func BuildDense(matrix [][]float32, cfg DenseConfig) DenseIndex {
	n := len(matrix)
	if cfg.UseANN && n > cfg.Nlist*40 {
		return buildANN(matrix, cfg)
	}
	return buildFlat(matrix)
}

// --- Flat (exact) variant ---

type flatIndex struct {
	matrix [][]float32
	dim    int
}

func buildFlat(matrix [][]float32) *flatIndex {
	dim := 0
	if len(matrix) > 0 {
		dim = len(matrix[0])
	}
	return &flatIndex{matrix: matrix, dim: dim}
}

func (f *flatIndex) Search(query []float32, k int) ([]float32, []int) {
	n := len(f.matrix)
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil, nil
	}

	type scored struct {
		score float32
		row   int
	}
	results := make([]scored, n)
	for i, row := range f.matrix {
		results[i] = scored{score: dot(query, row), row: i}
	}
	// partial selection sort is fine at the sizes this index targets
	for i := 0; i < k; i++ {
		best := i
		for j := i + 1; j < n; j++ {
			if results[j].score > results[best].score {
				best = j
			}
		}
		results[i], results[best] = results[best], results[i]
	}

	scores := make([]float32, k)
	rows := make([]int, k)
	for i := 0; i < k; i++ {
		scores[i] = results[i].score
		rows[i] = results[i].row
	}
	return scores, rows
}

func (f *flatIndex) Ntotal() int { return len(f.matrix) }
func (f *flatIndex) Dim() int    { return f.dim }

func (f *flatIndex) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return herrors.IoError(err, "creating dense index file %q", path)
	}
	defer file.Close()

	payload := struct {
		Variant string
		Matrix  [][]float32
		Dim     int
	}{Variant: "flat", Matrix: f.matrix, Dim: f.dim}

	if err := gob.NewEncoder(file).Encode(&payload); err != nil {
		return herrors.IoError(err, "encoding dense index %q", path)
	}
	return nil
}

func dot(a, b []float32) float32 {
	var sum float32
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// --- Approximate (ANN, graph-based) variant ---

type annIndex struct {
	graph  *hnsw.Graph[uint64]
	n      int
	dim    int
	nprobe int
}

func buildANN(matrix [][]float32, cfg DenseConfig) *annIndex {
	dim := 0
	if len(matrix) > 0 {
		dim = len(matrix[0])
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = cfg.Nprobe
	if graph.EfSearch <= 0 {
		graph.EfSearch = 8
	}
	graph.Ml = 0.25

	for i, vec := range matrix {
		graph.Add(hnsw.MakeNode(uint64(i), vec))
	}

	return &annIndex{graph: graph, n: len(matrix), dim: dim, nprobe: cfg.Nprobe}
}

func (a *annIndex) Search(query []float32, k int) ([]float32, []int) {
	if a.n == 0 {
		return nil, nil
	}
	nodes := a.graph.Search(query, k)
	scores := make([]float32, 0, len(nodes))
	rows := make([]int, 0, len(nodes))
	for _, node := range nodes {
		// CosineDistance is 1 - cosine similarity for unit vectors; invert
		// back to an inner-product-like score so callers rank identically
		// to the flat variant.
		dist := a.graph.Distance(query, node.Value)
		scores = append(scores, 1-dist)
		rows = append(rows, int(node.Key))
	}
	return scores, rows
}

func (a *annIndex) Ntotal() int { return a.n }
func (a *annIndex) Dim() int    { return a.dim }

// annMeta is the small sidecar gob payload recording what Search needs to
// reconstruct an annIndex around an imported graph; the graph itself isn't
// gob-friendly and is persisted separately via its own native encoding.
type annMeta struct {
	N      int
	Dim    int
	Nprobe int
}

func annMetaPath(path string) string { return path + ".meta" }

// Save persists the graph via coder/hnsw's own lossless Export, exactly as
// the teacher's internal/store/hnsw.go does, rather than reconstructing the
// vector set from a Search call (which is approximate and can silently
// drop nodes).
func (a *annIndex) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return herrors.IoError(err, "creating dense index file %q", path)
	}
	defer file.Close()

	if err := a.graph.Export(file); err != nil {
		return herrors.IoError(err, "exporting ann graph %q", path)
	}

	metaFile, err := os.Create(annMetaPath(path))
	if err != nil {
		return herrors.IoError(err, "creating dense index metadata %q", path)
	}
	defer metaFile.Close()

	meta := annMeta{N: a.n, Dim: a.dim, Nprobe: a.nprobe}
	if err := gob.NewEncoder(metaFile).Encode(&meta); err != nil {
		return herrors.IoError(err, "encoding dense index metadata %q", path)
	}
	return nil
}

// --- Load ---

// LoadDense loads a dense index previously written by Save. The ann
// variant is distinguished by the presence of its ".meta" sidecar file
// (the flat variant never writes one).
func LoadDense(path string) (DenseIndex, error) {
	if _, err := os.Stat(annMetaPath(path)); err == nil {
		return loadANN(path)
	}
	return loadFlat(path)
}

func loadFlat(path string) (DenseIndex, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, herrors.IoError(err, "opening dense index %q", path)
	}
	defer file.Close()

	var payload struct {
		Variant string
		Matrix  [][]float32
		Dim     int
	}
	if err := gob.NewDecoder(file).Decode(&payload); err != nil {
		return nil, herrors.IoError(err, "decoding dense index %q", path)
	}
	return &flatIndex{matrix: payload.Matrix, dim: payload.Dim}, nil
}

func loadANN(path string) (DenseIndex, error) {
	metaFile, err := os.Open(annMetaPath(path))
	if err != nil {
		return nil, herrors.IoError(err, "opening dense index metadata %q", path)
	}
	var meta annMeta
	err = gob.NewDecoder(metaFile).Decode(&meta)
	metaFile.Close()
	if err != nil {
		return nil, herrors.IoError(err, "decoding dense index metadata %q", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, herrors.IoError(err, "opening dense index %q", path)
	}
	defer file.Close()

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = meta.Nprobe
	if graph.EfSearch <= 0 {
		graph.EfSearch = 8
	}
	graph.Ml = 0.25

	// coder/hnsw's Import requires an io.ByteReader.
	reader := bufio.NewReader(file)
	if err := graph.Import(reader); err != nil {
		return nil, herrors.IoError(err, "importing ann graph %q", path)
	}

	return &annIndex{graph: graph, n: meta.N, dim: meta.Dim, nprobe: meta.Nprobe}, nil
}
