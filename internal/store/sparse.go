package store

import (
	"encoding/json"
	"math"
	"os"
	"sort"

	"github.com/hermes-search/hermes/internal/herrors"
)

const (
	bm25K1      = 1.5
	bm25B       = 0.75
	bm25Epsilon = 0.25
)

// sparseArtifact is the exact on-disk shape of sparse_index.json (spec §6):
// {"corpus_tokens": [[token, ...], ...]}.
type sparseArtifact struct {
	CorpusTokens [][]string `json:"corpus_tokens"`
}

// SparseIndex is a BM25 Okapi ranker over a tokenised corpus, hand-rolled
// (not wrapping a full-text engine) so its on-disk format is exactly the
// tokenised-corpus JSON artifact spec §6 requires, and its scores
// reproduce original_source/src/hermes/index/sparse_index.py (built on
// rank_bm25.BM25Okapi) bit-for-bit given the same inputs.
type SparseIndex struct {
	corpus  [][]string
	docFreq []map[string]int // per-document term frequency
	idf     map[string]float64
	docLen  []int
	avgDL   float64
}

// BuildSparse tokenises each document exactly once (via TokenizeBM25) and
// builds the BM25 ranker.
func BuildSparse(texts []string) *SparseIndex {
	corpus := make([][]string, len(texts))
	for i, t := range texts {
		corpus[i] = TokenizeBM25(t)
	}
	return newSparseFromCorpus(corpus)
}

func newSparseFromCorpus(corpus [][]string) *SparseIndex {
	idx := &SparseIndex{corpus: corpus}
	idx.docFreq = make([]map[string]int, len(corpus))
	idx.docLen = make([]int, len(corpus))

	docFreqOfWord := make(map[string]int)
	totalLen := 0
	for i, doc := range corpus {
		freqs := make(map[string]int, len(doc))
		for _, word := range doc {
			freqs[word]++
		}
		idx.docFreq[i] = freqs
		idx.docLen[i] = len(doc)
		totalLen += len(doc)
		for word := range freqs {
			docFreqOfWord[word]++
		}
	}

	n := len(corpus)
	if n > 0 {
		idx.avgDL = float64(totalLen) / float64(n)
	}

	idx.idf = make(map[string]float64, len(docFreqOfWord))
	var idfSum float64
	var negative []string
	for word, freq := range docFreqOfWord {
		idf := math.Log(float64(n)-float64(freq)+0.5) - math.Log(float64(freq)+0.5)
		idx.idf[word] = idf
		idfSum += idf
		if idf < 0 {
			negative = append(negative, word)
		}
	}
	if len(idx.idf) > 0 {
		avgIDF := idfSum / float64(len(idx.idf))
		eps := bm25Epsilon * avgIDF
		for _, word := range negative {
			idx.idf[word] = eps
		}
	}

	return idx
}

// Search tokenises query, scores every document, and returns the top-k by
// descending score (stable in tie, i.e. ties keep ascending document-row
// order), as arrays of length min(k, n).
func (idx *SparseIndex) Search(query string, k int) (scores []float32, rows []int) {
	n := len(idx.corpus)
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil, nil
	}

	terms := TokenizeBM25(query)
	raw := make([]float64, n)
	for _, term := range terms {
		idf, ok := idx.idf[term]
		if !ok {
			continue
		}
		for row := 0; row < n; row++ {
			freq := float64(idx.docFreq[row][term])
			if freq == 0 {
				continue
			}
			denom := freq + bm25K1*(1-bm25B+bm25B*float64(idx.docLen[row])/idx.avgDL)
			raw[row] += idf * (freq * (bm25K1 + 1) / denom)
		}
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return raw[order[i]] > raw[order[j]] })

	scores = make([]float32, k)
	rows = make([]int, k)
	for i := 0; i < k; i++ {
		rows[i] = order[i]
		scores[i] = float32(raw[order[i]])
	}
	return scores, rows
}

// Ntotal returns the number of documents in the corpus.
func (idx *SparseIndex) Ntotal() int { return len(idx.corpus) }

// Save persists the tokenised corpus as sparse_index.json.
func (idx *SparseIndex) Save(path string) error {
	data, err := json.Marshal(sparseArtifact{CorpusTokens: idx.corpus})
	if err != nil {
		return herrors.IoError(err, "encoding sparse index")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return herrors.IoError(err, "writing sparse index %q", path)
	}
	return nil
}

// LoadSparse reads sparse_index.json and rebuilds the BM25 ranker from
// the tokens (cheap, per spec §4.6).
func LoadSparse(path string) (*SparseIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, herrors.IoError(err, "reading sparse index %q", path)
	}
	var artifact sparseArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, herrors.IoError(err, "decoding sparse index %q", path)
	}
	return newSparseFromCorpus(artifact.CorpusTokens), nil
}
