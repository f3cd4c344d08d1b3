package embed

import (
	"hash/fnv"
	"strings"
)

// HashEncoder is a deterministic, dependency-free BiEncoder test double:
// same text always yields the same vector, computed by hashing character
// trigrams into fixed-width buckets and L2-normalising the result. It
// exists because the real bi-encoder model is an injected, out-of-scope
// capability (spec §1, §6); this implementation satisfies the interface
// for tests and for running the pipeline without a model dependency.
type HashEncoder struct {
	dim   int
	model string
}

// NewHashEncoder returns a HashEncoder producing vectors of the given
// dimension.
func NewHashEncoder(dim int) *HashEncoder {
	if dim <= 0 {
		dim = 64
	}
	return &HashEncoder{dim: dim, model: "hermes-hash-encoder-v1"}
}

func (e *HashEncoder) Dim() int        { return e.dim }
func (e *HashEncoder) ModelID() string { return e.model }

func (e *HashEncoder) EncodeQuery(text string) ([]float32, error) {
	return e.encode(text), nil
}

func (e *HashEncoder) EncodeBatch(texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.encode(t)
	}
	return out, nil
}

func (e *HashEncoder) encode(text string) []float32 {
	vec := make([]float32, e.dim)
	normalized := strings.ToLower(text)
	for _, gram := range trigrams(normalized) {
		h := fnv.New32a()
		h.Write([]byte(gram))
		idx := int(h.Sum32()) % e.dim
		if idx < 0 {
			idx += e.dim
		}
		vec[idx]++
	}
	normalize(vec)
	return vec
}

func trigrams(s string) []string {
	runes := []rune(s)
	if len(runes) < 3 {
		if len(runes) == 0 {
			return nil
		}
		return []string{string(runes)}
	}
	grams := make([]string, 0, len(runes)-2)
	for i := 0; i+3 <= len(runes); i++ {
		grams = append(grams, string(runes[i:i+3]))
	}
	return grams
}
