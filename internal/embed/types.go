package embed

import "math"

// BiEncoder is the injected capability producing a unit-norm vector per
// text (spec §6). Batch size and max sequence length are
// implementation-internal to whatever satisfies this interface.
type BiEncoder interface {
	EncodeBatch(texts []string) ([][]float32, error)
	EncodeQuery(text string) ([]float32, error)
	Dim() int
	ModelID() string
}

// CrossEncoder is the injected capability scoring a (query, passage) pair;
// higher is more relevant. Must be safe to call from the rerank worker.
type CrossEncoder interface {
	ScorePairs(query string, texts []string) ([]float32, error)
	ModelID() string
}

func normalize(v []float32) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSquares))
	for i := range v {
		v[i] /= norm
	}
}
