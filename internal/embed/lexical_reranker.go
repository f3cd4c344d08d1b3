package embed

import "github.com/hermes-search/hermes/internal/store"

// LexicalOverlapReranker is a deterministic, dependency-free CrossEncoder
// test double: it scores a (query, text) pair by the count of shared BM25
// tokens, reusing the same tokeniser as the sparse index so a chunk that
// lexically matches the query scores higher. It exists because the real
// cross-encoder model is an injected, out-of-scope capability (spec §1,
// §6).
type LexicalOverlapReranker struct {
	model string
}

// NewLexicalOverlapReranker returns a LexicalOverlapReranker.
func NewLexicalOverlapReranker() *LexicalOverlapReranker {
	return &LexicalOverlapReranker{model: "hermes-lexical-reranker-v1"}
}

func (r *LexicalOverlapReranker) ModelID() string { return r.model }

func (r *LexicalOverlapReranker) ScorePairs(query string, texts []string) ([]float32, error) {
	queryTokens := store.TokenizeBM25(query)
	querySet := make(map[string]bool, len(queryTokens))
	for _, t := range queryTokens {
		querySet[t] = true
	}

	scores := make([]float32, len(texts))
	for i, text := range texts {
		tokens := store.TokenizeBM25(text)
		var overlap float32
		for _, t := range tokens {
			if querySet[t] {
				overlap++
			}
		}
		scores[i] = overlap
	}
	return scores, nil
}
