package store

import (
	"regexp"
	"strings"
)

// tokenRunRegex extracts maximal runs of ASCII letters or digits (never
// mixed in the same run), matching original_source/src/hermes/index/sparse_index.py's
// tokenizer exactly so BM25 scores reproduce the reference implementation.
var tokenRunRegex = regexp.MustCompile(`[a-zA-Z]+|[0-9]+`)

// camelBoundary inserts a split point at every lower-to-upper transition.
var camelBoundary = regexp.MustCompile(`([a-z])([A-Z])`)

// TokenizeBM25 implements spec §3's sparse-index tokeniser: extract
// maximal runs of ASCII letters or digits, split each on camelCase
// boundaries, lowercase, and drop tokens of length <= 1.
func TokenizeBM25(text string) []string {
	runs := tokenRunRegex.FindAllString(text, -1)

	var tokens []string
	for _, run := range runs {
		spaced := camelBoundary.ReplaceAllString(run, "$1 $2")
		for _, piece := range strings.Fields(spaced) {
			lower := strings.ToLower(piece)
			if len(lower) > 1 {
				tokens = append(tokens, lower)
			}
		}
	}
	return tokens
}
