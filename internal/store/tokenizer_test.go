package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeBM25_SplitsCamelCase(t *testing.T) {
	tokens := TokenizeBM25("handleRequest")

	assert.Equal(t, []string{"handle", "request"}, tokens)
}

func TestTokenizeBM25_SplitsOnEveryLowerUpperTransition(t *testing.T) {
	tokens := TokenizeBM25("getUserID")

	assert.Equal(t, []string{"get", "user", "id"}, tokens)
}

func TestTokenizeBM25_DropsSingleCharTokens(t *testing.T) {
	tokens := TokenizeBM25("a b cc d1 x")

	assert.Equal(t, []string{"cc"}, tokens)
}

func TestTokenizeBM25_SeparatesLettersFromDigits(t *testing.T) {
	tokens := TokenizeBM25("utf88encoding")

	assert.Equal(t, []string{"utf", "88", "encoding"}, tokens)
}

func TestTokenizeBM25_Lowercases(t *testing.T) {
	tokens := TokenizeBM25("AUTH token")

	assert.Equal(t, []string{"auth", "token"}, tokens)
}

func TestTokenizeBM25_IgnoresPunctuation(t *testing.T) {
	tokens := TokenizeBM25("foo.bar(baz_qux)")

	assert.Equal(t, []string{"foo", "bar", "baz", "qux"}, tokens)
}
