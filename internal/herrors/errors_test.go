package herrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIs_MatchesKind(t *testing.T) {
	// Given: a ConfigInvalid error
	err := ConfigInvalid("bad value %d", 42)

	// When/Then: Is reports true for its own kind, false for another
	assert.True(t, Is(err, KindConfigInvalid))
	assert.False(t, Is(err, KindIoError))
}

func TestIs_NonHermesError(t *testing.T) {
	// Given: a plain error
	err := errors.New("boom")

	// Then: Is never matches a non-HermesError
	assert.False(t, Is(err, KindIoError))
	assert.Equal(t, Kind(""), KindOf(err))
}

func TestUnwrap_ExposesCause(t *testing.T) {
	// Given: an IoError wrapping a cause
	cause := errors.New("disk full")
	err := IoError(cause, "writing artifact")

	// Then: errors.Is/Unwrap see through to the cause
	assert.True(t, errors.Is(err, cause))
}

func TestWithDetail_Chains(t *testing.T) {
	// Given: a validation error
	err := ValidationError("top_k_retrieve must be in [1,1000], got %d", -1)

	// When: attaching details
	result := err.WithDetail("field", "top_k_retrieve").WithDetail("value", -1)

	// Then: the same error is returned with both details set
	assert.Same(t, err, result)
	assert.Equal(t, "top_k_retrieve", result.Details["field"])
	assert.Equal(t, -1, result.Details["value"])
}

func TestError_MessageIncludesCause(t *testing.T) {
	// Given: an error with a cause
	cause := errors.New("permission denied")
	err := IoError(cause, "opening %s", "metadata.db")

	// Then: Error() surfaces both the message and the cause
	msg := err.Error()
	assert.Contains(t, msg, "opening metadata.db")
	assert.Contains(t, msg, "permission denied")
}
