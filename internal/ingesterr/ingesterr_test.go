package ingesterr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsSentinel(t *testing.T) {
	cause := errors.New("connection refused")
	err := New(Catalog, "catalog.postgres", "orders", cause)

	assert.True(t, errors.Is(err, ErrCatalog))
	assert.False(t, errors.Is(err, ErrSink))
	assert.Contains(t, err.Error(), "catalog")
	assert.Contains(t, err.Error(), "orders")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestInferenceIsNonFatal(t *testing.T) {
	err := New(Inference, "schema.infer", "legacy_table", errors.New("ambiguous relation"))
	assert.False(t, err.IsFatal())

	fatal := New(Sink, "sink.neo4j", "users", errors.New("timeout"))
	assert.True(t, fatal.IsFatal())
}

func TestInvariantViolationPanics(t *testing.T) {
	assert.PanicsWithValue(t, "ingesterr: invariant violation: leaf must have exactly one dep", func() {
		InvariantViolation("leaf must have exactly one dep")
	})
}
