package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPostgresAGESinkPoolCreationError(t *testing.T) {
	t.Setenv("AGE_TEST_DB", "graphdb")

	poolErr := errors.New("mock pool creation failure")
	original := pgxPoolNewFunc
	pgxPoolNewFunc = func(ctx context.Context, connString string) (*pgxpool.Pool, error) {
		// env expansion happens before the pool factory sees the string
		assert.Equal(t, "postgres://u:p@localhost:5432/graphdb", connString)
		return nil, poolErr
	}
	t.Cleanup(func() { pgxPoolNewFunc = original })

	_, err := NewPostgresAGESink(context.Background(), "postgres://u:p@localhost:5432/$AGE_TEST_DB", "g", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, poolErr))
	assert.Contains(t, err.Error(), "u:********@localhost")
	assert.NotContains(t, err.Error(), "u:p@")
}
