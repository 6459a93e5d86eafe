package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "graph-ingest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
catalog:
  conn_string: "postgres://localhost/db"
resources:
  - name: users
    source_kind: sql
    actors:
      - kind: vertex
        vertex_name: users
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultLogLevel, cfg.Logging.Level)
	assert.Equal(t, DefaultCatalogDialect, cfg.Catalog.Kind)
	assert.Equal(t, DefaultSinkKind, cfg.Sink.Kind)
	assert.Equal(t, DefaultBatchSize, cfg.Ingestion.BatchSize)
	assert.Equal(t, DefaultMaxRetries, cfg.Ingestion.MaxRetries)
}

func TestLoadConfigWithStaticSchemaSkipsConnStringRequirement(t *testing.T) {
	path := writeConfig(t, `
schema:
  vertices:
    - name: users
      fields:
        - name: id
      primary_index: [id]
    - name: products
      fields:
        - name: id
      primary_index: [id]
  edges:
    - source: users
      target: products
      relation: purchased
resources:
  - name: users
    source_kind: sql
    actors:
      - kind: vertex
        vertex_name: users
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Schema)
	assert.Len(t, cfg.Schema.Vertices, 2)
	assert.Len(t, cfg.Schema.Edges, 1)
}

func TestLoadConfigRejectsEdgeWithUndeclaredVertex(t *testing.T) {
	path := writeConfig(t, `
schema:
  vertices:
    - name: users
      fields:
        - name: id
      primary_index: [id]
  edges:
    - source: users
      target: ghosts
      relation: haunts
resources:
  - name: users
    source_kind: sql
    actors:
      - kind: vertex
        vertex_name: users
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `target "ghosts" does not name a declared vertex`)
}

func TestLoadConfigWithPatternsCanonicalForm(t *testing.T) {
	path := writeConfig(t, `
catalog:
  conn_string: "postgres://localhost/db"
patterns:
  table_patterns:
    users:
      table_name: users
      schema_name: public
      filters:
        - field: status
          cmp_operator: "=="
          value: active
resources:
  - name: users
    source_kind: sql
    actors:
      - kind: vertex
        vertex_name: users
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Patterns)
	tp, ok := cfg.Patterns.TablePatterns["users"]
	require.True(t, ok)
	assert.Equal(t, "users", tp.TableName)
	require.Len(t, tp.Filters, 1)
}

func TestLoadConfigAllowsInferenceRunWithoutResources(t *testing.T) {
	path := writeConfig(t, `
catalog:
  conn_string: "postgres://localhost/db"
inference:
  enabled: true
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Resources)
}

func TestLoadConfigStaticSchemaRequiresResources(t *testing.T) {
	path := writeConfig(t, `
schema:
  vertices:
    - name: users
      fields:
        - name: id
      primary_index: [id]
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Config.Resources")
}

func TestLoadConfigMissingFileReturnsError(t *testing.T) {
	_, err := LoadConfig("/nonexistent/graph-ingest.yaml")
	assert.Error(t, err)
}
