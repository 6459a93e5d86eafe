package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestPatternsUnmarshalCanonicalForm(t *testing.T) {
	doc := `
file_patterns:
  logs:
    directory: /data/logs
    name_regex: '^events_.*\.csv$'
table_patterns:
  users:
    table_name: users
    schema_name: public
    filters:
      - field: status
        cmp_operator: "=="
        value: active
sparql_patterns:
  concepts:
    endpoint_url: "https://example.org/sparql"
    rdf_class: "http://example.org/Concept"
`
	var p Patterns
	require.NoError(t, yaml.Unmarshal([]byte(doc), &p))

	fp, ok := p.FilePatterns["logs"]
	require.True(t, ok)
	assert.Equal(t, "/data/logs", fp.Directory)

	tp, ok := p.TablePatterns["users"]
	require.True(t, ok)
	assert.Equal(t, "users", tp.TableName)
	require.Len(t, tp.Filters, 1)

	sp, ok := p.SparqlPatterns["concepts"]
	require.True(t, ok)
	assert.Equal(t, "https://example.org/sparql", sp.EndpointURL)
}

func TestPatternsUnmarshalLegacyTaggedForm(t *testing.T) {
	doc := `
patterns:
  logs:
    __tag__: file
    directory: /data/logs
    name_regex: '^events_.*\.csv$'
  users:
    __tag__: table
    table_name: users
    schema_name: public
`
	var p Patterns
	require.NoError(t, yaml.Unmarshal([]byte(doc), &p))

	fp, ok := p.FilePatterns["logs"]
	require.True(t, ok)
	assert.Equal(t, "/data/logs", fp.Directory)

	tp, ok := p.TablePatterns["users"]
	require.True(t, ok)
	assert.Equal(t, "users", tp.TableName)
}

func TestPatternsUnmarshalLegacyRejectsMissingTag(t *testing.T) {
	doc := `
patterns:
  users:
    table_name: users
`
	var p Patterns
	err := yaml.Unmarshal([]byte(doc), &p)
	assert.Error(t, err)
}

func TestPatternsMarshalYAMLRoundTrip(t *testing.T) {
	p := NewPatterns()
	p.TablePatterns["users"] = &TablePattern{TableName: "users", SchemaName: "public"}

	out, err := yaml.Marshal(p)
	require.NoError(t, err)

	var reparsed Patterns
	require.NoError(t, yaml.Unmarshal(out, &reparsed))
	tp, ok := reparsed.TablePatterns["users"]
	require.True(t, ok)
	assert.Equal(t, "users", tp.TableName)
}
