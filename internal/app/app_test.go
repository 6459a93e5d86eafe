package app

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growgraph/graph-ingest/internal/config"
	"github.com/growgraph/graph-ingest/internal/pattern"
	"github.com/growgraph/graph-ingest/internal/pipeline"
	"github.com/growgraph/graph-ingest/internal/schema"
	"github.com/growgraph/graph-ingest/internal/source"
)

func TestRunHelpPrintsUsageWithoutError(t *testing.T) {
	a := NewAppRunner()
	err := a.Run([]string{"-help"})
	require.NoError(t, err)
}

func TestRunNoArgsPrintsUsageWithoutError(t *testing.T) {
	a := NewAppRunner()
	err := a.Run(nil)
	require.NoError(t, err)
}

func TestRunBadFlagReturnsErrUsage(t *testing.T) {
	a := NewAppRunner()
	err := a.Run([]string{"-not-a-flag"})
	assert.True(t, errors.Is(err, ErrUsage))
}

func TestRunMissingConfigReturnsErrConfigNotFound(t *testing.T) {
	a := NewAppRunner()
	err := a.Run([]string{"-config", "/nonexistent/graph-ingest.yaml"})
	assert.True(t, errors.Is(err, ErrConfigNotFound))
}

func TestUsageWritesNonEmptyText(t *testing.T) {
	var buf bytes.Buffer
	NewAppRunner().Usage(&buf)
	assert.Contains(t, buf.String(), "graph-ingest")
}

func TestBuildActorsSeparatesEdgeResources(t *testing.T) {
	actors, hasEdge, err := buildActors([]config.ActorConfig{
		{Kind: "vertex", VertexName: "users"},
	})
	require.NoError(t, err)
	assert.False(t, hasEdge)
	assert.Len(t, actors, 1)

	actors, hasEdge, err = buildActors([]config.ActorConfig{
		{Kind: "edge", From: "users", To: "products", MatchSource: "user_id", MatchTarget: "product_id"},
	})
	require.NoError(t, err)
	assert.True(t, hasEdge)
	assert.Len(t, actors, 1)
}

func TestBuildActorsRejectsUnknownKind(t *testing.T) {
	_, _, err := buildActors([]config.ActorConfig{{Kind: "bogus"}})
	assert.Error(t, err)
}

func TestBuildDataSourceRejectsUnknownKind(t *testing.T) {
	_, err := buildDataSource(config.ResourceConfig{Name: "r", SourceKind: "bogus"}, "", &pipeline.Resource{}, false, nil, nil, config.IngestionConfig{})
	assert.Error(t, err)
}

func TestBuildDataSourceUsesPatternQueryForSQLResource(t *testing.T) {
	patterns := pattern.NewPatterns()
	patterns.TablePatterns["users"] = &pattern.TablePattern{TableName: "users", SchemaName: "public"}

	rc := config.ResourceConfig{Name: "users", SourceKind: "sql", Query: "SELECT * FROM ignored"}
	resource := &pipeline.Resource{Name: "users", Actors: []pipeline.ActorNode{&pipeline.VertexActor{VertexName: "users"}}}

	ds, err := buildDataSource(rc, "postgres://localhost/db", resource, false, patterns, nil, config.IngestionConfig{})
	require.NoError(t, err)
	sqlSource, ok := ds.(*source.SQLSource)
	require.True(t, ok)
	assert.Equal(t, `SELECT * FROM "public"."users"`, sqlSource.Query)
	assert.Equal(t, "postgres://localhost/db", sqlSource.ConnStr)
}

func TestBuildDataSourceAutoJoinsEdgeResource(t *testing.T) {
	b := schema.NewBuilder()
	b.AddVertex(&schema.VertexType{Name: "users", Fields: []schema.FieldDescriptor{{Name: "id"}}, PrimaryIndex: []string{"id"}})
	b.AddVertex(&schema.VertexType{Name: "products", Fields: []schema.FieldDescriptor{{Name: "id"}}, PrimaryIndex: []string{"id"}})
	g, err := b.Build()
	require.NoError(t, err)

	patterns := pattern.NewPatterns()
	patterns.TablePatterns["users"] = &pattern.TablePattern{TableName: "users", SchemaName: "public"}
	patterns.TablePatterns["products"] = &pattern.TablePattern{TableName: "products", SchemaName: "public"}
	patterns.TablePatterns["purchases"] = &pattern.TablePattern{TableName: "purchases", SchemaName: "public"}

	rc := config.ResourceConfig{Name: "purchases", SourceKind: "sql"}
	resource := &pipeline.Resource{
		Name: "purchases",
		Actors: []pipeline.ActorNode{
			&pipeline.EdgeActor{From: "users", To: "products", MatchSource: "user_id", MatchTarget: "product_id", Relation: "purchased"},
		},
	}

	ds, err := buildDataSource(rc, "postgres://localhost/db", resource, true, patterns, g, config.IngestionConfig{})
	require.NoError(t, err)
	sqlSource, ok := ds.(*source.SQLSource)
	require.True(t, ok)
	q := sqlSource.Query
	assert.Contains(t, q, `LEFT JOIN "public"."users" s ON r."user_id" = s."id"`)
	assert.Contains(t, q, `LEFT JOIN "public"."products" t ON r."product_id" = t."id"`)
	assert.Contains(t, q, `s."id" IS NOT NULL`)
	assert.Contains(t, q, `t."id" IS NOT NULL`)
}

func TestBuildDataSourceAppliesDatetimeColumnWhenDateFieldUnset(t *testing.T) {
	patterns := pattern.NewPatterns()
	patterns.TablePatterns["purchases"] = &pattern.TablePattern{TableName: "purchases", SchemaName: "public"}

	rc := config.ResourceConfig{Name: "purchases", SourceKind: "sql"}
	resource := &pipeline.Resource{Name: "purchases", Actors: []pipeline.ActorNode{&pipeline.VertexActor{VertexName: "purchases"}}}
	ing := config.IngestionConfig{DatetimeColumn: "purchase_date", DatetimeAfter: "2020-02-01", DatetimeBefore: "2020-06-01"}

	ds, err := buildDataSource(rc, "postgres://localhost/db", resource, false, patterns, nil, ing)
	require.NoError(t, err)
	sqlSource, ok := ds.(*source.SQLSource)
	require.True(t, ok)
	assert.Contains(t, sqlSource.Query, `"purchase_date" >= '2020-02-01'`)
	assert.Contains(t, sqlSource.Query, `"purchase_date" < '2020-06-01'`)
}

func TestBuildStaticGraphFromSchemaConfig(t *testing.T) {
	sc := &config.SchemaConfig{
		Vertices: []config.VertexConfig{
			{Name: "users", Fields: []config.FieldConfig{{Name: "id"}}, PrimaryIndex: []string{"id"}},
		},
		Edges: []config.EdgeConfig{
			{Source: "users", Target: "users", Relation: "follows"},
		},
	}
	g, err := buildStaticGraph(sc)
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, g.VertexNames())
	require.Len(t, g.Edges(), 1)
	assert.Equal(t, "follows", g.Edges()[0].Relation)
}

func TestNewCatalogReaderRejectsUnknownKind(t *testing.T) {
	_, err := newCatalogReader("bogus", "", "")
	assert.Error(t, err)
}
