package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growgraph/graph-ingest/internal/filter"
	"github.com/growgraph/graph-ingest/internal/pipeline"
	"github.com/growgraph/graph-ingest/internal/schema"
)

func TestTablePatternMatchesExactAndRegex(t *testing.T) {
	exact := &TablePattern{TableName: "users"}
	assert.True(t, exact.Matches("users"))
	assert.False(t, exact.Matches("user"))

	regex := &TablePattern{TableName: "^rel_.*$"}
	assert.True(t, regex.Matches("rel_user_product"))
	assert.False(t, regex.Matches("users"))
}

func TestBuildQueryBasic(t *testing.T) {
	tp := &TablePattern{TableName: "users", SchemaName: "public"}
	q, err := tp.BuildQuery("")
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "public"."users"`, q)
}

func TestBuildQueryWithFilterAndJoin(t *testing.T) {
	tp := &TablePattern{
		TableName:  "purchases",
		SchemaName: "public",
		Joins: []JoinClause{
			{Table: "users", SchemaName: "public", Alias: "s", OnSelf: "user_id", OnOther: "id", JoinType: "LEFT"},
		},
		Filters: []filter.Expression{
			filter.NewLeaf("status", filter.EQ, "active"),
		},
	}
	q, err := tp.BuildQuery("")
	require.NoError(t, err)
	assert.Contains(t, q, `LEFT JOIN "public"."users" s ON r."user_id" = s."id"`)
	assert.Contains(t, q, `WHERE r."status" = 'active'`)
}

func TestBuildQueryProjectsJoinSelectFields(t *testing.T) {
	tp := &TablePattern{
		TableName:  "relations",
		SchemaName: "public",
		Joins: []JoinClause{
			{Table: "classes", SchemaName: "public", Alias: "s", OnSelf: "parent", OnOther: "id",
				SelectFields: []string{"id", "class_name", "description"}},
			{Table: "classes", SchemaName: "public", Alias: "t", OnSelf: "child", OnOther: "id",
				SelectFields: []string{"id", "class_name"}},
		},
	}
	q, err := tp.BuildQuery("")
	require.NoError(t, err)
	assert.Contains(t, q, `s."id" AS "s__id"`)
	assert.Contains(t, q, `s."class_name" AS "s__class_name"`)
	assert.Contains(t, q, `s."description" AS "s__description"`)
	assert.Contains(t, q, `t."class_name" AS "t__class_name"`)
	assert.Contains(t, q, `LEFT JOIN "public"."classes" s ON r."parent" = s."id"`)
	assert.Contains(t, q, `LEFT JOIN "public"."classes" t ON r."child" = t."id"`)
}

func buildFixtureGraph(t *testing.T) *schema.Graph {
	t.Helper()
	b := schema.NewBuilder()
	b.AddVertex(&schema.VertexType{Name: "users", Fields: []schema.FieldDescriptor{{Name: "id"}}, PrimaryIndex: []string{"id"}})
	b.AddVertex(&schema.VertexType{Name: "products", Fields: []schema.FieldDescriptor{{Name: "id"}}, PrimaryIndex: []string{"id"}})
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

func TestApplyDatetimeBoundsFiltersInclusiveAfterExclusiveBefore(t *testing.T) {
	tp := &TablePattern{TableName: "purchases", SchemaName: "public", DateField: "purchase_date"}
	tp.ApplyDatetimeBounds(tp.DateField, "2020-02-01", "2020-06-01")

	q, err := tp.BuildQuery("")
	require.NoError(t, err)
	assert.Contains(t, q, `"purchase_date" >= '2020-02-01'`)
	assert.Contains(t, q, `"purchase_date" < '2020-06-01'`)

	dates := []string{"2020-01-10", "2020-03-15", "2020-05-20", "2020-07-01", "2020-09-01", "2020-12-01"}
	var kept []string
	for _, d := range dates {
		if d >= "2020-02-01" && d < "2020-06-01" {
			kept = append(kept, d)
		}
	}
	assert.Equal(t, []string{"2020-03-15", "2020-05-20"}, kept)
}

func TestApplyDatetimeBoundsNoopWithoutColumn(t *testing.T) {
	tp := &TablePattern{TableName: "purchases", SchemaName: "public"}
	tp.ApplyDatetimeBounds("", "2020-02-01", "2020-06-01")
	assert.Empty(t, tp.Filters)
}

func TestEnrichEdgeWithJoinsIdempotent(t *testing.T) {
	g := buildFixtureGraph(t)
	patterns := NewPatterns()
	patterns.TablePatterns["users"] = &TablePattern{TableName: "users", SchemaName: "public"}
	patterns.TablePatterns["products"] = &TablePattern{TableName: "products", SchemaName: "public"}

	edgeTP := &TablePattern{TableName: "purchases", SchemaName: "public"}
	resource := &pipeline.Resource{
		Actors: []pipeline.ActorNode{
			&pipeline.EdgeActor{From: "users", To: "products", MatchSource: "user_id", MatchTarget: "product_id", Relation: "purchased"},
		},
	}

	err := EnrichEdgeWithJoins(resource, edgeTP, patterns, g)
	require.NoError(t, err)
	require.Len(t, edgeTP.Joins, 2)
	require.Len(t, edgeTP.Filters, 2)

	// second call must be a no-op since Joins is now populated
	err = EnrichEdgeWithJoins(resource, edgeTP, patterns, g)
	require.NoError(t, err)
	assert.Len(t, edgeTP.Joins, 2)
	assert.Len(t, edgeTP.Filters, 2)
}

func TestEnrichEdgeWithJoinsRendersGuardFilters(t *testing.T) {
	g := buildFixtureGraph(t)
	patterns := NewPatterns()
	patterns.TablePatterns["users"] = &TablePattern{TableName: "users", SchemaName: "public"}
	patterns.TablePatterns["products"] = &TablePattern{TableName: "products", SchemaName: "public"}

	edgeTP := &TablePattern{TableName: "purchases", SchemaName: "public"}
	resource := &pipeline.Resource{
		Actors: []pipeline.ActorNode{
			&pipeline.EdgeActor{From: "users", To: "products", MatchSource: "user_id", MatchTarget: "product_id"},
		},
	}
	require.NoError(t, EnrichEdgeWithJoins(resource, edgeTP, patterns, g))

	q, err := edgeTP.BuildQuery("")
	require.NoError(t, err)
	assert.Contains(t, q, `s."id" IS NOT NULL`)
	assert.Contains(t, q, `t."id" IS NOT NULL`)
}
