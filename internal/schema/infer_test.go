package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growgraph/graph-ingest/internal/catalog"
	"github.com/growgraph/graph-ingest/internal/fuzzy"
)

func TestInferClassifiesVertexAndEdgeTables(t *testing.T) {
	tables := []catalog.TableMeta{
		{
			Name:       "users",
			PrimaryKey: []string{"id"},
			Columns: []catalog.ColumnMeta{
				{Name: "id", DataType: "int"},
				{Name: "name", DataType: "string"},
			},
		},
		{
			Name:       "products",
			PrimaryKey: []string{"id"},
			Columns: []catalog.ColumnMeta{
				{Name: "id", DataType: "int"},
				{Name: "title", DataType: "string"},
			},
		},
		{
			Name:       "purchases",
			PrimaryKey: []string{"id"},
			Columns: []catalog.ColumnMeta{
				{Name: "id", DataType: "int"},
				{Name: "user_id", DataType: "int"},
				{Name: "product_id", DataType: "int"},
			},
			ForeignKeys: []catalog.ForeignKey{
				{Column: "user_id", ReferencesTable: "users", ReferencesCol: "id"},
				{Column: "product_id", ReferencesTable: "products", ReferencesCol: "id"},
			},
		},
		{
			Name:       "follows",
			PrimaryKey: []string{"follower_id", "followee_id"},
			Columns: []catalog.ColumnMeta{
				{Name: "follower_id", DataType: "int"},
				{Name: "followee_id", DataType: "int"},
			},
			ForeignKeys: []catalog.ForeignKey{
				{Column: "follower_id", ReferencesTable: "users", ReferencesCol: "id"},
				{Column: "followee_id", ReferencesTable: "users", ReferencesCol: "id"},
			},
		},
	}

	g, edges, renames, err := Infer(tables)
	require.NoError(t, err)

	_, hasUsers := g.Vertex("users")
	_, hasProducts := g.Vertex("products")
	assert.True(t, hasUsers)
	assert.True(t, hasProducts)
	_, hasPurchases := g.Vertex("purchases")
	assert.False(t, hasPurchases)

	require.Len(t, edges, 2)
	byTable := map[string]InferredEdge{}
	for _, e := range edges {
		byTable[e.Table.Name] = e
	}

	purchases := byTable["purchases"]
	assert.Equal(t, "users", purchases.Source)
	assert.Equal(t, "products", purchases.Target)
	assert.Equal(t, "purchases", purchases.Relation)

	follows := byTable["follows"]
	assert.Equal(t, "users", follows.Source)
	assert.Equal(t, "users", follows.Target)
	assert.Equal(t, "follows", follows.Relation)
	assert.Equal(t, "follower_id", follows.SourceColumn)
	assert.Equal(t, "followee_id", follows.TargetColumn)

	assert.Contains(t, renames, "users")
}

func TestResolveRelationSkipsLeadingMarker(t *testing.T) {
	// rel_user_purchases_product: "rel" sits before the user..product span
	// and must not become the relation.
	fragments := []string{"rel", "user", "purchases", "product"}
	got := resolveRelation(fragments, "user", "product")
	assert.Equal(t, "purchases", got)
}

func TestResolveRelationScoresTrailingFragmentHigher(t *testing.T) {
	// user_product_purchase_history: "history" (7+5*3) outranks the longer
	// but earlier "purchase" (8+5*2).
	fragments := []string{"user", "product", "purchase", "history"}
	got := resolveRelation(fragments, "user", "product")
	assert.Equal(t, "history", got)
}

func TestResolveRelationWithoutEndpointPositions(t *testing.T) {
	fragments := []string{"purchases"}
	got := resolveRelation(fragments, "users", "products")
	assert.Equal(t, "purchases", got)
}

func TestResolveEdgeFromCompositePrimaryKey(t *testing.T) {
	matcher := fuzzy.NewMatcher([]string{"user", "product", "order"}, fuzzy.InferenceThreshold)
	table := catalog.TableMeta{
		Name:       "rel_user_purchases_product",
		PrimaryKey: []string{"user_id", "product_id"},
		Columns: []catalog.ColumnMeta{
			{Name: "user_id", DataType: "int"},
			{Name: "product_id", DataType: "int"},
		},
	}
	edge, ok := resolveEdge(table, matcher)
	require.True(t, ok)
	assert.Equal(t, "user", edge.Source)
	assert.Equal(t, "product", edge.Target)
	assert.Equal(t, "purchases", edge.Relation)
}

func TestDetectSeparatorDefaultsToUnderscore(t *testing.T) {
	assert.Equal(t, "_", detectSeparator("plainname"))
	assert.Equal(t, "-", detectSeparator("a-b-c_d"))
}
