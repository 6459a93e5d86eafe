package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growgraph/graph-ingest/internal/catalog"
	"github.com/growgraph/graph-ingest/internal/pipeline"
)

func buildResourceFixture(t *testing.T) (*Graph, []InferredEdge, FieldRename) {
	t.Helper()
	tables := []catalog.TableMeta{
		{
			Name:       "users",
			PrimaryKey: []string{"id"},
			Columns: []catalog.ColumnMeta{
				{Name: "id", DataType: "int"},
				{Name: "Full Name", DataType: "string"},
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
	}
	g, edges, renames, err := Infer(tables)
	require.NoError(t, err)
	return g, edges, renames
}

func TestBuildResourcesVertexCarriesRenameMap(t *testing.T) {
	g, edges, renames := buildResourceFixture(t)
	resources := BuildResources(g, edges, renames)

	byName := map[string]*pipeline.Resource{}
	for _, r := range resources {
		byName[r.Name] = r
	}

	users := byName["users"]
	require.NotNil(t, users)
	require.Len(t, users.Actors, 1)
	va, ok := users.Actors[0].(*pipeline.VertexActor)
	require.True(t, ok)
	assert.Equal(t, "users", va.VertexName)
	assert.Equal(t, map[string]string{"Full Name": "full_name"}, va.FieldMapTo)

	// no sanitization needed on products, so no rename map
	products := byName["products"]
	require.NotNil(t, products)
	pa := products.Actors[0].(*pipeline.VertexActor)
	assert.Nil(t, pa.FieldMapTo)
}

func TestBuildResourcesEdgeRoutesEndpointsAndEmitsEdge(t *testing.T) {
	g, edges, renames := buildResourceFixture(t)
	resources := BuildResources(g, edges, renames)

	var purchases *pipeline.Resource
	for _, r := range resources {
		if r.Name == "purchases" {
			purchases = r
		}
	}
	require.NotNil(t, purchases)
	require.Len(t, purchases.Actors, 3)

	srcMap, ok := purchases.Actors[0].(*pipeline.FieldMap)
	require.True(t, ok)
	assert.Equal(t, "users", srcMap.TargetVertex)
	assert.Equal(t, "id", srcMap.Map["user_id"])

	tgtMap, ok := purchases.Actors[1].(*pipeline.FieldMap)
	require.True(t, ok)
	assert.Equal(t, "products", tgtMap.TargetVertex)
	assert.Equal(t, "id", tgtMap.Map["product_id"])

	ea, ok := purchases.Actors[2].(*pipeline.EdgeActor)
	require.True(t, ok)
	assert.Equal(t, "users", ea.From)
	assert.Equal(t, "products", ea.To)
	assert.Equal(t, "user_id", ea.MatchSource)
	assert.Equal(t, "product_id", ea.MatchTarget)

	// one record through the whole edge resource: both endpoint buckets and
	// the edge bucket are populated
	buckets := pipeline.BucketMap{}
	purchases.Apply(pipeline.Record{"id": 9, "user_id": 1, "product_id": 7}, buckets)
	require.Len(t, buckets["users"], 1)
	assert.Equal(t, 1, buckets["users"][0]["id"])
	require.Len(t, buckets["products"], 1)
	assert.Equal(t, 7, buckets["products"][0]["id"])
	require.Len(t, buckets["users|products|purchases"], 1)
}
