package pattern

import (
	"fmt"

	"github.com/growgraph/graph-ingest/internal/filter"
	"github.com/growgraph/graph-ingest/internal/pipeline"
	"github.com/growgraph/graph-ingest/internal/schema"
)

// vertexTableInfo resolves a vertex name to its backing table, schema, and
// primary-key field (the first field of the first index).
func vertexTableInfo(vertexName string, patterns *Patterns, g *schema.Graph) (table, schemaName, pk string, ok bool) {
	tp, found := patterns.TablePatterns[vertexName]
	if !found {
		return "", "", "", false
	}
	v, found := g.Vertex(vertexName)
	if !found || len(v.PrimaryIndex) == 0 {
		return "", "", "", false
	}
	return tp.TableName, tp.SchemaName, v.PrimaryIndex[0], true
}

// EnrichEdgeWithJoins implements the auto-join planner (C6): idempotent
// no-op if tp.Joins is already populated. For every EdgeActor in the
// resource's pipeline that declares both MatchSource and MatchTarget, it
// resolves the vertex table/PK on each side and appends a LEFT JOIN plus an
// IS_NOT_NULL guard filter so the edge query never yields a row missing an
// endpoint.
func EnrichEdgeWithJoins(resource *pipeline.Resource, tp *TablePattern, all *Patterns, g *schema.Graph) error {
	if len(tp.Joins) > 0 {
		return nil
	}

	var newJoins []JoinClause
	var newFilters []filter.Expression

	for _, actor := range resource.CollectEdgeActors() {
		if actor.MatchSource == "" || actor.MatchTarget == "" {
			continue
		}

		srcTable, srcSchema, srcPK, ok := vertexTableInfo(actor.From, all, g)
		if !ok {
			continue
		}
		tgtTable, tgtSchema, tgtPK, ok := vertexTableInfo(actor.To, all, g)
		if !ok {
			continue
		}

		newJoins = append(newJoins,
			JoinClause{Table: srcTable, SchemaName: srcSchema, Alias: "s", OnSelf: actor.MatchSource, OnOther: srcPK, JoinType: "LEFT"},
			JoinClause{Table: tgtTable, SchemaName: tgtSchema, Alias: "t", OnSelf: actor.MatchTarget, OnOther: tgtPK, JoinType: "LEFT"},
		)
		newFilters = append(newFilters,
			filter.NewLeaf(fmt.Sprintf("s.%s", srcPK), filter.IsNotNull, nil),
			filter.NewLeaf(fmt.Sprintf("t.%s", tgtPK), filter.IsNotNull, nil),
		)
	}

	if len(newJoins) == 0 {
		return nil
	}
	tp.Joins = append(tp.Joins, newJoins...)
	tp.Filters = append(tp.Filters, newFilters...)
	return nil
}
