package schema

import (
	"github.com/growgraph/graph-ingest/internal/fuzzy"
	"github.com/growgraph/graph-ingest/internal/logging"
	"github.com/growgraph/graph-ingest/internal/pipeline"
)

// BuildResources turns a classification result into one pipeline.Resource
// per discovered table. A vertex table becomes a resource carrying a single
// vertex actor of the same name plus any sanitized-field rename map; an edge
// table becomes a resource with two target_vertex-scoped field maps (source
// FK column -> source PK field, target FK column -> target PK field) and the
// edge actor itself. Sanitization remembered per vertex in renames is
// re-applied inside edge resources so shared columns stay consistently
// renamed.
func BuildResources(g *Graph, edges []InferredEdge, renames FieldRename) []*pipeline.Resource {
	matcher := fuzzy.NewMatcher(g.VertexNames(), fuzzy.ResourceMappingThreshold)

	resources := make([]*pipeline.Resource, 0, len(renames)+len(edges))
	for _, name := range g.VertexNames() {
		rename := nonIdentity(renames[name])
		resources = append(resources, &pipeline.Resource{
			Name:   name,
			Actors: []pipeline.ActorNode{&pipeline.VertexActor{VertexName: name, FieldMapTo: rename}},
		})
	}

	for _, e := range edges {
		resources = append(resources, buildEdgeResource(g, e, renames, matcher))
	}
	return resources
}

func buildEdgeResource(g *Graph, e InferredEdge, renames FieldRename, matcher *fuzzy.Matcher) *pipeline.Resource {
	edgeColumns := make(map[string]bool, len(e.Table.Columns))
	for _, c := range e.Table.Columns {
		edgeColumns[c.Name] = true
	}

	var actors []pipeline.ActorNode
	if e.SourceColumn != "" {
		srcPK := inferPKField(g, e.Source, e.SourceColumn, matcher)
		actors = append(actors, &pipeline.FieldMap{
			TargetVertex: e.Source,
			Map:          endpointMap(e.SourceColumn, srcPK, renames[e.Source], edgeColumns),
		})
	}
	if e.TargetColumn != "" {
		tgtPK := inferPKField(g, e.Target, e.TargetColumn, matcher)
		actors = append(actors, &pipeline.FieldMap{
			TargetVertex: e.Target,
			Map:          endpointMap(e.TargetColumn, tgtPK, renames[e.Target], edgeColumns),
		})
	}
	actors = append(actors, &pipeline.EdgeActor{
		From:        e.Source,
		To:          e.Target,
		MatchSource: e.SourceColumn,
		MatchTarget: e.TargetColumn,
		Relation:    e.Relation,
	})
	return &pipeline.Resource{Name: e.Table.Name, Actors: actors}
}

// endpointMap maps the endpoint's FK column to the vertex primary-key field
// and carries over any sanitization renames for edge columns that also occur
// on the vertex.
func endpointMap(matchColumn, pkField string, vertexRenames map[string]string, edgeColumns map[string]bool) map[string]string {
	m := map[string]string{matchColumn: pkField}
	for orig, sanitized := range vertexRenames {
		if orig == matchColumn || orig == sanitized || !edgeColumns[orig] {
			continue
		}
		m[orig] = sanitized
	}
	return m
}

// inferPKField resolves the vertex primary-key field an FK column points at.
// A column fragment fuzzy-matching the vertex confirms the mapping; either
// way the vertex's first primary-index field is used, defaulting to "id"
// when the vertex declares no index.
func inferPKField(g *Graph, vertexName, column string, matcher *fuzzy.Matcher) string {
	vt, ok := g.Vertex(vertexName)
	if !ok || len(vt.PrimaryIndex) == 0 {
		logging.Logf(logging.Debug, "schema: vertex %q has no primary index, defaulting %q to id", vertexName, column)
		return "id"
	}
	sep := detectSeparator(column)
	for _, frag := range splitFragments(column, sep) {
		for _, m := range matcher.Best(frag) {
			if m.Candidate == vertexName {
				return vt.PrimaryIndex[0]
			}
		}
	}
	return vt.PrimaryIndex[0]
}

func nonIdentity(m map[string]string) map[string]string {
	var out map[string]string
	for k, v := range m {
		if k == v {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[k] = v
	}
	return out
}
