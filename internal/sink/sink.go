// Package sink implements graph-database write backends. The concrete
// driver is treated as an external collaborator by the ingestion engine;
// this package provides two real, wired implementations (Neo4j and
// Postgres/Apache AGE) so the Caster (C9) has something concrete to drive.
package sink

import "context"

// EdgeTypeKey identifies one edge type bucket by its endpoints and relation.
type EdgeTypeKey struct {
	Source   string
	Target   string
	Relation string
}

// EdgeMatch names the record fields carrying the endpoint key values for
// one (source, target) vertex pair, as declared by the edge type's
// match_source/match_target.
type EdgeMatch struct {
	SourceField string
	TargetField string
}

// MatchKey is the lookup key for an EdgeMatch table: relation names may be
// assigned per-row, so matches are resolved by endpoint pair only.
func (k EdgeTypeKey) MatchKey() string { return k.Source + "|" + k.Target }

// GraphSink is the write contract the Caster (C9) drives. Implementations
// must be safe for concurrent calls across disjoint type buckets.
type GraphSink interface {
	WriteVertices(ctx context.Context, vertexType string, records []map[string]interface{}) error
	WriteEdges(ctx context.Context, edgeType EdgeTypeKey, records []map[string]interface{}) error
	Close(ctx context.Context) error
}

// CleanStarter is implemented by sinks that can wipe the target graph
// before a clean-start ingestion run.
type CleanStarter interface {
	CleanStart(ctx context.Context) error
}
