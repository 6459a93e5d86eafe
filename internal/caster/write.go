package caster

import (
	"context"
	"strings"

	"github.com/growgraph/graph-ingest/internal/pipeline"
	"github.com/growgraph/graph-ingest/internal/sink"
)

// writeBucket dispatches one flushed bucket to the sink. Edge buckets carry
// the "<source>|<target>|<relation>" key convention; every other key is a
// vertex-type name. An edge resource's field maps route endpoint sub-records
// into vertex buckets, so both shapes occur in either phase.
func (c *Caster) writeBucket(ctx context.Context, bucketKey string, records []pipeline.Record) error {
	parts := strings.SplitN(bucketKey, "|", 3)
	if len(parts) == 3 {
		key := sink.EdgeTypeKey{Source: parts[0], Target: parts[1], Relation: parts[2]}
		return c.Sink.WriteEdges(ctx, key, records)
	}
	return c.Sink.WriteVertices(ctx, bucketKey, records)
}
