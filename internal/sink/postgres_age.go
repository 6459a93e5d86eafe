package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/growgraph/graph-ingest/internal/logging"
	"github.com/growgraph/graph-ingest/internal/util"
)

// pgxPoolNewFunc allows overriding pgxpool.New for testing, mirroring the
// teacher's PostgresWriter factory-variable idiom.
var pgxPoolNewFunc = pgxpool.New

// PostgresAGESink writes to an Apache AGE graph hosted in Postgres via
// `SELECT * FROM cypher(...)`, grounded on MuiGoku123432-goParser's
// age_graph.go shape and the teacher's pgxpool-based batching in
// internal/io/postgres.go.
type PostgresAGESink struct {
	pool        *pgxpool.Pool
	graphName   string
	primaryKeys map[string]string
	edgeMatches map[string]EdgeMatch
}

func NewPostgresAGESink(ctx context.Context, connStr, graphName string, primaryKeys map[string]string, edgeMatches map[string]EdgeMatch) (*PostgresAGESink, error) {
	expanded := util.ExpandEnvUniversal(connStr)
	pool, err := pgxPoolNewFunc(ctx, expanded)
	if err != nil {
		return nil, fmt.Errorf("sink: postgres-age pool for %s: %w", util.MaskCredentials(expanded), err)
	}
	return &PostgresAGESink{pool: pool, graphName: graphName, primaryKeys: primaryKeys, edgeMatches: edgeMatches}, nil
}

func (s *PostgresAGESink) WriteVertices(ctx context.Context, vertexType string, records []map[string]interface{}) error {
	pk, ok := s.primaryKeys[vertexType]
	if !ok {
		return fmt.Errorf("sink: no primary key registered for vertex type %q", vertexType)
	}
	for _, rec := range records {
		props, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("sink: postgres-age marshal vertex props: %w", err)
		}
		keyVal, err := json.Marshal(rec[pk])
		if err != nil {
			return fmt.Errorf("sink: postgres-age marshal vertex key: %w", err)
		}
		query := fmt.Sprintf(
			`SELECT * FROM cypher('%s', $$ MERGE (v:%s {%s: %s}) SET v += %s RETURN v $$) AS (v agtype)`,
			s.graphName, vertexType, pk, string(keyVal), string(props))
		if _, err := s.pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("sink: postgres-age write vertex %q: %w", vertexType, err)
		}
	}
	logging.Logf(logging.Debug, "sink.PostgresAGESink wrote %d %s vertices", len(records), vertexType)
	return nil
}

func (s *PostgresAGESink) WriteEdges(ctx context.Context, edgeType EdgeTypeKey, records []map[string]interface{}) error {
	match, ok := s.edgeMatches[edgeType.MatchKey()]
	if !ok {
		return fmt.Errorf("sink: no endpoint match fields registered for edge %s->%s", edgeType.Source, edgeType.Target)
	}
	srcPK, ok := s.primaryKeys[edgeType.Source]
	if !ok {
		return fmt.Errorf("sink: no primary key registered for source vertex type %q", edgeType.Source)
	}
	tgtPK, ok := s.primaryKeys[edgeType.Target]
	if !ok {
		return fmt.Errorf("sink: no primary key registered for target vertex type %q", edgeType.Target)
	}
	// AGE's cypher() takes its inner query as a literal, so endpoint key
	// values are interpolated as agtype literals rather than bound.
	for _, rec := range records {
		props, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("sink: postgres-age marshal edge props: %w", err)
		}
		srcVal, err := json.Marshal(rec[match.SourceField])
		if err != nil {
			return fmt.Errorf("sink: postgres-age marshal edge source key: %w", err)
		}
		tgtVal, err := json.Marshal(rec[match.TargetField])
		if err != nil {
			return fmt.Errorf("sink: postgres-age marshal edge target key: %w", err)
		}
		query := fmt.Sprintf(
			`SELECT * FROM cypher('%s', $$
				MATCH (s:%s {%s: %s}), (t:%s {%s: %s})
				MERGE (s)-[r:%s]->(t) SET r += %s RETURN r
			$$) AS (r agtype)`,
			s.graphName, edgeType.Source, srcPK, string(srcVal), edgeType.Target, tgtPK, string(tgtVal), edgeType.Relation, string(props))
		if _, err := s.pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("sink: postgres-age write edge %v: %w", edgeType, err)
		}
	}
	logging.Logf(logging.Debug, "sink.PostgresAGESink wrote %d %v edges", len(records), edgeType)
	return nil
}

// CleanStart removes every node and relationship from the target graph.
func (s *PostgresAGESink) CleanStart(ctx context.Context) error {
	query := fmt.Sprintf(
		`SELECT * FROM cypher('%s', $$ MATCH (n) DETACH DELETE n $$) AS (v agtype)`, s.graphName)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("sink: postgres-age clean start: %w", err)
	}
	logging.Logf(logging.Info, "sink.PostgresAGESink wiped graph %q for clean start", s.graphName)
	return nil
}

func (s *PostgresAGESink) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}
