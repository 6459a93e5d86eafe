package sink

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/growgraph/graph-ingest/internal/logging"
	"github.com/growgraph/graph-ingest/internal/util"
)

// neo4jNewDriverFunc allows overriding driver construction for testing,
// mirroring the teacher's pgxPoolNewFunc factory-variable idiom.
var neo4jNewDriverFunc = func(uri string, auth neo4j.AuthToken) (neo4j.DriverWithContext, error) {
	return neo4j.NewDriverWithContext(uri, auth)
}

// Neo4jSink writes vertices/edges through the Bolt protocol, grounded on
// MuiGoku123432-goParser's Neo4jClient wiring of neo4j-go-driver/v5, MERGE
// keyed on the vertex's declared primary field so repeated ingestion runs
// are idempotent.
type Neo4jSink struct {
	driver      neo4j.DriverWithContext
	primaryKeys map[string]string    // vertex label -> primary-key field
	edgeMatches map[string]EdgeMatch // EdgeTypeKey.MatchKey() -> endpoint fields
}

func NewNeo4jSink(uri, username, password string, primaryKeys map[string]string, edgeMatches map[string]EdgeMatch) (*Neo4jSink, error) {
	driver, err := neo4jNewDriverFunc(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("sink: neo4j driver for %s: %w", util.MaskCredentials(uri), err)
	}
	return &Neo4jSink{driver: driver, primaryKeys: primaryKeys, edgeMatches: edgeMatches}, nil
}

func (s *Neo4jSink) WriteVertices(ctx context.Context, vertexType string, records []map[string]interface{}) error {
	pk, ok := s.primaryKeys[vertexType]
	if !ok {
		return fmt.Errorf("sink: no primary key registered for vertex type %q", vertexType)
	}
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	query := fmt.Sprintf(
		"UNWIND $rows AS row MERGE (v:`%s` {`%s`: row.`%s`}) SET v += row",
		vertexType, pk, pk,
	)
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		return tx.Run(ctx, query, map[string]interface{}{"rows": toParamRows(records)})
	})
	if err != nil {
		return fmt.Errorf("sink: neo4j write vertices %q: %w", vertexType, err)
	}
	logging.Logf(logging.Debug, "sink.Neo4jSink wrote %d %s vertices", len(records), vertexType)
	return nil
}

func (s *Neo4jSink) WriteEdges(ctx context.Context, edgeType EdgeTypeKey, records []map[string]interface{}) error {
	srcPK, ok := s.primaryKeys[edgeType.Source]
	if !ok {
		return fmt.Errorf("sink: no primary key registered for source vertex type %q", edgeType.Source)
	}
	tgtPK, ok := s.primaryKeys[edgeType.Target]
	if !ok {
		return fmt.Errorf("sink: no primary key registered for target vertex type %q", edgeType.Target)
	}
	match, ok := s.edgeMatches[edgeType.MatchKey()]
	if !ok {
		return fmt.Errorf("sink: no endpoint match fields registered for edge %s->%s", edgeType.Source, edgeType.Target)
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	query := fmt.Sprintf(
		"UNWIND $rows AS row MATCH (s:`%s` {`%s`: row.match_source}) MATCH (t:`%s` {`%s`: row.match_target}) "+
			"MERGE (s)-[r:`%s`]->(t) SET r += row.props",
		edgeType.Source, srcPK, edgeType.Target, tgtPK, edgeType.Relation,
	)
	rows := make([]map[string]interface{}, 0, len(records))
	for _, rec := range records {
		rows = append(rows, map[string]interface{}{
			"match_source": rec[match.SourceField],
			"match_target": rec[match.TargetField],
			"props":        rec,
		})
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		return tx.Run(ctx, query, map[string]interface{}{"rows": rows})
	})
	if err != nil {
		return fmt.Errorf("sink: neo4j write edges %v: %w", edgeType, err)
	}
	logging.Logf(logging.Debug, "sink.Neo4jSink wrote %d %v edges", len(records), edgeType)
	return nil
}

// CleanStart removes every node and relationship from the target graph.
func (s *Neo4jSink) CleanStart(ctx context.Context) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		return tx.Run(ctx, "MATCH (n) DETACH DELETE n", nil)
	})
	if err != nil {
		return fmt.Errorf("sink: neo4j clean start: %w", err)
	}
	logging.Logf(logging.Info, "sink.Neo4jSink wiped target graph for clean start")
	return nil
}

func (s *Neo4jSink) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func toParamRows(records []map[string]interface{}) []map[string]interface{} {
	return records
}
