// Package app wires a loaded configuration into a running ingestion:
// catalog introspection (or a static schema), data sources, pipeline
// actors and the graph sink, then drives caster.Caster. Teacher-grounded
// on internal/app/app.go's AppRunner shape.
package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"

	"github.com/growgraph/graph-ingest/internal/caster"
	"github.com/growgraph/graph-ingest/internal/catalog"
	"github.com/growgraph/graph-ingest/internal/config"
	"github.com/growgraph/graph-ingest/internal/ingesterr"
	"github.com/growgraph/graph-ingest/internal/logging"
	"github.com/growgraph/graph-ingest/internal/pattern"
	"github.com/growgraph/graph-ingest/internal/pipeline"
	"github.com/growgraph/graph-ingest/internal/schema"
	"github.com/growgraph/graph-ingest/internal/sink"
	"github.com/growgraph/graph-ingest/internal/source"
	"github.com/growgraph/graph-ingest/internal/util"
)

// Application-level sentinel errors, mirroring the teacher's
// ErrUsage/ErrConfigNotFound pair.
var (
	ErrUsage          = errors.New("usage error")
	ErrConfigNotFound = errors.New("configuration file not found")
)

// Factory variables, overridable in tests, mirroring the teacher's
// newInputReaderFunc/osStatFunc idiom.
var (
	osStatFunc       = os.Stat
	loadConfigFunc   = config.LoadConfig
	newCasterFunc    = caster.New
	godotenvLoadFunc = godotenv.Load
)

// AppRunner encapsulates one invocation's execution logic.
type AppRunner struct{}

func NewAppRunner() *AppRunner {
	return &AppRunner{}
}

const usageText = `Usage:
  graph-ingest [options]

Options:
  -config string    YAML configuration file (default "config/graph-ingest.yaml")
  -db string         Override the catalog connection string from config
  -loglevel string   Logging level: none|error|warn|info|debug
  -dry-run           Infer/validate the schema and patterns but do not write to the sink
  -clean-start        Force a clean-start ingestion (see Config.Ingestion.CleanStart)
  -help              Show this message
`

func (a *AppRunner) Usage(w io.Writer) {
	fmt.Fprint(w, usageText)
}

// Run parses args, loads the config, builds the registry, and drives the
// Caster to completion.
func (a *AppRunner) Run(args []string) error {
	fs := flag.NewFlagSet("graph-ingest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configFile := fs.String("config", "config/graph-ingest.yaml", "YAML configuration file")
	dbConnStr := fs.String("db", "", "Override catalog connection string from config")
	logLevelStr := fs.String("loglevel", "", "Logging level")
	dryRun := fs.Bool("dry-run", false, "Validate without writing to the sink")
	cleanStart := fs.Bool("clean-start", false, "Force a clean-start ingestion")
	helpFlag := fs.Bool("help", false, "Show help")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			a.Usage(os.Stderr)
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if *helpFlag || (len(args) == 0 && !anyFlagsSet(fs)) {
		a.Usage(os.Stderr)
		return nil
	}

	if err := godotenvLoadFunc(); err != nil {
		logging.Logf(logging.Debug, "app: no .env file loaded: %v", err)
	}

	if *logLevelStr != "" {
		logging.SetupLogging(*logLevelStr)
	}

	if _, err := osStatFunc(*configFile); err != nil {
		if os.IsNotExist(err) {
			logging.Logf(logging.Error, "config file %q not found", *configFile)
			return ErrConfigNotFound
		}
		return fmt.Errorf("app: stat config file %q: %w", *configFile, err)
	}

	cfg, err := loadConfigFunc(*configFile)
	if err != nil {
		logging.Logf(logging.Error, "app: loading config %q: %v", *configFile, err)
		return err
	}
	if *logLevelStr == "" {
		logging.SetupLogging(cfg.Logging.Level)
	}

	connStr := cfg.Catalog.ConnString
	if *dbConnStr != "" {
		connStr = *dbConnStr
	}
	connStr = util.ExpandEnvUniversal(connStr)

	logging.Logf(logging.Info, "app: starting ingestion with config %s", *configFile)

	ctx := context.Background()

	var graph *schema.Graph
	var reg *caster.Registry
	if cfg.Schema != nil {
		graph, err = buildStaticGraph(cfg.Schema)
		if err != nil {
			return fmt.Errorf("app: static schema: %w", err)
		}
		logging.Logf(logging.Info, "app: loaded static schema with %d vertex types, %d edge types",
			len(graph.VertexNames()), len(graph.Edges()))
	} else {
		reader, err := newCatalogReader(cfg.Catalog.Kind, connStr, cfg.Catalog.Schema)
		if err != nil {
			return err
		}
		tables, err := reader.Tables(ctx)
		if err != nil {
			return err
		}

		inferred, inferredEdges, renames, err := schema.Infer(tables)
		if err != nil {
			return fmt.Errorf("app: schema inference: %w", err)
		}
		logging.Logf(logging.Info, "app: inferred %d vertex types, %d edge types from %d tables",
			len(inferred.VertexNames()), len(inferredEdges), len(tables))
		graph = inferred

		// With no resources declared, ingest every discovered table using
		// the inferrer's own resources and patterns.
		if len(cfg.Resources) == 0 && !*dryRun {
			reg, err = buildInferredRegistry(connStr, cfg.Catalog.Schema, graph, inferredEdges, renames, cfg.Ingestion)
			if err != nil {
				return err
			}
		}
	}

	if *dryRun {
		logging.Logf(logging.Info, "dry run: inference complete, skipping data ingestion")
		return nil
	}

	if reg == nil {
		reg, err = buildRegistry(cfg, connStr, graph)
		if err != nil {
			return err
		}
	}

	graphSink, err := newGraphSink(ctx, cfg.Sink, graph)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := graphSink.Close(ctx); cerr != nil {
			logging.Logf(logging.Error, "app: closing sink: %v", cerr)
		}
	}()

	params := caster.DefaultParams()
	if cfg.Ingestion.BatchSize > 0 {
		params.BatchSize = cfg.Ingestion.BatchSize
	}
	if cfg.Ingestion.MaxRetries > 0 {
		params.MaxRetries = cfg.Ingestion.MaxRetries
	}
	params.CleanStart = cfg.Ingestion.CleanStart || *cleanStart

	c := newCasterFunc(graphSink, params)
	if err := c.Run(ctx, reg); err != nil {
		return fmt.Errorf("app: ingestion run: %w", err)
	}
	logging.Logf(logging.Info, "app: ingestion complete")
	return nil
}

// buildStaticGraph translates a YAML-declared SchemaConfig into the same
// immutable schema.Graph the inferrer (C4) would otherwise produce,
// letting a caller skip catalog introspection entirely (spec.md §4.9's
// "Schema and patterns are immutable after construction" applies equally
// whether the graph came from inference or a static declaration).
func buildStaticGraph(sc *config.SchemaConfig) (*schema.Graph, error) {
	b := schema.NewBuilder()
	for _, vc := range sc.Vertices {
		fields := make([]schema.FieldDescriptor, 0, len(vc.Fields))
		for _, fc := range vc.Fields {
			fields = append(fields, schema.FieldDescriptor{Name: fc.Name, DataType: fc.DataType, Nullable: fc.Nullable})
		}
		b.AddVertex(&schema.VertexType{
			Name:             vc.Name,
			Fields:           fields,
			PrimaryIndex:     vc.PrimaryIndex,
			SecondaryIndices: vc.SecondaryIndices,
		})
	}
	for _, ec := range sc.Edges {
		b.AddEdge(&schema.EdgeType{
			Source:      ec.Source,
			Target:      ec.Target,
			Relation:    ec.Relation,
			MatchSource: ec.MatchSource,
			MatchTarget: ec.MatchTarget,
		})
	}
	return b.Build()
}

func newCatalogReader(kind, connStr, schemaName string) (catalog.Reader, error) {
	switch kind {
	case "mysql":
		return catalog.NewMySQLReader(connStr, schemaName), nil
	case "postgres", "":
		return catalog.NewPostgresReader(connStr, schemaName), nil
	default:
		return nil, ingesterr.New(ingesterr.Config, "app", "catalog.kind", fmt.Errorf("unknown catalog kind %q", kind))
	}
}

func newGraphSink(ctx context.Context, cfg config.SinkConfig, g *schema.Graph) (sink.GraphSink, error) {
	primaryKeys := make(map[string]string)
	for _, name := range g.VertexNames() {
		vt, _ := g.Vertex(name)
		if len(vt.PrimaryIndex) > 0 {
			primaryKeys[name] = vt.PrimaryIndex[0]
		}
	}
	edgeMatches := make(map[string]sink.EdgeMatch)
	for _, e := range g.Edges() {
		key := sink.EdgeTypeKey{Source: e.Source, Target: e.Target}
		edgeMatches[key.MatchKey()] = sink.EdgeMatch{SourceField: e.MatchSource, TargetField: e.MatchTarget}
	}
	switch cfg.Kind {
	case "postgres_age":
		return sink.NewPostgresAGESink(ctx, cfg.URI, cfg.GraphName, primaryKeys, edgeMatches)
	case "neo4j", "":
		return sink.NewNeo4jSink(cfg.URI, cfg.Username, cfg.Password, primaryKeys, edgeMatches)
	default:
		return nil, ingesterr.New(ingesterr.Config, "app", "sink.kind", fmt.Errorf("unknown sink kind %q", cfg.Kind))
	}
}

// buildInferredRegistry wires the inferrer's per-table resources into SQL
// bindings: every resource gets a TablePattern over its own table, edge
// resources are run through the auto-join planner (C6), and datetime
// bounds from the ingestion params are applied before building each query.
func buildInferredRegistry(connStr, schemaName string, g *schema.Graph, edges []schema.InferredEdge, renames schema.FieldRename, ing config.IngestionConfig) (*caster.Registry, error) {
	resources := schema.BuildResources(g, edges, renames)

	patterns := pattern.NewPatterns()
	for _, r := range resources {
		patterns.TablePatterns[r.Name] = &pattern.TablePattern{
			ResourceName: r.Name,
			TableName:    r.Name,
			SchemaName:   schemaName,
		}
	}

	reg := &caster.Registry{}
	for _, r := range resources {
		tp := patterns.TablePatterns[r.Name]
		hasEdge := len(r.CollectEdgeActors()) > 0
		if hasEdge {
			if err := pattern.EnrichEdgeWithJoins(r, tp, patterns, g); err != nil {
				return nil, fmt.Errorf("app: auto-join inferred resource %q: %w", r.Name, err)
			}
		}
		column := tp.DateField
		if column == "" {
			column = ing.DatetimeColumn
		}
		tp.ApplyDatetimeBounds(column, ing.DatetimeAfter, ing.DatetimeBefore)
		query, err := tp.BuildQuery(tp.SchemaName)
		if err != nil {
			return nil, fmt.Errorf("app: build query for inferred resource %q: %w", r.Name, err)
		}
		binding := caster.ResourceBinding{Resource: r, Source: source.NewSQLSource(connStr, query)}
		if hasEdge {
			reg.EdgeResources = append(reg.EdgeResources, binding)
		} else {
			reg.VertexResources = append(reg.VertexResources, binding)
		}
	}
	return reg, nil
}

// buildRegistry wires each ResourceConfig into a ResourceBinding (a data
// source paired with a pipeline.Resource), sorting into vertex and edge
// buckets by inspecting the actor kinds present — an edge-bearing resource
// runs in the edge phase, everything else in the vertex phase.
func buildRegistry(cfg *config.Config, connStr string, g *schema.Graph) (*caster.Registry, error) {
	reg := &caster.Registry{}
	for _, rc := range cfg.Resources {
		actors, hasEdge, err := buildActors(rc.Actors)
		if err != nil {
			return nil, err
		}
		resource := &pipeline.Resource{Name: rc.Name, Actors: actors}

		ds, err := buildDataSource(rc, connStr, resource, hasEdge, cfg.Patterns, g, cfg.Ingestion)
		if err != nil {
			return nil, err
		}
		binding := caster.ResourceBinding{Resource: resource, Source: ds}
		if hasEdge {
			reg.EdgeResources = append(reg.EdgeResources, binding)
		} else {
			reg.VertexResources = append(reg.VertexResources, binding)
		}
	}
	return reg, nil
}

// buildDataSource dispatches on SourceKind. For "sql" resources backed by a
// declared TablePattern (cfg.Patterns.TablePatterns[rc.Name]), the query is
// built via TablePattern.BuildQuery rather than a hand-written rc.Query —
// and, for edge-bearing resources, first run through the auto-join planner
// (C6) so the generated SQL carries the LEFT JOIN/IS-NOT-NULL endpoint
// guards of §4.6. A resource with no matching pattern falls back to
// rc.Query verbatim, preserving the simpler hand-written-query path.
// connStr is the resolved catalog connection string (config + -db override
// + env expansion) that every "sql" resource connects with.
func buildDataSource(rc config.ResourceConfig, connStr string, resource *pipeline.Resource, hasEdge bool, patterns *pattern.Patterns, g *schema.Graph, ing config.IngestionConfig) (source.DataSource, error) {
	switch rc.SourceKind {
	case "file":
		if patterns != nil {
			if fp, ok := patterns.FilePatterns[rc.Name]; ok {
				paths, err := fp.DiscoverFiles(ing.LimitFiles)
				if err != nil {
					return nil, fmt.Errorf("app: discover files for resource %q: %w", rc.Name, err)
				}
				return source.NewMultiFileSource(paths), nil
			}
		}
		return source.NewFileSource(rc.Path), nil
	case "sql":
		query := rc.Query
		if patterns != nil {
			if tp, ok := patterns.TablePatterns[rc.Name]; ok {
				if hasEdge {
					if err := pattern.EnrichEdgeWithJoins(resource, tp, patterns, g); err != nil {
						return nil, fmt.Errorf("app: auto-join resource %q: %w", rc.Name, err)
					}
				}
				// §4.9 datetime bounding: TablePattern.DateField wins when
				// set, otherwise fall back to IngestionParams.DatetimeColumn.
				column := tp.DateField
				if column == "" {
					column = ing.DatetimeColumn
				}
				tp.ApplyDatetimeBounds(column, ing.DatetimeAfter, ing.DatetimeBefore)
				built, err := tp.BuildQuery(tp.SchemaName)
				if err != nil {
					return nil, fmt.Errorf("app: build query for resource %q: %w", rc.Name, err)
				}
				query = built
			}
		}
		return source.NewSQLSource(connStr, query), nil
	case "api":
		return source.NewAPISource(rc.EndpointURL, source.OffsetLimit, "data"), nil
	case "rdf":
		return source.NewRDFFileSource(rc.Path, ""), nil
	case "sparql":
		return source.NewSparqlSource(rc.EndpointURL, rc.Query), nil
	default:
		return nil, ingesterr.New(ingesterr.Config, "app", rc.Name, fmt.Errorf("unknown source kind %q", rc.SourceKind))
	}
}

func buildActors(acs []config.ActorConfig) ([]pipeline.ActorNode, bool, error) {
	var out []pipeline.ActorNode
	hasEdge := false
	for _, ac := range acs {
		switch ac.Kind {
		case "vertex":
			out = append(out, &pipeline.VertexActor{VertexName: ac.VertexName, FieldMapTo: ac.FieldMap})
		case "edge":
			out = append(out, &pipeline.EdgeActor{
				From:          ac.From,
				To:            ac.To,
				MatchSource:   ac.MatchSource,
				MatchTarget:   ac.MatchTarget,
				Relation:      ac.Relation,
				RelationField: ac.RelationField,
			})
			hasEdge = true
		case "field_map":
			out = append(out, &pipeline.FieldMap{TargetVertex: ac.TargetVertex, Map: ac.FieldMap})
		case "vertex_router":
			out = append(out, &pipeline.VertexRouter{TypeField: ac.TypeField, Prefix: ac.Prefix, FieldMap: ac.FieldMap})
		default:
			return nil, false, ingesterr.New(ingesterr.Config, "app", ac.Kind, fmt.Errorf("unknown actor kind %q", ac.Kind))
		}
	}
	return out, hasEdge, nil
}

func anyFlagsSet(fs *flag.FlagSet) bool {
	any := false
	fs.Visit(func(*flag.Flag) { any = true })
	return any
}
