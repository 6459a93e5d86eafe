// Package config loads and validates the YAML document describing a graph
// ingestion run: logging, the catalog connection, the vertex/edge schema
// (or an instruction to infer one), resource patterns, and the sink.
package config

import "github.com/growgraph/graph-ingest/internal/pattern"

// Default values, teacher-grounded on internal/config/types.go's constant
// block (DefaultLogLevel, DefaultCSVDelimiter, etc.).
const (
	DefaultLogLevel       = "info"
	DefaultBatchSize      = 500
	DefaultMaxRetries     = 3
	DefaultCatalogDialect = "postgres"
	DefaultSinkKind       = "neo4j"
)

// Known enum values, validated against by ValidateConfig.
var (
	KnownLogLevels    = []string{"none", "error", "warn", "warning", "info", "debug"}
	KnownCatalogKinds = []string{"postgres", "mysql"}
	KnownSinkKinds    = []string{"neo4j", "postgres_age"}
	KnownSourceKinds  = []string{"file", "sql", "api", "rdf", "sparql"}
)

// Config is the root document.
type Config struct {
	Logging   LoggingConfig    `yaml:"logging"`
	Catalog   CatalogConfig    `yaml:"catalog"`
	Inference *InferenceConfig `yaml:"inference,omitempty"`
	// Schema, when present, declares the vertex/edge graph statically
	// instead of running the schema inferrer (C4) against the catalog.
	Schema *SchemaConfig `yaml:"schema,omitempty"`
	// Patterns declares per-resource FilePattern/TablePattern/SparqlPattern
	// state (§4.5), letting "sql" resources build their SELECT via
	// TablePattern.BuildQuery (and the C6 auto-join planner for edge
	// resources) instead of a hand-written Query string.
	Patterns  *pattern.Patterns `yaml:"patterns,omitempty"`
	Sink      SinkConfig        `yaml:"sink"`
	Resources []ResourceConfig  `yaml:"resources"`
	Ingestion IngestionConfig   `yaml:"ingestion"`
}

// SchemaConfig is the static, YAML-declared counterpart to schema.Infer's
// output: used when Config.Schema is set, bypassing catalog inference.
type SchemaConfig struct {
	Vertices []VertexConfig `yaml:"vertices"`
	Edges    []EdgeConfig   `yaml:"edges"`
}

type VertexConfig struct {
	Name             string        `yaml:"name"`
	Fields           []FieldConfig `yaml:"fields"`
	PrimaryIndex     []string      `yaml:"primary_index"`
	SecondaryIndices [][]string    `yaml:"secondary_indices,omitempty"`
}

type FieldConfig struct {
	Name     string `yaml:"name"`
	DataType string `yaml:"data_type,omitempty"`
	Nullable bool   `yaml:"nullable,omitempty"`
}

type EdgeConfig struct {
	Source      string `yaml:"source"`
	Target      string `yaml:"target"`
	Relation    string `yaml:"relation,omitempty"`
	MatchSource string `yaml:"match_source,omitempty"`
	MatchTarget string `yaml:"match_target,omitempty"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type CatalogConfig struct {
	Kind       string `yaml:"kind"`       // postgres | mysql
	ConnString string `yaml:"conn_string"`
	Schema     string `yaml:"schema"`
}

// InferenceConfig is decoded from the optional `inference` block. Its
// Enabled flag is not consulted: the engine runs the schema inferrer (C4)
// against the catalog whenever Config.Schema is absent.
type InferenceConfig struct {
	Enabled bool `yaml:"enabled"`
}

type SinkConfig struct {
	Kind      string `yaml:"kind"` // neo4j | postgres_age
	URI       string `yaml:"uri"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	GraphName string `yaml:"graph_name"`
}

// ResourceConfig describes one named resource: its source kind/location
// and the actor pipeline to run against each record.
type ResourceConfig struct {
	Name        string        `yaml:"name"`
	SourceKind  string        `yaml:"source_kind"` // file | sql | api | rdf | sparql
	Path        string        `yaml:"path,omitempty"`
	Query       string        `yaml:"query,omitempty"`
	EndpointURL string        `yaml:"endpoint_url,omitempty"`
	Actors      []ActorConfig `yaml:"actors"`
}

// ActorConfig is the YAML shape of one pipeline actor; Kind selects which
// concrete ActorNode it builds into.
type ActorConfig struct {
	Kind          string            `yaml:"kind"` // vertex | edge | field_map | vertex_router
	VertexName    string            `yaml:"vertex_name,omitempty"`
	From          string            `yaml:"from,omitempty"`
	To            string            `yaml:"to,omitempty"`
	MatchSource   string            `yaml:"match_source,omitempty"`
	MatchTarget   string            `yaml:"match_target,omitempty"`
	Relation      string            `yaml:"relation,omitempty"`
	RelationField string            `yaml:"relation_field,omitempty"`
	TargetVertex  string            `yaml:"target_vertex,omitempty"`
	FieldMap      map[string]string `yaml:"field_map,omitempty"`
	TypeField     string            `yaml:"type_field,omitempty"`
	Prefix        string            `yaml:"prefix,omitempty"`
}

type IngestionConfig struct {
	BatchSize  int  `yaml:"batch_size"`
	CleanStart bool `yaml:"clean_start"`
	MaxRetries int  `yaml:"max_retries"`
	LimitFiles int  `yaml:"limit_files,omitempty"`

	DatetimeAfter  string `yaml:"datetime_after,omitempty"`
	DatetimeBefore string `yaml:"datetime_before,omitempty"`
	DatetimeColumn string `yaml:"datetime_column,omitempty"`
}
