package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/growgraph/graph-ingest/internal/logging"
	"github.com/growgraph/graph-ingest/internal/util"
)

// LoadConfig reads, parses, defaults, and validates the YAML configuration
// file, mirroring the teacher's internal/config/load.go LoadConfig shape.
func LoadConfig(filename string) (*Config, error) {
	fileBytes, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", filename, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(fileBytes, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml in %q: %w", filename, err)
	}

	applyDefaults(&cfg)

	if logging.GetLevel() >= logging.Debug {
		var raw map[string]interface{}
		if err := yaml.Unmarshal(fileBytes, &raw); err == nil {
			logging.Logf(logging.Debug, "config: loaded %q: %v", filename, util.MaskSensitiveData(raw))
		}
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Catalog.Kind == "" {
		cfg.Catalog.Kind = DefaultCatalogDialect
	}
	if cfg.Catalog.Schema == "" {
		cfg.Catalog.Schema = "public"
	}
	if cfg.Sink.Kind == "" {
		cfg.Sink.Kind = DefaultSinkKind
	}
	if cfg.Ingestion.BatchSize <= 0 {
		cfg.Ingestion.BatchSize = DefaultBatchSize
	}
	if cfg.Ingestion.MaxRetries <= 0 {
		cfg.Ingestion.MaxRetries = DefaultMaxRetries
	}
}
