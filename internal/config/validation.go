package config

import (
	"fmt"
	"strings"
)

// isValidEnumValue reports whether value is present in allowed,
// case-insensitively, mirroring the teacher's validation.go helper.
func isValidEnumValue(value string, allowed []string) bool {
	lowerValue := strings.ToLower(value)
	for _, a := range allowed {
		if lowerValue == strings.ToLower(a) {
			return true
		}
	}
	return false
}

// ValidateConfig accumulates every structural defect into one multi-line
// error instead of failing on the first bad field, mirroring the teacher's
// internal/config/validation.go ValidateConfig shape.
func ValidateConfig(cfg *Config) error {
	var errs []string

	if !isValidEnumValue(cfg.Logging.Level, KnownLogLevels) {
		errs = append(errs, fmt.Sprintf("- Config.Logging.Level: invalid log level %q, must be one of %v", cfg.Logging.Level, KnownLogLevels))
	}
	if !isValidEnumValue(cfg.Catalog.Kind, KnownCatalogKinds) {
		errs = append(errs, fmt.Sprintf("- Config.Catalog.Kind: invalid catalog kind %q, must be one of %v", cfg.Catalog.Kind, KnownCatalogKinds))
	}
	// A static Config.Schema declaration (§6's Pattern DSL path) makes
	// catalog introspection optional; only require a connection string
	// when the engine must run the inferrer (C4) against a live catalog.
	if cfg.Schema == nil && cfg.Catalog.ConnString == "" {
		errs = append(errs, "- Config.Catalog.ConnString: must not be empty unless Config.Schema is declared")
	}
	errs = append(errs, validateSchema(cfg.Schema)...)
	if !isValidEnumValue(cfg.Sink.Kind, KnownSinkKinds) {
		errs = append(errs, fmt.Sprintf("- Config.Sink.Kind: invalid sink kind %q, must be one of %v", cfg.Sink.Kind, KnownSinkKinds))
	}
	// With a live catalog the inferrer builds a resource per discovered
	// table, so declared resources are only mandatory alongside a static
	// schema.
	if cfg.Schema != nil && len(cfg.Resources) == 0 {
		errs = append(errs, "- Config.Resources: at least one resource must be declared when Config.Schema is set")
	}
	for i, r := range cfg.Resources {
		errs = append(errs, validateResource(i, &r)...)
	}
	if cfg.Ingestion.BatchSize <= 0 {
		errs = append(errs, "- Config.Ingestion.BatchSize: must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid configuration:\n%s", strings.Join(errs, "\n"))
	}
	return nil
}

// validateSchema checks the invariant from spec.md §3: an edge's source and
// target must name declared vertex types.
func validateSchema(sc *SchemaConfig) []string {
	if sc == nil {
		return nil
	}
	var errs []string
	names := make(map[string]bool, len(sc.Vertices))
	for _, v := range sc.Vertices {
		if v.Name == "" {
			errs = append(errs, "- Config.Schema.Vertices[]: name must not be empty")
			continue
		}
		names[v.Name] = true
	}
	for i, e := range sc.Edges {
		prefix := fmt.Sprintf("Config.Schema.Edges[%d]", i)
		if !names[e.Source] {
			errs = append(errs, fmt.Sprintf("- %s: source %q does not name a declared vertex", prefix, e.Source))
		}
		if !names[e.Target] {
			errs = append(errs, fmt.Sprintf("- %s: target %q does not name a declared vertex", prefix, e.Target))
		}
	}
	return errs
}

func validateResource(i int, r *ResourceConfig) []string {
	var errs []string
	prefix := fmt.Sprintf("Config.Resources[%d]", i)
	if r.Name == "" {
		errs = append(errs, fmt.Sprintf("- %s.Name: must not be empty", prefix))
	}
	if !isValidEnumValue(r.SourceKind, KnownSourceKinds) {
		errs = append(errs, fmt.Sprintf("- %s.SourceKind: invalid source kind %q, must be one of %v", prefix, r.SourceKind, KnownSourceKinds))
	}
	if len(r.Actors) == 0 {
		errs = append(errs, fmt.Sprintf("- %s.Actors: at least one actor must be declared", prefix))
	}
	for j, a := range r.Actors {
		errs = append(errs, validateActor(prefix, j, &a)...)
	}
	return errs
}

func validateActor(resourcePrefix string, i int, a *ActorConfig) []string {
	var errs []string
	prefix := fmt.Sprintf("%s.Actors[%d]", resourcePrefix, i)
	switch a.Kind {
	case "vertex":
		if a.VertexName == "" {
			errs = append(errs, fmt.Sprintf("- %s: vertex actor requires vertex_name", prefix))
		}
	case "edge":
		if a.From == "" || a.To == "" {
			errs = append(errs, fmt.Sprintf("- %s: edge actor requires from and to", prefix))
		}
	case "field_map":
		if len(a.FieldMap) == 0 {
			errs = append(errs, fmt.Sprintf("- %s: field_map actor requires a non-empty field_map", prefix))
		}
	case "vertex_router":
		if a.TypeField == "" {
			errs = append(errs, fmt.Sprintf("- %s: vertex_router actor requires type_field", prefix))
		}
	default:
		errs = append(errs, fmt.Sprintf("- %s: unknown actor kind %q", prefix, a.Kind))
	}
	return errs
}
