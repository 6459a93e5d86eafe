package pattern

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/growgraph/graph-ingest/internal/filter"
)

// patternsYAML is the canonical serialization of Patterns: file_patterns
// and table_patterns (spec.md §6), plus sparql_patterns, each a mapping
// from resource name to pattern fields.
type patternsYAML struct {
	FilePatterns   map[string]filePatternYAML   `yaml:"file_patterns,omitempty"`
	TablePatterns  map[string]tablePatternYAML  `yaml:"table_patterns,omitempty"`
	SparqlPatterns map[string]sparqlPatternYAML `yaml:"sparql_patterns,omitempty"`
}

// legacyPatternsYAML is the back-compat single-mapping form: one "patterns"
// map whose entries each carry a "__tag__: file|table|sparql" discriminator
// alongside their structural fields.
type legacyPatternsYAML struct {
	Patterns map[string]map[string]interface{} `yaml:"patterns"`
}

type filePatternYAML struct {
	Directory string `yaml:"directory,omitempty"`
	NameRegex string `yaml:"name_regex,omitempty"`
	MaxFiles  int    `yaml:"max_files,omitempty"`
}

type joinClauseYAML struct {
	Table        string   `yaml:"table"`
	SchemaName   string   `yaml:"schema,omitempty"`
	Alias        string   `yaml:"alias"`
	OnSelf       string   `yaml:"on_self"`
	OnOther      string   `yaml:"on_other"`
	JoinType     string   `yaml:"join_type,omitempty"`
	SelectFields []string `yaml:"select_fields,omitempty"`
}

type tablePatternYAML struct {
	TableName      string        `yaml:"table_name"`
	SchemaName     string        `yaml:"schema_name,omitempty"`
	Database       string        `yaml:"database,omitempty"`
	SelectColumns  []string      `yaml:"select_columns,omitempty"`
	Joins          []joinClauseYAML `yaml:"joins,omitempty"`
	Filters        []interface{} `yaml:"filters,omitempty"`
	DateField      string        `yaml:"date_field,omitempty"`
	DateFilter     string        `yaml:"date_filter,omitempty"`
	DateRangeStart string        `yaml:"date_range_start,omitempty"`
	DateRangeDays  int           `yaml:"date_range_days,omitempty"`
}

type sparqlPatternYAML struct {
	EndpointURL string `yaml:"endpoint_url,omitempty"`
	SparqlText  string `yaml:"sparql_text,omitempty"`
	RDFClass    string `yaml:"rdf_class,omitempty"`
	RDFFile     string `yaml:"rdf_file,omitempty"`
}

// UnmarshalYAML accepts both the canonical two/three-field form and the
// legacy single "patterns" mapping with a per-entry "__tag__" discriminator
// (stripped before structural validation), per spec.md §6.
func (p *Patterns) UnmarshalYAML(node *yaml.Node) error {
	*p = *NewPatterns()

	var legacy legacyPatternsYAML
	if err := node.Decode(&legacy); err == nil && legacy.Patterns != nil {
		return p.fromLegacy(legacy.Patterns)
	}

	var canonical patternsYAML
	if err := node.Decode(&canonical); err != nil {
		return fmt.Errorf("pattern: decode Patterns: %w", err)
	}
	for name, fp := range canonical.FilePatterns {
		p.FilePatterns[name] = &FilePattern{
			ResourceName: name,
			Directory:    fp.Directory,
			NameRegex:    fp.NameRegex,
			MaxFiles:     fp.MaxFiles,
		}
	}
	for name, tp := range canonical.TablePatterns {
		built, err := buildTablePattern(name, tp)
		if err != nil {
			return err
		}
		p.TablePatterns[name] = built
	}
	for name, sp := range canonical.SparqlPatterns {
		p.SparqlPatterns[name] = &SparqlPattern{
			ResourceName: name,
			EndpointURL:  sp.EndpointURL,
			SparqlText:   sp.SparqlText,
			RDFClass:     sp.RDFClass,
			RDFFile:      sp.RDFFile,
		}
	}
	return nil
}

// MarshalYAML renders the canonical two/three-field form (file_patterns /
// table_patterns / sparql_patterns), never the legacy single-mapping form.
func (p *Patterns) MarshalYAML() (interface{}, error) {
	out := patternsYAML{
		FilePatterns:   make(map[string]filePatternYAML, len(p.FilePatterns)),
		TablePatterns:  make(map[string]tablePatternYAML, len(p.TablePatterns)),
		SparqlPatterns: make(map[string]sparqlPatternYAML, len(p.SparqlPatterns)),
	}
	for name, fp := range p.FilePatterns {
		out.FilePatterns[name] = filePatternYAML{Directory: fp.Directory, NameRegex: fp.NameRegex, MaxFiles: fp.MaxFiles}
	}
	for name, tp := range p.TablePatterns {
		joins := make([]joinClauseYAML, 0, len(tp.Joins))
		for _, j := range tp.Joins {
			joins = append(joins, joinClauseYAML{
				Table: j.Table, SchemaName: j.SchemaName, Alias: j.Alias,
				OnSelf: j.OnSelf, OnOther: j.OnOther, JoinType: j.JoinType,
				SelectFields: j.SelectFields,
			})
		}
		filters := make([]interface{}, 0, len(tp.Filters))
		for _, f := range tp.Filters {
			filters = append(filters, f)
		}
		out.TablePatterns[name] = tablePatternYAML{
			TableName:      tp.TableName,
			SchemaName:     tp.SchemaName,
			Database:       tp.Database,
			SelectColumns:  tp.SelectColumns,
			Joins:          joins,
			Filters:        filters,
			DateField:      tp.DateField,
			DateFilter:     tp.DateFilter,
			DateRangeStart: tp.DateRangeStart,
			DateRangeDays:  tp.DateRangeDays,
		}
	}
	for name, sp := range p.SparqlPatterns {
		out.SparqlPatterns[name] = sparqlPatternYAML{EndpointURL: sp.EndpointURL, SparqlText: sp.SparqlText, RDFClass: sp.RDFClass, RDFFile: sp.RDFFile}
	}
	return out, nil
}

// fromLegacy handles the single "patterns" mapping form: each entry's
// "__tag__" key (file|table|sparql) selects the variant; the tag is
// stripped before the remaining fields are re-decoded into the matching
// concrete struct.
func (p *Patterns) fromLegacy(entries map[string]map[string]interface{}) error {
	for name, raw := range entries {
		tag, _ := raw["__tag__"].(string)
		delete(raw, "__tag__")
		reencoded, err := yaml.Marshal(raw)
		if err != nil {
			return fmt.Errorf("pattern: re-encode legacy entry %q: %w", name, err)
		}
		switch tag {
		case "file":
			var fp filePatternYAML
			if err := yaml.Unmarshal(reencoded, &fp); err != nil {
				return fmt.Errorf("pattern: decode legacy file pattern %q: %w", name, err)
			}
			p.FilePatterns[name] = &FilePattern{ResourceName: name, Directory: fp.Directory, NameRegex: fp.NameRegex, MaxFiles: fp.MaxFiles}
		case "table":
			var tp tablePatternYAML
			if err := yaml.Unmarshal(reencoded, &tp); err != nil {
				return fmt.Errorf("pattern: decode legacy table pattern %q: %w", name, err)
			}
			built, err := buildTablePattern(name, tp)
			if err != nil {
				return err
			}
			p.TablePatterns[name] = built
		case "sparql":
			var sp sparqlPatternYAML
			if err := yaml.Unmarshal(reencoded, &sp); err != nil {
				return fmt.Errorf("pattern: decode legacy sparql pattern %q: %w", name, err)
			}
			p.SparqlPatterns[name] = &SparqlPattern{ResourceName: name, EndpointURL: sp.EndpointURL, SparqlText: sp.SparqlText, RDFClass: sp.RDFClass, RDFFile: sp.RDFFile}
		default:
			return fmt.Errorf("pattern: legacy entry %q has unknown or missing __tag__ %q", name, tag)
		}
	}
	return nil
}

func buildTablePattern(name string, tp tablePatternYAML) (*TablePattern, error) {
	filters := make([]filter.Expression, 0, len(tp.Filters))
	for _, raw := range tp.Filters {
		expr, err := filter.ParseExpression(normalizeYAMLValue(raw))
		if err != nil {
			return nil, fmt.Errorf("pattern: table pattern %q filter: %w", name, err)
		}
		filters = append(filters, expr)
	}
	joins := make([]JoinClause, 0, len(tp.Joins))
	for _, j := range tp.Joins {
		joins = append(joins, JoinClause{
			Table:        j.Table,
			SchemaName:   j.SchemaName,
			Alias:        j.Alias,
			OnSelf:       j.OnSelf,
			OnOther:      j.OnOther,
			JoinType:     j.JoinType,
			SelectFields: j.SelectFields,
		})
	}
	return &TablePattern{
		ResourceName:   name,
		TableName:      tp.TableName,
		SchemaName:     tp.SchemaName,
		Database:       tp.Database,
		SelectColumns:  tp.SelectColumns,
		Joins:          joins,
		Filters:        filters,
		DateField:      tp.DateField,
		DateFilter:     tp.DateFilter,
		DateRangeStart: tp.DateRangeStart,
		DateRangeDays:  tp.DateRangeDays,
	}, nil
}

// normalizeYAMLValue recursively converts map[interface{}]interface{} /
// map[string]interface{} nodes produced by yaml.v3's generic decode into
// the map[string]interface{} shape filter.ParseExpression expects.
func normalizeYAMLValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, vv := range val {
			out[k] = normalizeYAMLValue(vv)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, vv := range val {
			out[fmt.Sprint(k)] = normalizeYAMLValue(vv)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, vv := range val {
			out[i] = normalizeYAMLValue(vv)
		}
		return out
	default:
		return val
	}
}
