// Package pattern describes where resource data lives (a file, a table, or
// a SPARQL source) and how table-backed resources build their SELECT query,
// including the auto-join planner (C6).
package pattern

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/growgraph/graph-ingest/internal/filter"
)

// ResourcePattern is the sealed interface implemented by FilePattern,
// TablePattern, and SparqlPattern.
type ResourcePattern interface {
	isResourcePattern()
	Name() string
}

// JoinClause is one JOIN emitted by TablePattern.BuildQuery. SelectFields
// lists joined columns to project alongside the base relation; each is
// aliased as `A."col" AS "A__col"` so downstream actors can recover the
// join's sub-record by stripping the `A__` prefix.
type JoinClause struct {
	Table        string
	SchemaName   string
	Alias        string
	OnSelf       string
	OnOther      string
	JoinType     string
	SelectFields []string
}

// TablePattern describes a relational table resource.
type TablePattern struct {
	ResourceName   string
	TableName      string
	SchemaName     string
	Database       string
	SelectColumns  []string
	Joins          []JoinClause
	Filters        []filter.Expression
	DateField      string
	DateFilter     string
	DateRangeStart string
	DateRangeDays  int
}

func (*TablePattern) isResourcePattern() {}
func (t *TablePattern) Name() string { return t.ResourceName }

// Matches implements the regex-or-exact-anchor heuristic: table_name is
// compiled as a regex if it starts with '^' or ends with '$', else matched
// as an exact, case-sensitive identifier (optionally schema-qualified).
func (t *TablePattern) Matches(identifier string) bool {
	candidates := []string{identifier}
	if t.SchemaName != "" {
		candidates = append(candidates, t.SchemaName+"."+identifier)
	}
	if strings.HasPrefix(t.TableName, "^") || strings.HasSuffix(t.TableName, "$") {
		re, err := regexp.Compile(t.TableName)
		if err != nil {
			return false
		}
		for _, c := range candidates {
			if re.MatchString(c) {
				return true
			}
		}
		return false
	}
	for _, c := range candidates {
		if c == t.TableName {
			return true
		}
	}
	return false
}

// BuildQuery assembles the SELECT statement per §4.5: base projection,
// JOINs in insertion order, then WHERE built from the legacy date-filter
// trio followed by every FilterExpression rendered in SQL flavor. The base
// relation is aliased `r` only when the SELECT spans more than one table;
// a plain single-table pattern yields `SELECT * FROM "<schema>"."<table>"`.
func (t *TablePattern) BuildQuery(schemaName string) (string, error) {
	if schemaName == "" {
		schemaName = t.SchemaName
	}
	alias, baseCols, docName := "", "*", ""
	if len(t.Joins) > 0 {
		alias, baseCols, docName = " r", "r.*", "r"
	}

	cols := baseCols
	if len(t.SelectColumns) > 0 {
		quoted := make([]string, len(t.SelectColumns))
		for i, c := range t.SelectColumns {
			if docName != "" {
				quoted[i] = fmt.Sprintf(`%s."%s"`, docName, c)
			} else {
				quoted[i] = fmt.Sprintf(`"%s"`, c)
			}
		}
		cols = strings.Join(quoted, ", ")
	}

	var joinProjections []string
	for _, j := range t.Joins {
		for _, col := range j.SelectFields {
			joinProjections = append(joinProjections, fmt.Sprintf(`%s."%s" AS "%s__%s"`, j.Alias, col, j.Alias, col))
		}
	}
	if len(joinProjections) > 0 {
		cols = cols + ", " + strings.Join(joinProjections, ", ")
	}

	query := fmt.Sprintf(`SELECT %s FROM "%s"."%s"%s`, cols, schemaName, t.TableName, alias)

	for _, j := range t.Joins {
		jType := j.JoinType
		if jType == "" {
			jType = "LEFT"
		}
		query += fmt.Sprintf(` %s JOIN "%s"."%s" %s ON r."%s" = %s."%s"`,
			jType, j.SchemaName, j.Table, j.Alias, j.OnSelf, j.Alias, j.OnOther)
	}

	var whereClauses []string
	if legacy := t.legacyDateWhereClause(docName); legacy != "" {
		whereClauses = append(whereClauses, legacy)
	}
	for _, f := range t.Filters {
		rendered, err := f.Render(filter.SQL, docName, nil)
		if err != nil {
			return "", fmt.Errorf("pattern: render filter for %q: %w", t.TableName, err)
		}
		whereClauses = append(whereClauses, rendered)
	}
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	return query, nil
}

// ApplyDatetimeBounds appends GE/LT leaf filters bounding column by after
// (inclusive) and/or before (exclusive), either of which may be empty, implementing §4.9's datetime-filter
// application: when TablePattern.DateField is set it is this column,
// otherwise the caller passes IngestionParams.DatetimeColumn. A no-op if
// column is empty or neither bound is set.
func (t *TablePattern) ApplyDatetimeBounds(column, after, before string) {
	if column == "" {
		return
	}
	if after != "" {
		t.Filters = append(t.Filters, filter.NewLeaf(column, filter.GE, after))
	}
	if before != "" {
		t.Filters = append(t.Filters, filter.NewLeaf(column, filter.LT, before))
	}
}

func (t *TablePattern) legacyDateWhereClause(docName string) string {
	if t.DateField == "" {
		return ""
	}
	field := fmt.Sprintf(`"%s"`, t.DateField)
	if docName != "" {
		field = docName + "." + field
	}
	if t.DateRangeStart != "" && t.DateRangeDays > 0 {
		return fmt.Sprintf(`%s >= '%s'::date AND %s < '%s'::date + INTERVAL '%d days'`,
			field, t.DateRangeStart, field, t.DateRangeStart, t.DateRangeDays)
	}
	if t.DateFilter != "" {
		parts := strings.SplitN(t.DateFilter, " ", 2)
		if len(parts) == 2 {
			return fmt.Sprintf(`%s %s '%s'`, field, parts[0], parts[1])
		}
	}
	return ""
}

// FilePattern describes a directory-scanned file resource.
type FilePattern struct {
	ResourceName string
	Directory    string
	NameRegex    string
	MaxFiles     int
}

func (*FilePattern) isResourcePattern() {}
func (f *FilePattern) Name() string { return f.ResourceName }

// Matches reports whether name matches the configured regex; a pattern
// with no regex never matches (file discovery requires an explicit filter).
func (f *FilePattern) Matches(name string) bool {
	if f.NameRegex == "" {
		return false
	}
	re, err := regexp.Compile(f.NameRegex)
	if err != nil {
		return false
	}
	return re.MatchString(name)
}

// DiscoverFiles implements §4.5's "read a directory, keep regular files
// whose name matches the regex, optional cap on count": lists f.Directory,
// keeps entries that are regular files and match, sorts by name for
// deterministic ordering, and caps at f.MaxFiles (0 = uncapped). limitFiles,
// when > 0, applies a second, tighter cap carried from IngestionParams.
func (f *FilePattern) DiscoverFiles(limitFiles int) ([]string, error) {
	entries, err := os.ReadDir(f.Directory)
	if err != nil {
		return nil, fmt.Errorf("pattern: read directory %q: %w", f.Directory, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if info, err := e.Info(); err != nil || !info.Mode().IsRegular() {
			continue
		}
		if f.Matches(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	maxCount := f.MaxFiles
	if limitFiles > 0 && (maxCount == 0 || limitFiles < maxCount) {
		maxCount = limitFiles
	}
	if maxCount > 0 && len(names) > maxCount {
		names = names[:maxCount]
	}

	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(f.Directory, n)
	}
	return paths, nil
}

// SparqlPattern describes a SPARQL-endpoint or RDF-file resource.
type SparqlPattern struct {
	ResourceName string
	EndpointURL  string
	SparqlText   string
	RDFClass     string
	RDFFile      string
}

func (*SparqlPattern) isResourcePattern() {}
func (s *SparqlPattern) Name() string { return s.ResourceName }

// Patterns is the full collection of resource patterns, keyed by name.
type Patterns struct {
	FilePatterns   map[string]*FilePattern
	TablePatterns  map[string]*TablePattern
	SparqlPatterns map[string]*SparqlPattern
}

func NewPatterns() *Patterns {
	return &Patterns{
		FilePatterns:   make(map[string]*FilePattern),
		TablePatterns:  make(map[string]*TablePattern),
		SparqlPatterns: make(map[string]*SparqlPattern),
	}
}

// All merges every pattern kind into one map, for back-compat lookups that
// don't care about the concrete kind.
func (p *Patterns) All() map[string]ResourcePattern {
	merged := make(map[string]ResourcePattern, len(p.FilePatterns)+len(p.TablePatterns)+len(p.SparqlPatterns))
	for k, v := range p.FilePatterns {
		merged[k] = v
	}
	for k, v := range p.TablePatterns {
		merged[k] = v
	}
	for k, v := range p.SparqlPatterns {
		merged[k] = v
	}
	return merged
}
