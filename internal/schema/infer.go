package schema

import (
	"fmt"
	"strings"

	"github.com/growgraph/graph-ingest/internal/catalog"
	"github.com/growgraph/graph-ingest/internal/fuzzy"
	"github.com/growgraph/graph-ingest/internal/ingesterr"
	"github.com/growgraph/graph-ingest/internal/logging"
)

// InferredEdge is the resolved shape of an edge table.
type InferredEdge struct {
	Table        catalog.TableMeta
	Source       string
	Target       string
	SourceColumn string
	TargetColumn string
	Relation     string
}

// FieldRename maps a table's original column name to its sanitized field
// name, remembered per vertex so that shared columns stay consistent
// between the vertex resource and any edge resource that references it.
type FieldRename map[string]map[string]string // vertex name -> original col -> sanitized field

// Infer classifies every table in the catalog as a vertex or an edge,
// resolves edge endpoints/relation names, and builds the resulting Graph.
// Tables whose edge endpoints cannot be resolved are logged and dropped.
func Infer(tables []catalog.TableMeta) (*Graph, []InferredEdge, FieldRename, error) {
	var vertexTables, edgeTables []catalog.TableMeta
	for _, t := range tables {
		if isEdgeLike(t) {
			edgeTables = append(edgeTables, t)
		} else if isVertexLike(t) {
			vertexTables = append(vertexTables, t)
		}
	}

	builder := NewBuilder()
	renames := make(FieldRename)
	vertexNames := make([]string, 0, len(vertexTables))
	for _, t := range vertexTables {
		vertexNames = append(vertexNames, t.Name)
	}

	for _, t := range vertexTables {
		fields, rename := sanitizeFields(t)
		renames[t.Name] = rename
		builder.AddVertex(&VertexType{
			Name:             t.Name,
			Fields:           fields,
			PrimaryIndex:     t.PrimaryKey,
			SecondaryIndices: nil,
		})
	}

	matcher := fuzzy.NewMatcher(vertexNames, fuzzy.InferenceThreshold)
	var edges []InferredEdge
	for _, t := range edgeTables {
		edge, ok := resolveEdge(t, matcher)
		if !ok {
			warn := ingesterr.New(ingesterr.Inference, "schema.infer", t.Name, fmt.Errorf("could not resolve edge endpoints"))
			logging.Logf(logging.Warning, "%s", warn.Error())
			continue
		}
		edges = append(edges, edge)
		builder.AddEdge(&EdgeType{
			Source:      edge.Source,
			Target:      edge.Target,
			Relation:    edge.Relation,
			MatchSource: edge.SourceColumn,
			MatchTarget: edge.TargetColumn,
		})
	}

	g, err := builder.Build()
	if err != nil {
		return nil, nil, nil, err
	}
	return g, edges, renames, nil
}

func pkSet(t catalog.TableMeta) map[string]bool {
	s := make(map[string]bool, len(t.PrimaryKey))
	for _, c := range t.PrimaryKey {
		s[c] = true
	}
	return s
}

func fkColumnSet(t catalog.TableMeta) map[string]bool {
	s := make(map[string]bool, len(t.ForeignKeys))
	for _, fk := range t.ForeignKeys {
		s[fk.Column] = true
	}
	return s
}

func isEdgeLike(t catalog.TableMeta) bool {
	if len(t.PrimaryKey) >= 2 {
		return true
	}
	if len(t.ForeignKeys) == 2 {
		return true
	}
	if strings.HasPrefix(t.Name, "rel_") {
		return true
	}
	pk := pkSet(t)
	fk := fkColumnSet(t)
	if len(fk) >= 2 {
		allInFK := true
		for c := range pk {
			if !fk[c] {
				allInFK = false
				break
			}
		}
		if allInFK && len(pk) > 0 {
			return true
		}
	}
	return false
}

func isVertexLike(t catalog.TableMeta) bool {
	if len(t.PrimaryKey) == 0 {
		return false
	}
	if isEdgeLike(t) {
		return false
	}
	pk := pkSet(t)
	fk := fkColumnSet(t)
	for _, c := range t.Columns {
		if !pk[c.Name] && !fk[c.Name] {
			return true
		}
	}
	return false
}

func sanitizeFields(t catalog.TableMeta) ([]FieldDescriptor, map[string]string) {
	fields := make([]FieldDescriptor, 0, len(t.Columns))
	rename := make(map[string]string, len(t.Columns))
	for _, c := range t.Columns {
		sanitized := sanitizeName(c.Name)
		rename[c.Name] = sanitized
		fields = append(fields, FieldDescriptor{Name: sanitized, DataType: c.DataType, Nullable: c.Nullable})
	}
	return fields, rename
}

func sanitizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, name)
	return name
}

func detectSeparator(name string) string {
	counts := map[string]int{"_": strings.Count(name, "_"), "-": strings.Count(name, "-"), ".": strings.Count(name, ".")}
	best, bestCount := "_", -1
	for _, sep := range []string{"_", "-", "."} {
		if counts[sep] > bestCount {
			best, bestCount = sep, counts[sep]
		}
	}
	return best
}

func splitFragments(name, sep string) []string {
	parts := strings.Split(name, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// resolveEdge implements the endpoint/relation-inference ladder of §4.4:
// table-name fragments are walked first (position carried), then PK and FK
// column fragments, collecting fuzzy vertex matches in first-seen order.
func resolveEdge(t catalog.TableMeta, matcher *fuzzy.Matcher) (InferredEdge, bool) {
	sep := detectSeparator(t.Name)
	tableFragments := splitFragments(t.Name, sep)

	var keyFragments []string
	keySeen := make(map[string]bool)
	for _, pk := range t.PrimaryKey {
		for _, frag := range splitFragments(pk, sep) {
			if !keySeen[frag] {
				keySeen[frag] = true
				keyFragments = append(keyFragments, frag)
			}
		}
	}
	for _, fk := range t.ForeignKeys {
		for _, frag := range splitFragments(fk.Column, sep) {
			if !keySeen[frag] {
				keySeen[frag] = true
				keyFragments = append(keyFragments, frag)
			}
		}
	}

	seen := make(map[string]bool)
	var fuzzyMatchedVertices []string
	for _, frag := range append(append([]string{}, tableFragments...), keyFragments...) {
		if len(frag) <= 2 {
			continue
		}
		for _, m := range matcher.Best(frag) {
			if !seen[m.Candidate] {
				seen[m.Candidate] = true
				fuzzyMatchedVertices = append(fuzzyMatchedVertices, m.Candidate)
			}
		}
	}

	var source, target, sourceCol, targetCol string

	// P1: FK-based.
	var distinctFKTables []string
	fkSeen := make(map[string]bool)
	for _, fk := range t.ForeignKeys {
		if !fkSeen[fk.ReferencesTable] {
			fkSeen[fk.ReferencesTable] = true
			distinctFKTables = append(distinctFKTables, fk.ReferencesTable)
		}
	}
	colForTable := func(table string) string {
		for _, fk := range t.ForeignKeys {
			if fk.ReferencesTable == table {
				return fk.Column
			}
		}
		return ""
	}
	// colsForTable returns every FK column that references table, in
	// declaration order, used to give a self-referencing edge distinct
	// source/target match columns when two FKs point at the same vertex.
	colsForTable := func(table string) []string {
		var cols []string
		for _, fk := range t.ForeignKeys {
			if fk.ReferencesTable == table {
				cols = append(cols, fk.Column)
			}
		}
		return cols
	}
	if len(distinctFKTables) >= 2 {
		source, target = distinctFKTables[0], distinctFKTables[1]
		sourceCol, targetCol = colForTable(source), colForTable(target)
	} else if len(distinctFKTables) == 1 {
		source = distinctFKTables[0]
		target = distinctFKTables[0]
		cols := colsForTable(source)
		sourceCol = cols[0]
		if len(cols) >= 2 {
			targetCol = cols[1]
		} else {
			targetCol = cols[0]
		}
	} else if len(fuzzyMatchedVertices) >= 2 {
		// P2: fuzzy-match based.
		source, target = fuzzyMatchedVertices[0], fuzzyMatchedVertices[1]
	} else if len(fuzzyMatchedVertices) == 1 {
		source = fuzzyMatchedVertices[0]
		target = fuzzyMatchedVertices[0]
	}

	// P3: fill any still-missing endpoint.
	if source == "" {
		if len(distinctFKTables) > 0 {
			source = distinctFKTables[0]
			sourceCol = colForTable(source)
		} else if len(fuzzyMatchedVertices) > 0 {
			source = fuzzyMatchedVertices[0]
		}
	}
	if target == "" {
		if len(distinctFKTables) > 0 {
			target = distinctFKTables[0]
			targetCol = colForTable(target)
		} else if len(fuzzyMatchedVertices) > 0 {
			target = fuzzyMatchedVertices[0]
		}
	}

	if source == "" || target == "" {
		return InferredEdge{}, false
	}
	if sourceCol == "" {
		sourceCol = colForTable(source)
	}
	if targetCol == "" {
		targetCol = colForTable(target)
	}
	// Tables carrying no FK metadata (composite-PK edge tables) still need
	// match columns: fall back to the key column whose fragments name the
	// resolved vertex.
	if sourceCol == "" {
		sourceCol = columnForVertex(t, source, sep, matcher, "")
	}
	if targetCol == "" {
		targetCol = columnForVertex(t, target, sep, matcher, sourceCol)
	}

	relation := resolveRelation(tableFragments, source, target)

	return InferredEdge{
		Table:        t,
		Source:       source,
		Target:       target,
		SourceColumn: sourceCol,
		TargetColumn: targetCol,
		Relation:     relation,
	}, true
}

// columnForVertex finds the first PK or FK column whose fragments
// fuzzy-match the given vertex, skipping an already-claimed column.
func columnForVertex(t catalog.TableMeta, vertex, sep string, matcher *fuzzy.Matcher, exclude string) string {
	candidates := append([]string{}, t.PrimaryKey...)
	for _, fk := range t.ForeignKeys {
		candidates = append(candidates, fk.Column)
	}
	for _, col := range candidates {
		if col == exclude {
			continue
		}
		for _, frag := range splitFragments(col, sep) {
			if len(frag) <= 2 {
				continue
			}
			for _, m := range matcher.Best(frag) {
				if m.Candidate == vertex {
					return col
				}
			}
		}
	}
	return ""
}

// namesVertex reports whether a table-name fragment names the given vertex,
// by case-insensitive equality or containment in either direction.
func namesVertex(fragment, vertex string) bool {
	f, v := strings.ToLower(fragment), strings.ToLower(vertex)
	return f == v || strings.Contains(f, v) || strings.Contains(v, f)
}

// resolveRelation picks a relation name from the table-name fragments once
// source and target are known. When both endpoints appear in the table name,
// only fragments between or after their span are candidates (a leading
// marker such as "rel_" never becomes the relation). Candidates are scored
// by length + 5*position, 0-based from the left, so a longer fragment
// further to the right wins.
func resolveRelation(tableFragments []string, source, target string) string {
	var sourceIdx, targetIdx []int
	for i, frag := range tableFragments {
		if namesVertex(frag, source) {
			sourceIdx = append(sourceIdx, i)
		}
		if namesVertex(frag, target) {
			targetIdx = append(targetIdx, i)
		}
	}

	inSpan := func(i int) bool { return true }
	if len(sourceIdx) > 0 && len(targetIdx) > 0 {
		start := sourceIdx[0]
		if targetIdx[0] < start {
			start = targetIdx[0]
		}
		end := sourceIdx[len(sourceIdx)-1]
		if last := targetIdx[len(targetIdx)-1]; last > end {
			end = last
		}
		inSpan = func(i int) bool { return (start < i && i < end) || i > end }
	}

	type candidate struct {
		frag  string
		score int
	}
	var best *candidate
	for i, frag := range tableFragments {
		if len(frag) <= 2 || namesVertex(frag, source) || namesVertex(frag, target) {
			continue
		}
		if !inSpan(i) {
			continue
		}
		score := len(frag) + 5*i
		if best == nil || score > best.score {
			best = &candidate{frag: frag, score: score}
		}
	}
	if best != nil {
		return best.frag
	}

	// No positional candidate: fall back to the first fragment that names
	// neither endpoint.
	for _, frag := range tableFragments {
		if len(frag) <= 2 || namesVertex(frag, source) || namesVertex(frag, target) {
			continue
		}
		return frag
	}
	return ""
}
