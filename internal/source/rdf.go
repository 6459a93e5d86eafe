package source

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/growgraph/graph-ingest/internal/logging"
)

// triple is one (subject, predicate, object) statement.
type triple struct {
	subject, predicate, object string
	objectIsLiteral             bool
}

// RDFFileSource parses a minimal line-oriented N-Triples/Turtle subset
// (one "<s> <p> <o> ." statement per line; full Turtle grammar — prefixes,
// blank-node collections, multi-line literals — is an external parser
// concern no library in the retrieval pack covers, so this is a deliberate
// stdlib implementation of the common-case subset) into an in-memory triple
// store, then groups triples by subject into records with synthesized
// `_uri`/`_key` fields. Duplicate predicates accumulate into lists.
type RDFFileSource struct {
	Path     string
	RDFClass string // optional rdf:type filter
}

func NewRDFFileSource(path, rdfClass string) *RDFFileSource {
	return &RDFFileSource{Path: path, RDFClass: rdfClass}
}

func (r *RDFFileSource) IterBatches(ctx context.Context, batchSize int, limit *int) (<-chan Batch, <-chan error) {
	records, err := r.readAll()
	if err != nil {
		errc := make(chan error, 1)
		errc <- err
		close(errc)
		out := make(chan Batch)
		close(out)
		return out, errc
	}
	return runPaged(ctx, records, batchSize, limit)
}

func (r *RDFFileSource) readAll() ([]map[string]interface{}, error) {
	file, err := os.Open(r.Path)
	if err != nil {
		return nil, fmt.Errorf("source: open rdf file %q: %w", r.Path, err)
	}
	defer file.Close()

	triples, err := parseNTriples(file)
	if err != nil {
		return nil, fmt.Errorf("source: parse rdf file %q: %w", r.Path, err)
	}
	return groupTriplesBySubject(triples, r.RDFClass), nil
}

func parseNTriples(f *os.File) ([]triple, error) {
	var triples []triple
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSuffix(line, ".")
		line = strings.TrimSpace(line)
		parts := splitTripleTerms(line)
		if len(parts) != 3 {
			continue
		}
		subject := unwrapURI(parts[0])
		predicate := unwrapURI(parts[1])
		object, isLiteral := unwrapObject(parts[2])
		triples = append(triples, triple{subject: subject, predicate: predicate, object: object, objectIsLiteral: isLiteral})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return triples, nil
}

func splitTripleTerms(line string) []string {
	var terms []string
	var cur strings.Builder
	inAngle, inQuote := false, false
	for _, r := range line {
		switch r {
		case '<':
			inAngle = true
			cur.WriteRune(r)
		case '>':
			inAngle = false
			cur.WriteRune(r)
		case '"':
			inQuote = !inQuote
			cur.WriteRune(r)
		case ' ':
			if inAngle || inQuote {
				cur.WriteRune(r)
			} else if cur.Len() > 0 {
				terms = append(terms, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		terms = append(terms, cur.String())
	}
	if len(terms) > 3 {
		// object may have contained unescaped spaces beyond a literal's quotes
		merged := strings.Join(terms[2:], " ")
		terms = []string{terms[0], terms[1], merged}
	}
	return terms
}

func unwrapURI(term string) string {
	term = strings.TrimPrefix(term, "<")
	term = strings.TrimSuffix(term, ">")
	return term
}

func unwrapObject(term string) (string, bool) {
	if strings.HasPrefix(term, "\"") {
		end := strings.LastIndex(term, "\"")
		if end > 0 {
			return term[1:end], true
		}
	}
	return unwrapURI(term), false
}

func localName(uri string) string {
	if i := strings.LastIndexAny(uri, "#/"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}

const rdfTypePredicate = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"

func groupTriplesBySubject(triples []triple, rdfClassFilter string) []map[string]interface{} {
	bySubject := make(map[string]map[string]interface{})
	var order []string
	typeOf := make(map[string]string)

	for _, tr := range triples {
		if tr.predicate == rdfTypePredicate {
			typeOf[tr.subject] = tr.object
		}
	}

	for _, tr := range triples {
		if rdfClassFilter != "" && typeOf[tr.subject] != rdfClassFilter {
			continue
		}
		rec, ok := bySubject[tr.subject]
		if !ok {
			rec = map[string]interface{}{
				"_uri": tr.subject,
				"_key": localName(tr.subject),
			}
			bySubject[tr.subject] = rec
			order = append(order, tr.subject)
		}
		key := localName(tr.predicate)
		var value interface{} = tr.object
		if !tr.objectIsLiteral {
			value = tr.object
		} else if n, err := strconv.ParseFloat(tr.object, 64); err == nil {
			value = n
		} else if b, err := strconv.ParseBool(tr.object); err == nil {
			value = b
		}
		if existing, ok := rec[key]; ok {
			switch list := existing.(type) {
			case []interface{}:
				rec[key] = append(list, value)
			default:
				rec[key] = []interface{}{existing, value}
			}
		} else {
			rec[key] = value
		}
	}

	records := make([]map[string]interface{}, 0, len(order))
	for _, s := range order {
		records = append(records, bySubject[s])
	}
	logging.Logf(logging.Debug, "source.RDFFileSource grouped %d triples into %d records", len(triples), len(records))
	return records
}
