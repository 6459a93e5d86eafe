package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/growgraph/graph-ingest/internal/logging"
)

// SparqlSource pages a `SELECT ?s ?p ?o` query against a SPARQL 1.1
// protocol endpoint by LIMIT/OFFSET, converting the endpoint's typed
// literal bindings (integer/float/boolean) to their scalar equivalents,
// then grouping by subject the same way RDFFileSource does.
type SparqlSource struct {
	EndpointURL string
	BaseQuery   string // must select ?s ?p ?o, without LIMIT/OFFSET
	Client      *http.Client
}

func NewSparqlSource(endpoint, query string) *SparqlSource {
	return &SparqlSource{EndpointURL: endpoint, BaseQuery: query, Client: http.DefaultClient}
}

type sparqlResults struct {
	Results struct {
		Bindings []map[string]sparqlBinding `json:"bindings"`
	} `json:"results"`
}

type sparqlBinding struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	DataType string `json:"datatype"`
}

func (s *SparqlSource) IterBatches(ctx context.Context, batchSize int, limit *int) (<-chan Batch, <-chan error) {
	out := make(chan Batch)
	errc := make(chan error, 1)
	if batchSize <= 0 {
		batchSize = 1000
	}

	go func() {
		defer close(out)
		defer close(errc)

		var allTriples []triple
		offset := 0
		for {
			page, err := s.fetchPage(ctx, batchSize, offset)
			if err != nil {
				errc <- err
				return
			}
			if len(page) == 0 {
				break
			}
			allTriples = append(allTriples, page...)
			offset += len(page)
			if len(page) < batchSize {
				break
			}
			if limit != nil && offset >= *limit {
				break
			}
		}

		records := groupTriplesBySubject(allTriples, "")
		if limit != nil && len(records) > *limit {
			records = records[:*limit]
		}
		logging.Logf(logging.Debug, "source.SparqlSource fetched %d triples from %s", len(allTriples), s.EndpointURL)

		if err := runSlices(ctx, out, records, batchSize); err != nil {
			errc <- err
		}
	}()

	return out, errc
}

func runSlices(ctx context.Context, out chan<- Batch, records []map[string]interface{}, batchSize int) error {
	for i := 0; i < len(records); i += batchSize {
		end := i + batchSize
		if end > len(records) {
			end = len(records)
		}
		select {
		case out <- Batch{Records: records[i:end]}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *SparqlSource) fetchPage(ctx context.Context, limit, offset int) ([]triple, error) {
	query := fmt.Sprintf("%s LIMIT %d OFFSET %d", s.BaseQuery, limit, offset)
	u, err := url.Parse(s.EndpointURL)
	if err != nil {
		return nil, fmt.Errorf("source: sparql parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("query", query)
	q.Set("format", "json")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("source: sparql build request: %w", err)
	}
	req.Header.Set("Accept", "application/sparql-results+json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source: sparql request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("source: sparql endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("source: sparql read body: %w", err)
	}

	var parsed sparqlResults
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("source: sparql unmarshal results: %w", err)
	}

	// Typed integer/float/boolean literals become scalars when the triples
	// are grouped into records (see groupTriplesBySubject).
	triples := make([]triple, 0, len(parsed.Results.Bindings))
	for _, b := range parsed.Results.Bindings {
		subj, pred, obj := b["s"], b["p"], b["o"]
		isLiteral := obj.Type == "literal" || obj.Type == "typed-literal"
		triples = append(triples, triple{subject: subj.Value, predicate: pred.Value, object: obj.Value, objectIsLiteral: isLiteral})
	}
	return triples, nil
}
