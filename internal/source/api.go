package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/growgraph/graph-ingest/internal/logging"
)

// PaginationMode selects how APISource advances to the next page.
type PaginationMode string

const (
	OffsetLimit PaginationMode = "offset_limit"
	Cursor      PaginationMode = "cursor"
	PageNumber  PaginationMode = "page_number"
)

// APISource pages an HTTP JSON API, extracting the record array and a
// has-more flag via dotted JSON paths.
type APISource struct {
	BaseURL     string
	Mode        PaginationMode
	DataPath    string // dotted path to the record array, e.g. "data.items"
	HasMorePath string // dotted path to a boolean has-more flag, optional
	CursorParam string
	PageParam   string
	OffsetParam string
	LimitParam  string
	Client      *http.Client
}

func NewAPISource(baseURL string, mode PaginationMode, dataPath string) *APISource {
	return &APISource{
		BaseURL:     baseURL,
		Mode:        mode,
		DataPath:    dataPath,
		CursorParam: "cursor",
		PageParam:   "page",
		OffsetParam: "offset",
		LimitParam:  "limit",
		Client:      http.DefaultClient,
	}
}

func (a *APISource) IterBatches(ctx context.Context, batchSize int, limit *int) (<-chan Batch, <-chan error) {
	out := make(chan Batch)
	errc := make(chan error, 1)
	if batchSize <= 0 {
		batchSize = 100
	}

	go func() {
		defer close(out)
		defer close(errc)

		emitted := 0
		offset := 0
		page := 1
		cursor := ""

		for {
			if limit != nil && emitted >= *limit {
				return
			}
			reqURL, err := a.buildURL(offset, page, cursor, batchSize)
			if err != nil {
				errc <- err
				return
			}
			body, err := a.fetch(ctx, reqURL)
			if err != nil {
				errc <- err
				return
			}

			var doc interface{}
			if err := json.Unmarshal(body, &doc); err != nil {
				errc <- fmt.Errorf("source: api unmarshal response: %w", err)
				return
			}

			rawRecords, _ := walkPath(doc, a.DataPath).([]interface{})
			if len(rawRecords) == 0 {
				return
			}
			records := make([]map[string]interface{}, 0, len(rawRecords))
			for _, r := range rawRecords {
				if m, ok := r.(map[string]interface{}); ok {
					records = append(records, m)
				}
			}
			emitted += len(records)
			select {
			case out <- Batch{Records: records}:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}

			hasMore := true
			if a.HasMorePath != "" {
				if b, ok := walkPath(doc, a.HasMorePath).(bool); ok {
					hasMore = b
				}
			}
			if !hasMore {
				return
			}

			switch a.Mode {
			case Cursor:
				next, _ := walkPath(doc, "next_cursor").(string)
				if next == "" {
					return
				}
				cursor = next
			case PageNumber:
				page++
			default:
				offset += len(records)
			}
		}
	}()

	return out, errc
}

func (a *APISource) buildURL(offset, page int, cursor string, batchSize int) (string, error) {
	u, err := url.Parse(a.BaseURL)
	if err != nil {
		return "", fmt.Errorf("source: api parse base url: %w", err)
	}
	q := u.Query()
	switch a.Mode {
	case Cursor:
		if cursor != "" {
			q.Set(a.CursorParam, cursor)
		}
	case PageNumber:
		q.Set(a.PageParam, strconv.Itoa(page))
	default:
		q.Set(a.OffsetParam, strconv.Itoa(offset))
	}
	q.Set(a.LimitParam, strconv.Itoa(batchSize))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (a *APISource) fetch(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("source: api build request: %w", err)
	}
	logging.Logf(logging.Debug, "source.APISource fetching %s", reqURL)
	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source: api request %s: %w", reqURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("source: api request %s returned status %d", reqURL, resp.StatusCode)
	}
	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("source: api read body: %w", err)
	}
	return buf, nil
}

// walkPath resolves a dotted path ("a.b.c") against a decoded JSON document.
func walkPath(doc interface{}, path string) interface{} {
	if path == "" {
		return doc
	}
	cur := doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur, ok = m[part]
		if !ok {
			return nil
		}
	}
	return cur
}
