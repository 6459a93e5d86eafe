// Package source implements the data-source contract (C7): a lazy, finite,
// non-restartable sequence of record batches, over files, SQL, HTTP APIs,
// and RDF/SPARQL inputs.
package source

import "context"

// Batch is one page of records pulled from a DataSource.
type Batch struct {
	Records []map[string]interface{}
}

// DataSource is the common contract every C7 variant implements. A single
// instance is non-restartable and not safe for concurrent use; IterBatches
// returns a fresh pair of channels each call.
type DataSource interface {
	IterBatches(ctx context.Context, batchSize int, limit *int) (<-chan Batch, <-chan error)
}

// runPaged is a small helper shared by sources that already hold the full
// record set in memory (file formats the teacher's readers load whole):
// it slices records into batchSize pages and streams them, respecting
// limit and ctx cancellation.
func runPaged(ctx context.Context, records []map[string]interface{}, batchSize int, limit *int) (<-chan Batch, <-chan error) {
	out := make(chan Batch)
	errc := make(chan error, 1)
	if batchSize <= 0 {
		batchSize = 500
	}
	go func() {
		defer close(out)
		defer close(errc)
		total := len(records)
		if limit != nil && *limit < total {
			total = *limit
		}
		for i := 0; i < total; i += batchSize {
			end := i + batchSize
			if end > total {
				end = total
			}
			select {
			case out <- Batch{Records: records[i:end]}:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
	}()
	return out, errc
}
