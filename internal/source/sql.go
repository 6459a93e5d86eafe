package source

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/growgraph/graph-ingest/internal/logging"
	"github.com/growgraph/graph-ingest/internal/util"
)

// pgxConnectFunc allows overriding pgx.Connect for testing.
var pgxConnectFunc = pgx.Connect

const defaultConnectTimeout = 30 * time.Second

// SQLSource pages a SQL query via a true server-side cursor (pgx.Rows),
// coercing numeric/decimal types to float64 for downstream compatibility,
// teacher-grounded on internal/io/postgres.go's connect/query/scan shape.
type SQLSource struct {
	ConnStr        string
	Query          string
	ConnectTimeout time.Duration
}

func NewSQLSource(connStr, query string) *SQLSource {
	return &SQLSource{ConnStr: connStr, Query: query, ConnectTimeout: defaultConnectTimeout}
}

func (s *SQLSource) IterBatches(ctx context.Context, batchSize int, limit *int) (<-chan Batch, <-chan error) {
	out := make(chan Batch)
	errc := make(chan error, 1)
	if batchSize <= 0 {
		batchSize = 500
	}

	go func() {
		defer close(out)
		defer close(errc)

		expanded := util.ExpandEnvUniversal(s.ConnStr)
		connectCtx := ctx
		if s.ConnectTimeout > 0 {
			var cancel context.CancelFunc
			connectCtx, cancel = context.WithTimeout(ctx, s.ConnectTimeout)
			defer cancel()
		}
		conn, err := pgxConnectFunc(connectCtx, expanded)
		if err != nil {
			errc <- fmt.Errorf("source: sql connect to %s: %w", util.MaskCredentials(expanded), err)
			return
		}
		defer conn.Close(ctx)

		rows, err := conn.Query(ctx, s.Query)
		if err != nil {
			errc <- fmt.Errorf("source: sql query %q: %w", s.Query, err)
			return
		}
		defer rows.Close()

		fields := rows.FieldDescriptions()
		colNames := make([]string, len(fields))
		for i, f := range fields {
			colNames[i] = string(f.Name)
		}

		var page []map[string]interface{}
		emitted := 0
		for rows.Next() {
			if limit != nil && emitted >= *limit {
				break
			}
			values, err := rows.Values()
			if err != nil {
				errc <- fmt.Errorf("source: sql scan row: %w", err)
				return
			}
			rec := make(map[string]interface{}, len(colNames))
			for i, name := range colNames {
				rec[name] = coerceValue(values[i])
			}
			page = append(page, rec)
			emitted++
			if len(page) >= batchSize {
				select {
				case out <- Batch{Records: page}:
				case <-ctx.Done():
					errc <- ctx.Err()
					return
				}
				page = nil
			}
		}
		if err := rows.Err(); err != nil {
			errc <- fmt.Errorf("source: sql rows error: %w", err)
			return
		}
		if len(page) > 0 {
			select {
			case out <- Batch{Records: page}:
			case <-ctx.Done():
				errc <- ctx.Err()
			}
		}
		logging.Logf(logging.Debug, "source.SQLSource emitted %d records", emitted)
	}()

	return out, errc
}

// coerceValue converts pgx's native decimal type to float64; every other
// value passes through unchanged.
func coerceValue(v interface{}) interface{} {
	if num, ok := v.(pgtype.Numeric); ok {
		f, err := num.Float64Value()
		if err == nil && f.Valid {
			return f.Float64
		}
		return nil
	}
	return v
}
