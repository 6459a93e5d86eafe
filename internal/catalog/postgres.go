package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/growgraph/graph-ingest/internal/ingesterr"
	"github.com/growgraph/graph-ingest/internal/logging"
	"github.com/growgraph/graph-ingest/internal/util"
)

// pgxConnectFunc allows overriding pgx.Connect for testing, mirroring the
// teacher's factory-variable idiom.
var pgxConnectFunc = pgx.Connect

const defaultCatalogTimeout = 30 * time.Second

// PostgresReader introspects a Postgres database, preferring the ANSI
// information_schema views and falling back to pg_catalog when they are
// unavailable (e.g. a restrictive permission grant or a non-standard schema).
type PostgresReader struct {
	connStr string
	schema  string
}

func NewPostgresReader(connStr, schema string) *PostgresReader {
	if schema == "" {
		schema = "public"
	}
	return &PostgresReader{connStr: connStr, schema: schema}
}

func (r *PostgresReader) Tables(ctx context.Context) ([]TableMeta, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultCatalogTimeout)
	defer cancel()

	expanded := util.ExpandEnvUniversal(r.connStr)
	conn, err := pgxConnectFunc(ctx, expanded)
	if err != nil {
		masked := util.MaskCredentials(expanded)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ingesterr.New(ingesterr.Catalog, "catalog.postgres", masked, fmt.Errorf("connection timed out: %w", ctx.Err()))
		}
		return nil, ingesterr.New(ingesterr.Catalog, "catalog.postgres", masked, fmt.Errorf("connect: %w", err))
	}
	defer conn.Close(ctx)

	if ok := r.standardsAvailable(ctx, conn); ok {
		tables, err := r.readInformationSchema(ctx, conn)
		if err == nil {
			return tables, nil
		}
		logging.Logf(logging.Warning, "catalog: information_schema introspection failed (%v), falling back to pg_catalog", err)
	}
	tables, err := r.readPgCatalog(ctx, conn)
	if err != nil {
		return nil, ingesterr.New(ingesterr.Catalog, "catalog.postgres", r.schema, err)
	}
	return tables, nil
}

func (r *PostgresReader) standardsAvailable(ctx context.Context, conn *pgx.Conn) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var dummy int
	err := conn.QueryRow(probeCtx, "SELECT 1 FROM information_schema.tables LIMIT 1").Scan(&dummy)
	return err == nil
}

func (r *PostgresReader) readInformationSchema(ctx context.Context, conn *pgx.Conn) ([]TableMeta, error) {
	rows, err := conn.Query(ctx, `
		SELECT table_name, column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = $1
		ORDER BY table_name, ordinal_position`, r.schema)
	if err != nil {
		return nil, fmt.Errorf("catalog: query information_schema.columns: %w", err)
	}
	defer rows.Close()

	tablesByName := make(map[string]*TableMeta)
	var order []string
	for rows.Next() {
		var table, col, dataType, nullable string
		if err := rows.Scan(&table, &col, &dataType, &nullable); err != nil {
			return nil, fmt.Errorf("catalog: scan information_schema.columns row: %w", err)
		}
		tm, ok := tablesByName[table]
		if !ok {
			tm = &TableMeta{Schema: r.schema, Name: table}
			tablesByName[table] = tm
			order = append(order, table)
		}
		tm.Columns = append(tm.Columns, ColumnMeta{Name: col, DataType: NormalizeType(dataType), Nullable: nullable == "YES"})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachPrimaryKeys(ctx, conn, tablesByName); err != nil {
		return nil, err
	}
	if err := r.attachForeignKeys(ctx, conn, tablesByName); err != nil {
		return nil, err
	}

	result := make([]TableMeta, 0, len(order))
	for _, name := range order {
		result = append(result, *tablesByName[name])
	}
	return result, nil
}

func (r *PostgresReader) attachPrimaryKeys(ctx context.Context, conn *pgx.Conn, tables map[string]*TableMeta) error {
	rows, err := conn.Query(ctx, `
		SELECT tc.table_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = $1
		ORDER BY tc.table_name, kcu.ordinal_position`, r.schema)
	if err != nil {
		return fmt.Errorf("catalog: query primary keys: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var table, col string
		if err := rows.Scan(&table, &col); err != nil {
			return err
		}
		if tm, ok := tables[table]; ok {
			tm.PrimaryKey = append(tm.PrimaryKey, col)
		}
	}
	return rows.Err()
}

func (r *PostgresReader) attachForeignKeys(ctx context.Context, conn *pgx.Conn, tables map[string]*TableMeta) error {
	rows, err := conn.Query(ctx, `
		SELECT
		  tc.table_name, tc.constraint_name, kcu.column_name, kcu.ordinal_position,
		  ccu.table_name AS references_table, ccu.column_name AS references_column
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = $1
		ORDER BY tc.table_name, tc.constraint_name, kcu.ordinal_position`, r.schema)
	if err != nil {
		return fmt.Errorf("catalog: query foreign keys: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var table, constraintName, col, refTable, refCol string
		var position int
		if err := rows.Scan(&table, &constraintName, &col, &position, &refTable, &refCol); err != nil {
			return err
		}
		if tm, ok := tables[table]; ok {
			tm.ForeignKeys = append(tm.ForeignKeys, ForeignKey{
				Column: col, ReferencesTable: refTable, ReferencesCol: refCol,
				ConstraintName: constraintName, Position: position,
			})
		}
	}
	return rows.Err()
}

// readPgCatalog is the native-catalog fallback, used when information_schema
// is unavailable or the probe query fails.
func (r *PostgresReader) readPgCatalog(ctx context.Context, conn *pgx.Conn) ([]TableMeta, error) {
	rows, err := conn.Query(ctx, `
		SELECT c.relname, a.attname, format_type(a.atttypid, a.atttypmod), NOT a.attnotnull
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_catalog.pg_attribute a ON a.attrelid = c.oid
		WHERE c.relkind = 'r' AND n.nspname = $1 AND a.attnum > 0 AND NOT a.attisdropped
		ORDER BY c.relname, a.attnum`, r.schema)
	if err != nil {
		return nil, fmt.Errorf("catalog: query pg_catalog: %w", err)
	}
	defer rows.Close()

	tablesByName := make(map[string]*TableMeta)
	var order []string
	for rows.Next() {
		var table, col, dataType string
		var nullable bool
		if err := rows.Scan(&table, &col, &dataType, &nullable); err != nil {
			return nil, err
		}
		tm, ok := tablesByName[table]
		if !ok {
			tm = &TableMeta{Schema: r.schema, Name: table}
			tablesByName[table] = tm
			order = append(order, table)
		}
		tm.Columns = append(tm.Columns, ColumnMeta{Name: col, DataType: NormalizeType(dataType), Nullable: nullable})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachPgCatalogConstraints(ctx, conn, tablesByName); err != nil {
		return nil, err
	}

	result := make([]TableMeta, 0, len(order))
	for _, name := range order {
		result = append(result, *tablesByName[name])
	}
	return result, nil
}

// attachPgCatalogConstraints recovers primary and foreign keys from
// pg_constraint so the fallback emits the same TableMeta shape as the
// information_schema path, multi-column constraints included.
func (r *PostgresReader) attachPgCatalogConstraints(ctx context.Context, conn *pgx.Conn, tables map[string]*TableMeta) error {
	rows, err := conn.Query(ctx, `
		SELECT c.relname, con.conname, con.contype::text, a.attname, k.ord,
		       COALESCE(cf.relname, ''), COALESCE(af.attname, '')
		FROM pg_catalog.pg_constraint con
		JOIN pg_catalog.pg_class c ON c.oid = con.conrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		JOIN LATERAL unnest(con.conkey) WITH ORDINALITY AS k(attnum, ord) ON true
		JOIN pg_catalog.pg_attribute a ON a.attrelid = c.oid AND a.attnum = k.attnum
		LEFT JOIN pg_catalog.pg_class cf ON cf.oid = con.confrelid
		LEFT JOIN LATERAL unnest(con.confkey) WITH ORDINALITY AS kf(attnum, ord) ON kf.ord = k.ord
		LEFT JOIN pg_catalog.pg_attribute af ON af.attrelid = cf.oid AND af.attnum = kf.attnum
		WHERE n.nspname = $1 AND con.contype IN ('p', 'f')
		ORDER BY c.relname, con.conname, k.ord`, r.schema)
	if err != nil {
		return fmt.Errorf("catalog: query pg_constraint: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var table, conName, conType, col, refTable, refCol string
		var position int
		if err := rows.Scan(&table, &conName, &conType, &col, &position, &refTable, &refCol); err != nil {
			return err
		}
		tm, ok := tables[table]
		if !ok {
			continue
		}
		switch conType {
		case "p":
			tm.PrimaryKey = append(tm.PrimaryKey, col)
		case "f":
			tm.ForeignKeys = append(tm.ForeignKeys, ForeignKey{
				Column: col, ReferencesTable: refTable, ReferencesCol: refCol,
				ConstraintName: conName, Position: position,
			})
		}
	}
	return rows.Err()
}
