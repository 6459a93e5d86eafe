package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/growgraph/graph-ingest/internal/ingesterr"
	"github.com/growgraph/graph-ingest/internal/logging"
	"github.com/growgraph/graph-ingest/internal/util"
)

// sqlOpenFunc allows overriding sql.Open for testing.
var sqlOpenFunc = sql.Open

// MySQLReader introspects a MySQL/MariaDB database through
// information_schema, falling back to SHOW KEYS FROM for index/PK detail
// when a constrained grant hides the standards views.
type MySQLReader struct {
	dsn    string
	schema string
}

func NewMySQLReader(dsn, schema string) *MySQLReader {
	return &MySQLReader{dsn: dsn, schema: schema}
}

func (r *MySQLReader) Tables(ctx context.Context) ([]TableMeta, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultCatalogTimeout)
	defer cancel()

	expanded := util.ExpandEnvUniversal(r.dsn)
	db, err := sqlOpenFunc("mysql", expanded)
	if err != nil {
		return nil, ingesterr.New(ingesterr.Catalog, "catalog.mysql", util.MaskCredentials(expanded), fmt.Errorf("open: %w", err))
	}
	defer db.Close()

	tables, err := r.readInformationSchema(ctx, db)
	if err != nil {
		logging.Logf(logging.Warning, "catalog: mysql information_schema introspection failed (%v), falling back to SHOW KEYS", err)
		tables, err := r.readShowKeys(ctx, db)
		if err != nil {
			return nil, ingesterr.New(ingesterr.Catalog, "catalog.mysql", r.schema, err)
		}
		return tables, nil
	}
	return tables, nil
}

func (r *MySQLReader) readInformationSchema(ctx context.Context, db *sql.DB) ([]TableMeta, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT table_name, column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = ?
		ORDER BY table_name, ordinal_position`, r.schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tablesByName := make(map[string]*TableMeta)
	var order []string
	for rows.Next() {
		var table, col, dataType, nullable string
		if err := rows.Scan(&table, &col, &dataType, &nullable); err != nil {
			return nil, err
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

	pkRows, err := db.QueryContext(ctx, `SELECT table_name, column_name FROM information_schema.key_column_usage
		WHERE table_schema = ? AND constraint_name = 'PRIMARY' ORDER BY table_name, ordinal_position`, r.schema)
	if err != nil {
		return nil, err
	}
	defer pkRows.Close()
	for pkRows.Next() {
		var table, col string
		if err := pkRows.Scan(&table, &col); err != nil {
			return nil, err
		}
		if tm, ok := tablesByName[table]; ok {
			tm.PrimaryKey = append(tm.PrimaryKey, col)
		}
	}

	fkRows, err := db.QueryContext(ctx, `
		SELECT table_name, constraint_name, column_name, ordinal_position,
		  referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ? AND referenced_table_name IS NOT NULL
		ORDER BY table_name, constraint_name, ordinal_position`, r.schema)
	if err != nil {
		return nil, err
	}
	defer fkRows.Close()
	for fkRows.Next() {
		var table, constraintName, col, refTable, refCol string
		var position int
		if err := fkRows.Scan(&table, &constraintName, &col, &position, &refTable, &refCol); err != nil {
			return nil, err
		}
		if tm, ok := tablesByName[table]; ok {
			tm.ForeignKeys = append(tm.ForeignKeys, ForeignKey{
				Column: col, ReferencesTable: refTable, ReferencesCol: refCol,
				ConstraintName: constraintName, Position: position,
			})
		}
	}

	result := make([]TableMeta, 0, len(order))
	for _, name := range order {
		result = append(result, *tablesByName[name])
	}
	return result, nil
}

// readShowKeys is the native fallback: per-table SHOW KEYS FROM to recover
// primary-key columns when information_schema.STATISTICS access is denied.
func (r *MySQLReader) readShowKeys(ctx context.Context, db *sql.DB) ([]TableMeta, error) {
	nameRows, err := db.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, fmt.Errorf("catalog: mysql SHOW TABLES: %w", err)
	}
	defer nameRows.Close()

	var names []string
	for nameRows.Next() {
		var name string
		if err := nameRows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}

	var result []TableMeta
	for _, name := range names {
		tm := TableMeta{Schema: r.schema, Name: name}
		keyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		keyRows, err := db.QueryContext(keyCtx, fmt.Sprintf("SHOW KEYS FROM `%s` WHERE Key_name = 'PRIMARY'", name))
		cancel()
		if err != nil {
			logging.Logf(logging.Warning, "catalog: mysql SHOW KEYS FROM %s: %v", name, err)
			result = append(result, tm)
			continue
		}
		cols, _ := keyRows.Columns()
		for keyRows.Next() {
			vals := make([]interface{}, len(cols))
			ptrs := make([]interface{}, len(cols))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			if err := keyRows.Scan(ptrs...); err == nil {
				for i, c := range cols {
					if c == "Column_name" {
						if s, ok := vals[i].(string); ok {
							tm.PrimaryKey = append(tm.PrimaryKey, s)
						}
					}
				}
			}
		}
		keyRows.Close()
		result = append(result, tm)
	}
	return result, nil
}
