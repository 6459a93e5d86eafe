// Package catalog reads table/column/foreign-key metadata from a relational
// source, preferring the ANSI information_schema and falling back to a
// database-native catalog when the standards view is unavailable or empty.
package catalog

import (
	"context"
	"strings"
)

// ColumnMeta describes one column of a table.
type ColumnMeta struct {
	Name     string
	DataType string
	Nullable bool
}

// ForeignKey describes one constituent column of a foreign-key constraint.
// Multi-column FKs produce one ForeignKey row per column, ordered by
// Position (ordinal position within the constraint), per spec.md §4.2.
type ForeignKey struct {
	Column          string
	ReferencesTable string
	ReferencesCol   string
	ConstraintName  string
	Position        int
}

// TableMeta describes one table: its columns, primary key, and foreign keys.
type TableMeta struct {
	Schema      string
	Name        string
	Columns     []ColumnMeta
	PrimaryKey  []string
	ForeignKeys []ForeignKey
}

// Reader is the catalog introspection contract, implemented per dialect.
type Reader interface {
	Tables(ctx context.Context) ([]TableMeta, error)
}

// typeAliases remaps spelled-out type names onto the engine-native short
// forms, so both catalog paths report the same vocabulary.
var typeAliases = map[string]string{
	"integer":           "int4",
	"bigint":            "int8",
	"smallint":          "int2",
	"character varying": "varchar",
	"character":         "char",
	"double precision":  "float8",
	"real":              "float4",
}

// NormalizeType folds a length-parameterized type to its base
// (varchar(255) -> varchar) and remaps spelled-out aliases onto their
// short forms; unknown types pass through unchanged.
func NormalizeType(dialectType string) string {
	normalized := strings.ToLower(strings.TrimSpace(dialectType))
	if i := strings.Index(normalized, "("); i >= 0 {
		normalized = strings.TrimSpace(normalized[:i])
	}
	if canon, ok := typeAliases[normalized]; ok {
		return canon
	}
	return normalized
}
