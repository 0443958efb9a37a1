package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// ColumnType is the logical type of an output column.
type ColumnType int

// Column types.
const (
	Text ColumnType = iota
	Float
	Bool
)

// Dialect selects SQL type names.
type Dialect int

// Supported dialects.
const (
	Postgres Dialect = iota
	SQLite
)

// Column is one output column.
type Column struct {
	Name string
	Type ColumnType
}

// TableSpec describes a table that is dropped and recreated on every write.
type TableSpec struct {
	Name    string
	Columns []Column
}

// ColumnNames returns the column names in order.
func (s TableSpec) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

func (t ColumnType) sqlType(d Dialect) string {
	switch {
	case t == Float && d == Postgres:
		return "DOUBLE PRECISION"
	case t == Float:
		return "REAL"
	case t == Bool && d == Postgres:
		return "BOOLEAN"
	case t == Bool:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

// CreateTableSQL renders CREATE TABLE for spec.
func CreateTableSQL(spec TableSpec, d Dialect) string {
	defs := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		defs[i] = fmt.Sprintf("%s %s", pgx.Identifier{c.Name}.Sanitize(), c.Type.sqlType(d))
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", identifier(spec.Name).Sanitize(), strings.Join(defs, ", "))
}

// DropTableSQL renders DROP TABLE IF EXISTS for spec.
func DropTableSQL(spec TableSpec) string {
	return "DROP TABLE IF EXISTS " + identifier(spec.Name).Sanitize()
}

// ReplaceTable drops, recreates and fills spec.Name in one transaction.
func ReplaceTable(ctx context.Context, pool Pool, spec TableSpec, rows [][]any) (int64, error) {
	if len(spec.Columns) == 0 {
		return 0, eris.New("db: replace: no columns specified")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: replace: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, DropTableSQL(spec)); err != nil {
		return 0, eris.Wrapf(err, "db: replace: drop %s", spec.Name)
	}
	if _, err := tx.Exec(ctx, CreateTableSQL(spec, Postgres)); err != nil {
		return 0, eris.Wrapf(err, "db: replace: create %s", spec.Name)
	}

	n, err := CopyFrom(ctx, tx, spec.Name, spec.ColumnNames(), rows)
	if err != nil {
		return 0, eris.Wrap(err, "db: replace")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: replace: commit tx")
	}
	return n, nil
}

// identifier handles schema-qualified names like "results.protein_qvalues".
func identifier(table string) pgx.Identifier {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}
	}
	return pgx.Identifier{table}
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
