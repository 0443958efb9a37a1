package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// OpenSQLite opens a SQLite database at dsn and configures WAL mode.
func OpenSQLite(dsn string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return conn, nil
}

// ReplaceSQLiteTable drops, recreates and fills spec.Name in one
// transaction using a prepared INSERT.
func ReplaceSQLiteTable(ctx context.Context, conn *sql.DB, spec TableSpec, rows [][]any) (int64, error) {
	if len(spec.Columns) == 0 {
		return 0, eris.New("sqlite: replace: no columns specified")
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: replace: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, DropTableSQL(spec)); err != nil {
		return 0, eris.Wrapf(err, "sqlite: replace: drop %s", spec.Name)
	}
	if _, err := tx.ExecContext(ctx, CreateTableSQL(spec, SQLite)); err != nil {
		return 0, eris.Wrapf(err, "sqlite: replace: create %s", spec.Name)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(spec.Columns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		identifier(spec.Name).Sanitize(), quoteAndJoin(spec.ColumnNames()), placeholders))
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: replace: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: replace: insert row %d", i+1)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: replace: commit tx")
	}
	return int64(len(rows)), nil
}
