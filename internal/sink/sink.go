// Package sink writes the adjusted protein table to delimited files, .xlsx
// workbooks, SQLite, Postgres or S3.
package sink

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bigbio/mad-decoy/internal/blob"
	"github.com/bigbio/mad-decoy/internal/db"
	"github.com/bigbio/mad-decoy/internal/resilience"
)

// Format is an output encoding.
type Format string

// Supported formats.
const (
	FormatCSV      Format = "csv"
	FormatTSV      Format = "tsv"
	FormatXLSX     Format = "xlsx"
	FormatSQLite   Format = "sqlite"
	FormatPostgres Format = "postgres"
)

// DefaultTable is the SQL table name used when Options.Table is empty.
const DefaultTable = "protein_qvalues"

// Options configures Write.
type Options struct {
	// Format overrides detection from the target.
	Format string
	// Table names the SQL table for sqlite and postgres targets.
	Table string
	S3    blob.S3Options
	// Retry governs object uploads.
	Retry resilience.RetryConfig
}

// DetectFormat picks the format for target: postgres:// and sqlite:// URLs,
// then the file extension. Anything else is CSV.
func DetectFormat(target, override string) (Format, error) {
	if override != "" {
		switch f := Format(strings.ToLower(override)); f {
		case FormatCSV, FormatTSV, FormatXLSX, FormatSQLite, FormatPostgres:
			return f, nil
		default:
			return "", eris.Errorf("sink: unknown format %q", override)
		}
	}

	lower := strings.ToLower(target)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return FormatPostgres, nil
	case strings.HasPrefix(lower, "sqlite://"):
		return FormatSQLite, nil
	}

	switch strings.ToLower(filepath.Ext(target)) {
	case ".tsv", ".txt":
		return FormatTSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite, nil
	default:
		return FormatCSV, nil
	}
}

// Write sends tbl to target and returns the number of data rows written.
func Write(ctx context.Context, target string, tbl Table, opts Options) (int64, error) {
	format, err := DetectFormat(target, opts.Format)
	if err != nil {
		return 0, err
	}
	if opts.Table == "" {
		opts.Table = DefaultTable
	}

	var n int64
	switch {
	case strings.HasPrefix(target, "s3://"):
		n, err = writeS3(ctx, target, format, tbl, opts.S3, opts.Retry)
	case format == FormatSQLite:
		n, err = writeSQLite(ctx, strings.TrimPrefix(target, "sqlite://"), opts.Table, tbl)
	case format == FormatPostgres:
		n, err = writePostgres(ctx, target, opts.Table, tbl)
	default:
		n, err = writeFile(target, format, tbl)
	}
	if err != nil {
		return 0, err
	}

	zap.L().Info("sink: table written",
		zap.String("target", redact(target)),
		zap.String("format", string(format)),
		zap.Int64("rows", n),
	)
	return n, nil
}

// Encode renders tbl in a file format to w.
func Encode(w io.Writer, format Format, tbl Table) error {
	switch format {
	case FormatCSV:
		return WriteDelimited(w, tbl, ',')
	case FormatTSV:
		return WriteDelimited(w, tbl, '\t')
	case FormatXLSX:
		return WriteXLSX(w, tbl)
	default:
		return eris.Errorf("sink: format %s cannot be encoded as a file", format)
	}
}

func writeFile(path string, format Format, tbl Table) (int64, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, eris.Wrapf(err, "sink: create dir %s", dir)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "sink: create file")
	}
	if err := Encode(f, format, tbl); err != nil {
		f.Close() //nolint:errcheck
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, eris.Wrap(err, "sink: close file")
	}
	return int64(len(tbl.Records)), nil
}

func writeSQLite(ctx context.Context, dsn, table string, tbl Table) (int64, error) {
	conn, err := db.OpenSQLite(dsn)
	if err != nil {
		return 0, err
	}
	defer conn.Close() //nolint:errcheck
	return db.ReplaceSQLiteTable(ctx, conn, tbl.Spec(table), rowValues(tbl))
}

func writePostgres(ctx context.Context, connString, table string, tbl Table) (int64, error) {
	pool, err := db.Connect(ctx, connString)
	if err != nil {
		return 0, err
	}
	defer pool.Close()
	return WritePostgres(ctx, pool, table, tbl)
}

// WritePostgres replaces table with tbl's rows over an existing pool.
func WritePostgres(ctx context.Context, pool db.Pool, table string, tbl Table) (int64, error) {
	return db.ReplaceTable(ctx, pool, tbl.Spec(table), rowValues(tbl))
}

func rowValues(tbl Table) [][]any {
	rows := make([][]any, len(tbl.Records))
	for i, r := range tbl.Records {
		rows[i] = tbl.Values(r)
	}
	return rows
}

// redact drops credentials from connection URLs before logging.
func redact(target string) string {
	scheme, rest, ok := strings.Cut(target, "://")
	if !ok {
		return target
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		if slash := strings.Index(rest, "/"); slash < 0 || at < slash {
			rest = "***" + rest[at:]
		}
	}
	return scheme + "://" + rest
}
