// Package loader reads per-dataset protein tables (delimited text or .xlsx)
// into records, dropping rows whose q-value is undefined.
package loader

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bigbio/mad-decoy/internal/fetcher"
	"github.com/bigbio/mad-decoy/internal/model"
)

// Options configures parsing.
type Options struct {
	// Delimiter is auto, tab or comma. Ignored for .xlsx.
	Delimiter string
}

// Load opens one entry of src and parses it.
func Load(ctx context.Context, src fetcher.Source, e fetcher.Entry, opts Options) (model.Dataset, error) {
	rc, err := src.Open(ctx, e)
	if err != nil {
		return model.Dataset{}, eris.Wrapf(err, "loader: open dataset %s", e.Name)
	}
	defer rc.Close() //nolint:errcheck

	ds, err := Read(ctx, rc, e.Name, opts)
	if err != nil {
		return model.Dataset{}, err
	}
	ds.Source = e.Location

	targets, decoys := model.Counts(ds.Records)
	zap.L().Debug("loader: dataset loaded",
		zap.String("dataset", ds.Name),
		zap.Int("records", len(ds.Records)),
		zap.Int("targets", targets),
		zap.Int("decoys", decoys),
		zap.Int("dropped", ds.Dropped),
	)
	return ds, nil
}

// Read parses a table from r. name selects the format by extension and
// labels errors.
func Read(ctx context.Context, r io.Reader, name string, opts Options) (model.Dataset, error) {
	ds := model.Dataset{Name: name}

	if strings.EqualFold(path.Ext(name), ".xlsx") {
		data, err := io.ReadAll(r)
		if err != nil {
			return ds, eris.Wrapf(err, "loader: read %s", name)
		}
		rows, err := readXLSX(data)
		if err != nil {
			return ds, eris.Wrapf(err, "loader: %s", name)
		}
		if len(rows) == 0 {
			return ds, eris.Errorf("loader: %s: empty table", name)
		}
		p, err := newTableParser(&ds, rows[0])
		if err != nil {
			return ds, err
		}
		for i, fields := range rows[1:] {
			if err := p.add(i+2, fields); err != nil {
				return ds, err
			}
		}
		return ds, nil
	}

	rowCh, errCh := streamRows(ctx, r, opts.Delimiter)
	var p *tableParser
	row := 0
	for fields := range rowCh {
		row++
		if p == nil {
			var err error
			if p, err = newTableParser(&ds, fields); err != nil {
				drain(rowCh)
				return ds, err
			}
			continue
		}
		if err := p.add(row, fields); err != nil {
			drain(rowCh)
			return ds, err
		}
	}
	if err := <-errCh; err != nil {
		return ds, eris.Wrapf(err, "loader: %s row %d", name, row+1)
	}
	if p == nil {
		return ds, eris.Errorf("loader: %s: empty table", name)
	}
	return ds, nil
}

// drain lets the reader goroutine finish after an early return.
func drain(ch <-chan []string) {
	for range ch {
	}
}
