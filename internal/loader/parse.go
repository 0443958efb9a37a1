package loader

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/bigbio/mad-decoy/internal/model"
)

// undefinedTokens are q-value cells treated as missing.
var undefinedTokens = map[string]bool{
	"":     true,
	"nan":  true,
	"na":   true,
	"n/a":  true,
	"null": true,
	"none": true,
}

// tableParser turns header-keyed rows into records.
type tableParser struct {
	ds    *model.Dataset
	index map[string]int
	extra []string
}

func newTableParser(ds *model.Dataset, header []string) (*tableParser, error) {
	columns := make([]string, len(header))
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		columns[i] = h
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	var missing []string
	for _, c := range model.RequiredColumns {
		if _, ok := index[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("loader: %s: missing column(s) %s", ds.Name, strings.Join(missing, ", "))
	}

	ds.Columns = columns
	return &tableParser{ds: ds, index: index, extra: model.ExtraColumns(columns)}, nil
}

func (p *tableParser) cell(fields []string, col string) string {
	i, ok := p.index[col]
	if !ok || i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}

// add parses one data row. row is 1-based and counts the header.
func (p *tableParser) add(row int, fields []string) error {
	if isBlank(fields) {
		return nil
	}

	q, ok, err := parseQValue(p.cell(fields, model.ColGlobalQValue))
	if err != nil {
		return eris.Wrapf(err, "loader: %s row %d", p.ds.Name, row)
	}
	if !ok {
		p.ds.Dropped++
		return nil
	}

	decoy, err := parseDecoy(p.cell(fields, model.ColIsDecoy))
	if err != nil {
		return eris.Wrapf(err, "loader: %s row %d", p.ds.Name, row)
	}

	rec := model.Record{
		ProteinAccession: p.cell(fields, model.ColProteinAccession),
		QValue:           q,
		GlobalQValue:     q,
		IsDecoy:          decoy,
		Condition:        p.cell(fields, model.ColCondition),
		DatasetAccession: p.cell(fields, model.ColDatasetAccession),
	}
	if len(p.extra) > 0 {
		rec.Extra = make(map[string]string, len(p.extra))
		for _, col := range p.extra {
			rec.Extra[col] = p.cell(fields, col)
		}
	}

	p.ds.Records = append(p.ds.Records, rec)
	return nil
}

// parseQValue returns ok=false for cells that mean "no value".
func parseQValue(s string) (float64, bool, error) {
	if undefinedTokens[strings.ToLower(s)] {
		return 0, false, nil
	}
	q, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, eris.Errorf("bad %s %q", model.ColGlobalQValue, s)
	}
	if math.IsNaN(q) {
		return 0, false, nil
	}
	if q < 0 || q > 1 {
		return 0, false, eris.Errorf("bad %s %q: outside [0, 1]", model.ColGlobalQValue, s)
	}
	return q, true, nil
}

// parseDecoy accepts 0/1, booleans, and numeric forms such as "1.0".
func parseDecoy(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) {
		return f != 0, nil
	}
	return false, eris.Errorf("bad %s %q", model.ColIsDecoy, s)
}
