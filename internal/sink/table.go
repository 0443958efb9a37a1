package sink

import (
	"math"
	"strconv"

	"github.com/bigbio/mad-decoy/internal/db"
	"github.com/bigbio/mad-decoy/internal/model"
)

// Table is the adjusted protein table ready for output.
type Table struct {
	Columns []string
	Records []model.Record
}

// NewTable lays out records under the union of the input headers in
// first-seen order, followed by the adjusted q-value column. With no input
// headers the consumed columns are used.
func NewTable(records []model.Record, headers ...[]string) Table {
	seen := make(map[string]bool)
	var cols []string
	add := func(c string) {
		if !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}
	for _, h := range headers {
		for _, c := range h {
			add(c)
		}
	}
	if len(cols) == 0 {
		for _, c := range model.RequiredColumns {
			add(c)
		}
	}
	add(model.ColAdjustedQValue)
	return Table{Columns: cols, Records: records}
}

// Row renders r as text cells in column order. Synthetic decoys leave
// pass-through columns empty.
func (t Table) Row(r model.Record) []string {
	row := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		switch c {
		case model.ColProteinAccession:
			row[i] = r.ProteinAccession
		case model.ColGlobalQValue:
			row[i] = FormatFloat(r.GlobalQValue)
		case model.ColAdjustedQValue:
			row[i] = FormatFloat(r.QValue)
		case model.ColIsDecoy:
			if r.IsDecoy {
				row[i] = "1"
			} else {
				row[i] = "0"
			}
		case model.ColCondition:
			row[i] = r.Condition
		case model.ColDatasetAccession:
			row[i] = r.DatasetAccession
		default:
			row[i] = r.Extra[c]
		}
	}
	return row
}

// Values renders r as typed values in column order for SQL sinks.
func (t Table) Values(r model.Record) []any {
	cells := t.Row(r)
	vals := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		switch c {
		case model.ColGlobalQValue:
			vals[i] = r.GlobalQValue
		case model.ColAdjustedQValue:
			vals[i] = r.QValue
		case model.ColIsDecoy:
			vals[i] = r.IsDecoy
		default:
			vals[i] = cells[i]
		}
	}
	return vals
}

// Spec describes the SQL table for t.
func (t Table) Spec(name string) db.TableSpec {
	spec := db.TableSpec{Name: name, Columns: make([]db.Column, len(t.Columns))}
	for i, c := range t.Columns {
		typ := db.Text
		switch c {
		case model.ColGlobalQValue, model.ColAdjustedQValue:
			typ = db.Float
		case model.ColIsDecoy:
			typ = db.Bool
		}
		spec.Columns[i] = db.Column{Name: c, Type: typ}
	}
	return spec
}

// FormatFloat renders a q-value; +Inf is written as "inf".
func FormatFloat(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
