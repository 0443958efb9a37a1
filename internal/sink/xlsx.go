package sink

import (
	"io"
	"math"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/bigbio/mad-decoy/internal/model"
)

// SheetName is the worksheet the adjusted table is written to.
const SheetName = "protein_qvalues"

// WriteXLSX writes tbl as a single-sheet workbook. Finite q-values are
// numeric cells.
func WriteXLSX(w io.Writer, tbl Table) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, c := range tbl.Columns {
		header.AddCell().SetString(c)
	}

	for _, r := range tbl.Records {
		row := sheet.AddRow()
		cells := tbl.Row(r)
		for i, c := range tbl.Columns {
			cell := row.AddCell()
			switch c {
			case model.ColGlobalQValue:
				setFloat(cell, r.GlobalQValue, cells[i])
			case model.ColAdjustedQValue:
				setFloat(cell, r.QValue, cells[i])
			default:
				cell.SetString(cells[i])
			}
		}
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "xlsx: write workbook")
	}
	return nil
}

func setFloat(cell *xlsx.Cell, v float64, text string) {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		cell.SetString(text)
		return
	}
	cell.SetFloat(v)
}
