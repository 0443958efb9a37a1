package sink

import (
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"
)

// WriteDelimited writes a header row then one row per record.
func WriteDelimited(w io.Writer, tbl Table, comma rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = comma

	if err := cw.Write(tbl.Columns); err != nil {
		return eris.Wrap(err, "sink: write header")
	}
	for _, r := range tbl.Records {
		if err := cw.Write(tbl.Row(r)); err != nil {
			return eris.Wrap(err, "sink: write row")
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "sink: flush")
}
