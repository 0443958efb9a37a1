package loader

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Delimiter names accepted by Options.Delimiter.
const (
	DelimiterAuto  = "auto"
	DelimiterTab   = "tab"
	DelimiterComma = "comma"
)

const sniffSize = 64 * 1024

// streamRows reads delimited rows and sends them to a channel. The header is
// the first row sent. Both channels are closed when reading completes.
func streamRows(ctx context.Context, r io.Reader, delimiter string) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		// A UTF-8 BOM is dropped and UTF-16 input with a BOM is decoded.
		br := bufio.NewReaderSize(transform.NewReader(r, unicode.BOMOverride(transform.Nop)), sniffSize)

		comma, err := resolveDelimiter(br, delimiter)
		if err != nil {
			errCh <- err
			return
		}

		reader := csv.NewReader(br)
		reader.Comma = comma
		reader.FieldsPerRecord = -1
		reader.LazyQuotes = true
		reader.ReuseRecord = false

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "loader: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "loader: read row")
				return
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "loader: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

func resolveDelimiter(br *bufio.Reader, delimiter string) (rune, error) {
	switch delimiter {
	case DelimiterTab:
		return '\t', nil
	case DelimiterComma:
		return ',', nil
	case DelimiterAuto, "":
		return sniffDelimiter(br)
	default:
		return 0, eris.Errorf("loader: unknown delimiter %q", delimiter)
	}
}

// sniffDelimiter picks tab when the header line contains one, else comma.
func sniffDelimiter(br *bufio.Reader) (rune, error) {
	peek, err := br.Peek(sniffSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return 0, eris.Wrap(err, "loader: sniff header")
	}
	if i := bytes.IndexByte(peek, '\n'); i >= 0 {
		peek = peek[:i]
	}
	if bytes.IndexByte(peek, '\t') >= 0 {
		return '\t', nil
	}
	return ',', nil
}
