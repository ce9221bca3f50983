// Package csvfile reads the expense extract from a local CSV export of the
// spreadsheet.
package csvfile

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	ports "financeboard/internal/sheets"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Source re-reads the file on every fetch so edits show up on the next
// refresh.
type Source struct {
	path  string
	comma rune
}

var _ ports.ExtractSource = (*Source)(nil)

// New returns a source for path. When comma is zero the delimiter is guessed
// from the header line: ';' if it has more semicolons than commas, else ','.
func New(path string, comma rune) (*Source, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("csv extract path is empty")
	}
	if comma != 0 && (!utf8.ValidRune(comma) || comma == '"' || comma == '\r' || comma == '\n') {
		return nil, fmt.Errorf("invalid csv delimiter %q", comma)
	}
	return &Source{path: path, comma: comma}, nil
}

func (s *Source) FetchExtract(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read csv extract: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = s.comma
	if r.Comma == 0 {
		r.Comma = sniffDelimiter(data)
	}
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv extract %s: %w", s.path, err)
	}
	return rows, nil
}

func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}
