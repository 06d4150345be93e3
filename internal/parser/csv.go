package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/wonny/nsefeed/internal/table"
	"github.com/wonny/nsefeed/pkg/apperrors"
)

// CSVOptions shapes a CSV download into a table
type CSVOptions struct {
	SkipRows   int                      // leading records dropped before the header
	KeepSpaces bool                     // by default every space is stripped from the text
	Header     func(name string) string // applied to each header cell
	Rename     map[string]string
	Dates      map[string]string // column (after rename) -> layout
	DropEmpty  bool              // drop columns with any empty cell
	Index      []string
}

// ParseCSV decodes UTF-8 CSV text into a typed table
func ParseCSV(body []byte, opts CSVOptions) (*table.Table, error) {
	body = bytes.TrimPrefix(body, []byte("\xef\xbb\xbf"))
	if !opts.KeepSpaces {
		body = bytes.ReplaceAll(body, []byte(" "), nil)
	}

	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid csv: %v", apperrors.ErrSchemaMismatch, err)
	}

	if len(records) <= opts.SkipRows {
		return nil, fmt.Errorf("%w: csv has no header after skipping %d rows", apperrors.ErrSchemaMismatch, opts.SkipRows)
	}
	records = records[opts.SkipRows:]

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		if opts.Header != nil {
			h = opts.Header(h)
		}
		h = strings.TrimSpace(h)
		if to, ok := opts.Rename[h]; ok {
			h = to
		}
		header[i] = h
	}
	header = uniqueHeader(header)

	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		for i := range rec {
			rec[i] = strings.TrimSpace(rec[i])
		}
		rows = append(rows, rec)
	}

	return buildTable(header, rows, opts.Dates, opts.DropEmpty, opts.Index)
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
