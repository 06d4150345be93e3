package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/nsefeed/internal/table"
	"github.com/wonny/nsefeed/pkg/apperrors"
)

// HTMLOptions shapes the first <table> of a page into a table
type HTMLOptions struct {
	SkipRows int      // header rows before the data
	Columns  []string // names given to the leading cells of each row
	Dates    map[string]string
	Index    []string
}

var cellCleaner = strings.NewReplacer(" ", "", ",", "", "\u00a0", "")

// ParseHTMLTable reads <td> cells of the first table. Rows with fewer cells than
// Columns are discarded; extra trailing cells are ignored.
func ParseHTMLTable(body []byte, opts HTMLOptions) (*table.Table, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid html: %v", apperrors.ErrSchemaMismatch, err)
	}

	tbl := doc.Find("table").First()
	if tbl.Length() == 0 {
		return nil, fmt.Errorf("%w: no table in page", apperrors.ErrSchemaMismatch)
	}

	var rows [][]string
	tbl.Find("tr").Each(func(i int, s *goquery.Selection) {
		if i < opts.SkipRows {
			return
		}

		cells := s.Find("td")
		if cells.Length() < len(opts.Columns) {
			return
		}

		row := make([]string, len(opts.Columns))
		cells.Each(func(j int, cell *goquery.Selection) {
			if j < len(row) {
				row[j] = strings.TrimSpace(cellCleaner.Replace(cell.Text()))
			}
		})
		rows = append(rows, row)
	})

	return buildTable(opts.Columns, rows, opts.Dates, false, opts.Index)
}
