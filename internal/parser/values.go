package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/nsefeed/internal/table"
	"github.com/wonny/nsefeed/pkg/apperrors"
)

// Date layouts used by exchange payloads
const (
	LayoutDay       = "02-Jan-2006"          // 17-Jun-2020
	LayoutTimestamp = "02-Jan-2006 15:04:05" // 17-Jun-2020 15:30:00
	LayoutISO       = "2006-01-02"
)

// Number parses an exchange-formatted number: thousands separators are removed
// and the "-" placeholder means zero.
func Number(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "-" {
		return 0, nil
	}
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	return n, nil
}

// ParseDate parses value with layout, returning a naive UTC time
func ParseDate(layout, value string) (time.Time, error) {
	t, err := time.Parse(layout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q does not match %q", apperrors.ErrSchemaMismatch, value, layout)
	}
	return t, nil
}

// buildTable turns a header and string rows into typed columns.
// Date columns are parsed strictly; other columns become numeric when every
// cell is a number (or the "-" placeholder), text otherwise.
func buildTable(header []string, rows [][]string, dates map[string]string, dropEmpty bool, index []string) (*table.Table, error) {
	out := &table.Table{}

	for j, name := range header {
		values := make([]string, len(rows))
		hasEmpty := false
		for i, row := range rows {
			if j < len(row) {
				values[i] = row[j]
			}
			if values[i] == "" {
				hasEmpty = true
			}
		}

		if dropEmpty && hasEmpty {
			continue
		}

		col, err := typedColumn(name, values, dates[name])
		if err != nil {
			return nil, err
		}
		if err := out.Add(col); err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrSchemaMismatch, err)
		}
	}

	for name := range dates {
		if _, ok := out.Col(name); !ok {
			return nil, fmt.Errorf("%w: missing date column %q", apperrors.ErrSchemaMismatch, name)
		}
	}

	if len(index) > 0 {
		if err := out.SetIndex(index...); err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrSchemaMismatch, err)
		}
	}

	return out, nil
}

func typedColumn(name string, values []string, layout string) (table.Column, error) {
	if layout != "" {
		dates := make([]time.Time, len(values))
		for i, v := range values {
			d, err := ParseDate(layout, v)
			if err != nil {
				return table.Column{}, fmt.Errorf("column %s row %d: %w", name, i, err)
			}
			dates[i] = d
		}
		return table.DateColumn(name, dates), nil
	}

	if numbers, ok := numericValues(values); ok {
		return table.NumberColumn(name, numbers), nil
	}
	return table.StringColumn(name, values), nil
}

func numericValues(values []string) ([]float64, bool) {
	if len(values) == 0 {
		return nil, false
	}

	numbers := make([]float64, len(values))
	for i, v := range values {
		n, err := Number(v)
		if err != nil {
			return nil, false
		}
		numbers[i] = n
	}
	return numbers, true
}

// uniqueHeader fills blank names and suffixes duplicates (".1", ".2")
func uniqueHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, ok := seen[h]; ok {
			seen[h] = n + 1
			h = fmt.Sprintf("%s.%d", h, n+1)
		} else {
			seen[h] = 0
		}
		out[i] = h
	}
	return out
}
