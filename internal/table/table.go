// Package table is the normalized, typed, column-oriented result every parser produces.
//
// Dates are civil dates or naive timestamps stored as UTC. A table carries the
// names of its index columns; the index columns stay regular columns.
package table

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Kind is the type of a column
type Kind string

const (
	KindString Kind = "string"
	KindNumber Kind = "number"
	KindDate   Kind = "date"
)

// Column is one typed column. Exactly one of the value slices is used, by Kind.
type Column struct {
	Name    string      `json:"name"`
	Kind    Kind        `json:"kind"`
	Strings []string    `json:"strings,omitempty"`
	Numbers []float64   `json:"numbers,omitempty"`
	Dates   []time.Time `json:"dates,omitempty"`
}

// Len returns the number of values in the column
func (c *Column) Len() int {
	switch c.Kind {
	case KindNumber:
		return len(c.Numbers)
	case KindDate:
		return len(c.Dates)
	default:
		return len(c.Strings)
	}
}

// Value returns the i-th value as string, float64 or time.Time
func (c *Column) Value(i int) any {
	switch c.Kind {
	case KindNumber:
		return c.Numbers[i]
	case KindDate:
		return c.Dates[i]
	default:
		return c.Strings[i]
	}
}

// StringAt renders the i-th value as text
func (c *Column) StringAt(i int) string {
	switch c.Kind {
	case KindNumber:
		return strconv.FormatFloat(c.Numbers[i], 'f', -1, 64)
	case KindDate:
		t := c.Dates[i]
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
			return t.Format("2006-01-02")
		}
		return t.Format("2006-01-02 15:04:05")
	default:
		return c.Strings[i]
	}
}

func (c *Column) take(rows []int) Column {
	out := Column{Name: c.Name, Kind: c.Kind}
	switch c.Kind {
	case KindNumber:
		out.Numbers = make([]float64, len(rows))
		for i, r := range rows {
			out.Numbers[i] = c.Numbers[r]
		}
	case KindDate:
		out.Dates = make([]time.Time, len(rows))
		for i, r := range rows {
			out.Dates[i] = c.Dates[r]
		}
	default:
		out.Strings = make([]string, len(rows))
		for i, r := range rows {
			out.Strings[i] = c.Strings[r]
		}
	}
	return out
}

func (c *Column) less(a, b int) bool {
	switch c.Kind {
	case KindNumber:
		return c.Numbers[a] < c.Numbers[b]
	case KindDate:
		return c.Dates[a].Before(c.Dates[b])
	default:
		return c.Strings[a] < c.Strings[b]
	}
}

// StringColumn builds a string column
func StringColumn(name string, values []string) Column {
	return Column{Name: name, Kind: KindString, Strings: values}
}

// NumberColumn builds a numeric column
func NumberColumn(name string, values []float64) Column {
	return Column{Name: name, Kind: KindNumber, Numbers: values}
}

// DateColumn builds a date column
func DateColumn(name string, values []time.Time) Column {
	return Column{Name: name, Kind: KindDate, Dates: values}
}

// Table is an ordered set of equal-length columns
type Table struct {
	Index   []string `json:"index,omitempty"`
	Columns []Column `json:"columns"`
}

// New builds a table, checking that all columns have the same length and unique names
func New(columns ...Column) (*Table, error) {
	t := &Table{}
	for _, c := range columns {
		if err := t.Add(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Add appends a column
func (t *Table) Add(c Column) error {
	if _, ok := t.Col(c.Name); ok {
		return fmt.Errorf("duplicate column %q", c.Name)
	}
	if len(t.Columns) > 0 && c.Len() != t.Len() {
		return fmt.Errorf("column %q has %d rows, table has %d", c.Name, c.Len(), t.Len())
	}
	t.Columns = append(t.Columns, c)
	return nil
}

// Len returns the row count
func (t *Table) Len() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return t.Columns[0].Len()
}

// ColumnNames returns the names in column order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Col looks up a column by name
func (t *Table) Col(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy
func (t *Table) Clone() *Table {
	return t.take(allRows(t.Len()))
}

// Drop removes the named columns; names that are not present are ignored
func (t *Table) Drop(names ...string) *Table {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}

	out := &Table{}
	for _, c := range t.Columns {
		if !skip[c.Name] {
			out.Columns = append(out.Columns, c)
		}
	}
	for _, n := range t.Index {
		if !skip[n] {
			out.Index = append(out.Index, n)
		}
	}
	return out.Clone()
}

// Select keeps only the named columns, in the given order
func (t *Table) Select(names ...string) (*Table, error) {
	out := &Table{}
	for _, n := range names {
		c, ok := t.Col(n)
		if !ok {
			return nil, fmt.Errorf("missing column %q", n)
		}
		out.Columns = append(out.Columns, *c)
	}
	for _, n := range t.Index {
		if _, ok := out.Col(n); ok {
			out.Index = append(out.Index, n)
		}
	}
	return out.Clone(), nil
}

// Rename renames columns (and index entries) present in the mapping
func (t *Table) Rename(mapping map[string]string) *Table {
	out := t.Clone()
	for i := range out.Columns {
		if to, ok := mapping[out.Columns[i].Name]; ok {
			out.Columns[i].Name = to
		}
	}
	for i, n := range out.Index {
		if to, ok := mapping[n]; ok {
			out.Index[i] = to
		}
	}
	return out
}

// SetIndex marks the named columns as the index
func (t *Table) SetIndex(names ...string) error {
	for _, n := range names {
		if _, ok := t.Col(n); !ok {
			return fmt.Errorf("missing index column %q", n)
		}
	}
	t.Index = append([]string(nil), names...)
	return nil
}

// Filter keeps the rows for which keep returns true
func (t *Table) Filter(keep func(row int) bool) *Table {
	rows := make([]int, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		if keep(i) {
			rows = append(rows, i)
		}
	}
	return t.take(rows)
}

// SortBy sorts rows by a column, stable, ascending unless descending is set
func (t *Table) SortBy(name string, descending bool) (*Table, error) {
	c, ok := t.Col(name)
	if !ok {
		return nil, fmt.Errorf("missing sort column %q", name)
	}

	rows := allRows(t.Len())
	sort.SliceStable(rows, func(i, j int) bool {
		if descending {
			return c.less(rows[j], rows[i])
		}
		return c.less(rows[i], rows[j])
	})
	return t.take(rows), nil
}

// Head keeps the first n rows
func (t *Table) Head(n int) *Table {
	if n < 0 || n > t.Len() {
		n = t.Len()
	}
	return t.take(allRows(n))
}

// Reverse flips row order
func (t *Table) Reverse() *Table {
	n := t.Len()
	rows := make([]int, n)
	for i := range rows {
		rows[i] = n - 1 - i
	}
	return t.take(rows)
}

// DedupeBy keeps the first row for each distinct value of the column
func (t *Table) DedupeBy(name string) (*Table, error) {
	c, ok := t.Col(name)
	if !ok {
		return nil, fmt.Errorf("missing column %q", name)
	}

	seen := make(map[string]bool, t.Len())
	return t.Filter(func(row int) bool {
		key := c.StringAt(row)
		if seen[key] {
			return false
		}
		seen[key] = true
		return true
	}), nil
}

// Concat appends the rows of others; every table must have the same columns and kinds
func Concat(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return &Table{}, nil
	}

	out := tables[0].Clone()
	for _, next := range tables[1:] {
		if len(next.Columns) != len(out.Columns) {
			return nil, fmt.Errorf("concat: %d columns vs %d", len(next.Columns), len(out.Columns))
		}
		for i := range out.Columns {
			dst := &out.Columns[i]
			src, ok := next.Col(dst.Name)
			if !ok || src.Kind != dst.Kind {
				return nil, fmt.Errorf("concat: column %q missing or of another kind", dst.Name)
			}
			dst.Strings = append(dst.Strings, src.Strings...)
			dst.Numbers = append(dst.Numbers, src.Numbers...)
			dst.Dates = append(dst.Dates, src.Dates...)
		}
	}
	return out, nil
}

// Lookup finds the first row whose index columns render to keys
func (t *Table) Lookup(keys ...string) (int, bool) {
	if len(keys) != len(t.Index) {
		return -1, false
	}

	cols := make([]*Column, len(t.Index))
	for i, n := range t.Index {
		c, ok := t.Col(n)
		if !ok {
			return -1, false
		}
		cols[i] = c
	}

	for row := 0; row < t.Len(); row++ {
		match := true
		for i, c := range cols {
			if c.StringAt(row) != keys[i] {
				match = false
				break
			}
		}
		if match {
			return row, true
		}
	}
	return -1, false
}

// Row returns one row keyed by column name
func (t *Table) Row(i int) map[string]any {
	row := make(map[string]any, len(t.Columns))
	for _, c := range t.Columns {
		row[c.Name] = c.Value(i)
	}
	return row
}

// Records returns every row keyed by column name
func (t *Table) Records() []map[string]any {
	out := make([]map[string]any, t.Len())
	for i := range out {
		out[i] = t.Row(i)
	}
	return out
}

// Frame is the row-oriented rendering used by the API and the CLI
type Frame struct {
	Index   []string `json:"index,omitempty"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Frame renders the table row by row
func (t *Table) Frame() Frame {
	f := Frame{
		Index:   t.Index,
		Columns: t.ColumnNames(),
		Rows:    make([][]any, t.Len()),
	}
	for i := range f.Rows {
		row := make([]any, len(t.Columns))
		for j := range t.Columns {
			row[j] = t.Columns[j].Value(i)
		}
		f.Rows[i] = row
	}
	return f
}

func (t *Table) take(rows []int) *Table {
	out := &Table{Index: append([]string(nil), t.Index...)}
	out.Columns = make([]Column, len(t.Columns))
	for i := range t.Columns {
		out.Columns[i] = t.Columns[i].take(rows)
	}
	return out
}

func allRows(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}
