package parser

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/nsefeed/internal/table"
	"github.com/wonny/nsefeed/pkg/apperrors"
)

// DecodeJSON decodes a payload into maps, slices and scalars
func DecodeJSON(body []byte) (any, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: invalid json: %v", apperrors.ErrSchemaMismatch, err)
	}
	return doc, nil
}

// Lookup walks a dotted path ("records.data") through nested objects
func Lookup(doc any, path string) (any, error) {
	if path == "" {
		return doc, nil
	}

	node := doc
	walked := make([]string, 0, 4)
	for _, key := range strings.Split(path, ".") {
		walked = append(walked, key)
		obj, ok := node.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not an object", apperrors.ErrSchemaMismatch, strings.Join(walked[:len(walked)-1], "."))
		}
		next, ok := obj[key]
		if !ok {
			return nil, fmt.Errorf("%w: key %s missing", apperrors.ErrSchemaMismatch, strings.Join(walked, "."))
		}
		node = next
	}
	return node, nil
}

// LookupMap is Lookup asserting an object
func LookupMap(doc any, path string) (map[string]any, error) {
	v, err := Lookup(doc, path)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an object", apperrors.ErrSchemaMismatch, path)
	}
	return m, nil
}

// LookupString is Lookup asserting a string
func LookupString(doc any, path string) (string, error) {
	v, err := Lookup(doc, path)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is not a string", apperrors.ErrSchemaMismatch, path)
	}
	return s, nil
}

// LookupRecords is Lookup asserting a list of objects
func LookupRecords(doc any, path string) ([]map[string]any, error) {
	v, err := Lookup(doc, path)
	if err != nil {
		return nil, err
	}
	return Records(v)
}

// Records asserts v is a list of objects
func Records(v any) ([]map[string]any, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a list, got %T", apperrors.ErrSchemaMismatch, v)
	}

	out := make([]map[string]any, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: list item %d is %T", apperrors.ErrSchemaMismatch, i, item)
		}
		out[i] = m
	}
	return out, nil
}

// JSONOptions shapes a record list into a table
type JSONOptions struct {
	Drop  []string          // columns (and their nested columns) removed after flattening, missing ones ignored
	Dates map[string]string // column -> layout
	Index []string
}

// RecordsTable flattens records (nested objects become "parent.child" columns)
// and builds a typed table. Column order follows first appearance.
func RecordsTable(records []map[string]any, opts JSONOptions) (*table.Table, error) {
	flat := make([]map[string]any, len(records))
	var order []string
	seen := map[string]bool{}

	for i, rec := range records {
		row := map[string]any{}
		flatten("", rec, row)
		flat[i] = row

		keys := make([]string, 0, len(row))
		for k := range row {
			if !seen[k] {
				keys = append(keys, k)
			}
		}
		// map iteration order is random; new keys of one record are added sorted
		sort.Strings(keys)
		for _, k := range keys {
			seen[k] = true
			order = append(order, k)
		}
	}

	drop := make(map[string]bool, len(opts.Drop))
	for _, d := range opts.Drop {
		drop[d] = true
	}

	out := &table.Table{}
	for _, name := range order {
		if dropped(name, drop) {
			continue
		}
		col, err := jsonColumn(name, flat, opts.Dates[name])
		if err != nil {
			return nil, err
		}
		if err := out.Add(col); err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrSchemaMismatch, err)
		}
	}

	if len(records) > 0 {
		for name := range opts.Dates {
			if _, ok := out.Col(name); !ok {
				return nil, fmt.Errorf("%w: missing date column %q", apperrors.ErrSchemaMismatch, name)
			}
		}
		if len(opts.Index) > 0 {
			if err := out.SetIndex(opts.Index...); err != nil {
				return nil, fmt.Errorf("%w: %v", apperrors.ErrSchemaMismatch, err)
			}
		}
	}

	return out, nil
}

// dropped matches name or any parent object of name
func dropped(name string, drop map[string]bool) bool {
	if drop[name] {
		return true
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '.' && drop[name[:i]] {
			return true
		}
	}
	return false
}

func flatten(prefix string, obj map[string]any, out map[string]any) {
	for k, v := range obj {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok && len(nested) > 0 {
			flatten(key, nested, out)
			continue
		}
		out[key] = v
	}
}

func jsonColumn(name string, rows []map[string]any, layout string) (table.Column, error) {
	if layout != "" {
		dates := make([]time.Time, len(rows))
		for i, row := range rows {
			s, _ := row[name].(string)
			d, err := ParseDate(layout, s)
			if err != nil {
				return table.Column{}, fmt.Errorf("column %s row %d: %w", name, i, err)
			}
			dates[i] = d
		}
		return table.DateColumn(name, dates), nil
	}

	numbers := make([]float64, len(rows))
	numeric := len(rows) > 0
	for i, row := range rows {
		f, ok := row[name].(float64)
		if !ok {
			numeric = false
			break
		}
		numbers[i] = f
	}
	if numeric {
		return table.NumberColumn(name, numbers), nil
	}

	values := make([]string, len(rows))
	for i, row := range rows {
		values[i] = Text(row[name])
	}
	return table.StringColumn(name, values), nil
}

// Text renders a decoded JSON scalar; lists and objects are re-encoded
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

// Float reads a numeric field that may be encoded as a number or an exchange-formatted string
func Float(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case string:
		n, err := Number(x)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", apperrors.ErrSchemaMismatch, x)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %T is not a number", apperrors.ErrSchemaMismatch, v)
	}
}
