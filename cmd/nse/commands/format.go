package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/wonny/nsefeed/internal/table"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// Every command renders its result through these helpers
// ═══════════════════════════════════════════════════════════

// OutputFormat selects how results are written to stdout
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatCSV   OutputFormat = "csv"
)

// ParseFormat validates the --output flag
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatCSV:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (table|json|csv)", s)
}

// WriteTable renders t in the given format
func WriteTable(w io.Writer, t *table.Table, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, t.Frame())
	case FormatCSV:
		return writeCSV(w, t)
	default:
		writeText(w, t)
		return nil
	}
}

// WriteValue renders a non-tabular result. Maps print as aligned key/value
// lines in table format; everything else is JSON.
func WriteValue(w io.Writer, v any, format OutputFormat) error {
	m, ok := v.(map[string]any)
	if format != FormatTable || !ok {
		return writeJSON(w, v)
	}

	keys := make([]string, 0, len(m))
	keyWidth := 0
	for k := range m {
		keys = append(keys, k)
		keyWidth = max(keyWidth, utf8.RuneCountInString(k))
	}
	sort.Strings(keys)

	for _, k := range keys {
		PrintKeyValue(w, k, renderValue(m[k]), keyWidth)
	}
	return nil
}

func renderValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeCSV(w io.Writer, t *table.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.ColumnNames()); err != nil {
		return err
	}
	for i := 0; i < t.Len(); i++ {
		if err := cw.Write(rowStrings(t, i)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeText(w io.Writer, t *table.Table) {
	columns := t.ColumnNames()
	widths := make([]int, len(columns))
	for j, name := range columns {
		widths[j] = utf8.RuneCountInString(name)
	}

	rows := make([][]string, t.Len())
	for i := range rows {
		rows[i] = rowStrings(t, i)
		for j, v := range rows[i] {
			widths[j] = max(widths[j], utf8.RuneCountInString(v))
		}
	}

	PrintTableHeader(w, columns, widths)
	for _, row := range rows {
		PrintTableRow(w, row, widths)
	}
}

func rowStrings(t *table.Table, i int) []string {
	row := make([]string, len(t.Columns))
	for j := range t.Columns {
		row[j] = t.Columns[j].StringAt(i)
	}
	return row
}

// PrintTableHeader prints a table header and its separator line
func PrintTableHeader(w io.Writer, columns []string, widths []int) {
	PrintTableRow(w, columns, widths)

	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Fprintln(w, strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row; the last cell is not padded
func PrintTableRow(w io.Writer, values []string, widths []int) {
	for i, val := range values {
		if i < len(values)-1 {
			fmt.Fprintf(w, "%-*s  ", widths[i], val)
		} else {
			fmt.Fprint(w, val)
		}
	}
	fmt.Fprintln(w)
}

// PrintKeyValue prints one aligned key-value pair
func PrintKeyValue(w io.Writer, key string, value string, keyWidth int) {
	fmt.Fprintf(w, "   %-*s : %s\n", keyWidth, key, value)
}

// PrintList prints a bulleted list
func PrintList(w io.Writer, items []string) {
	for _, item := range items {
		fmt.Fprintf(w, "   • %s\n", item)
	}
}

// PrintSuccess prints a success message
func PrintSuccess(w io.Writer, message string) {
	fmt.Fprintf(w, "✅ %s\n", message)
}

// PrintWarning prints a warning message
func PrintWarning(w io.Writer, message string) {
	fmt.Fprintf(w, "⚠️  %s\n", message)
}

// PrintInfo prints an info message
func PrintInfo(w io.Writer, message string) {
	fmt.Fprintf(w, "ℹ️  %s\n", message)
}

// PrintSeparator prints a visual separator
func PrintSeparator(w io.Writer) {
	fmt.Fprintln(w, "───────────────────────────────────────────────────────────")
}
