// Package table provides the in-memory tabular dataset shared by the loader,
// extraction, persistence and ingestion layers.
package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Table is a column-named, row-major dataset. Cell values are nil (missing),
// string, float64, int64, bool or time.Time.
type Table struct {
	Columns []string
	Rows    [][]any
}

// New returns an empty table with the given columns.
func New(columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Has reports whether the table carries the named column.
func (t *Table) Has(name string) bool {
	return t.Index(name) >= 0
}

// Value returns the cell at row i for the named column. Absent columns and
// short rows read as missing.
func (t *Table) Value(i int, name string) any {
	j := t.Index(name)
	if j < 0 || i < 0 || i >= len(t.Rows) || j >= len(t.Rows[i]) {
		return nil
	}
	return t.Rows[i][j]
}

// Append adds a row, padding or truncating it to the column count.
func (t *Table) Append(row []any) {
	r := make([]any, len(t.Columns))
	copy(r, row)
	t.Rows = append(t.Rows, r)
}

// AddColumn appends an all-missing column. It is a no-op when the column
// already exists.
func (t *Table) AddColumn(name string) {
	if t.Has(name) {
		return
	}
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], nil)
	}
}

// Rename renames columns in place according to the old->new mapping.
func (t *Table) Rename(mapping map[string]string) {
	for i, c := range t.Columns {
		if n, ok := mapping[c]; ok {
			t.Columns[i] = n
		}
	}
}

// Select returns a new table holding only the named columns, in order.
// Columns absent from t are created all-missing.
func (t *Table) Select(columns ...string) *Table {
	out := New(columns...)
	idx := make([]int, len(columns))
	for k, c := range columns {
		idx[k] = t.Index(c)
	}
	out.Rows = make([][]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		r := make([]any, len(columns))
		for k, j := range idx {
			if j >= 0 && j < len(row) {
				r[k] = row[j]
			}
		}
		out.Rows = append(out.Rows, r)
	}
	return out
}

// Row is a read-only view of one table row.
type Row struct {
	t *Table
	i int
}

// At returns a view of row i.
func (t *Table) At(i int) Row {
	return Row{t: t, i: i}
}

// Index returns the row position within its table.
func (r Row) Index() int { return r.i }

// Value returns the named cell.
func (r Row) Value(name string) any { return r.t.Value(r.i, name) }

// String returns the named cell formatted as a trimmed string.
func (r Row) String(name string) string { return AsString(r.Value(name)) }

// Missing reports whether the named cell is missing.
func (r Row) Missing(name string) bool { return IsMissing(r.Value(name)) }

// Filter returns a new table with the rows for which keep returns true.
// The rows are shared with t, not copied.
func (t *Table) Filter(keep func(Row) bool) *Table {
	out := New(t.Columns...)
	for i, row := range t.Rows {
		if keep(Row{t: t, i: i}) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// Clone deep-copies the row slices (cell values are immutable scalars).
func (t *Table) Clone() *Table {
	out := New(t.Columns...)
	out.Rows = make([][]any, len(t.Rows))
	for i, row := range t.Rows {
		r := make([]any, len(row))
		copy(r, row)
		out.Rows[i] = r
	}
	return out
}

// Concat unions the columns of all tables (first-seen order) and stacks
// their rows in argument order.
func Concat(tables ...*Table) *Table {
	var cols []string
	seen := make(map[string]bool)
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, c := range t.Columns {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	out := New(cols...)
	for _, t := range tables {
		if t == nil {
			continue
		}
		sel := t.Select(cols...)
		out.Rows = append(out.Rows, sel.Rows...)
	}
	return out
}

// NormalizeColumns strips surrounding whitespace and a leading byte-order
// mark from every column name. Empty names become "column_<n>".
func (t *Table) NormalizeColumns() {
	for i, c := range t.Columns {
		c = strings.TrimPrefix(c, "\ufeff")
		c = strings.TrimSpace(c)
		if c == "" {
			c = fmt.Sprintf("column_%d", i+1)
		}
		t.Columns[i] = c
	}
}

// missingTokens are string spellings exports use for an empty cell.
var missingTokens = map[string]bool{
	"":     true,
	"nan":  true,
	"nat":  true,
	"null": true,
	"none": true,
	"n/a":  true,
	"#n/a": true,
}

// IsMissing reports whether v is a missing cell value.
func IsMissing(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return missingTokens[strings.ToLower(strings.TrimSpace(x))]
	case float64:
		return math.IsNaN(x)
	case time.Time:
		return x.IsZero()
	}
	return false
}

// AsString formats a cell as a trimmed string. Missing cells yield "".
func AsString(v any) string {
	if IsMissing(v) {
		return ""
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format("2006-01-02")
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// AsFloat coerces a cell to float64. The bool result is false for missing
// or unparseable cells.
func AsFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsNaN(x)
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case string:
		if IsMissing(x) {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// MissingCount returns the number of missing cells in the table.
func (t *Table) MissingCount() int {
	n := 0
	for _, row := range t.Rows {
		for j := range t.Columns {
			if j >= len(row) || IsMissing(row[j]) {
				n++
			}
		}
	}
	return n
}
