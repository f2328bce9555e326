// Package table provides the in-memory rectangular table the pipeline works
// on. Cells are read from the input files as text and are progressively
// coerced to typed values; a cell is always one of nil, string, float64 or
// time.Time. Column order is tracked explicitly because the export stage
// depends on it.
package table

import (
	"fmt"
	"strings"
)

// Row is one record keyed by column name.
type Row map[string]any

// Table is an ordered collection of columns plus a batch of rows. Rows may
// omit columns; a missing key reads as nil.
type Table struct {
	cols    []string
	colSet  map[string]struct{}
	rows    []Row
}

// New constructs an empty table with the given column order.
func New(cols ...string) *Table {
	t := &Table{colSet: make(map[string]struct{}, len(cols))}
	for _, c := range cols {
		t.AddCol(c)
	}
	return t
}

// Cols returns a copy of the column order.
func (t *Table) Cols() []string {
	out := make([]string, len(t.cols))
	copy(out, t.cols)
	return out
}

// HasCol reports whether the column exists.
func (t *Table) HasCol(name string) bool {
	_, ok := t.colSet[name]
	return ok
}

// AddCol registers a column at the end of the order if it is not present.
func (t *Table) AddCol(name string) {
	if _, ok := t.colSet[name]; ok {
		return
	}
	t.cols = append(t.cols, name)
	t.colSet[name] = struct{}{}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Rows exposes the underlying row slice. Mutating a row mutates the table.
func (t *Table) Rows() []Row { return t.rows }

// Append adds a row, registering any columns the table has not seen yet.
func (t *Table) Append(r Row) {
	for k := range r {
		t.AddCol(k)
	}
	t.rows = append(t.rows, r)
}

// AppendValues adds a row positionally against the current column order.
// Extra values beyond the column count are dropped; short rows leave the
// remaining columns unset.
func (t *Table) AppendValues(vals ...any) {
	r := make(Row, len(t.cols))
	for i, v := range vals {
		if i >= len(t.cols) {
			break
		}
		r[t.cols[i]] = v
	}
	t.rows = append(t.rows, r)
}

// Rename renames columns per the mapping. Mappings whose source column is
// absent are ignored. Column order is preserved in place.
func (t *Table) Rename(mapping map[string]string) {
	for i, c := range t.cols {
		next, ok := mapping[c]
		if !ok || next == c {
			continue
		}
		t.cols[i] = next
		delete(t.colSet, c)
		t.colSet[next] = struct{}{}
		for _, r := range t.rows {
			if v, ok := r[c]; ok {
				r[next] = v
				delete(r, c)
			}
		}
	}
}

// SetConst writes the same value into the column for every row, creating the
// column when needed.
func (t *Table) SetConst(col string, v any) {
	t.AddCol(col)
	for _, r := range t.rows {
		r[col] = v
	}
}

// Select returns a new table restricted to the listed columns, in list
// order, skipping columns the table does not have. Rows are shared.
func (t *Table) Select(cols []string) *Table {
	out := New()
	for _, c := range cols {
		if t.HasCol(c) {
			out.AddCol(c)
		}
	}
	out.rows = t.rows
	return out
}

// Drop removes a column from the order and from every row.
func (t *Table) Drop(col string) {
	if !t.HasCol(col) {
		return
	}
	delete(t.colSet, col)
	for i, c := range t.cols {
		if c == col {
			t.cols = append(t.cols[:i], t.cols[i+1:]...)
			break
		}
	}
	for _, r := range t.rows {
		delete(r, col)
	}
}

// Filter returns a new table holding the rows for which keep returns true.
// Rows are shared with the receiver; column order is copied.
func (t *Table) Filter(keep func(Row) bool) *Table {
	out := New(t.cols...)
	for _, r := range t.rows {
		if keep(r) {
			out.rows = append(out.rows, r)
		}
	}
	return out
}

// Concat concatenates tables into one, taking the union of their columns in
// first-seen order. Rows are shared, not copied.
func Concat(tables ...*Table) *Table {
	out := New()
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, c := range t.cols {
			out.AddCol(c)
		}
		out.rows = append(out.rows, t.rows...)
	}
	return out
}

// AsString renders a cell for key matching and export. nil renders as "".
func AsString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(v)
	}
}

// IsBlank reports whether a cell is nil or an empty/whitespace-only string.
func IsBlank(v any) bool {
	switch s := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(s) == ""
	default:
		return false
	}
}
