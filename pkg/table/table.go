// Package table provides the canonical tabular representation every decoder
// produces and every later stage consumes.
//
// A Table is an ordered list of named columns and a list of rows holding one
// Value per column. Tables are immutable: every transformation returns a new
// Table and never touches the receiver's backing slices.
package table

import (
	"fmt"
)

// Value is a single cell. A nil Value is a null.
type Value = any

// Table is the canonical in-memory table.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]Value
}

// New builds a table from column names and rows. Rows shorter than the column
// list are padded with nulls; longer rows and duplicate column names are errors.
// The inputs are copied.
func New(columns []string, rows [][]Value) (*Table, error) {
	index := make(map[string]int, len(columns))
	for i, name := range columns {
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		index[name] = i
	}

	out := make([][]Value, len(rows))
	for r, row := range rows {
		if len(row) > len(columns) {
			return nil, fmt.Errorf("row %d has %d values for %d columns", r, len(row), len(columns))
		}
		cp := make([]Value, len(columns))
		copy(cp, row)
		out[r] = cp
	}

	cols := make([]string, len(columns))
	copy(cols, columns)

	return &Table{columns: cols, index: index, rows: out}, nil
}

// MustNew is New that panics on error. Intended for tests and literals.
func MustNew(columns []string, rows [][]Value) *Table {
	t, err := New(columns, rows)
	if err != nil {
		panic(err)
	}
	return t
}

// Empty returns a table with the given columns and no rows.
func Empty(columns ...string) *Table {
	return MustNew(columns, nil)
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// NumColumns returns the column count.
func (t *Table) NumColumns() int { return len(t.columns) }

// NumRows returns the row count.
func (t *Table) NumRows() int { return len(t.rows) }

// HasColumn reports whether the table has a column called name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// ColumnIndex returns the position of name, or -1.
func (t *Table) ColumnIndex(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// Value returns the cell at row r in column name. Missing columns read as null.
func (t *Table) Value(r int, name string) Value {
	i, ok := t.index[name]
	if !ok {
		return nil
	}
	return t.rows[r][i]
}

// Row returns a copy of row r.
func (t *Table) Row(r int) []Value {
	out := make([]Value, len(t.columns))
	copy(out, t.rows[r])
	return out
}

// Column returns a copy of every value in column name, or nil if absent.
func (t *Table) Column(name string) []Value {
	i, ok := t.index[name]
	if !ok {
		return nil
	}
	out := make([]Value, len(t.rows))
	for r, row := range t.rows {
		out[r] = row[i]
	}
	return out
}

// Each calls fn for every row in order. fn must not retain or modify row.
func (t *Table) Each(fn func(r int, row []Value) error) error {
	for r, row := range t.rows {
		if err := fn(r, row); err != nil {
			return err
		}
	}
	return nil
}

// WithColumn returns a table with column name set to fn(r, row) for every row.
// An existing column keeps its position; a new one is appended.
func (t *Table) WithColumn(name string, fn func(r int, row []Value) Value) *Table {
	pos, exists := t.index[name]
	columns := t.Columns()
	if !exists {
		pos = len(columns)
		columns = append(columns, name)
	}

	rows := make([][]Value, len(t.rows))
	for r, row := range t.rows {
		cp := make([]Value, len(columns))
		copy(cp, row)
		cp[pos] = fn(r, row)
		rows[r] = cp
	}

	return fromParts(columns, rows)
}

// WithConstant returns a table with column name set to v on every row.
func (t *Table) WithConstant(name string, v Value) *Table {
	return t.WithColumn(name, func(int, []Value) Value { return v })
}

// Select returns a table holding exactly the named columns in the given order.
// Names missing from t become all-null columns.
func (t *Table) Select(names []string) (*Table, error) {
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, dup := seen[n]; dup {
			return nil, fmt.Errorf("duplicate column %q", n)
		}
		seen[n] = struct{}{}
	}

	src := make([]int, len(names))
	for i, n := range names {
		src[i] = t.ColumnIndex(n)
	}

	rows := make([][]Value, len(t.rows))
	for r, row := range t.rows {
		cp := make([]Value, len(names))
		for i, j := range src {
			if j >= 0 {
				cp[i] = row[j]
			}
		}
		rows[r] = cp
	}

	cols := make([]string, len(names))
	copy(cols, names)
	return fromParts(cols, rows), nil
}

// MapColumn returns a table where every value in column name is replaced by fn(v).
// Absent columns leave the table unchanged.
func (t *Table) MapColumn(name string, fn func(v Value) Value) *Table {
	i, ok := t.index[name]
	if !ok {
		return t
	}
	return t.WithColumn(name, func(_ int, row []Value) Value { return fn(row[i]) })
}

// Concat stacks tables vertically. The result has the union of all columns in
// first-seen order; cells a table does not carry are null.
func Concat(tables ...*Table) *Table {
	var columns []string
	seen := make(map[string]struct{})
	total := 0
	for _, t := range tables {
		total += len(t.rows)
		for _, c := range t.columns {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				columns = append(columns, c)
			}
		}
	}

	rows := make([][]Value, 0, total)
	for _, t := range tables {
		for _, row := range t.rows {
			cp := make([]Value, len(columns))
			for i, c := range columns {
				if j, ok := t.index[c]; ok {
					cp[i] = row[j]
				}
			}
			rows = append(rows, cp)
		}
	}

	return fromParts(columns, rows)
}

// Equal reports whether a and b have the same columns, in order, and equal cells.
// Cells are compared with ==, so only comparable scalar values compare equal.
func Equal(a, b *Table) bool {
	if len(a.columns) != len(b.columns) || len(a.rows) != len(b.rows) {
		return false
	}
	for i := range a.columns {
		if a.columns[i] != b.columns[i] {
			return false
		}
	}
	for r := range a.rows {
		for c := range a.rows[r] {
			if !cellEqual(a.rows[r][c], b.rows[r][c]) {
				return false
			}
		}
	}
	return true
}

func cellEqual(x, y Value) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return x == y
}

// fromParts wraps slices the caller no longer shares.
func fromParts(columns []string, rows [][]Value) *Table {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c] = i
	}
	return &Table{columns: columns, index: index, rows: rows}
}
