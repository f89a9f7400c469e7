package dataset

import (
	"fmt"
	"strings"
)

// Value is one cell of a table. The zero value is a missing cell.
type Value struct {
	Label string
	Valid bool
}

// String returns a categorical cell value.
func String(label string) Value {
	return Value{Label: label, Valid: true}
}

// Missing is the absent-cell sentinel.
var Missing = Value{}

// missingTokens are the placeholder spellings recognized on load,
// compared case-insensitively.
var missingTokens = map[string]struct{}{
	"":     {},
	"na":   {},
	"n/a":  {},
	"nan":  {},
	"null": {},
}

// parseCell turns a raw file cell into a Value, mapping recognized
// missing-value placeholders to the missing sentinel.
func parseCell(raw string) Value {
	trimmed := strings.TrimSpace(raw)
	if _, missing := missingTokens[strings.ToLower(trimmed)]; missing {
		return Missing
	}
	return String(trimmed)
}

// Table is a column-oriented view over survey records. Column order is
// preserved from the source file. Tables are treated as immutable once
// built: transformations return new tables.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]Value
}

// NewTable creates an empty table with the given column layout.
func NewTable(columns []string) (*Table, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("table needs at least one column")
	}
	index := make(map[string]int, len(columns))
	for i, col := range columns {
		name := strings.TrimSpace(col)
		if name == "" {
			return nil, fmt.Errorf("column %d has an empty name", i)
		}
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		index[name] = i
	}
	normalized := make([]string, len(columns))
	for i, col := range columns {
		normalized[i] = strings.TrimSpace(col)
	}
	return &Table{columns: normalized, index: index}, nil
}

// AppendRow adds a record. The cell count must match the column count.
func (t *Table) AppendRow(cells []Value) error {
	if len(cells) != len(t.columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(cells), len(t.columns))
	}
	row := make([]Value, len(cells))
	copy(row, cells)
	t.rows = append(t.rows, row)
	return nil
}

// Columns returns the column names in file order.
func (t *Table) Columns() []string {
	cols := make([]string, len(t.columns))
	copy(cols, t.columns)
	return cols
}

// HasColumn reports whether the table contains the named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// ColumnIndex returns the position of the named column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// RowCount returns the number of records.
func (t *Table) RowCount() int {
	return len(t.rows)
}

// ColumnCount returns the number of columns.
func (t *Table) ColumnCount() int {
	return len(t.columns)
}

// At returns the cell at a row and column position. Callers obtain column
// positions from ColumnIndex; both indexes must be in range.
func (t *Table) At(row, col int) Value {
	return t.rows[row][col]
}

// Cell returns the cell at a row for a named column.
func (t *Table) Cell(row int, column string) (Value, error) {
	col, ok := t.index[column]
	if !ok {
		return Missing, NewColumnNotFoundError(column, t.columns)
	}
	if row < 0 || row >= len(t.rows) {
		return Missing, fmt.Errorf("row %d out of range (0..%d)", row, len(t.rows)-1)
	}
	return t.rows[row][col], nil
}

// DistinctValues returns the distinct valid labels observed in a column,
// in first-encountered row order. Missing cells do not contribute.
func (t *Table) DistinctValues(column string) ([]string, error) {
	col, ok := t.index[column]
	if !ok {
		return nil, NewColumnNotFoundError(column, t.columns)
	}

	seen := make(map[string]struct{})
	var values []string
	for _, row := range t.rows {
		cell := row[col]
		if !cell.Valid {
			continue
		}
		if _, dup := seen[cell.Label]; dup {
			continue
		}
		seen[cell.Label] = struct{}{}
		values = append(values, cell.Label)
	}
	return values, nil
}

// Cardinality returns the number of distinct valid labels in a column.
func (t *Table) Cardinality(column string) (int, error) {
	values, err := t.DistinctValues(column)
	if err != nil {
		return 0, err
	}
	return len(values), nil
}

// emptyLike creates a table with the same column layout and no rows.
func (t *Table) emptyLike() *Table {
	index := make(map[string]int, len(t.columns))
	for name, i := range t.index {
		index[name] = i
	}
	cols := make([]string, len(t.columns))
	copy(cols, t.columns)
	return &Table{columns: cols, index: index}
}
