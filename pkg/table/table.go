// Package table holds the tabular result of a query.
package table

// Row maps column names to values.
type Row map[string]any

// Table is an ordered set of rows sharing one column order. A row's index
// is its position in Rows, so appending pages keeps a dense 0-based index.
type Table struct {
	Columns []string
	Rows    []Row
}

// New returns an empty table with the given columns.
func New(columns []string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Append adds the rows of other after the rows of t, preserving order.
func (t *Table) Append(other *Table) {
	if other == nil {
		return
	}
	if len(t.Columns) == 0 {
		t.Columns = append([]string(nil), other.Columns...)
	}
	t.Rows = append(t.Rows, other.Rows...)
}

// Truncate drops rows past n.
func (t *Table) Truncate(n int) {
	if n >= 0 && n < len(t.Rows) {
		t.Rows = t.Rows[:n]
	}
}

// Last returns the final row, or nil when the table is empty.
func (t *Table) Last() Row {
	if t.Len() == 0 {
		return nil
	}
	return t.Rows[len(t.Rows)-1]
}

// Column returns the values of one column in row order.
func (t *Table) Column(name string) []any {
	values := make([]any, len(t.Rows))
	for i, r := range t.Rows {
		values[i] = r[name]
	}
	return values
}

// Concat joins tables in order into a new table.
func Concat(tables ...*Table) *Table {
	out := &Table{}
	for _, t := range tables {
		out.Append(t)
	}
	return out
}
