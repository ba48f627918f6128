package types

// NamedColumn is one column of a Table.
type NamedColumn struct {
	Name   string
	Column *Column
}

// A Table is an ordered sequence of named columns sharing one row count.
type Table struct {
	Columns     []NamedColumn
	Description string
}

func NewTable() *Table { return &Table{} }

// Add appends a column to t and returns t.
func (t *Table) Add(name string, col *Column) *Table {
	t.Columns = append(t.Columns, NamedColumn{Name: name, Column: col})
	return t
}

// NumRows returns the row count of the first column, or 0 for an empty
// table.
func (t *Table) NumRows() int {
	if len(t.Columns) == 0 || t.Columns[0].Column == nil {
		return 0
	}
	return t.Columns[0].Column.Len()
}

func (t *Table) NumColumns() int { return len(t.Columns) }

func (t *Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the first column called name.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c.Column, true
		}
	}
	return nil, false
}
