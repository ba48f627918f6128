package schema

import (
	"errors"
	"fmt"

	"github.com/ivan-cunha/feather-format/pkg/types"
)

var ErrColumnNotFound = errors.New("column not found")

// ColumnError reports a problem with one column of a schema or table.
type ColumnError struct {
	Column string
	Err    error
}

func (e *ColumnError) Error() string {
	if e.Column == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("column %q: %v", e.Column, e.Err)
}

func (e *ColumnError) Unwrap() error { return e.Err }

// ColumnSchema is the logical description of one column.
type ColumnSchema struct {
	Name     string         `json:"name"`
	Type     types.DataType `json:"type"`
	Nullable bool           `json:"nullable"`

	// Category columns only.
	Ordered bool `json:"ordered,omitempty"`

	// Timestamp columns only.
	Unit     types.TimeUnit `json:"unit,omitempty"`
	Timezone string         `json:"timezone,omitempty"`
}

type FileSchema struct {
	Version     uint16         `json:"version"`
	Columns     []ColumnSchema `json:"columns"`
	Description string         `json:"description,omitempty"`
}

func New() *FileSchema {
	return &FileSchema{
		Version: 1,
		Columns: make([]ColumnSchema, 0),
	}
}

func (s *FileSchema) AddColumn(col ColumnSchema) error {
	if col.Name == "" {
		return &ColumnError{Err: fmt.Errorf("column %d has an empty name", len(s.Columns))}
	}
	for _, c := range s.Columns {
		if c.Name == col.Name {
			return &ColumnError{Column: col.Name, Err: errors.New("column name already exists")}
		}
	}
	if !col.Type.Valid() {
		return &ColumnError{Column: col.Name, Err: fmt.Errorf("unsupported data type %d", int(col.Type))}
	}

	s.Columns = append(s.Columns, col)
	return nil
}

// GetColumn returns the column called name and its position.
func (s *FileSchema) GetColumn(name string) (*ColumnSchema, int, error) {
	for i := range s.Columns {
		if s.Columns[i].Name == name {
			return &s.Columns[i], i, nil
		}
	}
	return nil, -1, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
}

func (s *FileSchema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

func (s *FileSchema) Validate() error {
	if len(s.Columns) == 0 {
		return errors.New("schema must have at least one column")
	}

	names := make(map[string]bool)
	for _, col := range s.Columns {
		if names[col.Name] {
			return &ColumnError{Column: col.Name, Err: errors.New("duplicate column name")}
		}
		names[col.Name] = true

		if !col.Type.Valid() {
			return &ColumnError{Column: col.Name, Err: fmt.Errorf("unsupported data type %d", int(col.Type))}
		}
		if col.Ordered && col.Type != types.CategoryType {
			return &ColumnError{Column: col.Name, Err: fmt.Errorf("ordered flag set on %s column", col.Type)}
		}
	}

	return nil
}

// FromTable derives the schema of t and checks the table invariants: unique
// non-empty names, one shared row count and internally consistent columns.
func FromTable(t *types.Table) (*FileSchema, error) {
	fs := New()
	fs.Description = t.Description

	rows := t.NumRows()
	for _, nc := range t.Columns {
		col := nc.Column
		if col == nil {
			return nil, &ColumnError{Column: nc.Name, Err: errors.New("column is nil")}
		}

		cs := ColumnSchema{
			Name:     nc.Name,
			Type:     col.Type(),
			Nullable: col.NullCount() > 0,
		}
		if err := fs.AddColumn(cs); err != nil {
			return nil, err
		}
		if col.Len() != rows {
			return nil, &ColumnError{Column: nc.Name, Err: fmt.Errorf("has %d rows, expected %d", col.Len(), rows)}
		}
		if err := col.Validate(); err != nil {
			return nil, &ColumnError{Column: nc.Name, Err: err}
		}

		last := &fs.Columns[len(fs.Columns)-1]
		switch col.Type() {
		case types.CategoryType:
			last.Ordered = col.Dictionary().Ordered
		case types.TimestampType:
			last.Unit = col.TimeUnit()
			last.Timezone = col.Timezone()
		}
	}

	if err := fs.Validate(); err != nil {
		return nil, err
	}
	return fs, nil
}
