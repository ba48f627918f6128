package types

import "fmt"

// ColumnSource is the shape a producer of column data must expose. It is
// how dataframe-like collaborators hand columns to the writer without the
// engine depending on their in-memory representation.
//
// Value returns the native Go value of row i, using the same types as
// Column.Value. For CategoryType sources Value returns the level string and
// the source must also implement CategorySource.
type ColumnSource interface {
	Type() DataType
	Len() int
	IsNull(i int) bool
	Value(i int) any
}

// CategorySource is implemented by category column sources.
type CategorySource interface {
	ColumnSource
	Levels() (levels []string, ordered bool)
}

// TimestampSource is optionally implemented by timestamp column sources.
// Sources that do not implement it are treated as nanoseconds in UTC.
type TimestampSource interface {
	ColumnSource
	TimeUnit() TimeUnit
	Timezone() string
}

var (
	_ CategorySource  = (*Column)(nil)
	_ TimestampSource = (*Column)(nil)
)

// FromSource materializes src into a Column. A *Column is returned as is.
func FromSource(src ColumnSource) (*Column, error) {
	if col, ok := src.(*Column); ok {
		return col, nil
	}

	var b *Builder
	switch typ := src.Type(); typ {
	case CategoryType:
		cs, ok := src.(CategorySource)
		if !ok {
			return nil, fmt.Errorf("category source %T does not expose levels", src)
		}
		levels, ordered := cs.Levels()
		b = NewCategoryBuilder(levels, ordered, false)
	case TimestampType:
		unit, tz := Nanosecond, ""
		if ts, ok := src.(TimestampSource); ok {
			unit, tz = ts.TimeUnit(), ts.Timezone()
		}
		b = NewTimestampBuilder(unit, tz)
	default:
		if !typ.Valid() {
			return nil, fmt.Errorf("unsupported data type %d", int(typ))
		}
		b = NewBuilder(typ)
	}

	for i := 0; i < src.Len(); i++ {
		if src.IsNull(i) {
			b.AppendNull()
			continue
		}
		if err := b.AppendValue(src.Value(i)); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return b.Finish(), nil
}
