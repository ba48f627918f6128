package csvconv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/ivan-cunha/feather-format/pkg/types"
)

// Options configures Convert.
type Options struct {
	// SampleSize is the number of rows inspected to infer column types.
	// Zero uses DefaultSampleSize.
	SampleSize int

	// CategoricalThreshold turns a text column into a Category column when
	// its number of distinct values is at most this fraction of its non-null
	// values. Zero disables categorical detection.
	CategoricalThreshold float64

	// TimestampUnit is the unit timestamps are stored in.
	TimestampUnit types.TimeUnit

	Description string

	Logger log.Logger
}

type ConversionError struct {
	ColumnIndex int
	ColumnName  string
	Value       string
	TargetType  types.DataType
	Row         int
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("conversion error at row %d, column '%s' (index %d): value '%s' cannot be converted to %s",
		e.Row, e.ColumnName, e.ColumnIndex, e.Value, e.TargetType)
}

// Result is the outcome of a conversion.
type Result struct {
	Table *types.Table

	// Columns holds the final type of every column.
	Columns []ColumnSpec

	// Fallbacks lists the first value of every column that did not match the
	// type inferred from the sample. Such columns are stored as text.
	Fallbacks []*ConversionError
}

// Convert reads a CSV document with a header row into a table. Column types
// are inferred from a sample of rows; a column holding a value that does not
// fit its inferred type falls back to text.
func Convert(r io.Reader, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}

	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading rows: %w", err)
	}
	for i, row := range rows {
		if len(row) > len(headers) {
			return nil, fmt.Errorf("row %d has %d fields, header has %d", i+1, len(row), len(headers))
		}
	}

	specs := InferColumns(headers, rows, opts.SampleSize)
	res := &Result{Table: types.NewTable()}
	res.Table.Description = opts.Description

	for i, spec := range specs {
		col, err := buildColumn(spec, rows, i, opts.TimestampUnit)
		var convErr *ConversionError
		if errors.As(err, &convErr) {
			level.Warn(logger).Log(
				"msg", "column contains mixed types, falling back to utf8",
				"column", spec.Name,
				"type", spec.Type,
				"row", convErr.Row,
				"value", convErr.Value,
			)
			res.Fallbacks = append(res.Fallbacks, convErr)
			spec.Type = types.StringType
			col, err = buildColumn(spec, rows, i, opts.TimestampUnit)
		}
		if err != nil {
			return nil, err
		}

		if spec.Type == types.StringType && opts.CategoricalThreshold > 0 {
			if cat := categorize(col, opts.CategoricalThreshold); cat != nil {
				col = cat
				spec.Type = types.CategoryType
			}
		}
		spec.Nullable = col.NullCount() > 0

		level.Debug(logger).Log("msg", "converted column", "column", spec.Name, "type", spec.Type, "nulls", col.NullCount())
		res.Columns = append(res.Columns, spec)
		res.Table.Add(spec.Name, col)
	}
	return res, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func buildColumn(spec ColumnSpec, rows [][]string, idx int, unit types.TimeUnit) (*types.Column, error) {
	var b *types.Builder
	if spec.Type == types.TimestampType {
		b = types.NewTimestampBuilder(unit, "")
	} else {
		b = types.NewBuilder(spec.Type)
	}

	for r, row := range rows {
		raw := cell(row, idx)
		if isNull(raw) {
			b.AppendNull()
			continue
		}
		if err := appendValue(b, spec.Type, raw, unit); err != nil {
			return nil, &ConversionError{
				ColumnIndex: idx,
				ColumnName:  spec.Name,
				Value:       raw,
				TargetType:  spec.Type,
				Row:         r + 1,
			}
		}
	}
	return b.Finish(), nil
}

func appendValue(b *types.Builder, typ types.DataType, raw string, unit types.TimeUnit) error {
	value := strings.TrimSpace(raw)
	switch typ {
	case types.BoolType:
		v, err := parseBoolean(value)
		if err != nil {
			return err
		}
		return b.AppendBool(v)
	case types.Int32Type:
		v, err := parseInt32(value)
		if err != nil {
			return err
		}
		return b.AppendInt(int64(v))
	case types.Int64Type:
		v, err := parseInt64(value)
		if err != nil {
			return err
		}
		return b.AppendInt(v)
	case types.Float64Type:
		v, err := parseFloat64(value)
		if err != nil {
			return err
		}
		return b.AppendFloat(v)
	case types.DateType:
		t, err := parseDate(value)
		if err != nil {
			return err
		}
		days, err := daysSinceEpoch(t)
		if err != nil {
			return err
		}
		return b.AppendInt(int64(days))
	case types.TimestampType:
		t, err := parseTimestamp(value)
		if err != nil {
			return err
		}
		return b.AppendInt(ticks(t, unit))
	default:
		return b.AppendString(raw)
	}
}

func ticks(t time.Time, unit types.TimeUnit) int64 {
	switch unit {
	case types.Second:
		return t.Unix()
	case types.Millisecond:
		return t.UnixMilli()
	case types.Microsecond:
		return t.UnixMicro()
	default:
		return t.UnixNano()
	}
}

// categorize returns col as an unordered Category column, levels in order of
// first appearance, if it has few enough distinct values. It returns nil
// otherwise.
func categorize(col *types.Column, threshold float64) *types.Column {
	nonNull := col.Len() - col.NullCount()
	if nonNull == 0 {
		return nil
	}

	distinct := make(map[string]struct{})
	for i := 0; i < col.Len(); i++ {
		if !col.IsNull(i) {
			distinct[col.Str(i)] = struct{}{}
		}
	}
	if float64(len(distinct)) > threshold*float64(nonNull) {
		return nil
	}

	b := types.NewCategoryBuilder(nil, false, true)
	for i := 0; i < col.Len(); i++ {
		if col.IsNull(i) {
			b.AppendNull()
			continue
		}
		if err := b.AppendLevel(col.Str(i)); err != nil {
			return nil
		}
	}
	return b.Finish()
}
