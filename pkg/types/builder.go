package types

import (
	"encoding/binary"
	"fmt"
	"math"
)

// A Builder accumulates values for a new Column. Builders are not safe for
// concurrent use.
type Builder struct {
	typ    DataType
	layout Layout

	n        int
	values   []byte
	bools    []bool
	offsets  []int64
	data     []byte
	codes    []uint64
	valid    []bool
	hasNulls bool

	dict      *Dictionary
	index     map[string]int // Level to code.
	growDict  bool
	codeWidth int

	unit     TimeUnit
	timezone string
}

// NewBuilder returns a Builder for a non-category column type.
func NewBuilder(typ DataType) *Builder {
	if typ == CategoryType {
		panic("types: use NewCategoryBuilder for category columns")
	}
	b := &Builder{typ: typ, layout: typ.Layout()}
	if b.layout.Kind == VariableLength {
		b.offsets = []int64{0}
	}
	return b
}

// NewTimestampBuilder returns a Builder for a Timestamp column.
func NewTimestampBuilder(unit TimeUnit, timezone string) *Builder {
	b := NewBuilder(TimestampType)
	b.unit, b.timezone = unit, timezone
	return b
}

// NewCategoryBuilder returns a Builder for a Category column over the given
// levels. If grow is true, AppendLevel adds unknown levels to the dictionary
// instead of failing.
func NewCategoryBuilder(levels []string, ordered, grow bool) *Builder {
	b := &Builder{
		typ:      CategoryType,
		layout:   CategoryType.Layout(),
		growDict: grow,
	}
	b.setDictionary(NewDictionary(levels, ordered))
	return b
}

func (b *Builder) setDictionary(dict *Dictionary) {
	b.dict = dict
	b.index = dict.codes()
}

// SetCodeWidth forces the byte width of category codes. Zero selects the
// smallest width able to index the dictionary.
func (b *Builder) SetCodeWidth(width int) { b.codeWidth = width }

func (b *Builder) Len() int { return b.n }

func (b *Builder) Type() DataType { return b.typ }

func (b *Builder) AppendNull() {
	b.hasNulls = true
	switch b.layout.Kind {
	case FixedWidth:
		b.values = append(b.values, make([]byte, b.layout.Width)...)
	case BitPacked:
		b.bools = append(b.bools, false)
	case VariableLength:
		b.offsets = append(b.offsets, int64(len(b.data)))
	case DictionaryCoded:
		b.codes = append(b.codes, 0)
	}
	b.appendValidity(false)
}

func (b *Builder) appendValidity(valid bool) {
	b.valid = append(b.valid, valid)
	b.n++
}

func (b *Builder) AppendBool(v bool) error {
	if b.typ != BoolType {
		return b.mismatch("bool")
	}
	b.bools = append(b.bools, v)
	b.appendValidity(true)
	return nil
}

// AppendInt appends v to a signed integer, Timestamp or Date column. It fails
// if v does not fit the column's width.
func (b *Builder) AppendInt(v int64) error {
	if !b.typ.IsSigned() {
		if b.typ.IsUnsigned() && v >= 0 {
			return b.AppendUint(uint64(v))
		}
		return b.mismatch("int")
	}
	w := b.layout.Width
	if w < 8 {
		limit := int64(1) << (8*uint(w) - 1)
		if v < -limit || v >= limit {
			return fmt.Errorf("value %d overflows %s", v, b.typ)
		}
	}
	b.putFixed(uint64(v))
	b.appendValidity(true)
	return nil
}

// AppendUint appends v to an unsigned integer column. It fails if v does
// not fit the column's width.
func (b *Builder) AppendUint(v uint64) error {
	if !b.typ.IsUnsigned() {
		if b.typ.IsSigned() && v <= math.MaxInt64 {
			return b.AppendInt(int64(v))
		}
		return b.mismatch("uint")
	}
	if w := b.layout.Width; w < 8 && v > MaxCode(w) {
		return fmt.Errorf("value %d overflows %s", v, b.typ)
	}
	b.putFixed(v)
	b.appendValidity(true)
	return nil
}

func (b *Builder) putFixed(v uint64) {
	off := len(b.values)
	b.values = append(b.values, make([]byte, b.layout.Width)...)
	PutUint(b.values[off:], 0, b.layout.Width, v)
}

// AppendFloat appends v to a float column. Float32 columns store float32(v).
func (b *Builder) AppendFloat(v float64) error {
	switch b.typ {
	case Float32Type:
		return b.AppendFloat32(float32(v))
	case Float64Type:
		b.values = binary.LittleEndian.AppendUint64(b.values, math.Float64bits(v))
		b.appendValidity(true)
		return nil
	default:
		return b.mismatch("float")
	}
}

func (b *Builder) AppendFloat32(v float32) error {
	if b.typ != Float32Type {
		return b.mismatch("float32")
	}
	b.values = binary.LittleEndian.AppendUint32(b.values, math.Float32bits(v))
	b.appendValidity(true)
	return nil
}

func (b *Builder) AppendString(v string) error {
	if b.typ == CategoryType {
		return b.AppendLevel(v)
	}
	if b.layout.Kind != VariableLength {
		return b.mismatch("string")
	}
	b.data = append(b.data, v...)
	b.offsets = append(b.offsets, int64(len(b.data)))
	b.appendValidity(true)
	return nil
}

func (b *Builder) AppendBytes(v []byte) error {
	if b.layout.Kind != VariableLength {
		return b.mismatch("bytes")
	}
	b.data = append(b.data, v...)
	b.offsets = append(b.offsets, int64(len(b.data)))
	b.appendValidity(true)
	return nil
}

// AppendLevel appends the code of level to a Category column.
func (b *Builder) AppendLevel(level string) error {
	if b.typ != CategoryType {
		return b.mismatch("level")
	}
	code, ok := b.index[level]
	if !ok {
		if !b.growDict {
			return fmt.Errorf("level %q is not in the dictionary", level)
		}
		b.dict.Levels = append(b.dict.Levels, level)
		code = len(b.dict.Levels) - 1
		b.index[level] = code
	}
	b.codes = append(b.codes, uint64(code))
	b.appendValidity(true)
	return nil
}

// AppendCode appends a raw category code.
func (b *Builder) AppendCode(code int) error {
	if b.typ != CategoryType {
		return b.mismatch("code")
	}
	if code < 0 || code >= b.dict.Len() {
		return fmt.Errorf("code %d is outside dictionary of %d levels", code, b.dict.Len())
	}
	b.codes = append(b.codes, uint64(code))
	b.appendValidity(true)
	return nil
}

// AppendValue appends a native Go value as returned by Column.Value. A nil
// value appends a null.
func (b *Builder) AppendValue(v any) error {
	switch v := v.(type) {
	case nil:
		b.AppendNull()
		return nil
	case bool:
		return b.AppendBool(v)
	case int8:
		return b.AppendInt(int64(v))
	case int16:
		return b.AppendInt(int64(v))
	case int32:
		return b.AppendInt(int64(v))
	case int64:
		return b.AppendInt(v)
	case int:
		return b.AppendInt(int64(v))
	case uint8:
		return b.AppendUint(uint64(v))
	case uint16:
		return b.AppendUint(uint64(v))
	case uint32:
		return b.AppendUint(uint64(v))
	case uint64:
		return b.AppendUint(v)
	case float32:
		if b.typ == Float32Type {
			return b.AppendFloat32(v)
		}
		return b.AppendFloat(float64(v))
	case float64:
		return b.AppendFloat(v)
	case string:
		return b.AppendString(v)
	case []byte:
		return b.AppendBytes(v)
	default:
		return fmt.Errorf("cannot append %T to %s column", v, b.typ)
	}
}

func (b *Builder) mismatch(what string) error {
	return fmt.Errorf("cannot append %s value to %s column", what, b.typ)
}

// Finish returns the built Column and resets b.
func (b *Builder) Finish() *Column {
	var validity Bitmap
	if b.hasNulls {
		validity = BitmapFromBools(b.valid)
	}

	var col *Column
	switch b.layout.Kind {
	case FixedWidth:
		if b.typ == TimestampType {
			col = NewTimestampColumn(b.n, b.values, b.unit, b.timezone, validity)
		} else {
			col = NewFixedColumn(b.typ, b.n, b.values, validity)
		}
	case BitPacked:
		col = NewFixedColumn(b.typ, b.n, BitmapFromBools(b.bools).Bytes(), validity)
	case VariableLength:
		col = NewVarColumn(b.typ, b.offsets, b.data, validity)
	case DictionaryCoded:
		width := b.codeWidth
		if width == 0 {
			width = CodeWidth(b.dict.Len())
		}
		codes := make([]byte, len(b.codes)*width)
		for i, code := range b.codes {
			PutUint(codes, i, width, code)
		}
		col = NewCategoryColumn(b.dict, width, b.n, codes, validity)
	}

	dict, grow, width := b.dict, b.growDict, b.codeWidth
	unit, tz := b.unit, b.timezone
	*b = Builder{typ: b.typ, layout: b.layout, growDict: grow, codeWidth: width, unit: unit, timezone: tz}
	if dict != nil {
		b.setDictionary(NewDictionary(dict.Levels, dict.Ordered))
	}
	if b.layout.Kind == VariableLength {
		b.offsets = []int64{0}
	}
	return col
}
