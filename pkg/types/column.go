package types

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/apache/arrow/go/v17/arrow/bitutil"
)

// A Column is an immutable, typed sequence of values with optional nulls.
//
// Values live in a dense store sized for the type's physical layout:
// little-endian fixed-width values, bit-packed booleans, offsets plus a byte
// pool for variable-length values, or fixed-width codes for categories.
// Null-ness is carried only by the validity bitmap; the store slot of a null
// value is unspecified.
type Column struct {
	typ DataType
	n   int

	values  []byte  // Fixed-width values, packed booleans, or category codes.
	offsets []int64 // Variable-length only: n+1 cumulative byte offsets.
	data    []byte  // Variable-length only: concatenated payload.

	validity Bitmap

	dict      *Dictionary
	codeWidth int

	unit     TimeUnit
	timezone string
	loc      *time.Location // Resolved timezone; nil means UTC.
}

// NewFixedColumn wraps n little-endian values of a fixed-width or boolean
// type. For BoolType, values holds ceil(n/8) packed bytes. A zero-length
// validity bitmap means the column has no nulls.
func NewFixedColumn(typ DataType, n int, values []byte, validity Bitmap) *Column {
	switch typ.Layout().Kind {
	case FixedWidth, BitPacked:
	default:
		panic(fmt.Sprintf("types: NewFixedColumn called with %s", typ))
	}
	return &Column{typ: typ, n: n, values: values, validity: validity}
}

// NewTimestampColumn wraps n int64 timestamps expressed in unit.
func NewTimestampColumn(n int, values []byte, unit TimeUnit, timezone string, validity Bitmap) *Column {
	return &Column{typ: TimestampType, n: n, values: values, validity: validity, unit: unit, timezone: timezone, loc: loadLocation(timezone)}
}

// loadLocation resolves an IANA timezone name, falling back to UTC.
func loadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// NewVarColumn wraps a String or Binary column. offsets must hold n+1
// entries.
func NewVarColumn(typ DataType, offsets []int64, data []byte, validity Bitmap) *Column {
	if typ.Layout().Kind != VariableLength {
		panic(fmt.Sprintf("types: NewVarColumn called with %s", typ))
	}
	n := len(offsets) - 1
	if n < 0 {
		n = 0
		offsets = []int64{0}
	}
	return &Column{typ: typ, n: n, offsets: offsets, data: data, validity: validity}
}

// NewCategoryColumn wraps n category codes of codeWidth bytes each.
func NewCategoryColumn(dict *Dictionary, codeWidth int, n int, codes []byte, validity Bitmap) *Column {
	return &Column{typ: CategoryType, n: n, values: codes, validity: validity, dict: dict, codeWidth: codeWidth}
}

func (c *Column) Type() DataType { return c.typ }

func (c *Column) Len() int { return c.n }

// Values returns the raw fixed-width store: little-endian values, packed
// booleans, or category codes.
func (c *Column) Values() []byte { return c.values }

// Offsets returns the n+1 offsets of a variable-length column.
func (c *Column) Offsets() []int64 { return c.offsets }

// Data returns the payload of a variable-length column.
func (c *Column) Data() []byte { return c.data }

// Validity returns the validity bitmap. The bitmap has length 0 when the
// column has no nulls.
func (c *Column) Validity() Bitmap { return c.validity }

func (c *Column) Dictionary() *Dictionary { return c.dict }

// CodeWidth returns the byte width of category codes.
func (c *Column) CodeWidth() int { return c.codeWidth }

func (c *Column) TimeUnit() TimeUnit { return c.unit }

func (c *Column) Timezone() string { return c.timezone }

// Levels implements CategorySource.
func (c *Column) Levels() ([]string, bool) {
	if c.dict == nil {
		return nil, false
	}
	return c.dict.Levels, c.dict.Ordered
}

func (c *Column) IsNull(i int) bool {
	return c.validity.Len() > 0 && !c.validity.Get(i)
}

func (c *Column) NullCount() int {
	if c.validity.Len() == 0 {
		return 0
	}
	return c.n - c.validity.CountSet()
}

func (c *Column) Bool(i int) bool { return bitutil.BitIsSet(c.values, i) }

// Int64 returns value i of a signed integer, Timestamp, Date or unsigned
// column widened to int64.
func (c *Column) Int64(i int) int64 {
	switch c.typ {
	case Int8Type:
		return int64(int8(c.values[i]))
	case Int16Type:
		return int64(int16(binary.LittleEndian.Uint16(c.values[i*2:])))
	case Int32Type, DateType:
		return int64(int32(binary.LittleEndian.Uint32(c.values[i*4:])))
	case Int64Type, TimestampType:
		return int64(binary.LittleEndian.Uint64(c.values[i*8:]))
	default:
		return int64(c.Uint64(i))
	}
}

// Uint64 returns value i of an unsigned integer column widened to uint64.
func (c *Column) Uint64(i int) uint64 {
	switch c.typ {
	case UInt8Type, Int8Type:
		return uint64(c.values[i])
	case UInt16Type, Int16Type:
		return uint64(binary.LittleEndian.Uint16(c.values[i*2:]))
	case UInt32Type, Int32Type, DateType:
		return uint64(binary.LittleEndian.Uint32(c.values[i*4:]))
	case CategoryType:
		return ReadUint(c.values, i, c.codeWidth)
	default:
		return binary.LittleEndian.Uint64(c.values[i*8:])
	}
}

func (c *Column) Float32(i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(c.values[i*4:]))
}

// Float64 returns value i of a float column. Float32 values are widened.
func (c *Column) Float64(i int) float64 {
	if c.typ == Float32Type {
		return float64(c.Float32(i))
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(c.values[i*8:]))
}

// Bytes returns value i of a String or Binary column. The returned slice
// aliases the column's payload.
func (c *Column) Bytes(i int) []byte {
	return c.data[c.offsets[i]:c.offsets[i+1]:c.offsets[i+1]]
}

// Str returns value i of a String, Binary or Category column as a string.
func (c *Column) Str(i int) string {
	if c.typ == CategoryType {
		return c.Level(i)
	}
	return string(c.Bytes(i))
}

// Code returns the category code of row i.
func (c *Column) Code(i int) int { return int(ReadUint(c.values, i, c.codeWidth)) }

// Level returns the dictionary level of row i.
func (c *Column) Level(i int) string { return c.dict.Levels[c.Code(i)] }

// Time returns value i of a Timestamp or Date column as a time.Time. The
// column's timezone is applied when it can be loaded; otherwise UTC is used.
func (c *Column) Time(i int) time.Time {
	loc := c.loc
	if loc == nil {
		loc = time.UTC
	}
	v := c.Int64(i)
	if c.typ == DateType {
		return time.Unix(v*86400, 0).In(loc)
	}
	switch c.unit {
	case Second:
		return time.Unix(v, 0).In(loc)
	case Millisecond:
		return time.UnixMilli(v).In(loc)
	case Microsecond:
		return time.UnixMicro(v).In(loc)
	default:
		return time.Unix(0, v).In(loc)
	}
}

// Value returns value i as its native Go type, or nil if it is null.
// Category values are returned as their level string, Timestamp values as
// int64 ticks and Date values as int32 days.
func (c *Column) Value(i int) any {
	if c.IsNull(i) {
		return nil
	}
	switch c.typ {
	case BoolType:
		return c.Bool(i)
	case Int8Type:
		return int8(c.Int64(i))
	case Int16Type:
		return int16(c.Int64(i))
	case Int32Type:
		return int32(c.Int64(i))
	case Int64Type, TimestampType:
		return c.Int64(i)
	case DateType:
		return int32(c.Int64(i))
	case UInt8Type:
		return uint8(c.Uint64(i))
	case UInt16Type:
		return uint16(c.Uint64(i))
	case UInt32Type:
		return uint32(c.Uint64(i))
	case UInt64Type:
		return c.Uint64(i)
	case Float32Type:
		return c.Float32(i)
	case Float64Type:
		return c.Float64(i)
	case StringType:
		return c.Str(i)
	case BinaryType:
		b := c.Bytes(i)
		out := make([]byte, len(b))
		copy(out, b)
		return out
	case CategoryType:
		return c.Level(i)
	default:
		return nil
	}
}

var errColumnShape = errors.New("invalid column")

// Validate checks the internal consistency of c: store sizes, offsets,
// validity length, dictionary levels and category codes.
func (c *Column) Validate() error {
	if !c.typ.Valid() {
		return fmt.Errorf("%w: unsupported data type %d", errColumnShape, int(c.typ))
	}
	if c.n < 0 {
		return fmt.Errorf("%w: negative length %d", errColumnShape, c.n)
	}
	if l := c.validity.Len(); l != 0 && l != c.n {
		return fmt.Errorf("%w: validity bitmap has %d bits for %d values", errColumnShape, l, c.n)
	}

	layout := c.typ.Layout()
	switch layout.Kind {
	case FixedWidth:
		if want := c.n * layout.Width; len(c.values) != want {
			return fmt.Errorf("%w: %s store holds %d bytes, expected %d", errColumnShape, c.typ, len(c.values), want)
		}
	case BitPacked:
		if want := BitmapBytes(c.n); len(c.values) != want {
			return fmt.Errorf("%w: bool store holds %d bytes, expected %d", errColumnShape, len(c.values), want)
		}
	case VariableLength:
		if len(c.offsets) != c.n+1 {
			return fmt.Errorf("%w: %d offsets for %d values", errColumnShape, len(c.offsets), c.n)
		}
		if c.offsets[0] != 0 {
			return fmt.Errorf("%w: first offset is %d", errColumnShape, c.offsets[0])
		}
		for i := 1; i < len(c.offsets); i++ {
			if c.offsets[i] < c.offsets[i-1] {
				return fmt.Errorf("%w: offsets decrease at %d", errColumnShape, i)
			}
		}
		if last := c.offsets[c.n]; last != int64(len(c.data)) {
			return fmt.Errorf("%w: last offset %d does not match payload length %d", errColumnShape, last, len(c.data))
		}
	case DictionaryCoded:
		if c.dict == nil {
			return fmt.Errorf("%w: category column without dictionary", errColumnShape)
		}
		if err := c.dict.Validate(); err != nil {
			return fmt.Errorf("%w: %v", errColumnShape, err)
		}
		switch c.codeWidth {
		case 1, 2, 4, 8:
		default:
			return fmt.Errorf("%w: invalid code width %d", errColumnShape, c.codeWidth)
		}
		if want := c.n * c.codeWidth; len(c.values) != want {
			return fmt.Errorf("%w: code store holds %d bytes, expected %d", errColumnShape, len(c.values), want)
		}
		levels := uint64(c.dict.Len())
		for i := 0; i < c.n; i++ {
			if c.IsNull(i) {
				continue
			}
			if code := ReadUint(c.values, i, c.codeWidth); code >= levels {
				return fmt.Errorf("%w: code %d at row %d is outside dictionary of %d levels", errColumnShape, code, i, levels)
			}
		}
	}
	return nil
}

// Slice returns a copy of rows [start, end) of c.
func (c *Column) Slice(start, end int) *Column {
	if start < 0 || end > c.n || start > end {
		panic(fmt.Sprintf("types: slice [%d:%d] out of range for column of length %d", start, end, c.n))
	}
	n := end - start
	out := &Column{
		typ:       c.typ,
		n:         n,
		dict:      c.dict,
		codeWidth: c.codeWidth,
		unit:      c.unit,
		timezone:  c.timezone,
		loc:       c.loc,
	}
	if c.validity.Len() > 0 {
		out.validity = sliceBits(c.validity.Bytes(), start, n)
	}

	switch c.typ.Layout().Kind {
	case FixedWidth:
		w := c.typ.Layout().Width
		out.values = append([]byte(nil), c.values[start*w:end*w]...)
	case BitPacked:
		out.values = sliceBits(c.values, start, n).Bytes()
	case DictionaryCoded:
		w := c.codeWidth
		out.values = append([]byte(nil), c.values[start*w:end*w]...)
		if c.dict != nil {
			out.dict = NewDictionary(c.dict.Levels, c.dict.Ordered)
		}
	case VariableLength:
		base := c.offsets[start]
		out.offsets = make([]int64, n+1)
		for i := range out.offsets {
			out.offsets[i] = c.offsets[start+i] - base
		}
		out.data = append([]byte(nil), c.data[base:c.offsets[end]]...)
	}
	return out
}

func sliceBits(src []byte, start, n int) Bitmap {
	bmap := NewBitmap(n)
	for i := 0; i < n; i++ {
		if bitutil.BitIsSet(src, start+i) {
			bitutil.SetBit(bmap.bits, i)
		}
	}
	return bmap
}

// ReadUint reads the little-endian unsigned integer of width bytes at index i
// of buf.
func ReadUint(buf []byte, i, width int) uint64 {
	switch width {
	case 1:
		return uint64(buf[i])
	case 2:
		return uint64(binary.LittleEndian.Uint16(buf[i*2:]))
	case 4:
		return uint64(binary.LittleEndian.Uint32(buf[i*4:]))
	default:
		return binary.LittleEndian.Uint64(buf[i*8:])
	}
}

// PutUint writes v as a little-endian unsigned integer of width bytes at
// index i of buf.
func PutUint(buf []byte, i, width int, v uint64) {
	switch width {
	case 1:
		buf[i] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
	default:
		binary.LittleEndian.PutUint64(buf[i*8:], v)
	}
}
