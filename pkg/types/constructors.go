package types

import (
	"encoding/binary"
	"fmt"
	"math"
)

// The constructors below build columns from Go slices. valid, when non-nil,
// must have the same length as values; valid[i] == false marks row i as
// null. A nil valid slice means the column has no nulls.

func validityOf(n int, valid []bool) Bitmap {
	if valid == nil {
		return Bitmap{}
	}
	if len(valid) != n {
		panic(fmt.Sprintf("types: validity has %d entries for %d values", len(valid), n))
	}
	for _, v := range valid {
		if !v {
			return BitmapFromBools(valid)
		}
	}
	return Bitmap{}
}

func newFixed[T any](typ DataType, values []T, valid []bool, put func([]byte, T)) *Column {
	w := typ.Layout().Width
	buf := make([]byte, len(values)*w)
	for i, v := range values {
		put(buf[i*w:], v)
	}
	return NewFixedColumn(typ, len(values), buf, validityOf(len(values), valid))
}

func Bools(values []bool, valid []bool) *Column {
	return NewFixedColumn(BoolType, len(values), BitmapFromBools(values).Bytes(), validityOf(len(values), valid))
}

func Int8s(values []int8, valid []bool) *Column {
	return newFixed(Int8Type, values, valid, func(b []byte, v int8) { b[0] = byte(v) })
}

func Int16s(values []int16, valid []bool) *Column {
	return newFixed(Int16Type, values, valid, func(b []byte, v int16) { binary.LittleEndian.PutUint16(b, uint16(v)) })
}

func Int32s(values []int32, valid []bool) *Column {
	return newFixed(Int32Type, values, valid, func(b []byte, v int32) { binary.LittleEndian.PutUint32(b, uint32(v)) })
}

func Int64s(values []int64, valid []bool) *Column {
	return newFixed(Int64Type, values, valid, func(b []byte, v int64) { binary.LittleEndian.PutUint64(b, uint64(v)) })
}

func Uint8s(values []uint8, valid []bool) *Column {
	return newFixed(UInt8Type, values, valid, func(b []byte, v uint8) { b[0] = v })
}

func Uint16s(values []uint16, valid []bool) *Column {
	return newFixed(UInt16Type, values, valid, binary.LittleEndian.PutUint16)
}

func Uint32s(values []uint32, valid []bool) *Column {
	return newFixed(UInt32Type, values, valid, binary.LittleEndian.PutUint32)
}

func Uint64s(values []uint64, valid []bool) *Column {
	return newFixed(UInt64Type, values, valid, binary.LittleEndian.PutUint64)
}

func Float32s(values []float32, valid []bool) *Column {
	return newFixed(Float32Type, values, valid, func(b []byte, v float32) { binary.LittleEndian.PutUint32(b, math.Float32bits(v)) })
}

func Float64s(values []float64, valid []bool) *Column {
	return newFixed(Float64Type, values, valid, func(b []byte, v float64) { binary.LittleEndian.PutUint64(b, math.Float64bits(v)) })
}

// Dates builds a Date column from days since the Unix epoch.
func Dates(values []int32, valid []bool) *Column {
	return newFixed(DateType, values, valid, func(b []byte, v int32) { binary.LittleEndian.PutUint32(b, uint32(v)) })
}

// Timestamps builds a Timestamp column from ticks of unit since the Unix
// epoch.
func Timestamps(values []int64, unit TimeUnit, timezone string, valid []bool) *Column {
	col := Int64s(values, valid)
	return NewTimestampColumn(col.n, col.values, unit, timezone, col.validity)
}

func Strings(values []string, valid []bool) *Column {
	offsets := make([]int64, len(values)+1)
	var size int
	for _, v := range values {
		size += len(v)
	}
	data := make([]byte, 0, size)
	for i, v := range values {
		data = append(data, v...)
		offsets[i+1] = int64(len(data))
	}
	return NewVarColumn(StringType, offsets, data, validityOf(len(values), valid))
}

func Binaries(values [][]byte, valid []bool) *Column {
	offsets := make([]int64, len(values)+1)
	var data []byte
	for i, v := range values {
		data = append(data, v...)
		offsets[i+1] = int64(len(data))
	}
	return NewVarColumn(BinaryType, offsets, data, validityOf(len(values), valid))
}

// Categories builds a Category column from codes into levels. Codes of null
// rows are ignored.
func Categories(levels []string, ordered bool, codes []int, valid []bool) (*Column, error) {
	dict := NewDictionary(levels, ordered)
	if err := dict.Validate(); err != nil {
		return nil, err
	}
	validity := validityOf(len(codes), valid)
	width := CodeWidth(dict.Len())
	buf := make([]byte, len(codes)*width)
	for i, code := range codes {
		if validity.Len() > 0 && !validity.Get(i) {
			continue
		}
		if code < 0 || code >= dict.Len() {
			return nil, fmt.Errorf("code %d at row %d is outside dictionary of %d levels", code, i, dict.Len())
		}
		PutUint(buf, i, width, uint64(code))
	}
	return NewCategoryColumn(dict, width, len(codes), buf, validity), nil
}

// CategoriesFromStrings builds a Category column by looking up each value in
// levels. Values of null rows are ignored.
func CategoriesFromStrings(levels []string, ordered bool, values []string, valid []bool) (*Column, error) {
	index := NewDictionary(levels, ordered).codes()
	codes := make([]int, len(values))
	for i, v := range values {
		if valid != nil && !valid[i] {
			continue
		}
		code, ok := index[v]
		if !ok {
			return nil, fmt.Errorf("value %q at row %d is not a level", v, i)
		}
		codes[i] = code
	}
	return Categories(levels, ordered, codes, valid)
}
