package types

import (
	"fmt"
	"math"
	"strings"
)

type DataType int

const (
	BoolType DataType = iota
	Int8Type
	Int16Type
	Int32Type
	Int64Type
	UInt8Type
	UInt16Type
	UInt32Type
	UInt64Type
	Float32Type
	Float64Type
	StringType
	BinaryType
	CategoryType
	TimestampType
	DateType

	numDataTypes
)

var typeNames = [...]string{
	"Bool", "Int8", "Int16", "Int32", "Int64",
	"UInt8", "UInt16", "UInt32", "UInt64",
	"Float32", "Float64", "String", "Binary",
	"Category", "Timestamp", "Date",
}

// textNames is the stable spelling used in file metadata and on the command
// line.
var textNames = [...]string{
	"bool", "int8", "int16", "int32", "int64",
	"uint8", "uint16", "uint32", "uint64",
	"float32", "float64", "utf8", "binary",
	"category", "timestamp", "date",
}

func (d DataType) String() string {
	if !d.Valid() {
		return fmt.Sprintf("DataType(%d)", int(d))
	}
	return typeNames[d]
}

// Valid reports whether d is one of the known data types.
func (d DataType) Valid() bool { return d >= 0 && d < numDataTypes }

func (d DataType) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("unknown data type %d", int(d))
	}
	return []byte(textNames[d]), nil
}

func (d *DataType) UnmarshalText(text []byte) error {
	dt, err := ParseDataType(string(text))
	if err != nil {
		return err
	}
	*d = dt
	return nil
}

// ParseDataType parses the text form of a data type. "string" is accepted
// as an alias of "utf8".
func ParseDataType(s string) (DataType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "string" {
		return StringType, nil
	}
	for i, name := range textNames {
		if name == s {
			return DataType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown data type %q", s)
}

// PhysicalKind describes how values of a DataType are laid out.
type PhysicalKind int

const (
	FixedWidth PhysicalKind = iota
	BitPacked
	VariableLength
	DictionaryCoded
)

func (k PhysicalKind) String() string {
	switch k {
	case FixedWidth:
		return "fixed-width"
	case BitPacked:
		return "bit-packed"
	case VariableLength:
		return "variable-length"
	case DictionaryCoded:
		return "dictionary-coded"
	default:
		return fmt.Sprintf("PhysicalKind(%d)", int(k))
	}
}

// Layout is the physical representation of a DataType. Width is the byte
// width of one value for FixedWidth types and 0 otherwise; dictionary-coded
// columns pick their code width from the dictionary size.
type Layout struct {
	Kind  PhysicalKind
	Width int
}

// Layout reports the physical layout of d. It panics on an unknown type.
func (d DataType) Layout() Layout {
	switch d {
	case BoolType:
		return Layout{Kind: BitPacked}
	case Int8Type, UInt8Type:
		return Layout{Kind: FixedWidth, Width: 1}
	case Int16Type, UInt16Type:
		return Layout{Kind: FixedWidth, Width: 2}
	case Int32Type, UInt32Type, Float32Type, DateType:
		return Layout{Kind: FixedWidth, Width: 4}
	case Int64Type, UInt64Type, Float64Type, TimestampType:
		return Layout{Kind: FixedWidth, Width: 8}
	case StringType, BinaryType:
		return Layout{Kind: VariableLength}
	case CategoryType:
		return Layout{Kind: DictionaryCoded}
	default:
		panic(fmt.Sprintf("types: layout of unknown data type %d", int(d)))
	}
}

func (d DataType) IsSigned() bool {
	switch d {
	case Int8Type, Int16Type, Int32Type, Int64Type, TimestampType, DateType:
		return true
	}
	return false
}

func (d DataType) IsUnsigned() bool {
	switch d {
	case UInt8Type, UInt16Type, UInt32Type, UInt64Type:
		return true
	}
	return false
}

func (d DataType) IsFloat() bool { return d == Float32Type || d == Float64Type }

// CodeWidth returns the smallest integer width in bytes able to index a
// dictionary of the given number of levels.
func CodeWidth(levels int) int {
	switch n := uint64(levels); {
	case n <= 1<<8:
		return 1
	case n <= 1<<16:
		return 2
	case n <= 1<<32:
		return 4
	default:
		return 8
	}
}

// MaxCode returns the largest code representable in width bytes.
func MaxCode(width int) uint64 {
	if width >= 8 {
		return math.MaxUint64
	}
	return 1<<(8*uint(width)) - 1
}

// TimeUnit is the resolution of a Timestamp column.
type TimeUnit int

const (
	Second TimeUnit = iota
	Millisecond
	Microsecond
	Nanosecond
)

var unitNames = [...]string{"s", "ms", "us", "ns"}

func (u TimeUnit) String() string {
	if u < 0 || int(u) >= len(unitNames) {
		return fmt.Sprintf("TimeUnit(%d)", int(u))
	}
	return unitNames[u]
}

func (u TimeUnit) MarshalText() ([]byte, error) {
	if u < 0 || int(u) >= len(unitNames) {
		return nil, fmt.Errorf("unknown time unit %d", int(u))
	}
	return []byte(unitNames[u]), nil
}

func (u *TimeUnit) UnmarshalText(text []byte) error {
	for i, name := range unitNames {
		if name == string(text) {
			*u = TimeUnit(i)
			return nil
		}
	}
	return fmt.Errorf("unknown time unit %q", string(text))
}
