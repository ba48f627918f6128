package types

import (
	"github.com/apache/arrow/go/v17/arrow/bitutil"
)

// A Bitmap is a fixed-length sequence of bits packed LSB-first. It backs both
// column validity (1 = valid) and bit-packed boolean values.
//
// The zero Bitmap has length 0; a column with a zero-length validity bitmap
// has no nulls.
type Bitmap struct {
	bits []byte
	n    int
}

// NewBitmap returns a bitmap of n cleared bits.
func NewBitmap(n int) Bitmap {
	return Bitmap{bits: make([]byte, bitutil.BytesForBits(int64(n))), n: n}
}

// BitmapFromBools packs values into a new Bitmap.
func BitmapFromBools(values []bool) Bitmap {
	bmap := NewBitmap(len(values))
	for i, v := range values {
		if v {
			bitutil.SetBit(bmap.bits, i)
		}
	}
	return bmap
}

// BitmapFromBytes wraps buf as a bitmap of n bits. buf is retained and must
// hold at least ceil(n/8) bytes. Bits past n are cleared so that Bytes is
// canonical.
func BitmapFromBytes(buf []byte, n int) Bitmap {
	size := int(bitutil.BytesForBits(int64(n)))
	bits := buf[:size:size]
	if rem := n % 8; rem != 0 {
		bits[size-1] &= byte(1<<uint(rem)) - 1
	}
	return Bitmap{bits: bits, n: n}
}

// BitmapBytes returns the number of bytes needed to pack n bits.
func BitmapBytes(n int) int { return int(bitutil.BytesForBits(int64(n))) }

func (b Bitmap) Len() int { return b.n }

func (b Bitmap) Get(i int) bool { return bitutil.BitIsSet(b.bits, i) }

func (b Bitmap) Set(i int, v bool) { bitutil.SetBitTo(b.bits, i, v) }

// CountSet returns the number of set bits.
func (b Bitmap) CountSet() int {
	if b.n == 0 {
		return 0
	}
	return bitutil.CountSetBits(b.bits, 0, b.n)
}

// Bytes returns the packed representation of b. The final byte is
// zero-padded. Callers must not modify the returned slice.
func (b Bitmap) Bytes() []byte { return b.bits }

// Clone returns a copy of b that shares no memory with it.
func (b Bitmap) Clone() Bitmap {
	bits := make([]byte, len(b.bits))
	copy(bits, b.bits)
	return Bitmap{bits: bits, n: b.n}
}
