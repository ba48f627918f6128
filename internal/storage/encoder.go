package storage

import (
	"errors"
	"fmt"
	"math"

	"github.com/ivan-cunha/feather-format/internal/compression"
	"github.com/ivan-cunha/feather-format/internal/encoding"
	"github.com/ivan-cunha/feather-format/internal/schema"
	"github.com/ivan-cunha/feather-format/pkg/types"
)

// maxOffset32 is the largest payload length representable with 32-bit
// offsets.
var maxOffset32 int64 = math.MaxUint32

type encodeOptions struct {
	// offsetWidth is the byte width of variable-length and dictionary
	// offsets: 4 or 8.
	offsetWidth int

	// codeWidth overrides the category code width when non-zero.
	codeWidth int
}

// encodeColumn lays col out as raw blocks in file order: data, offsets,
// dictionary, bitmap. It returns ErrEncodingOverflow when a payload does not
// fit opts.offsetWidth.
func encodeColumn(cs schema.ColumnSchema, col *types.Column, opts encodeOptions) (*ColumnBlock, error) {
	n := col.Len()
	cb := NewColumnBlock(cs, col.NullCount())

	switch layout := col.Type().Layout(); layout.Kind {
	case types.FixedWidth:
		cb.addRaw(encoding.BlockData, col.Values())

	case types.BitPacked:
		cb.addRaw(encoding.BlockData, packedBits(col.Values(), n))

	case types.VariableLength:
		offsets, err := encodeOffsets(col.Offsets(), opts.offsetWidth)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", cs.Name, err)
		}
		cb.Metadata.OffsetWidth = opts.offsetWidth
		cb.addRaw(encoding.BlockData, col.Data())
		cb.addRaw(encoding.BlockOffsets, offsets)

	case types.DictionaryCoded:
		levels, _ := col.Levels()
		codeWidth := types.CodeWidth(len(levels))
		if opts.codeWidth != 0 {
			codeWidth = opts.codeWidth
		}
		if !fitsCodeWidth(len(levels), codeWidth) {
			return nil, invalidf(cs.Name, "%d levels do not fit %d-byte category codes", len(levels), codeWidth)
		}
		dict, err := encodeDictionary(levels, opts.offsetWidth)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", cs.Name, err)
		}
		cb.Metadata.Category = &encoding.CategoryMeta{
			Levels:      len(levels),
			CodeWidth:   codeWidth,
			OffsetWidth: opts.offsetWidth,
		}
		cb.addRaw(encoding.BlockData, encodeCodes(col, codeWidth))
		cb.addRaw(encoding.BlockDictionary, dict)
	}

	if col.NullCount() > 0 {
		cb.addRaw(encoding.BlockBitmap, packedBits(col.Validity().Bytes(), n))
	}
	return cb, nil
}

func fitsCodeWidth(levels, width int) bool {
	return levels == 0 || uint64(levels-1) <= types.MaxCode(width)
}

// packedBits returns the first n bits of src with the unused bits of the
// final byte cleared.
func packedBits(src []byte, n int) []byte {
	size := types.BitmapBytes(n)
	if n%8 == 0 {
		return src[:size]
	}
	buf := make([]byte, size)
	copy(buf, src)
	return types.BitmapFromBytes(buf, n).Bytes()
}

// encodeOffsets writes offsets as little-endian unsigned integers of the
// given width.
func encodeOffsets(offsets []int64, width int) ([]byte, error) {
	if last := offsets[len(offsets)-1]; width == 4 && last > maxOffset32 {
		return nil, fmt.Errorf("%w: %d payload bytes need 64-bit offsets", ErrEncodingOverflow, last)
	}
	buf := make([]byte, len(offsets)*width)
	for i, off := range offsets {
		types.PutUint(buf, i, width, uint64(off))
	}
	return buf, nil
}

// encodeDictionary writes the L+1 level offsets followed directly by the
// concatenated level bytes.
func encodeDictionary(levels []string, width int) ([]byte, error) {
	offsets := make([]int64, len(levels)+1)
	for i, l := range levels {
		offsets[i+1] = offsets[i] + int64(len(l))
	}
	buf, err := encodeOffsets(offsets, width)
	if err != nil {
		return nil, err
	}
	for _, l := range levels {
		buf = append(buf, l...)
	}
	return buf, nil
}

// encodeCodes rewrites the codes of col at the given width. Null slots are
// written as 0.
func encodeCodes(col *types.Column, width int) []byte {
	n := col.Len()
	if width == col.CodeWidth() && col.NullCount() == 0 {
		return col.Values()[:n*width]
	}
	buf := make([]byte, n*width)
	for i := 0; i < n; i++ {
		if col.IsNull(i) {
			continue
		}
		types.PutUint(buf, i, width, uint64(col.Code(i)))
	}
	return buf
}

// codecFor returns the codec used for a block of kind holding data of typ.
// A configured name other than auto applies to every block.
func codecFor(configured string, typ types.DataType, kind encoding.BlockKind) (compression.Compressor, error) {
	name := configured
	if configured == CompressionAuto {
		name = autoCodec(typ, kind)
	}
	return compression.GetCompressor(name)
}

func autoCodec(typ types.DataType, kind encoding.BlockKind) string {
	switch kind {
	case encoding.BlockBitmap:
		return "rle"
	case encoding.BlockData:
		switch typ {
		case types.TimestampType:
			return "for"
		case types.Int64Type, types.UInt64Type:
			return "delta"
		case types.BoolType:
			return "rle"
		}
	}
	return "snappy"
}

// compressBlock applies c to raw. Blocks the codec rejects or does not
// shrink are stored uncompressed.
func compressBlock(c compression.Compressor, raw []byte) ([]byte, string, error) {
	if c.Name() == compression.None || len(raw) == 0 {
		return raw, compression.None, nil
	}
	out, err := c.Compress(raw)
	if errors.Is(err, compression.ErrInvalidDataSize) {
		return raw, compression.None, nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("%s compression: %w", c.Name(), err)
	}
	if len(out) >= len(raw) {
		return raw, compression.None, nil
	}
	return out, c.Name(), nil
}
