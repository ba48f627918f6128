package storage

import (
	"math"

	"github.com/ivan-cunha/feather-format/internal/compression"
	"github.com/ivan-cunha/feather-format/internal/encoding"
	"github.com/ivan-cunha/feather-format/pkg/types"
)

// decodeColumn rebuilds a column from the raw (decompressed) bytes of its
// blocks. Every structural violation is reported as a *CorruptFileError.
func decodeColumn(meta *encoding.ColumnMeta, numRows int64, blocks map[encoding.BlockKind][]byte) (*types.Column, error) {
	name := meta.Name
	if !meta.Type.Valid() {
		return nil, corruptf(name, "unsupported data type %d", int(meta.Type))
	}
	if numRows < 0 || int64(int(numRows)) != numRows {
		return nil, corruptf(name, "invalid row count %d", numRows)
	}
	n := int(numRows)
	if meta.NullCount < 0 || meta.NullCount > numRows {
		return nil, corruptf(name, "null count %d outside [0, %d]", meta.NullCount, numRows)
	}

	layout := meta.Type.Layout()
	required := []encoding.BlockKind{encoding.BlockData}
	switch layout.Kind {
	case types.VariableLength:
		required = append(required, encoding.BlockOffsets)
	case types.DictionaryCoded:
		required = append(required, encoding.BlockDictionary)
	}
	if meta.NullCount > 0 {
		required = append(required, encoding.BlockBitmap)
	}
	if err := checkBlockKinds(name, blocks, required); err != nil {
		return nil, err
	}

	var validity types.Bitmap
	if buf, ok := blocks[encoding.BlockBitmap]; ok {
		if want := packedLen(numRows); int64(len(buf)) != want {
			return nil, corruptf(name, "bitmap holds %d bytes, expected %d", len(buf), want)
		}
		validity = types.BitmapFromBytes(buf, n)
		if valid := validity.CountSet(); int64(n-valid) != meta.NullCount {
			return nil, corruptf(name, "bitmap marks %d nulls, footer records %d", n-valid, meta.NullCount)
		}
	}

	data := blocks[encoding.BlockData]
	switch layout.Kind {
	case types.FixedWidth:
		if len(data)%layout.Width != 0 || len(data)/layout.Width != n {
			return nil, corruptf(name, "data block holds %d bytes, expected %d values of %d bytes", len(data), n, layout.Width)
		}
		if meta.Type == types.TimestampType {
			return types.NewTimestampColumn(n, data, meta.Unit, meta.Timezone, validity), nil
		}
		return types.NewFixedColumn(meta.Type, n, data, validity), nil

	case types.BitPacked:
		if want := packedLen(numRows); int64(len(data)) != want {
			return nil, corruptf(name, "data block holds %d bytes, expected %d", len(data), want)
		}
		return types.NewFixedColumn(meta.Type, n, data, validity), nil

	case types.VariableLength:
		offsets, err := decodeOffsets(name, blocks[encoding.BlockOffsets], n, meta.OffsetWidth)
		if err != nil {
			return nil, err
		}
		if last := offsets[n]; last != int64(len(data)) {
			return nil, corruptf(name, "last offset %d does not match payload length %d", last, len(data))
		}
		return types.NewVarColumn(meta.Type, offsets, data, validity), nil

	case types.DictionaryCoded:
		return decodeCategory(meta, n, data, blocks[encoding.BlockDictionary], validity)
	}
	return nil, corruptf(name, "unsupported layout %s", layout.Kind)
}

func checkBlockKinds(column string, blocks map[encoding.BlockKind][]byte, required []encoding.BlockKind) error {
	for _, kind := range required {
		if _, ok := blocks[kind]; !ok {
			return corruptf(column, "missing %s block", kind)
		}
	}
	if len(blocks) != len(required) {
	outer:
		for kind := range blocks {
			for _, r := range required {
				if kind == r {
					continue outer
				}
			}
			return corruptf(column, "unexpected %s block", kind)
		}
	}
	return nil
}

// decodeOffsets parses the n+1 offsets of n values and checks that they start
// at 0 and never decrease.
func decodeOffsets(column string, buf []byte, n, width int) ([]int64, error) {
	if width != 4 && width != 8 {
		return nil, corruptf(column, "invalid offset width %d", width)
	}
	count := len(buf) / width
	if len(buf)%width != 0 || count == 0 || count-1 != n {
		return nil, corruptf(column, "offsets block holds %d bytes, expected %d offsets of %d bytes", len(buf), n, width)
	}
	offsets := make([]int64, count)
	for i := range offsets {
		v := types.ReadUint(buf, i, width)
		if v > math.MaxInt64 {
			return nil, corruptf(column, "offset %d out of range", i)
		}
		offsets[i] = int64(v)
		if i == 0 && v != 0 {
			return nil, corruptf(column, "first offset is %d", v)
		}
		if i > 0 && offsets[i] < offsets[i-1] {
			return nil, corruptf(column, "offsets decrease at %d", i)
		}
	}
	return offsets, nil
}

func decodeCategory(meta *encoding.ColumnMeta, n int, codes, dict []byte, validity types.Bitmap) (*types.Column, error) {
	name := meta.Name
	cm := meta.Category
	if cm == nil {
		return nil, corruptf(name, "category column without dictionary metadata")
	}
	if !validCodeWidth(cm.CodeWidth) {
		return nil, corruptf(name, "invalid code width %d", cm.CodeWidth)
	}
	if cm.OffsetWidth != 4 && cm.OffsetWidth != 8 {
		return nil, corruptf(name, "invalid dictionary offset width %d", cm.OffsetWidth)
	}
	if cm.Levels < 0 || cm.Levels >= len(dict)/cm.OffsetWidth {
		return nil, corruptf(name, "dictionary of %d bytes cannot hold %d levels", len(dict), cm.Levels)
	}
	if len(codes)%cm.CodeWidth != 0 || len(codes)/cm.CodeWidth != n {
		return nil, corruptf(name, "data block holds %d bytes, expected %d codes of %d bytes", len(codes), n, cm.CodeWidth)
	}

	head := (cm.Levels + 1) * cm.OffsetWidth
	offsets, err := decodeOffsets(name, dict[:head], cm.Levels, cm.OffsetWidth)
	if err != nil {
		return nil, err
	}
	payload := dict[head:]
	if last := offsets[cm.Levels]; last != int64(len(payload)) {
		return nil, corruptf(name, "last dictionary offset %d does not match %d level bytes", last, len(payload))
	}

	levels := make([]string, cm.Levels)
	seen := make(map[string]struct{}, cm.Levels)
	for i := range levels {
		l := string(payload[offsets[i]:offsets[i+1]])
		if _, dup := seen[l]; dup {
			return nil, corruptf(name, "duplicate dictionary level %q", l)
		}
		seen[l] = struct{}{}
		levels[i] = l
	}

	for i := 0; i < n; i++ {
		if validity.Len() > 0 && !validity.Get(i) {
			continue
		}
		if code := types.ReadUint(codes, i, cm.CodeWidth); code >= uint64(cm.Levels) {
			return nil, corruptf(name, "code %d at row %d is outside dictionary of %d levels", code, i, cm.Levels)
		}
	}

	return types.NewCategoryColumn(types.NewDictionary(levels, meta.Ordered), cm.CodeWidth, n, codes, validity), nil
}

func validCodeWidth(w int) bool {
	switch w {
	case 1, 2, 4, 8:
		return true
	}
	return false
}

// packedLen returns the number of bytes holding n bits.
func packedLen(n int64) int64 {
	return n/8 + (n%8+7)/8
}

// mulSize returns n*width, reporting false when the product overflows.
func mulSize(n, width int64) (int64, bool) {
	if n < 0 || width <= 0 || n > math.MaxInt64/width {
		return 0, false
	}
	return n * width, true
}

// rawBlockSize returns the decoded size of a block whose size follows from
// the column metadata and the row count. It reports false for blocks whose
// size depends on their content: variable-length payloads and dictionaries.
func rawBlockSize(meta *encoding.ColumnMeta, numRows int64, kind encoding.BlockKind) (int64, bool, error) {
	name := meta.Name
	layout := meta.Type.Layout()

	var (
		size int64
		ok   bool
	)
	switch {
	case kind == encoding.BlockBitmap, kind == encoding.BlockData && layout.Kind == types.BitPacked:
		return packedLen(numRows), true, nil
	case kind == encoding.BlockData && layout.Kind == types.FixedWidth:
		size, ok = mulSize(numRows, int64(layout.Width))
	case kind == encoding.BlockData && layout.Kind == types.DictionaryCoded:
		if meta.Category == nil || !validCodeWidth(meta.Category.CodeWidth) {
			return 0, false, corruptf(name, "invalid dictionary code metadata")
		}
		size, ok = mulSize(numRows, int64(meta.Category.CodeWidth))
	case kind == encoding.BlockOffsets && layout.Kind == types.VariableLength:
		if meta.OffsetWidth != 4 && meta.OffsetWidth != 8 {
			return 0, false, corruptf(name, "invalid offset width %d", meta.OffsetWidth)
		}
		if numRows < math.MaxInt64 {
			size, ok = mulSize(numRows+1, int64(meta.OffsetWidth))
		}
	default:
		return 0, false, nil
	}
	if !ok {
		return 0, false, corruptf(name, "%d rows overflow the %s block size", numRows, kind)
	}
	return size, true, nil
}

// checkBlockSizes checks the recorded sizes of the blocks of one column
// against its metadata and the file's row count, before any block is read.
// Every block must decode to a length that fits in memory, uncompressed
// blocks store exactly their raw bytes, and blocks sized by the row count
// record exactly that size.
func checkBlockSizes(meta *encoding.ColumnMeta, numRows int64) error {
	name := meta.Name
	for _, ref := range meta.Blocks {
		if int64(int(ref.RawLength)) != ref.RawLength {
			return corruptf(name, "%s block of %d bytes does not fit in memory", ref.Kind, ref.RawLength)
		}
		if ref.Compression == compression.None && ref.Length != ref.RawLength {
			return corruptf(name, "uncompressed %s block stores %d bytes, records %d", ref.Kind, ref.Length, ref.RawLength)
		}

		want, ok, err := rawBlockSize(meta, numRows, ref.Kind)
		if err != nil {
			return err
		}
		if ok && ref.RawLength != want {
			return corruptf(name, "%s block records %d bytes, %d rows need %d", ref.Kind, ref.RawLength, numRows, want)
		}

		if ref.Kind == encoding.BlockDictionary {
			cm := meta.Category
			if cm == nil || (cm.OffsetWidth != 4 && cm.OffsetWidth != 8) {
				return corruptf(name, "invalid dictionary metadata")
			}
			if cm.Levels < 0 || int64(cm.Levels) >= ref.RawLength/int64(cm.OffsetWidth) {
				return corruptf(name, "dictionary of %d bytes cannot hold %d levels", ref.RawLength, cm.Levels)
			}
		}
	}
	return nil
}
