package storage

import (
	"github.com/cespare/xxhash/v2"

	"github.com/ivan-cunha/feather-format/internal/encoding"
	"github.com/ivan-cunha/feather-format/internal/schema"
)

// ColumnBlock is one encoded column: its footer entry and the bytes of each
// of its blocks. Data[i] holds the bytes of Metadata.Blocks[i]; they are raw
// until the block is compressed and stored afterwards.
type ColumnBlock struct {
	Metadata encoding.ColumnMeta
	Data     [][]byte
}

func NewColumnBlock(cs schema.ColumnSchema, nullCount int) *ColumnBlock {
	return &ColumnBlock{
		Metadata: encoding.ColumnMeta{
			ColumnSchema: cs,
			NullCount:    int64(nullCount),
		},
	}
}

func (cb *ColumnBlock) Name() string { return cb.Metadata.Name }

// addRaw appends an uncompressed block of the given kind.
func (cb *ColumnBlock) addRaw(kind encoding.BlockKind, raw []byte) {
	cb.Metadata.Blocks = append(cb.Metadata.Blocks, encoding.BlockRef{
		Kind:      kind,
		Length:    int64(len(raw)),
		RawLength: int64(len(raw)),
	})
	cb.Data = append(cb.Data, raw)
}

// setStored replaces block i with its stored form and records the codec and
// checksum of the stored bytes.
func (cb *ColumnBlock) setStored(i int, stored []byte, codec string) {
	ref := &cb.Metadata.Blocks[i]
	ref.Length = int64(len(stored))
	ref.Compression = codec
	ref.Checksum = xxhash.Sum64(stored)
	cb.Data[i] = stored
}

// PaddedSize returns the number of file bytes the column's blocks occupy,
// alignment padding included.
func (cb *ColumnBlock) PaddedSize() int64 {
	var n int64
	for _, b := range cb.Metadata.Blocks {
		n += b.Length + encoding.Padding(b.Length)
	}
	return n
}
