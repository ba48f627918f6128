package compression

import (
	"encoding/binary"
)

// FORCompressor implements frame-of-reference encoding for blocks of
// little-endian 8-byte integers: the block minimum is stored once and every
// value as a uvarint offset from it. Timestamps clustered in time encode to
// a few bytes each.
type FORCompressor struct{}

func NewFORCompressor() *FORCompressor {
	return &FORCompressor{}
}

func (c *FORCompressor) Name() string {
	return "for"
}

func (c *FORCompressor) Compress(data []byte) ([]byte, error) {
	if len(data)%8 != 0 || len(data) == 0 {
		return nil, ErrInvalidDataSize
	}

	reference := int64(binary.LittleEndian.Uint64(data))
	for i := 8; i < len(data); i += 8 {
		if v := int64(binary.LittleEndian.Uint64(data[i:])); v < reference {
			reference = v
		}
	}

	result := make([]byte, 8, 8+len(data)/2)
	binary.LittleEndian.PutUint64(result, uint64(reference))
	for i := 0; i < len(data); i += 8 {
		offset := binary.LittleEndian.Uint64(data[i:]) - uint64(reference)
		result = binary.AppendUvarint(result, offset)
	}

	return result, nil
}

func (c *FORCompressor) Decompress(data []byte, maxSize int) ([]byte, error) {
	if len(data) < 8 {
		return nil, ErrInvalidFormat
	}

	reference := binary.LittleEndian.Uint64(data)
	data = data[8:]

	result := make([]byte, 0, min(len(data)*2, maxSize))
	for len(data) > 0 {
		offset, n := binary.Uvarint(data)
		if n <= 0 || len(result) > maxSize-8 {
			return nil, ErrInvalidFormat
		}
		result = binary.LittleEndian.AppendUint64(result, reference+offset)
		data = data[n:]
	}

	return result, nil
}

func init() {
	RegisterCompressor("for", NewFORCompressor())
}
