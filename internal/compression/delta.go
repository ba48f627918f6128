package compression

import (
	"encoding/binary"
)

// DeltaCompressor encodes a block of little-endian 8-byte integers as the
// zigzag varint differences between consecutive values. The first value is
// stored as its difference from zero.
type DeltaCompressor struct{}

func NewDeltaCompressor() *DeltaCompressor {
	return &DeltaCompressor{}
}

func (c *DeltaCompressor) Name() string {
	return "delta"
}

func (c *DeltaCompressor) Compress(data []byte) ([]byte, error) {
	if len(data)%8 != 0 {
		return nil, ErrInvalidDataSize
	}

	result := make([]byte, 0, len(data)/2)
	var prev int64
	for i := 0; i < len(data); i += 8 {
		value := int64(binary.LittleEndian.Uint64(data[i:]))
		result = binary.AppendVarint(result, value-prev)
		prev = value
	}

	return result, nil
}

func (c *DeltaCompressor) Decompress(data []byte, maxSize int) ([]byte, error) {
	result := make([]byte, 0, min(len(data)*2, maxSize))

	var prev int64
	for len(data) > 0 {
		delta, n := binary.Varint(data)
		if n <= 0 || len(result) > maxSize-8 {
			return nil, ErrInvalidFormat
		}
		data = data[n:]

		value := prev + delta
		result = binary.LittleEndian.AppendUint64(result, uint64(value))
		prev = value
	}

	return result, nil
}

func init() {
	RegisterCompressor("delta", NewDeltaCompressor())
}
