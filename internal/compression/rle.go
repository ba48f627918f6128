package compression

import (
	"encoding/binary"
)

// RLECompressor implements byte-level run-length encoding. Each run is a
// uvarint count followed by the repeated byte. It suits packed booleans and
// validity bitmaps, which are dominated by 0x00 and 0xFF runs.
type RLECompressor struct{}

func NewRLECompressor() *RLECompressor {
	return &RLECompressor{}
}

func (c *RLECompressor) Name() string {
	return "rle"
}

func (c *RLECompressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}

	result := make([]byte, 0, len(data)/4+2)

	current := data[0]
	runLength := uint64(1)
	for i := 1; i < len(data); i++ {
		if data[i] == current {
			runLength++
			continue
		}
		result = binary.AppendUvarint(result, runLength)
		result = append(result, current)
		current = data[i]
		runLength = 1
	}
	result = binary.AppendUvarint(result, runLength)
	result = append(result, current)

	return result, nil
}

func (c *RLECompressor) Decompress(data []byte, maxSize int) ([]byte, error) {
	if maxSize < 0 {
		return nil, ErrInvalidFormat
	}

	// Validate every run before allocating.
	var totalSize uint64
	for rest := data; len(rest) > 0; {
		runLength, n := binary.Uvarint(rest)
		if n <= 0 || n >= len(rest) || runLength == 0 {
			return nil, ErrInvalidFormat
		}
		if runLength > uint64(maxSize)-totalSize {
			return nil, ErrInvalidFormat
		}
		totalSize += runLength
		rest = rest[n+1:]
	}

	result := make([]byte, 0, totalSize)
	for len(data) > 0 {
		runLength, n := binary.Uvarint(data)
		value := data[n]
		for j := uint64(0); j < runLength; j++ {
			result = append(result, value)
		}
		data = data[n+1:]
	}

	return result, nil
}

func init() {
	RegisterCompressor("rle", NewRLECompressor())
}
