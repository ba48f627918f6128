package compression

import (
	"fmt"

	"github.com/golang/snappy"
)

type SnappyCompressor struct{}

func NewSnappyCompressor() *SnappyCompressor {
	return &SnappyCompressor{}
}

func (c *SnappyCompressor) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (c *SnappyCompressor) Decompress(data []byte, maxSize int) ([]byte, error) {
	size, err := snappy.DecodedLen(data)
	if err != nil {
		return nil, fmt.Errorf("%w: snappy: %v", ErrInvalidFormat, err)
	}
	if size > maxSize {
		return nil, fmt.Errorf("%w: snappy block of %d bytes exceeds %d", ErrInvalidFormat, size, maxSize)
	}
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("%w: snappy: %v", ErrInvalidFormat, err)
	}
	return out, nil
}

func (c *SnappyCompressor) Name() string {
	return "snappy"
}

func init() {
	RegisterCompressor("snappy", NewSnappyCompressor())
}
