package compression

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// LZ4Compressor writes blocks as self-contained LZ4 frames.
type LZ4Compressor struct{}

func NewLZ4Compressor() *LZ4Compressor {
	return &LZ4Compressor{}
}

func (c *LZ4Compressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("lz4: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("lz4: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *LZ4Compressor) Decompress(data []byte, maxSize int) ([]byte, error) {
	if maxSize < 0 {
		return nil, ErrInvalidFormat
	}
	out, err := io.ReadAll(io.LimitReader(lz4.NewReader(bytes.NewReader(data)), int64(maxSize)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: lz4: %v", ErrInvalidFormat, err)
	}
	if len(out) > maxSize {
		return nil, fmt.Errorf("%w: lz4 block exceeds %d bytes", ErrInvalidFormat, maxSize)
	}
	return out, nil
}

func (c *LZ4Compressor) Name() string {
	return "lz4"
}

func init() {
	RegisterCompressor("lz4", NewLZ4Compressor())
}
