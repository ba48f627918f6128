package compression

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// MaxDecodedBlockSize bounds the window memory of the zstd decoder.
const MaxDecodedBlockSize = 64 << 30

// ZstdCompressor shares one encoder; EncodeAll may be called concurrently.
// Blocks are decoded as a stream so that output grows only as far as the
// frame really expands, up to maxSize.
type ZstdCompressor struct {
	enc     *zstd.Encoder
	decOpts []zstd.DOption
}

func NewZstdCompressor(opts ...zstd.EOption) (*ZstdCompressor, error) {
	enc, err := zstd.NewWriter(nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	return &ZstdCompressor{
		enc: enc,
		decOpts: []zstd.DOption{
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(MaxDecodedBlockSize),
		},
	}, nil
}

func (c *ZstdCompressor) Compress(data []byte) ([]byte, error) {
	return c.enc.EncodeAll(data, make([]byte, 0, len(data))), nil
}

func (c *ZstdCompressor) Decompress(data []byte, maxSize int) ([]byte, error) {
	if maxSize < 0 {
		return nil, ErrInvalidFormat
	}
	if len(data) == 0 {
		return nil, nil
	}
	dec, err := zstd.NewReader(bytes.NewReader(data), c.decOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %v", ErrInvalidFormat, err)
	}
	defer dec.Close()

	out, err := io.ReadAll(io.LimitReader(dec, int64(maxSize)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %v", ErrInvalidFormat, err)
	}
	if len(out) > maxSize {
		return nil, fmt.Errorf("%w: zstd block exceeds %d bytes", ErrInvalidFormat, maxSize)
	}
	return out, nil
}

func (c *ZstdCompressor) Name() string {
	return "zstd"
}

func init() {
	c, err := NewZstdCompressor(zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(fmt.Sprintf("compression: %v", err))
	}
	RegisterCompressor("zstd", c)
}
