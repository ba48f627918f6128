package compression

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func int64Block(values ...int64) []byte {
	buf := make([]byte, 0, len(values)*8)
	for _, v := range values {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(v))
	}
	return buf
}

func TestNames(t *testing.T) {
	require.Equal(t, []string{"delta", "for", "lz4", "none", "rle", "snappy", "zstd"}, Names())

	for _, name := range Names() {
		c, err := GetCompressor(name)
		require.NoError(t, err)
		require.Equal(t, name, c.Name())
	}

	_, err := GetCompressor("gzip")
	require.ErrorIs(t, err, ErrCompressorNotFound)
}

func TestRoundTrip(t *testing.T) {
	text := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 64)
	ints := int64Block(-5, 0, 3, 3, 1<<40, -1<<40, 42)
	stamps := int64Block(1700000000000, 1700000000250, 1700000000100, 1700000001000)
	bits := append(bytes.Repeat([]byte{0xff}, 300), 0x00, 0x00, 0x05, 0xff)

	for _, tt := range []struct {
		codec string
		data  []byte
	}{
		{"none", text},
		{"snappy", text},
		{"snappy", ints},
		{"zstd", text},
		{"zstd", ints},
		{"lz4", text},
		{"lz4", bits},
		{"delta", ints},
		{"delta", stamps},
		{"for", ints},
		{"for", stamps},
		{"rle", bits},
		{"rle", text},
	} {
		t.Run(tt.codec, func(t *testing.T) {
			c, err := GetCompressor(tt.codec)
			require.NoError(t, err)

			compressed, err := c.Compress(tt.data)
			require.NoError(t, err)

			out, err := c.Decompress(compressed, len(tt.data))
			require.NoError(t, err)
			require.Equal(t, tt.data, out)
		})
	}
}

func TestCompressionShrinksRepetitiveData(t *testing.T) {
	stamps := make([]int64, 1000)
	for i := range stamps {
		stamps[i] = 1700000000000 + int64(i)*10
	}
	block := int64Block(stamps...)

	for _, codec := range []string{"delta", "for", "zstd"} {
		c, err := GetCompressor(codec)
		require.NoError(t, err)
		compressed, err := c.Compress(block)
		require.NoError(t, err)
		require.Less(t, len(compressed), len(block)/2, codec)
	}

	rle, err := GetCompressor("rle")
	require.NoError(t, err)
	compressed, err := rle.Compress(bytes.Repeat([]byte{0xff}, 4096))
	require.NoError(t, err)
	require.Equal(t, []byte{0x80, 0x20, 0xff}, compressed)
}

func TestEmptyBlocks(t *testing.T) {
	for _, codec := range []string{"none", "delta", "rle"} {
		c, err := GetCompressor(codec)
		require.NoError(t, err)

		compressed, err := c.Compress(nil)
		require.NoError(t, err)
		require.Empty(t, compressed)

		out, err := c.Decompress(compressed, 0)
		require.NoError(t, err)
		require.Empty(t, out)
	}
}

func TestInvalidDataSize(t *testing.T) {
	delta, err := GetCompressor("delta")
	require.NoError(t, err)
	_, err = delta.Compress([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrInvalidDataSize)

	frame, err := GetCompressor("for")
	require.NoError(t, err)
	_, err = frame.Compress([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9})
	require.ErrorIs(t, err, ErrInvalidDataSize)
	_, err = frame.Compress(nil)
	require.ErrorIs(t, err, ErrInvalidDataSize)
}

func TestCorruptInput(t *testing.T) {
	for _, tt := range []struct {
		name  string
		codec string
		data  []byte
	}{
		{"snappy garbage", "snappy", []byte{0x05, 0xff}},
		{"zstd garbage", "zstd", []byte("definitely not a zstd frame")},
		{"lz4 garbage", "lz4", []byte("definitely not an lz4 frame")},
		{"delta truncated varint", "delta", []byte{0x80}},
		{"for short reference", "for", []byte{1, 2, 3}},
		{"for truncated uvarint", "for", []byte{0, 0, 0, 0, 0, 0, 0, 0, 0x80}},
		{"rle missing value", "rle", []byte{0x05}},
		{"rle zero run", "rle", []byte{0x00, 0x01}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			c, err := GetCompressor(tt.codec)
			require.NoError(t, err)
			_, err = c.Decompress(tt.data, 1<<20)
			require.ErrorIs(t, err, ErrInvalidFormat)
		})
	}
}

func TestDecompressLimit(t *testing.T) {
	text := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 64)
	ints := int64Block(1, 2, 3, 4, 5, 6, 7, 8)

	for _, tt := range []struct {
		codec string
		data  []byte
	}{
		{"none", text},
		{"snappy", text},
		{"zstd", text},
		{"lz4", text},
		{"delta", ints},
		{"for", ints},
		{"rle", text},
	} {
		t.Run(tt.codec, func(t *testing.T) {
			c, err := GetCompressor(tt.codec)
			require.NoError(t, err)

			compressed, err := c.Compress(tt.data)
			require.NoError(t, err)

			_, err = c.Decompress(compressed, len(tt.data)-1)
			require.ErrorIs(t, err, ErrInvalidFormat)

			out, err := c.Decompress(compressed, len(tt.data))
			require.NoError(t, err)
			require.Equal(t, tt.data, out)
		})
	}
}

func TestRLERejectsOversizedRuns(t *testing.T) {
	rle, err := GetCompressor("rle")
	require.NoError(t, err)

	for _, tt := range []struct {
		name string
		data []byte
	}{
		// One run of 1<<28 zero bytes.
		{"single run", []byte{0x80, 0x80, 0x80, 0x80, 0x01, 0x00}},
		{"runs sum past limit", []byte{0x80, 0x04, 0x01, 0x80, 0x04, 0x02, 0x01, 0x03}},
		{"max uvarint run", []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01, 0x00}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rle.Decompress(tt.data, 1024)
			require.ErrorIs(t, err, ErrInvalidFormat)
		})
	}

	out, err := rle.Decompress([]byte{0x80, 0x08, 0x07}, 1024)
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{0x07}, 1024), out)
}
