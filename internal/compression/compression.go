package compression

import (
	"errors"
	"sort"
	"sync"
)

var (
	ErrCompressorNotFound = errors.New("compressor not found")
	compressors           = make(map[string]Compressor)
	compressorsMu         sync.RWMutex
	ErrInvalidDataSize    = errors.New("invalid data size for compression")
	ErrInvalidFormat      = errors.New("invalid compressed data format")
)

// None is the name of the identity codec. Blocks stored with None are
// written verbatim.
const None = "none"

// A Compressor compresses a whole block at a time. Implementations must be
// safe for concurrent use since blocks of different columns are compressed
// in parallel.
//
// Compress returns ErrInvalidDataSize when the codec cannot represent the
// given block; callers then store the block uncompressed.
//
// Decompress never produces more than maxSize bytes: input that would
// expand past it fails with ErrInvalidFormat.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte, maxSize int) ([]byte, error)
	Name() string
}

func RegisterCompressor(name string, c Compressor) {
	compressorsMu.Lock()
	defer compressorsMu.Unlock()
	compressors[name] = c
}

func GetCompressor(name string) (Compressor, error) {
	compressorsMu.RLock()
	defer compressorsMu.RUnlock()

	if c, exists := compressors[name]; exists {
		return c, nil
	}
	return nil, ErrCompressorNotFound
}

// Names returns the registered codec names in sorted order.
func Names() []string {
	compressorsMu.RLock()
	defer compressorsMu.RUnlock()

	names := make([]string, 0, len(compressors))
	for name := range compressors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type noneCompressor struct{}

func (noneCompressor) Compress(data []byte) ([]byte, error) { return data, nil }
func (noneCompressor) Name() string                         { return None }

func (noneCompressor) Decompress(data []byte, maxSize int) ([]byte, error) {
	if len(data) > maxSize {
		return nil, ErrInvalidFormat
	}
	return data, nil
}

func init() {
	RegisterCompressor(None, noneCompressor{})
}
