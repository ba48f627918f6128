package encoding

import (
	"errors"
	"fmt"
	"sort"

	jsoniter "github.com/json-iterator/go"

	"github.com/ivan-cunha/feather-format/internal/schema"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrInvalidDirectory is returned when the block directory of a footer
// violates its invariants.
var ErrInvalidDirectory = errors.New("invalid block directory")

// BlockKind identifies the facet of a column a block holds.
type BlockKind int

const (
	BlockData BlockKind = iota
	BlockOffsets
	BlockDictionary
	BlockBitmap
)

var blockKindNames = [...]string{"data", "offsets", "dictionary", "bitmap"}

func (k BlockKind) String() string {
	if k < 0 || int(k) >= len(blockKindNames) {
		return fmt.Sprintf("BlockKind(%d)", int(k))
	}
	return blockKindNames[k]
}

func (k BlockKind) MarshalText() ([]byte, error) {
	if k < 0 || int(k) >= len(blockKindNames) {
		return nil, fmt.Errorf("unknown block kind %d", int(k))
	}
	return []byte(blockKindNames[k]), nil
}

func (k *BlockKind) UnmarshalText(text []byte) error {
	for i, name := range blockKindNames {
		if name == string(text) {
			*k = BlockKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown block kind %q", string(text))
}

// BlockRef locates one block in the file. Length is the number of stored
// (possibly compressed) bytes, excluding alignment padding; RawLength is the
// length once decompressed.
type BlockRef struct {
	Kind        BlockKind `json:"kind"`
	Offset      int64     `json:"offset"`
	Length      int64     `json:"length"`
	RawLength   int64     `json:"raw_length"`
	Compression string    `json:"compression"`
	Checksum    uint64    `json:"checksum"`
}

func (b BlockRef) End() int64 { return b.Offset + b.Length }

// CategoryMeta describes the physical dictionary coding of a Category
// column.
type CategoryMeta struct {
	Levels      int `json:"levels"`
	CodeWidth   int `json:"code_width"`
	OffsetWidth int `json:"offset_width"`
}

// ColumnMeta is the footer entry of one column.
type ColumnMeta struct {
	schema.ColumnSchema

	NullCount   int64         `json:"null_count"`
	OffsetWidth int           `json:"offset_width,omitempty"`
	Category    *CategoryMeta `json:"category,omitempty"`
	Blocks      []BlockRef    `json:"blocks"`
}

// Block returns the block of the given kind.
func (c *ColumnMeta) Block(kind BlockKind) (BlockRef, bool) {
	for _, b := range c.Blocks {
		if b.Kind == kind {
			return b, true
		}
	}
	return BlockRef{}, false
}

// StoredSize returns the number of stored bytes of all blocks of c.
func (c *ColumnMeta) StoredSize() int64 {
	var n int64
	for _, b := range c.Blocks {
		n += b.Length
	}
	return n
}

// FileMetadata is the footer of a file: its schema and block directory.
type FileMetadata struct {
	Version     uint16       `json:"version"`
	NumRows     int64        `json:"num_rows"`
	Description string       `json:"description,omitempty"`
	Columns     []ColumnMeta `json:"columns"`
}

func (md *FileMetadata) Schema() *schema.FileSchema {
	fs := schema.New()
	fs.Version = md.Version
	fs.Description = md.Description
	for _, c := range md.Columns {
		fs.Columns = append(fs.Columns, c.ColumnSchema)
	}
	return fs
}

func MarshalFooter(md *FileMetadata) ([]byte, error) {
	buf, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("marshaling footer: %w", err)
	}
	return buf, nil
}

func UnmarshalFooter(buf []byte) (*FileMetadata, error) {
	var md FileMetadata
	if err := json.Unmarshal(buf, &md); err != nil {
		return nil, fmt.Errorf("unmarshaling footer: %w", err)
	}
	return &md, nil
}

// ValidateDirectory checks that every block of md lies within
// [dataStart, dataEnd), that no two non-empty blocks overlap, and that no
// column repeats a block kind.
func ValidateDirectory(md *FileMetadata, dataStart, dataEnd int64) error {
	type span struct {
		column string
		ref    BlockRef
	}
	var spans []span

	for _, col := range md.Columns {
		var seen [len(blockKindNames)]bool
		for _, b := range col.Blocks {
			if b.Kind < 0 || int(b.Kind) >= len(blockKindNames) {
				return fmt.Errorf("%w: column %q has unknown block kind %d", ErrInvalidDirectory, col.Name, int(b.Kind))
			}
			if seen[b.Kind] {
				return fmt.Errorf("%w: column %q has more than one %s block", ErrInvalidDirectory, col.Name, b.Kind)
			}
			seen[b.Kind] = true

			if b.Offset < 0 || b.Length < 0 || b.RawLength < 0 {
				return fmt.Errorf("%w: column %q %s block has negative offset or length", ErrInvalidDirectory, col.Name, b.Kind)
			}
			if b.Offset < dataStart || b.End() > dataEnd || b.End() < b.Offset {
				return fmt.Errorf("%w: column %q %s block [%d, %d) lies outside data section [%d, %d)",
					ErrInvalidDirectory, col.Name, b.Kind, b.Offset, b.End(), dataStart, dataEnd)
			}
			if b.Length > 0 {
				spans = append(spans, span{column: col.Name, ref: b})
			}
		}
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].ref.Offset < spans[j].ref.Offset })
	for i := 1; i < len(spans); i++ {
		prev, cur := spans[i-1], spans[i]
		if cur.ref.Offset < prev.ref.End() {
			return fmt.Errorf("%w: column %q %s block overlaps column %q %s block",
				ErrInvalidDirectory, cur.column, cur.ref.Kind, prev.column, prev.ref.Kind)
		}
	}
	return nil
}
