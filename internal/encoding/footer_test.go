package encoding

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ivan-cunha/feather-format/internal/schema"
	"github.com/ivan-cunha/feather-format/pkg/types"
)

func testMetadata() *FileMetadata {
	return &FileMetadata{
		Version:     Version,
		NumRows:     3,
		Description: "weather",
		Columns: []ColumnMeta{
			{
				ColumnSchema: schema.ColumnSchema{Name: "city", Type: types.StringType},
				OffsetWidth:  4,
				Blocks: []BlockRef{
					{Kind: BlockData, Offset: 8, Length: 14, RawLength: 14, Compression: "none", Checksum: 1},
					{Kind: BlockOffsets, Offset: 24, Length: 16, RawLength: 16, Compression: "none", Checksum: 2},
				},
			},
			{
				ColumnSchema: schema.ColumnSchema{Name: "sky", Type: types.CategoryType, Nullable: true, Ordered: true},
				NullCount:    1,
				Category:     &CategoryMeta{Levels: 2, CodeWidth: 1, OffsetWidth: 4},
				Blocks: []BlockRef{
					{Kind: BlockData, Offset: 40, Length: 3, RawLength: 3, Compression: "none"},
					{Kind: BlockDictionary, Offset: 48, Length: 20, RawLength: 20, Compression: "none"},
					{Kind: BlockBitmap, Offset: 72, Length: 1, RawLength: 1, Compression: "none"},
				},
			},
			{
				ColumnSchema: schema.ColumnSchema{Name: "at", Type: types.TimestampType, Unit: types.Millisecond, Timezone: "Europe/Lisbon"},
				Blocks: []BlockRef{
					{Kind: BlockData, Offset: 80, Length: 10, RawLength: 24, Compression: "for"},
				},
			},
		},
	}
}

func TestFooterRoundTrip(t *testing.T) {
	md := testMetadata()
	buf, err := MarshalFooter(md)
	require.NoError(t, err)
	require.Contains(t, string(buf), `"type":"category"`)
	require.Contains(t, string(buf), `"kind":"dictionary"`)
	require.Contains(t, string(buf), `"unit":"ms"`)

	got, err := UnmarshalFooter(buf)
	require.NoError(t, err)
	require.Equal(t, md, got)

	fs := got.Schema()
	require.Equal(t, []string{"city", "sky", "at"}, fs.Names())
	require.Equal(t, "weather", fs.Description)
	require.NoError(t, fs.Validate())
}

func TestUnmarshalFooterErrors(t *testing.T) {
	for _, footer := range []string{
		`{"version":1`,
		`{"columns":[{"name":"a","type":"decimal"}]}`,
		`{"columns":[{"name":"a","type":"int8","blocks":[{"kind":"index"}]}]}`,
	} {
		_, err := UnmarshalFooter([]byte(footer))
		require.Error(t, err, footer)
	}
}

func TestColumnMetaBlocks(t *testing.T) {
	md := testMetadata()
	sky := &md.Columns[1]

	b, ok := sky.Block(BlockDictionary)
	require.True(t, ok)
	require.Equal(t, int64(48), b.Offset)
	require.Equal(t, int64(68), b.End())

	_, ok = sky.Block(BlockOffsets)
	require.False(t, ok)
	require.Equal(t, int64(24), sky.StoredSize())
}

func TestBlockKindText(t *testing.T) {
	for _, k := range []BlockKind{BlockData, BlockOffsets, BlockDictionary, BlockBitmap} {
		text, err := k.MarshalText()
		require.NoError(t, err)

		var got BlockKind
		require.NoError(t, got.UnmarshalText(text))
		require.Equal(t, k, got)
	}

	_, err := BlockKind(9).MarshalText()
	require.Error(t, err)
	require.Equal(t, "BlockKind(9)", BlockKind(9).String())
}

func TestValidateDirectory(t *testing.T) {
	require.NoError(t, ValidateDirectory(testMetadata(), HeaderSize, 96))

	for _, tt := range []struct {
		name   string
		mutate func(md *FileMetadata)
	}{
		{"past data end", func(md *FileMetadata) { md.Columns[2].Blocks[0].Length = 100 }},
		{"before header", func(md *FileMetadata) { md.Columns[0].Blocks[0].Offset = 0 }},
		{"negative length", func(md *FileMetadata) { md.Columns[0].Blocks[1].Length = -1 }},
		{"overlap", func(md *FileMetadata) { md.Columns[1].Blocks[0].Offset = 36 }},
		{"duplicate kind", func(md *FileMetadata) { md.Columns[1].Blocks[2].Kind = BlockData }},
		{"unknown kind", func(md *FileMetadata) { md.Columns[1].Blocks[2].Kind = BlockKind(7) }},
	} {
		t.Run(tt.name, func(t *testing.T) {
			md := testMetadata()
			tt.mutate(md)
			require.ErrorIs(t, ValidateDirectory(md, HeaderSize, 96), ErrInvalidDirectory)
		})
	}
}

func TestValidateDirectoryAllowsEmptyBlocks(t *testing.T) {
	md := &FileMetadata{
		Version: Version,
		Columns: []ColumnMeta{
			{
				ColumnSchema: schema.ColumnSchema{Name: "a", Type: types.Int32Type},
				Blocks:       []BlockRef{{Kind: BlockData, Offset: 8, Compression: "none"}},
			},
			{
				ColumnSchema: schema.ColumnSchema{Name: "b", Type: types.Int32Type},
				Blocks:       []BlockRef{{Kind: BlockData, Offset: 8, Compression: "none"}},
			},
		},
	}
	require.NoError(t, ValidateDirectory(md, HeaderSize, HeaderSize))
}
