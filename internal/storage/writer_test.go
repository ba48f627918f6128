package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/ivan-cunha/feather-format/internal/encoding"
	"github.com/ivan-cunha/feather-format/pkg/types"
)

func TestWriter_RoundTrip(t *testing.T) {
	codecs := []string{"none", "snappy", "zstd", "lz4", "delta", "rle", "for", CompressionAuto}

	for _, codec := range codecs {
		t.Run(codec, func(t *testing.T) {
			cfg := defaultWriterConfig()
			cfg.Compression = codec

			for _, tbl := range []*types.Table{boundaryTable(t), nullableTable(t)} {
				buf := encodeTable(t, cfg, tbl)
				rd := openBytes(t, buf)

				got, err := rd.ReadTable(context.Background(), ReadOptions{})
				require.NoError(t, err)
				requireTablesEqual(t, tbl, got)
			}
		})
	}
}

func TestWriter_FileLayout(t *testing.T) {
	tbl := boundaryTable(t)
	buf := encodeTable(t, defaultWriterConfig(), tbl)

	require.Equal(t, encoding.Magic, string(buf[:4]))
	require.Equal(t, uint16(encoding.Version), binary.LittleEndian.Uint16(buf[4:6]))
	require.Equal(t, uint16(0), binary.LittleEndian.Uint16(buf[6:8]))
	require.Equal(t, encoding.Magic, string(buf[len(buf)-4:]))

	footerLen := int(binary.LittleEndian.Uint32(buf[len(buf)-8:]))
	footerStart := len(buf) - encoding.TrailerSize - footerLen
	md, err := encoding.UnmarshalFooter(buf[footerStart : len(buf)-encoding.TrailerSize])
	require.NoError(t, err)
	require.Equal(t, int64(5), md.NumRows)
	require.Equal(t, "boundary values", md.Description)
	require.Len(t, md.Columns, tbl.NumColumns())

	// Blocks are contiguous, 8-aligned and zero padded.
	next := int64(encoding.HeaderSize)
	for _, col := range md.Columns {
		for _, ref := range col.Blocks {
			require.Equal(t, next, ref.Offset, "column %q %s block", col.Name, ref.Kind)
			require.Zero(t, ref.Offset%encoding.Alignment)
			for _, b := range buf[ref.End() : ref.End()+encoding.Padding(ref.Length)] {
				require.Zero(t, b)
			}
			next = ref.End() + encoding.Padding(ref.Length)
		}
	}
	require.Equal(t, int64(footerStart), next)
}

func TestWriter_BoolPacking(t *testing.T) {
	tbl := types.NewTable().Add("flags", types.Bools([]bool{true, false, true, true, false}, nil))
	buf := encodeTable(t, defaultWriterConfig(), tbl)

	rd := openBytes(t, buf)
	ref, ok := rd.Info().Columns[0].Block(encoding.BlockData)
	require.True(t, ok)
	require.Equal(t, int64(1), ref.Length)
	require.Equal(t, []byte{0b00001101, 0, 0, 0, 0, 0, 0, 0}, buf[ref.Offset:ref.Offset+8])
}

func TestWriter_StringOffsets(t *testing.T) {
	tbl := types.NewTable().Add("s", types.Strings([]string{"abc", "hello", "world!"}, nil))
	buf := encodeTable(t, defaultWriterConfig(), tbl)

	rd := openBytes(t, buf)
	meta := rd.Info().Columns[0]
	require.Equal(t, 4, meta.OffsetWidth)

	ref, ok := meta.Block(encoding.BlockOffsets)
	require.True(t, ok)
	require.Equal(t, int64(16), ref.Length)

	var offsets []uint32
	for i := int64(0); i < 4; i++ {
		offsets = append(offsets, binary.LittleEndian.Uint32(buf[ref.Offset+4*i:]))
	}
	require.Equal(t, []uint32{0, 3, 8, 14}, offsets)

	data, ok := meta.Block(encoding.BlockData)
	require.True(t, ok)
	require.Equal(t, "abchelloworld!", string(buf[data.Offset:data.End()]))
}

func TestWriter_OffsetPromotion(t *testing.T) {
	old := maxOffset32
	maxOffset32 = 8
	t.Cleanup(func() { maxOffset32 = old })

	metrics := NewMetrics()
	w, err := NewWriter(defaultWriterConfig(), Options{Metrics: metrics})
	require.NoError(t, err)

	cat := mustCategories(t, []string{"a-long-level", "another-level"}, false, []int{0, 1}, nil)
	tbl := types.NewTable().
		Add("short", types.Strings([]string{"ab", "cd"}, nil)).
		Add("long", types.Strings([]string{"0123456789", "x"}, nil)).
		Add("cat", cat)

	var buf bytes.Buffer
	_, err = w.WriteTo(context.Background(), tbl, &buf)
	require.NoError(t, err)
	require.Equal(t, 2.0, testutil.ToFloat64(metrics.offsetPromotions))

	rd := openBytes(t, buf.Bytes())
	cols := rd.Info().Columns
	require.Equal(t, 4, cols[0].OffsetWidth)
	require.Equal(t, 8, cols[1].OffsetWidth)
	require.Equal(t, 8, cols[2].Category.OffsetWidth)

	got, err := rd.ReadTable(context.Background(), ReadOptions{})
	require.NoError(t, err)
	requireTablesEqual(t, tbl, got)
}

func TestWriter_ForcedWidths(t *testing.T) {
	cfg := defaultWriterConfig()
	cfg.OffsetWidth = 8
	cfg.DictionaryWidth = 2

	tbl := types.NewTable().
		Add("s", types.Strings([]string{"a", "bb"}, nil)).
		Add("c", mustCategories(t, []string{"x", "y"}, true, []int{1, 0}, nil))
	rd := openBytes(t, encodeTable(t, cfg, tbl))

	cols := rd.Info().Columns
	require.Equal(t, 8, cols[0].OffsetWidth)
	require.Equal(t, 2, cols[1].Category.CodeWidth)
	require.Equal(t, 8, cols[1].Category.OffsetWidth)

	got, err := rd.ReadTable(context.Background(), ReadOptions{})
	require.NoError(t, err)
	requireTablesEqual(t, tbl, got)
	require.Equal(t, 2, got.Columns[1].Column.CodeWidth())
}

func TestWriter_Validation(t *testing.T) {
	levels := make([]string, 300)
	for i := range levels {
		levels[i] = strings.Repeat("l", i+1)
	}
	wide := mustCategories(t, levels, false, []int{299}, nil)

	for _, tc := range []struct {
		name   string
		cfg    func(*WriterConfig)
		table  *types.Table
		column string
	}{
		{
			name:  "no columns",
			table: types.NewTable(),
		},
		{
			name: "row count mismatch",
			table: types.NewTable().
				Add("a", types.Int32s([]int32{1, 2}, nil)).
				Add("b", types.Int32s([]int32{1}, nil)),
			column: "b",
		},
		{
			name: "duplicate name",
			table: types.NewTable().
				Add("a", types.Int32s([]int32{1}, nil)).
				Add("a", types.Int32s([]int32{2}, nil)),
			column: "a",
		},
		{
			name:  "empty name",
			table: types.NewTable().Add("", types.Int32s([]int32{1}, nil)),
		},
		{
			name:   "nil column",
			table:  types.NewTable().Add("a", nil),
			column: "a",
		},
		{
			name:   "inconsistent offsets",
			table:  types.NewTable().Add("s", types.NewVarColumn(types.StringType, []int64{0, 5, 2}, []byte("abcde"), types.Bitmap{})),
			column: "s",
		},
		{
			name:   "dictionary width too narrow",
			cfg:    func(cfg *WriterConfig) { cfg.DictionaryWidth = 1 },
			table:  types.NewTable().Add("c", wide),
			column: "c",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultWriterConfig()
			if tc.cfg != nil {
				tc.cfg(&cfg)
			}

			var buf bytes.Buffer
			_, err := newTestWriter(t, cfg).WriteTo(context.Background(), tc.table, &buf)
			require.Error(t, err)
			require.ErrorIs(t, err, ErrValidation)
			require.Zero(t, buf.Len(), "nothing may be written for an invalid table")

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			require.Equal(t, tc.column, verr.Column)
		})
	}
}

func TestNewWriter_InvalidConfig(t *testing.T) {
	cfg := defaultWriterConfig()
	cfg.Compression = "brotli"
	_, err := NewWriter(cfg, Options{})
	require.ErrorIs(t, err, ErrValidation)
}

func TestWriter_WriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "table.feather")
	tbl := boundaryTable(t)

	w := newTestWriter(t, defaultWriterConfig())
	require.NoError(t, w.Write(context.Background(), tbl, path))

	rd, err := OpenFile(path, defaultReaderConfig(), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, rd.Close()) })

	got, err := rd.ReadTable(context.Background(), ReadOptions{})
	require.NoError(t, err)
	requireTablesEqual(t, tbl, got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestWriter_WriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "table.feather")
	w := newTestWriter(t, defaultWriterConfig())

	// A failed write leaves no file behind.
	invalid := types.NewTable().
		Add("a", types.Int32s([]int32{1, 2}, nil)).
		Add("b", types.Int32s([]int32{1}, nil))
	require.ErrorIs(t, w.Write(context.Background(), invalid, path), ErrValidation)
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))

	// A cancelled write leaves the previous file untouched.
	require.NoError(t, w.Write(context.Background(), nullableTable(t), path))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, w.Write(ctx, boundaryTable(t), path), context.Canceled)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, before, after)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must be removed")
}

func TestWriter_WriteFileMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "table.feather")
	err := newTestWriter(t, defaultWriterConfig()).Write(context.Background(), nullableTable(t), path)

	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	require.Equal(t, "create", ioErr.Op)
	require.Equal(t, path, ioErr.Path)
}

type failingWriter struct{ err error }

func (f failingWriter) Write([]byte) (int, error) { return 0, f.err }

func TestWriter_WriteToError(t *testing.T) {
	sentinel := errors.New("disk full")
	_, err := newTestWriter(t, defaultWriterConfig()).WriteTo(context.Background(), boundaryTable(t), failingWriter{err: sentinel})
	require.ErrorIs(t, err, sentinel)

	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
}

func TestWriter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics()
	require.NoError(t, metrics.Register(reg))
	require.NoError(t, metrics.Register(reg), "registering twice is allowed")

	cfg := defaultWriterConfig()
	cfg.Compression = CompressionAuto
	w, err := NewWriter(cfg, Options{Metrics: metrics})
	require.NoError(t, err)

	tbl := types.NewTable().
		Add("a", types.Int64s(make([]int64, 1024), nil)).
		Add("b", types.Strings(make([]string, 1024), nil))

	var buf bytes.Buffer
	n, err := w.WriteTo(context.Background(), tbl, &buf)
	require.NoError(t, err)

	require.Equal(t, float64(n), testutil.ToFloat64(metrics.bytesWritten))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.filesWritten.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.columnsEncoded.WithLabelValues("Int64")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.columnsEncoded.WithLabelValues("String")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.blocksWritten.WithLabelValues("data", "delta")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.blocksWritten.WithLabelValues("offsets", "snappy")))
	require.Equal(t, 1, testutil.CollectAndCount(metrics.writeDuration))

	_, err = w.WriteTo(context.Background(), types.NewTable(), &buf)
	require.Error(t, err)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.filesWritten.WithLabelValues("failure")))
}
