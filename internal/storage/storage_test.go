package storage

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ivan-cunha/feather-format/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func mustCategories(t testing.TB, levels []string, ordered bool, codes []int, valid []bool) *types.Column {
	t.Helper()
	col, err := types.Categories(levels, ordered, codes, valid)
	require.NoError(t, err)
	return col
}

// boundaryTable holds one column of every type with its boundary values.
func boundaryTable(t testing.TB) *types.Table {
	tbl := types.NewTable().
		Add("bool", types.Bools([]bool{true, false, true, false, true}, nil)).
		Add("int8", types.Int8s([]int8{math.MinInt8, -1, 0, 1, math.MaxInt8}, nil)).
		Add("int16", types.Int16s([]int16{math.MinInt16, -1, 0, 1, math.MaxInt16}, nil)).
		Add("int32", types.Int32s([]int32{math.MinInt32, -1, 0, 1, math.MaxInt32}, nil)).
		Add("int64", types.Int64s([]int64{math.MinInt64, -1, 0, 1, math.MaxInt64}, nil)).
		Add("uint8", types.Uint8s([]uint8{0, 1, 2, 254, math.MaxUint8}, nil)).
		Add("uint16", types.Uint16s([]uint16{0, 1, 2, 65534, math.MaxUint16}, nil)).
		Add("uint32", types.Uint32s([]uint32{0, 1, 2, 1 << 31, math.MaxUint32}, nil)).
		Add("uint64", types.Uint64s([]uint64{0, 1, 2, 1 << 63, math.MaxUint64}, nil)).
		Add("float32", types.Float32s([]float32{-math.MaxFloat32, -0.5, 0, math.SmallestNonzeroFloat32, math.MaxFloat32}, nil)).
		Add("float64", types.Float64s([]float64{math.Inf(-1), -math.MaxFloat64, math.NaN(), math.SmallestNonzeroFloat64, math.Inf(1)}, nil)).
		Add("utf8", types.Strings([]string{"", "héllo", "世界", "a", "zz"}, nil)).
		Add("binary", types.Binaries([][]byte{{0x00}, {}, {0xff, 0xfe}, []byte("bin"), {0x00, 0x00}}, nil)).
		Add("category", mustCategories(t, []string{"lo", "mid", "hi"}, true, []int{0, 2, 1, 1, 0}, nil)).
		Add("timestamp", types.Timestamps([]int64{math.MinInt64, -1, 0, 1_600_000_000_000, math.MaxInt64}, types.Millisecond, "Europe/Paris", nil)).
		Add("date", types.Dates([]int32{math.MinInt32, -1, 0, 18_628, math.MaxInt32}, nil))
	tbl.Description = "boundary values"
	return tbl
}

// nullableTable holds nulls in every column type.
func nullableTable(t testing.TB) *types.Table {
	valid := []bool{true, false, true, false}
	return types.NewTable().
		Add("bool", types.Bools([]bool{true, true, false, true}, valid)).
		Add("int16", types.Int16s([]int16{1, 2, 3, 4}, valid)).
		Add("uint32", types.Uint32s([]uint32{1, 2, 3, 4}, valid)).
		Add("float64", types.Float64s([]float64{math.NaN(), 0, math.Inf(1), 1}, valid)).
		Add("utf8", types.Strings([]string{"a", "", "ccc", ""}, valid)).
		Add("binary", types.Binaries([][]byte{{1}, nil, {3}, nil}, valid)).
		Add("category", mustCategories(t, []string{"x", "y", "unused"}, false, []int{1, 0, 0, 0}, valid)).
		Add("timestamp", types.Timestamps([]int64{1, 2, 3, 4}, types.Nanosecond, "", valid)).
		Add("date", types.Dates([]int32{1, 2, 3, 4}, valid))
}

func columnValues(col *types.Column) []any {
	out := make([]any, col.Len())
	for i := range out {
		out[i] = col.Value(i)
	}
	return out
}

// requireTablesEqual compares tables by column name, type, metadata and
// values. NaN payloads compare equal to each other.
func requireTablesEqual(t testing.TB, want, got *types.Table) {
	t.Helper()
	require.Equal(t, want.Names(), got.Names())
	require.Equal(t, want.Description, got.Description)
	for i, wc := range want.Columns {
		gc := got.Columns[i]
		require.Equal(t, wc.Column.Type(), gc.Column.Type(), "column %q", wc.Name)
		require.Equal(t, wc.Column.Len(), gc.Column.Len(), "column %q", wc.Name)
		require.Equal(t, wc.Column.NullCount(), gc.Column.NullCount(), "column %q", wc.Name)
		for row := 0; row < wc.Column.Len(); row++ {
			require.Equal(t, wc.Column.IsNull(row), gc.Column.IsNull(row), "column %q row %d", wc.Name, row)
		}
		if diff := cmp.Diff(columnValues(wc.Column), columnValues(gc.Column), cmpopts.EquateNaNs()); diff != "" {
			t.Fatalf("column %q values mismatch (-want +got):\n%s", wc.Name, diff)
		}

		switch wc.Column.Type() {
		case types.CategoryType:
			wl, wo := wc.Column.Levels()
			gl, gO := gc.Column.Levels()
			require.Equal(t, wl, gl, "column %q levels", wc.Name)
			require.Equal(t, wo, gO, "column %q ordered", wc.Name)
		case types.TimestampType:
			require.Equal(t, wc.Column.TimeUnit(), gc.Column.TimeUnit(), "column %q unit", wc.Name)
			require.Equal(t, wc.Column.Timezone(), gc.Column.Timezone(), "column %q timezone", wc.Name)
		}
	}
}

func newTestWriter(t testing.TB, cfg WriterConfig) *Writer {
	t.Helper()
	w, err := NewWriter(cfg, Options{})
	require.NoError(t, err)
	return w
}

func defaultWriterConfig() WriterConfig {
	return DefaultConfig().Writer
}

func defaultReaderConfig() ReaderConfig {
	return DefaultConfig().Reader
}

// encodeTable writes tbl to memory with cfg.
func encodeTable(t testing.TB, cfg WriterConfig, tbl *types.Table) []byte {
	t.Helper()
	var buf bytes.Buffer
	n, err := newTestWriter(t, cfg).WriteTo(context.Background(), tbl, &buf)
	require.NoError(t, err)
	require.Equal(t, int64(buf.Len()), n)
	return buf.Bytes()
}

func openBytes(t testing.TB, buf []byte) *Reader {
	t.Helper()
	rd, err := NewReader(bytes.NewReader(buf), int64(len(buf)), defaultReaderConfig(), Options{})
	require.NoError(t, err)
	return rd
}
