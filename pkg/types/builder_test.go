package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuilderFixed(t *testing.T) {
	b := NewBuilder(Int16Type)
	require.NoError(t, b.AppendInt(-3))
	b.AppendNull()
	require.NoError(t, b.AppendUint(7))
	require.Error(t, b.AppendInt(1<<15))
	require.Error(t, b.AppendString("x"))

	col := b.Finish()
	require.Equal(t, 3, col.Len())
	require.Equal(t, []any{int16(-3), nil, int16(7)}, []any{col.Value(0), col.Value(1), col.Value(2)})
	require.NoError(t, col.Validate())
	require.Zero(t, b.Len())
}

func TestBuilderUnsigned(t *testing.T) {
	b := NewBuilder(UInt8Type)
	require.NoError(t, b.AppendInt(255))
	require.Error(t, b.AppendInt(-1))
	require.Error(t, b.AppendUint(256))
	require.Equal(t, uint8(255), b.Finish().Value(0))
}

func TestBuilderBoolAndStrings(t *testing.T) {
	bb := NewBuilder(BoolType)
	for _, v := range []any{true, nil, false, true} {
		require.NoError(t, bb.AppendValue(v))
	}
	bools := bb.Finish()
	require.Equal(t, 1, bools.NullCount())
	require.Equal(t, []byte{0b1001}, bools.Values())

	sb := NewBuilder(StringType)
	require.NoError(t, sb.AppendValue("x"))
	require.NoError(t, sb.AppendValue([]byte("yz")))
	strs := sb.Finish()
	require.Equal(t, []int64{0, 1, 3}, strs.Offsets())
	require.Zero(t, strs.NullCount())

	require.Error(t, NewBuilder(StringType).AppendValue(struct{}{}))
}

func TestBuilderFloat(t *testing.T) {
	b := NewBuilder(Float32Type)
	require.NoError(t, b.AppendFloat(0.5))
	require.NoError(t, b.AppendValue(float32(1.5)))
	require.NoError(t, b.AppendValue(2.5))
	col := b.Finish()
	require.Equal(t, []any{float32(0.5), float32(1.5), float32(2.5)}, []any{col.Value(0), col.Value(1), col.Value(2)})

	require.Error(t, NewBuilder(Int32Type).AppendFloat(1))
}

func TestBuilderTimestamp(t *testing.T) {
	b := NewTimestampBuilder(Microsecond, "UTC")
	require.NoError(t, b.AppendInt(10))
	col := b.Finish()
	require.Equal(t, TimestampType, col.Type())
	require.Equal(t, Microsecond, col.TimeUnit())
	require.Equal(t, "UTC", col.Timezone())
	require.Equal(t, int64(10), col.Value(0))
}

func TestBuilderCategory(t *testing.T) {
	b := NewCategoryBuilder([]string{"a"}, false, true)
	require.NoError(t, b.AppendLevel("b"))
	require.NoError(t, b.AppendString("a"))
	b.AppendNull()
	require.NoError(t, b.AppendCode(1))
	require.Error(t, b.AppendCode(2))

	col := b.Finish()
	require.Equal(t, []string{"a", "b"}, col.Dictionary().Levels)
	require.Equal(t, []any{"b", "a", nil, "b"}, []any{col.Value(0), col.Value(1), col.Value(2), col.Value(3)})
	require.NoError(t, col.Validate())

	fixed := NewCategoryBuilder([]string{"a"}, true, false)
	fixed.SetCodeWidth(2)
	require.Error(t, fixed.AppendLevel("b"))
	require.NoError(t, fixed.AppendLevel("a"))
	wide := fixed.Finish()
	require.Equal(t, 2, wide.CodeWidth())
	require.Equal(t, []byte{0, 0}, wide.Values())
}

func TestBuilderCategoryGrowsOncePerLevel(t *testing.T) {
	levels := []string{"red", "green", "blue", "cyan", "magenta"}

	for _, tc := range []struct {
		name    string
		initial []string
		want    []string
	}{
		{name: "empty dictionary", initial: nil, want: levels},
		{name: "partial dictionary", initial: []string{"blue", "red"}, want: []string{"blue", "red", "green", "cyan", "magenta"}},
		{name: "full dictionary", initial: levels, want: levels},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b := NewCategoryBuilder(tc.initial, false, true)
			const rows = 10000
			for i := 0; i < rows; i++ {
				require.NoError(t, b.AppendLevel(levels[i%len(levels)]))
			}

			col := b.Finish()
			require.Equal(t, rows, col.Len())
			require.Equal(t, tc.want, col.Dictionary().Levels)
			for i := 0; i < rows; i++ {
				require.Equal(t, levels[i%len(levels)], col.Level(i))
			}

			// The reset builder keeps the grown dictionary.
			require.NoError(t, b.AppendLevel("green"))
			require.NoError(t, b.AppendLevel("black"))
			next := b.Finish()
			require.Equal(t, append(append([]string(nil), tc.want...), "black"), next.Dictionary().Levels)
			require.Equal(t, []any{"green", "black"}, []any{next.Value(0), next.Value(1)})
		})
	}
}

func TestNewBuilderPanicsForCategory(t *testing.T) {
	require.Panics(t, func() { NewBuilder(CategoryType) })
}
