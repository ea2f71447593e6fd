package scan

import (
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"native-exporter/internal/native"
)

type testColumn struct {
	name   string
	typ    string
	values []string
}

func buildResult(t *testing.T, cols ...testColumn) *native.Result {
	t.Helper()

	descs := make([]native.ColumnDescriptor, len(cols))
	buffers := make([]native.Column, len(cols))
	for i, c := range cols {
		typ, _ := native.ParseType(c.typ)
		descs[i] = native.ColumnDescriptor{Name: c.name, Type: typ}
		buffers[i] = native.NewColumn(typ)
		for _, v := range c.values {
			buffers[i].AppendText(v)
		}
	}

	res, err := native.NewResult(descs, buffers)
	require.NoError(t, err)
	return res
}

func sequence(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strconv.Itoa(i)
	}
	return out
}

func TestCursor_BatchSizes(t *testing.T) {
	res := buildResult(t, testColumn{"id", "UInt64", sequence(2500)})
	cur := NewCursor(res)

	var sizes []int
	var lasts []bool
	next := int64(0)
	for {
		b := cur.Pull(DefaultBatchSize)
		sizes = append(sizes, b.Rows)
		lasts = append(lasts, b.Last)
		if b.End() {
			break
		}
		for _, v := range b.Vectors[0].Int64s {
			require.Equal(t, next, v)
			next++
		}
	}

	require.Equal(t, []int{1024, 1024, 452, 0}, sizes)
	require.Equal(t, []bool{false, false, true, true}, lasts)
	require.True(t, cur.Done())

	for i := 0; i < 3; i++ {
		b := cur.Pull(DefaultBatchSize)
		require.True(t, b.End())
		require.True(t, b.Last)
	}
}

func TestCursor_CapacityBounds(t *testing.T) {
	res := buildResult(t, testColumn{"id", "Int32", sequence(5000)})

	cur := NewCursor(res)
	require.Equal(t, MaxBatchSize, cur.Pull(10_000).Rows)
	require.Equal(t, DefaultBatchSize, cur.Pull(0).Rows)
	require.Equal(t, DefaultBatchSize, cur.Pull(-3).Rows)
	require.Equal(t, 7, cur.Pull(7).Rows)
	require.Equal(t, 5000-2048-1024-1024-7, cur.Remaining())
}

func TestCursor_Empty(t *testing.T) {
	res := buildResult(t, testColumn{"id", "UInt8", nil})
	cur := NewCursor(res)

	b := cur.Pull(10)
	require.True(t, b.End())
	require.True(t, b.Last)
	require.Len(t, b.Vectors, 1)
	require.Equal(t, VectorInt32, b.Vectors[0].Kind)
}

func TestCursor_OutputMapping(t *testing.T) {
	res := buildResult(t,
		testColumn{"u8", "UInt8", []string{"200"}},
		testColumn{"i16", "Int16", []string{"-5"}},
		testColumn{"flag", "Bool", []string{"true"}},
		testColumn{"day", "Date", []string{"1970-01-11"}},
		testColumn{"u32", "UInt32", []string{"4000000000"}},
		testColumn{"ts", "DateTime", []string{"1970-01-01 00:00:02"}},
		testColumn{"big", "UInt64", []string{"18446744073709551615"}},
		testColumn{"f32", "Float32", []string{"1.5"}},
		testColumn{"name", "String", []string{"x"}},
		testColumn{"e", "Enum8('on' = 1)", []string{"on"}},
		testColumn{"dec", "Decimal(9, 2)", []string{"1.00"}},
	)

	fields := Fields(res)
	kinds := make([]VectorKind, len(fields))
	for i, f := range fields {
		kinds[i] = f.Kind
		require.Equal(t, f.Name == "big", f.Narrowed, f.Name)
	}
	require.Equal(t, []VectorKind{
		VectorInt32, VectorInt32, VectorInt32, VectorInt32,
		VectorInt64, VectorInt64, VectorInt64,
		VectorFloat64,
		VectorString, VectorString, VectorString,
	}, kinds)

	b := NewCursor(res).Pull(1)
	require.Equal(t, 1, b.Rows)
	require.Equal(t, []any{
		int32(200), int32(-5), int32(1), int32(10),
		int64(4000000000), int64(2_000_000), int64(-1),
		float64(1.5),
		"x", "on", "<unsupported Decimal(9, 2)>",
	}, b.Row(0, nil))
}

func TestCursor_Int64Extremes(t *testing.T) {
	res := buildResult(t, testColumn{"v", "Int64", []string{strconv.FormatInt(math.MinInt64, 10), strconv.FormatInt(math.MaxInt64, 10)}})
	b := NewCursor(res).Pull(0)
	require.Equal(t, []int64{math.MinInt64, math.MaxInt64}, b.Vectors[0].Int64s)
}

func TestPartition(t *testing.T) {
	res := buildResult(t, testColumn{"id", "UInt16", sequence(10)})

	parts := Partition(res, 3)
	require.Len(t, parts, 3)

	var seen []int32
	for _, p := range parts {
		for {
			b := p.Pull(0)
			if b.End() {
				break
			}
			seen = append(seen, b.Vectors[0].Int32s...)
		}
	}
	require.Len(t, seen, 10)
	for i, v := range seen {
		require.Equal(t, int32(i), v)
	}

	require.Len(t, Partition(res, 0), 1)
	require.Len(t, Partition(res, 50), 10)
}
