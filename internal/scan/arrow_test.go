package scan

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"
)

func TestSchema(t *testing.T) {
	res := buildResult(t,
		testColumn{"id", "UInt64", nil},
		testColumn{"day", "Date", nil},
		testColumn{"ts", "DateTime", nil},
		testColumn{"n", "Int8", nil},
		testColumn{"x", "Float32", nil},
		testColumn{"s", "LowCardinality(String)", nil},
	)

	schema := Schema(Fields(res))
	require.Equal(t, 6, schema.NumFields())
	require.Equal(t, arrow.PrimitiveTypes.Int64, schema.Field(0).Type)
	require.Equal(t, arrow.FixedWidthTypes.Date32, schema.Field(1).Type)
	require.True(t, arrow.TypeEqual(TimestampType, schema.Field(2).Type))
	require.Equal(t, arrow.PrimitiveTypes.Int32, schema.Field(3).Type)
	require.Equal(t, arrow.PrimitiveTypes.Float64, schema.Field(4).Type)
	require.Equal(t, arrow.BinaryTypes.String, schema.Field(5).Type)

	md := schema.Field(5).Metadata
	idx := md.FindKey("clickhouse.type")
	require.GreaterOrEqual(t, idx, 0)
	require.Equal(t, "LowCardinality(String)", md.Values()[idx])
}

func TestRecord(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	res := buildResult(t,
		testColumn{"id", "UInt32", []string{"1", "2", "3"}},
		testColumn{"day", "Date", []string{"1970-01-02", "1970-01-03", "1970-01-04"}},
		testColumn{"ts", "DateTime", []string{"1", "2", "3"}},
		testColumn{"name", "String", []string{"a", "b", "c"}},
	)
	cur := NewCursor(res)
	schema := Schema(cur.Fields())

	b := cur.Pull(2)
	rec, err := Record(mem, schema, b)
	require.NoError(t, err)
	defer rec.Release()

	require.Equal(t, int64(2), rec.NumRows())
	require.Equal(t, int64(2), rec.Column(0).(*array.Int64).Value(1))
	require.Equal(t, arrow.Date32(2), rec.Column(1).(*array.Date32).Value(1))
	require.Equal(t, arrow.Timestamp(2_000_000), rec.Column(2).(*array.Timestamp).Value(1))
	require.Equal(t, "b", rec.Column(3).(*array.String).Value(1))
}

func TestRecord_FieldCountMismatch(t *testing.T) {
	res := buildResult(t, testColumn{"id", "UInt8", []string{"1"}})
	schema := Schema(append(Fields(res), Field{Name: "extra", Kind: VectorString}))

	_, err := Record(nil, schema, NewCursor(res).Pull(0))
	require.Error(t, err)
}
