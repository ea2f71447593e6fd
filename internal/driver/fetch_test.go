package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"native-exporter/internal/native"
)

type fakeRows struct {
	names  []string
	types  []ColumnType
	rows   [][]any
	pos    int
	err    error
	closed bool
}

func (r *fakeRows) Columns() ([]string, error)         { return r.names, nil }
func (r *fakeRows) ColumnTypes() ([]ColumnType, error) { return r.types, nil }
func (r *fakeRows) Err() error                         { return r.err }

func (r *fakeRows) Close() error {
	r.closed = true
	return nil
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	for i, v := range r.rows[r.pos-1] {
		*dest[i].(*any) = v
	}
	return nil
}

type fakeDriver struct {
	rows *fakeRows
	err  error
}

func (d *fakeDriver) Name() string               { return "fake" }
func (d *fakeDriver) Ping(context.Context) error { return nil }
func (d *fakeDriver) Close() error               { return nil }
func (d *fakeDriver) Query(context.Context, string) (RowStreamer, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.rows, nil
}

func columns(pairs ...string) ([]string, []ColumnType) {
	var names []string
	var types []ColumnType
	for i := 0; i < len(pairs); i += 2 {
		names = append(names, pairs[i])
		types = append(types, staticColumn{name: pairs[i], typ: pairs[i+1]})
	}
	return names, types
}

func TestFetchBlock(t *testing.T) {
	names, types := columns(
		"id", "UInt64",
		"name", "Nullable(String)",
		"score", "Float64",
		"ts", "DateTime",
		"state", "Enum8('on' = 1, 'off' = 0)",
		"ok", "BOOLEAN",
	)
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	name := "bob"
	rows := &fakeRows{
		names: names,
		types: types,
		rows: [][]any{
			{uint64(1), &name, 1.5, ts, "on", true},
			{uint64(2), (*string)(nil), "garbage", nil, "off", []byte("false")},
		},
	}

	res, err := FetchBlock(context.Background(), &fakeDriver{rows: rows}, "SELECT 1")
	require.NoError(t, err)
	require.True(t, rows.closed)

	require.Equal(t, 2, res.NumRows)
	require.Equal(t, 1, res.Blocks)
	require.Equal(t, []uint64{1, 2}, res.Columns[0].(*native.FixedColumn[uint64]).Values)
	require.Equal(t, []string{"bob", ""}, res.Columns[1].(*native.StringColumn).Values)
	require.Equal(t, []float64{1.5, 0}, res.Columns[2].(*native.FixedColumn[float64]).Values)
	require.Equal(t, []uint32{uint32(ts.Unix()), 0}, res.Columns[3].(*native.FixedColumn[uint32]).Values)
	require.Equal(t, "on", res.Columns[4].Value(0))
	require.Equal(t, "off", res.Columns[4].Value(1))
	require.Equal(t, []bool{true, false}, res.Columns[5].(*native.FixedColumn[bool]).Values)
}

func TestFetchBlock_NoTypeMetadata(t *testing.T) {
	rows := &fakeRows{names: []string{"document"}, rows: [][]any{{`{"a":1}`}}}

	res, err := FetchBlock(context.Background(), &fakeDriver{rows: rows}, "users.find({})")
	require.NoError(t, err)
	require.Equal(t, native.KindString, res.Descriptors[0].Type.Kind)
	require.Equal(t, `{"a":1}`, res.Columns[0].Value(0))
}

func TestFetchBlock_Errors(t *testing.T) {
	boom := errors.New("boom")

	_, err := FetchBlock(context.Background(), &fakeDriver{err: boom}, "SELECT 1")
	require.ErrorIs(t, err, boom)

	names, types := columns("id", "UInt8")
	rows := &fakeRows{names: names, types: types, rows: [][]any{{int64(1)}}, err: boom}
	_, err = FetchBlock(context.Background(), &fakeDriver{rows: rows}, "SELECT 1")
	require.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rows = &fakeRows{names: names, types: types, rows: [][]any{{int64(1)}}}
	_, err = FetchBlock(ctx, &fakeDriver{rows: rows}, "SELECT 1")
	require.ErrorIs(t, err, context.Canceled)
}

func TestMapType(t *testing.T) {
	tests := []struct {
		in   string
		kind native.Kind
	}{
		{"UInt32", native.KindUInt32},
		{"Nullable(Int16)", native.KindInt16},
		{"LowCardinality(Nullable(String))", native.KindString},
		{"DateTime('Europe/Berlin')", native.KindDateTime},
		{"Enum8('a' = 1)", native.KindEnum8},
		{"Decimal(18, 4)", native.KindString},
		{"BIGINT", native.KindInt64},
		{"UNSIGNED BIGINT", native.KindUInt64},
		{"int4", native.KindInt32},
		{"TIMESTAMPTZ", native.KindDateTime},
		{"VARCHAR", native.KindString},
		{"JSONB", native.KindString},
	}
	for _, tt := range tests {
		require.Equal(t, tt.kind, MapType(tt.in).Kind, tt.in)
	}

	require.Equal(t, "Decimal(18, 4)", MapType("Decimal(18, 4)").Raw)
	require.Equal(t, "BIGINT", MapType("BIGINT").Raw)
}

func TestCellText(t *testing.T) {
	n := int32(7)
	var nilPtr *int64

	require.Equal(t, "", CellText(nil))
	require.Equal(t, "abc", CellText([]byte("abc")))
	require.Equal(t, "true", CellText(true))
	require.Equal(t, "-3", CellText(int64(-3)))
	require.Equal(t, "18446744073709551615", CellText(uint64(18446744073709551615)))
	require.Equal(t, "0.25", CellText(0.25))
	require.Equal(t, "7", CellText(&n))
	require.Equal(t, "", CellText(nilPtr))
	require.Equal(t, "2024-03-04 05:06:07", CellText(time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)))
	require.Equal(t, "12", CellText(uint16(12)))
}
