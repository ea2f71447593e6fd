package exporter

import (
	"bytes"
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"native-exporter/internal/scan"
)

func TestArrowEncoder_Batches(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	cur := scan.NewCursor(testResult(t, 5))
	var buf bytes.Buffer
	enc := NewArrowEncoder(&buf, cur.Fields(), mem)

	res, err := StreamBatches(context.Background(), cur, 2, enc, nil)
	require.NoError(t, err)
	require.Equal(t, int64(5), res.RowsProcessed)
	require.NoError(t, enc.Close())

	r, err := ipc.NewReader(&buf, ipc.WithAllocator(mem))
	require.NoError(t, err)
	defer r.Release()

	require.Equal(t, arrow.FixedWidthTypes.Date32, r.Schema().Field(2).Type)

	var names []string
	var batches int
	for r.Next() {
		rec := r.RecordBatch()
		col := rec.Column(1).(*array.String)
		for i := 0; i < col.Len(); i++ {
			names = append(names, col.Value(i))
		}
		batches++
	}
	require.NoError(t, r.Err())
	require.Equal(t, []string{"alpha", "=SUM(A1)", "b,c", "alpha", "=SUM(A1)"}, names)
	require.Equal(t, 3, batches)
}

func TestArrowEncoder_Rows(t *testing.T) {
	fields := []scan.Field{{Name: "n", Kind: scan.VectorInt64}, {Name: "s", Kind: scan.VectorString}}
	var buf bytes.Buffer
	enc := NewArrowEncoder(&buf, fields, nil)

	require.NoError(t, enc.WriteHeader([]string{"n", "s"}))
	require.NoError(t, enc.WriteRow([]any{int64(1), "a"}))
	require.NoError(t, enc.WriteRow([]any{int64(2), "b"}))
	require.Error(t, enc.WriteRow([]any{int64(3)}))
	require.Error(t, enc.Close())
}

func TestArrowEncoder_EmptyStreamHasSchema(t *testing.T) {
	fields := []scan.Field{{Name: "n", Kind: scan.VectorInt32}}
	var buf bytes.Buffer
	enc := NewArrowEncoder(&buf, fields, nil)
	require.NoError(t, enc.Close())

	r, err := ipc.NewReader(&buf)
	require.NoError(t, err)
	defer r.Release()
	require.Equal(t, "n", r.Schema().Field(0).Name)
	require.False(t, r.Next())
}

func TestExcelEncoder(t *testing.T) {
	var buf bytes.Buffer
	enc := NewExcelEncoder(&buf)

	_, err := StreamBatches(context.Background(), scan.NewCursor(testResult(t, 2)), 0, enc, nil)
	require.NoError(t, err)
	require.NoError(t, enc.Close())

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"id", "name", "day", "ts"}, rows[0])
	require.Equal(t, "1", rows[1][0])
	require.Equal(t, "'=SUM(A1)", rows[2][1])
}

func TestPDFEncoder(t *testing.T) {
	var buf bytes.Buffer
	enc := NewPDFEncoder(&buf)

	_, err := StreamBatches(context.Background(), scan.NewCursor(testResult(t, 40)), 0, enc, nil)
	require.NoError(t, err)
	require.NoError(t, enc.Close())

	size := buf.Len()
	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))

	// A second Close must not append another document.
	require.NoError(t, enc.Close())
	require.Equal(t, size, buf.Len())
}
