package exporter

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"native-exporter/internal/native"
	"native-exporter/internal/scan"
)

func testResult(t *testing.T, rows int) *native.Result {
	t.Helper()

	idType, _ := native.ParseType("UInt32")
	nameType, _ := native.ParseType("String")
	dayType, _ := native.ParseType("Date")
	tsType, _ := native.ParseType("DateTime")

	ids := native.NewColumn(idType)
	names := native.NewColumn(nameType)
	days := native.NewColumn(dayType)
	stamps := native.NewColumn(tsType)
	for i := 0; i < rows; i++ {
		ids.AppendText(strings.Repeat("1", 1+i%3))
		names.AppendText([]string{"alpha", "=SUM(A1)", "b,c"}[i%3])
		days.AppendText("2024-02-29")
		stamps.AppendText("2024-02-29 12:30:00")
	}

	res, err := native.NewResult([]native.ColumnDescriptor{
		{Name: "id", Type: idType},
		{Name: "name", Type: nameType},
		{Name: "day", Type: dayType},
		{Name: "ts", Type: tsType},
	}, []native.Column{ids, names, days, stamps})
	require.NoError(t, err)
	return res
}

func TestStreamBatches_CSV(t *testing.T) {
	var buf bytes.Buffer
	enc := NewCSVEncoder(&buf)

	var batches []int
	res, err := StreamBatches(context.Background(), scan.NewCursor(testResult(t, 3)), 2, enc, func(b scan.Batch) {
		batches = append(batches, b.Rows)
	})
	require.NoError(t, err)
	require.Equal(t, int64(3), res.RowsProcessed)
	require.Equal(t, 2, res.Batches)
	require.Equal(t, []int{2, 1}, batches)

	require.Equal(t, "id,name,day,ts\n"+
		"1,alpha,2024-02-29 00:00:00,2024-02-29 12:30:00\n"+
		"11,'=SUM(A1),2024-02-29 00:00:00,2024-02-29 12:30:00\n"+
		"111,\"b,c\",2024-02-29 00:00:00,2024-02-29 12:30:00\n", buf.String())
}

func TestStreamBatches_JSON(t *testing.T) {
	var buf bytes.Buffer
	_, err := StreamBatches(context.Background(), scan.NewCursor(testResult(t, 1)), 0, NewJSONEncoder(&buf), nil)
	require.NoError(t, err)

	require.Equal(t, `{"id":1,"name":"alpha","day":"2024-02-29T00:00:00Z","ts":"2024-02-29T12:30:00Z"}`+"\n", buf.String())
}

func TestStreamBatches_Empty(t *testing.T) {
	var buf bytes.Buffer
	res, err := StreamBatches(context.Background(), scan.NewCursor(testResult(t, 0)), 0, NewCSVEncoder(&buf), nil)
	require.NoError(t, err)
	require.Zero(t, res.RowsProcessed)
	require.Equal(t, "id,name,day,ts\n", buf.String())
}

func TestStreamBatches_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := StreamBatches(ctx, scan.NewCursor(testResult(t, 5)), 0, NewCSVEncoder(&bytes.Buffer{}), nil)
	require.ErrorIs(t, err, context.Canceled)
}

type brokenSource struct {
	*scan.Cursor
	err error
}

func (s *brokenSource) Pull(capacity int) scan.Batch {
	b := s.Cursor.Pull(capacity)
	if b.End() {
		s.err = errors.New("connection reset")
	}
	return b
}

func (s *brokenSource) Err() error { return s.err }

func TestStreamBatches_SourceFailure(t *testing.T) {
	src := &brokenSource{Cursor: scan.NewCursor(testResult(t, 2))}
	_, err := StreamBatches(context.Background(), src, 0, NewCSVEncoder(&bytes.Buffer{}), nil)
	require.ErrorContains(t, err, "connection reset")
}

func TestToString(t *testing.T) {
	require.Equal(t, "NULL", toString(nil))
	require.Equal(t, "-7", toString(int32(-7)))
	require.Equal(t, "9", toString(int64(9)))
	require.Equal(t, "0.5", toString(0.5))
	require.Equal(t, "1", toString(true))
	require.Equal(t, "raw", toString([]byte("raw")))
}

func TestSanitizeCell(t *testing.T) {
	require.Equal(t, "'-1", sanitizeCell("-1"))
	require.Equal(t, "'@x", sanitizeCell("@x"))
	require.Equal(t, "plain", sanitizeCell("plain"))
	require.Equal(t, "", sanitizeCell(""))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatCSV, f)

	f, err = ParseFormat("jsonl")
	require.NoError(t, err)
	require.Equal(t, ".jsonl", f.Extension())

	f, err = ParseFormat("excel")
	require.NoError(t, err)
	require.Equal(t, ".xlsx", f.Extension())

	_, err = ParseFormat("parquet")
	require.Error(t, err)
}
