package exporter

import (
	"bufio"
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

// CSVEncoder wraps encoding/csv with type-aware, low-allocation logic.
type CSVEncoder struct {
	w      *csv.Writer
	buf    *bufio.Writer
	record []string
}

// NewCSVEncoder creates a new CSV encoder that writes to the provided io.Writer.
// It initializes a 64KB buffer to optimize write performance.
func NewCSVEncoder(w io.Writer) *CSVEncoder {
	buf := bufio.NewWriterSize(w, 64*1024)
	return &CSVEncoder{
		w:   csv.NewWriter(buf),
		buf: buf,
	}
}

func (e *CSVEncoder) WriteHeader(columns []string) error {
	e.record = make([]string, len(columns))
	return e.w.Write(columns)
}

// WriteRow converts values to text without fmt. The record slice is reused
// since csv.Writer does not retain it.
func (e *CSVEncoder) WriteRow(values []any) error {
	if cap(e.record) < len(values) {
		e.record = make([]string, len(values))
	}
	record := e.record[:len(values)]
	for i, v := range values {
		record[i] = sanitizeCell(toString(v))
	}
	return e.w.Write(record)
}

func (e *CSVEncoder) Flush() error {
	e.w.Flush()
	if err := e.w.Error(); err != nil {
		return err
	}
	return e.buf.Flush()
}

func (e *CSVEncoder) Error() error {
	return e.w.Error()
}

func (e *CSVEncoder) Close() error {
	return e.Flush()
}

func toString(val any) string {
	switch v := val.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(v)
	case string:
		return v
	case time.Time:
		return v.Format(time.DateTime)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return "1"
		}
		return "0"
	default:
		return ""
	}
}
