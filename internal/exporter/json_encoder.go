package exporter

import (
	"bufio"
	"encoding/json"
	"io"
	"strconv"
)

// JSONEncoder implements RowEncoder for JSON Lines format.
// Each row is exported as a JSON object on a new line, keys in column order.
type JSONEncoder struct {
	w    *bufio.Writer
	keys [][]byte
	err  error
}

func NewJSONEncoder(w io.Writer) *JSONEncoder {
	return &JSONEncoder{w: bufio.NewWriterSize(w, 64*1024)}
}

// WriteHeader captures the column names to be used as JSON keys.
func (e *JSONEncoder) WriteHeader(columns []string) error {
	e.keys = make([][]byte, len(columns))
	for i, col := range columns {
		key, err := json.Marshal(col)
		if err != nil {
			e.err = err
			return err
		}
		e.keys[i] = key
	}
	return nil
}

func (e *JSONEncoder) key(i int) []byte {
	if i < len(e.keys) {
		return e.keys[i]
	}
	return []byte(`"column_` + strconv.Itoa(i) + `"`)
}

func (e *JSONEncoder) WriteRow(values []any) error {
	if e.err != nil {
		return e.err
	}

	e.w.WriteByte('{')
	for i, v := range values {
		if i > 0 {
			e.w.WriteByte(',')
		}
		e.w.Write(e.key(i))
		e.w.WriteByte(':')

		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		data, err := json.Marshal(v)
		if err != nil {
			e.err = err
			return err
		}
		e.w.Write(data)
	}
	e.w.WriteByte('}')
	if err := e.w.WriteByte('\n'); err != nil {
		e.err = err
		return err
	}
	return nil
}

func (e *JSONEncoder) Flush() error {
	if e.err != nil {
		return e.err
	}
	if err := e.w.Flush(); err != nil {
		e.err = err
	}
	return e.err
}

func (e *JSONEncoder) Error() error {
	return e.err
}

func (e *JSONEncoder) Close() error {
	return e.Flush()
}
