package exporter

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"native-exporter/internal/scan"
)

// ArrowEncoder writes an Arrow IPC stream, one record batch per scan batch.
// Rows written through WriteRow are buffered into batches of
// scan.MaxBatchSize.
type ArrowEncoder struct {
	w       io.Writer
	mem     memory.Allocator
	fields  []scan.Field
	schema  *arrow.Schema
	ipc     *ipc.Writer
	pending scan.Batch
	err     error
	closed  bool
}

// NewArrowEncoder creates an encoder for fields. A nil allocator uses the
// Go allocator.
func NewArrowEncoder(w io.Writer, fields []scan.Field, mem memory.Allocator) *ArrowEncoder {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	schema := scan.Schema(fields)
	return &ArrowEncoder{
		w:       w,
		mem:     mem,
		fields:  fields,
		schema:  schema,
		ipc:     ipc.NewWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(mem)),
		pending: scan.NewBatch(fields, scan.MaxBatchSize),
	}
}

// WriteHeader only checks that the columns match the schema; the schema
// message is written with the first batch.
func (e *ArrowEncoder) WriteHeader(columns []string) error {
	if e.err != nil {
		return e.err
	}
	if len(columns) != len(e.fields) {
		e.err = fmt.Errorf("arrow encoder: %d columns for %d fields", len(columns), len(e.fields))
	}
	return e.err
}

func (e *ArrowEncoder) WriteRow(values []any) error {
	if e.err != nil {
		return e.err
	}
	if len(values) != len(e.fields) {
		e.err = fmt.Errorf("arrow encoder: row has %d values for %d fields", len(values), len(e.fields))
		return e.err
	}

	for i, v := range values {
		e.pending.Vectors[i].Append(v)
	}
	e.pending.Rows++

	if e.pending.Rows >= scan.MaxBatchSize {
		return e.flushPending()
	}
	return nil
}

func (e *ArrowEncoder) WriteBatch(b scan.Batch) error {
	if e.err != nil {
		return e.err
	}
	if err := e.flushPending(); err != nil {
		return err
	}
	return e.write(b)
}

func (e *ArrowEncoder) write(b scan.Batch) error {
	if b.Rows == 0 {
		return nil
	}

	rec, err := scan.Record(e.mem, e.schema, b)
	if err != nil {
		e.err = err
		return err
	}
	defer rec.Release()

	if err := e.ipc.Write(rec); err != nil {
		e.err = fmt.Errorf("failed to write arrow record: %w", err)
	}
	return e.err
}

func (e *ArrowEncoder) flushPending() error {
	if e.pending.Rows == 0 {
		return nil
	}
	err := e.write(e.pending)
	e.pending = scan.NewBatch(e.fields, scan.MaxBatchSize)
	return err
}

func (e *ArrowEncoder) Flush() error {
	if e.err != nil {
		return e.err
	}
	return e.flushPending()
}

func (e *ArrowEncoder) Error() error {
	return e.err
}

// Close writes the end-of-stream marker. The schema message is emitted
// even when no rows were written.
func (e *ArrowEncoder) Close() error {
	if e.closed {
		return e.err
	}
	e.closed = true

	if err := e.Flush(); err != nil {
		_ = e.ipc.Close()
		return err
	}
	if err := e.ipc.Close(); err != nil {
		e.err = fmt.Errorf("failed to close arrow stream: %w", err)
	}
	return e.err
}
