package scan

import (
	"native-exporter/internal/native"
)

const (
	// DefaultBatchSize is used when a caller asks for a non-positive capacity.
	DefaultBatchSize = 1024
	// MaxBatchSize caps the rows of a single batch.
	MaxBatchSize = 2048
)

// Batch is one pull's worth of rows. A batch with zero rows is the end
// marker.
type Batch struct {
	Rows    int
	Vectors []Vector
	// Last is set on the batch that consumes the final row and on every
	// end marker.
	Last bool
}

// End reports whether b is the end marker.
func (b Batch) End() bool {
	return b.Rows == 0
}

// Row copies row i into dst, growing it as needed, and returns it.
func (b Batch) Row(i int, dst []any) []any {
	dst = dst[:0]
	for v := range b.Vectors {
		dst = append(dst, b.Vectors[v].Value(i))
	}
	return dst
}

// Cursor hands out a Result's rows in order. It is not safe for concurrent
// use; use Partition to scan one Result from several goroutines.
type Cursor struct {
	fields []Field
	emit   []emitFunc

	current int
	end     int
	done    bool
}

// NewCursor returns a cursor over every row of res.
func NewCursor(res *native.Result) *Cursor {
	return newRangeCursor(res, 0, res.NumRows)
}

func newRangeCursor(res *native.Result, from, to int) *Cursor {
	c := &Cursor{
		fields:  Fields(res),
		emit:    make([]emitFunc, len(res.Columns)),
		current: from,
		end:     to,
	}
	for i, col := range res.Columns {
		c.emit[i] = newEmitter(col)
	}
	return c
}

func (c *Cursor) Fields() []Field {
	return c.fields
}

// Remaining is the number of rows not yet handed out.
func (c *Cursor) Remaining() int {
	return c.end - c.current
}

// Done reports whether the end marker has been returned.
func (c *Cursor) Done() bool {
	return c.done
}

// Pull returns up to capacity rows. Capacity <= 0 selects DefaultBatchSize,
// larger values are clamped to MaxBatchSize. Once all rows are out, every
// call returns the end marker.
func (c *Cursor) Pull(capacity int) Batch {
	if capacity <= 0 {
		capacity = DefaultBatchSize
	}
	if capacity > MaxBatchSize {
		capacity = MaxBatchSize
	}

	rows := min(capacity, c.Remaining())
	batch := NewBatch(c.fields, rows)
	batch.Rows = rows

	if rows == 0 {
		c.done = true
		batch.Last = true
		return batch
	}

	for i, emit := range c.emit {
		emit(&batch.Vectors[i], c.current, c.current+rows)
	}
	c.current += rows
	batch.Last = c.current == c.end
	return batch
}

// Partition splits res into at most n cursors over disjoint, contiguous row
// ranges that together cover every row.
func Partition(res *native.Result, n int) []*Cursor {
	if n <= 1 || res.NumRows <= 1 {
		return []*Cursor{NewCursor(res)}
	}
	n = min(n, res.NumRows)

	chunk := (res.NumRows + n - 1) / n
	cursors := make([]*Cursor, 0, n)
	for from := 0; from < res.NumRows; from += chunk {
		cursors = append(cursors, newRangeCursor(res, from, min(from+chunk, res.NumRows)))
	}
	return cursors
}
