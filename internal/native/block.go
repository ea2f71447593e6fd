package native

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
)

type blockHeader struct {
	columns uint64
	rows    uint64
}

// readCount reads a column or row count in the configured width.
func (d *decoder) readCount(first bool) (uint64, error) {
	if d.opts.byteCounts {
		b, err := d.r.ReadByte()
		if errors.Is(err, io.EOF) {
			if first {
				return 0, io.EOF
			}
			return 0, ErrTruncatedStream
		}
		return uint64(b), err
	}

	v, _, err := ReadVarUInt(d.r)
	if errors.Is(err, io.EOF) && !first {
		return 0, ErrTruncatedStream
	}
	return v, err
}

// readHeader reads the counts that open a block. io.EOF means the input
// ended cleanly before a new block started.
func (d *decoder) readHeader() (blockHeader, error) {
	columns, err := d.readCount(true)
	if err != nil {
		return blockHeader{}, err
	}
	rows, err := d.readCount(false)
	if err != nil {
		return blockHeader{}, err
	}
	return blockHeader{columns: columns, rows: rows}, nil
}

// decodeBlock reads one block body after its header. The first block
// defines the schema; later blocks repeat the name and type strings, which
// are read and discarded.
func (d *decoder) decodeBlock(h blockHeader) error {
	// Row counts must fit an int, alone and summed over all blocks.
	if h.rows > math.MaxInt || d.rows > math.MaxInt-h.rows {
		return d.errorf("", "%w: block of %d rows after %d overflows the row count", ErrSchemaMismatch, h.rows, d.rows)
	}

	if d.descriptors == nil {
		descs := make([]ColumnDescriptor, 0, growHint(h.columns))
		cols := make([]Column, 0, growHint(h.columns))
		for i := uint64(0); i < h.columns; i++ {
			desc, err := d.readDescriptor()
			if err != nil {
				return d.wrap("", err)
			}
			descs = append(descs, desc)
			cols = append(cols, NewColumn(desc.Type))
		}
		d.descriptors = descs
		d.columns = cols
	} else {
		if h.columns != uint64(len(d.descriptors)) {
			return d.errorf("", "%w: block has %d columns, schema has %d", ErrSchemaMismatch, h.columns, len(d.descriptors))
		}
		for i := uint64(0); i < h.columns; i++ {
			if _, err := d.r.string(); err != nil {
				return d.wrap("", err)
			}
			if _, err := d.r.string(); err != nil {
				return d.wrap("", err)
			}
		}
	}

	for i, col := range d.columns {
		if err := col.decode(d.r, h.rows); err != nil {
			return d.wrap(d.descriptors[i].Name, err)
		}
	}

	slog.Debug("Decoded native block", "block", d.blocks, "columns", h.columns, "rows", h.rows, "offset", d.r.offset)
	return nil
}

func (d *decoder) readDescriptor() (ColumnDescriptor, error) {
	name, err := d.r.string()
	if err != nil {
		return ColumnDescriptor{}, err
	}
	typeName, err := d.r.string()
	if err != nil {
		return ColumnDescriptor{}, err
	}
	t, _ := ParseType(typeName)
	return ColumnDescriptor{Name: name, Type: t}, nil
}

func (d *decoder) wrap(column string, err error) error {
	return &DecodeError{Block: d.blocks, Column: column, Offset: d.r.offset, Err: err}
}

func (d *decoder) errorf(column, format string, args ...any) error {
	return d.wrap(column, fmt.Errorf(format, args...))
}
