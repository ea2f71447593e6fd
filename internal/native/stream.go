package native

import (
	"errors"
	"io"
)

type decoder struct {
	r    *reader
	opts options

	descriptors []ColumnDescriptor
	columns     []Column
	blocks      int
	rows        uint64
}

// ReadAll decodes a whole Native stream into memory. It returns either the
// complete result or an error; a partially decoded stream is never returned.
func ReadAll(r io.Reader, opts ...Option) (*Result, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	d := &decoder{r: newReader(r), opts: o}
	d.r.varStrings = o.varStrings

	if err := d.run(); err != nil {
		return nil, err
	}
	return d.result()
}

func (d *decoder) run() error {
	for {
		h, err := d.readHeader()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return d.wrap("", err)
		}

		first := d.descriptors == nil
		if !first && h.rows == 0 && d.opts.termination == StopOnEmptyBlock {
			return nil
		}

		if err := d.decodeBlock(h); err != nil {
			return err
		}
		d.blocks++
		d.rows += h.rows

		if d.stopAfter(h) {
			return nil
		}
	}
}

func (d *decoder) stopAfter(h blockHeader) bool {
	switch d.opts.termination {
	case StopAfterFirstBlock:
		return true
	case StopOnEmptyBlock:
		return h.rows == 0
	case StopOnShortBlock:
		return h.rows < d.opts.maxBlockSize
	default:
		return false
	}
}

func (d *decoder) result() (*Result, error) {
	// Row counts of a stream without columns carry no values.
	if len(d.columns) == 0 {
		d.rows = 0
	}
	res := &Result{
		Descriptors: d.descriptors,
		Columns:     d.columns,
		NumRows:     int(d.rows),
		Blocks:      d.blocks,
	}
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}
