package native

import "fmt"

// Result is a fully materialized stream: one descriptor and one buffer per
// column, in declaration order.
type Result struct {
	Descriptors []ColumnDescriptor
	Columns     []Column
	NumRows     int
	Blocks      int
}

// NewResult assembles a single-block result from buffers built elsewhere,
// such as a remote query.
func NewResult(descs []ColumnDescriptor, cols []Column) (*Result, error) {
	if len(descs) != len(cols) {
		return nil, fmt.Errorf("%w: %d descriptors for %d columns", ErrSchemaMismatch, len(descs), len(cols))
	}
	res := &Result{Descriptors: descs, Columns: cols, Blocks: 1}
	if len(cols) > 0 {
		res.NumRows = cols[0].Len()
	}
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}

// Validate checks that every column holds exactly NumRows values.
func (r *Result) Validate() error {
	if len(r.Descriptors) != len(r.Columns) {
		return fmt.Errorf("%w: %d descriptors for %d columns", ErrSchemaMismatch, len(r.Descriptors), len(r.Columns))
	}
	for i, col := range r.Columns {
		if col.Len() != r.NumRows {
			return fmt.Errorf("%w: column %q has %d rows, expected %d",
				ErrSchemaMismatch, r.Descriptors[i].Name, col.Len(), r.NumRows)
		}
	}
	return nil
}

func (r *Result) NumColumns() int {
	return len(r.Columns)
}

// Column looks a column up by name.
func (r *Result) Column(name string) (Column, bool) {
	for i, d := range r.Descriptors {
		if d.Name == name {
			return r.Columns[i], true
		}
	}
	return nil, false
}

func (r *Result) Names() []string {
	names := make([]string, len(r.Descriptors))
	for i, d := range r.Descriptors {
		names[i] = d.Name
	}
	return names
}
