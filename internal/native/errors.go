package native

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedVarInt = errors.New("malformed VarUInt: no terminator within 10 bytes")
	ErrTruncatedStream = errors.New("truncated stream: unexpected end of input")
	ErrSchemaMismatch  = errors.New("schema mismatch")
	ErrInvalidFolder   = errors.New("invalid native folder")
)

// DecodeError carries the position at which decoding failed.
// Column is empty when the failure happened in a block header.
type DecodeError struct {
	Block  int
	Column string
	Offset int64
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("native: block %d at offset %d: %v", e.Block, e.Offset, e.Err)
	}
	return fmt.Sprintf("native: block %d, column %q at offset %d: %v", e.Block, e.Column, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
