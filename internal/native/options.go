package native

import (
	"fmt"
	"strings"
)

// Termination selects how the stream reader decides that no more blocks
// follow. A clean end of input at a block boundary ends the stream under
// every policy.
type Termination uint8

const (
	// StopAtEOF reads blocks until the input is exhausted.
	StopAtEOF Termination = iota
	// StopAfterFirstBlock reads exactly one block.
	StopAfterFirstBlock
	// StopOnEmptyBlock stops at the first block with a zero row count.
	StopOnEmptyBlock
	// StopOnShortBlock stops after the first block holding fewer rows than
	// the maximum block size.
	StopOnShortBlock
)

// DefaultMaxBlockSize is the block size ClickHouse fills before starting a
// new block when writing Native files.
const DefaultMaxBlockSize = 65409

var terminationNames = map[string]Termination{
	"eof":    StopAtEOF,
	"single": StopAfterFirstBlock,
	"empty":  StopOnEmptyBlock,
	"short":  StopOnShortBlock,
}

var terminationStrings = [...]string{
	StopAtEOF:           "eof",
	StopAfterFirstBlock: "single",
	StopOnEmptyBlock:    "empty",
	StopOnShortBlock:    "short",
}

func (t Termination) String() string {
	if int(t) < len(terminationStrings) {
		return terminationStrings[t]
	}
	return fmt.Sprintf("Termination(%d)", uint8(t))
}

// ParseTermination accepts "eof", "single", "empty" and "short". The empty
// string selects the default.
func ParseTermination(s string) (Termination, error) {
	if s == "" {
		return StopAtEOF, nil
	}
	t, ok := terminationNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown termination policy %q", s)
	}
	return t, nil
}

type options struct {
	termination  Termination
	maxBlockSize uint64
	byteCounts   bool
	varStrings   bool
}

func defaultOptions() options {
	return options{
		termination:  StopAtEOF,
		maxBlockSize: DefaultMaxBlockSize,
	}
}

// Option configures ReadAll.
type Option func(*options)

func WithTermination(t Termination) Option {
	return func(o *options) { o.termination = t }
}

// WithMaxBlockSize sets the full-block row count used by StopOnShortBlock.
func WithMaxBlockSize(n uint64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBlockSize = n
		}
	}
}

// WithByteCounts reads block column and row counts as single bytes instead
// of VarUInts, as some older fixed-layout files do.
func WithByteCounts() Option {
	return func(o *options) { o.byteCounts = true }
}

// WithVarUIntStrings reads string lengths as VarUInts. This is the layout
// ClickHouse servers produce; the default is a single length byte.
func WithVarUIntStrings() Option {
	return func(o *options) { o.varStrings = true }
}
