package native

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"strings"
	"unicode/utf8"
)

const (
	readBufferSize = 64 * 1024
	// stringChunk is the largest string allocated before its bytes are read.
	stringChunk = 64 * 1024
)

// reader is the byte cursor shared by every decoder. It tracks the offset
// so errors can point at the failing byte.
type reader struct {
	r       *bufio.Reader
	offset  int64
	scratch [8]byte

	varStrings bool
}

func newReader(r io.Reader) *reader {
	br, ok := r.(*bufio.Reader)
	if !ok || br.Size() < readBufferSize {
		br = bufio.NewReaderSize(r, readBufferSize)
	}
	return &reader{r: br}
}

func (r *reader) ReadByte() (byte, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return 0, err
	}
	r.offset++
	return b, nil
}

// atEOF reports whether the input is exhausted without consuming anything.
func (r *reader) atEOF() (bool, error) {
	_, err := r.r.Peek(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}

func (r *reader) varUInt() (uint64, error) {
	v, _, err := ReadVarUInt(r)
	if errors.Is(err, io.EOF) {
		return 0, ErrTruncatedStream
	}
	return v, err
}

func (r *reader) full(p []byte) error {
	n, err := io.ReadFull(r.r, p)
	r.offset += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrTruncatedStream
		}
		return err
	}
	return nil
}

func (r *reader) fixed(size int) ([]byte, error) {
	buf := r.scratch[:size]
	if err := r.full(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (r *reader) uint8() (uint8, error) {
	b, err := r.ReadByte()
	if errors.Is(err, io.EOF) {
		return 0, ErrTruncatedStream
	}
	return b, err
}

func (r *reader) uint16() (uint16, error) {
	b, err := r.fixed(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.fixed(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) uint64() (uint64, error) {
	b, err := r.fixed(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) float32() (float32, error) {
	v, err := r.uint32()
	return math.Float32frombits(v), err
}

func (r *reader) float64() (float64, error) {
	v, err := r.uint64()
	return math.Float64frombits(v), err
}

// string reads a length-prefixed string. The length is one byte unless the
// stream was opened with VarUInt string lengths.
func (r *reader) string() (string, error) {
	var n uint64
	if r.varStrings {
		v, err := r.varUInt()
		if err != nil {
			return "", err
		}
		n = v
	} else {
		b, err := r.uint8()
		if err != nil {
			return "", err
		}
		n = uint64(b)
	}

	if n == 0 {
		return "", nil
	}
	if n > math.MaxInt32 {
		return "", ErrTruncatedStream
	}

	if n <= stringChunk {
		buf := make([]byte, n)
		if err := r.full(buf); err != nil {
			return "", err
		}
		return cleanString(buf), nil
	}

	// Long lengths come from VarUInt prefixes; copy in chunks so a truncated
	// stream fails before the whole length is allocated.
	var sb bytes.Buffer
	sb.Grow(stringChunk)
	copied, err := io.CopyN(&sb, r.r, int64(n))
	r.offset += copied
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", ErrTruncatedStream
		}
		return "", err
	}
	return cleanString(sb.Bytes()), nil
}

// cleanString drops invalid UTF-8, replacement characters and NUL bytes.
// The format carries raw C-string byte runs that may contain all three.
func cleanString(b []byte) string {
	s := strings.ToValidUTF8(string(b), "")
	if strings.IndexByte(s, 0) < 0 && !strings.ContainsRune(s, utf8.RuneError) {
		return s
	}
	return strings.Map(func(r rune) rune {
		if r == 0 || r == utf8.RuneError {
			return -1
		}
		return r
	}, s)
}
