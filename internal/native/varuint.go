package native

import (
	"errors"
	"io"
)

// MaxVarUIntLen is the longest encoding of a 64-bit VarUInt.
const MaxVarUIntLen = 10

// ReadVarUInt decodes one VarUInt and reports how many bytes it consumed.
//
// An end of input before the first byte is returned as io.EOF so callers can
// tell a clean end of stream apart from a value cut in half, which is
// reported as ErrTruncatedStream.
func ReadVarUInt(r io.ByteReader) (uint64, int, error) {
	var x uint64
	var shift uint

	for n := 0; n < MaxVarUIntLen; n++ {
		b, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if n == 0 {
					return 0, 0, io.EOF
				}
				return 0, n, ErrTruncatedStream
			}
			return 0, n, err
		}

		x |= uint64(b&0x7F) << shift
		shift += 7
		if b&0x80 == 0 {
			return x, n + 1, nil
		}
	}

	return 0, MaxVarUIntLen, ErrMalformedVarInt
}

// AppendVarUInt appends the VarUInt encoding of v to dst.
func AppendVarUInt(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}
