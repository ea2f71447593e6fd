package native

import (
	"encoding/binary"
	"math"
)

// streamBuilder assembles Native bytes for tests.
type streamBuilder struct {
	buf        []byte
	byteCounts bool
}

func (b *streamBuilder) count(n uint64) *streamBuilder {
	if b.byteCounts {
		b.buf = append(b.buf, byte(n))
		return b
	}
	b.buf = AppendVarUInt(b.buf, n)
	return b
}

func (b *streamBuilder) header(columns, rows uint64) *streamBuilder {
	return b.count(columns).count(rows)
}

func (b *streamBuilder) str(s string) *streamBuilder {
	b.buf = append(b.buf, byte(len(s)))
	b.buf = append(b.buf, s...)
	return b
}

func (b *streamBuilder) col(name, typ string) *streamBuilder {
	return b.str(name).str(typ)
}

func (b *streamBuilder) raw(p ...byte) *streamBuilder {
	b.buf = append(b.buf, p...)
	return b
}

func (b *streamBuilder) u16(vs ...uint16) *streamBuilder {
	for _, v := range vs {
		b.buf = binary.LittleEndian.AppendUint16(b.buf, v)
	}
	return b
}

func (b *streamBuilder) u32(vs ...uint32) *streamBuilder {
	for _, v := range vs {
		b.buf = binary.LittleEndian.AppendUint32(b.buf, v)
	}
	return b
}

func (b *streamBuilder) u64(vs ...uint64) *streamBuilder {
	for _, v := range vs {
		b.buf = binary.LittleEndian.AppendUint64(b.buf, v)
	}
	return b
}

func (b *streamBuilder) f64(vs ...float64) *streamBuilder {
	for _, v := range vs {
		b.buf = binary.LittleEndian.AppendUint64(b.buf, math.Float64bits(v))
	}
	return b
}

func (b *streamBuilder) bytes() []byte {
	return b.buf
}

// uint64Blocks builds a stream of one UInt64 column split into blocks of
// the given sizes, numbering rows from 0.
func uint64Blocks(sizes ...uint64) []byte {
	b := &streamBuilder{}
	next := uint64(0)
	for _, n := range sizes {
		b.header(1, n).col("id", "UInt64")
		for i := uint64(0); i < n; i++ {
			b.u64(next)
			next++
		}
	}
	return b.bytes()
}
