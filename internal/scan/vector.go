package scan

import (
	"fmt"

	"native-exporter/internal/native"
)

// VectorKind is the physical type of an output column.
type VectorKind uint8

const (
	VectorInt32 VectorKind = iota
	VectorInt64
	VectorFloat64
	VectorString
)

func (k VectorKind) String() string {
	switch k {
	case VectorInt32:
		return "Int32"
	case VectorInt64:
		return "Int64"
	case VectorFloat64:
		return "Float64"
	case VectorString:
		return "String"
	default:
		return fmt.Sprintf("VectorKind(%d)", uint8(k))
	}
}

// microsPerSecond converts DateTime seconds to the host's microsecond
// timestamps.
const microsPerSecond = 1_000_000

// Vector is one output column of a batch. Only the slice matching Kind is
// populated. Fields are exported so batches can be gob-encoded between the
// agent and the reactor.
type Vector struct {
	Kind     VectorKind
	Int32s   []int32
	Int64s   []int64
	Float64s []float64
	Strings  []string
}

func newVector(kind VectorKind, capacity int) Vector {
	v := Vector{Kind: kind}
	switch kind {
	case VectorInt32:
		v.Int32s = make([]int32, 0, capacity)
	case VectorInt64:
		v.Int64s = make([]int64, 0, capacity)
	case VectorFloat64:
		v.Float64s = make([]float64, 0, capacity)
	case VectorString:
		v.Strings = make([]string, 0, capacity)
	}
	return v
}

func (v *Vector) Len() int {
	switch v.Kind {
	case VectorInt32:
		return len(v.Int32s)
	case VectorInt64:
		return len(v.Int64s)
	case VectorFloat64:
		return len(v.Float64s)
	default:
		return len(v.Strings)
	}
}

// Value returns row i as int32, int64, float64 or string.
func (v *Vector) Value(i int) any {
	switch v.Kind {
	case VectorInt32:
		return v.Int32s[i]
	case VectorInt64:
		return v.Int64s[i]
	case VectorFloat64:
		return v.Float64s[i]
	default:
		return v.Strings[i]
	}
}

// Field describes one output column.
type Field struct {
	Name string
	// Type is the source type string as it appeared in the stream.
	Type   string
	Source native.Kind
	Kind   VectorKind
	// Narrowed is set for UInt64 sources, whose values above MaxInt64 wrap
	// when written to an Int64 vector.
	Narrowed bool
}

// VectorKindOf maps a source kind to its output vector kind.
func VectorKindOf(k native.Kind) VectorKind {
	switch k {
	case native.KindUInt8, native.KindUInt16, native.KindInt8, native.KindInt16,
		native.KindInt32, native.KindBool, native.KindDate:
		return VectorInt32
	case native.KindUInt32, native.KindInt64, native.KindUInt64, native.KindDateTime:
		return VectorInt64
	case native.KindFloat32, native.KindFloat64:
		return VectorFloat64
	default:
		return VectorString
	}
}

// Fields describes the output columns of res in declaration order.
func Fields(res *native.Result) []Field {
	fields := make([]Field, len(res.Descriptors))
	for i, d := range res.Descriptors {
		fields[i] = Field{
			Name:     d.Name,
			Type:     d.Type.Raw,
			Source:   d.Type.Kind,
			Kind:     VectorKindOf(d.Type.Kind),
			Narrowed: d.Type.Kind == native.KindUInt64,
		}
	}
	return fields
}

// emitFunc appends rows [from, to) of one column to dst.
type emitFunc func(dst *Vector, from, to int)

func emitInt32[T any](vals []T, conv func(T) int32) emitFunc {
	return func(dst *Vector, from, to int) {
		for _, x := range vals[from:to] {
			dst.Int32s = append(dst.Int32s, conv(x))
		}
	}
}

func emitInt64[T any](vals []T, conv func(T) int64) emitFunc {
	return func(dst *Vector, from, to int) {
		for _, x := range vals[from:to] {
			dst.Int64s = append(dst.Int64s, conv(x))
		}
	}
}

// newEmitter picks the conversion for a column once, so batches are filled
// without a per-value type switch.
func newEmitter(col native.Column) emitFunc {
	kind := col.Type().Kind

	switch c := col.(type) {
	case *native.FixedColumn[uint8]:
		return emitInt32(c.Values, func(x uint8) int32 { return int32(x) })
	case *native.FixedColumn[int8]:
		return emitInt32(c.Values, func(x int8) int32 { return int32(x) })
	case *native.FixedColumn[int16]:
		return emitInt32(c.Values, func(x int16) int32 { return int32(x) })
	case *native.FixedColumn[uint16]:
		// UInt16 and Date share the buffer type.
		return emitInt32(c.Values, func(x uint16) int32 { return int32(x) })
	case *native.FixedColumn[int32]:
		return func(dst *Vector, from, to int) {
			dst.Int32s = append(dst.Int32s, c.Values[from:to]...)
		}
	case *native.FixedColumn[bool]:
		return emitInt32(c.Values, func(x bool) int32 {
			if x {
				return 1
			}
			return 0
		})
	case *native.FixedColumn[uint32]:
		if kind == native.KindDateTime {
			return emitInt64(c.Values, func(x uint32) int64 { return int64(x) * microsPerSecond })
		}
		return emitInt64(c.Values, func(x uint32) int64 { return int64(x) })
	case *native.FixedColumn[int64]:
		return func(dst *Vector, from, to int) {
			dst.Int64s = append(dst.Int64s, c.Values[from:to]...)
		}
	case *native.FixedColumn[uint64]:
		return emitInt64(c.Values, func(x uint64) int64 { return int64(x) })
	case *native.FixedColumn[float32]:
		return func(dst *Vector, from, to int) {
			for _, x := range c.Values[from:to] {
				dst.Float64s = append(dst.Float64s, float64(x))
			}
		}
	case *native.FixedColumn[float64]:
		return func(dst *Vector, from, to int) {
			dst.Float64s = append(dst.Float64s, c.Values[from:to]...)
		}
	case *native.StringColumn:
		return func(dst *Vector, from, to int) {
			dst.Strings = append(dst.Strings, c.Values[from:to]...)
		}
	case *native.EnumColumn:
		return func(dst *Vector, from, to int) {
			for i := from; i < to; i++ {
				dst.Strings = append(dst.Strings, c.Name(i))
			}
		}
	case *native.UnsupportedColumn:
		placeholder := c.Placeholder()
		return func(dst *Vector, from, to int) {
			for i := from; i < to; i++ {
				dst.Strings = append(dst.Strings, placeholder)
			}
		}
	default:
		return func(dst *Vector, from, to int) {
			for i := from; i < to; i++ {
				dst.Strings = append(dst.Strings, fmt.Sprint(col.Value(i)))
			}
		}
	}
}

// Append adds one value to the vector. Values whose Go type does not match
// the vector kind append the zero value.
func (v *Vector) Append(val any) {
	switch v.Kind {
	case VectorInt32:
		x, _ := val.(int32)
		v.Int32s = append(v.Int32s, x)
	case VectorInt64:
		x, _ := val.(int64)
		v.Int64s = append(v.Int64s, x)
	case VectorFloat64:
		x, _ := val.(float64)
		v.Float64s = append(v.Float64s, x)
	default:
		x, _ := val.(string)
		v.Strings = append(v.Strings, x)
	}
}

// NewBatch returns an empty batch with one vector per field, sized for
// capacity rows.
func NewBatch(fields []Field, capacity int) Batch {
	b := Batch{Vectors: make([]Vector, len(fields))}
	for i, f := range fields {
		b.Vectors[i] = newVector(f.Kind, capacity)
	}
	return b
}
