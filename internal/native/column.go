package native

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Column is a decoded, homogeneous column buffer. Implementations are
// chosen once per column by NewColumn; decoding appends whole runs of rows
// so the type switch never happens per value.
type Column interface {
	Type() ColumnType
	Len() int
	// Value returns the decoded value at row i: the Go value for numeric
	// kinds, the resolved name for Enum8 and a placeholder for Unsupported.
	Value(i int) any
	// AppendText appends one value given in text form. Text that does not
	// parse appends the zero value of the column's type.
	AppendText(s string)

	decode(r *reader, rows uint64) error
}

// maxPrealloc caps how many rows are reserved up front from a row count read
// off the wire.
const maxPrealloc = 1 << 16

func growHint(rows uint64) int {
	if rows > maxPrealloc {
		return maxPrealloc
	}
	return int(rows)
}

// FixedColumn holds values of a fixed-width kind.
type FixedColumn[T any] struct {
	typ    ColumnType
	Values []T

	read  func(*reader) (T, error)
	parse func(string) T
}

func (c *FixedColumn[T]) Type() ColumnType { return c.typ }
func (c *FixedColumn[T]) Len() int         { return len(c.Values) }
func (c *FixedColumn[T]) Value(i int) any  { return c.Values[i] }

func (c *FixedColumn[T]) AppendText(s string) {
	c.Values = append(c.Values, c.parse(strings.TrimSpace(s)))
}

func (c *FixedColumn[T]) decode(r *reader, rows uint64) error {
	c.Values = slices.Grow(c.Values, growHint(rows))
	for i := uint64(0); i < rows; i++ {
		v, err := c.read(r)
		if err != nil {
			return err
		}
		c.Values = append(c.Values, v)
	}
	return nil
}

// StringColumn holds String values with invalid bytes already stripped.
type StringColumn struct {
	typ    ColumnType
	Values []string
}

func (c *StringColumn) Type() ColumnType { return c.typ }
func (c *StringColumn) Len() int         { return len(c.Values) }
func (c *StringColumn) Value(i int) any  { return c.Values[i] }

func (c *StringColumn) AppendText(s string) {
	c.Values = append(c.Values, cleanString([]byte(s)))
}

func (c *StringColumn) decode(r *reader, rows uint64) error {
	c.Values = slices.Grow(c.Values, growHint(rows))
	for i := uint64(0); i < rows; i++ {
		s, err := r.string()
		if err != nil {
			return err
		}
		c.Values = append(c.Values, s)
	}
	return nil
}

// EnumColumn keeps raw Enum8 codes; names are resolved on access.
type EnumColumn struct {
	typ   ColumnType
	Codes []int8
}

func (c *EnumColumn) Type() ColumnType { return c.typ }
func (c *EnumColumn) Len() int         { return len(c.Codes) }
func (c *EnumColumn) Value(i int) any  { return c.Name(i) }

// Name resolves row i against the column's enum definition.
func (c *EnumColumn) Name(i int) string {
	return c.typ.Enum.Resolve(c.Codes[i])
}

func (c *EnumColumn) AppendText(s string) {
	s = strings.TrimSpace(s)
	if code, ok := c.typ.Enum.Code(s); ok {
		c.Codes = append(c.Codes, code)
		return
	}
	c.Codes = append(c.Codes, parseInt[int8](s, 8))
}

func (c *EnumColumn) decode(r *reader, rows uint64) error {
	c.Codes = slices.Grow(c.Codes, growHint(rows))
	for i := uint64(0); i < rows; i++ {
		b, err := r.uint8()
		if err != nil {
			return err
		}
		c.Codes = append(c.Codes, int8(b))
	}
	return nil
}

// UnsupportedColumn stands in for a type the decoder does not know. Its
// on-wire layout is unknown, so it consumes no bytes and only counts rows.
type UnsupportedColumn struct {
	typ  ColumnType
	rows int
}

func (c *UnsupportedColumn) Type() ColumnType { return c.typ }
func (c *UnsupportedColumn) Len() int         { return c.rows }
func (c *UnsupportedColumn) Value(int) any    { return c.Placeholder() }

// Placeholder is the literal every row of the column renders as.
func (c *UnsupportedColumn) Placeholder() string {
	return "<unsupported " + c.typ.Raw + ">"
}

func (c *UnsupportedColumn) AppendText(string) { c.rows++ }

func (c *UnsupportedColumn) decode(_ *reader, rows uint64) error {
	c.rows += int(rows)
	return nil
}

// NewColumn allocates an empty buffer for t.
func NewColumn(t ColumnType) Column {
	switch t.Kind {
	case KindString:
		return &StringColumn{typ: t}
	case KindEnum8:
		return &EnumColumn{typ: t}
	case KindUInt8:
		return &FixedColumn[uint8]{typ: t, read: (*reader).uint8, parse: func(s string) uint8 { return parseUint[uint8](s, 8) }}
	case KindUInt16:
		return &FixedColumn[uint16]{typ: t, read: (*reader).uint16, parse: func(s string) uint16 { return parseUint[uint16](s, 16) }}
	case KindUInt32:
		return &FixedColumn[uint32]{typ: t, read: (*reader).uint32, parse: func(s string) uint32 { return parseUint[uint32](s, 32) }}
	case KindUInt64:
		return &FixedColumn[uint64]{typ: t, read: (*reader).uint64, parse: func(s string) uint64 { return parseUint[uint64](s, 64) }}
	case KindInt8:
		return &FixedColumn[int8]{typ: t, read: readSigned[int8, uint8]((*reader).uint8), parse: func(s string) int8 { return parseInt[int8](s, 8) }}
	case KindInt16:
		return &FixedColumn[int16]{typ: t, read: readSigned[int16, uint16]((*reader).uint16), parse: func(s string) int16 { return parseInt[int16](s, 16) }}
	case KindInt32:
		return &FixedColumn[int32]{typ: t, read: readSigned[int32, uint32]((*reader).uint32), parse: func(s string) int32 { return parseInt[int32](s, 32) }}
	case KindInt64:
		return &FixedColumn[int64]{typ: t, read: readSigned[int64, uint64]((*reader).uint64), parse: func(s string) int64 { return parseInt[int64](s, 64) }}
	case KindFloat32:
		return &FixedColumn[float32]{typ: t, read: (*reader).float32, parse: func(s string) float32 { return float32(parseFloat(s, 32)) }}
	case KindFloat64:
		return &FixedColumn[float64]{typ: t, read: (*reader).float64, parse: func(s string) float64 { return parseFloat(s, 64) }}
	case KindBool:
		return &FixedColumn[bool]{typ: t, read: readBool, parse: parseBool}
	case KindDate:
		return &FixedColumn[uint16]{typ: t, read: (*reader).uint16, parse: parseDate}
	case KindDateTime:
		return &FixedColumn[uint32]{typ: t, read: (*reader).uint32, parse: parseDateTime}
	default:
		return &UnsupportedColumn{typ: t}
	}
}

func readSigned[S int8 | int16 | int32 | int64, U uint8 | uint16 | uint32 | uint64](read func(*reader) (U, error)) func(*reader) (S, error) {
	return func(r *reader) (S, error) {
		v, err := read(r)
		return S(v), err
	}
}

func readBool(r *reader) (bool, error) {
	b, err := r.uint8()
	return b != 0, err
}

func parseUint[T uint8 | uint16 | uint32 | uint64](s string, bits int) T {
	v, err := strconv.ParseUint(s, 10, bits)
	if err != nil {
		return 0
	}
	return T(v)
}

func parseInt[T int8 | int16 | int32 | int64](s string, bits int) T {
	v, err := strconv.ParseInt(s, 10, bits)
	if err != nil {
		return 0
	}
	return T(v)
}

func parseFloat(s string, bits int) float64 {
	v, err := strconv.ParseFloat(s, bits)
	if err != nil {
		return 0
	}
	return v
}

func parseBool(s string) bool {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return v
}

var (
	dateLayouts     = []string{time.DateOnly, time.RFC3339Nano, time.DateTime}
	dateTimeLayouts = []string{time.DateTime, time.RFC3339Nano, time.DateOnly, "2006-01-02 15:04:05 -0700 MST"}
)

// parseDate accepts a calendar date or a raw day number.
func parseDate(s string) uint16 {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			days := t.Unix() / 86400
			if days < 0 || days > math.MaxUint16 {
				return 0
			}
			return uint16(days)
		}
	}
	return parseUint[uint16](s, 16)
}

// parseDateTime accepts a timestamp or raw Unix seconds.
func parseDateTime(s string) uint32 {
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			secs := t.Unix()
			if secs < 0 || secs > math.MaxUint32 {
				return 0
			}
			return uint32(secs)
		}
	}
	return parseUint[uint32](s, 32)
}
