package native

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseType_Primitives(t *testing.T) {
	for name, kind := range kindNames {
		if kind == KindEnum8 {
			continue
		}
		typ, params := ParseType(name)
		require.Equal(t, kind, typ.Kind, name)
		require.Equal(t, name, typ.Raw)
		require.Empty(t, params)
	}
}

func TestKind_String(t *testing.T) {
	for name, kind := range kindNames {
		require.Equal(t, name, kind.String())
	}
	require.Equal(t, "Unsupported", KindUnsupported.String())
	require.Equal(t, "Unsupported", Kind(200).String())
}

func TestParseType_CaseSensitive(t *testing.T) {
	typ, _ := ParseType("uint64")
	require.Equal(t, KindUnsupported, typ.Kind)
	require.Equal(t, "uint64", typ.Raw)
}

func TestParseType_UnsupportedKeepsFullName(t *testing.T) {
	typ, params := ParseType("Decimal(10, 2)")
	require.Equal(t, KindUnsupported, typ.Kind)
	require.Equal(t, "Decimal(10, 2)", typ.Raw)
	require.Equal(t, "(10, 2)", params)
}

func TestParseType_UnclosedParams(t *testing.T) {
	typ, params := ParseType("DateTime('UTC'")
	require.Equal(t, KindDateTime, typ.Kind)
	require.Empty(t, params)
}

func TestParseType_Enum8(t *testing.T) {
	typ, params := ParseType("Enum8('a'=0,'b'=1)")
	require.Equal(t, KindEnum8, typ.Kind)
	require.Equal(t, "('a'=0,'b'=1)", params)
	require.Equal(t, 2, typ.Enum.Len())

	name, ok := typ.Enum.Name(1)
	require.True(t, ok)
	require.Equal(t, "b", name)

	require.Equal(t, "unknown(5)", typ.Enum.Resolve(5))
	require.Equal(t, []string{"a", "b"}, typ.Enum.Entries())
}

func TestParseType_Enum8Spacing(t *testing.T) {
	typ, _ := ParseType("Enum8('up' = 1, 'down' = -1, broken, 'big' = 300)")
	require.Equal(t, KindEnum8, typ.Kind)
	require.Equal(t, 2, typ.Enum.Len())

	code, ok := typ.Enum.Code("down")
	require.True(t, ok)
	require.Equal(t, int8(-1), code)
}

func TestParseType_InvalidEnum8(t *testing.T) {
	for _, s := range []string{"Enum8", "Enum8()", "Enum8(garbage)", "Enum8('a' = 1"} {
		typ, _ := ParseType(s)
		require.Equal(t, KindUnsupported, typ.Kind, s)
		require.Equal(t, InvalidEnum8, typ.Raw, s)
	}
}

func TestKind_Size(t *testing.T) {
	require.Equal(t, 1, KindBool.Size())
	require.Equal(t, 2, KindDate.Size())
	require.Equal(t, 4, KindDateTime.Size())
	require.Equal(t, 8, KindFloat64.Size())
	require.Equal(t, 0, KindString.Size())
}

func TestColumn_AppendTextDefaults(t *testing.T) {
	u := NewColumn(ColumnType{Kind: KindUInt32, Raw: "UInt32"})
	u.AppendText("42")
	u.AppendText("not a number")
	u.AppendText("-1")
	require.Equal(t, []uint32{42, 0, 0}, u.(*FixedColumn[uint32]).Values)

	b := NewColumn(ColumnType{Kind: KindBool, Raw: "Bool"})
	b.AppendText("true")
	b.AppendText("maybe")
	require.Equal(t, []bool{true, false}, b.(*FixedColumn[bool]).Values)

	d := NewColumn(ColumnType{Kind: KindDate, Raw: "Date"})
	d.AppendText("1970-01-11")
	d.AppendText("2024-01-01T00:00:00Z")
	d.AppendText("garbage")
	require.Equal(t, []uint16{10, 19723, 0}, d.(*FixedColumn[uint16]).Values)

	dt := NewColumn(ColumnType{Kind: KindDateTime, Raw: "DateTime"})
	dt.AppendText("1970-01-01 00:01:00")
	dt.AppendText("1700000000")
	require.Equal(t, []uint32{60, 1700000000}, dt.(*FixedColumn[uint32]).Values)

	enumType, _ := ParseType("Enum8('a' = 1, 'b' = 2)")
	e := NewColumn(enumType)
	e.AppendText("b")
	e.AppendText("7")
	e.AppendText("zzz")
	require.Equal(t, "b", e.Value(0))
	require.Equal(t, "unknown(7)", e.Value(1))
	require.Equal(t, "unknown(0)", e.Value(2))
}
