package native

import "strings"

// Kind is the closed set of column types the decoder understands.
type Kind uint8

const (
	KindUnsupported Kind = iota
	KindString
	KindUInt8
	KindUInt16
	KindUInt32
	KindUInt64
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindBool
	KindDate
	KindDateTime
	KindEnum8
)

var kindNames = map[string]Kind{
	"String":   KindString,
	"UInt8":    KindUInt8,
	"UInt16":   KindUInt16,
	"UInt32":   KindUInt32,
	"UInt64":   KindUInt64,
	"Int8":     KindInt8,
	"Int16":    KindInt16,
	"Int32":    KindInt32,
	"Int64":    KindInt64,
	"Float32":  KindFloat32,
	"Float64":  KindFloat64,
	"Bool":     KindBool,
	"Date":     KindDate,
	"DateTime": KindDateTime,
	"Enum8":    KindEnum8,
}

var kindStrings = [...]string{
	KindUnsupported: "Unsupported",
	KindString:      "String",
	KindUInt8:       "UInt8",
	KindUInt16:      "UInt16",
	KindUInt32:      "UInt32",
	KindUInt64:      "UInt64",
	KindInt8:        "Int8",
	KindInt16:       "Int16",
	KindInt32:       "Int32",
	KindInt64:       "Int64",
	KindFloat32:     "Float32",
	KindFloat64:     "Float64",
	KindBool:        "Bool",
	KindDate:        "Date",
	KindDateTime:    "DateTime",
	KindEnum8:       "Enum8",
}

func (k Kind) String() string {
	if int(k) < len(kindStrings) {
		return kindStrings[k]
	}
	return "Unsupported"
}

// Size returns the on-wire width of one fixed-width value, or 0 for kinds
// whose width is variable (String) or unknown (Unsupported).
func (k Kind) Size() int {
	switch k {
	case KindUInt8, KindInt8, KindBool, KindEnum8:
		return 1
	case KindUInt16, KindInt16, KindDate:
		return 2
	case KindUInt32, KindInt32, KindFloat32, KindDateTime:
		return 4
	case KindUInt64, KindInt64, KindFloat64:
		return 8
	default:
		return 0
	}
}

// InvalidEnum8 is the Raw name given to Enum8 columns whose definition
// could not be parsed.
const InvalidEnum8 = "Invalid Enum8"

// ColumnType is a parsed type string.
type ColumnType struct {
	Kind Kind
	// Raw is the type string as it appeared in the stream.
	Raw  string
	Enum *EnumMap
}

func (t ColumnType) String() string {
	return t.Raw
}

// ColumnDescriptor names one column of a stream. It is built from the first
// block and never changes afterwards.
type ColumnDescriptor struct {
	Name string
	Type ColumnType
}

// ParseType parses a type string such as "UInt64" or "Enum8('a' = 1)".
// The second result is the parenthesized parameter text including the
// parentheses, or "" when there is none or it is not closed.
func ParseType(s string) (ColumnType, string) {
	base, params := s, ""
	if idx := strings.IndexByte(s, '('); idx >= 0 {
		base = s[:idx]
		if strings.HasSuffix(s, ")") {
			params = s[idx:]
		}
	}

	kind, ok := kindNames[base]
	if !ok {
		return ColumnType{Kind: KindUnsupported, Raw: s}, params
	}

	if kind == KindEnum8 {
		enum := ParseEnum8(params)
		if enum.Len() == 0 {
			return ColumnType{Kind: KindUnsupported, Raw: InvalidEnum8}, params
		}
		return ColumnType{Kind: KindEnum8, Raw: s, Enum: enum}, params
	}

	return ColumnType{Kind: kind, Raw: s}, params
}
