package native

import (
	"strconv"
	"strings"
)

// EnumMap maps Enum8 codes to names in declaration order.
type EnumMap struct {
	codes  []int8
	names  []string
	byCode map[int8]string
	byName map[string]int8
}

func newEnumMap() *EnumMap {
	return &EnumMap{
		byCode: make(map[int8]string),
		byName: make(map[string]int8),
	}
}

// ParseEnum8 parses "('a' = 1, 'b' = 2)". Pairs that do not parse are
// skipped, so the result may be empty.
func ParseEnum8(params string) *EnumMap {
	m := newEnumMap()

	params = strings.TrimSpace(params)
	params = strings.TrimPrefix(params, "(")
	params = strings.TrimSuffix(params, ")")
	if params == "" {
		return m
	}

	for _, pair := range strings.Split(params, ",") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}

		name = strings.TrimSpace(name)
		if len(name) < 2 || name[0] != '\'' || name[len(name)-1] != '\'' {
			continue
		}
		name = name[1 : len(name)-1]

		code, err := strconv.ParseInt(strings.TrimSpace(value), 10, 8)
		if err != nil {
			continue
		}
		m.add(int8(code), name)
	}

	return m
}

func (m *EnumMap) add(code int8, name string) {
	if _, dup := m.byCode[code]; dup {
		return
	}
	m.codes = append(m.codes, code)
	m.names = append(m.names, name)
	m.byCode[code] = name
	m.byName[name] = code
}

func (m *EnumMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.codes)
}

// Name resolves a code. ok is false for codes the definition does not list.
func (m *EnumMap) Name(code int8) (string, bool) {
	if m == nil {
		return "", false
	}
	name, ok := m.byCode[code]
	return name, ok
}

// Code is the reverse of Name.
func (m *EnumMap) Code(name string) (int8, bool) {
	if m == nil {
		return 0, false
	}
	code, ok := m.byName[name]
	return code, ok
}

// Resolve returns the name for code, or a placeholder naming the code when
// the definition has no entry for it.
func (m *EnumMap) Resolve(code int8) string {
	if name, ok := m.Name(code); ok {
		return name
	}
	return "unknown(" + strconv.Itoa(int(code)) + ")"
}

// Entries returns the names in declaration order.
func (m *EnumMap) Entries() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}
