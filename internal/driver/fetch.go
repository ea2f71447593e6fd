package driver

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"strings"
	"time"

	"native-exporter/internal/native"
)

// FetchBlock runs query to completion and returns its rows as one
// single-block Result. Cells are converted through their text form, so a
// value that does not parse as the column's type becomes the type's zero
// value.
func FetchBlock(ctx context.Context, d Driver, query string) (*native.Result, error) {
	start := time.Now()

	rows, err := d.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get column types: %w", err)
	}

	descs := make([]native.ColumnDescriptor, len(names))
	cols := make([]native.Column, len(names))
	for i, name := range names {
		dbType := "String"
		if i < len(types) && types[i] != nil {
			dbType = types[i].DatabaseTypeName()
		}
		descs[i] = native.ColumnDescriptor{Name: name, Type: MapType(dbType)}
		cols[i] = native.NewColumn(descs[i].Type)
	}

	values := make([]any, len(names))
	scanArgs := make([]any, len(names))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("row scan failed: %w", err)
		}
		for i, v := range values {
			cols[i].AppendText(CellText(v))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	res, err := native.NewResult(descs, cols)
	if err != nil {
		return nil, err
	}
	slog.Debug("Fetched remote block", "driver", d.Name(), "columns", len(cols), "rows", res.NumRows, "duration", time.Since(start))
	return res, nil
}

// sqlTypeNames maps the type names MySQL and Postgres drivers report onto
// decoder types.
var sqlTypeNames = map[string]string{
	"TINYINT":           "Int8",
	"UNSIGNED TINYINT":  "UInt8",
	"SMALLINT":          "Int16",
	"INT2":              "Int16",
	"UNSIGNED SMALLINT": "UInt16",
	"MEDIUMINT":         "Int32",
	"INT":               "Int32",
	"INTEGER":           "Int32",
	"INT4":              "Int32",
	"UNSIGNED INT":      "UInt32",
	"BIGINT":            "Int64",
	"INT8":              "Int64",
	"UNSIGNED BIGINT":   "UInt64",
	"FLOAT":             "Float32",
	"FLOAT4":            "Float32",
	"REAL":              "Float32",
	"DOUBLE":            "Float64",
	"FLOAT8":            "Float64",
	"BOOL":              "Bool",
	"BOOLEAN":           "Bool",
	"DATE":              "Date",
	"DATETIME":          "DateTime",
	"TIMESTAMP":         "DateTime",
	"TIMESTAMPTZ":       "DateTime",
}

var typeWrappers = []string{"Nullable(", "LowCardinality("}

// MapType turns a driver's DatabaseTypeName into a column type. ClickHouse
// names are parsed directly after stripping Nullable and LowCardinality;
// MySQL and Postgres names are mapped to their equivalents; anything else
// is read as String, keeping the reported name.
func MapType(dbType string) native.ColumnType {
	inner := strings.TrimSpace(dbType)
	for unwrapped := true; unwrapped; {
		unwrapped = false
		for _, w := range typeWrappers {
			if strings.HasPrefix(inner, w) && strings.HasSuffix(inner, ")") {
				inner = inner[len(w) : len(inner)-1]
				unwrapped = true
			}
		}
	}

	if t, _ := native.ParseType(inner); t.Kind != native.KindUnsupported {
		return t
	}
	if name, ok := sqlTypeNames[strings.ToUpper(inner)]; ok {
		t, _ := native.ParseType(name)
		t.Raw = dbType
		return t
	}
	return native.ColumnType{Kind: native.KindString, Raw: dbType}
}

// CellText renders a scanned value in the text form Column.AppendText
// parses. NULL becomes "".
func CellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.DateTime)
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return ""
		}
		return CellText(rv.Elem().Interface())
	}
	return fmt.Sprint(v)
}
