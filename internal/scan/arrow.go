package scan

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"native-exporter/internal/native"
)

// TimestampType is the Arrow type DateTime columns are exposed as.
var TimestampType = &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}

// ArrowType returns the Arrow type a field is exposed as. Date and DateTime
// keep their temporal meaning; everything else follows the vector kind.
func ArrowType(f Field) arrow.DataType {
	switch f.Source {
	case native.KindDate:
		return arrow.FixedWidthTypes.Date32
	case native.KindDateTime:
		return TimestampType
	}
	switch f.Kind {
	case VectorInt32:
		return arrow.PrimitiveTypes.Int32
	case VectorInt64:
		return arrow.PrimitiveTypes.Int64
	case VectorFloat64:
		return arrow.PrimitiveTypes.Float64
	default:
		return arrow.BinaryTypes.String
	}
}

// Schema builds the Arrow schema for fields. The source type string is kept
// in field metadata under "clickhouse.type".
func Schema(fields []Field) *arrow.Schema {
	out := make([]arrow.Field, len(fields))
	for i, f := range fields {
		out[i] = arrow.Field{
			Name:     f.Name,
			Type:     ArrowType(f),
			Metadata: arrow.NewMetadata([]string{"clickhouse.type"}, []string{f.Type}),
		}
	}
	return arrow.NewSchema(out, nil)
}

// Record converts a batch into an Arrow record batch laid out by schema.
// The caller releases the returned record.
func Record(mem memory.Allocator, schema *arrow.Schema, b Batch) (arrow.RecordBatch, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	if schema.NumFields() != len(b.Vectors) {
		return nil, fmt.Errorf("schema has %d fields, batch has %d vectors", schema.NumFields(), len(b.Vectors))
	}

	cols := make([]arrow.Array, len(b.Vectors))
	defer func() {
		for _, c := range cols {
			if c != nil {
				c.Release()
			}
		}
	}()

	for i := range b.Vectors {
		arr, err := buildArray(mem, schema.Field(i).Type, &b.Vectors[i])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", schema.Field(i).Name, err)
		}
		cols[i] = arr
	}

	return array.NewRecordBatch(schema, cols, int64(b.Rows)), nil
}

func buildArray(mem memory.Allocator, dt arrow.DataType, v *Vector) (arrow.Array, error) {
	switch dt.ID() {
	case arrow.INT32:
		bld := array.NewInt32Builder(mem)
		defer bld.Release()
		bld.AppendValues(v.Int32s, nil)
		return bld.NewArray(), nil
	case arrow.DATE32:
		bld := array.NewDate32Builder(mem)
		defer bld.Release()
		bld.Reserve(len(v.Int32s))
		for _, d := range v.Int32s {
			bld.UnsafeAppend(arrow.Date32(d))
		}
		return bld.NewArray(), nil
	case arrow.INT64:
		bld := array.NewInt64Builder(mem)
		defer bld.Release()
		bld.AppendValues(v.Int64s, nil)
		return bld.NewArray(), nil
	case arrow.TIMESTAMP:
		bld := array.NewTimestampBuilder(mem, dt.(*arrow.TimestampType))
		defer bld.Release()
		bld.Reserve(len(v.Int64s))
		for _, ts := range v.Int64s {
			bld.UnsafeAppend(arrow.Timestamp(ts))
		}
		return bld.NewArray(), nil
	case arrow.FLOAT64:
		bld := array.NewFloat64Builder(mem)
		defer bld.Release()
		bld.AppendValues(v.Float64s, nil)
		return bld.NewArray(), nil
	case arrow.STRING:
		bld := array.NewStringBuilder(mem)
		defer bld.Release()
		bld.AppendValues(v.Strings, nil)
		return bld.NewArray(), nil
	default:
		return nil, fmt.Errorf("unsupported arrow type %s", dt)
	}
}
