package exporter

import (
	"context"
	"fmt"
	"time"

	"native-exporter/internal/native"
	"native-exporter/internal/scan"
)

// BatchSource is what StreamBatches pulls from. *scan.Cursor implements it,
// as do the batch streams sent by remote agents.
type BatchSource interface {
	Fields() []scan.Field
	Pull(capacity int) scan.Batch
}

// FallibleSource is a BatchSource that can break mid-stream. It returns the
// end marker on failure and reports the cause through Err.
type FallibleSource interface {
	BatchSource
	Err() error
}

// ExportResult contains stats about the export
type ExportResult struct {
	RowsProcessed int64
	Batches       int
	Duration      time.Duration
}

const microsPerDay = 86400 * 1_000_000

// StreamBatches pulls batches from src until the end marker and writes them
// to enc. The context is checked between batches. onBatch, when set, sees
// every non-empty batch after it was written.
func StreamBatches(ctx context.Context, src BatchSource, batchSize int, enc RowEncoder, onBatch func(scan.Batch)) (*ExportResult, error) {
	start := time.Now()
	fields := src.Fields()

	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	if err := enc.WriteHeader(names); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	bw, wholeBatches := enc.(BatchWriter)
	res := &ExportResult{}
	var row []any

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		b := src.Pull(batchSize)
		if b.End() {
			break
		}

		if wholeBatches {
			if err := bw.WriteBatch(b); err != nil {
				return nil, fmt.Errorf("batch write failed: %w", err)
			}
		} else {
			for i := 0; i < b.Rows; i++ {
				row = b.Row(i, row)
				for j := range row {
					row[j] = displayValue(fields[j], row[j])
				}
				if err := enc.WriteRow(row); err != nil {
					return nil, fmt.Errorf("row write failed: %w", err)
				}
			}
		}

		res.RowsProcessed += int64(b.Rows)
		res.Batches++
		if onBatch != nil {
			onBatch(b)
		}
	}

	if fs, ok := src.(FallibleSource); ok {
		if err := fs.Err(); err != nil {
			return nil, fmt.Errorf("source failed: %w", err)
		}
	}

	if err := enc.Flush(); err != nil {
		return nil, fmt.Errorf("flush failed: %w", err)
	}
	if err := enc.Error(); err != nil {
		return nil, fmt.Errorf("encoder error: %w", err)
	}

	res.Duration = time.Since(start)
	return res, nil
}

// displayValue turns Date and DateTime vector values back into times for
// row formats meant to be read by people.
func displayValue(f scan.Field, v any) any {
	switch f.Source {
	case native.KindDate:
		if days, ok := v.(int32); ok {
			return time.UnixMicro(int64(days) * microsPerDay).UTC()
		}
	case native.KindDateTime:
		if micros, ok := v.(int64); ok {
			return time.UnixMicro(micros).UTC()
		}
	}
	return v
}
