package exporter

import (
	"fmt"
	"io"

	"native-exporter/internal/scan"
)

// RowEncoder defines a common interface for different export formats (CSV, JSON, Excel).
// It allows the exporter to be agnostic of the underlying output format.
type RowEncoder interface {
	// WriteHeader writes the initial column headers to the output.
	// This should be called exactly once before any rows are written.
	WriteHeader(columns []string) error

	// WriteRow writes a single row of data.
	// The values slice length must match the headers length.
	WriteRow(values []any) error

	// Flush ensures all buffered data is written to the underlying writer.
	Flush() error

	// Error returns the first error that occurred during encoding, if any.
	Error() error

	io.Closer
}

// BatchWriter is implemented by encoders that take whole column batches.
// StreamBatches prefers it over WriteRow.
type BatchWriter interface {
	WriteBatch(b scan.Batch) error
}

// Format is an export file format.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatExcel Format = "xlsx"
	FormatPDF   Format = "pdf"
	FormatArrow Format = "arrow"
)

// Extension is the file suffix for f, including the dot.
func (f Format) Extension() string {
	if f == FormatJSON {
		return ".jsonl"
	}
	return "." + string(f)
}

// ParseFormat accepts the format names clients send. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "csv":
		return FormatCSV, nil
	case "json", "jsonl":
		return FormatJSON, nil
	case "xlsx", "excel":
		return FormatExcel, nil
	case "pdf":
		return FormatPDF, nil
	case "arrow", "ipc":
		return FormatArrow, nil
	default:
		return "", fmt.Errorf("unsupported format %q", s)
	}
}

// NewEncoder returns the encoder for format. fields is only needed by
// typed formats (Arrow).
func NewEncoder(format Format, w io.Writer, fields []scan.Field) (RowEncoder, error) {
	switch format {
	case FormatCSV:
		return NewCSVEncoder(w), nil
	case FormatJSON:
		return NewJSONEncoder(w), nil
	case FormatExcel:
		return NewExcelEncoder(w), nil
	case FormatPDF:
		return NewPDFEncoder(w), nil
	case FormatArrow:
		return NewArrowEncoder(w, fields, nil), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// sanitizeCell prefixes values that spreadsheet tools would evaluate as a
// formula.
func sanitizeCell(s string) string {
	if len(s) > 0 {
		first := s[0]
		if first == '=' || first == '+' || first == '-' || first == '@' {
			return "'" + s
		}
	}
	return s
}
