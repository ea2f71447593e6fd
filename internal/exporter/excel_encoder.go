package exporter

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// maxExcelRows is the sheet row limit of the xlsx format.
const maxExcelRows = 1048576

// ExcelEncoder implements RowEncoder for Excel (.xlsx) files.
// It uses excelize.StreamWriter for efficient writing of large files.
type ExcelEncoder struct {
	f         *excelize.File
	sw        *excelize.StreamWriter
	w         io.Writer
	sheetName string
	rowIdx    int
	err       error
	flushed   bool
	dateStyle int
}

// NewExcelEncoder creates a new workbook with a single streamed sheet.
func NewExcelEncoder(w io.Writer) *ExcelEncoder {
	f := excelize.NewFile()
	sheetName := "Sheet1"
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return &ExcelEncoder{err: err}
	}

	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 22}) // m/d/yy h:mm
	if err != nil {
		return &ExcelEncoder{err: err}
	}

	return &ExcelEncoder{
		f:         f,
		sw:        sw,
		w:         w,
		sheetName: sheetName,
		rowIdx:    1,
		dateStyle: dateStyle,
	}
}

func (e *ExcelEncoder) setRow(row []any) error {
	if e.rowIdx > maxExcelRows {
		e.err = fmt.Errorf("excel row limit exceeded (%d rows)", maxExcelRows)
		return e.err
	}

	cell, err := excelize.CoordinatesToCellName(1, e.rowIdx)
	if err != nil {
		e.err = err
		return err
	}
	if err := e.sw.SetRow(cell, row); err != nil {
		e.err = err
		return err
	}
	e.rowIdx++
	return nil
}

func (e *ExcelEncoder) WriteHeader(columns []string) error {
	if e.err != nil {
		return e.err
	}

	row := make([]any, len(columns))
	for i, col := range columns {
		row[i] = col
	}
	return e.setRow(row)
}

// WriteRow keeps numbers numeric and renders times with a date style.
// Strings are guarded against formula injection.
func (e *ExcelEncoder) WriteRow(values []any) error {
	if e.err != nil {
		return e.err
	}

	row := make([]any, len(values))
	for i, v := range values {
		switch val := v.(type) {
		case nil:
			row[i] = "NULL"
		case []byte:
			row[i] = sanitizeCell(string(val))
		case string:
			row[i] = sanitizeCell(val)
		case time.Time:
			row[i] = excelize.Cell{Value: val, StyleID: e.dateStyle}
		default:
			row[i] = v
		}
	}
	return e.setRow(row)
}

// Flush writes the workbook. xlsx is a zip archive, so nothing reaches w
// before this call and it only runs once.
func (e *ExcelEncoder) Flush() error {
	if e.err != nil || e.flushed {
		return e.err
	}
	e.flushed = true

	if err := e.sw.Flush(); err != nil {
		e.err = err
		return err
	}
	if err := e.f.Write(e.w); err != nil {
		e.err = err
	}
	return e.err
}

func (e *ExcelEncoder) Error() error {
	return e.err
}

func (e *ExcelEncoder) Close() error {
	err := e.Flush()
	if e.f != nil {
		_ = e.f.Close()
	}
	return err
}
