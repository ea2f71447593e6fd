package exporter

import (
	"io"

	"github.com/go-pdf/fpdf"
)

const pdfRowHeight = 7.0

// PDFEncoder implements RowEncoder as a simple bordered grid.
// The whole document is held in memory until Flush.
type PDFEncoder struct {
	pdf      *fpdf.Fpdf
	w        io.Writer
	tr       func(string) string
	columns  []string
	colWidth float64
	err      error
	flushed  bool
}

func NewPDFEncoder(w io.Writer) *PDFEncoder {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 9)
	pdf.AddPage()
	return &PDFEncoder{
		pdf: pdf,
		w:   w,
		// Core fonts are cp1252; translate so non-ASCII text survives.
		tr: pdf.UnicodeTranslatorFromDescriptor(""),
	}
}

func (e *PDFEncoder) usableWidth() float64 {
	pageWidth, _ := e.pdf.GetPageSize()
	left, _, right, _ := e.pdf.GetMargins()
	return pageWidth - left - right
}

func (e *PDFEncoder) header() {
	e.pdf.SetFont("Arial", "B", 9)
	for _, col := range e.columns {
		e.pdf.CellFormat(e.colWidth, pdfRowHeight, e.tr(col), "1", 0, "C", false, 0, "")
	}
	e.pdf.Ln(-1)
	e.pdf.SetFont("Arial", "", 9)
}

// WriteHeader fixes the column widths and repeats the header on every page.
func (e *PDFEncoder) WriteHeader(columns []string) error {
	if e.err != nil {
		return e.err
	}

	e.columns = columns
	e.colWidth = e.usableWidth() / float64(max(len(columns), 1))
	e.pdf.SetHeaderFunc(func() {
		if e.pdf.PageNo() > 1 {
			e.header()
		}
	})
	e.header()
	return nil
}

func (e *PDFEncoder) WriteRow(values []any) error {
	if e.err != nil {
		return e.err
	}

	width := e.colWidth
	if width == 0 {
		width = e.usableWidth() / float64(max(len(values), 1))
	}

	for _, v := range values {
		e.pdf.CellFormat(width, pdfRowHeight, e.tr(toString(v)), "1", 0, "L", false, 0, "")
	}
	e.pdf.Ln(-1)

	if err := e.pdf.Error(); err != nil {
		e.err = err
	}
	return e.err
}

// Flush writes the document. It only runs once.
func (e *PDFEncoder) Flush() error {
	if e.err != nil || e.flushed {
		return e.err
	}
	e.flushed = true
	e.err = e.pdf.Output(e.w)
	return e.err
}

func (e *PDFEncoder) Error() error {
	return e.err
}

func (e *PDFEncoder) Close() error {
	return e.Flush()
}
