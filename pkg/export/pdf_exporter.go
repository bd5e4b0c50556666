package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Tables with at least this many columns render in landscape.
const landscapeColumns = 7

const (
	headerRowHeight = 8.0
	bodyRowHeight   = 7.0
	bottomMargin    = 15.0
)

// PDFExporter renders datasets as an A4 table. The header row repeats on every
// page, body rows are striped and numeric cells are right aligned.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with an optional title, the table and its summary.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if err := data.validate("pdf"); err != nil {
		return nil, err
	}
	orientation, usable := "P", 190.0
	if len(data.Headers) >= landscapeColumns {
		orientation, usable = "L", 277.0
	}
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(false, bottomMargin)
	pdf.AddPage()
	_, pageHeight := pdf.GetPageSize()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	colWidth := usable / float64(len(data.Headers))
	drawHeader := func() {
		pdf.SetFont("Arial", "B", 10)
		pdf.SetFillColor(220, 220, 220)
		for _, header := range data.Headers {
			pdf.CellFormat(colWidth, headerRowHeight, header, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
		pdf.SetFillColor(245, 245, 245)
	}
	drawHeader()

	for i, row := range data.Rows {
		if pdf.GetY()+bodyRowHeight > pageHeight-bottomMargin {
			pdf.AddPage()
			drawHeader()
		}
		for _, value := range data.Record(row) {
			align := "L"
			if numeric(value) {
				align = "R"
			}
			pdf.CellFormat(colWidth, bodyRowHeight, value, "1", 0, align, i%2 == 1, 0, "")
		}
		pdf.Ln(-1)
	}

	if len(data.Summary) > 0 {
		if pdf.GetY()+bodyRowHeight*float64(len(data.Summary)+1) > pageHeight-bottomMargin {
			pdf.AddPage()
		}
		pdf.Ln(4)
		for _, line := range data.Summary {
			pdf.SetFont("Arial", "B", 9)
			pdf.CellFormat(45, bodyRowHeight, line.Label, "", 0, "L", false, 0, "")
			pdf.SetFont("Arial", "", 9)
			pdf.CellFormat(0, bodyRowHeight, line.Value, "", 1, "L", false, 0, "")
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
