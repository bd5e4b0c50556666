package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const maxSheetNameLen = 31

// XLSXExporter renders datasets into a single-sheet workbook.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// Render writes headers in bold with an auto filter, one row per record, then the summary.
func (e *XLSXExporter) Render(data Dataset, title string) ([]byte, error) {
	if err := data.validate("xlsx"); err != nil {
		return nil, err
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	sheet := sheetName(title)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	widths := make([]int, len(data.Headers))
	for col, header := range data.Headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellStr(sheet, cell, header); err != nil {
			return nil, fmt.Errorf("set cell %s: %w", cell, err)
		}
		widths[col] = len(header)
	}
	for r, row := range data.Rows {
		for col, value := range data.Record(row) {
			cell, _ := excelize.CoordinatesToCellName(col+1, r+2)
			if err := f.SetCellStr(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
			if len(value) > widths[col] {
				widths[col] = len(value)
			}
		}
	}

	last, _ := excelize.CoordinatesToCellName(len(data.Headers), 1)
	bold, boldErr := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if boldErr == nil {
		_ = f.SetCellStyle(sheet, "A1", last, bold)
	}

	// Summary starts after one blank row below the table.
	summaryRow := len(data.Rows) + 3
	for i, line := range data.Summary {
		for col, value := range data.SummaryRecord(line) {
			if value == "" {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(col+1, summaryRow+i)
			if err := f.SetCellStr(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
			if col == 0 && boldErr == nil {
				_ = f.SetCellStyle(sheet, cell, cell, bold)
			}
		}
	}
	_ = f.AutoFilter(sheet, "A1:"+last, nil)
	for col, w := range widths {
		name, _ := excelize.ColumnNumberToName(col + 1)
		width := float64(w) * 1.1
		if width < 10 {
			width = 10
		}
		if width > 50 {
			width = 50
		}
		_ = f.SetColWidth(sheet, name, name, width)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadFirstSheet returns the rows of the workbook's first sheet as strings.
func ReadFirstSheet(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close() //nolint:errcheck

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func sheetName(title string) string {
	replacer := strings.NewReplacer(":", " ", "\\", " ", "/", " ", "?", " ", "*", " ", "[", " ", "]", " ")
	name := strings.TrimSpace(replacer.Replace(title))
	if name == "" {
		return "Report"
	}
	if len(name) > maxSheetNameLen {
		name = name[:maxSheetNameLen]
	}
	return name
}
