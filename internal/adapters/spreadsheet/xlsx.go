// Package spreadsheet renders an export workbook into an xlsx byte stream.
package spreadsheet

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/application/projections"
)

// ContentType is the MIME type of the produced file.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const maxColumnWidth = 30

// WriteXLSX serializes the workbook. Sheets appear in slice order and every
// column is sized to its longest value, capped at maxColumnWidth.
func WriteXLSX(wb projections.Workbook) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	for i, sheet := range wb.Sheets {
		if i == 0 {
			// Rename the default sheet instead of leaving an empty tab.
			if err := f.SetSheetName("Sheet1", sheet.Name); err != nil {
				return nil, fmt.Errorf("rename sheet %q: %w", sheet.Name, err)
			}
		} else {
			if _, err := f.NewSheet(sheet.Name); err != nil {
				return nil, fmt.Errorf("create sheet %q: %w", sheet.Name, err)
			}
		}
		if err := writeSheet(f, sheet); err != nil {
			return nil, err
		}
	}
	f.SetActiveSheet(0)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet projections.Sheet) error {
	header := make([]interface{}, len(sheet.Header))
	widths := make([]int, len(sheet.Header))
	for i, h := range sheet.Header {
		header[i] = h
		widths[i] = len(h)
	}
	if err := setRow(f, sheet.Name, 1, header); err != nil {
		return err
	}

	for rowIdx, row := range sheet.Rows {
		cells := make([]interface{}, len(row))
		for i, v := range row {
			cells[i] = v
			if i < len(widths) && len(v) > widths[i] {
				widths[i] = len(v)
			}
		}
		if err := setRow(f, sheet.Name, rowIdx+2, cells); err != nil {
			return err
		}
	}

	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("column name for %d: %w", i+1, err)
		}
		width := w + 2
		if width > maxColumnWidth {
			width = maxColumnWidth
		}
		if err := f.SetColWidth(sheet.Name, col, col, float64(width)); err != nil {
			return fmt.Errorf("set column width on %q: %w", sheet.Name, err)
		}
	}
	return nil
}

func setRow(f *excelize.File, sheetName string, rowNum int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return fmt.Errorf("cell name for row %d: %w", rowNum, err)
	}
	if err := f.SetSheetRow(sheetName, cell, &cells); err != nil {
		return fmt.Errorf("write row %d on %q: %w", rowNum, sheetName, err)
	}
	return nil
}
