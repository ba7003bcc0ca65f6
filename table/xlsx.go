package table

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Sheet1"

// WriteXLSX saves rows as a single sheet workbook at path. With keepFormat
// the header row is bold and numeric looking cells are stored as numbers.
func WriteXLSX(rows [][]string, path string, keepFormat bool) error {
	f := excelize.NewFile()
	defer f.Close()

	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return fmt.Errorf("failed to address cell: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, CellValue(value, keepFormat)); err != nil {
				return fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	if keepFormat && len(rows) > 0 && len(rows[0]) > 0 {
		style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return fmt.Errorf("failed to create header style: %w", err)
		}
		last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
		if err != nil {
			return fmt.Errorf("failed to address header: %w", err)
		}
		if err := f.SetCellStyle(sheetName, "A1", last, style); err != nil {
			return fmt.Errorf("failed to style header: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// CellValue is the value a Markdown cell is stored as: inline markup
// removed and, with keepFormat, numbers as float64.
func CellValue(raw string, keepFormat bool) any {
	return typedValue(StripInline(raw), keepFormat)
}

func typedValue(s string, keepFormat bool) any {
	if !keepFormat {
		return s
	}
	// leading zeros are identifiers, not numbers
	if len(s) > 1 && s[0] == '0' && s[1] != '.' {
		return s
	}
	if n, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil && s != "" {
		return n
	}
	return s
}

var inlineMarkers = strings.NewReplacer("**", "", "__", "", "`", "", "~~", "")

// StripInline removes Markdown emphasis and <br> markers from a cell.
func StripInline(s string) string {
	s = strings.ReplaceAll(s, "<br>", "\n")
	s = strings.ReplaceAll(s, "<br/>", "\n")
	return inlineMarkers.Replace(s)
}
