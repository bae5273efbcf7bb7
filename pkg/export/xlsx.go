package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/nicktill/energyview/pkg/table"
)

// maxSheetName is the Excel limit on sheet name length.
const maxSheetName = 31

// SheetName makes name usable as a worksheet name.
func SheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, name)
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	if name == "" {
		return "Sheet1"
	}
	return name
}

// cell converts a formatted frame cell back to a spreadsheet value so numbers
// stay numeric. Missing values stay blank.
func cell(s string) any {
	if s == "" {
		return nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	return s
}

// WriteXLSX writes f to a single-sheet workbook named after the table.
func WriteXLSX(w io.Writer, name string, f table.Frame) (*Result, error) {
	book := excelize.NewFile()
	defer book.Close()

	sheet := SheetName(name)
	if err := book.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	sw, err := book.NewStreamWriter(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to open sheet writer: %w", err)
	}

	header := f.Header()
	row := make([]any, len(header))
	for i, h := range header {
		row[i] = h
	}
	if err := sw.SetRow("A1", row); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	for i := 0; i < f.Len(); i++ {
		cells := f.Row(i)
		row := make([]any, len(cells))
		for j, c := range cells {
			row[j] = cell(c)
		}
		ref, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(ref, row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush sheet: %w", err)
	}
	if err := book.Write(w); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return newResult(name, f, XLSX), nil
}
