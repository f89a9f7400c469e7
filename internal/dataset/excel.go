package dataset

import (
	"fmt"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// LoadExcel reads a dataset from an Excel workbook. When sheet is empty
// the first sheet is used. The first row is the header; rows excelize
// returns short (trailing empty cells are not materialized) are padded
// with missing cells.
func LoadExcel(path, sheet string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook %s has no sheets", filepath.Base(path))
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty: missing header row", sheet)
	}

	table, err := NewTable(rows[0])
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", sheet, err)
	}

	width := table.ColumnCount()
	for i, row := range rows[1:] {
		cells := make([]Value, width)
		for c := 0; c < width; c++ {
			if c < len(row) {
				cells[c] = parseCell(row[c])
			} else {
				cells[c] = Missing
			}
		}
		if err := table.AppendRow(cells); err != nil {
			return nil, fmt.Errorf("sheet %q row %d: %w", sheet, i+2, err)
		}
	}
	return table, nil
}
