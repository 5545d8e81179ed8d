package dataset

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ReadWorkbook loads the five source tables from one workbook, one sheet per
// table. Sheet names match TableNames; the first row of each sheet is the
// header.
func ReadWorkbook(path string) (*Tables, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open workbook %s", path)
	}

	var ts Tables
	for _, name := range TableNames {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("dataset: workbook %s has no sheet %q", path, name)
		}
		t, err := sheetToTable(sheet, name)
		if err != nil {
			return nil, err
		}
		*ts.byName(name) = t
	}
	if err := ts.Validate(); err != nil {
		return nil, err
	}
	return &ts, nil
}

func sheetToTable(sheet *xlsx.Sheet, name string) (*Table, error) {
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("dataset: sheet %s is empty", name)
	}

	header := rowToStrings(sheet.Rows[0])
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}

	t := New(name, header)
	for _, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		if allEmpty(cells) {
			continue
		}
		t.Append(cells)
	}
	return t, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func allEmpty(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
