package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

// WriteXLSX writes the tables to a single sheet, each as a title row, a header
// row and every data row, separated by a blank row. Nothing is truncated.
func WriteXLSX(w io.Writer, sheet string, tables []Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet = sheetName(sheet)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	row := 1
	for i, t := range tables {
		if i > 0 {
			row++
		}
		if t.Title != "" {
			if err := setRow(f, sheet, row, []interface{}{t.Title}); err != nil {
				return err
			}
			row++
		}

		headers := make([]interface{}, len(t.Headers))
		for j, h := range t.Headers {
			headers[j] = h
		}
		if err := setRow(f, sheet, row, headers); err != nil {
			return err
		}
		row++

		for _, r := range t.Rows {
			values := make([]interface{}, len(r))
			for j, v := range r {
				values[j] = cellValue(v)
			}
			if err := setRow(f, sheet, row, values); err != nil {
				return err
			}
			row++
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write spreadsheet: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

// sheetName strips characters excelize rejects and keeps the 31 character limit
func sheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '-'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" {
		return "Relatorio"
	}
	if runes := []rune(name); len(runes) > maxSheetName {
		name = string(runes[:maxSheetName])
	}
	return name
}
