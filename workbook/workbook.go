// Package workbook writes tables as Excel workbooks.
package workbook

import (
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/nemo-facility/nemo-app-drive/records"
)

const (
	DefaultSheet = "Usage Events"

	// Maximum auto-sized column width, in characters.
	MaxColumnWidth = 50

	maxSheetName = 31
)

// Sheet is a named worksheet. Values in the Numeric columns that parse as
// numbers are written as numbers, everything else is written as text.
type Sheet struct {
	Name    string
	Table   *records.Table
	Numeric []string
}

// Write writes a single-sheet workbook.
func Write(w io.Writer, name string, table *records.Table) error {
	return WriteSheets(w, Sheet{Name: name, Table: table})
}

// WriteSheets writes a workbook with one worksheet per sheet, in order.
func WriteSheets(w io.Writer, sheets ...Sheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("workbook has no sheets")
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, sheet := range sheets {
		name := SheetName(sheet.Name)

		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return err
		}

		if err := writeSheet(f, name, sheet); err != nil {
			return fmt.Errorf("error writing sheet '%v' (%w)", name, err)
		}
	}

	f.SetActiveSheet(0)

	return f.Write(w)
}

// Read returns the contents of a worksheet as a table with the first row as the
// header. An empty sheet name reads the first worksheet.
func Read(r io.Reader, name string) (*records.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	if name == "" {
		name = f.GetSheetName(0)
	}

	rows, err := f.GetRows(name)
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet '%v' is empty", name)
	}

	table := records.NewTable(rows[0]...)
	for _, row := range rows[1:] {
		table.Append(records.Record(row))
	}

	return table, nil
}

// Sheets returns the worksheet names of a workbook.
func Sheets(r io.Reader) ([]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	return f.GetSheetList(), nil
}

// SheetName trims a name to the 31 character limit for worksheet names.
func SheetName(name string) string {
	if utf8.RuneCountInString(name) <= maxSheetName {
		return name
	}

	return string([]rune(name)[:maxSheetName])
}

func writeSheet(f *excelize.File, name string, sheet Sheet) error {
	table := sheet.Table
	if table == nil {
		table = records.NewTable()
	}

	numeric := map[int]bool{}
	for _, c := range sheet.Numeric {
		if ix := table.Column(c); ix >= 0 {
			numeric[ix] = true
		}
	}

	widths := make([]int, len(table.Header))

	header := make([]interface{}, len(table.Header))
	for i, h := range table.Header {
		header[i] = h
		widths[i] = utf8.RuneCountInString(h)
	}

	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return err
	}

	for r, record := range table.Records {
		row := make([]interface{}, len(table.Header))
		for i := range table.Header {
			v := ""
			if i < len(record) {
				v = record[i]
			}

			row[i] = v
			if numeric[i] {
				if n, err := strconv.ParseFloat(v, 64); err == nil {
					row[i] = n
				}
			}

			if l := utf8.RuneCountInString(v); l > widths[i] {
				widths[i] = l
			}
		}

		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}

		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return err
		}
	}

	for i, w := range widths {
		column, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}

		if err := f.SetColWidth(name, column, column, float64(ColumnWidth(w))); err != nil {
			return err
		}
	}

	return nil
}

// ColumnWidth is the auto-sized width for a column with the given longest value,
// i.e. the length plus 2 capped at MaxColumnWidth.
func ColumnWidth(longest int) int {
	if longest+2 > MaxColumnWidth {
		return MaxColumnWidth
	}

	return longest + 2
}
