package table

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// cellValue renders a record value for export. Numbers keep their natural
// formatting, nil becomes an empty cell.
func cellValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// ExportTSV renders the table as tab-separated text suitable for pasting
// into a spreadsheet. Tabs and newlines inside values are flattened to
// spaces.
func ExportTSV(columns Columns, rows []*Row) string {
	clean := strings.NewReplacer("\t", " ", "\n", " ", "\r", " ")

	var b strings.Builder
	b.WriteString(strings.Join(columns, "\t"))
	b.WriteByte('\n')
	for _, row := range rows {
		for i, c := range columns {
			if i > 0 {
				b.WriteByte('\t')
			}
			b.WriteString(clean.Replace(cellValue(row.Data[c])))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// ExportCSV renders the table as a CSV file.
func ExportCSV(columns Columns, rows []*Row) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(columns); err != nil {
		return nil, fmt.Errorf("writing csv header: %w", err)
	}
	record := make([]string, len(columns))
	for _, row := range rows {
		for i, c := range columns {
			record[i] = cellValue(row.Data[c])
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("writing csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing csv: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportXLSX returns the table as an XLSX workbook.
func ExportXLSX(columns Columns, rows []*Row) ([]byte, error) {
	f := excelize.NewFile()
	const sheet = "Documents"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	if defaultIndex, _ := f.GetSheetIndex("Sheet1"); defaultIndex != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	for i, c := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, c)
	}

	for r, row := range rows {
		for i, c := range columns {
			cell, _ := excelize.CoordinatesToCellName(i+1, r+2)
			switch v := row.Data[c].(type) {
			case nil:
				// leave the cell empty
			case float64:
				_ = f.SetCellValue(sheet, cell, v)
			default:
				_ = f.SetCellValue(sheet, cell, cellValue(v))
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
