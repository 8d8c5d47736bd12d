// Package report exports booked schedules to xlsx workbooks.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

// workbook appends rows to the sheet added last.
type workbook struct {
	file        *excelize.File
	headerStyle int
	sheet       string
	row         int
}

func newWorkbook() (*workbook, error) {
	f := excelize.NewFile()
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#E0E7EF"}},
	})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}
	return &workbook{file: f, headerStyle: style}, nil
}

// addSheet starts a sheet with a bold, frozen header row.
func (w *workbook) addSheet(name string, columns []string, widths []float64) error {
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}

	if w.sheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	w.sheet = name
	w.row = 1

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := w.append(header); err != nil {
		return err
	}

	last, err := excelize.CoordinatesToCellName(len(columns), 1)
	if err != nil {
		return err
	}
	if err := w.file.SetCellStyle(name, "A1", last, w.headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if err := w.file.SetPanes(name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := w.file.SetColWidth(name, col, col, width); err != nil {
			return err
		}
	}
	return nil
}

func (w *workbook) append(values []any) error {
	if w.sheet == "" {
		return fmt.Errorf("no active sheet")
	}
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", w.row, err)
	}
	w.row++
	return nil
}

func (w *workbook) write(out io.Writer) error {
	return w.file.Write(out)
}

func (w *workbook) saveAs(path string) error {
	return w.file.SaveAs(path)
}

func (w *workbook) close() error {
	return w.file.Close()
}
