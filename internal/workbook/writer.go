// Package workbook writes the output spreadsheet and reads investment
// records back from it.
package workbook

import (
	"fmt"
	"itdash/internal/models"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

const (
	AgenciesSheet    = "Agencies"
	InvestmentsSheet = "Individual Investments"

	defaultSheet = "Sheet1"
)

type Writer struct {
	file *excelize.File
	path string
}

// Create starts a new workbook at path. A file already there is replaced on
// Save.
func Create(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	f := excelize.NewFile()
	if err := f.SetSheetName(defaultSheet, AgenciesSheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to rename default sheet: %w", err)
	}

	return &Writer{file: f, path: path}, nil
}

func (w *Writer) Path() string {
	return w.path
}

func (w *Writer) WriteAgencies(agencies []models.AgencySummary) error {
	if err := w.setRow(AgenciesSheet, 1, []string{"Name", "Spending"}); err != nil {
		return err
	}
	for i, a := range agencies {
		if err := w.setRow(AgenciesSheet, i+2, []string{a.Name, a.SpendingAmount}); err != nil {
			return err
		}
	}
	return nil
}

// WriteInvestments stores the scraped table, header row first, as text cells.
func (w *Writer) WriteInvestments(rows [][]string) error {
	if _, err := w.file.NewSheet(InvestmentsSheet); err != nil {
		return fmt.Errorf("failed to create sheet %q: %w", InvestmentsSheet, err)
	}
	for i, row := range rows {
		if err := w.setRow(InvestmentsSheet, i+1, row); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) Save() error {
	if err := w.file.SaveAs(w.path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", w.path, err)
	}
	return nil
}

func (w *Writer) Close() error {
	return w.file.Close()
}

func (w *Writer) setRow(sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}

	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}

	if err := w.file.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to write row %d of sheet %q: %w", row, sheet, err)
	}
	return nil
}
