package workbook

import (
	"errors"
	"fmt"
	"iter"
	"itdash/internal/models"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	NameHeader = "Investment Title"
	UIIHeader  = "UII"
)

var (
	ErrColumnNotFound   = errors.New("required column not found")
	ErrColumnDuplicated = errors.New("required column appears more than once")
)

type ColumnError struct {
	Sheet   string
	Header  string
	Columns []string
	Err     error
}

func (e *ColumnError) Error() string {
	if len(e.Columns) > 0 {
		return fmt.Sprintf("sheet %q: header %q in columns %s: %v", e.Sheet, e.Header, strings.Join(e.Columns, ", "), e.Err)
	}
	return fmt.Sprintf("sheet %q: header %q: %v", e.Sheet, e.Header, e.Err)
}

func (e *ColumnError) Unwrap() error { return e.Err }

// Table is the Table Row Iterator over the investments sheet of a saved
// workbook.
type Table struct {
	file    *excelize.File
	sheet   string
	nameCol int
	uiiCol  int
	owned   bool
}

func OpenTable(path, sheet string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}

	t, err := NewTable(f, sheet)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	t.owned = true
	return t, nil
}

// NewTable locates the name and UII columns by their header cells in row 1.
// Each header must appear exactly once.
func NewTable(f *excelize.File, sheet string) (*Table, error) {
	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	defer func() { _ = rows.Close() }()

	var header []string
	if rows.Next() {
		if header, err = rows.Columns(); err != nil {
			return nil, fmt.Errorf("failed to read header of sheet %q: %w", sheet, err)
		}
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("failed to read header of sheet %q: %w", sheet, err)
	}

	nameCol, err := locateColumn(sheet, header, NameHeader)
	if err != nil {
		return nil, err
	}
	uiiCol, err := locateColumn(sheet, header, UIIHeader)
	if err != nil {
		return nil, err
	}

	return &Table{file: f, sheet: sheet, nameCol: nameCol, uiiCol: uiiCol}, nil
}

func locateColumn(sheet string, header []string, label string) (int, error) {
	var found []int
	for i, cell := range header {
		if strings.TrimSpace(cell) == label {
			found = append(found, i)
		}
	}

	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return 0, &ColumnError{Sheet: sheet, Header: label, Err: ErrColumnNotFound}
	default:
		names := make([]string, len(found))
		for i, idx := range found {
			names[i], _ = excelize.ColumnNumberToName(idx + 1)
		}
		return 0, &ColumnError{Sheet: sheet, Header: label, Columns: names, Err: ErrColumnDuplicated}
	}
}

// Rows returns a lazy sequence of the data rows, header excluded. Every call
// starts a new scan of the sheet, so the sequence can be ranged over any
// number of times. A read error is yielded once and ends the sequence.
func (t *Table) Rows() iter.Seq2[models.TableRow, error] {
	return func(yield func(models.TableRow, error) bool) {
		rows, err := t.file.Rows(t.sheet)
		if err != nil {
			yield(models.TableRow{}, fmt.Errorf("failed to read sheet %q: %w", t.sheet, err))
			return
		}
		defer func() { _ = rows.Close() }()

		// header
		if !rows.Next() {
			if err := rows.Error(); err != nil {
				yield(models.TableRow{}, err)
			}
			return
		}

		n := 0
		for rows.Next() {
			cols, err := rows.Columns()
			if err != nil {
				yield(models.TableRow{}, fmt.Errorf("failed to read row %d of sheet %q: %w", n+2, t.sheet, err))
				return
			}
			n++
			row := models.TableRow{
				Number: n,
				Record: models.NewInvestmentRecord(cell(cols, t.nameCol), cell(cols, t.uiiCol)),
			}
			if !yield(row, nil) {
				return
			}
		}
		if err := rows.Error(); err != nil {
			yield(models.TableRow{}, err)
		}
	}
}

func (t *Table) Close() error {
	if !t.owned {
		return nil
	}
	return t.file.Close()
}

func cell(cols []string, i int) string {
	if i < len(cols) {
		return cols[i]
	}
	return ""
}

// SliceSource serves an in-memory list of records as table rows.
type SliceSource []models.InvestmentRecord

func (s SliceSource) Rows() iter.Seq2[models.TableRow, error] {
	return func(yield func(models.TableRow, error) bool) {
		for i, rec := range s {
			if !yield(models.TableRow{Number: i + 1, Record: rec}, nil) {
				return
			}
		}
	}
}
