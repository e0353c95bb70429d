// Package report renders reconciliation results for people and spreadsheets.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"itdash/internal/models"

	"github.com/gocarina/gocsv"
	"github.com/jedib0t/go-pretty/v6/table"
)

const (
	StatusMatched   = "matched"
	StatusUnmatched = "unmatched"
	StatusError     = "error"
)

// Row is one PDF in the CSV report.
type Row struct {
	File   string `csv:"file"`
	Name   string `csv:"name"`
	UII    string `csv:"uii"`
	Rows   string `csv:"rows"`
	Status string `csv:"status"`
	Error  string `csv:"error"`
}

func Rows(results []models.FileResult) []Row {
	out := make([]Row, 0, len(results))
	for _, r := range results {
		row := Row{
			File: r.File.FileName,
			Name: r.Record.Name,
			UII:  r.Record.UII,
			Rows: joinRows(r.Rows),
		}
		switch {
		case r.Err != nil:
			row.Status = StatusError
			row.Error = r.Err.Error()
		case len(r.Rows) == 0:
			row.Status = StatusUnmatched
		default:
			row.Status = StatusMatched
		}
		out = append(out, row)
	}
	return out
}

func joinRows(rows []int) string {
	parts := make([]string, len(rows))
	for i, n := range rows {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, " ")
}

func PrintTable(w io.Writer, results []models.FileResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"File", "Name", "UII", "Rows", "Status"})

	matched := 0
	for _, r := range Rows(results) {
		status := r.Status
		if r.Error != "" {
			status = r.Error
		}
		if r.Status == StatusMatched {
			matched++
		}
		t.AppendRow(table.Row{r.File, r.Name, r.UII, r.Rows, status})
	}

	t.AppendFooter(table.Row{"", "", "", "Matched", fmt.Sprintf("%d/%d", matched, len(results))})
	t.Render()
}

// WriteCSV writes one line per result to path, replacing an existing file.
func WriteCSV(path string, results []models.FileResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer f.Close()

	rows := Rows(results)
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return f.Close()
}

// ReadCSV loads a report written by WriteCSV.
func ReadCSV(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []Row
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return rows, nil
}
