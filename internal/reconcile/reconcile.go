// Package reconcile checks that the identity stated in each business case PDF
// appears in the investments table.
package reconcile

import (
	"context"
	"fmt"
	"iter"
	"itdash/internal/identifier"
	"itdash/internal/models"
	"itdash/internal/pdftext"
	"log/slog"
	"path/filepath"
)

// RowSource is a restartable sequence of table rows. Rows is called once per
// PDF and must start from the first data row every time.
type RowSource interface {
	Rows() iter.Seq2[models.TableRow, error]
}

type Engine struct {
	extractor pdftext.Extractor
	parser    *identifier.Parser
	logger    *slog.Logger
}

func NewEngine(extractor pdftext.Extractor, parser *identifier.Parser, logger *slog.Logger) *Engine {
	if parser == nil {
		parser = identifier.MustNewParser(identifier.DefaultRules)
	}
	return &Engine{extractor: extractor, parser: parser, logger: logger}
}

// Reconcile extracts the record of every file in dir and scans the whole row
// sequence for it. Extraction and parse failures are kept on the file's
// result and the remaining files are still processed; a failure reading the
// rows aborts the run.
func (e *Engine) Reconcile(ctx context.Context, files []models.PdfFileReference, dir string, rows RowSource) ([]models.FileResult, error) {
	results := make([]models.FileResult, 0, len(files))

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		result := models.FileResult{File: file}

		record, err := e.Extract(ctx, filepath.Join(dir, file.FileName))
		if err != nil {
			e.logger.Error("failed to extract identity from pdf", "file", file.FileName, "error", err)
			result.Err = err
			results = append(results, result)
			continue
		}
		result.Record = record

		e.logger.Info("comparing pdf against table", "file", file.FileName, "name", record.Name, "uii", record.UII)

		matched, err := matchRows(record, rows)
		if err != nil {
			return results, fmt.Errorf("scan table for %s: %w", file.FileName, err)
		}
		result.Rows = matched

		if len(matched) == 0 {
			e.logger.Warn("no match found", "file", file.FileName)
		}
		for _, n := range matched {
			e.logger.Info("match found", "file", file.FileName, "row", n)
		}

		results = append(results, result)
	}

	return results, nil
}

func (e *Engine) Extract(ctx context.Context, path string) (models.InvestmentRecord, error) {
	pages, err := e.extractor.Pages(ctx, path)
	if err != nil {
		return models.InvestmentRecord{}, err
	}
	record, err := e.parser.Parse(pages)
	if err != nil {
		return models.InvestmentRecord{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return record, nil
}

func matchRows(record models.InvestmentRecord, rows RowSource) ([]int, error) {
	var matched []int
	for row, err := range rows.Rows() {
		if err != nil {
			return nil, err
		}
		if row.Record.Equal(record) {
			matched = append(matched, row.Number)
		}
	}
	return matched, nil
}

// Matches flattens results into one entry per matching row.
func Matches(results []models.FileResult) []models.Match {
	var out []models.Match
	for _, r := range results {
		for _, row := range r.Rows {
			out = append(out, models.Match{File: r.File.FileName, Row: row, Record: r.Record})
		}
	}
	return out
}

// Unmatched lists the files that parsed but matched no row.
func Unmatched(results []models.FileResult) []string {
	var out []string
	for _, r := range results {
		if r.Err == nil && len(r.Rows) == 0 {
			out = append(out, r.File.FileName)
		}
	}
	return out
}
