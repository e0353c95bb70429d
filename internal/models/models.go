package models

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// InvestmentRecord is the identity of an IT investment as stated by one source.
type InvestmentRecord struct {
	Name string `bson:"name"`
	UII  string `bson:"uii"`
}

func NewInvestmentRecord(name, uii string) InvestmentRecord {
	return InvestmentRecord{
		Name: strings.TrimSpace(name),
		UII:  strings.TrimSpace(uii),
	}
}

// Equal compares both fields exactly after trimming surrounding whitespace.
func (r InvestmentRecord) Equal(other InvestmentRecord) bool {
	return strings.TrimSpace(r.Name) == strings.TrimSpace(other.Name) &&
		strings.TrimSpace(r.UII) == strings.TrimSpace(other.UII)
}

type AgencySummary struct {
	Name           string `bson:"name"`
	SpendingAmount string `bson:"spending_amount"`
	Href           string `bson:"href,omitempty"`
}

type PdfFileReference struct {
	FileName  string `bson:"file_name"`
	SourceURL string `bson:"source_url"`
}

// NewPdfFileReference names the file after the last path segment of the link.
func NewPdfFileReference(link string) (PdfFileReference, error) {
	u, err := url.Parse(link)
	if err != nil {
		return PdfFileReference{}, fmt.Errorf("parse link %q: %w", link, err)
	}

	segment := path.Base(strings.TrimRight(u.Path, "/"))
	if segment == "." || segment == "/" || segment == "" {
		return PdfFileReference{}, fmt.Errorf("link %q has no path segment to name the file after", link)
	}

	return PdfFileReference{
		FileName:  segment + ".pdf",
		SourceURL: link,
	}, nil
}

// TableRow is a data row of the investments sheet. Number is 1-based and
// counts data rows only, so the first row after the header is 1.
type TableRow struct {
	Number int
	Record InvestmentRecord
}

type Match struct {
	File   string           `bson:"file" csv:"file"`
	Row    int              `bson:"row" csv:"row"`
	Record InvestmentRecord `bson:"record" csv:"-"`
}

// FileResult is the reconciliation outcome of one PDF.
type FileResult struct {
	File   PdfFileReference
	Record InvestmentRecord
	Rows   []int
	Err    error
}

func (r FileResult) Matched() bool {
	return r.Err == nil && len(r.Rows) > 0
}

type RunRecord struct {
	ID             string   `bson:"_id"`
	Agency         string   `bson:"agency"`
	Workbook       string   `bson:"workbook"`
	Started        int64    `bson:"started"`
	Finished       int64    `bson:"finished"`
	AgencyCount    int      `bson:"agency_count"`
	TotalSpending  string   `bson:"total_spending"`
	PdfCount       int      `bson:"pdf_count"`
	MatchCount     int      `bson:"match_count"`
	UnmatchedFiles []string `bson:"unmatched_files"`
	Errors         []string `bson:"errors,omitempty"`
}
