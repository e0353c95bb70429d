// Package navigator drives the IT Dashboard site: it lists agencies, opens an
// agency's investments table and downloads the business case PDFs linked from it.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"itdash/internal/config"
	"itdash/internal/models"
	"itdash/internal/tablehtml"

	"github.com/PuerkitoBio/goquery"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

const (
	diveInSelector       = "#home-dive-in"
	agencyTilesSelector  = "#agency-tiles-widget"
	agencyTileSelector   = "#agency-tiles-widget .col-sm-12"
	agencyNameSelector   = ".h4.w200"
	agencyAmountSelector = ".h1.w900"

	investmentsTableSelector = "#investments-table-object"
	pageSizeSelector         = "select.form-control"
	nextPageSelector         = "#investments-table-object_paginate > span:nth-child(3) > a:nth-child(2)"

	businessCaseButtonSelector = "#business-case-pdf > a:nth-child(1)"
	generatingSelector         = "#business-case-pdf > span:nth-child(2)"

	// captchaSelector matches challenge widgets and forms, not prose that
	// mentions them.
	captchaSelector = `[class*="captcha"], [id*="captcha"], form[action*="captcha"], ` +
		`iframe[src*="captcha"], input[name*="captcha"]`
)

var (
	ErrDownloadTimeout = errors.New("download did not finish in time")
	ErrTableNotFound   = errors.New("investments table not found")
	ErrNoAgencies      = errors.New("no agency tiles found")
)

// Table is an agency's investments table as rendered on its page.
type Table struct {
	URL  string
	HTML string
}

type Navigator interface {
	ListAgencies(ctx context.Context) ([]models.AgencySummary, error)
	SelectAgency(ctx context.Context, agency models.AgencySummary) (Table, error)
	TableHTML(ctx context.Context, table Table) (string, error)
	PDFLinks(ctx context.Context, table Table) ([]string, error)
	// Download stores the business case of the investment page at link in the
	// output directory and returns the name it was stored under.
	Download(ctx context.Context, link string) (models.PdfFileReference, error)
	Close() error
}

type Options struct {
	SiteURL     string
	OutputDir   string
	UserAgent   string
	ShowBrowser bool

	PageTimeout     time.Duration
	ButtonTimeout   time.Duration
	DownloadTimeout time.Duration
	RequestTimeout  time.Duration
	PollInterval    time.Duration
}

func New(ctx context.Context, backend string, opts Options, logger *slog.Logger) (Navigator, error) {
	switch backend {
	case config.BackendBrowser, "":
		return NewBrowser(ctx, opts, logger)
	case config.BackendStatic:
		return NewStatic(ctx, opts, logger)
	default:
		return nil, fmt.Errorf("unknown navigator backend %q", backend)
	}
}

// AgencyNotFoundError is returned by FindAgency when no tile carries the
// requested name. Suggestions holds the closest names, best first.
type AgencyNotFoundError struct {
	Name        string
	Suggestions []string
}

func (e *AgencyNotFoundError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("agency %q not found", e.Name)
	}
	return fmt.Sprintf("agency %q not found, did you mean: %s", e.Name, strings.Join(e.Suggestions, "; "))
}

const maxSuggestions = 3

// FindAgency returns the agency whose name equals name exactly.
func FindAgency(agencies []models.AgencySummary, name string) (models.AgencySummary, error) {
	names := make([]string, len(agencies))
	for i, a := range agencies {
		if a.Name == name {
			return a, nil
		}
		names[i] = a.Name
	}
	return models.AgencySummary{}, &AgencyNotFoundError{Name: name, Suggestions: suggest(name, names)}
}

func suggest(name string, names []string) []string {
	ranks := fuzzy.RankFindNormalizedFold(strings.TrimSpace(name), names)
	sort.Sort(ranks)

	var out []string
	for _, r := range ranks {
		if !slices.Contains(out, r.Target) {
			out = append(out, r.Target)
		}
	}

	if len(out) == 0 {
		byDistance := slices.Clone(names)
		lowered := strings.ToLower(name)
		sort.SliceStable(byDistance, func(i, j int) bool {
			return fuzzy.LevenshteinDistance(lowered, strings.ToLower(byDistance[i])) <
				fuzzy.LevenshteinDistance(lowered, strings.ToLower(byDistance[j]))
		})
		out = slices.Compact(byDistance)
	}

	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

// parseAgencyTiles reads name, spending amount and link of every agency tile.
func parseAgencyTiles(rawHTML, pageURL string) ([]models.AgencySummary, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse agency tiles: %w", err)
	}

	var agencies []models.AgencySummary
	var resolveErr error
	doc.Find(agencyTileSelector).Each(func(_ int, tile *goquery.Selection) {
		name := strings.TrimSpace(tile.Find(agencyNameSelector).First().Text())
		if name == "" {
			return
		}
		agency := models.AgencySummary{
			Name:           name,
			SpendingAmount: strings.TrimSpace(tile.Find(agencyAmountSelector).First().Text()),
		}
		if href, ok := tile.Find("a[href]").First().Attr("href"); ok {
			agency.Href, err = tablehtml.Resolve(pageURL, href)
			if err != nil && resolveErr == nil {
				resolveErr = fmt.Errorf("agency %q: %w", name, err)
			}
		}
		agencies = append(agencies, agency)
	})
	if resolveErr != nil {
		return nil, resolveErr
	}
	if len(agencies) == 0 {
		return nil, ErrNoAgencies
	}
	return agencies, nil
}

// investmentsTable cuts the investments table out of an agency page.
func investmentsTable(rawHTML string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("failed to parse agency page: %w", err)
	}
	table := doc.Find(investmentsTableSelector).First()
	if table.Length() == 0 {
		return "", ErrTableNotFound
	}
	return goquery.OuterHtml(table)
}

func tableLinks(table Table) ([]string, error) {
	if strings.TrimSpace(table.HTML) == "" {
		return nil, ErrTableNotFound
	}
	return tablehtml.Links(table.HTML, table.URL)
}

// agencyURL is where the agency's investments are listed.
func agencyURL(siteURL string, agency models.AgencySummary) (string, error) {
	if agency.Href == "" {
		return "", fmt.Errorf("agency %q has no link", agency.Name)
	}
	return tablehtml.Resolve(siteURL, agency.Href)
}
