// Package tablehtml turns scraped HTML into rows and links.
package tablehtml

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var ErrNoTable = errors.New("no table found in html")

var reWhitespace = regexp.MustCompile(`\s+`)

func normalizeText(text string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(text, " "))
}

// Parse converts the first table of rawHTML into rows, header first. The
// header comes from thead when present, otherwise from the first row. Cells
// spanning several columns are repeated once per column.
func Parse(rawHTML string) ([][]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, ErrNoTable
	}

	header := table.Find("thead tr").First()
	body := table.Find("tbody tr")
	if header.Length() == 0 {
		all := table.Find("tr")
		if all.Length() == 0 {
			return nil, ErrNoTable
		}
		header = all.First()
		body = all.Slice(1, all.Length())
	}

	rows := [][]string{rowCells(header)}
	body.Each(func(_ int, tr *goquery.Selection) {
		rows = append(rows, rowCells(tr))
	})
	return rows, nil
}

func rowCells(tr *goquery.Selection) []string {
	var cells []string
	tr.ChildrenFiltered("th, td").Each(func(_ int, cell *goquery.Selection) {
		text := normalizeText(cell.Text())
		span := 1
		if v, ok := cell.Attr("colspan"); ok {
			if n, err := strconv.Atoi(v); err == nil && n > 1 {
				span = n
			}
		}
		for i := 0; i < span; i++ {
			cells = append(cells, text)
		}
	})
	return cells
}

// Links returns the absolute targets of all anchors in rawHTML, resolved
// against pageURL, without duplicates and in document order.
func Links(rawHTML string, pageURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return LinksFrom(doc.Selection, pageURL)
}

func LinksFrom(sel *goquery.Selection, pageURL string) ([]string, error) {
	baseURL, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base url %q: %w", pageURL, err)
	}

	var links []string
	seen := make(map[string]bool)

	sel.Find("a").Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		href = strings.TrimSpace(href)
		if !exists || href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
			return
		}
		parsedHref, err := url.Parse(href)
		if err != nil {
			return
		}

		resolved := baseURL.ResolveReference(parsedHref)
		resolved.Fragment = ""
		link := resolved.String()

		if !seen[link] {
			seen[link] = true
			links = append(links, link)
		}
	})

	return links, nil
}

// Resolve makes href absolute against pageURL.
func Resolve(pageURL, href string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}
