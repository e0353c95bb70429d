package identifier

import (
	"errors"
	"fmt"
	"strings"

	"itdash/internal/models"
)

type Parser struct {
	rules []Rule
}

var defaultParser = MustNewParser(DefaultRules)

func NewParser(rules []Rule) (*Parser, error) {
	seen := make(map[Field]bool, len(rules))

	for _, r := range rules {
		if r.Start == "" || r.End == "" {
			return nil, fmt.Errorf("rule for %s: start and end anchors are required", r.Field)
		}
		if r.Page < 0 {
			return nil, fmt.Errorf("rule for %s: negative page index %d", r.Field, r.Page)
		}
		if seen[r.Field] {
			return nil, fmt.Errorf("rule for %s: field declared twice", r.Field)
		}
		seen[r.Field] = true
	}

	for _, f := range []Field{FieldName, FieldUII} {
		if !seen[f] {
			return nil, fmt.Errorf("no rule for field %s", f)
		}
	}

	return &Parser{rules: rules}, nil
}

func MustNewParser(rules []Rule) *Parser {
	p, err := NewParser(rules)
	if err != nil {
		panic(err)
	}
	return p
}

// Parse extracts the record with DefaultRules.
func Parse(pages []string) (models.InvestmentRecord, error) {
	return defaultParser.Parse(pages)
}

func (p *Parser) Parse(pages []string) (models.InvestmentRecord, error) {
	values := make(map[Field]string, len(p.rules))
	cursor := 0
	lastPage := -1

	for _, r := range p.rules {
		if r.Page >= len(pages) {
			return models.InvestmentRecord{}, &PageError{Page: r.Page, Pages: len(pages)}
		}
		text := pages[r.Page]

		if r.Page != lastPage {
			cursor = 0
			lastPage = r.Page
		}

		value, end, err := extract(text, cursor, r)
		if err != nil {
			return models.InvestmentRecord{}, err
		}
		values[r.Field] = value
		cursor = end
	}

	return models.NewInvestmentRecord(values[FieldName], values[FieldUII]), nil
}

// extract returns the trimmed value of r found at or after cursor and the
// offset where its end anchor begins.
func extract(text string, cursor int, r Rule) (string, int, error) {
	window := text[cursor:]

	var start int
	if r.LastStart {
		start = strings.LastIndex(window, r.Start)
	} else {
		start = strings.Index(window, r.Start)
	}
	if start < 0 {
		return "", 0, &AnchorError{Field: r.Field, Page: r.Page, Anchor: r.Start}
	}
	valueStart := start + len(r.Start)

	length := strings.Index(window[valueStart:], r.End)
	if length < 0 {
		return "", 0, &AnchorError{Field: r.Field, Page: r.Page, Anchor: r.End}
	}

	value := strings.TrimSpace(window[valueStart : valueStart+length])
	if value == "" {
		return "", 0, &FieldError{Field: r.Field, Page: r.Page}
	}
	return value, cursor + valueStart + length, nil
}

// IsParseError reports whether err comes from a document that does not carry
// the expected anchors.
func IsParseError(err error) bool {
	return errors.Is(err, ErrAnchorNotFound) || errors.Is(err, ErrPageMissing) || errors.Is(err, ErrEmptyField)
}
