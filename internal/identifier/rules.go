// Package identifier extracts the investment name and UII from the text of a
// business case PDF.
//
// Fields are located by anchor phrases listed in a rule table. A rule names
// the page it reads, the phrase the value follows and the phrase that ends it.
// Rules on the same page are applied in order and each search starts where
// the previous field ended, so wording changes in the document are a one-line
// edit to DefaultRules.
package identifier

import (
	"errors"
	"fmt"
)

type Field string

const (
	FieldName Field = "Name"
	FieldUII  Field = "UII"
)

type Rule struct {
	Field Field
	// Page is the zero-based page index.
	Page  int
	Start string
	End   string
	// LastStart uses the last occurrence of Start on the page instead of the
	// first one.
	LastStart bool
}

var DefaultRules = []Rule{
	{
		Field:     FieldName,
		Page:      1,
		Start:     "1. Name of this Investment:",
		End:       "2. Unique Investment Identifier (UII):",
		LastStart: true,
	},
	{
		Field: FieldUII,
		Page:  1,
		Start: "2. Unique Investment Identifier (UII):",
		End:   "Section",
	},
}

var (
	ErrPageMissing    = errors.New("page not found in document")
	ErrAnchorNotFound = errors.New("anchor not found in expected page")
	ErrEmptyField     = errors.New("field is empty")
)

type PageError struct {
	Page  int
	Pages int
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page index %d requested from a document with %d pages", e.Page, e.Pages)
}

func (e *PageError) Unwrap() error { return ErrPageMissing }

type AnchorError struct {
	Field  Field
	Page   int
	Anchor string
}

func (e *AnchorError) Error() string {
	return fmt.Sprintf("%s: anchor %q not found in page index %d", e.Field, e.Anchor, e.Page)
}

func (e *AnchorError) Unwrap() error { return ErrAnchorNotFound }

type FieldError struct {
	Field Field
	Page  int
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: value between anchors is empty in page index %d", e.Field, e.Page)
}

func (e *FieldError) Unwrap() error { return ErrEmptyField }
