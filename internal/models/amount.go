package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrEmptyAmount = errors.New("empty amount")

var amountScales = map[byte]decimal.Decimal{
	'K': decimal.NewFromInt(1_000),
	'M': decimal.NewFromInt(1_000_000),
	'B': decimal.NewFromInt(1_000_000_000),
	'T': decimal.NewFromInt(1_000_000_000_000),
}

// ParseAmount reads dashboard figures such as "$6.08B", "$512.3M" or "1,204".
func ParseAmount(s string) (decimal.Decimal, error) {
	clean := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(s))
	if clean == "" {
		return decimal.Zero, ErrEmptyAmount
	}

	scale := decimal.NewFromInt(1)
	last := strings.ToUpper(clean[len(clean)-1:])[0]
	if m, ok := amountScales[last]; ok {
		scale = m
		clean = clean[:len(clean)-1]
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d.Mul(scale), nil
}

// Amount is SpendingAmount as a number. The verbatim string stays the value
// written to the workbook.
func (a AgencySummary) Amount() (decimal.Decimal, error) {
	return ParseAmount(a.SpendingAmount)
}
