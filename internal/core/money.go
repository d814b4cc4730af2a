// Package core holds the cash ledger domain: amount parsing and formatting,
// the ledger row model with its patch-building edit operations, and the
// plate-payout value types.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is the marker appended by FormatForDisplay.
const DefaultCurrency = "₽"

func init() {
	// The cash service speaks bare JSON numbers, not quoted decimals.
	decimal.MarshalJSONWithoutQuotes = true
}

// ParseAmount converts free-form edit-field text to a signed amount.
//
// It strips surrounding and internal whitespace (spaces act as thousands
// separators in display strings), converts a comma decimal separator to a dot
// and accepts an optional leading minus. Anything unparseable, including the
// empty string, yields zero: malformed entry means "no value", not a fault.
// The result is rounded half-up to two decimal places.
func ParseAmount(raw string) decimal.Decimal {
	s := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == ' ' {
			return -1
		}
		return r
	}, raw)
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d.Round(2)
}

// FormatForEdit renders an amount for an edit field: exactly two fraction
// digits, no grouping. ParseAmount(FormatForEdit(x)) equals x for every
// two-decimal value.
func FormatForEdit(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FormatGrouped renders an amount with space-grouped thousands and no forced
// fraction digits.
func FormatGrouped(d decimal.Decimal) string {
	s := d.Round(2).String()
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, fracPart, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if i > 0 || lead > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(intPart[i : i+3])
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(fracPart)
	}
	return b.String()
}

// FormatForDisplay renders an amount for read-only display: grouped thousands,
// no forced fraction digits, and the currency marker appended.
func FormatForDisplay(d decimal.Decimal) string {
	return FormatGrouped(d) + " " + DefaultCurrency
}
