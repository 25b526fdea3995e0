// Package brl parses Brazilian-formatted numeric and currency strings
// (comma decimal separator, dot thousands separator).
package brl

import (
	"regexp"
	"strconv"
	"strings"
)

var nonNumeric = regexp.MustCompile(`[^0-9.,\-]`)

// ParseNumber converts a pt-BR formatted number ("1.234,56", "62,01", "300")
// to a float64. Malformed input yields 0; the function never fails and never
// returns NaN.
func ParseNumber(s string) float64 {
	cleaned := nonNumeric.ReplaceAllString(strings.TrimSpace(s), "")
	if cleaned == "" {
		return 0
	}

	hasComma := strings.Contains(cleaned, ",")
	hasDot := strings.Contains(cleaned, ".")

	switch {
	case hasComma && hasDot:
		// Dot is the thousands separator, comma the decimal separator.
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	case hasComma:
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	}

	// A second stray separator ("1,2,3") makes ParseFloat fail; fall back to 0.
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseCurrency converts a pt-BR currency string ("R$ 1.234,56") to a float64.
// Currency glyphs and spacing are stripped before numeric parsing. Malformed
// input yields 0.
func ParseCurrency(s string) float64 {
	cleaned := strings.NewReplacer("R$", "", "r$", "", "$", "", " ", " ").Replace(s)
	v := ParseNumber(cleaned)
	if v < 0 {
		return 0
	}
	return v
}
