// Package pricetext turns marketplace and tender price strings into numbers.
package pricetext

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// VATRate is applied when a business price has to be derived from a regular one.
const VATRate = 1.20

// Absent is returned when a price string cannot be parsed.
var Absent = math.Inf(1)

var reNonPrice = regexp.MustCompile(`[^\d,.]+`)

// Parse converts a locale-formatted price ("1 234,56 ₽", "2.500.00") into a
// float. Unparsable or empty input yields Absent; it never fails.
func Parse(s string) float64 {
	cleaned := reNonPrice.ReplaceAllString(s, "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	// Every dot but the last is a thousands separator.
	if strings.Count(cleaned, ".") > 1 {
		last := strings.LastIndex(cleaned, ".")
		cleaned = strings.ReplaceAll(cleaned[:last], ".", "") + cleaned[last:]
	}
	if cleaned == "" {
		return Absent
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) {
		return Absent
	}
	return v
}

// IsAbsent reports whether v is the Absent sentinel.
func IsAbsent(v float64) bool {
	return math.IsInf(v, 1)
}

// FormatRub renders a whole-ruble amount with a space as thousands separator
// and a currency suffix, e.g. 12345.6 -> "12 346 ₽".
func FormatRub(v float64) string {
	digits := strconv.FormatFloat(v, 'f', 0, 64)
	neg := strings.HasPrefix(digits, "-")
	digits = strings.TrimPrefix(digits, "-")

	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	out := b.String() + " ₽"
	if neg {
		out = "-" + out
	}
	return out
}

// WithVAT derives a business (VAT inclusive) price text from a regular price
// text. It returns "" when the regular price is missing or not positive.
func WithVAT(regular string) string {
	v := Parse(regular)
	if IsAbsent(v) || v <= 0 {
		return ""
	}
	return FormatRub(v * VATRate)
}
