package domain

import (
	"strconv"
	"strings"
)

// IsMissingToken reports whether a raw text value denotes a missing value.
// The tokens match what the upstream CSV exports emit for unrecorded fields.
func IsMissingToken(s string) bool {
	switch strings.TrimSpace(s) {
	case "", "NA", "NaN", "nan", "null", "NULL":
		return true
	default:
		return false
	}
}

// ParseNumeric parses a raw text value, mapping missing tokens to NaN.
func ParseNumeric(s string) (float64, error) {
	if IsMissingToken(s) {
		return Missing(), nil
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// FormatNumeric renders a numeric value for text output. Missing values
// render as the empty string.
func FormatNumeric(v float64) string {
	if IsMissing(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// NormalizeCategorical trims a raw categorical value and maps missing tokens
// to the empty string.
func NormalizeCategorical(s string) string {
	if IsMissingToken(s) {
		return ""
	}
	return strings.TrimSpace(s)
}
