package packing

import (
	"strings"
	"unicode"
)

// NormalizeBarcode cleans a raw scanner read: trims whitespace, unifies
// decimal separators, and drops a spurious fractional suffix when the
// value is purely numeric (some upstream sources emit "77012345.0").
func NormalizeBarcode(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	s = strings.ReplaceAll(s, ",", ".")

	if isNumericWithOptionalDot(s) {
		if i := strings.IndexByte(s, '.'); i >= 0 {
			s = s[:i]
		}
	}
	return s
}

// DigitsOnly strips every non-digit rune, giving the second equality form
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// BarcodesEqual reports whether two barcodes identify the same product:
// equal normalized forms, or equal digit-only forms.
func BarcodesEqual(a, b string) bool {
	na, nb := NormalizeBarcode(a), NormalizeBarcode(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	da, db := DigitsOnly(na), DigitsOnly(nb)
	return da != "" && da == db
}

// NormalizeName folds an item or product name for matching: lowercase
// with all whitespace removed.
func NormalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if !unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// isNumericWithOptionalDot reports whether s is digits with at most one
// dot and at least one digit.
func isNumericWithOptionalDot(s string) bool {
	dots := 0
	digits := 0
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '.':
			dots++
			if dots > 1 {
				return false
			}
		default:
			return false
		}
	}
	return digits > 0
}
