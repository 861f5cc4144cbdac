// Package normalizers provides the canonicalization helpers used to build
// duplicate grouping keys and to compare customer attributes.
package normalizers

import (
	"strings"
	"unicode"
)

const (
	// DefaultTailLength is the number of trailing phone digits used by the fuzzy key
	DefaultTailLength = 4
	// DefaultPrefixLength is the number of name characters used by the fuzzy key
	DefaultPrefixLength = 2

	// CountryCode is the international calling code folded into national numbers
	CountryCode = "82"
	// TrunkPrefix replaces the country code when a number is written internationally
	TrunkPrefix = "0"
)

// NormalizeDigits is the exact-pass grouping key: the digits of a phone number with
// a leading "+<CountryCode>" rewritten to the national trunk prefix, so
// "010-1234-5678" and "+82 (10) 1234 5678" collapse to the same key.
func NormalizeDigits(s string) string {
	digits := DigitsOnly(s)
	if !strings.HasPrefix(strings.TrimSpace(s), "+") || !strings.HasPrefix(digits, CountryCode) {
		return digits
	}
	national := digits[len(CountryCode):]
	if strings.HasPrefix(national, TrunkPrefix) {
		return national
	}
	return TrunkPrefix + national
}

// DigitsOnly removes every non-digit character
func DigitsOnly(s string) string {
	var result strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// PhoneTail returns the last n normalized digits of a phone number, or fewer
// when the number is shorter. A non-positive n yields an empty string.
func PhoneTail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	digits := NormalizeDigits(s)
	if len(digits) <= n {
		return digits
	}
	return digits[len(digits)-n:]
}

// NamePrefix strips whitespace, lower-cases and returns the first n characters of a name.
func NamePrefix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(strings.ToLower(RemoveWhitespace(s)))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n])
}

// RemoveWhitespace removes all whitespace characters
func RemoveWhitespace(s string) string {
	var result strings.Builder
	for _, r := range s {
		if !unicode.IsSpace(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// IsBlank reports whether a string is empty or whitespace only
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
