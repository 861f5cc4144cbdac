package normalizers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDigits(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"dashes", "010-1234-5678", "01012345678"},
		{"spaces and parens", "(010) 1234 5678", "01012345678"},
		{"international form", "+82 (10) 1234 5678", "01012345678"},
		{"international with trunk zero", "+82 010-1234-5678", "01012345678"},
		{"other country keeps its digits", "+1 555 0100", "15550100"},
		{"82 without plus is not a country code", "82-1234", "821234"},
		{"empty", "", ""},
		{"letters only", "no phone", ""},
		{"unicode noise", "☎ 02·555·0000", "025550000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeDigits(tt.input))
		})
	}
}

func TestNormalizeDigits_Idempotent(t *testing.T) {
	inputs := []string{"010-1234-5678", "", "abc", "+1 (555) 010-9999", "+82 10 1234 5678"}
	for _, in := range inputs {
		once := NormalizeDigits(in)
		assert.Equal(t, once, NormalizeDigits(once), in)
	}

	assert.Equal(t, NormalizeDigits("010-1234-5678"), NormalizeDigits("+82 (10) 1234 5678"))
}

func TestDigitsOnly(t *testing.T) {
	assert.Equal(t, "821012345678", DigitsOnly("+82 (10) 1234 5678"))
	assert.Equal(t, "", DigitsOnly("--"))
}

func TestPhoneTail(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		n        int
		expected string
	}{
		{"default tail", "010-1234-5678", DefaultTailLength, "5678"},
		{"shorter than n", "12", DefaultTailLength, "12"},
		{"exactly n", "1234", 4, "1234"},
		{"no digits", "n/a", 4, ""},
		{"zero length", "010-1234-5678", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PhoneTail(tt.input, tt.n))
		})
	}
}

func TestNamePrefix(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		n        int
		expected string
	}{
		{"latin", "  Jane Doe", DefaultPrefixLength, "ja"},
		{"inner whitespace", "J ane", 2, "ja"},
		{"hangul counted by character", "김민수", 2, "김민"},
		{"shorter than n", "A", 2, "a"},
		{"empty", "", 2, ""},
		{"zero length", "Jane", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NamePrefix(tt.input, tt.n))
		})
	}
}

func TestStringEqual(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected bool
	}{
		{"same", "Seoul", "Seoul", true},
		{"case", "SEOUL", "seoul", true},
		{"surrounding whitespace", " Seoul ", "seoul", true},
		{"different", "Seoul", "Busan", false},
		{"both empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StringEqual(tt.a, tt.b))
		})
	}
}

func TestNumericEqual(t *testing.T) {
	price := 1.5
	var nilPrice *float64

	tests := []struct {
		name     string
		a, b     any
		expected bool
	}{
		{"string vs float", "1.50", 1.5, true},
		{"pointer vs string", &price, "1.5", true},
		{"int vs float", 100, 100.0, true},
		{"different", 1.5, 1.51, false},
		{"unparsable", "abc", "abc", false},
		{"nil", nil, nil, false},
		{"nil pointer", nilPrice, 1.5, false},
		{"blank string", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NumericEqual(tt.a, tt.b))
		})
	}
}

func TestDateEqual(t *testing.T) {
	morning := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2024, 3, 15, 21, 30, 0, 0, time.UTC)
	var nilTime *time.Time

	tests := []struct {
		name     string
		a, b     any
		expected bool
	}{
		{"same day different time", morning, evening, true},
		{"pointer vs value", &morning, evening, true},
		{"date string", "2024-03-15", morning, true},
		{"slash layout", "2024/03/15", "2024.03.15", true},
		{"datetime string", "2024-03-15 23:59:59", "2024-03-15T00:00:00", true},
		{"different day", "2024-03-16", morning, false},
		{"unparsable", "someday", "someday", false},
		{"nil", nilTime, morning, false},
		{"wrong type", 20240315, morning, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DateEqual(tt.a, tt.b))
		})
	}
}
