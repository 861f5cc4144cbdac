package normalizers

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"
)

// dateLayouts are tried in order when a date arrives as text
var dateLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
}

// StringEqual compares two strings ignoring case and surrounding whitespace
func StringEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// NumericEqual compares two values as exact decimals. Anything that does not
// parse as a number, including nil, is never equal to anything.
func NumericEqual(a, b any) bool {
	ra, ok := ToDecimal(a)
	if !ok {
		return false
	}
	rb, ok := ToDecimal(b)
	if !ok {
		return false
	}
	return ra.Cmp(rb) == 0
}

// ToDecimal converts strings, integers, floats and pointers to those into an exact rational.
func ToDecimal(v any) (*big.Rat, bool) {
	switch val := v.(type) {
	case nil:
		return nil, false
	case *big.Rat:
		if val == nil {
			return nil, false
		}
		return new(big.Rat).Set(val), true
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil, false
		}
		r, ok := new(big.Rat).SetString(s)
		return r, ok
	case *string:
		if val == nil {
			return nil, false
		}
		return ToDecimal(*val)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, false
		}
		// shortest decimal representation so 1.5 and "1.50" agree
		return ToDecimal(fmt.Sprintf("%v", val))
	case *float64:
		if val == nil {
			return nil, false
		}
		return ToDecimal(*val)
	case float32:
		return ToDecimal(float64(val))
	case int:
		return new(big.Rat).SetInt64(int64(val)), true
	case *int:
		if val == nil {
			return nil, false
		}
		return ToDecimal(*val)
	case int32:
		return new(big.Rat).SetInt64(int64(val)), true
	case int64:
		return new(big.Rat).SetInt64(val), true
	case *int64:
		if val == nil {
			return nil, false
		}
		return ToDecimal(*val)
	case uint:
		return new(big.Rat).SetUint64(uint64(val)), true
	case uint64:
		return new(big.Rat).SetUint64(val), true
	default:
		return nil, false
	}
}

// DateEqual compares two values by calendar date only. Values that are not a
// time or a parseable date string are never equal.
func DateEqual(a, b any) bool {
	ta, ok := ToDate(a)
	if !ok {
		return false
	}
	tb, ok := ToDate(b)
	if !ok {
		return false
	}
	ya, ma, da := ta.Date()
	yb, mb, db := tb.Date()
	return ya == yb && ma == mb && da == db
}

// ToDate converts a time, a time pointer or a date string into a time.
func ToDate(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		if val.IsZero() {
			return time.Time{}, false
		}
		return val, true
	case *time.Time:
		if val == nil {
			return time.Time{}, false
		}
		return ToDate(*val)
	case string:
		return ParseDate(val)
	case *string:
		if val == nil {
			return time.Time{}, false
		}
		return ParseDate(*val)
	default:
		return time.Time{}, false
	}
}

// ParseDate parses a date string using the supported layouts
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
