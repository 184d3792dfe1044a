package typeutils

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ToFloat64 converts any numeric value to float64. Durations and times are not
// treated as numbers.
func ToFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case decimal.Decimal:
		f, _ := n.Float64()
		return f, true
	}
	return 0, false
}

// IsNumeric reports whether v is a Go number.
func IsNumeric(v any) bool {
	_, ok := ToFloat64(v)
	return ok
}

// IsMissing reports whether v represents an absent cell: nil or NaN.
func IsMissing(v any) bool {
	if v == nil {
		return true
	}
	if f, ok := v.(float64); ok {
		return math.IsNaN(f)
	}
	if f, ok := v.(float32); ok {
		return math.IsNaN(float64(f))
	}
	return false
}

// ParseNumeric turns a text cell into int64 or float64 when it looks like a
// number, including the infinities written by acoustic loggers. Other text is
// returned trimmed; empty text becomes nil.
func ParseNumeric(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	switch strings.ToLower(s) {
	case "-infinity", "-inf":
		return math.Inf(-1)
	case "infinity", "inf", "+infinity":
		return math.Inf(1)
	case "nan":
		return math.NaN()
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// ParseTime tries the given layouts in order.
func ParseTime(s string, layouts ...string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
