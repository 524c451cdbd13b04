// Package normalize turns raw listing strings and payload values into typed
// values. Every function here is pure.
package normalize

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	digitRun     = regexp.MustCompile(`\d+`)
	nonPriceChar = regexp.MustCompile(`[^0-9.]`)
)

// stringify renders a loosely typed value the way it would print.
func stringify(raw any) (string, bool) {
	switch v := raw.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case *string:
		if v == nil {
			return "", false
		}
		return *v, true
	case fmt.Stringer:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	default:
		return fmt.Sprint(v), true
	}
}

// ExtractNumber returns the first run of digits in raw as an integer.
// Decimals, thousands separators and signs are not understood: "1,200"
// yields 1 and "2.5" yields 2.
func ExtractNumber(raw any) *int {
	s, ok := stringify(raw)
	if !ok {
		return nil
	}
	run := digitRun.FindString(s)
	if run == "" {
		return nil
	}
	n, err := strconv.Atoi(run)
	if err != nil {
		return nil
	}
	return &n
}

// NormalizeBoolean maps booleans and yes/no words. Nil means no signal, and
// callers keep whatever value they had.
func NormalizeBoolean(raw any) *bool {
	t, f := true, false
	switch v := raw.(type) {
	case bool:
		return &v
	case *bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes":
			return &t
		case "false", "no":
			return &f
		}
	}
	return nil
}

// NormalizeAmenityField coerces an amenity field into a list. Strings holding
// a JSON array are decoded first.
func NormalizeAmenityField(raw any) []string {
	switch v := raw.(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return []string{}
		}
		if strings.HasPrefix(trimmed, "[") {
			var decoded []any
			if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
				return NormalizeAmenityField(decoded)
			}
		}
		return []string{v}
	default:
		return []string{}
	}
}

// AmenityKeywordMatch reports whether any keyword occurs in any entry,
// ignoring case.
func AmenityKeywordMatch(list []string, keywords []string) bool {
	for _, entry := range list {
		lower := strings.ToLower(entry)
		for _, kw := range keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return true
			}
		}
	}
	return false
}

// ParsePrice reads a price amount. Commas and spaces are dropped before
// parsing; anything still unparseable is reduced to digits and dots.
func ParsePrice(raw any) *float64 {
	switch v := raw.(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return &f
		}
		return nil
	}

	s, ok := stringify(raw)
	if !ok {
		return nil
	}
	cleaned := strings.NewReplacer(",", "", " ", "", "\u00a0", "").Replace(strings.TrimSpace(s))
	if f, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return &f
	}
	cleaned = nonPriceChar.ReplaceAllString(cleaned, "")
	if cleaned == "" {
		return nil
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &f
}

// FallbackID derives an id from a "Reference" feature value.
func FallbackID(reference string) string {
	return strings.ToUpper(strings.Join(strings.Fields(reference), "-"))
}

// DigitsOnly strips everything but digits.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
