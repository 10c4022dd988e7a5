package validator

import (
	"math"
	"net/mail"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cast"
)

// checkRequired fails for nil, the empty string, and empty slices or maps.
func checkRequired(_ map[string]any, value any) bool {
	if value == nil {
		return false
	}
	switch v := value.(type) {
	case string:
		return v != ""
	case []byte:
		return len(v) > 0
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// checkStringLength requires a string whose rune count is within [min, max].
// A missing max means no upper bound.
func checkStringLength(options map[string]any, value any) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}
	lo, err := cast.ToIntE(options["min"])
	if err != nil {
		return false
	}
	n := utf8.RuneCountInString(s)
	if n < lo {
		return false
	}
	if raw, ok := options["max"]; ok && raw != nil {
		hi, err := cast.ToIntE(raw)
		if err != nil {
			return false
		}
		if n > hi {
			return false
		}
	}
	return true
}

// checkBetween requires a number, or a numeric string, within [min, max].
// With inclusive=false the bounds themselves fail.
func checkBetween(options map[string]any, value any) bool {
	n, ok := toNumber(value)
	if !ok {
		return false
	}
	lo, hi := math.Inf(-1), math.Inf(1)
	if raw, ok := options["min"]; ok && raw != nil {
		f, err := cast.ToFloat64E(raw)
		if err != nil {
			return false
		}
		lo = f
	}
	if raw, ok := options["max"]; ok && raw != nil {
		f, err := cast.ToFloat64E(raw)
		if err != nil {
			return false
		}
		hi = f
	}
	inclusive, err := cast.ToBoolE(options["inclusive"])
	if err != nil {
		return false
	}
	if inclusive {
		return n >= lo && n <= hi
	}
	return n > lo && n < hi
}

// checkEmail requires a bare address (no display name) with a non-empty
// local part and a dotted domain without empty labels.
func checkEmail(_ map[string]any, value any) bool {
	s, ok := value.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	local, domain, ok := strings.Cut(addr.Address, "@")
	if !ok || local == "" || !strings.Contains(domain, ".") {
		return false
	}
	for label := range strings.SplitSeq(domain, ".") {
		if label == "" {
			return false
		}
	}
	return true
}

// toNumber converts numeric values and numeric strings to float64. Booleans
// and nil are not numbers.
func toNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case nil, bool:
		return 0, false
	case string:
		if strings.TrimSpace(v) == "" {
			return 0, false
		}
	}
	f, err := cast.ToFloat64E(value)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
