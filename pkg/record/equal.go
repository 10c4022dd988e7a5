package record

import (
	"reflect"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// looseEqual compares two attribute values the way a dynamically typed
// store would: nil equals any zero value, numbers and numeric strings
// compare by numeric value, booleans compare by truthiness.
func looseEqual(a, b any) bool {
	switch {
	case a == nil && b == nil:
		return true
	case a == nil:
		return isZero(b)
	case b == nil:
		return isZero(a)
	}
	if ab, ok := a.(bool); ok {
		return ab == truthy(b)
	}
	if bb, ok := b.(bool); ok {
		return bb == truthy(a)
	}
	if na, ok := numeric(a); ok {
		if nb, ok := numeric(b); ok {
			return na == nb
		}
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Equal(tb)
		}
	}
	sa, aStr := stringish(a)
	sb, bStr := stringish(b)
	if aStr && bStr {
		return sa == sb
	}
	return reflect.DeepEqual(a, b)
}

func stringish(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}
	return "", false
}

// numeric converts numbers and numeric strings to float64.
func numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		f, err := cast.ToFloat64E(x)
		return f, err == nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		f, err := cast.ToFloat64E(s)
		return f, err == nil
	}
	return 0, false
}

func isZero(v any) bool {
	if v == nil {
		return true
	}
	switch x := v.(type) {
	case string:
		return x == ""
	case bool:
		return !x
	}
	if n, ok := numeric(v); ok {
		if _, isStr := v.(string); !isStr {
			return n == 0
		}
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != "" && x != "0"
	}
	return !isZero(v)
}
