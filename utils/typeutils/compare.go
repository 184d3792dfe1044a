package typeutils

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// return 0 for equal, -1 if a < b else 1 if a>b
//
// Numbers of different kinds are compared by value. Values of unrelated
// types fall back to comparing their string forms.
func Compare(a, b any) int {
	// Handle nil cases first
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}

	if aNum, ok := ToFloat64(a); ok {
		if bNum, ok := ToFloat64(b); ok {
			switch {
			case aNum < bNum:
				return -1
			case aNum > bNum:
				return 1
			}
			return 0
		}
	}

	switch aVal := a.(type) {
	case time.Time:
		if bTime, ok := b.(time.Time); ok {
			return aVal.Compare(bTime)
		}
	case time.Duration:
		if bDur, ok := b.(time.Duration); ok {
			switch {
			case aVal < bDur:
				return -1
			case aVal > bDur:
				return 1
			}
			return 0
		}
	case bool:
		if bBool, ok := b.(bool); ok {
			// false < true
			if !aVal && bBool {
				return -1
			} else if aVal && !bBool {
				return 1
			}
			return 0
		}
	case []any:
		if bSlice, ok := b.([]any); ok {
			return compareSlices(aVal, bSlice)
		}
	}
	// named compound keys such as frame.Tuple
	if aSlice, ok := asAnySlice(a); ok {
		if bSlice, ok := asAnySlice(b); ok {
			return compareSlices(aSlice, bSlice)
		}
	}
	// For any other types, convert to string for comparison
	return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}

// compareSlices orders compound keys lexicographically, element by element.
func compareSlices(a, b []any) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

var anySliceType = reflect.TypeOf([]any(nil))

// asAnySlice converts any slice type whose underlying type is []any.
func asAnySlice(v any) ([]any, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || !rv.Type().ConvertibleTo(anySliceType) {
		return nil, false
	}
	return rv.Convert(anySliceType).Interface().([]any), true
}
