package types

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Filters maps a field name to the value an entry's field must match. A value
// may be an exact value, a slice of acceptable values, AnyOf, Where or Exclude.
type Filters map[string]any

type anyOf struct{ values []any }

type where struct{ pred func(any) bool }

type exclude struct{ values []any }

// AnyOf accepts a field equal to any of values.
func AnyOf(values ...any) any {
	return anyOf{values: values}
}

// Where accepts a field for which pred returns true.
func Where(pred func(any) bool) any {
	return where{pred: pred}
}

// Exclude rejects a field equal to any of values.
func Exclude(values ...any) any {
	return exclude{values: values}
}

// MatchValue reports whether a single field value satisfies filter.
func MatchValue(filter, value any) bool {
	switch f := filter.(type) {
	case anyOf:
		return containsValue(f.values, value)
	case where:
		return f.pred(value)
	case exclude:
		return !containsValue(f.values, value)
	case nil:
		return value == nil
	}
	if values, ok := asList(filter); ok {
		return containsValue(values, value)
	}
	return equalValues(filter, value)
}

// Match reports whether every filter is satisfied by the entry's fields. An
// entry without a filtered field only passes an Exclude filter.
func (f Filters) Match(entry *Entry) bool {
	for name, filter := range f {
		value, ok := entry.Field(name)
		if !ok {
			if _, isExclude := filter.(exclude); isExclude {
				continue
			}
			return false
		}
		if !MatchValue(filter, value) {
			return false
		}
	}
	return true
}

// Names lists the filtered field names in sorted order.
func (f Filters) Names() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (f Filters) String() string {
	parts := make([]string, 0, len(f))
	for _, name := range f.Names() {
		parts = append(parts, fmt.Sprintf("%s=%s", name, describe(f[name])))
	}
	return strings.Join(parts, ", ")
}

func describe(filter any) string {
	switch f := filter.(type) {
	case anyOf:
		return fmt.Sprintf("any%v", f.values)
	case where:
		return "<predicate>"
	case exclude:
		return fmt.Sprintf("not%v", f.values)
	}
	return fmt.Sprint(filter)
}

// asList treats slices other than []byte as lists of acceptable values.
func asList(v any) ([]any, bool) {
	if list, ok := v.([]any); ok {
		return list, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	list := make([]any, rv.Len())
	for i := range list {
		list[i] = rv.Index(i).Interface()
	}
	return list, true
}

func containsValue(values []any, value any) bool {
	for _, v := range values {
		if equalValues(v, value) {
			return true
		}
	}
	return false
}

// equalValues compares loosely: path-derived fields are usually strings while
// callers often filter with numbers, so "2020" matches 2020.
func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.TypeOf(a) == reflect.TypeOf(b) && reflect.TypeOf(a).Comparable() {
		return a == b
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}
