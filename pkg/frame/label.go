package frame

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/soundscape-lab/sounddb/utils/typeutils"
)

// Tuple is an ordered compound label, used for multi-field group keys and
// multi-level indexes.
type Tuple []any

func (t Tuple) String() string {
	parts := make([]string, len(t))
	for i, v := range t {
		parts[i] = fmt.Sprint(v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// LabelKey returns a canonical string for a label so labels can be hashed and
// compared across values. Integral numbers share a key regardless of their Go
// type, so 2020 and 2020.0 are the same label.
func LabelKey(label any) string {
	switch v := label.(type) {
	case nil:
		return "n:"
	case string:
		return "s:" + v
	case bool:
		return "b:" + strconv.FormatBool(v)
	case time.Time:
		return "t:" + v.UTC().Format(time.RFC3339Nano)
	case time.Duration:
		return "d:" + strconv.FormatInt(int64(v), 10)
	case Tuple:
		return tupleKey(v)
	case []any:
		return tupleKey(v)
	}
	if f, ok := typeutils.ToFloat64(label); ok {
		if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1<<53 {
			return "i:" + strconv.FormatInt(int64(f), 10)
		}
		return "f:" + strconv.FormatFloat(f, 'g', -1, 64)
	}
	return fmt.Sprintf("%T:%v", label, label)
}

func tupleKey(parts []any) string {
	keys := make([]string, len(parts))
	for i, p := range parts {
		keys[i] = LabelKey(p)
	}
	return "(" + strings.Join(keys, "\x1f") + ")"
}

// CompareLabels orders labels; tuples compare element-wise.
func CompareLabels(a, b any) int {
	if ta, ok := a.(Tuple); ok {
		a = []any(ta)
	}
	if tb, ok := b.(Tuple); ok {
		b = []any(tb)
	}
	return typeutils.Compare(a, b)
}

// labelKind names the type family of a label, used to decide whether two
// indexes can be concatenated.
func labelKind(label any) string {
	switch v := label.(type) {
	case nil:
		return ""
	case string:
		return "string"
	case time.Time:
		return "time"
	case time.Duration:
		return "duration"
	case Tuple:
		return fmt.Sprintf("tuple%d", len(v))
	}
	if typeutils.IsNumeric(label) {
		return "number"
	}
	return reflect.TypeOf(label).String()
}
