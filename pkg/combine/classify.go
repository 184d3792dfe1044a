package combine

import (
	"time"

	"github.com/soundscape-lab/sounddb/pkg/frame"
	"github.com/soundscape-lab/sounddb/utils/typeutils"
)

// Category is the closed set of result shapes the combiner knows how to promote.
type Category int

const (
	Unsupported Category = iota
	Scalar
	Sequence1D
	Table2D
	Cube3D
)

func (c Category) String() string {
	switch c {
	case Scalar:
		return "scalar"
	case Sequence1D:
		return "sequence"
	case Table2D:
		return "table"
	case Cube3D:
		return "cube"
	}
	return "unsupported"
}

// Classify assigns a value to its category.
func Classify(v any) Category {
	switch x := v.(type) {
	case time.Time, time.Duration, bool:
		return Scalar
	case *frame.Series, []any, []float64, []int64, []int:
		return Sequence1D
	case *frame.Table:
		return Table2D
	case *frame.Panel:
		if x.Dims() == 3 {
			return Cube3D
		}
		return Unsupported
	}
	if typeutils.IsNumeric(v) {
		return Scalar
	}
	return Unsupported
}

// asSeries views a 1-D value as a series; plain lists get positional labels.
func asSeries(v any) *frame.Series {
	switch x := v.(type) {
	case *frame.Series:
		return x
	case []any:
		return frame.NewSeries(nil, nil, x)
	case []float64:
		return frame.FloatSeries(nil, x)
	case []int64:
		values := make([]any, len(x))
		for i, n := range x {
			values[i] = n
		}
		return frame.NewSeries(nil, nil, values)
	case []int:
		values := make([]any, len(x))
		for i, n := range x {
			values[i] = n
		}
		return frame.NewSeries(nil, nil, values)
	}
	return nil
}
