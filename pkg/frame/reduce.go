package frame

import (
	"math"
	"sort"
	"time"

	"github.com/soundscape-lab/sounddb/utils/typeutils"
)

// Reduction folds a column of values into one value.
type Reduction func(values []any) any

// reductions by method name
var reductions = map[string]Reduction{
	"sum":    Sum,
	"mean":   Mean,
	"median": Median,
	"min":    Min,
	"max":    Max,
	"count":  Count,
	"std":    Std,
}

// numericValues collects non-missing numbers; durations are folded as
// nanoseconds and reported so the result can be converted back.
func numericValues(values []any) ([]float64, bool) {
	floats := make([]float64, 0, len(values))
	allDurations := true
	for _, v := range values {
		if typeutils.IsMissing(v) {
			continue
		}
		if d, ok := v.(time.Duration); ok {
			floats = append(floats, float64(d))
			continue
		}
		if f, ok := typeutils.ToFloat64(v); ok {
			floats = append(floats, f)
			allDurations = false
		}
	}
	return floats, allDurations && len(floats) > 0
}

func numericResult(f float64, durations bool) any {
	if durations && !math.IsNaN(f) {
		return time.Duration(f)
	}
	return f
}

func Sum(values []any) any {
	floats, durations := numericValues(values)
	total := 0.0
	for _, f := range floats {
		total += f
	}
	return numericResult(total, durations)
}

func Mean(values []any) any {
	floats, durations := numericValues(values)
	if len(floats) == 0 {
		return math.NaN()
	}
	total := 0.0
	for _, f := range floats {
		total += f
	}
	return numericResult(total/float64(len(floats)), durations)
}

func Median(values []any) any {
	floats, durations := numericValues(values)
	if len(floats) == 0 {
		return math.NaN()
	}
	sort.Float64s(floats)
	mid := len(floats) / 2
	if len(floats)%2 == 1 {
		return numericResult(floats[mid], durations)
	}
	return numericResult((floats[mid-1]+floats[mid])/2, durations)
}

// Std is the sample standard deviation.
func Std(values []any) any {
	floats, durations := numericValues(values)
	if len(floats) < 2 {
		return math.NaN()
	}
	mean := 0.0
	for _, f := range floats {
		mean += f
	}
	mean /= float64(len(floats))
	variance := 0.0
	for _, f := range floats {
		variance += (f - mean) * (f - mean)
	}
	return numericResult(math.Sqrt(variance/float64(len(floats)-1)), durations)
}

// Min works on any ordered values, not just numbers.
func Min(values []any) any {
	return extreme(values, -1)
}

func Max(values []any) any {
	return extreme(values, 1)
}

func extreme(values []any, sign int) any {
	var best any
	for _, v := range values {
		if typeutils.IsMissing(v) {
			continue
		}
		if best == nil || typeutils.Compare(v, best)*sign > 0 {
			best = v
		}
	}
	return best
}

// Count is the number of non-missing values.
func Count(values []any) any {
	n := 0
	for _, v := range values {
		if !typeutils.IsMissing(v) {
			n++
		}
	}
	return n
}

func (s *Series) Sum() any    { return Sum(s.values) }
func (s *Series) Mean() any   { return Mean(s.values) }
func (s *Series) Median() any { return Median(s.values) }
func (s *Series) Min() any    { return Min(s.values) }
func (s *Series) Max() any    { return Max(s.values) }
func (s *Series) Count() any  { return Count(s.values) }
func (s *Series) Std() any    { return Std(s.values) }
