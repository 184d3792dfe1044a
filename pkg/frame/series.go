package frame

import (
	"fmt"
	"strings"

	"github.com/soundscape-lab/sounddb/utils/typeutils"
)

// Series is a labeled 1-D sequence of values. Missing cells are nil or NaN.
type Series struct {
	Name   any
	index  *Index
	values []any
}

// NewSeries builds a series; a nil index becomes a RangeIndex. It panics when
// the index and values differ in length.
func NewSeries(name any, index *Index, values []any) *Series {
	if index == nil {
		index = RangeIndex(len(values))
	}
	if index.Len() != len(values) {
		panic(fmt.Sprintf("frame: series %v has %d labels for %d values", name, index.Len(), len(values)))
	}
	return &Series{Name: name, index: index, values: values}
}

// FloatSeries builds an unlabeled series from float64 values.
func FloatSeries(name any, values []float64) *Series {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return NewSeries(name, nil, out)
}

func (s *Series) Index() *Index {
	return s.index
}

func (s *Series) Len() int {
	return len(s.values)
}

// Values returns a copy of the values.
func (s *Series) Values() []any {
	return append([]any(nil), s.values...)
}

func (s *Series) At(i int) any {
	return s.values[i]
}

// Get returns the value at the first occurrence of label.
func (s *Series) Get(label any) (any, bool) {
	i, ok := s.index.Loc(label)
	if !ok {
		return nil, false
	}
	return s.values[i], true
}

// Floats returns the non-missing numeric values.
func (s *Series) Floats() []float64 {
	out := make([]float64, 0, len(s.values))
	for _, v := range s.values {
		if typeutils.IsMissing(v) {
			continue
		}
		if f, ok := typeutils.ToFloat64(v); ok {
			out = append(out, f)
		}
	}
	return out
}

// HasMissing reports whether any value is nil or NaN.
func (s *Series) HasMissing() bool {
	for _, v := range s.values {
		if typeutils.IsMissing(v) {
			return true
		}
	}
	return false
}

func (s *Series) Copy() *Series {
	return NewSeries(s.Name, s.index, s.Values())
}

func (s *Series) Rename(name any) *Series {
	return NewSeries(name, s.index, s.values)
}

// Take returns the values at the given positions.
func (s *Series) Take(positions []int) *Series {
	values := make([]any, len(positions))
	for i, p := range positions {
		values[i] = s.values[p]
	}
	return NewSeries(s.Name, s.index.Take(positions), values)
}

// Head returns the first n values.
func (s *Series) Head(n int) *Series {
	if n > s.Len() {
		n = s.Len()
	}
	if n < 0 {
		n = 0
	}
	return NewSeries(s.Name, NewIndex(s.index.labels[:n], s.index.names...), s.values[:n])
}

// SortIndex orders the series by label.
func (s *Series) SortIndex() *Series {
	return s.Take(s.index.Argsort())
}

// DropMissing removes nil and NaN values.
func (s *Series) DropMissing() *Series {
	keep := make([]int, 0, len(s.values))
	for i, v := range s.values {
		if !typeutils.IsMissing(v) {
			keep = append(keep, i)
		}
	}
	return s.Take(keep)
}

// Reindex conforms the series to index; absent labels become nil.
func (s *Series) Reindex(index *Index) *Series {
	values := make([]any, index.Len())
	for i, label := range index.labels {
		if v, ok := s.Get(label); ok {
			values[i] = v
		}
	}
	return NewSeries(s.Name, index, values)
}

// Map applies fn to every value.
func (s *Series) Map(fn func(any) any) *Series {
	values := make([]any, len(s.values))
	for i, v := range s.values {
		values[i] = fn(v)
	}
	return NewSeries(s.Name, s.index, values)
}

// Filter keeps values for which keep returns true.
func (s *Series) Filter(keep func(label, value any) bool) *Series {
	positions := make([]int, 0, len(s.values))
	for i, v := range s.values {
		if keep(s.index.labels[i], v) {
			positions = append(positions, i)
		}
	}
	return s.Take(positions)
}

func (s *Series) String() string {
	var b strings.Builder
	for i, v := range s.values {
		fmt.Fprintf(&b, "%v\t%v\n", s.index.labels[i], v)
	}
	fmt.Fprintf(&b, "Name: %v, Length: %d", s.Name, s.Len())
	return b.String()
}
