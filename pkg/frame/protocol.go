package frame

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/soundscape-lab/sounddb/utils/typeutils"
)

var (
	ErrNoAttribute = errors.New("no such attribute")
	ErrNoItem      = errors.New("no such item")
	ErrBadArgument = errors.New("bad argument")
)

// Method is a bound method produced by attribute access; it runs when called.
type Method struct {
	Name string
	fn   func(args []any, kwargs map[string]any) (any, error)
}

func (m *Method) Call(args []any, kwargs map[string]any) (any, error) {
	return m.fn(args, kwargs)
}

func (m *Method) String() string {
	return fmt.Sprintf("<method %s>", m.Name)
}

func method(name string, fn func(args []any, kwargs map[string]any) (any, error)) *Method {
	return &Method{Name: name, fn: fn}
}

// intArg reads an integer argument by position or keyword.
func intArg(args []any, kwargs map[string]any, pos int, name string, def int) (int, error) {
	var v any
	if pos < len(args) {
		v = args[pos]
	} else if kv, ok := kwargs[name]; ok {
		v = kv
	} else {
		return def, nil
	}
	f, ok := typeutils.ToFloat64(v)
	if !ok || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %s must be an integer, got %v", ErrBadArgument, name, v)
	}
	return int(f), nil
}

func floatArg(args []any, kwargs map[string]any, pos int, name string, def float64) (float64, error) {
	var v any
	if pos < len(args) {
		v = args[pos]
	} else if kv, ok := kwargs[name]; ok {
		v = kv
	} else {
		return def, nil
	}
	f, ok := typeutils.ToFloat64(v)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be a number, got %v", ErrBadArgument, name, v)
	}
	return f, nil
}

// Quantile returns the q-th quantile of the numeric values using linear
// interpolation between closest ranks.
func Quantile(values []any, q float64) any {
	floats, durations := numericValues(values)
	if len(floats) == 0 || q < 0 || q > 1 {
		return math.NaN()
	}
	sort.Float64s(floats)
	rank := q * float64(len(floats)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	result := floats[lo] + (floats[hi]-floats[lo])*(rank-float64(lo))
	return numericResult(result, durations)
}

// GetAttr resolves an attribute or method of a series.
func (s *Series) GetAttr(name string) (any, error) {
	if fn, ok := reductions[name]; ok {
		return method(name, func([]any, map[string]any) (any, error) {
			return fn(s.values), nil
		}), nil
	}
	switch name {
	case "index":
		return s.index, nil
	case "values":
		return s.Values(), nil
	case "name":
		return s.Name, nil
	case "size":
		return s.Len(), nil
	case "head":
		return method(name, func(args []any, kwargs map[string]any) (any, error) {
			n, err := intArg(args, kwargs, 0, "n", 5)
			if err != nil {
				return nil, err
			}
			return s.Head(n), nil
		}), nil
	case "quantile":
		return method(name, func(args []any, kwargs map[string]any) (any, error) {
			q, err := floatArg(args, kwargs, 0, "q", 0.5)
			if err != nil {
				return nil, err
			}
			return Quantile(s.values, q), nil
		}), nil
	case "sort_index":
		return method(name, func([]any, map[string]any) (any, error) {
			return s.SortIndex(), nil
		}), nil
	case "dropna":
		return method(name, func([]any, map[string]any) (any, error) {
			return s.DropMissing(), nil
		}), nil
	case "apply":
		return method(name, func(args []any, _ map[string]any) (any, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("%w: apply takes one function", ErrBadArgument)
			}
			fn, ok := args[0].(func(any) any)
			if !ok {
				return nil, fmt.Errorf("%w: apply needs func(any) any, got %T", ErrBadArgument, args[0])
			}
			return s.Map(fn), nil
		}), nil
	}
	return nil, fmt.Errorf("%w: series has no attribute %q", ErrNoAttribute, name)
}

// GetItem returns the value at a label, or a sub-series for a list of labels.
func (s *Series) GetItem(key any) (any, error) {
	if labels, ok := key.([]any); ok {
		positions := make([]int, len(labels))
		for i, label := range labels {
			p, found := s.index.Loc(label)
			if !found {
				return nil, fmt.Errorf("%w: label %v", ErrNoItem, label)
			}
			positions[i] = p
		}
		return s.Take(positions), nil
	}
	v, ok := s.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: label %v", ErrNoItem, key)
	}
	return v, nil
}

// GetAttr resolves a method or attribute of a table; any other name is looked
// up as a column.
func (t *Table) GetAttr(name string) (any, error) {
	if fn, ok := reductions[name]; ok {
		return method(name, func(args []any, kwargs map[string]any) (any, error) {
			axis, err := intArg(args, kwargs, 0, "axis", 0)
			if err != nil {
				return nil, err
			}
			return t.Reduce(fn, axis), nil
		}), nil
	}
	switch name {
	case "index":
		return t.index, nil
	case "columns":
		return t.columns, nil
	case "shape":
		rows, cols := t.Shape()
		return []int{rows, cols}, nil
	case "T":
		return t.Transpose(), nil
	case "transpose":
		return method(name, func([]any, map[string]any) (any, error) {
			return t.Transpose(), nil
		}), nil
	case "head":
		return method(name, func(args []any, kwargs map[string]any) (any, error) {
			n, err := intArg(args, kwargs, 0, "n", 5)
			if err != nil {
				return nil, err
			}
			return t.Head(n), nil
		}), nil
	case "quantile":
		return method(name, func(args []any, kwargs map[string]any) (any, error) {
			q, err := floatArg(args, kwargs, 0, "q", 0.5)
			if err != nil {
				return nil, err
			}
			return t.Reduce(func(values []any) any { return Quantile(values, q) }, 0), nil
		}), nil
	case "sort_index":
		return method(name, func([]any, map[string]any) (any, error) {
			return t.SortIndex(), nil
		}), nil
	}
	if col, ok := t.Column(name); ok {
		return col, nil
	}
	return nil, fmt.Errorf("%w: table has no attribute or column %q", ErrNoAttribute, name)
}

// GetItem returns a column, or a sub-table for a list of columns.
func (t *Table) GetItem(key any) (any, error) {
	if labels, ok := key.([]any); ok {
		sub, err := t.Select(labels...)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrNoItem, err)
		}
		return sub, nil
	}
	col, ok := t.Column(key)
	if !ok {
		return nil, fmt.Errorf("%w: column %v", ErrNoItem, key)
	}
	return col, nil
}

// GetAttr resolves reductions (folding the axis kwarg, default 0) and shape
// attributes of a panel.
func (p *Panel) GetAttr(name string) (any, error) {
	if fn, ok := reductions[name]; ok {
		return method(name, func(args []any, kwargs map[string]any) (any, error) {
			axis, err := intArg(args, kwargs, 0, "axis", 0)
			if err != nil {
				return nil, err
			}
			return p.Reduce(fn, axis)
		}), nil
	}
	switch name {
	case "shape":
		return p.Shape(), nil
	case "axes":
		return p.Axes(), nil
	}
	return nil, fmt.Errorf("%w: panel has no attribute %q", ErrNoAttribute, name)
}

// GetItem selects one label of the outermost axis.
func (p *Panel) GetItem(key any) (any, error) {
	v, ok := p.Slice(key)
	if !ok {
		return nil, fmt.Errorf("%w: label %v", ErrNoItem, key)
	}
	return v, nil
}
