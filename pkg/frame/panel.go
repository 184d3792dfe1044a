package frame

import (
	"fmt"
	"strings"
)

// Panel is a labeled 3-D or 4-D structure. Values are stored row-major: the
// last axis varies fastest.
type Panel struct {
	axes    []*Index
	values  []any
	strides []int
}

// NewPanel builds a panel over the given axes. It panics when the number of
// values does not match the axes.
func NewPanel(axes []*Index, values []any) *Panel {
	if len(axes) < 3 || len(axes) > 4 {
		panic(fmt.Sprintf("frame: panel must have 3 or 4 axes, got %d", len(axes)))
	}
	strides := make([]int, len(axes))
	size := 1
	for i := len(axes) - 1; i >= 0; i-- {
		strides[i] = size
		size *= axes[i].Len()
	}
	if values == nil {
		values = make([]any, size)
	}
	if len(values) != size {
		panic(fmt.Sprintf("frame: panel of shape %v needs %d values, got %d", shapeOf(axes), size, len(values)))
	}
	return &Panel{axes: axes, values: values, strides: strides}
}

func shapeOf(axes []*Index) []int {
	shape := make([]int, len(axes))
	for i, ax := range axes {
		shape[i] = ax.Len()
	}
	return shape
}

// Dims is 3 or 4.
func (p *Panel) Dims() int {
	return len(p.axes)
}

func (p *Panel) Shape() []int {
	return shapeOf(p.axes)
}

func (p *Panel) Axis(i int) *Index {
	return p.axes[i]
}

func (p *Panel) Axes() []*Index {
	return append([]*Index(nil), p.axes...)
}

func (p *Panel) offset(pos []int) int {
	off := 0
	for i, v := range pos {
		off += v * p.strides[i]
	}
	return off
}

// At returns the value at one position per axis.
func (p *Panel) At(pos ...int) any {
	return p.values[p.offset(pos)]
}

func (p *Panel) set(pos []int, v any) {
	p.values[p.offset(pos)] = v
}

// Get returns the value at one label per axis.
func (p *Panel) Get(labels ...any) (any, bool) {
	if len(labels) != len(p.axes) {
		return nil, false
	}
	pos := make([]int, len(labels))
	for i, label := range labels {
		j, ok := p.axes[i].Loc(label)
		if !ok {
			return nil, false
		}
		pos[i] = j
	}
	return p.At(pos...), true
}

// Slice selects one label of the outermost axis, returning a *Table for a
// 3-D panel or a 3-D *Panel for a 4-D one.
func (p *Panel) Slice(label any) (any, bool) {
	i, ok := p.axes[0].Loc(label)
	if !ok {
		return nil, false
	}
	return p.SliceAt(i), true
}

func (p *Panel) SliceAt(i int) any {
	block := p.strides[0]
	values := append([]any(nil), p.values[i*block:(i+1)*block]...)
	if p.Dims() == 4 {
		return NewPanel(p.axes[1:], values)
	}
	rows, cols := p.axes[1], p.axes[2]
	data := make([][]any, cols.Len())
	for c := range data {
		data[c] = make([]any, rows.Len())
		for r := range data[c] {
			data[c][r] = values[r*cols.Len()+c]
		}
	}
	return NewTable(rows, cols, data)
}

// Reduce folds one axis away with fn, returning a *Table from a 3-D panel or
// a 3-D *Panel from a 4-D one.
func (p *Panel) Reduce(fn Reduction, axis int) (any, error) {
	if axis < 0 || axis >= p.Dims() {
		return nil, fmt.Errorf("axis %d out of range for %d-D panel", axis, p.Dims())
	}
	var kept []*Index
	for i, ax := range p.axes {
		if i != axis {
			kept = append(kept, ax)
		}
	}
	out := make([]any, 0, len(p.values)/max(1, p.axes[axis].Len()))
	pos := make([]int, p.Dims())
	var walk func(dim int)
	walk = func(dim int) {
		if dim == p.Dims() {
			column := make([]any, p.axes[axis].Len())
			for k := range column {
				pos[axis] = k
				column[k] = p.At(pos...)
			}
			out = append(out, fn(column))
			return
		}
		if dim == axis {
			walk(dim + 1)
			return
		}
		for i := 0; i < p.axes[dim].Len(); i++ {
			pos[dim] = i
			walk(dim + 1)
		}
	}
	walk(0)

	if len(kept) == 3 {
		return NewPanel(kept, out), nil
	}
	rows, cols := kept[0], kept[1]
	data := make([][]any, cols.Len())
	for c := range data {
		data[c] = make([]any, rows.Len())
		for r := range data[c] {
			data[c][r] = out[r*cols.Len()+c]
		}
	}
	return NewTable(rows, cols, data), nil
}

func (p *Panel) String() string {
	parts := make([]string, len(p.axes))
	for i, ax := range p.axes {
		name := ax.Name()
		if name == "" {
			name = fmt.Sprintf("axis%d", i)
		}
		parts[i] = fmt.Sprintf("%s: %d", name, ax.Len())
	}
	return fmt.Sprintf("Panel(%s)", strings.Join(parts, " x "))
}
