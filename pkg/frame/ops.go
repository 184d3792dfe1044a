package frame

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConcatenable is returned when values have no natural axis to join on.
	ErrNotConcatenable = errors.New("values cannot be concatenated")
	// ErrShapeMismatch is returned when values cannot be aligned into one structure.
	ErrShapeMismatch = errors.New("values have incompatible shapes")
)

// Concat joins values of one kind along their natural axis: series end to
// end, tables by rows with the union of columns, panels along their second
// axis. A single value is returned unchanged.
func Concat(values []any) (any, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: nothing to concatenate", ErrNotConcatenable)
	}
	if len(values) == 1 {
		return values[0], nil
	}
	switch values[0].(type) {
	case *Series:
		series, err := asSeries(values)
		if err != nil {
			return nil, err
		}
		return concatSeries(series), nil
	case *Table:
		tables, err := asTables(values)
		if err != nil {
			return nil, err
		}
		return concatTables(tables), nil
	case *Panel:
		panels, err := asPanels(values)
		if err != nil {
			return nil, err
		}
		return concatPanels(panels)
	}
	return nil, fmt.Errorf("%w: unsupported type %T", ErrNotConcatenable, values[0])
}

// ConcatKeyed joins series or tables by rows, prefixing every row label with
// the key of the value it came from as a new outer index level called name.
func ConcatKeyed(keys []any, values []any, name string) (any, error) {
	if len(keys) != len(values) {
		return nil, fmt.Errorf("%w: %d keys for %d values", ErrShapeMismatch, len(keys), len(values))
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: nothing to concatenate", ErrNotConcatenable)
	}
	switch values[0].(type) {
	case *Series:
		series, err := asSeries(values)
		if err != nil {
			return nil, err
		}
		keyed := make([]*Series, len(series))
		for i, s := range series {
			keyed[i] = NewSeries(s.Name, s.index.Prefixed(keys[i], name), s.values)
		}
		return concatSeries(keyed), nil
	case *Table:
		tables, err := asTables(values)
		if err != nil {
			return nil, err
		}
		keyed := make([]*Table, len(tables))
		for i, t := range tables {
			keyed[i] = t.WithIndex(t.index.Prefixed(keys[i], name))
		}
		return concatTables(keyed), nil
	}
	return nil, fmt.Errorf("%w: unsupported type %T", ErrNotConcatenable, values[0])
}

// StackScalars builds a series labeled by keys.
func StackScalars(keys *Index, values []any) (*Series, error) {
	if keys.Len() != len(values) {
		return nil, fmt.Errorf("%w: %d keys for %d values", ErrShapeMismatch, keys.Len(), len(values))
	}
	return NewSeries(nil, keys, append([]any(nil), values...)), nil
}

// StackSeries places series side by side as the columns of a table, aligned
// on the union of their labels.
func StackSeries(keys *Index, series []*Series) (*Table, error) {
	if keys.Len() != len(series) {
		return nil, fmt.Errorf("%w: %d keys for %d series", ErrShapeMismatch, keys.Len(), len(series))
	}
	return FromSeries(keys, series), nil
}

// StackTables builds a 3-D panel with keys as the outer axis and the union of
// rows and columns as the inner axes.
func StackTables(keys *Index, tables []*Table) (*Panel, error) {
	if keys.Len() != len(tables) {
		return nil, fmt.Errorf("%w: %d keys for %d tables", ErrShapeMismatch, keys.Len(), len(tables))
	}
	rowIdx := make([]*Index, len(tables))
	colIdx := make([]*Index, len(tables))
	for i, t := range tables {
		rowIdx[i], colIdx[i] = t.index, t.columns
	}
	rows, cols := Union(rowIdx...), Union(colIdx...)
	panel := NewPanel([]*Index{keys, rows, cols}, nil)
	for k, t := range tables {
		for c, colLabel := range t.columns.labels {
			pc, _ := cols.Loc(colLabel)
			for r, rowLabel := range t.index.labels {
				pr, _ := rows.Loc(rowLabel)
				panel.set([]int{k, pr, pc}, t.data[c][r])
			}
		}
	}
	return panel, nil
}

// StackPanels builds a 4-D panel from 3-D panels with keys as the outer axis.
func StackPanels(keys *Index, panels []*Panel) (*Panel, error) {
	if keys.Len() != len(panels) {
		return nil, fmt.Errorf("%w: %d keys for %d panels", ErrShapeMismatch, keys.Len(), len(panels))
	}
	axes := []*Index{keys}
	for dim := 0; dim < 3; dim++ {
		per := make([]*Index, len(panels))
		for i, p := range panels {
			if p.Dims() != 3 {
				return nil, fmt.Errorf("%w: cannot stack a %d-D panel", ErrShapeMismatch, p.Dims())
			}
			per[i] = p.axes[dim]
		}
		axes = append(axes, Union(per...))
	}
	out := NewPanel(axes, nil)
	for k, p := range panels {
		mapping := axisMapping(p.axes, axes[1:])
		copyInto(out, p, func(pos []int) []int {
			target := []int{k}
			for d, v := range pos {
				target = append(target, mapping[d][v])
			}
			return target
		})
	}
	return out, nil
}

func concatSeries(series []*Series) *Series {
	name := series[0].Name
	var values []any
	indexes := make([]*Index, 0, len(series)-1)
	for i, s := range series {
		if i > 0 {
			indexes = append(indexes, s.index)
			if LabelKey(s.Name) != LabelKey(name) {
				name = nil
			}
		}
		values = append(values, s.values...)
	}
	return NewSeries(name, series[0].index.Append(indexes...), values)
}

func concatTables(tables []*Table) *Table {
	colIdx := make([]*Index, len(tables))
	rowIdx := make([]*Index, 0, len(tables)-1)
	for i, t := range tables {
		colIdx[i] = t.columns
		if i > 0 {
			rowIdx = append(rowIdx, t.index)
		}
	}
	cols := Union(colIdx...)
	rows := tables[0].index.Append(rowIdx...)
	data := make([][]any, cols.Len())
	for c := range data {
		data[c] = make([]any, 0, rows.Len())
	}
	for _, t := range tables {
		aligned := t
		if !t.columns.Equal(cols) {
			aligned = t.Reindex(nil, cols)
		}
		for c := range data {
			data[c] = append(data[c], aligned.data[c]...)
		}
	}
	return NewTable(rows, cols, data)
}

func concatPanels(panels []*Panel) (*Panel, error) {
	dims := panels[0].Dims()
	axes := make([]*Index, dims)
	for dim := 0; dim < dims; dim++ {
		per := make([]*Index, len(panels))
		for i, p := range panels {
			if p.Dims() != dims {
				return nil, fmt.Errorf("%w: cannot concatenate %d-D and %d-D panels", ErrShapeMismatch, dims, p.Dims())
			}
			per[i] = p.axes[dim]
		}
		if dim == 1 {
			axes[dim] = per[0].Append(per[1:]...)
		} else {
			axes[dim] = Union(per...)
		}
	}
	out := NewPanel(axes, nil)
	offset := 0
	for _, p := range panels {
		mapping := axisMapping(p.axes, axes)
		shift := offset
		copyInto(out, p, func(pos []int) []int {
			target := make([]int, len(pos))
			for d, v := range pos {
				if d == 1 {
					target[d] = shift + v
				} else {
					target[d] = mapping[d][v]
				}
			}
			return target
		})
		offset += p.axes[1].Len()
	}
	return out, nil
}

// axisMapping maps every position of each source axis to its position in the
// matching target axis.
func axisMapping(src, dst []*Index) [][]int {
	mapping := make([][]int, len(src))
	for d, ax := range src {
		mapping[d] = make([]int, ax.Len())
		for i, label := range ax.labels {
			mapping[d][i], _ = dst[d].Loc(label)
		}
	}
	return mapping
}

func copyInto(dst, src *Panel, target func(pos []int) []int) {
	pos := make([]int, src.Dims())
	for off, v := range src.values {
		rem := off
		for d := range pos {
			pos[d] = rem / src.strides[d]
			rem %= src.strides[d]
		}
		dst.set(target(pos), v)
	}
}

func asSeries(values []any) ([]*Series, error) {
	out := make([]*Series, len(values))
	for i, v := range values {
		s, ok := v.(*Series)
		if !ok {
			return nil, fmt.Errorf("%w: mixed %T and %T", ErrNotConcatenable, values[0], v)
		}
		out[i] = s
	}
	return out, nil
}

func asTables(values []any) ([]*Table, error) {
	out := make([]*Table, len(values))
	for i, v := range values {
		t, ok := v.(*Table)
		if !ok {
			return nil, fmt.Errorf("%w: mixed %T and %T", ErrNotConcatenable, values[0], v)
		}
		out[i] = t
	}
	return out, nil
}

func asPanels(values []any) ([]*Panel, error) {
	out := make([]*Panel, len(values))
	for i, v := range values {
		p, ok := v.(*Panel)
		if !ok {
			return nil, fmt.Errorf("%w: mixed %T and %T", ErrNotConcatenable, values[0], v)
		}
		out[i] = p
	}
	return out, nil
}
