package frame

import (
	"fmt"
	"strings"

	"github.com/soundscape-lab/sounddb/utils/typeutils"
)

// Table is a labeled 2-D structure stored column by column.
type Table struct {
	index   *Index
	columns *Index
	data    [][]any // data[col][row]
}

// NewTable builds a table from column-major data. A nil index becomes a
// RangeIndex. It panics on shape mismatch.
func NewTable(index, columns *Index, data [][]any) *Table {
	if columns == nil {
		columns = RangeIndex(len(data))
	}
	if columns.Len() != len(data) {
		panic(fmt.Sprintf("frame: %d column labels for %d columns", columns.Len(), len(data)))
	}
	rows := 0
	if len(data) > 0 {
		rows = len(data[0])
	}
	if index == nil {
		index = RangeIndex(rows)
	}
	for i, col := range data {
		if len(col) != index.Len() {
			panic(fmt.Sprintf("frame: column %v has %d values for %d rows", columns.Label(i), len(col), index.Len()))
		}
	}
	return &Table{index: index, columns: columns, data: data}
}

// FromRows builds a table from row-major cells.
func FromRows(index *Index, columns []string, rows [][]any) *Table {
	data := make([][]any, len(columns))
	for c := range data {
		data[c] = make([]any, len(rows))
		for r, row := range rows {
			if c < len(row) {
				data[c][r] = row[c]
			}
		}
	}
	if index == nil {
		index = RangeIndex(len(rows))
	}
	return NewTable(index, StringIndex(columns...), data)
}

// FromSeries builds a table whose columns are the given series aligned on the
// union of their indexes.
func FromSeries(columns *Index, series []*Series) *Table {
	indexes := make([]*Index, len(series))
	for i, s := range series {
		indexes[i] = s.index
	}
	rows := Union(indexes...)
	data := make([][]any, len(series))
	for i, s := range series {
		if s.index.Equal(rows) {
			data[i] = s.Values()
		} else {
			data[i] = s.Reindex(rows).values
		}
	}
	return NewTable(rows, columns, data)
}

func (t *Table) Index() *Index {
	return t.index
}

func (t *Table) Columns() *Index {
	return t.columns
}

// Shape returns rows and columns.
func (t *Table) Shape() (int, int) {
	return t.index.Len(), t.columns.Len()
}

func (t *Table) Len() int {
	return t.index.Len()
}

func (t *Table) At(row, col int) any {
	return t.data[col][row]
}

// ColumnNames renders column labels as strings.
func (t *Table) ColumnNames() []string {
	names := make([]string, t.columns.Len())
	for i, l := range t.columns.labels {
		names[i] = fmt.Sprint(l)
	}
	return names
}

// Column returns the named column as a series sharing the table's index.
func (t *Table) Column(label any) (*Series, bool) {
	i, ok := t.columns.Loc(label)
	if !ok {
		return nil, false
	}
	return NewSeries(t.columns.Label(i), t.index, t.data[i]), true
}

// ColumnAt returns the column at position i.
func (t *Table) ColumnAt(i int) *Series {
	return NewSeries(t.columns.Label(i), t.index, t.data[i])
}

// Row returns the first row labeled label, indexed by column.
func (t *Table) Row(label any) (*Series, bool) {
	i, ok := t.index.Loc(label)
	if !ok {
		return nil, false
	}
	return t.RowAt(i), true
}

func (t *Table) RowAt(i int) *Series {
	values := make([]any, len(t.data))
	for c := range t.data {
		values[c] = t.data[c][i]
	}
	return NewSeries(t.index.Label(i), t.columns, values)
}

// Select keeps the named columns in the given order.
func (t *Table) Select(labels ...any) (*Table, error) {
	data := make([][]any, len(labels))
	for i, label := range labels {
		c, ok := t.columns.Loc(label)
		if !ok {
			return nil, fmt.Errorf("column %v not found", label)
		}
		data[i] = t.data[c]
	}
	return NewTable(t.index, NewIndex(labels), data), nil
}

// Take returns the rows at the given positions.
func (t *Table) Take(positions []int) *Table {
	data := make([][]any, len(t.data))
	for c, col := range t.data {
		data[c] = make([]any, len(positions))
		for i, p := range positions {
			data[c][i] = col[p]
		}
	}
	return NewTable(t.index.Take(positions), t.columns, data)
}

// FilterRows keeps the rows for which keep returns true.
func (t *Table) FilterRows(keep func(row int) bool) *Table {
	positions := make([]int, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		if keep(i) {
			positions = append(positions, i)
		}
	}
	return t.Take(positions)
}

func (t *Table) Head(n int) *Table {
	if n > t.Len() {
		n = t.Len()
	}
	positions := make([]int, 0, n)
	for i := 0; i < n; i++ {
		positions = append(positions, i)
	}
	return t.Take(positions)
}

func (t *Table) SortIndex() *Table {
	return t.Take(t.index.Argsort())
}

// WithIndex replaces the row index.
func (t *Table) WithIndex(index *Index) *Table {
	return NewTable(index, t.columns, t.data)
}

// SetIndex moves the named columns into the row index. Several columns make a
// multi-level index.
func (t *Table) SetIndex(columns ...string) (*Table, error) {
	positions := make([]int, len(columns))
	dropped := make([]any, len(columns))
	for i, name := range columns {
		c, ok := t.columns.Loc(name)
		if !ok {
			return nil, fmt.Errorf("column %s not found", name)
		}
		positions[i] = c
		dropped[i] = name
	}
	labels := make([]any, t.Len())
	for r := range labels {
		if len(positions) == 1 {
			labels[r] = t.data[positions[0]][r]
			continue
		}
		key := make(Tuple, len(positions))
		for i, c := range positions {
			key[i] = t.data[c][r]
		}
		labels[r] = key
	}
	out := t.Drop(dropped...)
	return NewTable(NewIndex(labels, columns...), out.columns, out.data), nil
}

// Drop removes the named columns, ignoring unknown names.
func (t *Table) Drop(labels ...any) *Table {
	drop := map[string]struct{}{}
	for _, l := range labels {
		drop[LabelKey(l)] = struct{}{}
	}
	var (
		kept []any
		data [][]any
	)
	for c, l := range t.columns.labels {
		if _, ok := drop[LabelKey(l)]; ok {
			continue
		}
		kept = append(kept, l)
		data = append(data, t.data[c])
	}
	return NewTable(t.index, NewIndex(kept, t.columns.names...), data)
}

// RenameColumns relabels columns through mapping; unmapped columns keep their label.
func (t *Table) RenameColumns(mapping map[string]any) *Table {
	labels := make([]any, t.columns.Len())
	for i, l := range t.columns.labels {
		if renamed, ok := mapping[fmt.Sprint(l)]; ok {
			labels[i] = renamed
		} else {
			labels[i] = l
		}
	}
	return NewTable(t.index, NewIndex(labels, t.columns.names...), t.data)
}

// WithColumn adds or replaces a column.
func (t *Table) WithColumn(label any, values []any) *Table {
	if len(values) != t.Len() {
		panic(fmt.Sprintf("frame: column %v has %d values for %d rows", label, len(values), t.Len()))
	}
	data := append([][]any(nil), t.data...)
	if c, ok := t.columns.Loc(label); ok {
		data[c] = values
		return NewTable(t.index, t.columns, data)
	}
	return NewTable(t.index, NewIndex(append(t.columns.Labels(), label), t.columns.names...), append(data, values))
}

// MapColumn applies fn to every cell of one column.
func (t *Table) MapColumn(label any, fn func(any) any) *Table {
	c, ok := t.columns.Loc(label)
	if !ok {
		return t
	}
	values := make([]any, t.Len())
	for r, v := range t.data[c] {
		values[r] = fn(v)
	}
	return t.WithColumn(label, values)
}

// Reindex conforms rows and columns; absent cells become nil. A nil index
// keeps the current axis.
func (t *Table) Reindex(rows, columns *Index) *Table {
	if rows == nil {
		rows = t.index
	}
	if columns == nil {
		columns = t.columns
	}
	data := make([][]any, columns.Len())
	for c, label := range columns.labels {
		data[c] = make([]any, rows.Len())
		src, ok := t.columns.Loc(label)
		if !ok {
			continue
		}
		if rows.Equal(t.index) {
			copy(data[c], t.data[src])
			continue
		}
		for r, rowLabel := range rows.labels {
			if i, ok := t.index.Loc(rowLabel); ok {
				data[c][r] = t.data[src][i]
			}
		}
	}
	return NewTable(rows, columns, data)
}

// Transpose swaps rows and columns.
func (t *Table) Transpose() *Table {
	data := make([][]any, t.Len())
	for r := range data {
		data[r] = make([]any, t.columns.Len())
		for c := range t.data {
			data[r][c] = t.data[c][r]
		}
	}
	return NewTable(t.columns, t.index, data)
}

// MissingCount is the number of nil or NaN cells.
func (t *Table) MissingCount() int {
	n := 0
	for _, col := range t.data {
		for _, v := range col {
			if typeutils.IsMissing(v) {
				n++
			}
		}
	}
	return n
}

// Reduce folds every column (axis 0) or every row (axis 1) with fn.
func (t *Table) Reduce(fn Reduction, axis int) *Series {
	if axis == 1 {
		values := make([]any, t.Len())
		for r := range values {
			values[r] = fn(t.RowAt(r).values)
		}
		return NewSeries(nil, t.index, values)
	}
	values := make([]any, len(t.data))
	for c, col := range t.data {
		values[c] = fn(col)
	}
	return NewSeries(nil, t.columns, values)
}

func (t *Table) String() string {
	var b strings.Builder
	b.WriteString("\t" + strings.Join(t.ColumnNames(), "\t") + "\n")
	for r := 0; r < t.Len(); r++ {
		fmt.Fprintf(&b, "%v", t.index.Label(r))
		for c := range t.data {
			fmt.Fprintf(&b, "\t%v", t.data[c][r])
		}
		b.WriteString("\n")
	}
	rows, cols := t.Shape()
	fmt.Fprintf(&b, "[%d rows x %d columns]", rows, cols)
	return b.String()
}
