package destination

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/soundscape-lab/sounddb/pkg/combine"
	"github.com/soundscape-lab/sounddb/pkg/frame"
	"github.com/soundscape-lab/sounddb/types"
)

const (
	valueColumn = "value"
	keyColumn   = "key"
)

var ErrUnsupportedResult = errors.New("unsupported result")

// Records is a result flattened into rows: one column per index level,
// followed by the value columns.
type Records struct {
	Columns []string
	Rows    [][]any
}

func (r *Records) Len() int {
	return len(r.Rows)
}

// Record returns row i keyed by column name.
func (r *Records) Record(i int) map[string]any {
	record := make(map[string]any, len(r.Columns))
	for j, column := range r.Columns {
		record[column] = r.Rows[i][j]
	}
	return record
}

// Types infers each column's storage type from its cells.
func (r *Records) Types() []types.DataType {
	out := make([]types.DataType, len(r.Columns))
	for j := range out {
		out[j] = types.Null
		for _, row := range r.Rows {
			out[j] = types.Widen(out[j], types.TypeOf(row[j]))
		}
	}
	return out
}

// Flatten turns a result into records. Index labels become leading columns,
// named after the index levels; a combined mapping gets a leading key column.
func Flatten(result any) (*Records, error) {
	switch v := result.(type) {
	case nil:
		return &Records{}, nil
	case *frame.Table:
		return flattenTable(v), nil
	case *frame.Series:
		return flattenSeries(v), nil
	case *frame.Panel:
		return flattenPanel(v), nil
	case *combine.Results:
		return flattenResults(v)
	}
	if types.TypeOf(result) == types.Unknown {
		if _, ok := result.(frame.Tuple); !ok {
			return nil, fmt.Errorf("%w: %T", ErrUnsupportedResult, result)
		}
	}
	return &Records{Columns: []string{valueColumn}, Rows: [][]any{{normalize(result)}}}, nil
}

func flattenTable(t *frame.Table) *Records {
	index := indexColumns(t.Index(), "index")
	levels := len(index)
	records := &Records{Columns: uniqueColumns(append(index, t.ColumnNames()...))}
	rows, cols := t.Shape()
	for i := 0; i < rows; i++ {
		row := labelCells(t.Index(), i, levels)
		for j := 0; j < cols; j++ {
			row = append(row, normalize(t.At(i, j)))
		}
		records.Rows = append(records.Rows, row)
	}
	return records
}

func flattenSeries(s *frame.Series) *Records {
	index := indexColumns(s.Index(), "index")
	name := valueColumn
	if s.Name != nil {
		name = fmt.Sprint(s.Name)
	}
	records := &Records{Columns: uniqueColumns(append(index, name))}
	for i := 0; i < s.Len(); i++ {
		records.Rows = append(records.Rows, append(labelCells(s.Index(), i, len(index)), normalize(s.At(i))))
	}
	return records
}

func flattenPanel(p *frame.Panel) *Records {
	axes := p.Axes()
	levels := make([]int, len(axes))
	var columns []string
	for a, axis := range axes {
		names := indexColumns(axis, fmt.Sprintf("axis%d", a))
		levels[a] = len(names)
		columns = append(columns, names...)
	}
	records := &Records{Columns: uniqueColumns(append(columns, valueColumn))}

	shape := p.Shape()
	total := 1
	for _, n := range shape {
		total *= n
	}
	pos := make([]int, len(shape))
	for n := 0; n < total; n++ {
		var row []any
		for a, axis := range axes {
			row = append(row, labelCells(axis, pos[a], levels[a])...)
		}
		records.Rows = append(records.Rows, append(row, normalize(p.At(pos...))))

		// last axis varies fastest
		for a := len(pos) - 1; a >= 0; a-- {
			pos[a]++
			if pos[a] < shape[a] {
				break
			}
			pos[a] = 0
		}
	}
	return records
}

// flattenResults flattens every value and stacks them under a key column.
// Value columns are the union of the parts' columns, in first-seen order.
func flattenResults(r *combine.Results) (*Records, error) {
	union := orderedmap.New[string, int]()
	type part struct {
		key     any
		records *Records
	}
	var parts []part
	var err error
	r.Each(func(key, value any) bool {
		var records *Records
		records, err = Flatten(value)
		if err != nil {
			err = fmt.Errorf("failed to flatten result %v: %w", key, err)
			return false
		}
		for _, column := range records.Columns {
			if _, found := union.Get(column); !found {
				union.Set(column, union.Len())
			}
		}
		parts = append(parts, part{key: key, records: records})
		return true
	})
	if err != nil {
		return nil, err
	}

	columns := []string{keyColumn}
	for pair := union.Oldest(); pair != nil; pair = pair.Next() {
		columns = append(columns, pair.Key)
	}
	out := &Records{Columns: uniqueColumns(columns)}
	for _, p := range parts {
		positions := make([]int, len(p.records.Columns))
		for j, column := range p.records.Columns {
			positions[j], _ = union.Get(column)
		}
		for _, cells := range p.records.Rows {
			row := make([]any, len(columns))
			row[0] = normalize(p.key)
			for j, cell := range cells {
				row[positions[j]+1] = cell
			}
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

func indexColumns(ix *frame.Index, fallback string) []string {
	levels := ix.Levels()
	names := ix.Names()
	columns := make([]string, levels)
	for i := range columns {
		switch {
		case i < len(names) && names[i] != "":
			columns[i] = names[i]
		case levels == 1:
			columns[i] = fallback
		default:
			columns[i] = fmt.Sprintf("%s_%d", fallback, i)
		}
	}
	return columns
}

func labelCells(ix *frame.Index, i, levels int) []any {
	cells := make([]any, levels)
	label := ix.Label(i)
	if t, ok := label.(frame.Tuple); ok && levels > 1 {
		for j := 0; j < levels && j < len(t); j++ {
			cells[j] = normalize(t[j])
		}
		return cells
	}
	cells[0] = normalize(label)
	return cells
}

// uniqueColumns suffixes repeated names with _1, _2, ...
func uniqueColumns(columns []string) []string {
	taken := make(map[string]bool, len(columns))
	out := make([]string, len(columns))
	for i, column := range columns {
		name := column
		for n := 1; taken[name]; n++ {
			name = fmt.Sprintf("%s_%d", column, n)
		}
		taken[name] = true
		out[i] = name
	}
	return out
}

// normalize maps a cell onto the types writers know how to store.
func normalize(v any) any {
	switch x := v.(type) {
	case nil, bool, string, int64, float64, time.Time, time.Duration:
		return x
	case frame.Tuple:
		return x.String()
	case fmt.Stringer:
		return x.String()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Float32:
		return rv.Float()
	}
	return fmt.Sprint(v)
}
