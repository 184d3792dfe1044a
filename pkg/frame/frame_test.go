package frame

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func levels(rows ...[]any) *Table {
	return FromRows(nil, []string{"dbA", "dbT"}, rows)
}

func TestLabelKey(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		same bool
	}{
		{name: "int and float", a: 2020, b: 2020.0, same: true},
		{name: "int64 and int", a: int64(7), b: 7, same: true},
		{name: "string and int", a: "2020", b: 2020, same: false},
		{name: "fraction", a: 12.5, b: 12.5, same: true},
		{name: "tuples", a: Tuple{"BELA", 2020}, b: Tuple{"BELA", 2020.0}, same: true},
		{name: "times in zones", a: time.Date(2020, 1, 1, 1, 0, 0, 0, time.FixedZone("x", 3600)), b: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), same: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.same, LabelKey(tc.a) == LabelKey(tc.b))
		})
	}
}

func TestIndex(t *testing.T) {
	ix := NewIndex([]any{"b", "a", "b"}, "site")
	assert.Equal(t, 3, ix.Len())
	assert.False(t, ix.Unique())
	pos, ok := ix.Loc("b")
	assert.True(t, ok)
	assert.Equal(t, 0, pos)
	assert.Equal(t, []int{1, 0, 2}, ix.Argsort())
	assert.Equal(t, "string", ix.Kind())
	assert.Equal(t, "mixed", NewIndex([]any{"a", 1}).Kind())

	u := Union(StringIndex("a", "b"), StringIndex("b", "c"))
	assert.Equal(t, []any{"a", "b", "c"}, u.Labels())

	prefixed := StringIndex("x", "y").Prefixed("BELA", "ID")
	assert.Equal(t, []any{Tuple{"BELA", "x"}, Tuple{"BELA", "y"}}, prefixed.Labels())
	assert.Equal(t, 2, prefixed.Levels())
	assert.Equal(t, "ID", prefixed.Name())
}

func TestSeriesReductions(t *testing.T) {
	s := NewSeries("dbA", nil, []any{30.0, nil, 40.0, math.NaN(), int64(50)})
	assert.Equal(t, 120.0, s.Sum())
	assert.Equal(t, 40.0, s.Mean())
	assert.Equal(t, 40.0, s.Median())
	assert.Equal(t, 30.0, s.Min())
	assert.Equal(t, int64(50), s.Max())
	assert.Equal(t, 3, s.Count())
	assert.Equal(t, 10.0, s.Std())
	assert.Equal(t, 45.0, Quantile(s.Values(), 0.75))

	durations := NewSeries("len", nil, []any{time.Second, 3 * time.Second})
	assert.Equal(t, 4*time.Second, durations.Sum())
	assert.Equal(t, 2*time.Second, durations.Mean())

	empty := NewSeries(nil, nil, nil)
	assert.Equal(t, 0.0, empty.Sum())
	assert.True(t, math.IsNaN(empty.Mean().(float64)))
}

func TestSeriesReindex(t *testing.T) {
	s := NewSeries("x", StringIndex("a", "b"), []any{1, 2})
	r := s.Reindex(StringIndex("b", "c"))
	assert.Equal(t, []any{2, nil}, r.Values())
	assert.True(t, r.HasMissing())
	assert.Equal(t, []any{2}, r.DropMissing().Values())
}

func TestTableBasics(t *testing.T) {
	tbl := levels([]any{30.0, 31.0}, []any{40.0, 41.0})
	rows, cols := tbl.Shape()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 2, cols)

	col, ok := tbl.Column("dbA")
	require.True(t, ok)
	assert.Equal(t, []any{30.0, 40.0}, col.Values())
	assert.Equal(t, 70.0, col.Sum())

	sums := tbl.Reduce(Sum, 0)
	assert.Equal(t, []any{70.0, 72.0}, sums.Values())
	assert.Equal(t, []any{"dbA", "dbT"}, sums.Index().Labels())
	rowSums := tbl.Reduce(Sum, 1)
	assert.Equal(t, []any{61.0, 81.0}, rowSums.Values())

	indexed, err := FromRows(nil, []string{"site", "dbA"}, [][]any{{"b", 1.0}, {"a", 2.0}}).SetIndex("site")
	require.NoError(t, err)
	assert.Equal(t, []any{"b", "a"}, indexed.Index().Labels())
	assert.Equal(t, []string{"dbA"}, indexed.ColumnNames())
	assert.Equal(t, []any{"a", "b"}, indexed.SortIndex().Index().Labels())

	_, err = tbl.SetIndex("missing")
	assert.Error(t, err)

	renamed := tbl.RenameColumns(map[string]any{"dbA": "A"})
	assert.Equal(t, []string{"A", "dbT"}, renamed.ColumnNames())

	tr := tbl.Transpose()
	assert.Equal(t, []any{"dbA", "dbT"}, tr.Index().Labels())
	assert.Equal(t, 31.0, tr.At(1, 0))
}

func TestConcat(t *testing.T) {
	a := FromRows(StringIndex("r1"), []string{"level"}, [][]any{{42}})
	b := FromRows(StringIndex("r2"), []string{"level", "extra"}, [][]any{{43, "x"}})

	out, err := Concat([]any{a, b})
	require.NoError(t, err)
	tbl := out.(*Table)
	assert.Equal(t, []any{"r1", "r2"}, tbl.Index().Labels())
	assert.Equal(t, []string{"level", "extra"}, tbl.ColumnNames())
	assert.Nil(t, tbl.At(0, 1))

	s1 := NewSeries("x", StringIndex("a"), []any{1})
	s2 := NewSeries("x", StringIndex("b"), []any{2})
	out, err = Concat([]any{s1, s2})
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2}, out.(*Series).Values())
	assert.Equal(t, "x", out.(*Series).Name)

	single, err := Concat([]any{"only"})
	require.NoError(t, err)
	assert.Equal(t, "only", single)

	_, err = Concat([]any{1, 2})
	assert.ErrorIs(t, err, ErrNotConcatenable)
	_, err = Concat([]any{s1, a})
	assert.ErrorIs(t, err, ErrNotConcatenable)
}

func TestConcatKeyed(t *testing.T) {
	a := FromRows(nil, []string{"level"}, [][]any{{1}, {2}})
	b := FromRows(nil, []string{"level"}, [][]any{{3}})
	out, err := ConcatKeyed([]any{"A", "B"}, []any{a, b}, "ID")
	require.NoError(t, err)
	tbl := out.(*Table)
	assert.Equal(t, []any{Tuple{"A", 0}, Tuple{"A", 1}, Tuple{"B", 0}}, tbl.Index().Labels())
	assert.Equal(t, "ID", tbl.Index().Name())
}

func TestStack(t *testing.T) {
	keys := StringIndex("siteA", "siteB")
	s1 := NewSeries(nil, StringIndex("a", "b"), []any{1, 2})
	s2 := NewSeries(nil, StringIndex("a", "b"), []any{3, 4})
	tbl, err := StackSeries(keys, []*Series{s1, s2})
	require.NoError(t, err)
	assert.Equal(t, []string{"siteA", "siteB"}, tbl.ColumnNames())
	assert.Equal(t, 0, tbl.MissingCount())

	panel, err := StackTables(keys, []*Table{levels([]any{1, 2}), levels([]any{3, 4})})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 2}, panel.Shape())
	v, ok := panel.Get("siteB", 0, "dbT")
	require.True(t, ok)
	assert.Equal(t, 4, v)

	slice, ok := panel.Slice("siteA")
	require.True(t, ok)
	assert.Equal(t, 2, slice.(*Table).At(0, 1))

	four, err := StackPanels(StringIndex("x", "y"), []*Panel{panel, panel})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1, 2}, four.Shape())
	v, ok = four.Get("y", "siteB", 0, "dbA")
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestPanelReduceAndConcat(t *testing.T) {
	panel, err := StackTables(StringIndex("above", "all"), []*Table{levels([]any{1, 2}, []any{3, 4}), levels([]any{5, 6}, []any{7, 8})})
	require.NoError(t, err)

	reduced, err := panel.Reduce(Sum, 1)
	require.NoError(t, err)
	tbl := reduced.(*Table)
	assert.Equal(t, []any{"above", "all"}, tbl.Index().Labels())
	assert.Equal(t, 6.0, tbl.At(0, 1))

	joined, err := Concat([]any{panel, panel})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 2}, joined.(*Panel).Shape())
	assert.Equal(t, 8, joined.(*Panel).At(1, 3, 1))
}

func TestProtocol(t *testing.T) {
	tbl := levels([]any{30.0, 1.0}, []any{50.0, 2.0})

	col, err := tbl.GetAttr("dbA")
	require.NoError(t, err)
	median, err := col.(*Series).GetAttr("median")
	require.NoError(t, err)
	got, err := median.(*Method).Call(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 40.0, got)

	sum, err := tbl.GetAttr("sum")
	require.NoError(t, err)
	got, err = sum.(*Method).Call(nil, map[string]any{"axis": 1})
	require.NoError(t, err)
	assert.Equal(t, []any{31.0, 52.0}, got.(*Series).Values())

	item, err := tbl.GetItem([]any{"dbT"})
	require.NoError(t, err)
	assert.Equal(t, []string{"dbT"}, item.(*Table).ColumnNames())

	_, err = tbl.GetAttr("nope")
	assert.ErrorIs(t, err, ErrNoAttribute)
	_, err = tbl.GetItem("nope")
	assert.ErrorIs(t, err, ErrNoItem)

	head, err := col.(*Series).GetAttr("head")
	require.NoError(t, err)
	_, err = head.(*Method).Call([]any{"x"}, nil)
	assert.ErrorIs(t, err, ErrBadArgument)
}
