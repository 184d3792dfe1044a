package frame

import (
	"fmt"
	"sort"
)

// Index is an immutable ordered sequence of labels. Labels may repeat; lookups
// return the first position. An index with more than one name is multi-level
// and its labels are Tuples with one element per level.
type Index struct {
	names  []string
	labels []any
	pos    map[string]int
}

// NewIndex builds an index over labels. Pass one name per level.
func NewIndex(labels []any, names ...string) *Index {
	ix := &Index{
		names:  append([]string(nil), names...),
		labels: append([]any(nil), labels...),
		pos:    make(map[string]int, len(labels)),
	}
	for i, label := range ix.labels {
		key := LabelKey(label)
		if _, found := ix.pos[key]; !found {
			ix.pos[key] = i
		}
	}
	return ix
}

// RangeIndex labels n positions 0..n-1.
func RangeIndex(n int) *Index {
	labels := make([]any, n)
	for i := range labels {
		labels[i] = i
	}
	return NewIndex(labels)
}

// StringIndex is a convenience for column names.
func StringIndex(labels ...string) *Index {
	out := make([]any, len(labels))
	for i, l := range labels {
		out[i] = l
	}
	return NewIndex(out)
}

func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.labels)
}

func (ix *Index) Label(i int) any {
	return ix.labels[i]
}

// Labels returns a copy of the labels.
func (ix *Index) Labels() []any {
	return append([]any(nil), ix.labels...)
}

func (ix *Index) Names() []string {
	return append([]string(nil), ix.names...)
}

// Name returns the first level's name.
func (ix *Index) Name() string {
	if len(ix.names) == 0 {
		return ""
	}
	return ix.names[0]
}

// Levels is the number of index levels.
func (ix *Index) Levels() int {
	if len(ix.names) > 1 {
		return len(ix.names)
	}
	if len(ix.labels) > 0 {
		if t, ok := ix.labels[0].(Tuple); ok {
			return len(t)
		}
	}
	return 1
}

// Loc returns the first position of label.
func (ix *Index) Loc(label any) (int, bool) {
	if ix == nil {
		return -1, false
	}
	i, ok := ix.pos[LabelKey(label)]
	return i, ok
}

func (ix *Index) Contains(label any) bool {
	_, ok := ix.Loc(label)
	return ok
}

// Keys returns the canonical key of every label, in order.
func (ix *Index) Keys() []string {
	keys := make([]string, len(ix.labels))
	for i, l := range ix.labels {
		keys[i] = LabelKey(l)
	}
	return keys
}

// Unique reports whether no label repeats.
func (ix *Index) Unique() bool {
	return len(ix.pos) == len(ix.labels)
}

// Kind names the common type family of the labels, or "mixed".
func (ix *Index) Kind() string {
	kind := ""
	for _, l := range ix.labels {
		k := labelKind(l)
		if k == "" {
			continue
		}
		if kind == "" {
			kind = k
		} else if kind != k {
			return "mixed"
		}
	}
	return kind
}

// Rename returns a copy with new level names.
func (ix *Index) Rename(names ...string) *Index {
	return NewIndex(ix.labels, names...)
}

// Take returns the labels at the given positions.
func (ix *Index) Take(positions []int) *Index {
	labels := make([]any, len(positions))
	for i, p := range positions {
		labels[i] = ix.labels[p]
	}
	return NewIndex(labels, ix.names...)
}

// Append concatenates indexes, keeping duplicates.
func (ix *Index) Append(others ...*Index) *Index {
	labels := ix.Labels()
	for _, o := range others {
		labels = append(labels, o.labels...)
	}
	return NewIndex(labels, ix.names...)
}

// Union returns the labels of all indexes in first-seen order without repeats.
func Union(indexes ...*Index) *Index {
	var (
		labels []any
		names  []string
		seen   = map[string]struct{}{}
	)
	for _, ix := range indexes {
		if names == nil && len(ix.names) > 0 {
			names = ix.names
		}
		for _, l := range ix.labels {
			key := LabelKey(l)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			labels = append(labels, l)
		}
	}
	return NewIndex(labels, names...)
}

// Equal reports whether both indexes hold the same labels in the same order.
func (ix *Index) Equal(other *Index) bool {
	if ix.Len() != other.Len() {
		return false
	}
	for i := range ix.labels {
		if LabelKey(ix.labels[i]) != LabelKey(other.labels[i]) {
			return false
		}
	}
	return true
}

// Argsort returns the positions that order the labels ascending. The sort is stable.
func (ix *Index) Argsort() []int {
	order := make([]int, len(ix.labels))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return CompareLabels(ix.labels[order[a]], ix.labels[order[b]]) < 0
	})
	return order
}

// Prefixed returns a multi-level index with outer prepended to every label.
func (ix *Index) Prefixed(outer any, name string) *Index {
	labels := make([]any, len(ix.labels))
	for i, l := range ix.labels {
		labels[i] = prefixTuple(outer, l)
	}
	names := []string{name}
	if inner := ix.names; len(inner) > 0 {
		names = append(names, inner...)
	} else {
		names = append(names, "")
	}
	return NewIndex(labels, names...)
}

func prefixTuple(outer, inner any) Tuple {
	if t, ok := inner.(Tuple); ok {
		return append(Tuple{outer}, t...)
	}
	return Tuple{outer, inner}
}

func (ix *Index) String() string {
	return fmt.Sprintf("Index(%v, names=%v)", ix.labels, ix.names)
}
