package types

import (
	"context"
)

// SortSpec orders entries by field values (a compound key in field order) or
// by a key function. Sorting never reads file contents.
type SortSpec struct {
	Fields []string
	Func   func(*Entry) any
}

// IsZero reports whether no ordering was requested.
func (s *SortSpec) IsZero() bool {
	return s == nil || (len(s.Fields) == 0 && s.Func == nil)
}

// Key projects an entry onto its sort key. A single field yields the bare
// value, several fields yield a []any in field order.
func (s *SortSpec) Key(entry *Entry) any {
	if s.Func != nil {
		return s.Func(entry)
	}
	if len(s.Fields) == 1 {
		v, _ := entry.Field(s.Fields[0])
		return v
	}
	key := make([]any, len(s.Fields))
	for i, field := range s.Fields {
		key[i], _ = entry.Field(field)
	}
	return key
}

// Selection is what a query asks a record source for.
type Selection struct {
	Filters Filters
	// Items, when set, restricts entries to those matching at least one filter set.
	Items []Filters
	Sort  *SortSpec
	// Limit caps the number of entries; zero means unlimited.
	Limit int
}

// Match applies Filters and Items to one entry.
func (s Selection) Match(entry *Entry) bool {
	if !s.Filters.Match(entry) {
		return false
	}
	if s.Items == nil {
		return true
	}
	for _, item := range s.Items {
		if item.Match(entry) {
			return true
		}
	}
	return false
}

// EntryIterator is a pull iterator over entries. Next returns false when the
// entries are exhausted or an error occurred; Err reports which.
type EntryIterator interface {
	Next(ctx context.Context) bool
	Entry() *Entry
	Err() error
	Close() error
}

// Endpoint is one kind of file within a dataset.
type Endpoint interface {
	Name() string
	// Fields lists the field names parsed from this endpoint's paths.
	Fields() []string
	Entries(ctx context.Context, sel Selection) (EntryIterator, error)
}

// Dataset resolves endpoints by name.
type Dataset interface {
	Endpoint(name string) (Endpoint, bool)
	Endpoints() []string
}

// SliceIterator serves a fixed, already-selected list of entries. It owns the
// slice: each served entry is released when the iterator advances, so parsed
// data attached to it can be collected.
type SliceIterator struct {
	entries []*Entry
	pos     int
	closed  bool
	err     error
}

func NewSliceIterator(entries []*Entry) *SliceIterator {
	return &SliceIterator{entries: entries, pos: -1}
}

func (s *SliceIterator) Next(ctx context.Context) bool {
	if s.closed {
		return false
	}
	if err := ctx.Err(); err != nil {
		s.err = err
		return false
	}
	if s.pos >= 0 && s.pos < len(s.entries) {
		s.entries[s.pos] = nil
	}
	s.pos++
	return s.pos < len(s.entries)
}

func (s *SliceIterator) Entry() *Entry {
	if s.pos < 0 || s.pos >= len(s.entries) {
		return nil
	}
	return s.entries[s.pos]
}

func (s *SliceIterator) Err() error {
	return s.err
}

func (s *SliceIterator) Close() error {
	s.closed = true
	s.entries = nil
	return nil
}
