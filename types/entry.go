package types

import (
	"context"
	"fmt"
	"io"
	"sort"
)

// Opener returns a fresh reader over an entry's bytes.
type Opener func(ctx context.Context) (io.ReadCloser, error)

// Entry is one file matched by a record source: its path, the metadata fields
// parsed from that path, and the parsed Data attached during query evaluation.
type Entry struct {
	Path   string
	Fields map[string]any
	Data   any

	opener Opener
}

// NewEntry builds an entry. A nil opener means the path is opened on local disk.
func NewEntry(path string, fields map[string]any, opener Opener) *Entry {
	if fields == nil {
		fields = map[string]any{}
	}
	return &Entry{Path: path, Fields: fields, opener: opener}
}

// Open returns a reader over the entry's contents.
func (e *Entry) Open(ctx context.Context) (io.ReadCloser, error) {
	if e.opener == nil {
		return OpenPath(ctx, e.Path)
	}
	return e.opener(ctx)
}

func (e *Entry) Field(name string) (any, bool) {
	v, ok := e.Fields[name]
	return v, ok
}

func (e *Entry) HasField(name string) bool {
	_, ok := e.Fields[name]
	return ok
}

// FieldNames lists the entry's fields in sorted order.
func (e *Entry) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone copies the entry's metadata; Data is not carried over.
func (e *Entry) Clone() *Entry {
	fields := make(map[string]any, len(e.Fields))
	for k, v := range e.Fields {
		fields[k] = v
	}
	return &Entry{Path: e.Path, Fields: fields, opener: e.opener}
}

func (e *Entry) String() string {
	return e.Path
}

// GoString renders the entry with its fields, as used in diagnostics.
func (e *Entry) GoString() string {
	return fmt.Sprintf("Entry(%s, %v)", e.Path, e.Fields)
}
