package parser

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/soundscape-lab/sounddb/pkg/frame"
	"github.com/soundscape-lab/sounddb/types"
)

// Parser defines the interface for file format readers used by the acoustic
// parsers. It knows nothing about where the bytes come from.
type Parser interface {
	// InferSchema reads a small sample from the reader to infer column types
	// Should not load entire file into memory
	InferSchema(ctx context.Context, reader io.Reader) (*Schema, error)

	// StreamRecords reads records from the reader and calls callback for each record
	// Supports context cancellation to prevent resource leaks
	StreamRecords(ctx context.Context, reader io.Reader, callback RecordCallback) error

	// ReadTable reads the whole file into a table with a positional index
	ReadTable(ctx context.Context, reader io.Reader) (*frame.Table, error)
}

// RecordCallback is called for each record during streaming
// Return error to stop processing
type RecordCallback func(ctx context.Context, record map[string]any) error

// CSVConfig holds delimited-text parsing configuration
type CSVConfig struct {
	Delimiter      string `json:"delimiter"`       // Default: ","
	HasHeader      bool   `json:"has_header"`      // Default: true
	SkipRows       int    `json:"skip_rows"`       // Number of rows to skip at the beginning
	QuoteCharacter string `json:"quote_character"` // Default: "\""
	// Comment marks lines to ignore, e.g. "%" for version lines
	Comment string `json:"comment"`
	// TimeLayouts, when set, turns columns whose every value parses with one
	// of the layouts into timestamps
	TimeLayouts []string `json:"time_layouts"`
	// TextColumns lists column positions kept as text without inference
	TextColumns []int `json:"text_columns"`
}

// JSONConfig holds JSON-specific parsing configuration
type JSONConfig struct {
	LineDelimited bool `json:"line_delimited"` // Default: true (JSONL format)
}

// ParquetConfig holds Parquet-specific parsing configuration
type ParquetConfig struct {
	// Columns restricts reading to the named columns; empty reads all
	Columns []string `json:"columns"`
}

// Schema is the ordered set of columns of a file and their types.
type Schema struct {
	Columns []string
	Types   map[string]types.DataType
}

func NewSchema() *Schema {
	return &Schema{Types: make(map[string]types.DataType)}
}

// Upsert adds a column or widens its type to also hold dataType.
func (s *Schema) Upsert(name string, dataType types.DataType) {
	current, found := s.Types[name]
	if !found {
		s.Columns = append(s.Columns, name)
		s.Types[name] = dataType
		return
	}
	s.Types[name] = types.Widen(current, dataType)
}

func (s *Schema) GetType(name string) (types.DataType, error) {
	dataType, found := s.Types[name]
	if !found {
		return types.Unknown, fmt.Errorf("column %s not found in schema", name)
	}
	return dataType, nil
}

// tableBuilder accumulates records into column-major storage. Columns keep
// first-seen order; columns new to a record are appended in sorted order and
// back-filled with nil.
type tableBuilder struct {
	columns []string
	pos     map[string]int
	data    [][]any
	rows    int
}

func newTableBuilder(columns ...string) *tableBuilder {
	b := &tableBuilder{pos: make(map[string]int)}
	for _, column := range columns {
		b.addColumn(column)
	}
	return b
}

func (b *tableBuilder) addColumn(name string) {
	if _, found := b.pos[name]; found {
		return
	}
	b.pos[name] = len(b.columns)
	b.columns = append(b.columns, name)
	b.data = append(b.data, make([]any, b.rows))
}

func (b *tableBuilder) add(record map[string]any) {
	for _, name := range sortedKeys(record) {
		b.addColumn(name)
	}
	for i, name := range b.columns {
		b.data[i] = append(b.data[i], record[name])
	}
	b.rows++
}

func (b *tableBuilder) table() *frame.Table {
	return frame.NewTable(frame.RangeIndex(b.rows), frame.StringIndex(b.columns...), b.data)
}

func sortedKeys(record map[string]any) []string {
	keys := make([]string, 0, len(record))
	for key := range record {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
