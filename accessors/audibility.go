package accessors

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/soundscape-lab/sounddb/pkg/accessor"
	"github.com/soundscape-lab/sounddb/pkg/frame"
	"github.com/soundscape-lab/sounddb/pkg/parser"
	"github.com/soundscape-lab/sounddb/types"
)

// Audibility reads listening-session files. A "%key: value" header carries
// the session date and listener; the table rows are indexed by date plus the
// time column.
var Audibility = accessor.MustNew("audibility", parseAudibility,
	accessor.WithDescription("listening session audibility logs"),
)

// audibilityHeader reads "%key: value" lines up to the "%col col ..." line
// naming the columns.
func audibilityHeader(reader *bufio.Reader) (map[string]string, []string, error) {
	metadata := map[string]string{}
	for {
		line, err := reader.ReadString('\n')
		if line == "" && err != nil {
			if err == io.EOF {
				return nil, nil, fmt.Errorf("no column header line found")
			}
			return nil, nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Split(line, ": ")
		if len(parts) == 2 && len(parts[0]) > 1 {
			metadata[strings.ToLower(parts[0][1:])] = strings.TrimSpace(parts[1])
			continue
		}
		return metadata, strings.Fields(strings.ToLower(line[1:])), nil
	}
}

func parseAudibility(ctx context.Context, entry *types.Entry, _ any) (any, error) {
	reader, err := entry.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	buffered := bufio.NewReader(reader)
	metadata, header, err := audibilityHeader(buffered)
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", entry, err)
	}

	config := parser.CSVConfig{Delimiter: "\t", Comment: "#", QuoteCharacter: `"`}
	table, err := parser.NewCSVParser(config).ReadTable(ctx, buffered)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", entry, err)
	}
	return shapeAudibility(table, metadata, header)
}

func shapeAudibility(table *frame.Table, metadata map[string]string, header []string) (*frame.Table, error) {
	if got := table.Columns().Len(); got != len(header) {
		return nil, fmt.Errorf("header names %d columns, table has %d", len(header), got)
	}
	names := make([]any, len(header))
	for i, name := range header {
		names[i] = name
	}
	table = frame.NewTable(table.Index(), frame.NewIndex(names), columnsOf(table))

	day, ok := toTime(metadata["date"])
	if !ok {
		return nil, fmt.Errorf("header has no valid date: %q", metadata["date"])
	}
	clocks, ok := columnValues(table, "time")
	if !ok {
		return nil, fmt.Errorf("audibility table has no time column")
	}
	index := make([]any, len(clocks))
	for i, v := range clocks {
		offset, err := parseClock(fmt.Sprint(v))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		index[i] = day.Add(offset)
	}
	table = table.Drop("time").WithIndex(frame.NewIndex(index, "date"))

	// keep terminology consistent with the other file types
	table = table.RenameColumns(map[string]any{"tagdate": "tagDate"})
	table = table.MapColumn("tagDate", func(v any) any {
		if t, ok := toTime(v); ok {
			return t
		}
		return v
	})

	if listener, ok := metadata["listener"]; ok {
		values := make([]any, table.Len())
		for i := range values {
			values[i] = listener
		}
		table = table.WithColumn("listener", values)
	}
	return table, nil
}

func columnsOf(table *frame.Table) [][]any {
	_, cols := table.Shape()
	data := make([][]any, cols)
	for c := range data {
		data[c] = table.ColumnAt(c).Values()
	}
	return data
}
