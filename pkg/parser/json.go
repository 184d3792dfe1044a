package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/soundscape-lab/sounddb/pkg/frame"
	"github.com/soundscape-lab/sounddb/types"
	"github.com/soundscape-lab/sounddb/utils/logger"
	"github.com/soundscape-lab/sounddb/utils/typeutils"
)

// JSONParser implements the Parser interface for JSON files. Nested objects
// are flattened into dotted column names.
type JSONParser struct {
	config    JSONConfig
	schema    *Schema
	flattener typeutils.Flattener
}

// NewJSONParser creates a new JSON parser with the given configuration
func NewJSONParser(config JSONConfig) *JSONParser {
	return &JSONParser{
		config:    config,
		schema:    NewSchema(),
		flattener: typeutils.NewFlattener(),
	}
}

// InferSchema reads the first few records of a JSON file to infer the schema
// Supports JSONL (line-delimited), JSON Array, and single JSON object formats
func (p *JSONParser) InferSchema(_ context.Context, reader io.Reader) (*Schema, error) {
	logger.Debug("Inferring JSON schema from sample data")
	maxSamples := 100

	// Limit data read for schema inference to prevent OOM on large files
	const maxBytesForInference = 10 * 1024 * 1024 // 10MB
	limitedReader := io.LimitReader(reader, maxBytesForInference)

	data, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON file: %s", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty JSON file")
	}

	sampleRecords, err := p.parseJSONContent(trimmed, maxSamples)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %s", err)
	}

	if len(sampleRecords) == 0 {
		return nil, fmt.Errorf("no records found in JSON file")
	}

	for i, record := range sampleRecords {
		flat, err := p.flattener.Flatten(record)
		if err != nil {
			return nil, fmt.Errorf("failed to flatten record %d: %s", i, err)
		}
		for _, name := range sortedKeys(flat) {
			p.schema.Upsert(name, types.TypeOf(flat[name]))
		}
	}

	logger.Debugf("Inferred schema with %d columns from JSON file", len(p.schema.Columns))
	return p.schema, nil
}

// StreamRecords reads and streams flattened JSON records with context support
func (p *JSONParser) StreamRecords(ctx context.Context, reader io.Reader, callback RecordCallback) error {
	recordCount := 0
	decoder := json.NewDecoder(reader)

	emit := func(record map[string]any) error {
		flat, err := p.flattener.Flatten(record)
		if err != nil {
			return fmt.Errorf("failed to flatten record %d: %s", recordCount, err)
		}
		if err := callback(ctx, flat); err != nil {
			return fmt.Errorf("failed to process record: %s", err)
		}
		recordCount++
		return nil
	}

	if p.config.LineDelimited {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			var record map[string]any
			if err := decoder.Decode(&record); err == io.EOF {
				break
			} else if err != nil {
				return fmt.Errorf("failed to read JSON record %d: %s", recordCount, err)
			}
			if err := emit(record); err != nil {
				return err
			}
		}
	} else {
		var records []map[string]any
		if err := decoder.Decode(&records); err != nil {
			return fmt.Errorf("failed to read JSON array: %s", err)
		}
		for _, record := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := emit(record); err != nil {
				return err
			}
		}
	}

	logger.Debugf("Processed %d records from JSON file", recordCount)
	return nil
}

// ReadTable collects every record into a table. Columns appear in the order
// they are first seen.
func (p *JSONParser) ReadTable(ctx context.Context, reader io.Reader) (*frame.Table, error) {
	builder := newTableBuilder(p.schema.Columns...)
	err := p.StreamRecords(ctx, reader, func(_ context.Context, record map[string]any) error {
		builder.add(record)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return builder.table(), nil
}

// parseJSONContent parses sample content based on its first character
// Supports: JSON Array, JSONL (line-delimited), single JSON object
func (p *JSONParser) parseJSONContent(data []byte, maxSamples int) ([]map[string]any, error) {
	switch data[0] {
	case '[':
		return p.parseJSONArray(data, maxSamples)
	case '{':
		return p.parseJSONLOrObject(data, maxSamples)
	default:
		return nil, fmt.Errorf("invalid JSON format: expected '[' or '{', got '%c'", data[0])
	}
}

// parseJSONArray handles JSON array format: [{"key":"value"}, ...]
func (p *JSONParser) parseJSONArray(data []byte, maxSamples int) ([]map[string]any, error) {
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode JSON array: %s", err)
	}
	if len(records) > maxSamples {
		records = records[:maxSamples]
	}
	return records, nil
}

// parseJSONLOrObject handles JSONL and a single object
func (p *JSONParser) parseJSONLOrObject(data []byte, maxSamples int) ([]map[string]any, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	records := []map[string]any{}
	for len(records) < maxSamples {
		var record map[string]any
		err := decoder.Decode(&record)
		if err == io.EOF {
			break
		}
		if err != nil {
			// a truncated sample still yields the records before it
			if len(records) > 0 {
				logger.Warnf("JSONL parsing stopped at record %d due to error: %v", len(records), err)
				break
			}
			return nil, fmt.Errorf("failed to parse as single JSON object or JSONL: %s", err)
		}
		records = append(records, record)
	}
	return records, nil
}
