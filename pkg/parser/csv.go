package parser

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/soundscape-lab/sounddb/pkg/frame"
	"github.com/soundscape-lab/sounddb/types"
	"github.com/soundscape-lab/sounddb/utils"
	"github.com/soundscape-lab/sounddb/utils/logger"
	"github.com/soundscape-lab/sounddb/utils/typeutils"
)

// CSVParser implements the Parser interface for delimited text files
type CSVParser struct {
	config CSVConfig
	schema *Schema
}

// NewCSVParser creates a new CSV parser with the given configuration
func NewCSVParser(config CSVConfig) *CSVParser {
	if config.Delimiter == "" {
		config.Delimiter = ","
	}
	return &CSVParser{
		config: config,
		schema: NewSchema(),
	}
}

// NewTSVParser is a headed, tab-separated parser
func NewTSVParser(comment string) *CSVParser {
	return NewCSVParser(CSVConfig{Delimiter: "\t", HasHeader: true, Comment: comment, QuoteCharacter: `"`})
}

func (p *CSVParser) newReader(reader io.Reader) *csv.Reader {
	csvReader := csv.NewReader(reader)
	csvReader.Comma = rune(p.config.Delimiter[0])
	if p.config.Comment != "" {
		csvReader.Comment = rune(p.config.Comment[0])
	}
	if p.config.QuoteCharacter != "" {
		csvReader.LazyQuotes = true
	}
	// rows may be ragged, e.g. trailing summary lines
	csvReader.FieldsPerRecord = -1
	return csvReader
}

// readHeader skips configured rows and returns the column names. Without a
// header the first data row is returned as pending so it is not lost.
func (p *CSVParser) readHeader(csvReader *csv.Reader) ([]string, []string, error) {
	for i := 0; i < p.config.SkipRows; i++ {
		if _, err := csvReader.Read(); err != nil {
			return nil, nil, fmt.Errorf("failed to skip row %d: %w", i, err)
		}
	}

	if p.config.HasHeader {
		headers, err := csvReader.Read()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read CSV headers: %w", err)
		}
		for i := range headers {
			headers[i] = strings.TrimSpace(headers[i])
		}
		return headers, nil, nil
	}

	firstRow, err := csvReader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read first CSV row: %w", err)
	}
	// Generate column names as column_0, column_1, etc.
	headers := make([]string, len(firstRow))
	for i := range firstRow {
		headers[i] = fmt.Sprintf("column_%d", i)
	}
	return headers, firstRow, nil
}

// readRows reads up to limit rows (all when limit < 0)
func (p *CSVParser) readRows(ctx context.Context, csvReader *csv.Reader, pending []string, limit int) ([][]string, error) {
	var rows [][]string
	if pending != nil {
		rows = append(rows, pending)
	}
	for limit < 0 || len(rows) < limit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warnf("Error reading CSV row %d: %v", len(rows), err)
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// InferSchema reads the first few rows of a file to infer the schema
// Uses small samples to avoid loading entire file into memory
func (p *CSVParser) InferSchema(ctx context.Context, reader io.Reader) (*Schema, error) {
	logger.Debug("Inferring CSV schema from sample data")

	csvReader := p.newReader(reader)
	headers, pending, err := p.readHeader(csvReader)
	if err != nil {
		return nil, err
	}

	// Read a few sample rows to infer data types (max 100 samples)
	sampleRows, err := p.readRows(ctx, csvReader, pending, 100)
	if err != nil {
		return nil, err
	}

	for i, header := range headers {
		p.schema.Upsert(header, p.columnType(sampleRows, i))
	}

	logger.Debugf("Inferred schema with %d columns from CSV", len(headers))
	return p.schema, nil
}

// StreamRecords reads and streams rows with context support. Columns known
// from a previous InferSchema are converted to their inferred type; others
// are typed cell by cell.
func (p *CSVParser) StreamRecords(ctx context.Context, reader io.Reader, callback RecordCallback) error {
	csvReader := p.newReader(reader)
	headers, pending, err := p.readHeader(csvReader)
	if err != nil {
		return err
	}

	emit := func(row []string, recordCount int) error {
		record := make(map[string]any, len(headers))
		for i, value := range row {
			if i >= len(headers) {
				break
			}
			fieldType, err := p.schema.GetType(headers[i])
			if err != nil {
				fieldType = p.columnType([][]string{row}, i)
			}
			convertedValue, err := convertValue(value, fieldType, p.config.TimeLayouts...)
			if err != nil {
				return fmt.Errorf("failed to convert value for field %s in row %d: %w", headers[i], recordCount, err)
			}
			record[headers[i]] = convertedValue
		}
		if err := callback(ctx, record); err != nil {
			return fmt.Errorf("failed to process record: %w", err)
		}
		return nil
	}

	recordCount := 0
	if pending != nil {
		if err := emit(pending, recordCount); err != nil {
			return err
		}
		recordCount++
	}
	for {
		// Check context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		row, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warnf("Error reading CSV row %d: %v", recordCount, err)
			continue
		}
		if err := emit(row, recordCount); err != nil {
			return err
		}
		recordCount++
	}

	logger.Debugf("Processed %d records from CSV file", recordCount)
	return nil
}

// ReadTable reads the whole file, typing every column from all of its values.
func (p *CSVParser) ReadTable(ctx context.Context, reader io.Reader) (*frame.Table, error) {
	csvReader := p.newReader(reader)
	headers, pending, err := p.readHeader(csvReader)
	if err != nil {
		return nil, err
	}
	rows, err := p.readRows(ctx, csvReader, pending, -1)
	if err != nil {
		return nil, err
	}

	data := make([][]any, len(headers))
	for i, header := range headers {
		dataType := p.columnType(rows, i)
		p.schema.Upsert(header, dataType)
		column := make([]any, len(rows))
		for r, row := range rows {
			if i >= len(row) {
				continue
			}
			value, err := convertValue(row[i], dataType, p.config.TimeLayouts...)
			if err != nil {
				return nil, fmt.Errorf("failed to convert value for field %s in row %d: %w", header, r, err)
			}
			column[r] = value
		}
		data[i] = column
	}

	return frame.NewTable(frame.RangeIndex(len(rows)), frame.StringIndex(headers...), data), nil
}

func (p *CSVParser) columnType(rows [][]string, columnIndex int) types.DataType {
	if utils.ExistInArray(p.config.TextColumns, columnIndex) {
		return types.String
	}
	return inferColumnType(rows, columnIndex, p.config.TimeLayouts...)
}

func isNullText(value string) bool {
	return value == "" || strings.ToLower(value) == "null"
}

// inferColumnType infers the data type of a column from sample values
func inferColumnType(sampleRows [][]string, columnIndex int, timeLayouts ...string) types.DataType {
	if len(sampleRows) == 0 {
		return types.String
	}

	allInt := true
	allFloat := true
	allBool := true
	allTime := len(timeLayouts) > 0
	nonNullCount := 0

	for _, row := range sampleRows {
		if columnIndex >= len(row) {
			continue
		}

		value := strings.TrimSpace(row[columnIndex])
		if isNullText(value) {
			continue
		}

		nonNullCount++

		// If any value fails to parse, that type is ruled out
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			allInt = false
		}

		if _, err := strconv.ParseFloat(value, 64); err != nil {
			allFloat = false
		}

		lowerValue := strings.ToLower(value)
		if lowerValue != "true" && lowerValue != "false" {
			allBool = false
		}

		if allTime {
			if _, ok := typeutils.ParseTime(value, timeLayouts...); !ok {
				allTime = false
			}
		}
	}

	// If no non-null values found, default to string
	if nonNullCount == 0 {
		return types.String
	}

	// Priority: Bool > Int > Float > Timestamp > String
	switch {
	case allBool:
		return types.Bool
	case allInt:
		return types.Int64
	case allFloat:
		return types.Float64
	case allTime:
		return types.Timestamp
	}
	return types.String
}

// convertValue converts a string value to the appropriate type based on schema
func convertValue(value string, fieldType types.DataType, timeLayouts ...string) (any, error) {
	trimmed := strings.TrimSpace(value)

	// Handle null/empty values
	if isNullText(trimmed) {
		return nil, nil
	}

	switch fieldType {
	case types.Int64:
		intVal, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to convert '%s' to integer: %w", trimmed, err)
		}
		return intVal, nil
	case types.Float64:
		floatVal, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to convert '%s' to float: %w", trimmed, err)
		}
		return floatVal, nil
	case types.Bool:
		boolVal, err := strconv.ParseBool(trimmed)
		if err != nil {
			return nil, fmt.Errorf("failed to convert '%s' to boolean: %w", trimmed, err)
		}
		return boolVal, nil
	case types.Timestamp:
		t, ok := typeutils.ParseTime(trimmed, timeLayouts...)
		if !ok {
			return nil, fmt.Errorf("failed to convert '%s' to timestamp", trimmed)
		}
		return t, nil
	}

	// Default to string
	return trimmed, nil
}
