package parser

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"math/big"
	"time"
	"unicode/utf8"

	pq "github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"

	"github.com/soundscape-lab/sounddb/pkg/frame"
	"github.com/soundscape-lab/sounddb/types"
	"github.com/soundscape-lab/sounddb/utils"
	"github.com/soundscape-lab/sounddb/utils/logger"
)

// ParquetParser implements the Parser interface for flat Parquet files
// Note: Parquet schema inference doesn't need to read data, just metadata
type ParquetParser struct {
	config ParquetConfig
	schema *Schema
}

// NewParquetParser creates a new Parquet parser with the given configuration
func NewParquetParser(config ParquetConfig) *ParquetParser {
	return &ParquetParser{
		config: config,
		schema: NewSchema(),
	}
}

func (p *ParquetParser) selected(name string) bool {
	return len(p.config.Columns) == 0 || utils.ExistInArray(p.config.Columns, name)
}

// InferSchema reads Parquet file metadata to infer the schema
func (p *ParquetParser) InferSchema(_ context.Context, reader io.Reader) (*Schema, error) {
	logger.Debug("Inferring Parquet schema from file metadata")

	pqFile, err := openParquet(reader)
	if err != nil {
		return nil, err
	}

	for _, field := range pqFile.Schema().Fields() {
		if p.selected(field.Name()) {
			p.schema.Upsert(field.Name(), mapParquetType(field.Type()))
		}
	}

	logger.Debugf("Inferred schema with %d fields from Parquet", len(p.schema.Columns))
	return p.schema, nil
}

// StreamRecords reads and streams Parquet records with context support
func (p *ParquetParser) StreamRecords(ctx context.Context, reader io.Reader, callback RecordCallback) error {
	pqFile, err := openParquet(reader)
	if err != nil {
		return err
	}

	fields := pqFile.Schema().Fields()
	recordCount := 0
	totalRowGroups := len(pqFile.RowGroups())

	// Process row groups one at a time to limit memory usage
	for rgIdx, rowGroup := range pqFile.RowGroups() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		numRows := rowGroup.NumRows()
		logger.Debugf("Processing row group %d/%d (approx %d rows)", rgIdx+1, totalRowGroups, numRows)

		// Read the selected columns of THIS row group only
		columnData := make([][]pq.Value, len(fields))
		for colIdx, columnChunk := range rowGroup.ColumnChunks() {
			if colIdx >= len(fields) || !p.selected(fields[colIdx].Name()) {
				continue
			}
			values, err := readColumnChunk(columnChunk, numRows)
			if err != nil {
				return fmt.Errorf("failed to read column %s in row group %d: %w", fields[colIdx].Name(), rgIdx, err)
			}
			columnData[colIdx] = values
		}

		for rowIdx := int64(0); rowIdx < numRows; rowIdx++ {
			if rowIdx%1000 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}

			record := make(map[string]any)
			for colIdx, field := range fields {
				if columnData[colIdx] == nil || rowIdx >= int64(len(columnData[colIdx])) {
					continue
				}
				record[field.Name()] = parquetValueToInterfaceWithType(columnData[colIdx][rowIdx], field.Type())
			}

			if err := callback(ctx, record); err != nil {
				return fmt.Errorf("failed to process record: %w", err)
			}
			recordCount++
		}
	}

	logger.Debugf("Processed %d records from Parquet file", recordCount)
	return nil
}

// ReadTable reads the selected columns into a table, in file schema order.
func (p *ParquetParser) ReadTable(ctx context.Context, reader io.Reader) (*frame.Table, error) {
	readerAt, fileSize, err := prepareParquetReader(reader)
	if err != nil {
		return nil, err
	}
	// a section reader can be opened twice
	section := io.NewSectionReader(readerAt, 0, fileSize)
	pqFile, err := openParquet(section)
	if err != nil {
		return nil, err
	}
	var columns []string
	for _, field := range pqFile.Schema().Fields() {
		if p.selected(field.Name()) {
			columns = append(columns, field.Name())
		}
	}
	builder := newTableBuilder(columns...)
	err = p.StreamRecords(ctx, section, func(_ context.Context, record map[string]any) error {
		builder.add(record)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return builder.table(), nil
}

func readColumnChunk(columnChunk pq.ColumnChunk, numRows int64) ([]pq.Value, error) {
	pages := columnChunk.Pages()
	defer pages.Close()

	columnValues := make([]pq.Value, 0, numRows)
	for {
		page, err := pages.ReadPage()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read page: %w", err)
		}

		pageValues := make([]pq.Value, page.NumValues())
		_, err = page.Values().ReadValues(pageValues)
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("failed to read page values: %w", err)
		}
		columnValues = append(columnValues, pageValues...)
	}
	return columnValues, nil
}

// mapParquetType maps Parquet data types to column data types
func mapParquetType(pqType pq.Type) types.DataType {
	// Logical type annotations carry the semantic meaning
	if logicalType := pqType.LogicalType(); logicalType != nil {
		switch {
		case logicalType.Integer != nil:
			return types.Int64
		case logicalType.Timestamp != nil, logicalType.Date != nil:
			return types.Timestamp
		case logicalType.Time != nil:
			return types.Duration
		case logicalType.Decimal != nil:
			return types.Float64
		case logicalType.UTF8 != nil, logicalType.Json != nil, logicalType.UUID != nil,
			logicalType.Enum != nil, logicalType.Bson != nil:
			return types.String
		}
	}

	switch pqType.Kind() {
	case pq.Boolean:
		return types.Bool
	case pq.Int32, pq.Int64:
		return types.Int64
	case pq.Int96:
		// Int96 is typically used for timestamps in legacy Parquet files
		return types.Timestamp
	case pq.Float, pq.Double:
		return types.Float64
	case pq.ByteArray, pq.FixedLenByteArray:
		return types.String
	default:
		logger.Warnf("Unknown Parquet type %v, defaulting to string", pqType.Kind())
		return types.String
	}
}

// parquetValueToInterfaceWithType converts a parquet.Value to a table cell
func parquetValueToInterfaceWithType(val pq.Value, fieldType pq.Type) any {
	if val.IsNull() {
		return nil
	}

	if logicalType := fieldType.LogicalType(); logicalType != nil {
		// Date (days since Unix epoch, stored as INT32)
		if logicalType.Date != nil {
			return time.Unix(int64(val.Int32())*86400, 0).UTC()
		}

		if logicalType.Timestamp != nil {
			rawValue := val.Int64()
			switch unit := logicalType.Timestamp.Unit; {
			case unit.Nanos != nil:
				return time.Unix(0, rawValue).UTC()
			case unit.Micros != nil:
				return time.UnixMicro(rawValue).UTC()
			case unit.Millis != nil:
				return time.UnixMilli(rawValue).UTC()
			}
			return time.Unix(rawValue, 0).UTC()
		}

		// Time of day (stored as INT32 or INT64)
		if logicalType.Time != nil {
			var rawValue int64
			if val.Kind() == pq.Int32 {
				rawValue = int64(val.Int32())
			} else {
				rawValue = val.Int64()
			}
			switch unit := logicalType.Time.Unit; {
			case unit.Nanos != nil:
				return time.Duration(rawValue)
			case unit.Micros != nil:
				return time.Duration(rawValue) * time.Microsecond
			case unit.Millis != nil:
				return time.Duration(rawValue) * time.Millisecond
			}
			return time.Duration(rawValue) * time.Second
		}

		if logicalType.Decimal != nil {
			dec, err := decodeParquetDecimal(val, logicalType.Decimal.Scale)
			if err != nil {
				logger.Warnf("decimal decode failed: %v", err)
				return nil
			}
			v, _ := dec.Float64()
			return v
		}
	}

	switch val.Kind() {
	case pq.Boolean:
		return val.Boolean()
	case pq.Int32:
		return int64(val.Int32())
	case pq.Int64:
		return val.Int64()
	case pq.Float:
		return float64(val.Float())
	case pq.Double:
		return val.Double()
	case pq.ByteArray, pq.FixedLenByteArray:
		byteData := val.ByteArray()
		if utf8.Valid(byteData) {
			return string(byteData)
		}
		return base64.StdEncoding.EncodeToString(byteData)
	default:
		// Int96 and nested values keep their string form
		return val.String()
	}
}

func decodeParquetDecimal(val pq.Value, scale int32) (decimal.Decimal, error) {
	var unscaled *big.Int

	switch val.Kind() {
	case pq.Int32:
		unscaled = big.NewInt(int64(val.Int32()))
	case pq.Int64:
		unscaled = big.NewInt(val.Int64())
	case pq.FixedLenByteArray, pq.ByteArray:
		raw := val.ByteArray()
		if len(raw) == 0 {
			return decimal.Zero, nil
		}
		unscaled = new(big.Int).SetBytes(raw)
		// two's complement (signed)
		if raw[0]&0x80 != 0 {
			bitLen := uint(len(raw) * 8)
			max := new(big.Int).Lsh(big.NewInt(1), bitLen)
			unscaled.Sub(unscaled, max)
		}
	default:
		return decimal.Zero, fmt.Errorf("unsupported decimal kind: %v", val.Kind())
	}

	return decimal.NewFromBigInt(unscaled, -scale), nil
}

// openParquet opens a Parquet file over reader. Readers without random access
// (object store bodies, gzip streams) are buffered in memory first.
func openParquet(reader io.Reader) (*pq.File, error) {
	readerAt, fileSize, err := prepareParquetReader(reader)
	if err != nil {
		return nil, err
	}
	pqFile, err := pq.OpenFile(readerAt, fileSize)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	return pqFile, nil
}

// prepareParquetReader returns the io.ReaderAt and file size needed by parquet-go
func prepareParquetReader(reader io.Reader) (io.ReaderAt, int64, error) {
	readerAt, isReaderAt := reader.(io.ReaderAt)
	seeker, isSeeker := reader.(io.Seeker)
	if !isReaderAt || !isSeeker {
		data, err := io.ReadAll(reader)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to buffer parquet file: %w", err)
		}
		return bytes.NewReader(data), int64(len(data)), nil
	}

	size, err := seeker.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to determine file size: %w", err)
	}
	if _, err := seeker.Seek(0, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("failed to seek to start: %w", err)
	}
	return readerAt, size, nil
}
