package parser

import (
	"bytes"
	"context"
	"math/big"
	"testing"

	pq "github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundscape-lab/sounddb/types"
)

type splRow struct {
	STime string  `parquet:"STime"`
	Hz125 float64 `parquet:"125"`
	Hz250 float64 `parquet:"250"`
	Count int32   `parquet:"count"`
}

func writeParquet(t *testing.T, rows []splRow) []byte {
	t.Helper()
	var buf bytes.Buffer
	writer := pq.NewGenericWriter[splRow](&buf)
	_, err := writer.Write(rows)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return buf.Bytes()
}

func TestMapParquetType_PhysicalTypes(t *testing.T) {
	tests := []struct {
		name     string
		pqType   pq.Type
		expected types.DataType
	}{
		{"Boolean", pq.BooleanType, types.Bool},
		{"Int32", pq.Int32Type, types.Int64},
		{"Int64", pq.Int64Type, types.Int64},
		{"Float", pq.FloatType, types.Float64},
		{"Double", pq.DoubleType, types.Float64},
		{"ByteArray", pq.ByteArrayType, types.String},
		{"Int96 legacy timestamp", pq.Int96Type, types.Timestamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, mapParquetType(tt.pqType))
		})
	}
}

func TestParquetValueToInterfaceWithType_PhysicalTypes(t *testing.T) {
	tests := []struct {
		name     string
		value    pq.Value
		pqType   pq.Type
		expected any
	}{
		{"Boolean true", pq.BooleanValue(true), pq.BooleanType, true},
		{"Int32 widens to int64", pq.Int32Value(12345), pq.Int32Type, int64(12345)},
		{"Int64", pq.Int64Value(9223372036854775807), pq.Int64Type, int64(9223372036854775807)},
		{"Double", pq.DoubleValue(3.5), pq.DoubleType, 3.5},
		{"Float widens to float64", pq.FloatValue(0.5), pq.FloatType, 0.5},
		{"utf8 bytes", pq.ByteArrayValue([]byte("SRCID")), pq.ByteArrayType, "SRCID"},
		{"binary bytes are base64", pq.ByteArrayValue([]byte{0xff, 0xfe}), pq.ByteArrayType, "//4="},
		{"Null", pq.NullValue(), pq.Int32Type, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parquetValueToInterfaceWithType(tt.value, tt.pqType))
		})
	}
}

func TestDecodeParquetDecimal(t *testing.T) {
	negative := func() pq.Value {
		// -12345 as 2-byte two's complement
		raw := make([]byte, 2)
		new(big.Int).Add(big.NewInt(-12345), new(big.Int).Lsh(big.NewInt(1), 16)).FillBytes(raw)
		return pq.ByteArrayValue(raw)
	}

	tests := []struct {
		name        string
		value       pq.Value
		scale       int32
		expected    string
		expectError bool
	}{
		{name: "Int32", value: pq.Int32Value(12345), scale: 2, expected: "123.45"},
		{name: "Int64", value: pq.Int64Value(1234567890), scale: 3, expected: "1234567.890"},
		{name: "ByteArray positive", value: pq.ByteArrayValue(big.NewInt(12345).Bytes()), scale: 2, expected: "123.45"},
		{name: "ByteArray negative", value: negative(), scale: 2, expected: "-123.45"},
		{name: "empty ByteArray", value: pq.ByteArrayValue([]byte{}), scale: 2, expected: "0"},
		{name: "unsupported kind", value: pq.BooleanValue(true), scale: 2, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := decodeParquetDecimal(tt.value, tt.scale)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			expected, err := decimal.NewFromString(tt.expected)
			require.NoError(t, err)
			assert.True(t, result.Equal(expected), "expected %s, got %s", tt.expected, result.String())
		})
	}
}

func TestParquetParser_ReadTable(t *testing.T) {
	data := writeParquet(t, []splRow{
		{STime: "2016-07-01 00:00:00", Hz125: 30.5, Hz250: 28.1, Count: 1},
		{STime: "2016-07-01 01:00:00", Hz125: 31.0, Hz250: 27.9, Count: 2},
	})

	t.Run("all columns from a seekable reader", func(t *testing.T) {
		table, err := NewParquetParser(ParquetConfig{}).ReadTable(context.Background(), bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, []string{"STime", "125", "250", "count"}, table.ColumnNames())
		assert.Equal(t, 2, table.Len())
		assert.Equal(t, 31.0, table.At(1, 1))
		assert.Equal(t, int64(2), table.At(1, 3))
	})

	t.Run("projection from a plain stream", func(t *testing.T) {
		parser := NewParquetParser(ParquetConfig{Columns: []string{"STime", "250"}})
		table, err := parser.ReadTable(context.Background(), bytes.NewBuffer(data))
		require.NoError(t, err)
		assert.Equal(t, []string{"STime", "250"}, table.ColumnNames())
		assert.Equal(t, "2016-07-01 00:00:00", table.At(0, 0))
	})

	t.Run("schema from metadata", func(t *testing.T) {
		schema, err := NewParquetParser(ParquetConfig{}).InferSchema(context.Background(), bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, types.Float64, schema.Types["125"])
		assert.Equal(t, types.Int64, schema.Types["count"])
		assert.Equal(t, types.String, schema.Types["STime"])
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewParquetParser(ParquetConfig{}).ReadTable(ctx, bytes.NewReader(data))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestPrepareParquetReader(t *testing.T) {
	t.Run("seekable reader keeps random access", func(t *testing.T) {
		data := []byte("test data")
		reader := bytes.NewReader(data)

		readerAt, fileSize, err := prepareParquetReader(reader)
		require.NoError(t, err)
		assert.Same(t, reader, readerAt)
		assert.Equal(t, int64(len(data)), fileSize)
	})

	t.Run("stream is buffered", func(t *testing.T) {
		readerAt, fileSize, err := prepareParquetReader(bytes.NewBufferString("test"))
		require.NoError(t, err)
		assert.Equal(t, int64(4), fileSize)
		buf := make([]byte, 4)
		_, err = readerAt.ReadAt(buf, 0)
		require.NoError(t, err)
		assert.Equal(t, "test", string(buf))
	})
}
