package parser

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundscape-lab/sounddb/types"
)

func TestInferColumnType(t *testing.T) {
	layouts := []string{"2006-01-02 15:04:05", "2006-01-02"}
	tests := []struct {
		name         string
		sampleRows   [][]string
		layouts      []string
		expectedType types.DataType
	}{
		{"integers", [][]string{{"123"}, {"456"}}, nil, types.Int64},
		{"floats with infinity", [][]string{{"30.5"}, {"-Infinity"}}, nil, types.Float64},
		{"booleans", [][]string{{"true"}, {"FALSE"}}, nil, types.Bool},
		{"nulls are ignored", [][]string{{""}, {"null"}, {"7"}}, nil, types.Int64},
		{"only nulls", [][]string{{""}, {"NULL"}}, nil, types.String},
		{"no rows", nil, nil, types.String},
		{"timestamps need layouts", [][]string{{"2016-07-01 00:00:00"}}, nil, types.String},
		{"timestamps", [][]string{{"2016-07-01 00:00:00"}, {"2016-07-02"}}, layouts, types.Timestamp},
		{"mixed falls back to string", [][]string{{"2016-07-01"}, {"not a date"}}, layouts, types.String},
		{"short rows are skipped", [][]string{{"1"}, {}}, nil, types.Int64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedType, inferColumnType(tt.sampleRows, 0, tt.layouts...))
		})
	}
}

func TestConvertValue(t *testing.T) {
	tests := []struct {
		name        string
		value       string
		fieldType   types.DataType
		expected    any
		expectError bool
	}{
		{name: "integer", value: " 42 ", fieldType: types.Int64, expected: int64(42)},
		{name: "bad integer", value: "4.2", fieldType: types.Int64, expectError: true},
		{name: "float", value: "30.25", fieldType: types.Float64, expected: 30.25},
		{name: "negative infinity", value: "-Infinity", fieldType: types.Float64, expected: math.Inf(-1)},
		{name: "bool", value: "true", fieldType: types.Bool, expected: true},
		{name: "empty is nil", value: "", fieldType: types.Float64, expected: nil},
		{name: "null is nil", value: "NULL", fieldType: types.Int64, expected: nil},
		{name: "string is trimmed", value: " BRTU ", fieldType: types.String, expected: "BRTU"},
		{
			name:      "timestamp",
			value:     "2016-07-01 13:00:00",
			fieldType: types.Timestamp,
			expected:  time.Date(2016, 7, 1, 13, 0, 0, 0, time.UTC),
		},
		{name: "bad timestamp", value: "noon", fieldType: types.Timestamp, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := convertValue(tt.value, tt.fieldType, "2006-01-02 15:04:05")
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestCSVParser_ReadTable(t *testing.T) {
	t.Run("comma separated with header", func(t *testing.T) {
		input := "STime,H12p5,dbA\n2016-07-01 00:00:00,30.5,-Infinity\n2016-07-01 01:00:00,31,22.5\n"
		parser := NewCSVParser(CSVConfig{HasHeader: true, TimeLayouts: []string{"2006-01-02 15:04:05"}})

		table, err := parser.ReadTable(context.Background(), strings.NewReader(input))
		require.NoError(t, err)
		assert.Equal(t, []string{"STime", "H12p5", "dbA"}, table.ColumnNames())
		assert.Equal(t, 2, table.Len())
		assert.Equal(t, time.Date(2016, 7, 1, 1, 0, 0, 0, time.UTC), table.At(1, 0))
		// a column with one decimal is typed float throughout
		assert.Equal(t, 31.0, table.At(1, 1))
		assert.Equal(t, math.Inf(-1), table.At(0, 2))
	})

	t.Run("tab separated with version line", func(t *testing.T) {
		input := "%% SRCID Version 1.2\nsrcID\thr\tlen\n1.1\t0\t12.5\n2.0\t1\t3\n"
		table, err := NewTSVParser("%").ReadTable(context.Background(), strings.NewReader(input))
		require.NoError(t, err)
		assert.Equal(t, []string{"srcID", "hr", "len"}, table.ColumnNames())
		assert.Equal(t, int64(1), table.At(1, 1))
		assert.Equal(t, 3.0, table.At(1, 2))
	})

	t.Run("ragged rows are padded", func(t *testing.T) {
		input := "a,b\n1,2\n3\n"
		table, err := NewCSVParser(CSVConfig{HasHeader: true}).ReadTable(context.Background(), strings.NewReader(input))
		require.NoError(t, err)
		assert.Nil(t, table.At(1, 1))
	})

	t.Run("no header", func(t *testing.T) {
		input := "x;1\ny;2\n"
		table, err := NewCSVParser(CSVConfig{Delimiter: ";"}).ReadTable(context.Background(), strings.NewReader(input))
		require.NoError(t, err)
		assert.Equal(t, []string{"column_0", "column_1"}, table.ColumnNames())
		assert.Equal(t, 2, table.Len())
		assert.Equal(t, "x", table.At(0, 0))
	})

	t.Run("skip rows", func(t *testing.T) {
		input := "junk\na\n5\n"
		table, err := NewCSVParser(CSVConfig{HasHeader: true, SkipRows: 1}).ReadTable(context.Background(), strings.NewReader(input))
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, table.ColumnNames())
		assert.Equal(t, int64(5), table.At(0, 0))
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := NewCSVParser(CSVConfig{HasHeader: true}).ReadTable(context.Background(), strings.NewReader(""))
		assert.Error(t, err)
	})
}

func TestCSVParser_StreamRecords_TypeConversion(t *testing.T) {
	input := "id,level,site\n1,30.5,BRTU\n2,31,BRTU\n"
	parser := NewCSVParser(CSVConfig{HasHeader: true})

	schema, err := parser.InferSchema(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "level", "site"}, schema.Columns)
	assert.Equal(t, types.Float64, schema.Types["level"])

	var records []map[string]any
	err = parser.StreamRecords(context.Background(), strings.NewReader(input), func(_ context.Context, record map[string]any) error {
		records = append(records, record)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(2), records[1]["id"])
	assert.Equal(t, 31.0, records[1]["level"])
	assert.Equal(t, "BRTU", records[1]["site"])
}

func TestCSVParser_StreamRecords_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewCSVParser(CSVConfig{HasHeader: true}).StreamRecords(ctx, strings.NewReader("a\n1\n"), func(context.Context, map[string]any) error {
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
