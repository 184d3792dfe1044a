package typeutils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTimestamp = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFlatten(t *testing.T) {
	tests := []struct {
		name     string
		input    map[string]any
		expected map[string]any
	}{
		{
			name:     "empty row",
			input:    map[string]any{},
			expected: map[string]any{},
		},
		{
			name: "simple values",
			input: map[string]any{
				"site":  "BELA",
				"level": 42.5,
				"valid": true,
				"time":  testTimestamp,
			},
			expected: map[string]any{
				"site":  "BELA",
				"level": 42.5,
				"valid": true,
				"time":  testTimestamp,
			},
		},
		{
			name: "nested object",
			input: map[string]any{
				"meta": map[string]any{"unit": "001", "gain": 2.0},
			},
			expected: map[string]any{
				"meta.unit": "001",
				"meta.gain": 2.0,
			},
		},
		{
			name:     "arrays are stringified",
			input:    map[string]any{"bands": []any{12.5, 16.0}},
			expected: map[string]any{"bands": "[12.5,16]"},
		},
		{
			name:     "nil values are omitted",
			input:    map[string]any{"missing": nil, "site": "x"},
			expected: map[string]any{"site": "x"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NewFlattener().Flatten(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}
