package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "simple", input: "site,unit", want: []string{"site", "unit"}},
		{name: "spaces and empties", input: " site , ,year ", want: []string{"site", "year"}},
		{name: "empty", input: "", want: []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SplitAndTrim(tc.input))
		})
	}
}

func TestUnmarshalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dataset.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"root": "/data", "n": 2}`), 0o600))

	var dest struct {
		Root string `json:"root"`
		N    int    `json:"n"`
	}
	require.NoError(t, UnmarshalFile(path, &dest))
	assert.Equal(t, "/data", dest.Root)
	assert.Equal(t, 2, dest.N)

	err := UnmarshalFile(filepath.Join(dir, "missing.json"), &dest)
	assert.Error(t, err)
	err = UnmarshalFile(dir, &dest)
	assert.ErrorContains(t, err, "is a directory")
}

func TestULIDMonotonic(t *testing.T) {
	a, b := ULID(), ULID()
	assert.Len(t, a, 26)
	assert.Less(t, a, b)
}

func TestExistInArray(t *testing.T) {
	assert.True(t, ExistInArray([]string{"items", "sort"}, "sort"))
	assert.False(t, ExistInArray([]string{"items", "sort"}, "n"))
}

func TestUnmarshal(t *testing.T) {
	var dest struct {
		Path   string `json:"path"`
		Bucket string `json:"bucket"`
	}
	require.NoError(t, Unmarshal(map[string]any{"path": "/out", "bucket": "acoustic"}, &dest))
	assert.Equal(t, "/out", dest.Path)
	assert.Equal(t, "acoustic", dest.Bucket)

	assert.Error(t, Unmarshal(map[string]any{"path": 3}, &dest))
}

func TestTimestampedFileName(t *testing.T) {
	name := TimestampedFileName("parquet")
	assert.True(t, strings.HasSuffix(name, ".parquet"))
	assert.NotEqual(t, name, TimestampedFileName("parquet"))
}

func TestIsValidSubcommand(t *testing.T) {
	commands := []*cobra.Command{{Use: "entries <accessor>"}, {Use: "export <accessor>"}}
	assert.True(t, IsValidSubcommand(commands, "entries"))
	assert.False(t, IsValidSubcommand(commands, "sync"))
}
