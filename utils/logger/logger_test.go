package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelsWriteToOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	Infof("reading %s", "a.txt")
	Warn("skipped", " b.txt")
	Errorf("failed on %d records", 2)

	out := buf.String()
	assert.Contains(t, out, "reading a.txt")
	assert.Contains(t, out, "skipped b.txt")
	assert.Contains(t, out, "failed on 2 records")
}

func TestFileLoggerWithPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "summary.json")
	require.NoError(t, FileLoggerWithPath(map[string]int{"rows": 3}, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"rows": 3}`, string(data))
}
