package protocol

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundscape-lab/sounddb/pkg/accessor"
	"github.com/soundscape-lab/sounddb/pkg/frame"
)

const nvsplPattern = `NVSPL/NVSPL_{site:[A-Z]{4}}{unit:\d{3}}_{year}_{month}_{day}_{hour}.txt`

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

// setup writes three NVSPL hours for two deployments plus the dataset and
// destination definitions.
func setup(t *testing.T) (dataset, dest, out string) {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"NVSPL_DENA001_2016_07_01_00.txt": "SiteID,STime,H12p5,dbA\nDENA,2016-07-01 00:00:00,20.5,30.0\n",
		"NVSPL_DENA001_2016_07_01_01.txt": "SiteID,STime,H12p5,dbA\nDENA,2016-07-01 01:00:00,21.5,40.0\n",
		"NVSPL_GLBA002_2016_07_01_00.txt": "SiteID,STime,H12p5,dbA\nGLBA,2016-07-01 00:00:00,19.0,20.0\n",
	}
	require.NoError(t, os.MkdirAll(filepath.Join(root, "NVSPL"), 0o755))
	for name, text := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, "NVSPL", name), []byte(text), 0o644))
	}

	dir := t.TempDir()
	dataset = filepath.Join(dir, "dataset.json")
	writeJSON(t, dataset, map[string]any{
		"type": "local",
		"config": map[string]any{
			"root":      root,
			"endpoints": []map[string]any{{"name": "nvspl", "pattern": nvsplPattern}},
		},
	})
	out = filepath.Join(dir, "out")
	dest = filepath.Join(dir, "destination.json")
	writeJSON(t, dest, map[string]any{
		"type":   "jsonl",
		"writer": map[string]any{"local_path": out},
	})
	return dataset, dest, out
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := CreateRootCommand()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func lines(text string) []string {
	return strings.Split(strings.TrimSpace(text), "\n")
}

func TestAccessorsCommand(t *testing.T) {
	out, err := run(t, "accessors")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "nvspl")
	assert.Contains(t, out, "columns,timestamps")
	assert.Contains(t, out, "metrics")
}

func TestEntriesCommand(t *testing.T) {
	dataset, _, _ := setup(t)

	out, err := run(t, "entries", "nvspl", "--dataset", dataset, "-f", "site=DENA,GLBA", "-s", "site,hour", "-n", "2")
	require.NoError(t, err)
	got := lines(out)
	require.Len(t, got, 2)

	var first entryLine
	require.NoError(t, json.Unmarshal([]byte(got[0]), &first))
	assert.Equal(t, "DENA", first.Fields["site"])
	assert.Equal(t, "00", first.Fields["hour"])
	assert.True(t, strings.HasSuffix(first.Path, "NVSPL_DENA001_2016_07_01_00.txt"))

	out, err = run(t, "entries", "nvspl", "--dataset", dataset, "-f", "site=GLBA")
	require.NoError(t, err)
	assert.Len(t, lines(out), 1)
}

func TestSummarizeCommand(t *testing.T) {
	dataset, _, _ := setup(t)

	out, err := run(t, "summarize", "nvspl", "--dataset", dataset, "-p", "columns=dbA", "--stat", "max")
	require.NoError(t, err)
	assert.Contains(t, out, "001DENA2016")
	assert.Contains(t, out, "002GLBA2016")
	assert.Contains(t, out, "40")
}

func TestSummarizeCommand_WritesDestination(t *testing.T) {
	dataset, dest, out := setup(t)

	_, err := run(t, "summarize", "nvspl", "--dataset", dataset, "-p", "columns=dbA", "--group", "site", "--destination", dest)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(out, "nvspl_mean.jsonl"))
	require.NoError(t, err)
	text := string(data)
	assert.Len(t, lines(text), 2)
	assert.Contains(t, text, `"DENA"`)
	assert.Contains(t, text, `35`)
}

func TestExportCommand(t *testing.T) {
	dataset, dest, out := setup(t)

	_, err := run(t, "export", "nvspl", "--dataset", dataset, "--destination", dest, "-p", "columns=dbA")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(out, "nvspl.jsonl"))
	require.NoError(t, err)
	rows := lines(string(data))
	require.Len(t, rows, 3)
	assert.Contains(t, rows[0], `"ID":"001DENA2016"`)
	assert.Contains(t, rows[0], `"dbA":30`)
}

func TestExportCommand_Grouped(t *testing.T) {
	dataset, dest, out := setup(t)

	_, err := run(t, "export", "nvspl", "--dataset", dataset, "--destination", dest, "--group", "site")
	require.NoError(t, err)

	for _, site := range []string{"DENA", "GLBA"} {
		_, err := os.Stat(filepath.Join(out, site, "nvspl.jsonl"))
		assert.NoError(t, err, site)
	}
}

func TestCommandErrors(t *testing.T) {
	dataset, _, _ := setup(t)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "no destination", args: []string{"export", "nvspl", "--dataset", dataset}, wantErr: "--destination not passed"},
		{name: "no dataset", args: []string{"entries", "nvspl"}, wantErr: "--dataset not passed"},
		{name: "bad filter", args: []string{"entries", "nvspl", "--dataset", dataset, "-f", "site"}, wantErr: "expected name=value"},
		{name: "unknown field", args: []string{"entries", "nvspl", "--dataset", dataset, "-f", "park=DENA"}, wantErr: "neither a field"},
		{name: "missing dataset file", args: []string{"entries", "nvspl", "--dataset", dataset + ".missing"}, wantErr: "does not exist"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SOUNDDB_DATASET", "")
			_, err := run(t, tt.args...)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	_, err := run(t, "entries", "nope", "--dataset", dataset)
	assert.ErrorIs(t, err, accessor.ErrNoEndpoint)
}

func TestPartitionName(t *testing.T) {
	assert.Equal(t, "DENA", partitionName("DENA"))
	assert.Equal(t, "DENA_001", partitionName(frame.Tuple{"DENA", "001"}))
	assert.Equal(t, "a_b", partitionName("a/b"))
}
