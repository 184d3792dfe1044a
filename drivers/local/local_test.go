package driver

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundscape-lab/sounddb/accessors"
	"github.com/soundscape-lab/sounddb/drivers/abstract"
	"github.com/soundscape-lab/sounddb/pkg/accessor"
	"github.com/soundscape-lab/sounddb/pkg/frame"
	"github.com/soundscape-lab/sounddb/types"
)

const nvsplPattern = `NVSPL/NVSPL_{site:[A-Z]{4}}{unit:\d{3}}_{year}_{month}_{day}_{hour}.txt`

func nvsplFile(stime string, level string) string {
	return "SiteID,STime,H12p5,dbA\nTEST," + stime + "," + level + ",30.0\n"
}

func writeTree(t *testing.T, files map[string][]byte) string {
	t.Helper()
	root := t.TempDir()
	for rel, data := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, data, 0o644))
	}
	return root
}

func gzipped(t *testing.T, text string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(text))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestConfigValidate(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{name: "valid", config: Config{Root: root, Endpoints: []abstract.EndpointConfig{{Name: "nvspl", Pattern: nvsplPattern}}}},
		{name: "no root", config: Config{Endpoints: []abstract.EndpointConfig{{Name: "nvspl", Pattern: nvsplPattern}}}, wantErr: "Root"},
		{name: "no endpoints", config: Config{Root: root}, wantErr: "Endpoints"},
		{name: "endpoint without pattern", config: Config{Root: root, Endpoints: []abstract.EndpointConfig{{Name: "nvspl"}}}, wantErr: "Pattern"},
		{name: "root is a file", config: Config{Root: file, Endpoints: []abstract.EndpointConfig{{Name: "nvspl", Pattern: nvsplPattern}}}, wantErr: "not a directory"},
		{name: "missing root", config: Config{Root: filepath.Join(root, "nope"), Endpoints: []abstract.EndpointConfig{{Name: "nvspl", Pattern: nvsplPattern}}}, wantErr: "failed to stat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLocalDataset_Query(t *testing.T) {
	root := writeTree(t, map[string][]byte{
		"NVSPL/NVSPL_DENA001_2016_07_01_00.txt":    []byte(nvsplFile("2016-07-01 00:00:00", "20.5")),
		"NVSPL/NVSPL_DENA001_2016_07_01_01.txt.gz": gzipped(t, nvsplFile("2016-07-01 01:00:00", "21.5")),
		"NVSPL/NVSPL_GLBA002_2016_07_01_00.txt":    []byte(nvsplFile("2016-07-01 00:00:00", "19.0")),
		"NVSPL/readme.md":                          []byte("not a data file"),
	})
	dataset, err := NewDataset(&Config{Root: root, Endpoints: []abstract.EndpointConfig{
		{Name: "nvspl", Pattern: nvsplPattern},
		{Name: "nvspl_gz", Pattern: nvsplPattern + ".gz"},
	}})
	require.NoError(t, err)

	ctx := context.Background()

	t.Run("filter and all", func(t *testing.T) {
		q, err := accessors.NVSPL.Query(dataset, accessor.WithFilter("site", "DENA"))
		require.NoError(t, err)
		entry, err := q.One(ctx)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "NVSPL", "NVSPL_DENA001_2016_07_01_00.txt"), entry.Path)
		assert.Equal(t, "001", entry.Fields["unit"])
		table, ok := entry.Data.(*frame.Table)
		require.True(t, ok)
		assert.Equal(t, 1, table.Len())
	})

	t.Run("sorted keeps deployments apart", func(t *testing.T) {
		q, err := accessors.NVSPL.Query(dataset, accessor.WithSort("site"))
		require.NoError(t, err)
		all, err := q.All(ctx, nil)
		require.NoError(t, err)
		table, ok := all.(*frame.Table)
		require.True(t, ok)
		assert.Equal(t, 2, table.Len())
		// deployment ids join unit, site and year
		assert.Equal(t, "001DENA2016", table.Index().Label(0).(frame.Tuple)[0])
		assert.Equal(t, "002GLBA2016", table.Index().Label(1).(frame.Tuple)[0])
	})

	t.Run("gzip", func(t *testing.T) {
		q, err := accessors.NVSPL.Query(&gzDataset{dataset}, accessor.WithKwargs(map[string]any{"columns": []string{"dbA"}}))
		require.NoError(t, err)
		entry, err := q.One(ctx)
		require.NoError(t, err)
		table := entry.Data.(*frame.Table)
		assert.Equal(t, []string{"dbA"}, table.ColumnNames())
		assert.Equal(t, 30.0, table.At(0, 0))
	})
}

// gzDataset serves the compressed endpoint under the nvspl name.
type gzDataset struct {
	*abstract.Dataset
}

func (g *gzDataset) Endpoint(name string) (types.Endpoint, bool) {
	return g.Dataset.Endpoint(name + "_gz")
}

func TestLocal_ListPrefix(t *testing.T) {
	root := writeTree(t, map[string][]byte{
		"a/one.txt":    []byte("1"),
		"a/b/two.txt":  []byte("22"),
		"c/three.txt":  []byte("333"),
		"top-four.txt": []byte("4444"),
	})
	local := NewLocal(root)

	list := func(prefix string) []abstract.FileInfo {
		var files []abstract.FileInfo
		require.NoError(t, local.List(context.Background(), prefix, func(f abstract.FileInfo) error {
			files = append(files, f)
			return nil
		}))
		return files
	}

	assert.Equal(t, []abstract.FileInfo{{Path: "a/b/two.txt", Size: 2}, {Path: "a/one.txt", Size: 1}}, list("a/"))
	assert.Len(t, list(""), 4)
	assert.Equal(t, []abstract.FileInfo{{Path: "top-four.txt", Size: 4}}, list("top"))
	assert.Empty(t, list("missing/dir/x"))
}

func TestLocal_ListCanceled(t *testing.T) {
	root := writeTree(t, map[string][]byte{"a.txt": []byte("1")})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewLocal(root).List(ctx, "", func(abstract.FileInfo) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

// hourBlob stands in for one large parsed file.
type hourBlob struct {
	data []byte
}

func TestLocalDataset_ReleasesParsedData(t *testing.T) {
	files := map[string][]byte{}
	for hour := 0; hour < 8; hour++ {
		files[fmt.Sprintf("logs/DENA_%02d.txt", hour)] = []byte("x")
	}
	dataset, err := NewDataset(&Config{Root: writeTree(t, files), Endpoints: []abstract.EndpointConfig{
		{Name: "logs", Pattern: "logs/{site}_{hour}.txt"},
	}})
	require.NoError(t, err)

	var freed atomic.Int32
	acc := accessor.MustNew("logs", func(context.Context, *types.Entry, any) (any, error) {
		blob := &hourBlob{data: make([]byte, 1<<20)}
		runtime.SetFinalizer(blob, func(*hourBlob) { freed.Add(1) })
		return blob, nil
	})
	q, err := acc.Query(dataset, accessor.WithSort("hour"))
	require.NoError(t, err)

	it := q.Iter(context.Background())
	defer it.Close()
	read := int32(0)
	for it.Next() {
		read++
		// only the entry just read may still hold its data
		want := read - 1
		assert.Eventually(t, func() bool {
			runtime.GC()
			return freed.Load() >= want
		}, 2*time.Second, 10*time.Millisecond, "after entry %d", read)
	}
	require.NoError(t, it.Err())
	assert.Equal(t, int32(8), read)
}
