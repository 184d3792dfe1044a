package abstract

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundscape-lab/sounddb/types"
)

func TestCompilePattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		path    string
		fields  map[string]any
		prefix  string
		noMatch bool
		wantErr bool
	}{
		{
			name:    "nvspl",
			pattern: `NVSPL/NVSPL_{site:[A-Z]{4}}{unit:\d{3}}_{year}_{month}_{day}_{hour}.txt`,
			path:    "NVSPL/NVSPL_DENA001_2016_07_01_13.txt",
			fields:  map[string]any{"site": "DENA", "unit": "001", "year": "2016", "month": "07", "day": "01", "hour": "13"},
			prefix:  "NVSPL/NVSPL_",
		},
		{
			name:    "leading slash",
			pattern: "/{unit}/SRCID_{site}.txt",
			path:    "/001/SRCID_DENA.txt",
			fields:  map[string]any{"unit": "001", "site": "DENA"},
			prefix:  "",
		},
		{
			name:    "default field stays in one segment",
			pattern: "{site}/levels.txt",
			path:    "a/b/levels.txt",
			noMatch: true,
		},
		{
			name:    "literal dots",
			pattern: "{site}.txt",
			path:    "DENAxtxt",
			noMatch: true,
		},
		{
			name:    "no fields",
			pattern: "metrics/summary.txt",
			path:    "metrics/summary.txt",
			fields:  map[string]any{},
			prefix:  "metrics/summary.txt",
		},
		{name: "duplicate field", pattern: "{site}/{site}.txt", wantErr: true},
		{name: "bad regex", pattern: "{site:[a-}.txt", wantErr: true},
		{name: "empty", pattern: " ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pattern, err := CompilePattern(tt.pattern)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			fields, ok := pattern.Match(tt.path)
			if tt.noMatch {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.fields, fields)
			assert.Equal(t, tt.prefix, pattern.Prefix())
		})
	}
}

func TestPatternFieldsOrder(t *testing.T) {
	pattern, err := CompilePattern("{year}/{site}_{unit}.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"year", "site", "unit"}, pattern.Fields())
}

type memLister struct {
	files   map[string]string
	order   []string
	visited int
}

func newMemLister(files ...[2]string) *memLister {
	m := &memLister{files: map[string]string{}}
	for _, f := range files {
		m.files[f[0]] = f[1]
		m.order = append(m.order, f[0])
	}
	return m
}

func (m *memLister) List(_ context.Context, prefix string, fn func(FileInfo) error) error {
	for _, path := range m.order {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		m.visited++
		if err := fn(FileInfo{Path: path, Size: int64(len(m.files[path]))}); err != nil {
			return err
		}
	}
	return nil
}

func (m *memLister) Opener(file FileInfo) types.Opener {
	return func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader([]byte(m.files[file.Path]))), nil
	}
}

func (m *memLister) Location(file FileInfo) string {
	return "mem://" + file.Path
}

func drain(t *testing.T, it types.EntryIterator) []string {
	t.Helper()
	defer it.Close()
	var paths []string
	for it.Next(context.Background()) {
		paths = append(paths, it.Entry().Path)
	}
	require.NoError(t, it.Err())
	return paths
}

func TestEndpointEntries(t *testing.T) {
	lister := newMemLister(
		[2]string{"SRCID/SRCID_DENA002_2016.txt", "b"},
		[2]string{"SRCID/SRCID_DENA001_2016.txt", "a"},
		[2]string{"SRCID/SRCID_GLBA001_2015.txt", "c"},
		[2]string{"SRCID/notes.txt", "x"},
		[2]string{"NVSPL/NVSPL_DENA001_2016_07_01_00.txt", "y"},
	)
	dataset, err := NewDataset(lister, []EndpointConfig{
		{Name: "srcid", Pattern: `SRCID/SRCID_{site:[A-Z]{4}}{unit:\d{3}}_{year}.txt`},
		{Name: "nvspl", Pattern: `NVSPL/NVSPL_{site:[A-Z]{4}}{unit:\d{3}}_{year}_{month}_{day}_{hour}.txt`},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"srcid", "nvspl"}, dataset.Endpoints())

	ep, ok := dataset.Endpoint("srcid")
	require.True(t, ok)
	assert.Equal(t, []string{"site", "unit", "year"}, ep.Fields())

	ctx := context.Background()
	t.Run("filters", func(t *testing.T) {
		it, err := ep.Entries(ctx, types.Selection{Filters: types.Filters{"site": "DENA"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"mem://SRCID/SRCID_DENA002_2016.txt", "mem://SRCID/SRCID_DENA001_2016.txt"}, drain(t, it))
	})

	t.Run("sort and limit", func(t *testing.T) {
		it, err := ep.Entries(ctx, types.Selection{Sort: &types.SortSpec{Fields: []string{"year", "unit"}}, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"mem://SRCID/SRCID_GLBA001_2015.txt", "mem://SRCID/SRCID_DENA001_2016.txt"}, drain(t, it))
	})

	t.Run("items", func(t *testing.T) {
		it, err := ep.Entries(ctx, types.Selection{Items: []types.Filters{
			{"site": "GLBA"},
			{"unit": "002"},
		}})
		require.NoError(t, err)
		assert.Len(t, drain(t, it), 2)
	})

	t.Run("limit without sort stops listing", func(t *testing.T) {
		lister.visited = 0
		it, err := ep.Entries(ctx, types.Selection{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, drain(t, it), 1)
		assert.Equal(t, 1, lister.visited)
	})

	t.Run("entries open through the lister", func(t *testing.T) {
		it, err := ep.Entries(ctx, types.Selection{Filters: types.Filters{"unit": "001", "year": 2015}})
		require.NoError(t, err)
		defer it.Close()
		require.True(t, it.Next(ctx))
		reader, err := it.Entry().Open(ctx)
		require.NoError(t, err)
		defer reader.Close()
		data, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, "c", string(data))
	})
}

func TestNewDatasetErrors(t *testing.T) {
	_, err := NewDataset(newMemLister(), []EndpointConfig{
		{Name: "a", Pattern: "{x}.txt"},
		{Name: "a", Pattern: "{y}.txt"},
	})
	assert.ErrorContains(t, err, "declared twice")

	_, err = NewDataset(newMemLister(), []EndpointConfig{{Name: "a", Pattern: "{x:(}.txt"}})
	assert.ErrorContains(t, err, "endpoint a")
}
