// Package abstract holds what every record source shares: endpoint path
// patterns, the endpoint and dataset types built on them, and selection of
// entries (filters, items, sort, limit).
package abstract

import (
	"context"
	"errors"
	"fmt"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/soundscape-lab/sounddb/types"
	"github.com/soundscape-lab/sounddb/utils/logger"
	"github.com/soundscape-lab/sounddb/utils/typeutils"
)

// EndpointConfig declares one endpoint of a dataset.
type EndpointConfig struct {
	Name string `json:"name" validate:"required"`
	// Pattern is matched against paths relative to the dataset root, e.g.
	// "NVSPL/NVSPL_{site:[A-Z]{4}}{unit:\\d{3}}_{year}_{month}_{day}_{hour}.txt"
	Pattern string `json:"pattern" validate:"required"`
}

// FileInfo is one file a Lister found.
type FileInfo struct {
	// Path is relative to the dataset root, with forward slashes
	Path string
	Size int64
}

// Lister is the storage behind a dataset.
type Lister interface {
	// List calls fn for every file whose relative path starts with prefix.
	// Returning ErrStopListing from fn ends the listing without error.
	List(ctx context.Context, prefix string, fn func(FileInfo) error) error
	// Opener returns the opener of a listed file.
	Opener(file FileInfo) types.Opener
	// Location renders a listed file for humans, e.g. an absolute path or URL.
	Location(file FileInfo) string
}

// ErrStopListing ends a listing early.
var ErrStopListing = errors.New("stop listing")

// Endpoint is a types.Endpoint over the files of a Lister matching a pattern.
type Endpoint struct {
	name    string
	pattern *Pattern
	lister  Lister
}

func NewEndpoint(config EndpointConfig, lister Lister) (*Endpoint, error) {
	pattern, err := CompilePattern(config.Pattern)
	if err != nil {
		return nil, fmt.Errorf("endpoint %s: %s", config.Name, err)
	}
	return &Endpoint{name: config.Name, pattern: pattern, lister: lister}, nil
}

func (e *Endpoint) Name() string {
	return e.name
}

func (e *Endpoint) Fields() []string {
	return e.pattern.Fields()
}

func (e *Endpoint) Pattern() *Pattern {
	return e.pattern
}

// Entries lists matching files and applies the selection. Without a sort the
// listing stops once the limit is reached.
func (e *Endpoint) Entries(ctx context.Context, sel types.Selection) (types.EntryIterator, error) {
	var entries []*types.Entry
	early := sel.Sort.IsZero() && sel.Limit > 0
	listed := 0

	err := e.lister.List(ctx, e.pattern.Prefix(), func(file FileInfo) error {
		listed++
		fields, ok := e.pattern.Match(file.Path)
		if !ok {
			return nil
		}
		entry := types.NewEntry(e.lister.Location(file), fields, e.lister.Opener(file))
		if !sel.Match(entry) {
			return nil
		}
		entries = append(entries, entry)
		if early && len(entries) >= sel.Limit {
			return ErrStopListing
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrStopListing) {
		return nil, fmt.Errorf("failed to list %s: %s", e.name, err)
	}

	logger.Debugf("endpoint %s: %d of %d listed files selected", e.name, len(entries), listed)
	return types.NewSliceIterator(Select(entries, sel)), nil
}

// Select sorts and limits entries that already passed the selection's filters.
func Select(entries []*types.Entry, sel types.Selection) []*types.Entry {
	if !sel.Sort.IsZero() {
		keys := make([]any, len(entries))
		for i, entry := range entries {
			keys[i] = sel.Sort.Key(entry)
		}
		order := make([]int, len(entries))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(i, j int) bool {
			return typeutils.Compare(keys[order[i]], keys[order[j]]) < 0
		})
		sorted := make([]*types.Entry, len(entries))
		for i, pos := range order {
			sorted[i] = entries[pos]
		}
		entries = sorted
	}
	if sel.Limit > 0 && len(entries) > sel.Limit {
		entries = entries[:sel.Limit]
	}
	return entries
}

// Dataset groups the endpoints of one storage location.
type Dataset struct {
	endpoints *orderedmap.OrderedMap[string, *Endpoint]
}

// NewDataset builds the endpoints of configs over a single lister.
func NewDataset(lister Lister, configs []EndpointConfig) (*Dataset, error) {
	d := &Dataset{endpoints: orderedmap.New[string, *Endpoint]()}
	for _, config := range configs {
		if _, exists := d.endpoints.Get(config.Name); exists {
			return nil, fmt.Errorf("endpoint %s is declared twice", config.Name)
		}
		endpoint, err := NewEndpoint(config, lister)
		if err != nil {
			return nil, err
		}
		d.endpoints.Set(config.Name, endpoint)
	}
	return d, nil
}

func (d *Dataset) Endpoint(name string) (types.Endpoint, bool) {
	endpoint, ok := d.endpoints.Get(name)
	if !ok {
		return nil, false
	}
	return endpoint, true
}

// Endpoints lists endpoint names in declaration order.
func (d *Dataset) Endpoints() []string {
	names := make([]string, 0, d.endpoints.Len())
	for pair := d.endpoints.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}
