// Package accessor binds a record source, a parser and an optional state
// preparer into lazily evaluated queries over acoustic data files.
package accessor

import (
	"context"
	"fmt"

	"github.com/soundscape-lab/sounddb/constants"
	"github.com/soundscape-lab/sounddb/types"
	"github.com/soundscape-lab/sounddb/utils"
)

// Parser reads one entry. state is nil unless the accessor has a state preparer.
type Parser func(ctx context.Context, entry *types.Entry, state any) (any, error)

// StatePreparer builds the value threaded through every parser call of one
// query activation. Params names the keyword arguments it consumes.
type StatePreparer interface {
	Params() []string
	Prepare(ctx context.Context, endpoint types.Endpoint, filters types.Filters, kwargs map[string]any) (any, error)
}

// PrepareFunc is the function form of StatePreparer.Prepare.
type PrepareFunc func(ctx context.Context, endpoint types.Endpoint, filters types.Filters, kwargs map[string]any) (any, error)

type statePreparer struct {
	params  []string
	prepare PrepareFunc
}

// NewStatePreparer declares a state preparer taking the given keyword params.
func NewStatePreparer(params []string, prepare PrepareFunc) StatePreparer {
	return &statePreparer{params: params, prepare: prepare}
}

func (s *statePreparer) Params() []string {
	return append([]string(nil), s.params...)
}

func (s *statePreparer) Prepare(ctx context.Context, endpoint types.Endpoint, filters types.Filters, kwargs map[string]any) (any, error) {
	return s.prepare(ctx, endpoint, filters, kwargs)
}

// Accessor describes how to read one kind of file.
type Accessor struct {
	endpoint    string
	description string
	parser      Parser
	state       StatePreparer
	params      []string
}

type Option func(*Accessor)

func WithState(state StatePreparer) Option {
	return func(a *Accessor) {
		a.state = state
	}
}

// WithDescription sets the one-line help text shown by the CLI.
func WithDescription(text string) Option {
	return func(a *Accessor) {
		a.description = text
	}
}

// New defines an accessor reading files of the named endpoint.
func New(endpoint string, parser Parser, opts ...Option) (*Accessor, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("%w: accessor needs an endpoint name", ErrNoEndpoint)
	}
	if parser == nil {
		return nil, fmt.Errorf("accessor %s has no parser", endpoint)
	}
	a := &Accessor{endpoint: endpoint, parser: parser}
	for _, opt := range opts {
		opt(a)
	}
	if a.state != nil {
		a.params = a.state.Params()
		for _, param := range a.params {
			if utils.ExistInArray(constants.ReservedKeywords, param) {
				return nil, fmt.Errorf("%w: state parameter %q of accessor %s", ErrReservedKeyword, param, endpoint)
			}
		}
	}
	return a, nil
}

// MustNew is New for accessors defined at package level.
func MustNew(endpoint string, parser Parser, opts ...Option) *Accessor {
	a, err := New(endpoint, parser, opts...)
	if err != nil {
		panic(err)
	}
	return a
}

func (a *Accessor) Name() string {
	return a.endpoint
}

func (a *Accessor) Description() string {
	return a.description
}

// Params lists the keyword arguments routed to the state preparer.
func (a *Accessor) Params() []string {
	return append([]string(nil), a.params...)
}

// Parse runs the parser on a single entry outside any query. The state
// preparer is not consulted.
func (a *Accessor) Parse(ctx context.Context, entry *types.Entry) (any, error) {
	return a.parser(ctx, entry, nil)
}

// ParseFile runs the parser on a local path.
func (a *Accessor) ParseFile(ctx context.Context, path string) (any, error) {
	return a.Parse(ctx, types.NewEntry(path, nil, nil))
}

// Query builds a query over ds. No I/O happens until the query is iterated.
func (a *Accessor) Query(ds types.Dataset, opts ...QueryOption) (*Query, error) {
	endpoint, ok := ds.Endpoint(a.endpoint)
	if !ok {
		return nil, fmt.Errorf("%w: %q does not exist in the given dataset", ErrNoEndpoint, a.endpoint)
	}
	cfg := queryConfig{kwargs: map[string]any{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	return newQuery(a, endpoint, cfg)
}
