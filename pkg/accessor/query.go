package accessor

import (
	"context"
	"fmt"
	"iter"
	"sort"

	"github.com/soundscape-lab/sounddb/constants"
	"github.com/soundscape-lab/sounddb/pkg/chain"
	"github.com/soundscape-lab/sounddb/pkg/frame"
	"github.com/soundscape-lab/sounddb/types"
	"github.com/soundscape-lab/sounddb/utils"
)

// ProgressFunc is told about every entry an activation visits, parsed or not.
type ProgressFunc func(visited int, entry *types.Entry)

type queryConfig struct {
	kwargs map[string]any
}

type QueryOption func(*queryConfig)

// WithFilter restricts a field of the record source, or passes a keyword to
// the state preparer when it declares that name.
func WithFilter(name string, value any) QueryOption {
	return func(c *queryConfig) {
		c.kwargs[name] = value
	}
}

// WithKwargs passes several keyword arguments at once. Engine keywords (n,
// sort, items, progbar) are honored as the matching With option.
func WithKwargs(kwargs map[string]any) QueryOption {
	return func(c *queryConfig) {
		for k, v := range kwargs {
			c.kwargs[k] = v
		}
	}
}

// WithLimit caps the number of entries visited.
func WithLimit(n int) QueryOption {
	return WithFilter(constants.KeywordLimit, n)
}

// WithItems visits only entries matching at least one of the filter sets.
func WithItems(items []types.Filters) QueryOption {
	return WithFilter(constants.KeywordItems, items)
}

// WithItemsTable derives item filter sets from the rows of a table, using the
// columns that name fields of the endpoint.
func WithItemsTable(table *frame.Table) QueryOption {
	return WithFilter(constants.KeywordItems, table)
}

// WithSort orders entries by a compound key of field values.
func WithSort(fields ...string) QueryOption {
	return WithFilter(constants.KeywordSort, fields)
}

// WithSortFunc orders entries by a key computed from their metadata.
func WithSortFunc(key func(*types.Entry) any) QueryOption {
	return WithFilter(constants.KeywordSort, key)
}

func WithProgress(fn ProgressFunc) QueryOption {
	return WithFilter(constants.KeywordProgress, fn)
}

// Query is a deferred, restartable read of one endpoint. Every iteration is an
// independent activation; iterating one Query from several goroutines at once
// is not supported.
type Query struct {
	accessor    *Accessor
	endpoint    types.Endpoint
	filters     types.Filters
	stateKwargs map[string]any
	items       []types.Filters
	sort        *types.SortSpec
	limit       int
	progress    ProgressFunc
	chain       chain.Chain
}

func newQuery(a *Accessor, endpoint types.Endpoint, cfg queryConfig) (*Query, error) {
	q := &Query{
		accessor:    a,
		endpoint:    endpoint,
		filters:     types.Filters{},
		stateKwargs: map[string]any{},
	}
	fields := endpoint.Fields()

	names := make([]string, 0, len(cfg.kwargs))
	for name := range cfg.kwargs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := cfg.kwargs[name]
		var err error
		switch {
		case name == constants.KeywordLimit:
			err = q.setLimit(value)
		case name == constants.KeywordSort:
			q.sort, err = sortSpec(value, fields)
		case name == constants.KeywordItems:
			q.items, err = itemFilters(value, fields)
		case name == constants.KeywordProgress:
			err = q.setProgress(value)
		case utils.ExistInArray(a.params, name):
			q.stateKwargs[name] = value
		case utils.ExistInArray(fields, name):
			q.filters[name] = value
		default:
			err = fmt.Errorf("%w: %q is neither a field of %s %v nor a parameter of its state", ErrUnknownField, name, endpoint.Name(), fields)
		}
		if err != nil {
			return nil, err
		}
	}
	return q, nil
}

func (q *Query) setLimit(value any) error {
	n, ok := value.(int)
	if !ok || n < 0 {
		return fmt.Errorf("limit must be a non-negative int, got %v", value)
	}
	q.limit = n
	return nil
}

func (q *Query) setProgress(value any) error {
	switch fn := value.(type) {
	case ProgressFunc:
		q.progress = fn
	case func(int, *types.Entry):
		q.progress = fn
	case nil:
		q.progress = nil
	default:
		return fmt.Errorf("progress must be a ProgressFunc, got %T", value)
	}
	return nil
}

func sortSpec(value any, fields []string) (*types.SortSpec, error) {
	var spec types.SortSpec
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		spec.Fields = []string{v}
	case []string:
		spec.Fields = v
	case func(*types.Entry) any:
		spec.Func = v
	default:
		return nil, fmt.Errorf("%w: sort key must be field names or a func, got %T", ErrInvalidSort, value)
	}
	for _, field := range spec.Fields {
		if !utils.ExistInArray(fields, field) {
			return nil, fmt.Errorf("%w: %q is not a field %v", ErrInvalidSort, field, fields)
		}
	}
	if spec.IsZero() {
		return nil, nil
	}
	return &spec, nil
}

func itemFilters(value any, fields []string) ([]types.Filters, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []types.Filters:
		for _, item := range v {
			for name := range item {
				if !utils.ExistInArray(fields, name) {
					return nil, fmt.Errorf("%w: %q is not a field %v", ErrInvalidItems, name, fields)
				}
			}
		}
		return v, nil
	case *frame.Table:
		var cols []int
		for i, name := range v.ColumnNames() {
			if utils.ExistInArray(fields, name) {
				cols = append(cols, i)
			}
		}
		if len(cols) == 0 {
			return nil, fmt.Errorf("%w: none of the columns %v are fields %v", ErrInvalidItems, v.ColumnNames(), fields)
		}
		names := v.ColumnNames()
		items := make([]types.Filters, v.Len())
		for r := range items {
			items[r] = types.Filters{}
			for _, c := range cols {
				items[r][names[c]] = v.At(r, c)
			}
		}
		return items, nil
	}
	return nil, fmt.Errorf("%w: items must be []types.Filters or *frame.Table, got %T", ErrInvalidItems, value)
}

func (q *Query) Endpoint() types.Endpoint {
	return q.endpoint
}

// Filters returns the record source filters, after keyword partitioning.
func (q *Query) Filters() types.Filters {
	return q.filters
}

// StateKwargs returns the keyword arguments routed to the state preparer.
func (q *Query) StateKwargs() map[string]any {
	return q.stateKwargs
}

// Chain returns the deferred operations recorded so far.
func (q *Query) Chain() chain.Chain {
	return q.chain
}

// Attr defers an attribute access onto every parsed value.
func (q *Query) Attr(name string) *Query {
	q.chain = q.chain.Append(chain.Attr{Name: name})
	return q
}

// Item defers an item access onto every parsed value.
func (q *Query) Item(key any) *Query {
	q.chain = q.chain.Append(chain.Item{Key: key})
	return q
}

// Call defers a call of the current value.
func (q *Query) Call(args ...any) *Query {
	q.chain = q.chain.Append(chain.Call{Args: args})
	return q
}

// CallKw defers a call with keyword arguments.
func (q *Query) CallKw(kwargs map[string]any, args ...any) *Query {
	q.chain = q.chain.Append(chain.Call{Args: args, Kwargs: kwargs})
	return q
}

// Method is Attr(name) followed by Call(args...).
func (q *Query) Method(name string, args ...any) *Query {
	return q.Attr(name).Call(args...)
}

func (q *Query) selection(sortSpec *types.SortSpec) types.Selection {
	return types.Selection{
		Filters: q.filters,
		Items:   q.items,
		Sort:    sortSpec,
		Limit:   q.limit,
	}
}

// Iter starts an activation in the query's own order.
func (q *Query) Iter(ctx context.Context) *Iterator {
	return newIterator(ctx, q, q.sort)
}

// Sorted starts an activation ordered by the given fields.
func (q *Query) Sorted(ctx context.Context, fields ...string) (*Iterator, error) {
	spec, err := sortSpec(fields, q.endpoint.Fields())
	if err != nil {
		return nil, err
	}
	return newIterator(ctx, q, spec), nil
}

// SortedBy starts an activation ordered by key.
func (q *Query) SortedBy(ctx context.Context, key func(*types.Entry) any) *Iterator {
	return newIterator(ctx, q, &types.SortSpec{Func: key})
}

// Seq adapts an activation to a range-over-func sequence. A non-nil error is
// yielded last when the activation was interrupted.
func (q *Query) Seq(ctx context.Context) iter.Seq2[*types.Entry, error] {
	return func(yield func(*types.Entry, error) bool) {
		it := q.Iter(ctx)
		defer it.Close()
		for it.Next() {
			if !yield(it.Entry(), nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// One returns the first entry, or ErrNoData when nothing matches.
func (q *Query) One(ctx context.Context) (*types.Entry, error) {
	it := q.Iter(ctx)
	defer it.Close()
	if it.Next() {
		return it.Entry(), nil
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: no %s entries match %s", ErrNoData, q.endpoint.Name(), q.filters)
}
