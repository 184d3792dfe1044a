package accessor

import (
	"context"
	"fmt"
	"iter"
	"runtime/debug"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/soundscape-lab/sounddb/pkg/chain"
	"github.com/soundscape-lab/sounddb/pkg/combine"
	"github.com/soundscape-lab/sounddb/pkg/frame"
	"github.com/soundscape-lab/sounddb/types"
	"github.com/soundscape-lab/sounddb/utils"
	"github.com/soundscape-lab/sounddb/utils/logger"
)

// GroupBy reads a query one group at a time. Entries are sorted by the group
// key, so each group is a contiguous run and only one group's data is held in
// memory.
type GroupBy struct {
	query *Query
	names []string
	key   func(*types.Entry) any
	sort  *types.SortSpec
	chain chain.Chain
}

// GroupBy groups entries by one or more field names, or by a single key
// function of type func(*types.Entry) any. Mixing the two is rejected.
func (q *Query) GroupBy(keys ...any) (*GroupBy, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: at least one group key is required", ErrInvalidGroup)
	}
	if fn, ok := keys[0].(func(*types.Entry) any); ok {
		if len(keys) > 1 {
			return nil, fmt.Errorf("%w: a key function must be the only group key", ErrInvalidGroup)
		}
		return &GroupBy{query: q, key: fn, sort: &types.SortSpec{Func: fn}}, nil
	}

	fields := q.endpoint.Fields()
	names := make([]string, len(keys))
	for i, k := range keys {
		name, ok := k.(string)
		if !ok {
			return nil, fmt.Errorf("%w: group keys must all be field names, got %T", ErrInvalidGroup, k)
		}
		if !utils.ExistInArray(fields, name) {
			return nil, fmt.Errorf("%w: %q is not a field %v", ErrInvalidGroup, name, fields)
		}
		names[i] = name
	}
	spec := &types.SortSpec{Fields: names}
	key := func(e *types.Entry) any {
		if len(names) == 1 {
			v, _ := e.Field(names[0])
			return v
		}
		tuple := make(frame.Tuple, len(names))
		for i, name := range names {
			tuple[i], _ = e.Field(name)
		}
		return tuple
	}
	return &GroupBy{query: q, names: names, key: key, sort: spec}, nil
}

// Attr defers an attribute access onto every group's value.
func (g *GroupBy) Attr(name string) *GroupBy {
	g.chain = g.chain.Append(chain.Attr{Name: name})
	return g
}

func (g *GroupBy) Item(key any) *GroupBy {
	g.chain = g.chain.Append(chain.Item{Key: key})
	return g
}

func (g *GroupBy) Call(args ...any) *GroupBy {
	g.chain = g.chain.Append(chain.Call{Args: args})
	return g
}

func (g *GroupBy) CallKw(kwargs map[string]any, args ...any) *GroupBy {
	g.chain = g.chain.Append(chain.Call{Args: args, Kwargs: kwargs})
	return g
}

func (g *GroupBy) Method(name string, args ...any) *GroupBy {
	return g.Attr(name).Call(args...)
}

// Iter starts an activation yielding one (key, value) pair per group.
func (g *GroupBy) Iter(ctx context.Context) *GroupIterator {
	return &GroupIterator{
		inner: newIterator(ctx, g.query, g.sort),
		key:   g.key,
		chain: g.chain,
	}
}

// Group is one (key, value) pair yielded by GroupBy.Seq.
type Group struct {
	Key   any
	Value any
}

// Seq adapts an activation to a range-over-func sequence of groups. A non-nil
// error is yielded last when the activation was interrupted.
func (g *GroupBy) Seq(ctx context.Context) iter.Seq2[Group, error] {
	return func(yield func(Group, error) bool) {
		it := g.Iter(ctx)
		defer it.Close()
		for it.Next() {
			if !yield(Group{Key: it.Key(), Value: it.Value()}, nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield(Group{}, err)
		}
	}
}

// Compute drains every group into a mapping and promotes it with the combiner.
func (g *GroupBy) Compute(ctx context.Context, opts ...combine.Option) (any, error) {
	return g.Combine(ctx, nil, opts...)
}

// Combine is Compute with fn applied to every group's value first.
func (g *GroupBy) Combine(ctx context.Context, fn func(any) (any, error), opts ...combine.Option) (any, error) {
	results := combine.NewResults()
	it := g.Iter(ctx)
	defer it.Close()
	for it.Next() {
		value := it.Value()
		if fn != nil {
			var err error
			if value, err = fn(value); err != nil {
				logger.Errorf("Error while combining group %v: %s", it.Key(), err)
				continue
			}
		}
		results.Set(it.Key(), value)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	opts = append([]combine.Option{combine.WithKeyName(strings.Join(g.names, ","))}, opts...)
	return combine.Combine(results, opts...), nil
}

// GroupIterator yields groups of adjacent entries sharing a key.
type GroupIterator struct {
	inner   *Iterator
	key     func(*types.Entry) any
	chain   chain.Chain
	pending *types.Entry
	current any
	value   any
	done    bool
	skipped *multierror.Error
}

// Next reads the next group, joins its values and applies the group chain.
// After an interrupt the group being read is dropped unless the interrupted
// entry had already started the next group; Err reports the interrupt.
func (g *GroupIterator) Next() bool {
	for !g.done {
		if g.pending == nil {
			if !g.inner.Next() {
				g.done = true
				return false
			}
			g.pending = g.inner.Entry()
		}
		key := g.key(g.pending)
		keyID := frame.LabelKey(key)
		values := []any{g.pending.Data}
		g.pending = nil
		for g.inner.Next() {
			entry := g.inner.Entry()
			if frame.LabelKey(g.key(entry)) != keyID {
				g.pending = entry
				break
			}
			values = append(values, entry.Data)
		}
		if g.inner.Err() != nil {
			g.done = true
			// the group is complete only when the interrupted entry already
			// belonged to the next one
			interrupted := g.inner.stopped
			if interrupted == nil || frame.LabelKey(g.key(interrupted)) == keyID {
				return false
			}
		}

		value, err := g.apply(joinValues(values))
		if err != nil {
			logger.Errorf("Error while processing group %v: %s", key, err)
			g.skipped = multierror.Append(g.skipped, fmt.Errorf("group %v: %w", key, err))
			continue
		}
		g.current, g.value = key, value
		return true
	}
	return false
}

func (g *GroupIterator) apply(value any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	if g.chain.Len() == 0 {
		return value, nil
	}
	return g.chain.Eval(value)
}

// Key is the current group's key: a field value, a frame.Tuple of field
// values, or whatever the key function returned.
func (g *GroupIterator) Key() any {
	return g.current
}

func (g *GroupIterator) Value() any {
	return g.value
}

// Err reports an interrupted activation.
func (g *GroupIterator) Err() error {
	return g.inner.Err()
}

// Skipped returns per-entry and per-group failures, or nil.
func (g *GroupIterator) Skipped() error {
	var all *multierror.Error
	if err := g.inner.Skipped(); err != nil {
		all = multierror.Append(all, err)
	}
	if g.skipped != nil {
		all = multierror.Append(all, g.skipped)
	}
	return all.ErrorOrNil()
}

func (g *GroupIterator) Close() error {
	g.done = true
	g.pending = nil
	return g.inner.Close()
}
