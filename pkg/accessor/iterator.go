package accessor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/hashicorp/go-multierror"

	"github.com/soundscape-lab/sounddb/pkg/chain"
	"github.com/soundscape-lab/sounddb/types"
	"github.com/soundscape-lab/sounddb/utils"
	"github.com/soundscape-lab/sounddb/utils/logger"
)

// Iterator is one activation of a query: a pull iterator yielding entries
// whose Data holds the parsed value with the query's chain applied. Nothing
// is read until the first call to Next; after Close no further entries are
// requested from the record source.
type Iterator struct {
	ctx   context.Context
	query *Query
	sort  *types.SortSpec
	chain chain.Chain

	id      string
	started bool
	done    bool
	src     types.EntryIterator
	state   any
	entry   *types.Entry
	stopped *types.Entry // entry being read when the activation was interrupted
	visited int
	err     error
	skipped *multierror.Error
}

func newIterator(ctx context.Context, q *Query, sortSpec *types.SortSpec) *Iterator {
	return &Iterator{ctx: ctx, query: q, sort: sortSpec, chain: q.chain}
}

// ID identifies the activation in logs.
func (it *Iterator) ID() string {
	return it.id
}

func (it *Iterator) activate() error {
	q := it.query
	it.id = utils.ULID()
	sel := q.selection(it.sort)
	logger.Debugf("activation %s: reading %s where %s", it.id, q.endpoint.Name(), sel.Filters)

	if q.accessor.state != nil {
		state, err := q.accessor.state.Prepare(it.ctx, q.endpoint, q.filters, q.stateKwargs)
		if err != nil {
			return fmt.Errorf("failed to prepare state for %s: %w", q.endpoint.Name(), err)
		}
		it.state = state
	}

	src, err := q.endpoint.Entries(it.ctx, sel)
	if err != nil {
		return fmt.Errorf("failed to list %s entries: %w", q.endpoint.Name(), err)
	}
	it.src = src
	return nil
}

// Next advances to the next successfully processed entry. Entries whose
// parser or chain fails are logged, recorded in Skipped and passed over.
// Cancellation of the context ends the activation and is reported by Err.
func (it *Iterator) Next() bool {
	if it.done {
		return false
	}
	if !it.started {
		it.started = true
		if err := it.activate(); err != nil {
			it.finish(err)
			return false
		}
	}

	for {
		if err := it.ctx.Err(); err != nil {
			it.interrupted(it.entry, err)
			return false
		}
		if !it.src.Next(it.ctx) {
			err := it.src.Err()
			if err == nil {
				err = it.ctx.Err()
			}
			if isInterrupt(err) {
				it.interrupted(it.entry, err)
				return false
			}
			it.finish(err)
			return false
		}

		entry := it.src.Entry()
		it.entry = entry
		it.visited++
		data, err := it.process(entry)
		if it.query.progress != nil {
			it.query.progress(it.visited, entry)
		}
		if err != nil {
			if isInterrupt(err) || it.ctx.Err() != nil {
				it.interrupted(entry, err)
				return false
			}
			logger.Errorf("Error while processing %q: %s", entry.Path, err)
			it.skipped = multierror.Append(it.skipped, fmt.Errorf("%s: %w", entry.Path, err))
			continue
		}
		entry.Data = data
		return true
	}
}

// process parses one entry and folds the chain over the result. Panics are
// converted to errors carrying the stack.
func (it *Iterator) process(entry *types.Entry) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()

	parsed, err := it.query.accessor.parser(it.ctx, entry, it.state)
	if err != nil {
		return nil, err
	}
	if it.chain.Len() == 0 {
		return parsed, nil
	}
	return it.chain.Eval(parsed)
}

func (it *Iterator) interrupted(entry *types.Entry, err error) {
	path := "<none>"
	if entry != nil {
		path = entry.Path
	}
	logger.Warnf("activation %s interrupted while processing %q: %s", it.id, path, err)
	it.stopped = entry
	it.finish(err)
}

func (it *Iterator) finish(err error) {
	it.err = err
	it.entry = nil
	_ = it.Close()
}

func isInterrupt(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Entry is the current entry; valid until the next call to Next.
func (it *Iterator) Entry() *types.Entry {
	return it.entry
}

// Value is the current entry's processed data.
func (it *Iterator) Value() any {
	if it.entry == nil {
		return nil
	}
	return it.entry.Data
}

// Err reports why iteration stopped early: a failed activation or an
// interrupt. Per-entry failures are reported by Skipped instead.
func (it *Iterator) Err() error {
	return it.err
}

// Skipped returns the accumulated per-entry failures, or nil.
func (it *Iterator) Skipped() error {
	return it.skipped.ErrorOrNil()
}

// Visited is the number of entries requested from the record source so far.
func (it *Iterator) Visited() int {
	return it.visited
}

// Close ends the activation and releases the record source. It is safe to
// call more than once.
func (it *Iterator) Close() error {
	it.done = true
	if it.src == nil {
		return nil
	}
	src := it.src
	it.src = nil
	return src.Close()
}
