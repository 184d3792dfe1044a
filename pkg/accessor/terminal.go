package accessor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/soundscape-lab/sounddb/constants"
	"github.com/soundscape-lab/sounddb/pkg/combine"
	"github.com/soundscape-lab/sounddb/pkg/frame"
	"github.com/soundscape-lab/sounddb/types"
	"github.com/soundscape-lab/sounddb/utils/logger"
)

// IDFunc names the deployment an entry belongs to.
type IDFunc func(*types.Entry) string

// DefaultID concatenates whichever of the unit, site and year fields the
// entry has, falling back to its path.
func DefaultID(entry *types.Entry) string {
	var b strings.Builder
	for _, field := range constants.IdentityFields {
		if v, ok := entry.Field(field); ok {
			fmt.Fprint(&b, v)
		}
	}
	if b.Len() == 0 {
		return entry.Path
	}
	return b.String()
}

// collect drains an activation into id -> values in first-seen order.
func (q *Query) collect(ctx context.Context, id IDFunc) ([]string, map[string][]any, error) {
	if id == nil {
		id = DefaultID
	}
	var order []string
	byID := map[string][]any{}
	it := q.Iter(ctx)
	defer it.Close()
	for it.Next() {
		entry := it.Entry()
		key := id(entry)
		if _, seen := byID[key]; !seen {
			order = append(order, key)
		}
		byID[key] = append(byID[key], entry.Data)
	}
	if err := it.Err(); err != nil {
		return nil, nil, err
	}
	if skipped := it.Skipped(); skipped != nil {
		logger.Warnf("%s: %d entries could not be read", q.endpoint.Name(), countErrors(skipped))
	}
	return order, byID, nil
}

func countErrors(err error) int {
	var multi interface{ WrappedErrors() []error }
	if errors.As(err, &multi) {
		return len(multi.WrappedErrors())
	}
	return 1
}

// joinValues concatenates the values of one id, keeping a list when they do
// not concatenate.
func joinValues(values []any) any {
	if len(values) == 1 {
		return values[0]
	}
	joined, err := frame.Concat(values)
	if err != nil {
		return values
	}
	return joined
}

// All reads every entry and joins the data into one table or series whose
// outer index level is the deployment ID. Data that cannot be joined is
// returned as a *combine.Results mapping ID to value.
func (q *Query) All(ctx context.Context, id IDFunc) (any, error) {
	order, byID, err := q.collect(ctx, id)
	if err != nil {
		return nil, err
	}
	keys := make([]any, len(order))
	values := make([]any, len(order))
	results := combine.NewResults()
	for i, key := range order {
		keys[i] = key
		values[i] = joinValues(byID[key])
		results.Set(key, values[i])
	}
	if len(values) == 0 {
		return results, nil
	}
	joined, err := frame.ConcatKeyed(keys, values, constants.IDField)
	if err != nil {
		logger.Debugf("returning %s data as a mapping: %s", q.endpoint.Name(), err)
		return results, nil
	}
	return joined, nil
}

// Combine reads every entry, joins values per deployment ID, applies fn to
// each and promotes the results with the combiner. A nil fn is the identity.
// Failures of fn are logged and that ID is left out.
func (q *Query) Combine(ctx context.Context, fn func(any) (any, error), id IDFunc, opts ...combine.Option) (any, error) {
	order, byID, err := q.collect(ctx, id)
	if err != nil {
		return nil, err
	}
	results := combine.NewResults()
	for _, key := range order {
		value := joinValues(byID[key])
		if fn != nil {
			if value, err = fn(value); err != nil {
				logger.Errorf("Error while combining %q: %s", key, err)
				continue
			}
		}
		results.Set(key, value)
	}
	opts = append([]combine.Option{combine.WithKeyName(constants.IDField)}, opts...)
	return combine.Combine(results, opts...), nil
}
