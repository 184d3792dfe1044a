package combine

import (
	"fmt"

	"github.com/goccy/go-json"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/soundscape-lab/sounddb/pkg/frame"
)

type pair struct {
	key   any
	value any
}

// Results is an insertion-ordered mapping from key to value. Keys may be any
// label, including frame.Tuple; keys with the same frame.LabelKey collide.
type Results struct {
	entries *orderedmap.OrderedMap[string, pair]
}

func NewResults() *Results {
	return &Results{entries: orderedmap.New[string, pair]()}
}

// Set stores value under key, keeping the original position of an existing key.
func (r *Results) Set(key, value any) {
	r.entries.Set(frame.LabelKey(key), pair{key: key, value: value})
}

func (r *Results) Get(key any) (any, bool) {
	p, ok := r.entries.Get(frame.LabelKey(key))
	if !ok {
		return nil, false
	}
	return p.value, true
}

func (r *Results) Len() int {
	if r == nil {
		return 0
	}
	return r.entries.Len()
}

// Keys returns keys in insertion order.
func (r *Results) Keys() []any {
	keys := make([]any, 0, r.Len())
	for p := r.entries.Oldest(); p != nil; p = p.Next() {
		keys = append(keys, p.Value.key)
	}
	return keys
}

// Values returns values in insertion order.
func (r *Results) Values() []any {
	values := make([]any, 0, r.Len())
	for p := r.entries.Oldest(); p != nil; p = p.Next() {
		values = append(values, p.Value.value)
	}
	return values
}

// Each visits entries in order until fn returns false.
func (r *Results) Each(fn func(key, value any) bool) {
	for p := r.entries.Oldest(); p != nil; p = p.Next() {
		if !fn(p.Value.key, p.Value.value) {
			return
		}
	}
}

// MarshalJSON renders the mapping as an object keyed by the printed keys.
func (r *Results) MarshalJSON() ([]byte, error) {
	out := orderedmap.New[string, any]()
	r.Each(func(key, value any) bool {
		out.Set(fmt.Sprint(key), value)
		return true
	})
	return json.Marshal(out)
}

func (r *Results) String() string {
	return fmt.Sprintf("Results(%d entries)", r.Len())
}
