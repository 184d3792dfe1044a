package accessors

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/soundscape-lab/sounddb/pkg/accessor"
)

// Registry maps endpoint names to accessors in registration order.
type Registry struct {
	accessors *orderedmap.OrderedMap[string, *accessor.Accessor]
}

func NewRegistry() *Registry {
	return &Registry{accessors: orderedmap.New[string, *accessor.Accessor]()}
}

// Register adds accessors under their endpoint names. A name may only be
// registered once.
func (r *Registry) Register(accessors ...*accessor.Accessor) error {
	for _, a := range accessors {
		if a == nil {
			return fmt.Errorf("cannot register a nil accessor")
		}
		if _, exists := r.accessors.Get(a.Name()); exists {
			return fmt.Errorf("accessor %q is already registered", a.Name())
		}
		r.accessors.Set(a.Name(), a)
	}
	return nil
}

func (r *Registry) MustRegister(accessors ...*accessor.Accessor) *Registry {
	if err := r.Register(accessors...); err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Get(name string) (*accessor.Accessor, error) {
	a, ok := r.accessors.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: no accessor named %q, available: %v", accessor.ErrNoEndpoint, name, r.Names())
	}
	return a, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, r.accessors.Len())
	for pair := r.accessors.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

func (r *Registry) All() []*accessor.Accessor {
	all := make([]*accessor.Accessor, 0, r.accessors.Len())
	for pair := r.accessors.Oldest(); pair != nil; pair = pair.Next() {
		all = append(all, pair.Value)
	}
	return all
}

// Default returns a registry holding every accessor of this package.
func Default() *Registry {
	return NewRegistry().MustRegister(
		NVSPL,
		SRCID,
		LoudEvents,
		Audibility,
		DailyPA,
		MetricsReport,
		NVSPLParquet,
	)
}
