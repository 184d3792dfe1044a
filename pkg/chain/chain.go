// Package chain records attribute, item and call operations so they can be
// replayed later against every value a query produces.
package chain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var (
	ErrNotCallable = errors.New("value is not callable")
	ErrNoAttribute = errors.New("value has no attribute")
	ErrNoItem      = errors.New("value does not support item access")
)

// AttrGetter is implemented by values that resolve named attributes.
type AttrGetter interface {
	GetAttr(name string) (any, error)
}

// ItemGetter is implemented by values that support item access.
type ItemGetter interface {
	GetItem(key any) (any, error)
}

// Callable is implemented by values that can be invoked.
type Callable interface {
	Call(args []any, kwargs map[string]any) (any, error)
}

// Op is one deferred operation: Attr, Item or Call.
type Op interface {
	Apply(value any) (any, error)
	String() string
}

// Attr accesses a named attribute.
type Attr struct {
	Name string
}

// Item indexes with Key.
type Item struct {
	Key any
}

// Call invokes the current value.
type Call struct {
	Args   []any
	Kwargs map[string]any
}

func (a Attr) Apply(value any) (any, error) {
	switch v := value.(type) {
	case AttrGetter:
		return v.GetAttr(a.Name)
	case map[string]any:
		if out, ok := v[a.Name]; ok {
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: %T has no attribute %q", ErrNoAttribute, value, a.Name)
}

func (a Attr) String() string {
	return "." + a.Name
}

func (i Item) Apply(value any) (any, error) {
	switch v := value.(type) {
	case ItemGetter:
		return v.GetItem(i.Key)
	case map[string]any:
		key, ok := i.Key.(string)
		if ok {
			if out, found := v[key]; found {
				return out, nil
			}
		}
		return nil, fmt.Errorf("%w: key %v not found", ErrNoItem, i.Key)
	case []any:
		pos, ok := toInt(i.Key)
		if !ok {
			return nil, fmt.Errorf("%w: list index must be an integer, got %T", ErrNoItem, i.Key)
		}
		if pos < 0 {
			pos += len(v)
		}
		if pos < 0 || pos >= len(v) {
			return nil, fmt.Errorf("%w: list index %v out of range", ErrNoItem, i.Key)
		}
		return v[pos], nil
	}
	return nil, fmt.Errorf("%w: %T", ErrNoItem, value)
}

func (i Item) String() string {
	return fmt.Sprintf("[%v]", i.Key)
}

func (c Call) Apply(value any) (any, error) {
	switch fn := value.(type) {
	case Callable:
		return fn.Call(c.Args, c.Kwargs)
	case func(any) any:
		if len(c.Args) != 1 || len(c.Kwargs) > 0 {
			return nil, fmt.Errorf("%w: func(any) any takes exactly one argument", ErrNotCallable)
		}
		return fn(c.Args[0]), nil
	case func() any:
		if len(c.Args) > 0 || len(c.Kwargs) > 0 {
			return nil, fmt.Errorf("%w: func() any takes no arguments", ErrNotCallable)
		}
		return fn(), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrNotCallable, value)
}

func (c Call) String() string {
	parts := make([]string, 0, len(c.Args)+len(c.Kwargs))
	for _, a := range c.Args {
		parts = append(parts, fmt.Sprint(a))
	}
	for k, v := range c.Kwargs {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Chain is an ordered, append-only list of operations. Append never mutates
// the receiver's backing array, so a chain captured for evaluation stays fixed.
type Chain struct {
	ops []Op
}

// Append returns a new chain ending with ops.
func (c Chain) Append(ops ...Op) Chain {
	next := make([]Op, 0, len(c.ops)+len(ops))
	next = append(next, c.ops...)
	next = append(next, ops...)
	return Chain{ops: next}
}

func (c Chain) Len() int {
	return len(c.ops)
}

// Ops returns a copy of the operations in order.
func (c Chain) Ops() []Op {
	return append([]Op(nil), c.ops...)
}

// Eval folds the chain over value, stopping at the first failing operation.
func (c Chain) Eval(value any) (any, error) {
	result := value
	for i, op := range c.ops {
		out, err := op.Apply(result)
		if err != nil {
			return nil, fmt.Errorf("step %d %s: %w", i, op, err)
		}
		result = out
	}
	return result, nil
}

func (c Chain) String() string {
	var b strings.Builder
	for _, op := range c.ops {
		b.WriteString(op.String())
	}
	return b.String()
}

func toInt(v any) (int, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(rv.Uint()), true
	}
	return 0, false
}
