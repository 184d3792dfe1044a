// Package destination persists materialized query results. Writers flatten
// tables, series, panels and combined mappings into records and store them
// in a concrete format.
package destination

import (
	"context"
)

type Config interface {
	Validate() error
}

type Writer interface {
	GetConfigRef() Config
	Spec() any
	Type() string
	// Check verifies the destination is writable; it runs after the config
	// has been decoded and validated.
	Check(ctx context.Context) error
	// Write flattens result and stores it as one output file
	Write(ctx context.Context, result any, opts ...Option) error
	Close(ctx context.Context) error
}
