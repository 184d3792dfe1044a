package destination

import (
	"context"
	"fmt"

	"github.com/soundscape-lab/sounddb/types"
	"github.com/soundscape-lab/sounddb/utils"
	"github.com/soundscape-lab/sounddb/utils/logger"
)

type (
	NewFunc func() Writer
	Option  func(opt *Options)

	Options struct {
		// Identifier names the output file, without extension
		Identifier string
		// Partition is a sub-directory below the destination path
		Partition string
	}
)

// RegisteredWriters is filled by the writer packages' init functions.
var RegisteredWriters = map[types.DestinationType]NewFunc{}

func WithIdentifier(identifier string) Option {
	return func(opt *Options) {
		opt.Identifier = identifier
	}
}

func WithPartition(partition string) Option {
	return func(opt *Options) {
		opt.Partition = partition
	}
}

// NewOptions applies opts over the defaults.
func NewOptions(opts ...Option) *Options {
	options := &Options{}
	for _, one := range opts {
		one(options)
	}
	return options
}

// FileName is the identifier with ext appended, or a timestamped name when
// no identifier was given.
func (o *Options) FileName(ext string) string {
	if o.Identifier == "" {
		return utils.TimestampedFileName(ext)
	}
	return fmt.Sprintf("%s.%s", o.Identifier, ext)
}

// NewWriter builds the writer registered for config.Type, decodes and
// validates its settings, and checks it.
func NewWriter(ctx context.Context, config *types.WriterConfig) (Writer, error) {
	if err := utils.Validate(config); err != nil {
		return nil, err
	}
	newfunc, found := RegisteredWriters[config.Type]
	if !found {
		return nil, fmt.Errorf("invalid destination type has been passed [%s]", config.Type)
	}

	adapter := newfunc()
	ref := adapter.GetConfigRef()
	if err := utils.Unmarshal(config.WriterConfig, ref); err != nil {
		return nil, err
	}
	if err := ref.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate destination config: %s", err)
	}

	if err := adapter.Check(ctx); err != nil {
		return nil, fmt.Errorf("failed to test destination: %s", err)
	}
	logger.Infof("Destination %s ready", adapter.Type())
	return adapter, nil
}
