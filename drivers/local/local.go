// Package driver serves datasets stored as a directory tree on local disk.
package driver

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/soundscape-lab/sounddb/drivers/abstract"
	"github.com/soundscape-lab/sounddb/types"
	"github.com/soundscape-lab/sounddb/utils"
	"github.com/soundscape-lab/sounddb/utils/logger"
)

// Config describes a dataset rooted at a local directory.
type Config struct {
	Root      string                    `json:"root" validate:"required"`
	Endpoints []abstract.EndpointConfig `json:"endpoints" validate:"required,min=1,dive"`
}

// Validate checks the config and that Root is a readable directory.
func (c *Config) Validate() error {
	if err := utils.Validate(c); err != nil {
		return err
	}
	info, err := os.Stat(c.Root)
	if err != nil {
		return fmt.Errorf("failed to stat root %s: %s", c.Root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root %s is not a directory", c.Root)
	}
	return nil
}

// Local lists the files below a root directory.
type Local struct {
	root string
}

func NewLocal(root string) *Local {
	return &Local{root: root}
}

// NewDataset validates config and builds its endpoints over the root.
func NewDataset(config *Config) (*abstract.Dataset, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %s", err)
	}
	logger.Infof("Using local dataset at %s with %d endpoints", config.Root, len(config.Endpoints))
	return abstract.NewDataset(NewLocal(config.Root), config.Endpoints)
}

// List walks the deepest directory the prefix names, in lexical order.
func (l *Local) List(ctx context.Context, prefix string, fn func(abstract.FileInfo) error) error {
	dir := path.Dir(prefix)
	if prefix == "" || dir == "." {
		dir = ""
	}
	start := filepath.Join(l.root, filepath.FromSlash(dir))
	if _, err := os.Stat(start); os.IsNotExist(err) {
		logger.Debugf("Nothing to list under %s", start)
		return nil
	}

	return filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warnf("Skipping %s: %s", p, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if len(rel) < len(prefix) || rel[:len(prefix)] != prefix {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			logger.Warnf("Skipping %s: %s", p, err)
			return nil
		}
		return fn(abstract.FileInfo{Path: rel, Size: info.Size()})
	})
}

func (l *Local) Opener(file abstract.FileInfo) types.Opener {
	location := l.Location(file)
	return func(ctx context.Context) (io.ReadCloser, error) {
		reader, err := types.OpenPath(ctx, location)
		if err != nil {
			return nil, err
		}
		return abstract.Decompress(reader, location)
	}
}

func (l *Local) Location(file abstract.FileInfo) string {
	return filepath.Join(l.root, filepath.FromSlash(file.Path))
}
