package types

import (
	"context"
	"fmt"
	"io"
	"os"
)

// OpenPath opens a local file, so parsers can be used on a bare path outside
// any query.
func OpenPath(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %s", path, err)
	}
	return file, nil
}
