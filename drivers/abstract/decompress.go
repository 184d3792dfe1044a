package abstract

import (
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/soundscape-lab/sounddb/constants"
	"github.com/soundscape-lab/sounddb/utils/logger"
)

type gzipReadCloser struct {
	*gzip.Reader
	body io.Closer
}

func (g *gzipReadCloser) Close() error {
	gzErr := g.Reader.Close()
	if err := g.body.Close(); err != nil {
		return err
	}
	return gzErr
}

// Decompress wraps body in a gzip reader when path ends in .gz. Closing the
// result closes body.
func Decompress(body io.ReadCloser, path string) (io.ReadCloser, error) {
	if !strings.HasSuffix(strings.ToLower(path), "."+constants.GzipFileExt) {
		return body, nil
	}
	gzipReader, err := gzip.NewReader(body)
	if err != nil {
		body.Close()
		return nil, fmt.Errorf("failed to create gzip reader: %s", err)
	}
	logger.Debugf("Using gzip decompression for file: %s", path)
	return &gzipReadCloser{Reader: gzipReader, body: body}, nil
}
