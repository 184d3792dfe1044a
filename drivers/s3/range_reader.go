package driver

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/soundscape-lab/sounddb/utils/logger"
)

// S3RangeReader reads an object through range requests, so Parquet readers
// can fetch the footer and column chunks without downloading the whole file.
// It implements io.ReaderAt, io.ReadSeeker and io.Closer.
type S3RangeReader struct {
	ctx    context.Context
	client API
	bucket string
	key    string
	size   int64
	offset int64
}

// NewS3RangeReader creates a new S3RangeReader
func NewS3RangeReader(ctx context.Context, client API, bucket, key string, size int64) *S3RangeReader {
	return &S3RangeReader{
		ctx:    ctx,
		client: client,
		bucket: bucket,
		key:    key,
		size:   size,
	}
}

// ReadAt reads len(p) bytes from the S3 object starting at byte offset off
func (r *S3RangeReader) ReadAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		return 0, fmt.Errorf("invalid offset: %d", off)
	}
	if off >= r.size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	// Calculate the range to read
	endByte := off + int64(len(p)) - 1
	if endByte >= r.size {
		endByte = r.size - 1
	}

	// S3 range format: "bytes=start-end" (inclusive)
	rangeHeader := fmt.Sprintf("bytes=%d-%d", off, endByte)

	logger.Debugf("S3 Range Request: %s for %s (size: %d bytes)", rangeHeader, r.key, endByte-off+1)

	result, err := r.client.GetObject(r.ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key),
		Range:  aws.String(rangeHeader),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read range %s: %s", rangeHeader, err)
	}
	defer result.Body.Close()

	want := int(endByte - off + 1)
	totalRead, err := io.ReadFull(result.Body, p[:want])
	if err != nil {
		return totalRead, fmt.Errorf("failed to read response body: %s", err)
	}
	if totalRead < len(p) {
		// Reached end of file
		return totalRead, io.EOF
	}
	return totalRead, nil
}

func (r *S3RangeReader) Read(p []byte) (int, error) {
	n, err := r.ReadAt(p, r.offset)
	r.offset += int64(n)
	return n, err
}

func (r *S3RangeReader) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = r.offset + offset
	case io.SeekEnd:
		abs = r.size + offset
	default:
		return 0, fmt.Errorf("invalid whence: %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("negative position: %d", abs)
	}
	r.offset = abs
	return abs, nil
}

// Size returns the total size of the S3 object
func (r *S3RangeReader) Size() int64 {
	return r.size
}

// Close is a no-op; every range request closes its own body.
func (r *S3RangeReader) Close() error {
	return nil
}
