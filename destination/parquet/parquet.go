package parquet

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	pqgo "github.com/parquet-go/parquet-go"

	"github.com/soundscape-lab/sounddb/constants"
	"github.com/soundscape-lab/sounddb/destination"
	s3driver "github.com/soundscape-lab/sounddb/drivers/s3"
	"github.com/soundscape-lab/sounddb/types"
	"github.com/soundscape-lab/sounddb/utils"
	"github.com/soundscape-lab/sounddb/utils/logger"
	"github.com/soundscape-lab/sounddb/utils/typeutils"
)

// Uploader is the part of the S3 client the writer uses.
type Uploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Parquet destination writes one Snappy-compressed Parquet file per result to
// a local path and optionally uploads it to S3.
type Parquet struct {
	config   *Config
	s3Client Uploader
	// files lists every file written, as local paths or s3:// URLs
	files []string
}

// GetConfigRef returns the config reference for the parquet writer.
func (p *Parquet) GetConfigRef() destination.Config {
	p.config = &Config{}
	return p.config
}

// Spec returns a new Config instance.
func (p *Parquet) Spec() any {
	return Config{}
}

func (p *Parquet) Type() string {
	return string(types.Parquet)
}

// Files lists what has been written so far.
func (p *Parquet) Files() []string {
	return append([]string(nil), p.files...)
}

// setup s3 client if a bucket is configured
func (p *Parquet) initS3Writer(ctx context.Context) error {
	if p.config.Bucket == "" || p.s3Client != nil {
		return nil
	}
	client, err := s3driver.NewClient(ctx, &s3driver.Config{
		BucketName:      p.config.Bucket,
		Region:          p.config.Region,
		AccessKeyID:     p.config.AccessKey,
		SecretAccessKey: p.config.SecretKey,
		Endpoint:        p.config.S3Endpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to create s3 client: %s", err)
	}
	p.s3Client = client
	return nil
}

// Check validates the local path and S3 permissions if applicable.
func (p *Parquet) Check(ctx context.Context) error {
	if err := p.initS3Writer(ctx); err != nil {
		return err
	}
	// test for s3 permissions
	if p.s3Client != nil {
		testKey := path.Join(p.config.Prefix, "sounddb_writer_test", utils.TimestampedFileName("txt"))
		_, err := p.s3Client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(p.config.Bucket),
			Key:    aws.String(testKey),
			Body:   strings.NewReader("S3 write test"),
		})
		if err != nil {
			return fmt.Errorf("failed to write test file to S3: %s", err)
		}
		// files are staged locally before upload
		if p.config.Path == "" {
			p.config.Path = os.TempDir()
		}
		logger.Infof("s3 writer configuration found, uploading to s3://%s/%s", p.config.Bucket, p.config.Prefix)
	} else {
		logger.Infof("local writer configuration found, writing at location[%s]", p.config.Path)
	}

	// Create the directory if it doesn't exist
	if err := os.MkdirAll(p.config.Path, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create path: %s", err)
	}

	// Test directory writability
	tempFile, err := os.CreateTemp(p.config.Path, "temporary-*.txt")
	if err != nil {
		return fmt.Errorf("directory is not writable: %s", err)
	}
	tempFile.Close()
	os.Remove(tempFile.Name())
	return nil
}

// Write flattens result into one Parquet file, one optional column per
// index level and value column.
func (p *Parquet) Write(ctx context.Context, result any, opts ...destination.Option) error {
	records, err := destination.Flatten(result)
	if err != nil {
		return err
	}
	if len(records.Columns) == 0 {
		logger.Warn("nothing to write, result is empty")
		return nil
	}
	options := destination.NewOptions(opts...)

	// construct directory path
	directoryPath := filepath.Join(p.config.Path, options.Partition)
	if err := os.MkdirAll(directoryPath, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directories[%s]: %s", directoryPath, err)
	}
	fileName := options.FileName(constants.ParquetFileExt)
	filePath := filepath.Join(directoryPath, fileName)

	if err := writeFile(filePath, records); err != nil {
		return err
	}
	logger.Infof("Finished writing file [%s] with %d rows.", filePath, records.Len())

	if p.s3Client == nil {
		p.files = append(p.files, filePath)
		return nil
	}
	return p.upload(ctx, filePath, path.Join(p.config.Prefix, filepath.ToSlash(options.Partition), fileName))
}

func (p *Parquet) upload(ctx context.Context, filePath, key string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %s", err)
	}
	defer file.Close()

	_, err = p.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.config.Bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		return fmt.Errorf("failed to put object into s3: %s", err)
	}

	// Remove local file after successful upload
	if err := os.Remove(filePath); err != nil {
		logger.Warnf("Failed to delete file [%s], reason (uploaded to S3): %s", filePath, err)
	}
	location := fmt.Sprintf("s3://%s/%s", p.config.Bucket, key)
	p.files = append(p.files, location)
	logger.Infof("successfully uploaded file to S3: %s", location)
	return nil
}

func (p *Parquet) Close(_ context.Context) error {
	logger.Infof("parquet writer closed after %d files", len(p.files))
	return nil
}

func writeFile(filePath string, records *destination.Records) (err error) {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %s", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close file: %s", cerr)
		}
	}()

	dataTypes := records.Types()
	writer := pqgo.NewGenericWriter[any](file, Schema(records.Columns, dataTypes), pqgo.Compression(&pqgo.Snappy))
	rows := make([]any, 0, records.Len())
	for i := 0; i < records.Len(); i++ {
		record := records.Record(i)
		for j, column := range records.Columns {
			record[column] = toParquet(record[column], dataTypes[j])
		}
		rows = append(rows, record)
	}
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("failed to write in parquet file: %s", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %s", err)
	}
	return nil
}

// Schema builds a flat schema of optional columns.
func Schema(columns []string, dataTypes []types.DataType) *pqgo.Schema {
	group := make(pqgo.Group, len(columns))
	for i, column := range columns {
		group[column] = dataTypes[i].ToNewParquet()
	}
	return pqgo.NewSchema("sounddb", group)
}

// toParquet converts a cell to the Go type its column is stored as.
func toParquet(v any, dataType types.DataType) any {
	if v == nil {
		return nil
	}
	switch dataType {
	case types.Float64:
		if f, ok := typeutils.ToFloat64(v); ok {
			return f
		}
		if b, ok := v.(bool); ok {
			return float64(boolToInt(b))
		}
	case types.Int64:
		switch x := v.(type) {
		case int64:
			return x
		case bool:
			return boolToInt(x)
		}
	case types.Duration:
		if d, ok := v.(time.Duration); ok {
			return int64(d)
		}
	case types.Bool, types.Timestamp:
		return v
	}
	return fmt.Sprint(v)
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func init() {
	destination.RegisteredWriters[types.Parquet] = func() destination.Writer {
		return new(Parquet)
	}
}
