// Package driver serves datasets stored under a prefix of an S3 bucket, or
// of any S3-compatible object store.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/soundscape-lab/sounddb/constants"
	"github.com/soundscape-lab/sounddb/drivers/abstract"
	"github.com/soundscape-lab/sounddb/types"
	"github.com/soundscape-lab/sounddb/utils/backoff"
	"github.com/soundscape-lab/sounddb/utils/logger"
)

// API is the part of the S3 client the driver uses.
type API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 lists and opens the objects of a dataset
type S3 struct {
	client API
	config *Config
}

// New wraps an existing client; config must already be validated.
func New(client API, config *Config) *S3 {
	return &S3{client: client, config: config}
}

// NewDataset validates config, connects to the bucket and builds the
// dataset's endpoints over it.
func NewDataset(ctx context.Context, config *Config) (*abstract.Dataset, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %s", err)
	}
	client, err := NewClient(ctx, config)
	if err != nil {
		return nil, err
	}
	s := New(client, config)
	if err := s.Check(ctx); err != nil {
		return nil, err
	}
	return abstract.NewDataset(s, config.Endpoints)
}

// NewClient builds an S3 client from the connection settings of c, using
// static credentials when both keys are set and the default chain otherwise.
func NewClient(ctx context.Context, c *Config) (*s3.Client, error) {
	// Build config options
	configOpts := []func(*config.LoadOptions) error{
		config.WithRegion(c.Region),
	}

	// Use static credentials if provided, otherwise fall back to default credential chain
	// Default chain includes: IAM roles, instance profiles, environment variables, shared config
	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		logger.Info("Using static credentials for S3 authentication")
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				c.AccessKeyID,
				c.SecretAccessKey,
				"",
			),
		))
	} else {
		logger.Info("Using default credential chain (IAM role, instance profile, env vars, or shared config)")
	}

	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %s", err)
	}

	if c.Endpoint != "" {
		logger.Infof("Connecting to S3-compatible endpoint: %s", c.Endpoint)
		return s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true // Required for MinIO and some S3-compatible services
		}), nil
	}
	logger.Infof("Connecting to AWS S3 in region: %s", c.Region)
	return s3.NewFromConfig(cfg), nil
}

// Check tests that the bucket exists and is accessible
func (s *S3) Check(ctx context.Context) error {
	logger.Infof("Testing connection to bucket: %s", s.config.BucketName)
	err := s.retry(ctx, func() error {
		_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
			Bucket: aws.String(s.config.BucketName),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to access bucket %s: %s", s.config.BucketName, err)
	}
	logger.Info("Successfully connected to S3")
	return nil
}

// List pages through ListObjectsV2 below the dataset prefix
func (s *S3) List(ctx context.Context, prefix string, fn func(abstract.FileInfo) error) error {
	var continuationToken *string
	pageCount := 0
	for {
		pageCount++
		input := &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.config.BucketName),
			Prefix:            aws.String(s.config.key(prefix)),
			ContinuationToken: continuationToken,
		}

		var result *s3.ListObjectsV2Output
		err := s.retry(ctx, func() error {
			var err error
			result, err = s.client.ListObjectsV2(ctx, input)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to list objects in bucket: %s", err)
		}

		logger.Debugf("Processing S3 list page %d (%d objects in this page)", pageCount, len(result.Contents))

		for _, obj := range result.Contents {
			key := aws.ToString(obj.Key)

			// Skip directories (keys ending with /)
			if strings.HasSuffix(key, "/") {
				continue
			}
			if err := fn(abstract.FileInfo{Path: s.config.relative(key), Size: aws.ToInt64(obj.Size)}); err != nil {
				return err
			}
		}

		// Check if there are more results
		if !aws.ToBool(result.IsTruncated) {
			return nil
		}
		continuationToken = result.NextContinuationToken
	}
}

// Opener reads an object, decompressing .gz keys. With range reads enabled
// Parquet objects are read through ranged GETs.
func (s *S3) Opener(file abstract.FileInfo) types.Opener {
	key := s.config.key(file.Path)
	return func(ctx context.Context) (io.ReadCloser, error) {
		if s.config.RangeReads && file.Size > 0 && strings.HasSuffix(strings.ToLower(key), "."+constants.ParquetFileExt) {
			logger.Debugf("Using S3 range requests for Parquet file: %s", key)
			return NewS3RangeReader(ctx, s.client, s.config.BucketName, key, file.Size), nil
		}

		var result *s3.GetObjectOutput
		err := s.retry(ctx, func() error {
			var err error
			result, err = s.client.GetObject(ctx, &s3.GetObjectInput{
				Bucket: aws.String(s.config.BucketName),
				Key:    aws.String(key),
			})
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get object %s from S3: %s", key, err)
		}
		return abstract.Decompress(result.Body, key)
	}
}

func (s *S3) Location(file abstract.FileInfo) string {
	return fmt.Sprintf("s3://%s/%s", s.config.BucketName, s.config.key(file.Path))
}

func (s *S3) retry(ctx context.Context, f func() error) error {
	return backoff.Retry(ctx, s.config.RetryCount, constants.DefaultRetrySleep, f, isRetryable)
}

// isRetryable rejects cancellation and errors that cannot go away on retry
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var (
		noSuchKey    *s3types.NoSuchKey
		noSuchBucket *s3types.NoSuchBucket
	)
	return !errors.As(err, &noSuchKey) && !errors.As(err, &noSuchBucket)
}
