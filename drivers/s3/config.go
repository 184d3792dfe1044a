package driver

import (
	"fmt"
	"strings"

	"github.com/soundscape-lab/sounddb/constants"
	"github.com/soundscape-lab/sounddb/drivers/abstract"
	"github.com/soundscape-lab/sounddb/utils"
)

// Config represents the configuration of a dataset stored in S3
type Config struct {
	// ===== AWS Connection Configuration =====
	BucketName      string `json:"bucket_name" validate:"required"`
	Region          string `json:"region"`
	PathPrefix      string `json:"path_prefix"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	Endpoint        string `json:"endpoint"` // Optional: for S3-compatible services like MinIO

	// ===== Reading Configuration =====
	RetryCount int `json:"retry_count" validate:"gte=0"` // Number of retries for failed requests
	// RangeReads reads Parquet objects with ranged GETs instead of downloading them whole
	RangeReads bool `json:"range_reads"`

	// ===== Dataset Layout =====
	Endpoints []abstract.EndpointConfig `json:"endpoints" validate:"required,min=1,dive"`
}

// Validate validates the S3 configuration and fills in defaults
func (c *Config) Validate() error {
	if err := utils.Validate(c); err != nil {
		return err
	}

	// Validate region (only if not using custom endpoint)
	if c.Endpoint == "" && c.Region == "" {
		return fmt.Errorf("region is required when not using custom endpoint")
	}

	// Validate credentials - both must be provided together or omitted together
	// If omitted, the driver will fall back to default credential chain (IAM roles, env vars, etc.)
	if (c.AccessKeyID != "" && c.SecretAccessKey == "") || (c.AccessKeyID == "" && c.SecretAccessKey != "") {
		return fmt.Errorf("access_key_id and secret_access_key must be provided together or both omitted (for IAM role authentication)")
	}

	// Set default retry count
	if c.RetryCount <= 0 {
		c.RetryCount = constants.DefaultRetryCount
	}

	// Normalize path prefix (remove leading/trailing slashes)
	if c.PathPrefix != "" {
		c.PathPrefix = strings.Trim(c.PathPrefix, "/")
	}

	return nil
}

// key turns a path relative to the dataset root into an object key
func (c *Config) key(rel string) string {
	if c.PathPrefix == "" {
		return rel
	}
	return c.PathPrefix + "/" + rel
}

// relative is the inverse of key
func (c *Config) relative(key string) string {
	if c.PathPrefix == "" {
		return key
	}
	return strings.TrimPrefix(strings.TrimPrefix(key, c.PathPrefix), "/")
}
