package parquet

import (
	"fmt"
	"strings"

	"github.com/soundscape-lab/sounddb/utils"
)

// Config writes Parquet files below Path, or uploads them to Bucket when set.
type Config struct {
	Path string `json:"local_path"`

	Bucket     string `json:"s3_bucket"`
	Region     string `json:"s3_region"`
	AccessKey  string `json:"s3_access_key"`
	SecretKey  string `json:"s3_secret_key"`
	Prefix     string `json:"s3_path"`
	S3Endpoint string `json:"s3_endpoint"`
}

func (c *Config) Validate() error {
	if err := utils.Validate(c); err != nil {
		return err
	}
	if c.Path == "" && c.Bucket == "" {
		return fmt.Errorf("one of local_path or s3_bucket is required")
	}
	if c.Bucket != "" && c.Region == "" && c.S3Endpoint == "" {
		return fmt.Errorf("s3_region is required when not using a custom s3_endpoint")
	}
	if (c.AccessKey == "") != (c.SecretKey == "") {
		return fmt.Errorf("s3_access_key and s3_secret_key must be provided together")
	}
	c.Prefix = strings.Trim(c.Prefix, "/")
	return nil
}
