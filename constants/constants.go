package constants

import (
	"time"
)

const (
	DefaultRetryCount   = 3
	DefaultRetryTimeout = 60 * time.Second
	DefaultRetrySleep   = time.Second
	ParquetFileExt      = "parquet"
	GzipFileExt         = "gz"
	// PatternFieldRegex matches `{field}` and `{field:regex}` placeholders in endpoint patterns;
	// the regex may hold one level of braces, as in `{unit:\d{3}}`
	PatternFieldRegex = `\{([A-Za-z_][A-Za-z0-9_]*)(?::((?:[^{}]|\{[^{}]*\})+))?\}`
	// OverlapThreshold is the minimum shared-label fraction for the combiner to align results
	OverlapThreshold = 0.75
	// IDField names the outer index level produced by whole-dataset materialization
	IDField = "ID"

	// viper keys
	LogLevel      = "LOG_LEVEL"
	LogFolder     = "LOG_FOLDER"
	DatasetConfig = "DATASET"
	EnvPrefix     = "SOUNDDB"
)

// Reserved query keywords; a state preparer may not declare a parameter with one of these names.
const (
	KeywordItems    = "items"
	KeywordSort     = "sort"
	KeywordLimit    = "n"
	KeywordProgress = "progbar"
)

var ReservedKeywords = []string{KeywordItems, KeywordSort, KeywordLimit, KeywordProgress}

// IdentityFields are concatenated, when present, to form the default deployment identity.
var IdentityFields = []string{"unit", "site", "year"}

type DriverType string

const (
	Local DriverType = "local"
	S3    DriverType = "s3"
)
