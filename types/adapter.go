package types

type DestinationType string

const (
	Parquet DestinationType = "parquet"
	JSONL   DestinationType = "jsonl"
)

// WriterConfig selects a destination and carries its raw settings, decoded
// later into the writer's own Config.
type WriterConfig struct {
	Type         DestinationType `json:"type" validate:"required,oneof=parquet jsonl"`
	WriterConfig any             `json:"writer" validate:"required"`
}

// DatasetConfig is the dataset definition file: a driver type plus the
// driver's own settings.
type DatasetConfig struct {
	Type   string `json:"type" validate:"required,oneof=local s3"`
	Config any    `json:"config" validate:"required"`
}
