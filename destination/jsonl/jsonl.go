// Package jsonl writes results as JSON Lines, one object per row with the
// columns in order. The output reads back through the JSON parser.
package jsonl

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/soundscape-lab/sounddb/constants"
	"github.com/soundscape-lab/sounddb/destination"
	"github.com/soundscape-lab/sounddb/types"
	"github.com/soundscape-lab/sounddb/utils"
	"github.com/soundscape-lab/sounddb/utils/logger"
)

const fileExt = "jsonl"

type Config struct {
	Path string `json:"local_path" validate:"required"`
	// Gzip compresses every file, adding a .gz extension
	Gzip bool `json:"gzip"`
}

func (c *Config) Validate() error {
	return utils.Validate(c)
}

type JSONL struct {
	config *Config
	files  []string
}

func (j *JSONL) GetConfigRef() destination.Config {
	j.config = &Config{}
	return j.config
}

func (j *JSONL) Spec() any {
	return Config{}
}

func (j *JSONL) Type() string {
	return string(types.JSONL)
}

// Files lists the paths written so far.
func (j *JSONL) Files() []string {
	return append([]string(nil), j.files...)
}

func (j *JSONL) Check(_ context.Context) error {
	if err := os.MkdirAll(j.config.Path, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create path: %s", err)
	}
	tempFile, err := os.CreateTemp(j.config.Path, "temporary-*.txt")
	if err != nil {
		return fmt.Errorf("directory is not writable: %s", err)
	}
	tempFile.Close()
	os.Remove(tempFile.Name())
	logger.Infof("jsonl writer configuration found, writing at location[%s]", j.config.Path)
	return nil
}

func (j *JSONL) Write(ctx context.Context, result any, opts ...destination.Option) error {
	records, err := destination.Flatten(result)
	if err != nil {
		return err
	}
	options := destination.NewOptions(opts...)

	directoryPath := filepath.Join(j.config.Path, options.Partition)
	if err := os.MkdirAll(directoryPath, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directories[%s]: %s", directoryPath, err)
	}
	ext := fileExt
	if j.config.Gzip {
		ext += "." + constants.GzipFileExt
	}
	filePath := filepath.Join(directoryPath, options.FileName(ext))

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file[%s]: %s", filePath, err)
	}
	defer file.Close()

	var out io.Writer = file
	var zw *gzip.Writer
	if j.config.Gzip {
		zw = gzip.NewWriter(file)
		out = zw
	}
	buffered := bufio.NewWriter(out)
	if err := encode(ctx, buffered, records); err != nil {
		return fmt.Errorf("failed to write file[%s]: %w", filePath, err)
	}
	if err := buffered.Flush(); err != nil {
		return fmt.Errorf("failed to flush file[%s]: %s", filePath, err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return fmt.Errorf("failed to close gzip stream: %s", err)
		}
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %s", err)
	}

	j.files = append(j.files, filePath)
	logger.Infof("Finished writing file [%s] with %d rows.", filePath, records.Len())
	return nil
}

func (j *JSONL) Close(_ context.Context) error {
	return nil
}

func encode(ctx context.Context, w io.Writer, records *destination.Records) error {
	encoder := json.NewEncoder(w)
	for i, row := range records.Rows {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		object := orderedmap.New[string, any]()
		for c, column := range records.Columns {
			object.Set(column, jsonValue(row[c]))
		}
		if err := encoder.Encode(object); err != nil {
			return err
		}
	}
	return nil
}

// jsonValue makes a cell encodable: JSON has no NaN or infinities, and
// durations are written in their readable form.
func jsonValue(v any) any {
	switch x := v.(type) {
	case float64:
		switch {
		case math.IsNaN(x):
			return nil
		case math.IsInf(x, 1):
			return "Infinity"
		case math.IsInf(x, -1):
			return "-Infinity"
		}
	case time.Duration:
		return x.String()
	}
	return v
}

func init() {
	destination.RegisteredWriters[types.JSONL] = func() destination.Writer {
		return new(JSONL)
	}
}
