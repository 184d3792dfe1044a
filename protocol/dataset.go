package protocol

import (
	"context"
	"fmt"
	"strings"

	"github.com/soundscape-lab/sounddb/constants"
	"github.com/soundscape-lab/sounddb/destination"
	"github.com/soundscape-lab/sounddb/drivers/abstract"
	localdriver "github.com/soundscape-lab/sounddb/drivers/local"
	s3driver "github.com/soundscape-lab/sounddb/drivers/s3"
	"github.com/soundscape-lab/sounddb/pkg/accessor"
	"github.com/soundscape-lab/sounddb/types"
	"github.com/soundscape-lab/sounddb/utils"
	"github.com/soundscape-lab/sounddb/utils/logger"

	// writers register themselves
	_ "github.com/soundscape-lab/sounddb/destination/jsonl"
	_ "github.com/soundscape-lab/sounddb/destination/parquet"
)

// loadDataset reads the --dataset file and builds the dataset with the
// driver it names.
func loadDataset(ctx context.Context) (*abstract.Dataset, error) {
	if datasetPath == "" {
		return nil, fmt.Errorf("--dataset not passed")
	}
	config := &types.DatasetConfig{}
	if err := utils.UnmarshalFile(datasetPath, config); err != nil {
		return nil, err
	}
	if err := utils.Validate(config); err != nil {
		return nil, err
	}

	switch constants.DriverType(config.Type) {
	case constants.Local:
		driverConfig := &localdriver.Config{}
		if err := utils.Unmarshal(config.Config, driverConfig); err != nil {
			return nil, err
		}
		return localdriver.NewDataset(driverConfig)
	case constants.S3:
		driverConfig := &s3driver.Config{}
		if err := utils.Unmarshal(config.Config, driverConfig); err != nil {
			return nil, err
		}
		return s3driver.NewDataset(ctx, driverConfig)
	}
	return nil, fmt.Errorf("invalid dataset type has been passed [%s]", config.Type)
}

// loadWriter reads the --destination file and checks the writer it names.
func loadWriter(ctx context.Context) (destination.Writer, error) {
	config := &types.WriterConfig{}
	if err := utils.UnmarshalFile(destinationPath, config); err != nil {
		return nil, err
	}
	return destination.NewWriter(ctx, config)
}

// buildQuery resolves the accessor and applies the query flags.
func buildQuery(ctx context.Context, name string) (*accessor.Accessor, *accessor.Query, error) {
	a, err := registry.Get(name)
	if err != nil {
		return nil, nil, err
	}
	dataset, err := loadDataset(ctx)
	if err != nil {
		return nil, nil, err
	}

	var opts []accessor.QueryOption
	for _, arg := range filterArgs {
		field, value, err := splitAssignment(arg)
		if err != nil {
			return nil, nil, err
		}
		values := utils.SplitAndTrim(value)
		if len(values) == 1 {
			opts = append(opts, accessor.WithFilter(field, values[0]))
			continue
		}
		anyOf := make([]any, len(values))
		for i, v := range values {
			anyOf[i] = v
		}
		opts = append(opts, accessor.WithFilter(field, types.AnyOf(anyOf...)))
	}
	for _, arg := range paramArgs {
		name, value, err := splitAssignment(arg)
		if err != nil {
			return nil, nil, err
		}
		if values := utils.SplitAndTrim(value); len(values) == 1 {
			opts = append(opts, accessor.WithFilter(name, values[0]))
		} else {
			opts = append(opts, accessor.WithFilter(name, values))
		}
	}
	if len(sortFields) > 0 {
		opts = append(opts, accessor.WithSort(sortFields...))
	}
	if limit > 0 {
		opts = append(opts, accessor.WithLimit(limit))
	}
	opts = append(opts, accessor.WithProgress(func(visited int, entry *types.Entry) {
		logger.Debugf("visited %d: %s", visited, entry.Path)
	}))

	q, err := a.Query(dataset, opts...)
	if err != nil {
		return nil, nil, err
	}
	return a, q, nil
}

func splitAssignment(arg string) (string, string, error) {
	name, value, ok := strings.Cut(arg, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", fmt.Errorf("expected name=value, got %q", arg)
	}
	return name, value, nil
}
