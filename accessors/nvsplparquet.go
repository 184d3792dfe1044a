package accessors

import (
	"context"

	"github.com/soundscape-lab/sounddb/pkg/accessor"
	"github.com/soundscape-lab/sounddb/pkg/parser"
	"github.com/soundscape-lab/sounddb/types"
)

// NVSPLParquet reads NVSPL rows converted to Parquet. It takes the same
// columns and timestamps arguments as NVSPL; named columns are pushed down
// to the Parquet reader so other column chunks are never decoded.
var NVSPLParquet = accessor.MustNew("nvsplparquet", parseNVSPLParquet,
	accessor.WithState(accessor.NewStatePreparer([]string{"columns", "timestamps"}, prepareNVSPL)),
	accessor.WithDescription("per-second sound pressure levels stored as Parquet"),
)

func parseNVSPLParquet(ctx context.Context, entry *types.Entry, state any) (any, error) {
	st, _ := state.(*NVSPLState)
	config := parser.ParquetConfig{}
	if st != nil && len(st.Columns) > 0 {
		// the file may use either spelling of band columns
		for _, column := range st.Columns {
			config.Columns = append(config.Columns, column, rawBandName(column))
		}
	}
	table, err := readTable(ctx, entry, parser.NewParquetParser(config))
	if err != nil {
		return nil, err
	}
	return shapeNVSPL(table, st)
}
