package accessors

import (
	"context"
	"fmt"

	"github.com/soundscape-lab/sounddb/pkg/accessor"
	"github.com/soundscape-lab/sounddb/pkg/frame"
	"github.com/soundscape-lab/sounddb/pkg/parser"
	"github.com/soundscape-lab/sounddb/types"
)

// DailyPA reads daily percent-audible summaries, indexed on two levels: date
// and srcid. Dates stay text so partial labels sort and compare simply.
var DailyPA = accessor.MustNew("dailypa", parseDailyPA,
	accessor.WithDescription("daily percent time audible by source"),
)

// dailyPAArtifactDate marks a bogus all-zero row some exports append.
const dailyPAArtifactDate = "nvsplDate"

func parseDailyPA(ctx context.Context, entry *types.Entry, _ any) (any, error) {
	config := parser.CSVConfig{Delimiter: "\t", HasHeader: true, QuoteCharacter: `"`, TextColumns: []int{0, 1}}
	table, err := readTable(ctx, entry, parser.NewCSVParser(config))
	if err != nil {
		return nil, err
	}
	return shapeDailyPA(table)
}

func shapeDailyPA(table *frame.Table) (*frame.Table, error) {
	names := table.ColumnNames()
	if len(names) < 2 {
		return nil, fmt.Errorf("daily PA file needs date and srcid columns, got %v", names)
	}
	table, err := table.SetIndex(names[0], names[1])
	if err != nil {
		return nil, err
	}
	table = table.WithIndex(table.Index().Rename("date", "srcid"))

	if n := table.Len(); n > 0 {
		if last, ok := table.Index().Label(n - 1).(frame.Tuple); ok && last[0] == dailyPAArtifactDate {
			table = table.Head(n - 1)
		}
	}

	table = table.SortIndex()
	for _, column := range table.ColumnNames() {
		table = table.MapColumn(column, coerceNumeric)
	}
	return table, nil
}
