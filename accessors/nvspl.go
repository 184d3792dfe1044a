package accessors

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/soundscape-lab/sounddb/pkg/accessor"
	"github.com/soundscape-lab/sounddb/pkg/frame"
	"github.com/soundscape-lab/sounddb/pkg/parser"
	"github.com/soundscape-lab/sounddb/types"
	"github.com/soundscape-lab/sounddb/utils/logger"
)

const (
	nvsplTimeColumn = "STime"
	nvsplIndexName  = "date"
	// nvsplTimePosition is where STime sits in a raw NVSPL file
	nvsplTimePosition = 1
)

// nvsplBands are the one-third octave band columns after renaming.
var nvsplBands = []string{
	"12.5", "15.8", "20", "25", "31.5", "40", "50", "63", "80", "100",
	"125", "160", "200", "250", "315", "400", "500", "630", "800", "1000",
	"1250", "1600", "2000", "2500", "3150", "4000", "5000", "6300", "8000",
	"10000", "12500", "16000", "20000",
}

// nvsplNumericColumns are coerced to float so "-Infinity" and blanks behave.
var nvsplNumericColumns = append(append([]string(nil), nvsplBands...),
	"dbA", "dbC", "dbF", "Voltage", "WindSpeed", "WindDir", "TempIns", "TempOut", "Humidity")

var bandColumnPattern = regexp.MustCompile(`^H\d+p?\d*$`)

// bandName turns "H12p5" into "12.5"; other names are unchanged.
func bandName(column string) string {
	if !bandColumnPattern.MatchString(column) {
		return column
	}
	return strings.ReplaceAll(strings.TrimPrefix(column, "H"), "p", ".")
}

// rawBandName is the inverse of bandName for the names in nvsplBands.
func rawBandName(column string) string {
	for _, band := range nvsplBands {
		if band == column {
			return "H" + strings.ReplaceAll(column, ".", "p")
		}
	}
	return column
}

// NVSPLState is prepared once per query and narrows what each file yields.
type NVSPLState struct {
	// Columns to keep by name; STime is always kept
	Columns []string
	// Positions to keep by raw column number; used when Columns is empty
	Positions []int
	// Timestamps, when set, keeps only rows at these instants
	Timestamps mapset.Set[int64]
}

// NVSPL reads hourly sound pressure level files: one row per second, one
// column per frequency band. Rows are indexed by date.
var NVSPL = accessor.MustNew("nvspl", parseNVSPL,
	accessor.WithState(accessor.NewStatePreparer([]string{"columns", "timestamps"}, prepareNVSPL)),
	accessor.WithDescription("per-second sound pressure levels by frequency band"),
)

func parseNVSPL(ctx context.Context, entry *types.Entry, state any) (any, error) {
	st, _ := state.(*NVSPLState)
	table, err := readTable(ctx, entry, parser.NewCSVParser(parser.CSVConfig{HasHeader: true}))
	if err != nil {
		return nil, err
	}
	return shapeNVSPL(table, st)
}

// shapeNVSPL turns a raw NVSPL table into its final form: friendly band
// names, the requested columns, a date index and float levels.
func shapeNVSPL(table *frame.Table, st *NVSPLState) (*frame.Table, error) {
	renamed := map[string]any{}
	for _, column := range table.ColumnNames() {
		if name := bandName(column); name != column {
			renamed[column] = name
		}
	}
	table = table.RenameColumns(renamed)

	if st != nil {
		var keep []any
		switch {
		case len(st.Columns) > 0:
			for _, column := range st.Columns {
				keep = append(keep, bandName(column))
			}
		case len(st.Positions) > 0:
			for _, pos := range st.Positions {
				if pos < 0 || pos >= table.Columns().Len() {
					return nil, fmt.Errorf("column position %d out of range", pos)
				}
				keep = append(keep, table.Columns().Label(pos))
			}
		}
		if keep != nil {
			selected, err := table.Select(keep...)
			if err != nil {
				return nil, err
			}
			table = selected
		}
	}

	times, ok := columnValues(table, nvsplTimeColumn)
	if !ok {
		return nil, fmt.Errorf("NVSPL file has no %s column", nvsplTimeColumn)
	}
	for i, v := range times {
		t, ok := toTime(v)
		if !ok {
			return nil, fmt.Errorf("row %d: unparseable %s %v", i, nvsplTimeColumn, v)
		}
		times[i] = t
	}
	table = table.Drop(nvsplTimeColumn).WithIndex(frame.NewIndex(times, nvsplIndexName))

	if st != nil && st.Timestamps != nil {
		index := table.Index()
		table = table.FilterRows(func(row int) bool {
			t, _ := index.Label(row).(time.Time)
			return st.Timestamps.Contains(t.UnixNano())
		})
	}

	for _, column := range nvsplNumericColumns {
		table = table.MapColumn(column, coerceFloat)
	}
	return table, nil
}

func prepareNVSPL(_ context.Context, _ types.Endpoint, _ types.Filters, kwargs map[string]any) (any, error) {
	state := &NVSPLState{}

	if columns, ok := kwargs["columns"]; ok && columns != nil {
		names, positions, err := nvsplColumns(columns)
		if err != nil {
			return nil, err
		}
		state.Columns, state.Positions = names, positions
	}

	if timestamps, ok := kwargs["timestamps"]; ok && timestamps != nil {
		set, err := instantSet(timestamps)
		if err != nil {
			return nil, err
		}
		state.Timestamps = set
		logger.Debugf("NVSPL query restricted to %d timestamps", set.Cardinality())
	}
	return state, nil
}

// nvsplColumns validates the columns argument: "spl", a list of names or a
// list of positions. The time column is added when missing.
func nvsplColumns(columns any) ([]string, []int, error) {
	withTime := func(names []string) []string {
		for _, name := range names {
			if name == nvsplTimeColumn {
				return names
			}
		}
		return append([]string{nvsplTimeColumn}, names...)
	}
	withTimePosition := func(positions []int) []int {
		for _, pos := range positions {
			if pos == nvsplTimePosition {
				return positions
			}
		}
		return append([]int{nvsplTimePosition}, positions...)
	}

	switch c := columns.(type) {
	case string:
		if c == "spl" {
			return withTime(append(append([]string(nil), nvsplBands...), "dbA", "dbC", "dbF")), nil, nil
		}
		return withTime([]string{c}), nil, nil
	case []string:
		return withTime(append([]string(nil), c...)), nil, nil
	case []int:
		return nil, withTimePosition(append([]int(nil), c...)), nil
	case []any:
		var (
			names     []string
			positions []int
		)
		for _, v := range c {
			switch item := v.(type) {
			case string:
				names = append(names, item)
			case int:
				positions = append(positions, item)
			default:
				return nil, nil, fmt.Errorf("columns must be a list of strings or of integers, got %T", v)
			}
		}
		if len(names) > 0 && len(positions) > 0 {
			return nil, nil, fmt.Errorf("columns must be a list of strings or of integers, not both")
		}
		if len(positions) > 0 {
			return nil, withTimePosition(positions), nil
		}
		return withTime(names), nil, nil
	}
	return nil, nil, fmt.Errorf("columns must be a list of strings or of integers, got %T", columns)
}

func instantSet(timestamps any) (mapset.Set[int64], error) {
	var values []any
	switch ts := timestamps.(type) {
	case string:
		values = []any{ts}
	case []time.Time:
		for _, t := range ts {
			values = append(values, t)
		}
	case []string:
		for _, t := range ts {
			values = append(values, t)
		}
	case []any:
		values = ts
	case *frame.Index:
		values = ts.Labels()
	default:
		return nil, fmt.Errorf("timestamps must be a list of times, got %T", timestamps)
	}

	set := mapset.NewThreadUnsafeSet[int64]()
	for _, v := range values {
		t, ok := toTime(v)
		if !ok {
			return nil, fmt.Errorf("invalid timestamp %v", v)
		}
		set.Add(t.UnixNano())
	}
	return set, nil
}
