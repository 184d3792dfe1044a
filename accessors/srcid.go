package accessors

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"time"

	"github.com/soundscape-lab/sounddb/pkg/accessor"
	"github.com/soundscape-lab/sounddb/pkg/frame"
	"github.com/soundscape-lab/sounddb/pkg/parser"
	"github.com/soundscape-lab/sounddb/types"
	"github.com/soundscape-lab/sounddb/utils"
	"github.com/soundscape-lab/sounddb/utils/typeutils"
)

// SRCID reads noise-source identification files: one row per tagged event,
// indexed by the event's start time. len becomes a time.Duration.
var SRCID = accessor.MustNew("srcid", parseSRCID,
	accessor.WithDescription("tagged noise events with their source ids"),
)

// srcidVersionPrefix starts the version line newer SRCID files carry.
var srcidVersionPrefix = []byte("%%")

func parseSRCID(ctx context.Context, entry *types.Entry, _ any) (any, error) {
	data, err := readAll(ctx, entry)
	if err != nil {
		return nil, err
	}
	if bytes.HasPrefix(data, srcidVersionPrefix) {
		if nl := bytes.IndexByte(data, '\n'); nl >= 0 {
			data = data[nl+1:]
		} else {
			data = nil
		}
	}

	table, err := parser.NewTSVParser("").ReadTable(ctx, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", entry, err)
	}
	return shapeSRCID(table)
}

func shapeSRCID(table *frame.Table) (*frame.Table, error) {
	// some old files name the source id column sID
	table = table.RenameColumns(map[string]any{"sID": "srcID"})

	dates, okDate := columnValues(table, "nvsplDate")
	hours, okHour := columnValues(table, "hr")
	secs, okSecs := columnValues(table, "secs")
	if !okDate || !okHour || !okSecs {
		return nil, fmt.Errorf("SRCID file needs nvsplDate, hr and secs columns, got %v", table.ColumnNames())
	}

	starts := make([]any, table.Len())
	for i := range starts {
		day, ok := toTime(dates[i])
		if !ok {
			return nil, fmt.Errorf("row %d: unparseable nvsplDate %v", i, dates[i])
		}
		hr, _ := typeutils.ToFloat64(coerceNumeric(hours[i]))
		sec, _ := typeutils.ToFloat64(coerceNumeric(secs[i]))
		starts[i] = day.Add(time.Duration(hr*float64(time.Hour)) + time.Duration(sec*float64(time.Second)))
	}
	table = table.Drop("nvsplDate", "hr", "secs").WithIndex(frame.NewIndex(starts, "date"))

	table = fillNoiseFreeDays(table)
	table = table.MapColumn("len", secondsToDuration)
	table = table.MapColumn("tagDate", func(v any) any {
		if t, ok := toTime(v); ok {
			return t
		}
		return v
	})
	return table, nil
}

// fillNoiseFreeDays repairs days logged without events. Those rows skip the
// MaxSPLt and SELt cells, so userName and tagDate land in them; they are moved
// back and every other cell of the row becomes NaN.
func fillNoiseFreeDays(table *frame.Table) *frame.Table {
	maxSPLt, ok := columnValues(table, "MaxSPLt")
	if !ok {
		return table
	}
	selT, _ := columnValues(table, "SELt")
	userName, _ := columnValues(table, "userName")
	tagDate, _ := columnValues(table, "tagDate")

	var noiseFree []int
	convertedMax := make([]any, len(maxSPLt))
	convertedSEL := make([]any, len(maxSPLt))
	for i := range maxSPLt {
		convertedMax[i] = coerceFloat(maxSPLt[i])
		if selT != nil {
			convertedSEL[i] = coerceFloat(selT[i])
		}
		maxMissing := typeutils.IsMissing(convertedMax[i])
		selMissing := selT == nil || typeutils.IsMissing(convertedSEL[i])
		if maxMissing && selMissing && maxSPLt[i] != nil {
			noiseFree = append(noiseFree, i)
		}
	}
	if len(noiseFree) == 0 {
		table = table.WithColumn("MaxSPLt", convertedMax)
		if selT != nil {
			table = table.WithColumn("SELt", convertedSEL)
		}
		return table
	}

	if userName == nil {
		userName = make([]any, table.Len())
	}
	if tagDate == nil {
		tagDate = make([]any, table.Len())
	}
	for _, row := range noiseFree {
		userName[row] = maxSPLt[row]
		if selT != nil {
			tagDate[row] = selT[row]
		}
	}

	kept := []string{"userName", "tagDate"}
	for _, column := range table.ColumnNames() {
		if utils.ExistInArray(kept, column) {
			continue
		}
		values, _ := columnValues(table, column)
		switch column {
		case "MaxSPLt":
			values = convertedMax
		case "SELt":
			values = convertedSEL
		}
		for _, row := range noiseFree {
			values[row] = math.NaN()
		}
		table = table.WithColumn(column, values)
	}
	return table.WithColumn("userName", userName).WithColumn("tagDate", tagDate)
}
