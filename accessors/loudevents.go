package accessors

import (
	"context"
	"fmt"

	"github.com/soundscape-lab/sounddb/pkg/accessor"
	"github.com/soundscape-lab/sounddb/pkg/frame"
	"github.com/soundscape-lab/sounddb/pkg/parser"
	"github.com/soundscape-lab/sounddb/types"
)

const hoursPerDay = 24

// loudEventTypes label the three 24-hour blocks of a loud events row.
var loudEventTypes = []string{"above", "all", "percent"}

// LoudEvents reads hourly loud event counts into a panel indexed
// type × date × hour, where type is above, all or percent.
var LoudEvents = accessor.MustNew("loudevents", parseLoudEvents,
	accessor.WithDescription("hourly counts of events louder than natural ambient"),
)

func parseLoudEvents(ctx context.Context, entry *types.Entry, _ any) (any, error) {
	table, err := readTable(ctx, entry, parser.NewTSVParser(""))
	if err != nil {
		return nil, err
	}
	return loudEventsPanel(table)
}

func loudEventsPanel(table *frame.Table) (*frame.Panel, error) {
	rows, cols := table.Shape()
	want := 1 + len(loudEventTypes)*hoursPerDay
	if cols != want {
		return nil, fmt.Errorf("loud events file needs a date column and %d hourly columns, got %d columns", want-1, cols)
	}

	dates := table.ColumnAt(0).Values()
	for i, v := range dates {
		t, ok := toTime(v)
		if !ok {
			return nil, fmt.Errorf("row %d: unparseable date %v", i, v)
		}
		dates[i] = t
	}
	hours := make([]any, hoursPerDay)
	for h := range hours {
		hours[h] = h
	}

	axes := []*frame.Index{
		frame.StringIndex(loudEventTypes...).Rename("type"),
		frame.NewIndex(dates, "date"),
		frame.NewIndex(hours, "hour"),
	}
	values := make([]any, len(loudEventTypes)*rows*hoursPerDay)
	for kind := range loudEventTypes {
		for day := 0; day < rows; day++ {
			for hour := 0; hour < hoursPerDay; hour++ {
				values[(kind*rows+day)*hoursPerDay+hour] = coerceFloat(table.At(day, 1+kind*hoursPerDay+hour))
			}
		}
	}
	return frame.NewPanel(axes, values), nil
}
