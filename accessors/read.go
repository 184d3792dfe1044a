// Package accessors defines the parsers for each kind of acoustic monitoring
// file (NVSPL, SRCID, loud events, audibility, daily percent audible and
// metrics reports) and the registry that exposes them by endpoint name.
package accessors

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/soundscape-lab/sounddb/pkg/frame"
	"github.com/soundscape-lab/sounddb/pkg/parser"
	"github.com/soundscape-lab/sounddb/types"
	"github.com/soundscape-lab/sounddb/utils/typeutils"
)

// dateLayouts are the date and datetime spellings found in acoustic files.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 3:04:05 PM",
	"1/2/2006",
}

func readTable(ctx context.Context, entry *types.Entry, p parser.Parser) (*frame.Table, error) {
	reader, err := entry.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	table, err := p.ReadTable(ctx, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", entry, err)
	}
	return table, nil
}

func readAll(ctx context.Context, entry *types.Entry) ([]byte, error) {
	reader, err := entry.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", entry, err)
	}
	return data, nil
}

// toTime accepts a time or a date string in one of dateLayouts.
func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		return typeutils.ParseTime(t, dateLayouts...)
	}
	return time.Time{}, false
}

// coerceNumeric keeps numbers, parses numeric text and turns anything else
// into NaN.
func coerceNumeric(v any) any {
	switch n := v.(type) {
	case nil:
		return nil
	case string:
		parsed := typeutils.ParseNumeric(n)
		if parsed == nil || typeutils.IsNumeric(parsed) {
			return parsed
		}
		return math.NaN()
	}
	if typeutils.IsNumeric(v) {
		return v
	}
	return math.NaN()
}

// coerceFloat is coerceNumeric widened to float64.
func coerceFloat(v any) any {
	n := coerceNumeric(v)
	if n == nil {
		return nil
	}
	f, _ := typeutils.ToFloat64(n)
	return f
}

// secondsToDuration converts a number of seconds into a time.Duration.
func secondsToDuration(v any) any {
	f, ok := typeutils.ToFloat64(coerceNumeric(v))
	if !ok || math.IsNaN(f) {
		return nil
	}
	return time.Duration(f * float64(time.Second))
}

// parseClock reads a time of day written HH:MM[:SS[.fff]].
func parseClock(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	var total time.Duration
	units := []time.Duration{time.Hour, time.Minute, time.Second}
	for i, part := range parts {
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid time of day %q", s)
		}
		total += time.Duration(f * float64(units[i]))
	}
	return total, nil
}

func columnValues(table *frame.Table, name string) ([]any, bool) {
	series, ok := table.Column(name)
	if !ok {
		return nil, false
	}
	return series.Values(), true
}
