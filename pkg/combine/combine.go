// Package combine merges a mapping of per-key results into the richest
// structure their shapes allow: scalars into a series, series into a table,
// tables into a 3-D panel and 3-D panels into a 4-D one. When shapes do not
// line up well enough the results are concatenated or returned as they are.
package combine

import (
	"fmt"
	"reflect"

	"github.com/soundscape-lab/sounddb/constants"
	"github.com/soundscape-lab/sounddb/pkg/frame"
	"github.com/soundscape-lab/sounddb/utils/logger"
)

type options struct {
	threshold float64
	keyName   string
}

type Option func(*options)

// WithThreshold overrides the overlap ratio required for alignment.
func WithThreshold(threshold float64) Option {
	return func(o *options) {
		o.threshold = threshold
	}
}

// WithKeyName names the axis built from the result keys.
func WithKeyName(name string) Option {
	return func(o *options) {
		o.keyName = name
	}
}

// Combine promotes results into one structure. An empty mapping is returned
// unchanged and a single entry is unwrapped. Mixed types, unsupported shapes
// and anything that fails to align all yield the mapping itself; Combine never
// returns an error.
func Combine(results *Results, opts ...Option) any {
	cfg := options{threshold: constants.OverlapThreshold}
	for _, opt := range opts {
		opt(&cfg)
	}
	if results.Len() == 0 {
		return results
	}
	keys, values := results.Keys(), results.Values()
	if len(values) == 1 {
		return values[0]
	}
	first := reflect.TypeOf(values[0])
	for _, v := range values[1:] {
		if reflect.TypeOf(v) != first {
			logger.Debugf("not combining %d results: mixed types %v and %T", len(values), first, v)
			return results
		}
	}

	out, err := promote(keys, values, cfg)
	if err != nil {
		logger.Debugf("not combining %d results: %s", len(values), err)
		return results
	}
	if out == nil {
		return results
	}
	return out
}

func promote(keys, values []any, cfg options) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("promotion failed: %v", r)
		}
	}()

	keyIndex := frame.NewIndex(keys, cfg.keyName)
	category := Classify(values[0])
	switch category {
	case Scalar:
		return frame.StackScalars(keyIndex, values)
	case Sequence1D:
		return promoteSequences(keys, keyIndex, values, cfg)
	case Table2D:
		return promoteTables(keys, keyIndex, values, cfg)
	case Cube3D:
		return promoteCubes(keyIndex, values, cfg)
	}
	logger.Debugf("not combining results of unsupported type %T", values[0])
	return nil, nil
}

func promoteSequences(keys []any, keyIndex *frame.Index, values []any, cfg options) (any, error) {
	series := make([]*frame.Series, len(values))
	indexes := make([]*frame.Index, len(values))
	for i, v := range values {
		series[i] = asSeries(v)
		indexes[i] = series[i].Index()
	}
	ratio, err := OverlapRatio(indexes...)
	if err != nil {
		return nil, err
	}
	if ratio >= cfg.threshold && allUnique(indexes) {
		logger.Debugf("stacking %d series into a table (overlap %.2f)", len(series), ratio)
		return frame.StackSeries(keyIndex, series)
	}
	logger.Debugf("concatenating %d series (overlap %.2f, unique labels %t)", len(series), ratio, allUnique(indexes))
	seq := make([]any, len(series))
	for i, s := range series {
		seq[i] = s
	}
	return frame.ConcatKeyed(keys, seq, cfg.keyName)
}

func promoteTables(keys []any, keyIndex *frame.Index, values []any, cfg options) (any, error) {
	tables := make([]*frame.Table, len(values))
	rows := make([]*frame.Index, len(values))
	cols := make([]*frame.Index, len(values))
	for i, v := range values {
		tables[i] = v.(*frame.Table)
		rows[i], cols[i] = tables[i].Index(), tables[i].Columns()
	}
	if !allUnique(cols) {
		logger.Debugf("not combining %d tables: repeated column labels", len(tables))
		return nil, nil
	}
	colRatio, err := OverlapRatio(cols...)
	if err != nil {
		return nil, err
	}
	if colRatio < cfg.threshold {
		logger.Debugf("not combining %d tables: column overlap %.2f", len(tables), colRatio)
		return nil, nil
	}
	rowRatio, err := OverlapRatio(rows...)
	if err == nil && rowRatio >= cfg.threshold && allUnique(rows) {
		logger.Debugf("stacking %d tables into a panel (row overlap %.2f)", len(tables), rowRatio)
		return frame.StackTables(keyIndex, tables)
	}
	kind := ""
	for _, ix := range rows {
		k := ix.Kind()
		if k == "" {
			continue
		}
		if kind == "" {
			kind = k
		} else if k != kind {
			return nil, fmt.Errorf("row index types differ: %s and %s", kind, k)
		}
	}
	logger.Debugf("concatenating %d tables by rows (row overlap %.2f)", len(tables), rowRatio)
	return frame.ConcatKeyed(keys, values, cfg.keyName)
}

func promoteCubes(keyIndex *frame.Index, values []any, cfg options) (any, error) {
	panels := make([]*frame.Panel, len(values))
	for i, v := range values {
		panels[i] = v.(*frame.Panel)
	}
	for axis := 0; axis < 3; axis++ {
		indexes := make([]*frame.Index, len(panels))
		for i, p := range panels {
			indexes[i] = p.Axis(axis)
		}
		if !allUnique(indexes) {
			logger.Debugf("not combining %d panels: repeated labels on axis %d", len(panels), axis)
			return nil, nil
		}
		ratio, err := OverlapRatio(indexes...)
		if err != nil {
			return nil, err
		}
		if ratio < cfg.threshold {
			logger.Debugf("not combining %d panels: axis %d overlap %.2f", len(panels), axis, ratio)
			return nil, nil
		}
	}
	return frame.StackPanels(keyIndex, panels)
}

// allUnique reports whether no index repeats a label. Aligning on a repeated
// label would keep only one of its values.
func allUnique(indexes []*frame.Index) bool {
	for _, ix := range indexes {
		if !ix.Unique() {
			return false
		}
	}
	return true
}
