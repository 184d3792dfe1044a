package types

import (
	"time"

	"github.com/parquet-go/parquet-go"
)

// DataType is the storage type of a table column.
type DataType string

const (
	Null      DataType = "null"
	Int64     DataType = "integer"
	Float64   DataType = "number"
	String    DataType = "string"
	Bool      DataType = "boolean"
	Duration  DataType = "duration"
	Timestamp DataType = "timestamp"
	Unknown   DataType = "unknown"
)

// Tree Representation of TypeWeights
//
//	            3 (String)
//	           /          \
//	2 (Float64)            \ 4 (Timestamp)
//	         /              \
//	1 (Int64)                \ 4 (Duration)
//	       /
//	0 (Bool)
//
// A column holding values of two types is widened to the heavier one on the
// same branch, and to String across branches.
var TypeWeights = map[DataType]int{
	Bool:      0,
	Int64:     1,
	Float64:   2,
	String:    3,
	Timestamp: 4,
	Duration:  4,
}

// TypeOf reports the DataType of a single cell.
func TypeOf(v any) DataType {
	switch v.(type) {
	case nil:
		return Null
	case bool:
		return Bool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return Int64
	case float32, float64:
		return Float64
	case string:
		return String
	case time.Time:
		return Timestamp
	case time.Duration:
		return Duration
	}
	return Unknown
}

// Widen returns the narrowest type able to hold values of both a and b.
func Widen(a, b DataType) DataType {
	switch {
	case a == b:
		return a
	case a == Null:
		return b
	case b == Null:
		return a
	}
	numeric := func(d DataType) bool { return d == Bool || d == Int64 || d == Float64 }
	if numeric(a) && numeric(b) {
		if TypeWeights[a] > TypeWeights[b] {
			return a
		}
		return b
	}
	return String
}

func (d DataType) ToNewParquet() parquet.Node {
	var n parquet.Node

	switch d {
	case Int64, Duration:
		n = parquet.Leaf(parquet.Int64Type)
	case Float64:
		n = parquet.Leaf(parquet.DoubleType)
	case Bool:
		n = parquet.Leaf(parquet.BooleanType)
	case Timestamp:
		n = parquet.Timestamp(parquet.Microsecond)
	default:
		n = parquet.String()
	}

	n = parquet.Optional(n) // Ensure the field is nullable
	return n
}
