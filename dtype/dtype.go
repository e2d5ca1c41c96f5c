// Package dtype holds the engine's closed type system: the nine dtypes every
// column takes at every plan stage, and the ordered schema built from them.
package dtype

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// Dtype is the closed set of column types the engine understands. Every
// column has exactly one Dtype at every plan stage.
type Dtype int

const (
	Invalid Dtype = iota
	Int32
	Int64
	Float32
	Float64
	String
	Boolean
	Date
	Datetime
	Null
)

func (d Dtype) String() string {
	switch d {
	case Int32:
		return "Int32"
	case Int64:
		return "Int64"
	case Float32:
		return "Float32"
	case Float64:
		return "Float64"
	case String:
		return "String"
	case Boolean:
		return "Boolean"
	case Date:
		return "Date"
	case Datetime:
		return "Datetime"
	case Null:
		return "Null"
	default:
		return "Invalid"
	}
}

// IsNumeric reports whether arithmetic/ordering over the dtype is meaningful
// (used by FillNull's mean/min/max strategies and CastColumn).
func (d Dtype) IsNumeric() bool {
	switch d {
	case Int32, Int64, Float32, Float64:
		return true
	default:
		return false
	}
}

// ParseDtype parses a dtype name (as used in `cast_dtype` operation input)
// into a Dtype. Matching is case-sensitive on the canonical names returned
// by String.
func ParseDtype(name string) (Dtype, error) {
	switch name {
	case "Int32":
		return Int32, nil
	case "Int64":
		return Int64, nil
	case "Float32":
		return Float32, nil
	case "Float64":
		return Float64, nil
	case "String":
		return String, nil
	case "Boolean":
		return Boolean, nil
	case "Date":
		return Date, nil
	case "Datetime":
		return Datetime, nil
	case "Null":
		return Null, nil
	default:
		return Invalid, fmt.Errorf("unknown dtype %q", name)
	}
}

// Arrow returns the Arrow DataType backing this dtype's in-memory columns.
func (d Dtype) Arrow() arrow.DataType {
	switch d {
	case Int32:
		return arrow.PrimitiveTypes.Int32
	case Int64:
		return arrow.PrimitiveTypes.Int64
	case Float32:
		return arrow.PrimitiveTypes.Float32
	case Float64:
		return arrow.PrimitiveTypes.Float64
	case String:
		return arrow.BinaryTypes.String
	case Boolean:
		return arrow.FixedWidthTypes.Boolean
	case Date:
		return arrow.FixedWidthTypes.Date32
	case Datetime:
		return arrow.FixedWidthTypes.Timestamp_us
	case Null:
		return arrow.Null
	default:
		return arrow.Null
	}
}

// FromArrow maps an Arrow DataType back to the closed Dtype set. Types with
// no mapping return (Invalid, false) — adapters surface this as
// SchemaMismatch/UnsupportedDtype.
func FromArrow(t arrow.DataType) (Dtype, bool) {
	switch t.ID() {
	case arrow.INT32:
		return Int32, true
	case arrow.INT64:
		return Int64, true
	case arrow.FLOAT32:
		return Float32, true
	case arrow.FLOAT64:
		return Float64, true
	case arrow.STRING, arrow.LARGE_STRING:
		return String, true
	case arrow.BOOL:
		return Boolean, true
	case arrow.DATE32, arrow.DATE64:
		return Date, true
	case arrow.TIMESTAMP:
		return Datetime, true
	case arrow.NULL:
		return Null, true
	default:
		return Invalid, false
	}
}
