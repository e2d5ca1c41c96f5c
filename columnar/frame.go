// Package columnar wraps a batch-columnar, typed-array representation of a
// dataset and provides the single execution point — Apply — for every
// operation tag against it, independent of which source adapter produced
// the underlying Arrow record batches.
package columnar

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/dfrcore/dfr/dtype"
)

// Frame is a fully materialized, in-memory sequence of Arrow record
// batches sharing one schema. Callers must call Release when done.
type Frame struct {
	schema  dtype.Schema
	batches []arrow.RecordBatch
	offsets []int64 // cumulative row count before batch i
	numRows int64
}

// Schema returns the frame's column schema.
func (f *Frame) Schema() dtype.Schema { return f.schema }

// NumRows returns the total row count across all batches.
func (f *Frame) NumRows() int64 { return f.numRows }

// Batches exposes the underlying record batches for callers (export,
// stats) that need to walk them directly.
func (f *Frame) Batches() []arrow.RecordBatch { return f.batches }

// Release drops the frame's reference to every batch it holds.
func (f *Frame) Release() {
	for _, b := range f.batches {
		b.Release()
	}
	f.batches = nil
}

// Row returns the zero-based absolute row index as a slice of column
// values in schema order, boxing each cell as the dtype's natural Go
// representation (int64, float64, string, bool, time.Time for Date and
// Datetime, or nil for null).
func (f *Frame) Row(index int64) ([]any, error) {
	if index < 0 || index >= f.numRows {
		return nil, fmt.Errorf("row index %d out of range [0, %d)", index, f.numRows)
	}
	batchIdx, within := f.locate(index)
	batch := f.batches[batchIdx]

	out := make([]any, len(f.schema))
	for c := range f.schema {
		out[c] = cellValue(batch.Column(c), within)
	}
	return out, nil
}

// IterRows calls fn for every row in [start, end), stopping early if fn
// returns false or ctx is cancelled.
func (f *Frame) IterRows(ctx context.Context, start, end int64, fn func(index int64, row []any) bool) error {
	if end > f.numRows {
		end = f.numRows
	}
	for i := start; i < end; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := f.Row(i)
		if err != nil {
			return err
		}
		if !fn(i, row) {
			return nil
		}
	}
	return nil
}

// locate finds which batch holds absolute row index and the within-batch
// offset, via linear scan over the (typically small) batch count.
func (f *Frame) locate(index int64) (batchIdx int, within int64) {
	for i, off := range f.offsets {
		var next int64
		if i+1 < len(f.offsets) {
			next = f.offsets[i+1]
		} else {
			next = f.numRows
		}
		if index < next {
			return i, index - off
		}
	}
	return len(f.batches) - 1, index - f.offsets[len(f.offsets)-1]
}

// ColumnF64 returns column name's values as float64, with ok[i] false for
// nulls. Fails if the column isn't numeric.
func (f *Frame) ColumnF64(name string) ([]float64, []bool, error) {
	idx := f.schema.IndexOf(name)
	if idx < 0 {
		return nil, nil, fmt.Errorf("column %q not found", name)
	}
	if !f.schema[idx].Type.IsNumeric() {
		return nil, nil, fmt.Errorf("column %q is not numeric", name)
	}

	values := make([]float64, 0, f.numRows)
	valid := make([]bool, 0, f.numRows)
	for _, b := range f.batches {
		col := b.Column(idx)
		for i := 0; i < col.Len(); i++ {
			if col.IsNull(i) {
				values = append(values, 0)
				valid = append(valid, false)
				continue
			}
			values = append(values, numericCellF64(col, i))
			valid = append(valid, true)
		}
	}
	return values, valid, nil
}

// ColumnI64 returns column name's values as int64, with ok[i] false for
// nulls. Fails if the column isn't Int32 or Int64.
func (f *Frame) ColumnI64(name string) ([]int64, []bool, error) {
	idx := f.schema.IndexOf(name)
	if idx < 0 {
		return nil, nil, fmt.Errorf("column %q not found", name)
	}
	switch f.schema[idx].Type {
	case dtype.Int32, dtype.Int64:
	default:
		return nil, nil, fmt.Errorf("column %q is not an integer column", name)
	}

	values := make([]int64, 0, f.numRows)
	valid := make([]bool, 0, f.numRows)
	for _, b := range f.batches {
		col := b.Column(idx)
		for i := 0; i < col.Len(); i++ {
			if col.IsNull(i) {
				values = append(values, 0)
				valid = append(valid, false)
				continue
			}
			values = append(values, intCellI64(col, i))
			valid = append(valid, true)
		}
	}
	return values, valid, nil
}

// ColumnDatetimeUnixSeconds returns column name's Datetime values as Unix
// seconds, with ok[i] false for nulls.
func (f *Frame) ColumnDatetimeUnixSeconds(name string) ([]int64, []bool, error) {
	idx := f.schema.IndexOf(name)
	if idx < 0 {
		return nil, nil, fmt.Errorf("column %q not found", name)
	}
	if f.schema[idx].Type != dtype.Datetime && f.schema[idx].Type != dtype.Date {
		return nil, nil, fmt.Errorf("column %q is not a datetime column", name)
	}

	values := make([]int64, 0, f.numRows)
	valid := make([]bool, 0, f.numRows)
	for _, b := range f.batches {
		col := b.Column(idx)
		for i := 0; i < col.Len(); i++ {
			if col.IsNull(i) {
				values = append(values, 0)
				valid = append(valid, false)
				continue
			}
			values = append(values, datetimeCellUnixSeconds(col, i, f.schema[idx].Type))
			valid = append(valid, true)
		}
	}
	return values, valid, nil
}

// NumericBounds returns column name's (min, max, nullCount). Fails if the
// column isn't numeric or has zero non-null values.
func (f *Frame) NumericBounds(name string) (min, max float64, nullCount int64, err error) {
	values, valid, err := f.ColumnF64(name)
	if err != nil {
		return 0, 0, 0, err
	}
	seen := false
	for i, v := range values {
		if !valid[i] {
			nullCount++
			continue
		}
		if !seen || v < min {
			min = v
		}
		if !seen || v > max {
			max = v
		}
		seen = true
	}
	if !seen {
		return 0, 0, nullCount, fmt.Errorf("column %q has no non-null values", name)
	}
	return min, max, nullCount, nil
}

func numericCellF64(col arrow.Array, i int) float64 {
	switch c := col.(type) {
	case *array.Int32:
		return float64(c.Value(i))
	case *array.Int64:
		return float64(c.Value(i))
	case *array.Float32:
		return float64(c.Value(i))
	case *array.Float64:
		return c.Value(i)
	default:
		return 0
	}
}

func intCellI64(col arrow.Array, i int) int64 {
	switch c := col.(type) {
	case *array.Int32:
		return int64(c.Value(i))
	case *array.Int64:
		return c.Value(i)
	default:
		return 0
	}
}

func datetimeCellUnixSeconds(col arrow.Array, i int, dt dtype.Dtype) int64 {
	switch c := col.(type) {
	case *array.Date32:
		return int64(c.Value(i)) * 86400
	case *array.Timestamp:
		ts := c.Value(i)
		unit := arrow.Microsecond
		if tt, ok := c.DataType().(*arrow.TimestampType); ok {
			unit = tt.Unit
		}
		return ts.ToTime(unit).Unix()
	default:
		return 0
	}
}

func cellValue(col arrow.Array, i int64) any {
	idx := int(i)
	if col.IsNull(idx) {
		return nil
	}
	switch c := col.(type) {
	case *array.Int32:
		return int64(c.Value(idx))
	case *array.Int64:
		return c.Value(idx)
	case *array.Float32:
		return float64(c.Value(idx))
	case *array.Float64:
		return c.Value(idx)
	case *array.String:
		return c.Value(idx)
	case *array.Boolean:
		return c.Value(idx)
	case *array.Date32:
		return c.Value(idx).ToTime()
	case *array.Timestamp:
		unit := arrow.Microsecond
		if tt, ok := c.DataType().(*arrow.TimestampType); ok {
			unit = tt.Unit
		}
		return c.Value(idx).ToTime(unit)
	default:
		return nil
	}
}
