package columnar

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/ncruces/go-strftime"

	"github.com/dfrcore/dfr/dtype"
	"github.com/dfrcore/dfr/op"
)

// --- FillNull ---

func applyFillNull(ctx context.Context, reader array.RecordReader, schema dtype.Schema, f op.FillNull) (array.RecordReader, *OpStats, error) {
	idx := schema.IndexOf(f.Column)
	if idx < 0 {
		return nil, nil, fmt.Errorf("fill_null: column %q not found", f.Column)
	}

	frame, err := CollectStreaming(ctx, reader, schema, 0)
	if err != nil {
		return nil, nil, err
	}
	defer frame.Release()

	var fillValue any
	switch f.Strategy {
	case op.FillMean:
		sum, count := 0.0, int64(0)
		for _, b := range frame.batches {
			col := b.Column(idx)
			for i := 0; i < col.Len(); i++ {
				if !col.IsNull(i) {
					sum += numericCellF64(col, i)
					count++
				}
			}
		}
		if count == 0 {
			return nil, nil, fmt.Errorf("fill_null: column %q has no non-null values to average", f.Column)
		}
		fillValue = sum / float64(count)
	case op.FillMin, op.FillMax:
		var best float64
		seen := false
		for _, b := range frame.batches {
			col := b.Column(idx)
			for i := 0; i < col.Len(); i++ {
				if col.IsNull(i) {
					continue
				}
				v := numericCellF64(col, i)
				if !seen || (f.Strategy == op.FillMin && v < best) || (f.Strategy == op.FillMax && v > best) {
					best = v
					seen = true
				}
			}
		}
		if !seen {
			return nil, nil, fmt.Errorf("fill_null: column %q has no non-null values", f.Column)
		}
		fillValue = best
	case op.FillValue:
		fillValue = f.Value
	}

	outSchema := frame.schema.ArrowSchema()
	builder := array.NewRecordBuilder(memory.DefaultAllocator, outSchema)
	defer builder.Release()

	var lastNonNull any
	stats := &OpStats{}

	for c := range frame.schema {
		b := builder.Field(c)
		if c != idx {
			for _, batch := range frame.batches {
				col := batch.Column(c)
				for i := 0; i < col.Len(); i++ {
					appendFromColumn(b, col, i)
				}
			}
			continue
		}

		switch f.Strategy {
		case op.FillForward:
			for _, batch := range frame.batches {
				col := batch.Column(c)
				for i := 0; i < col.Len(); i++ {
					if col.IsNull(i) {
						if lastNonNull != nil {
							appendBoxed(b, lastNonNull, schema[idx].Type)
						} else {
							b.AppendNull()
						}
						continue
					}
					lastNonNull = cellValue(col, int64(i))
					appendFromColumn(b, col, i)
				}
			}
		case op.FillBackward:
			appendBackwardFilled(b, frame, c, schema[idx].Type)
		default:
			for _, batch := range frame.batches {
				col := batch.Column(c)
				for i := 0; i < col.Len(); i++ {
					if col.IsNull(i) {
						appendBoxed(b, fillValue, schema[idx].Type)
						continue
					}
					appendFromColumn(b, col, i)
				}
			}
		}
	}

	rec := builder.NewRecordBatch()
	defer rec.Release()
	return newSliceReader(outSchema, []arrow.RecordBatch{rec}), stats, nil
}

// appendBackwardFilled appends column c's values with nulls replaced by
// the next non-null value found later in the column (requires a backward
// scan since the fill value isn't known until a later row is seen).
func appendBackwardFilled(b array.Builder, frame *Frame, c int, dt dtype.Dtype) {
	n := frame.numRows
	values := make([]any, n)
	nullAt := make([]bool, n)
	for i := int64(0); i < n; i++ {
		batchIdx, within := frame.locate(i)
		col := frame.batches[batchIdx].Column(c)
		if col.IsNull(int(within)) {
			nullAt[i] = true
		} else {
			values[i] = cellValue(col, within)
		}
	}
	var next any
	for i := n - 1; i >= 0; i-- {
		if nullAt[i] {
			values[i] = next
		} else {
			next = values[i]
		}
	}
	for i := int64(0); i < n; i++ {
		if values[i] == nil {
			b.AppendNull()
		} else {
			appendBoxed(b, values[i], dt)
		}
	}
}

func appendBoxed(b array.Builder, v any, dt dtype.Dtype) {
	switch dt {
	case dtype.Int32:
		switch x := v.(type) {
		case int64:
			b.(*array.Int32Builder).Append(int32(x))
		case float64:
			b.(*array.Int32Builder).Append(int32(x))
		case string:
			n, _ := strconv.ParseInt(x, 10, 32)
			b.(*array.Int32Builder).Append(int32(n))
		}
	case dtype.Int64:
		switch x := v.(type) {
		case int64:
			b.(*array.Int64Builder).Append(x)
		case float64:
			b.(*array.Int64Builder).Append(int64(x))
		case string:
			n, _ := strconv.ParseInt(x, 10, 64)
			b.(*array.Int64Builder).Append(n)
		}
	case dtype.Float32:
		switch x := v.(type) {
		case float64:
			b.(*array.Float32Builder).Append(float32(x))
		case string:
			n, _ := strconv.ParseFloat(x, 32)
			b.(*array.Float32Builder).Append(float32(n))
		}
	case dtype.Float64:
		switch x := v.(type) {
		case float64:
			b.(*array.Float64Builder).Append(x)
		case string:
			n, _ := strconv.ParseFloat(x, 64)
			b.(*array.Float64Builder).Append(n)
		}
	case dtype.Boolean:
		switch x := v.(type) {
		case bool:
			b.(*array.BooleanBuilder).Append(x)
		case string:
			bb, _ := strconv.ParseBool(x)
			b.(*array.BooleanBuilder).Append(bb)
		}
	case dtype.Date:
		switch x := v.(type) {
		case time.Time:
			b.(*array.Date32Builder).Append(arrow.Date32FromTime(x))
		case string:
			t, err := parseFlexibleTime(x)
			if err == nil {
				b.(*array.Date32Builder).Append(arrow.Date32FromTime(t))
			} else {
				b.AppendNull()
			}
		}
	case dtype.Datetime:
		switch x := v.(type) {
		case time.Time:
			ts, _ := arrow.TimestampFromTime(x, arrow.Microsecond)
			b.(*array.TimestampBuilder).Append(ts)
		case string:
			t, err := parseFlexibleTime(x)
			if err == nil {
				ts, _ := arrow.TimestampFromTime(t, arrow.Microsecond)
				b.(*array.TimestampBuilder).Append(ts)
			} else {
				b.AppendNull()
			}
		}
	default:
		b.(*array.StringBuilder).Append(fmt.Sprintf("%v", v))
	}
}

// --- CastColumn ---

func applyCastColumn(ctx context.Context, reader array.RecordReader, schema dtype.Schema, cst op.CastColumn) (array.RecordReader, dtype.Schema, *OpStats, error) {
	idx := schema.IndexOf(cst.Column)
	if idx < 0 {
		return nil, nil, nil, fmt.Errorf("cast_column: column %q not found", cst.Column)
	}
	frame, err := CollectStreaming(ctx, reader, schema, 0)
	if err != nil {
		return nil, nil, nil, err
	}
	defer frame.Release()

	newSchema := schema.WithCast(cst.Column, cst.Target)
	outSchema := newSchema.ArrowSchema()
	builder := array.NewRecordBuilder(memory.DefaultAllocator, outSchema)
	defer builder.Release()

	stats := &OpStats{}
	for c := range frame.schema {
		b := builder.Field(c)
		for _, batch := range frame.batches {
			col := batch.Column(c)
			for i := 0; i < col.Len(); i++ {
				if c != idx {
					appendFromColumn(b, col, i)
					continue
				}
				if col.IsNull(i) {
					b.AppendNull()
					continue
				}
				if !castCell(b, col, i, cst.Target) {
					b.AppendNull()
					stats.ErrorCount++
				}
			}
		}
	}

	rec := builder.NewRecordBatch()
	defer rec.Release()
	return newSliceReader(outSchema, []arrow.RecordBatch{rec}), newSchema, stats, nil
}

// castCell converts col[i] to target and appends it to b, returning false
// (and appending nothing) if coercion fails; the caller appends null and
// increments the error counter in that case.
func castCell(b array.Builder, col arrow.Array, i int, target dtype.Dtype) bool {
	text := cellAsString(col, i)
	switch target {
	case dtype.Int32:
		n, err := strconv.ParseInt(text, 10, 32)
		if err != nil {
			return false
		}
		b.(*array.Int32Builder).Append(int32(n))
	case dtype.Int64:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return false
		}
		b.(*array.Int64Builder).Append(n)
	case dtype.Float32:
		n, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return false
		}
		b.(*array.Float32Builder).Append(float32(n))
	case dtype.Float64:
		n, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return false
		}
		b.(*array.Float64Builder).Append(n)
	case dtype.Boolean:
		bb, err := strconv.ParseBool(text)
		if err != nil {
			return false
		}
		b.(*array.BooleanBuilder).Append(bb)
	case dtype.String:
		b.(*array.StringBuilder).Append(text)
	case dtype.Date:
		t, err := parseFlexibleTime(text)
		if err != nil {
			return false
		}
		b.(*array.Date32Builder).Append(arrow.Date32FromTime(t))
	case dtype.Datetime:
		t, err := parseFlexibleTime(text)
		if err != nil {
			return false
		}
		ts, _ := arrow.TimestampFromTime(t, arrow.Microsecond)
		b.(*array.TimestampBuilder).Append(ts)
	default:
		return false
	}
	return true
}

func cellAsString(col arrow.Array, i int) string {
	v := cellValue(col, int64(i))
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// --- ParseDatetime ---

func applyParseDatetime(ctx context.Context, reader array.RecordReader, schema dtype.Schema, p op.ParseDatetime) (array.RecordReader, dtype.Schema, *OpStats, error) {
	idx := schema.IndexOf(p.Column)
	if idx < 0 {
		return nil, nil, nil, fmt.Errorf("parse_datetime: column %q not found", p.Column)
	}
	frame, err := CollectStreaming(ctx, reader, schema, 0)
	if err != nil {
		return nil, nil, nil, err
	}
	defer frame.Release()

	newSchema := schema.WithCast(p.Column, dtype.Datetime)
	outSchema := newSchema.ArrowSchema()
	builder := array.NewRecordBuilder(memory.DefaultAllocator, outSchema)
	defer builder.Release()

	// p.Format is a strftime spec (e.g. "%Y-%m-%d"), the wire format
	// collaborators send; time.Parse wants a Go reference-time layout.
	goLayout := strftime.Layout(p.Format)

	stats := &OpStats{}
	for c := range frame.schema {
		b := builder.Field(c)
		for _, batch := range frame.batches {
			col := batch.Column(c)
			for i := 0; i < col.Len(); i++ {
				if c != idx {
					appendFromColumn(b, col, i)
					continue
				}
				if col.IsNull(i) {
					b.AppendNull()
					continue
				}
				text := col.(*array.String).Value(i)
				t, err := time.Parse(goLayout, text)
				if err != nil {
					b.AppendNull()
					stats.ErrorCount++
					continue
				}
				ts, _ := arrow.TimestampFromTime(t, arrow.Microsecond)
				b.(*array.TimestampBuilder).Append(ts)
			}
		}
	}

	rec := builder.NewRecordBatch()
	defer rec.Release()
	return newSliceReader(outSchema, []arrow.RecordBatch{rec}), newSchema, stats, nil
}
