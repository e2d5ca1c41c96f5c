package columnar

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/dfrcore/dfr/dtype"
	"github.com/dfrcore/dfr/op"
)

// OpStats reports per-operation execution counters, surfaced to callers
// that need to know how many values failed coercion (CastColumn,
// ParseDatetime) rather than only that the operation as a whole succeeded.
type OpStats struct {
	// ErrorCount is the number of cell values that failed to coerce to
	// the target type (CastColumn, ParseDatetime) and were set to null.
	ErrorCount int64
}

// Apply is the single execution point for every operation tag, used
// uniformly regardless of which source adapter produced reader's batches.
// Filter/DropColumn/RenameColumn/SelectColumns/Limit stream batch-by-batch;
// Sort/FillNull(mean|min|max)/CastColumn/ParseDatetime materialize a whole-
// column view first, since they each need more than one batch's worth of
// context (a stable full sort, one aggregate pass before filling, or
// whole-column error counting).
func Apply(ctx context.Context, reader array.RecordReader, o op.Operation, schema dtype.Schema) (array.RecordReader, dtype.Schema, *OpStats, error) {
	switch v := o.(type) {
	case op.Filter:
		out, err := applyFilter(ctx, reader, schema, v)
		return out, schema, &OpStats{}, err
	case op.DropColumn:
		out, newSchema, err := applyDropColumn(ctx, reader, schema, v)
		return out, newSchema, &OpStats{}, err
	case op.RenameColumn:
		out, newSchema, err := applyRenameColumn(ctx, reader, schema, v)
		return out, newSchema, &OpStats{}, err
	case op.SelectColumns:
		out, newSchema, err := applySelectColumns(ctx, reader, schema, v)
		return out, newSchema, &OpStats{}, err
	case op.Limit:
		out, err := applyLimit(reader, v)
		return out, schema, &OpStats{}, err
	case op.Sort:
		out, err := applySort(ctx, reader, schema, v)
		return out, schema, &OpStats{}, err
	case op.FillNull:
		out, stats, err := applyFillNull(ctx, reader, schema, v)
		return out, schema, stats, err
	case op.CastColumn:
		out, newSchema, stats, err := applyCastColumn(ctx, reader, schema, v)
		return out, newSchema, stats, err
	case op.ParseDatetime:
		out, newSchema, stats, err := applyParseDatetime(ctx, reader, schema, v)
		return out, newSchema, stats, err
	default:
		return nil, nil, nil, fmt.Errorf("columnar.Apply: unsupported operation %T", o)
	}
}

// streamingTransform wraps reader, applying transform to each batch in
// turn and re-emitting the result, for operations that never need more
// than one batch of context (Filter, projections, renames).
type streamingTransform struct {
	inner     array.RecordReader
	outSchema *arrow.Schema
	transform func(arrow.RecordBatch) (arrow.RecordBatch, error)
	cur       arrow.RecordBatch
	err       error
	refs      int64
}

func (s *streamingTransform) Schema() *arrow.Schema { return s.outSchema }

func (s *streamingTransform) Retain() { s.refs++ }

func (s *streamingTransform) Release() {
	s.refs--
	if s.refs == 0 {
		if s.cur != nil {
			s.cur.Release()
		}
		s.inner.Release()
	}
}

func (s *streamingTransform) Next() bool {
	if s.cur != nil {
		s.cur.Release()
		s.cur = nil
	}
	for s.inner.Next() {
		rec, err := s.transform(s.inner.RecordBatch())
		if err != nil {
			s.err = err
			return false
		}
		if rec == nil {
			continue // batch filtered down to zero rows
		}
		s.cur = rec
		return true
	}
	return false
}

func (s *streamingTransform) RecordBatch() arrow.RecordBatch { return s.cur }

func (s *streamingTransform) Err() error {
	if s.err != nil {
		return s.err
	}
	return s.inner.Err()
}

// --- Filter ---

func applyFilter(ctx context.Context, reader array.RecordReader, schema dtype.Schema, f op.Filter) (array.RecordReader, error) {
	idx := schema.IndexOf(f.Column)
	if idx < 0 {
		return nil, fmt.Errorf("filter: column %q not found", f.Column)
	}
	outSchema := reader.Schema()

	transform := func(rec arrow.RecordBatch) (arrow.RecordBatch, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		col := rec.Column(idx)
		keep := make([]int64, 0, rec.NumRows())
		for i := 0; i < col.Len(); i++ {
			ok, err := evalFilterPredicate(col, i, f.Predicate, f.Value, schema[idx].Type)
			if err != nil {
				return nil, err
			}
			if ok {
				keep = append(keep, int64(i))
			}
		}
		if len(keep) == 0 {
			return nil, nil
		}
		if len(keep) == int(rec.NumRows()) {
			rec.Retain()
			return rec, nil
		}
		return takeBatch(rec, keep), nil
	}

	return &streamingTransform{inner: reader, outSchema: outSchema, transform: transform, refs: 1}, nil
}

func evalFilterPredicate(col arrow.Array, i int, pred op.Predicate, value string, dt dtype.Dtype) (bool, error) {
	isNull := col.IsNull(i)
	switch pred {
	case op.PredIsNull:
		return isNull, nil
	case op.PredIsNotNull:
		return !isNull, nil
	}
	if isNull {
		return false, nil
	}

	switch pred {
	case op.PredContains:
		s, ok := col.(*array.String)
		if !ok {
			return false, fmt.Errorf("filter: contains requires a string column")
		}
		return containsSubstring(s.Value(i), value), nil
	case op.PredEq, op.PredNeq, op.PredGt, op.PredGte, op.PredLt, op.PredLte:
		cmp, err := compareCell(col, i, value, dt)
		if err != nil {
			return false, err
		}
		switch pred {
		case op.PredEq:
			return cmp == 0, nil
		case op.PredNeq:
			return cmp != 0, nil
		case op.PredGt:
			return cmp > 0, nil
		case op.PredGte:
			return cmp >= 0, nil
		case op.PredLt:
			return cmp < 0, nil
		case op.PredLte:
			return cmp <= 0, nil
		}
	}
	return false, fmt.Errorf("filter: unsupported predicate %q", pred)
}

func containsSubstring(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return len(substr) == 0
}

// compareCell compares the cell at col[i] against value (parsed according
// to dt), returning -1/0/1.
func compareCell(col arrow.Array, i int, value string, dt dtype.Dtype) (int, error) {
	switch dt {
	case dtype.Int32, dtype.Int64:
		want, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("filter: %q is not a valid integer for column dtype %s", value, dt)
		}
		got := intCellI64(col, i)
		return cmpInt64(got, want), nil
	case dtype.Float32, dtype.Float64:
		want, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("filter: %q is not a valid float for column dtype %s", value, dt)
		}
		got := numericCellF64(col, i)
		return cmpFloat64(got, want), nil
	case dtype.Boolean:
		want, err := strconv.ParseBool(value)
		if err != nil {
			return 0, fmt.Errorf("filter: %q is not a valid boolean", value)
		}
		b := col.(*array.Boolean).Value(i)
		if b == want {
			return 0, nil
		}
		if b {
			return 1, nil
		}
		return -1, nil
	case dtype.Date, dtype.Datetime:
		want, err := parseFlexibleTime(value)
		if err != nil {
			return 0, fmt.Errorf("filter: %q is not a valid date/datetime", value)
		}
		got := datetimeCellUnixSeconds(col, i, dt)
		return cmpInt64(got, want.Unix()), nil
	default:
		s := col.(*array.String).Value(i)
		switch {
		case s < value:
			return -1, nil
		case s > value:
			return 1, nil
		default:
			return 0, nil
		}
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func parseFlexibleTime(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format %q", value)
}

// takeBatch builds a new record batch containing only the given row
// indices (already sorted ascending), column by column.
func takeBatch(rec arrow.RecordBatch, indices []int64) arrow.RecordBatch {
	cols := make([]arrow.Array, rec.NumCols())
	for c := 0; c < int(rec.NumCols()); c++ {
		cols[c] = takeColumn(rec.Column(c), indices)
	}
	out := array.NewRecordBatch(rec.Schema(), cols, int64(len(indices)))
	for _, c := range cols {
		c.Release()
	}
	return out
}

func takeColumn(col arrow.Array, indices []int64) arrow.Array {
	b := newBuilderFor(col.DataType())
	defer b.Release()
	for _, i := range indices {
		appendFromColumn(b, col, int(i))
	}
	return b.NewArray()
}

// --- DropColumn / RenameColumn / SelectColumns ---

func applyDropColumn(ctx context.Context, reader array.RecordReader, schema dtype.Schema, d op.DropColumn) (array.RecordReader, dtype.Schema, error) {
	idx := schema.IndexOf(d.Column)
	if idx < 0 {
		return nil, nil, fmt.Errorf("drop_column: column %q not found", d.Column)
	}
	newSchema := schema.WithDropped(d.Column)
	keepIdx := make([]int, 0, len(schema)-1)
	for i := range schema {
		if i != idx {
			keepIdx = append(keepIdx, i)
		}
	}
	outArrow := newSchema.ArrowSchema()
	return projectBatches(reader, outArrow, keepIdx), newSchema, nil
}

func applyRenameColumn(ctx context.Context, reader array.RecordReader, schema dtype.Schema, r op.RenameColumn) (array.RecordReader, dtype.Schema, error) {
	if schema.IndexOf(r.From) < 0 {
		return nil, nil, fmt.Errorf("rename_column: column %q not found", r.From)
	}
	newSchema := schema.WithRenamed(r.From, r.To)
	outArrow := newSchema.ArrowSchema()
	keepIdx := make([]int, len(schema))
	for i := range schema {
		keepIdx[i] = i
	}
	return projectBatches(reader, outArrow, keepIdx), newSchema, nil
}

func applySelectColumns(ctx context.Context, reader array.RecordReader, schema dtype.Schema, s op.SelectColumns) (array.RecordReader, dtype.Schema, error) {
	keepIdx := make([]int, len(s.Columns))
	for i, name := range s.Columns {
		idx := schema.IndexOf(name)
		if idx < 0 {
			return nil, nil, fmt.Errorf("select_columns: column %q not found", name)
		}
		keepIdx[i] = idx
	}
	newSchema := schema.Selected(s.Columns)
	outArrow := newSchema.ArrowSchema()
	return projectBatches(reader, outArrow, keepIdx), newSchema, nil
}

func projectBatches(reader array.RecordReader, outSchema *arrow.Schema, keepIdx []int) array.RecordReader {
	transform := func(rec arrow.RecordBatch) (arrow.RecordBatch, error) {
		cols := make([]arrow.Array, len(keepIdx))
		for i, idx := range keepIdx {
			cols[i] = rec.Column(idx)
		}
		return array.NewRecordBatch(outSchema, cols, rec.NumRows()), nil
	}
	return &streamingTransform{inner: reader, outSchema: outSchema, transform: transform, refs: 1}
}

// --- Limit ---

func applyLimit(reader array.RecordReader, l op.Limit) (array.RecordReader, error) {
	return &capReader{inner: reader, limit: l.N, refs: 1}, nil
}

type capReader struct {
	inner   array.RecordReader
	limit   int64
	emitted int64
	cur     arrow.RecordBatch
	refs    int64
}

func (c *capReader) Schema() *arrow.Schema { return c.inner.Schema() }
func (c *capReader) Retain()               { c.refs++ }
func (c *capReader) Release() {
	c.refs--
	if c.refs == 0 {
		if c.cur != nil {
			c.cur.Release()
		}
		c.inner.Release()
	}
}

func (c *capReader) Next() bool {
	if c.cur != nil {
		c.cur.Release()
		c.cur = nil
	}
	if c.emitted >= c.limit {
		return false
	}
	if !c.inner.Next() {
		return false
	}
	rec := c.inner.RecordBatch()
	n := rec.NumRows()
	if c.emitted+n > c.limit {
		n = c.limit - c.emitted
		rec = sliceBatch(rec, 0, n)
	} else {
		rec.Retain()
	}
	c.cur = rec
	c.emitted += n
	return true
}

func (c *capReader) RecordBatch() arrow.RecordBatch { return c.cur }
func (c *capReader) Err() error                     { return c.inner.Err() }

// --- Sort ---

func applySort(ctx context.Context, reader array.RecordReader, schema dtype.Schema, s op.Sort) (array.RecordReader, error) {
	idx := schema.IndexOf(s.Column)
	if idx < 0 {
		return nil, fmt.Errorf("sort: column %q not found", s.Column)
	}
	frame, err := CollectStreaming(ctx, reader, schema, 0)
	if err != nil {
		return nil, err
	}
	defer frame.Release()

	order := make([]int64, frame.numRows)
	for i := range order {
		order[i] = int64(i)
	}

	less := sortLess(frame, idx, schema[idx].Type, s.Descending)
	sort.SliceStable(order, func(a, b int) bool { return less(order[a], order[b]) })

	return materializeOrdered(frame, order), nil
}

// sortLess returns a stable less-than comparator over absolute row
// indices for frame's column idx, putting nulls last regardless of
// direction.
func sortLess(frame *Frame, idx int, dt dtype.Dtype, descending bool) func(a, b int64) bool {
	isNull := func(i int64) bool {
		batchIdx, within := frame.locate(i)
		return frame.batches[batchIdx].Column(idx).IsNull(int(within))
	}
	cellLess := func(a, b int64) bool {
		av, bv := frame.cellAt(idx, a), frame.cellAt(idx, b)
		return lessValue(av, bv, dt)
	}
	return func(a, b int64) bool {
		an, bn := isNull(a), isNull(b)
		if an && bn {
			return false
		}
		if an {
			return false // nulls sort last
		}
		if bn {
			return true
		}
		if descending {
			return cellLess(b, a)
		}
		return cellLess(a, b)
	}
}

func lessValue(a, b any, dt dtype.Dtype) bool {
	switch dt {
	case dtype.Int32, dtype.Int64:
		return a.(int64) < b.(int64)
	case dtype.Float32, dtype.Float64:
		return a.(float64) < b.(float64)
	case dtype.Boolean:
		return !a.(bool) && b.(bool)
	case dtype.Date, dtype.Datetime:
		return a.(time.Time).Before(b.(time.Time))
	default:
		as, _ := a.(string)
		bs, _ := b.(string)
		return as < bs
	}
}

// cellAt returns frame's column idx at absolute row i as a comparable Go
// value matching lessValue's type switch.
func (f *Frame) cellAt(idx int, i int64) any {
	batchIdx, within := f.locate(i)
	col := f.batches[batchIdx].Column(idx)
	return cellValue(col, within)
}

func materializeOrdered(frame *Frame, order []int64) array.RecordReader {
	outSchema := frame.schema.ArrowSchema()
	builder := array.NewRecordBuilder(memory.DefaultAllocator, outSchema)
	defer builder.Release()

	for c := range frame.schema {
		b := builder.Field(c)
		for _, i := range order {
			batchIdx, within := frame.locate(i)
			appendFromColumn(b, frame.batches[batchIdx].Column(c), int(within))
		}
	}
	rec := builder.NewRecordBatch()
	defer rec.Release()
	return newSliceReader(outSchema, []arrow.RecordBatch{rec})
}

func appendFromColumn(b array.Builder, col arrow.Array, i int) {
	if col.IsNull(i) {
		b.AppendNull()
		return
	}
	switch c := col.(type) {
	case *array.Int32:
		b.(*array.Int32Builder).Append(c.Value(i))
	case *array.Int64:
		b.(*array.Int64Builder).Append(c.Value(i))
	case *array.Float32:
		b.(*array.Float32Builder).Append(c.Value(i))
	case *array.Float64:
		b.(*array.Float64Builder).Append(c.Value(i))
	case *array.String:
		b.(*array.StringBuilder).Append(c.Value(i))
	case *array.Boolean:
		b.(*array.BooleanBuilder).Append(c.Value(i))
	case *array.Date32:
		b.(*array.Date32Builder).Append(c.Value(i))
	case *array.Timestamp:
		b.(*array.TimestampBuilder).Append(c.Value(i))
	}
}

func newBuilderFor(dt arrow.DataType) array.Builder {
	return array.NewBuilder(memory.DefaultAllocator, dt)
}
