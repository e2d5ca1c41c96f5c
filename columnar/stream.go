package columnar

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/dfrcore/dfr/dtype"
)

// CollectStreaming drives reader batch-by-batch and stops once limit rows
// (0 == unbounded) have been emitted, materializing everything read into a
// Frame. The caller owns reader and must Release it; CollectStreaming does
// not release it on the caller's behalf so intermediate pipeline stages
// can inspect a reader before handing it off.
func CollectStreaming(ctx context.Context, reader array.RecordReader, schema dtype.Schema, limit int64) (*Frame, error) {
	var batches []arrow.RecordBatch
	var offsets []int64
	var total int64

	for reader.Next() {
		if err := ctx.Err(); err != nil {
			releaseAll(batches)
			return nil, err
		}
		rec := reader.RecordBatch()
		n := rec.NumRows()

		if limit > 0 && total+n > limit {
			n = limit - total
			if n <= 0 {
				break
			}
			rec = sliceBatch(rec, 0, n)
		} else {
			rec.Retain()
		}

		offsets = append(offsets, total)
		batches = append(batches, rec)
		total += n

		if limit > 0 && total >= limit {
			break
		}
	}
	if err := reader.Err(); err != nil {
		releaseAll(batches)
		return nil, fmt.Errorf("collect streaming: %w", err)
	}

	return &Frame{schema: schema, batches: batches, offsets: offsets, numRows: total}, nil
}

func releaseAll(batches []arrow.RecordBatch) {
	for _, b := range batches {
		b.Release()
	}
}

func sliceBatch(rec arrow.RecordBatch, start, end int64) arrow.RecordBatch {
	cols := make([]arrow.Array, rec.NumCols())
	for i := range cols {
		cols[i] = array.NewSlice(rec.Column(i), start, end)
	}
	out := array.NewRecordBatch(rec.Schema(), cols, end-start)
	for _, c := range cols {
		c.Release()
	}
	return out
}

// sliceReader wraps a single pre-materialized Frame as an array.RecordReader,
// batch-by-batch, so Apply's output is always consumable the same way
// regardless of which operation produced it.
type sliceReader struct {
	schema  *arrow.Schema
	batches []arrow.RecordBatch
	idx     int
	cur     arrow.RecordBatch
	refs    int64
}

func newSliceReader(schema *arrow.Schema, batches []arrow.RecordBatch) *sliceReader {
	for _, b := range batches {
		b.Retain()
	}
	return &sliceReader{schema: schema, batches: batches, refs: 1}
}

func (s *sliceReader) Schema() *arrow.Schema { return s.schema }

func (s *sliceReader) Retain() { s.refs++ }

func (s *sliceReader) Release() {
	s.refs--
	if s.refs == 0 {
		releaseAll(s.batches)
		s.batches = nil
	}
}

func (s *sliceReader) Next() bool {
	if s.idx >= len(s.batches) {
		s.cur = nil
		return false
	}
	s.cur = s.batches[s.idx]
	s.idx++
	return true
}

func (s *sliceReader) RecordBatch() arrow.RecordBatch { return s.cur }

func (s *sliceReader) Err() error { return nil }
