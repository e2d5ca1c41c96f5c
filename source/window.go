package source

import (
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// windowedReader wraps an array.RecordReader, skipping the first offset
// rows and stopping once limit rows (0 == unbounded) have been emitted.
// Parquet's and Arrow IPC's native readers have no offset/limit concept of
// their own, so adapters that read those formats directly compose this
// instead of re-slicing whole tables into memory.
type windowedReader struct {
	inner   array.RecordReader
	offset  int64
	limit   int64
	skipped int64
	emitted int64
	cur     arrow.RecordBatch
	refs    int64
}

func newWindowedReader(inner array.RecordReader, offset, limit int64) *windowedReader {
	return &windowedReader{inner: inner, offset: offset, limit: limit, refs: 1}
}

func (w *windowedReader) Schema() *arrow.Schema { return w.inner.Schema() }

func (w *windowedReader) Retain() { atomic.AddInt64(&w.refs, 1) }

func (w *windowedReader) Release() {
	if atomic.AddInt64(&w.refs, -1) == 0 {
		if w.cur != nil {
			w.cur.Release()
			w.cur = nil
		}
		w.inner.Release()
	}
}

func (w *windowedReader) Next() bool {
	if w.cur != nil {
		w.cur.Release()
		w.cur = nil
	}
	if w.limit > 0 && w.emitted >= w.limit {
		return false
	}

	for w.inner.Next() {
		rec := w.inner.RecordBatch()
		n := rec.NumRows()

		start := int64(0)
		if w.skipped < w.offset {
			remaining := w.offset - w.skipped
			if int64(n) <= remaining {
				w.skipped += int64(n)
				continue
			}
			start = remaining
			w.skipped = w.offset
		}

		end := int64(n)
		if w.limit > 0 {
			room := w.limit - w.emitted
			if end-start > room {
				end = start + room
			}
		}

		if start != 0 || end != int64(n) {
			rec = sliceRecord(rec, start, end)
		} else {
			rec.Retain()
		}
		n = int(end - start)

		w.cur = rec
		w.emitted += int64(n)
		return true
	}
	return false
}

func (w *windowedReader) RecordBatch() arrow.RecordBatch { return w.cur }

func (w *windowedReader) Err() error { return w.inner.Err() }

// sliceRecord rebuilds rec restricted to rows [start, end), column by
// column, since arrow-go record batches don't expose a direct row-range
// constructor independent of their backing arrays.
func sliceRecord(rec arrow.RecordBatch, start, end int64) arrow.RecordBatch {
	cols := make([]arrow.Array, rec.NumCols())
	for i := range cols {
		col := array.NewSlice(rec.Column(i), start, end)
		cols[i] = col
	}
	out := array.NewRecordBatch(rec.Schema(), cols, end-start)
	for _, c := range cols {
		c.Release()
	}
	return out
}
