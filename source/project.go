package source

import (
	"fmt"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// projectReader wraps inner, re-emitting each batch restricted to the
// named columns (in the given order). Used by adapters whose underlying
// reader has no native column-projection support (Arrow IPC).
func projectReader(inner array.RecordReader, columns []string) (array.RecordReader, error) {
	schema := inner.Schema()
	indices := make([]int, len(columns))
	for i, name := range columns {
		idx := schema.FieldIndices(name)
		if len(idx) == 0 {
			return nil, fmt.Errorf("column %q not found", name)
		}
		indices[i] = idx[0]
	}
	fields := make([]arrow.Field, len(indices))
	for i, idx := range indices {
		fields[i] = schema.Field(idx)
	}
	projected := arrow.NewSchema(fields, nil)

	return &columnProjectingReader{inner: inner, schema: projected, indices: indices, refs: 1}, nil
}

type columnProjectingReader struct {
	inner   array.RecordReader
	schema  *arrow.Schema
	indices []int
	cur     arrow.RecordBatch
	refs    int64
}

func (p *columnProjectingReader) Schema() *arrow.Schema { return p.schema }

func (p *columnProjectingReader) Retain() { atomic.AddInt64(&p.refs, 1) }

func (p *columnProjectingReader) Release() {
	if atomic.AddInt64(&p.refs, -1) == 0 {
		if p.cur != nil {
			p.cur.Release()
		}
		p.inner.Release()
	}
}

func (p *columnProjectingReader) Next() bool {
	if p.cur != nil {
		p.cur.Release()
		p.cur = nil
	}
	if !p.inner.Next() {
		return false
	}
	rec := p.inner.RecordBatch()
	cols := make([]arrow.Array, len(p.indices))
	for i, idx := range p.indices {
		cols[i] = rec.Column(idx)
	}
	p.cur = array.NewRecordBatch(p.schema, cols, rec.NumRows())
	return true
}

func (p *columnProjectingReader) RecordBatch() arrow.RecordBatch { return p.cur }

func (p *columnProjectingReader) Err() error { return p.inner.Err() }
