package source

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/dfrcore/dfr/dtype"
)

// ipcAdapter reads an Arrow IPC (.arrow/.feather) file directly, with no
// type inference: the file's own embedded schema is authoritative.
type ipcAdapter struct {
	path string
}

func openIPC(d Descriptor) (Adapter, error) {
	if _, err := os.Stat(d.Path); err != nil {
		return nil, fmt.Errorf("open arrow ipc file: %w", err)
	}
	return &ipcAdapter{path: d.Path}, nil
}

func (a *ipcAdapter) Close() error { return nil }

func (a *ipcAdapter) openReader() (*os.File, *ipc.FileReader, error) {
	f, err := os.Open(a.path)
	if err != nil {
		return nil, nil, fmt.Errorf("open arrow ipc file: %w", err)
	}
	r, err := ipc.NewFileReader(f, ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("open arrow ipc reader: %w", err)
	}
	return f, r, nil
}

func (a *ipcAdapter) ProbeSchema(ctx context.Context) (dtype.Schema, error) {
	f, r, err := a.openReader()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return dtype.FromArrowSchema(r.Schema())
}

func (a *ipcAdapter) Scan(ctx context.Context, opts ScanOptions) (array.RecordReader, error) {
	f, r, err := a.openReader()
	if err != nil {
		return nil, err
	}

	var rr array.RecordReader = &ipcFileRecordReader{file: f, r: r, refs: 1}
	if len(opts.Columns) > 0 {
		rr, err = projectReader(rr, opts.Columns)
		if err != nil {
			f.Close()
			return nil, err
		}
	}
	if opts.Offset > 0 || opts.Limit > 0 {
		rr = newWindowedReader(rr, opts.Offset, opts.Limit)
	}
	return rr, nil
}

// ipcFileRecordReader adapts ipc.FileReader's random-access batch index
// (NumRecords/Record) to the sequential array.RecordReader contract
// (Next/RecordBatch) the rest of the engine consumes uniformly.
type ipcFileRecordReader struct {
	file *os.File
	r    *ipc.FileReader
	idx  int
	cur  arrow.RecordBatch
	refs int64
}

func (f *ipcFileRecordReader) Schema() *arrow.Schema { return f.r.Schema() }

func (f *ipcFileRecordReader) Retain() { atomic.AddInt64(&f.refs, 1) }

func (f *ipcFileRecordReader) Release() {
	if atomic.AddInt64(&f.refs, -1) == 0 {
		if f.cur != nil {
			f.cur.Release()
		}
		f.file.Close()
	}
}

func (f *ipcFileRecordReader) Next() bool {
	if f.cur != nil {
		f.cur.Release()
		f.cur = nil
	}
	if f.idx >= f.r.NumRecords() {
		return false
	}
	rec, err := f.r.Record(f.idx)
	if err != nil {
		return false
	}
	rec.Retain()
	f.cur = rec
	f.idx++
	return true
}

func (f *ipcFileRecordReader) RecordBatch() arrow.RecordBatch { return f.cur }

func (f *ipcFileRecordReader) Err() error { return nil }
