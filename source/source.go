// Package source implements the adapters that turn an on-disk (or
// in-process) dataset into a stream of Arrow record batches: CSV, TSV,
// NDJSON and ad-hoc SQL via an embedded DuckDB connection, Parquet and
// Arrow IPC read directly, and XLSX materialized through a Parquet cache.
package source

import (
	"context"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/dfrcore/dfr/dtype"
)

// Format identifies the on-disk encoding a Descriptor names.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatTSV     Format = "tsv"
	FormatNDJSON  Format = "ndjson"
	FormatSQL     Format = "sql"
	FormatParquet Format = "parquet"
	FormatIPC     Format = "ipc"
	FormatXLSX    Format = "xlsx"
)

// Descriptor names a dataset and the options needed to open it. Only the
// fields relevant to Format are consulted; the rest are ignored.
type Descriptor struct {
	Format Format

	// Path is the filesystem path for file-backed formats (csv, tsv,
	// ndjson, parquet, ipc, xlsx).
	Path string

	// Query is the literal SQL text to run, for FormatSQL.
	Query string

	// Delimiter overrides the column separator for csv/tsv. Defaults to
	// ',' for csv and '\t' for tsv.
	Delimiter rune

	// HasHeader reports whether the first row of a csv/tsv file holds
	// column names. Defaults to true.
	HasHeader bool

	// SampleSize bounds how many rows DuckDB samples to infer csv/tsv/
	// ndjson column types. Defaults to 100.
	SampleSize int

	// Sheet names the XLSX worksheet to read. Defaults to the first
	// sheet in the workbook.
	Sheet string
}

// ScanOptions narrows a Scan to a row window. An Adapter that cannot honor
// Offset/Limit precisely (e.g. it only supports a prefix) may over-fetch;
// columnar.Apply re-applies the full operation chain regardless.
type ScanOptions struct {
	// Limit caps the number of rows fetched. Zero means unbounded.
	Limit int64
	// Offset skips this many rows before the first fetched row.
	Offset int64
	// Columns, if non-empty, requests only these columns (a pure
	// optimization hint; Adapter may ignore it and return all columns).
	Columns []string
}

// Adapter is the per-format interface: probe a dataset's schema, then
// stream it as Arrow record batches.
type Adapter interface {
	// ProbeSchema returns the dataset's schema without materializing rows.
	ProbeSchema(ctx context.Context) (dtype.Schema, error)

	// Scan returns a RecordReader over the dataset's rows. The caller owns
	// the returned reader and must call Release when done.
	Scan(ctx context.Context, opts ScanOptions) (array.RecordReader, error)

	// Close releases any resources (open connections, file handles) the
	// adapter holds.
	Close() error
}

// Pushdown is implemented by adapters that can fold a leading prefix of an
// operation chain into their own query (see plan.LazyPlan.Execute).
// Adapters that don't implement it simply aren't consulted.
type Pushdown interface {
	// PushdownScan attempts to fold ops (in order) into the adapter's scan
	// query. It returns a reader, the number of leading ops it managed to
	// absorb (0 if none), and an error. columnar.Apply always re-applies
	// the full op list regardless of absorbed; Pushdown is a pure
	// performance optimization and must never change output rows.
	PushdownScan(ctx context.Context, ops []PushdownOp) (reader array.RecordReader, absorbed int, err error)
}

// PushdownOp is the minimal shape plan.LazyPlan.Execute hands to Pushdown: an
// operation tag and its already-validated parameters, detached from the op
// package to avoid a source->op import (op already depends on dtype, and
// source must stay usable without depending on the full operation model).
type PushdownOp struct {
	Tag    string
	Column string
	// Params carries tag-specific fields (predicate/value for filter,
	// descending for sort, column list for select, n for limit) boxed as
	// strings/ints by the caller; source/duckdb.go type-switches on Tag to
	// interpret them.
	Params map[string]any
}

// Open opens a Descriptor, dispatching on Format. The returned Adapter's
// Close must be called by the caller once done.
func Open(ctx context.Context, d Descriptor) (Adapter, error) {
	switch d.Format {
	case FormatCSV, FormatTSV, FormatNDJSON, FormatSQL:
		return openDuckDB(ctx, d)
	case FormatParquet:
		return openParquet(d)
	case FormatIPC:
		return openIPC(d)
	case FormatXLSX:
		return openXLSX(ctx, d)
	default:
		return nil, fmt.Errorf("unsupported source format %q", d.Format)
	}
}

// ProbeWithTimeout wraps ProbeSchema with a deadline; expiry reports
// context.DeadlineExceeded so callers can map it to dfr.KindTimeout.
func ProbeWithTimeout(ctx context.Context, a Adapter, timeout time.Duration) (dtype.Schema, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		schema dtype.Schema
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		schema, err := a.ProbeSchema(ctx)
		ch <- result{schema, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.schema, r.err
	}
}
