// Package export runs a fully applied plan to completion and streams its
// rows into a CSV or Parquet sink, with cooperative cancellation and a
// write-to-temp/rename-on-success discipline so a cancelled or failed
// export never leaves a partial file at the requested path.
package export

import (
	"context"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/dfrcore/dfr/columnar"
	"github.com/dfrcore/dfr/dtype"
	"github.com/dfrcore/dfr/internal/engerr"
	"github.com/dfrcore/dfr/plan"
	"github.com/dfrcore/dfr/source"
)

// Format identifies an export sink.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// Progress is called after each batch is written with the running row
// count. Returning false aborts the export cleanly: the temp file is
// removed and Run returns engerr.KindCancelled.
type Progress func(rowsWritten int64) bool

// sink is the common contract csvSink and parquetSink implement.
type sink interface {
	Write(schema dtype.Schema, batch arrow.RecordBatch) error
	Close() error
}

// Run re-composes p with no row cap, pumps its batches through the
// requested format's sink at sinkPath, and reports progress after each
// batch. On success the temp file is renamed to sinkPath; on cancellation
// or error it is removed and sinkPath is left untouched.
func Run(ctx context.Context, p *plan.LazyPlan, format Format, sinkPath string, progress Progress) error {
	reader, closeFn, err := p.Execute(ctx, source.ScanOptions{})
	if err != nil {
		return engerr.New(engerr.KindIoError, "open source for export: %v", err)
	}
	defer closeFn()

	currentSchema, err := dtype.FromArrowSchema(reader.Schema())
	if err != nil {
		return engerr.New(engerr.KindSchemaMismatch, "export schema: %v", err)
	}

	current := reader
	for i, o := range p.Ops {
		out, newSchema, _, err := columnar.Apply(ctx, current, o, currentSchema)
		if err != nil {
			return engerr.New(engerr.KindExecutionError, "operation %d during export: %v", i, err)
		}
		current = out
		currentSchema = newSchema
	}

	tmpPath := sinkPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return engerr.New(engerr.KindIoError, "create export file: %v", err)
	}

	var s sink
	switch format {
	case FormatCSV:
		s = newCSVSink(f)
	case FormatParquet:
		s, err = newParquetSink(f, currentSchema)
		if err != nil {
			f.Close()
			os.Remove(tmpPath)
			return engerr.New(engerr.KindExportError, "open parquet sink: %v", err)
		}
	default:
		f.Close()
		os.Remove(tmpPath)
		return engerr.New(engerr.KindExportError, "unknown export format %q", format)
	}

	abort := func(kind engerr.Kind, detail string) error {
		s.Close()
		f.Close()
		os.Remove(tmpPath)
		return engerr.New(kind, "%s", detail)
	}

	var rowsWritten int64
	for current.Next() {
		if err := ctx.Err(); err != nil {
			return abort(engerr.KindCancelled, "export cancelled: "+err.Error())
		}
		batch := current.RecordBatch()
		if err := s.Write(currentSchema, batch); err != nil {
			return abort(engerr.KindExportError, fmt.Sprintf("write batch: %v", err))
		}
		rowsWritten += batch.NumRows()

		if progress != nil && !progress(rowsWritten) {
			return abort(engerr.KindCancelled, "export cancelled by caller")
		}
	}
	if err := current.Err(); err != nil {
		return abort(engerr.KindExecutionError, fmt.Sprintf("read batch: %v", err))
	}

	if err := s.Close(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return engerr.New(engerr.KindExportError, "finalize sink: %v", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return engerr.New(engerr.KindIoError, "close export file: %v", err)
	}
	if err := os.Rename(tmpPath, sinkPath); err != nil {
		os.Remove(tmpPath)
		return engerr.New(engerr.KindIoError, "rename export file: %v", err)
	}
	return nil
}
