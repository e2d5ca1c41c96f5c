// Package dfr is an embeddable data-wrangling engine: open a CSV, TSV,
// NDJSON, Parquet, Arrow IPC, or XLSX file, build up a pipeline of
// filter/sort/cast/fill/rename operations against it, preview the
// result capped at a row limit, and export the full result to CSV or
// Parquet. The GUI, plotting library, and OS file dialogs are external
// collaborators — this package only ever hands back typed data and
// numeric/datetime column extracts.
//
// # Quick Start
//
//	f, err := dfr.NewFacade(ctx, dfr.EngineConfig{}, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if _, err := f.OpenFile(ctx, "orders.csv"); err != nil {
//	    log.Fatal(err)
//	}
//	if _, err := f.AddOperation(ctx, op.Input{
//	    OpType: "filter", Column: "status", FilterOp: "eq", Value: "paid",
//	}); err != nil {
//	    log.Fatal(err)
//	}
//
//	status, err := f.GetPreview(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if status.Ready {
//	    fmt.Println(status.Result.Headers)
//	}
//
//	if _, err := f.ExportData(ctx, "paid_orders.parquet", export.FormatParquet, nil); err != nil {
//	    log.Fatal(err)
//	}
//
// # Concurrency
//
// A Facade is safe for concurrent use. Every command is serialized
// through one worker goroutine that owns the session, so state
// transitions (open, add/remove/undo/redo operation, load) apply in
// submission order regardless of which caller goroutine issued them.
// Preview execution and export run on a separate bounded pool and never
// block that goroutine. Building the plan, and opening and probing the
// source for AddOperation and RedoOperation, run on the worker goroutine
// itself, bounded by EngineConfig.ProbeTimeout; OpenFile probes on the
// calling goroutine.
//
// # Errors
//
// Every failure the engine returns is an *Error with a Kind from a fixed
// enumeration (NoSource, IoError, InvalidPlan, TypeError, Timeout, and so
// on); callers that want to branch on failure mode should use AsError(err)
// to recover the underlying *Error and inspect its Kind.
//
// # Persistence
//
// SaveState/LoadState round-trip a session's source descriptor,
// operation pipeline, and UI hints bag through a compact, checksummed
// .dfr file. It never stores materialized row data, so loading a session
// re-reads and re-executes the pipeline against the original source.
package dfr
