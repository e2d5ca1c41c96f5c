package dfr

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dfrcore/dfr/export"
	"github.com/dfrcore/dfr/op"
)

func writeFacadeSourceCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.csv")
	content := "status,amount\npaid,10\npaid,\npending,30\npaid,40\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write source csv: %v", err)
	}
	return path
}

func newTestFacade(t *testing.T) (*Facade, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	f, err := NewFacade(ctx, EngineConfig{GetPreviewWaitTimeout: 2 * time.Second}, nil)
	if err != nil {
		t.Fatalf("NewFacade: %v", err)
	}
	return f, ctx
}

func pollPreview(t *testing.T, ctx context.Context, f *Facade) PreviewStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		status, err := f.GetPreview(ctx)
		if err != nil {
			t.Fatalf("GetPreview: %v", err)
		}
		if status.Ready {
			return status
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("preview never became ready")
	return PreviewStatus{}
}

func TestFacadeOpenAddPreviewExportRoundTrip(t *testing.T) {
	f, ctx := newTestFacade(t)
	path := writeFacadeSourceCSV(t)

	if _, err := f.OpenFile(ctx, path); err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	if _, err := f.AddOperation(ctx, op.Input{OpType: "fill_null", Column: "amount", FillStrategy: "with_value", FillValue: "0"}); err != nil {
		t.Fatalf("AddOperation fill_null: %v", err)
	}
	if _, err := f.AddOperation(ctx, op.Input{OpType: "filter", Column: "status", FilterOp: "eq", Value: "paid"}); err != nil {
		t.Fatalf("AddOperation filter: %v", err)
	}
	if _, err := f.AddOperation(ctx, op.Input{OpType: "sort", Column: "amount", Descending: true}); err != nil {
		t.Fatalf("AddOperation sort: %v", err)
	}

	ops, err := f.GetOperations(ctx)
	if err != nil {
		t.Fatalf("GetOperations: %v", err)
	}
	if len(ops) != 3 {
		t.Fatalf("GetOperations = %v, want 3 entries", ops)
	}

	status := pollPreview(t, ctx, f)
	if len(status.Result.Rows) != 3 {
		t.Fatalf("preview rows = %v, want 3 paid rows", status.Result.Rows)
	}

	outPath := filepath.Join(t.TempDir(), "out.parquet")
	if _, err := f.ExportData(ctx, outPath, export.FormatParquet, nil); err != nil {
		t.Fatalf("ExportData: %v", err)
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Fatalf("expected exported file at %s: %v", outPath, err)
	}
}

func TestFacadeUndoRedo(t *testing.T) {
	f, ctx := newTestFacade(t)
	path := writeFacadeSourceCSV(t)
	if _, err := f.OpenFile(ctx, path); err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	if _, err := f.AddOperation(ctx, op.Input{OpType: "filter", Column: "status", FilterOp: "eq", Value: "paid"}); err != nil {
		t.Fatalf("AddOperation: %v", err)
	}

	ok, err := f.UndoOperation(ctx)
	if err != nil || !ok {
		t.Fatalf("UndoOperation = %v, %v", ok, err)
	}
	ops, _ := f.GetOperations(ctx)
	if len(ops) != 0 {
		t.Fatalf("GetOperations after undo = %v, want empty", ops)
	}

	ok, err = f.RedoOperation(ctx)
	if err != nil || !ok {
		t.Fatalf("RedoOperation = %v, %v", ok, err)
	}
	ops, _ = f.GetOperations(ctx)
	if len(ops) != 1 {
		t.Fatalf("GetOperations after redo = %v, want 1 entry", ops)
	}
}

// TestFacadeRedoRevalidatesAgainstCurrentSchema simulates the source
// changing out from under a pending redo by reaching into the session
// directly (every public path that can change the schema — AddOperation,
// RemoveOperation, OpenFile, LoadState — already clears the redo stack,
// so this scenario cannot arise through the Facade API alone).
func TestFacadeRedoRevalidatesAgainstCurrentSchema(t *testing.T) {
	f, ctx := newTestFacade(t)
	path := writeFacadeSourceCSV(t)
	if _, err := f.OpenFile(ctx, path); err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := f.AddOperation(ctx, op.Input{OpType: "filter", Column: "status", FilterOp: "eq", Value: "paid"}); err != nil {
		t.Fatalf("AddOperation: %v", err)
	}
	ok, err := f.UndoOperation(ctx)
	if err != nil || !ok {
		t.Fatalf("UndoOperation = %v, %v", ok, err)
	}

	otherPath := filepath.Join(t.TempDir(), "no-status-column.csv")
	if err := os.WriteFile(otherPath, []byte("amount\n10\n20\n"), 0o644); err != nil {
		t.Fatalf("write replacement csv: %v", err)
	}
	f.session.Source.Path = otherPath

	ok, err = f.RedoOperation(ctx)
	if ok {
		t.Fatal("RedoOperation = true, want false for an op that no longer validates")
	}
	if err == nil {
		t.Fatal("expected an error when the redone operation no longer matches the schema")
	}

	ok2, err2 := f.RedoOperation(ctx)
	if ok2 || err2 != nil {
		t.Fatalf("second RedoOperation = %v, %v, want false, nil (stale entry already dropped)", ok2, err2)
	}
}

func TestFacadeRemoveOperationOutOfRange(t *testing.T) {
	f, ctx := newTestFacade(t)
	path := writeFacadeSourceCSV(t)
	if _, err := f.OpenFile(ctx, path); err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	if err := f.RemoveOperation(ctx, 0); err == nil {
		t.Fatal("expected error removing from an empty pipeline")
	}
}

func TestFacadeAddOperationRejectsUnknownColumn(t *testing.T) {
	f, ctx := newTestFacade(t)
	path := writeFacadeSourceCSV(t)
	if _, err := f.OpenFile(ctx, path); err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	_, err := f.AddOperation(ctx, op.Input{OpType: "drop_column", Column: "does_not_exist"})
	if err == nil {
		t.Fatal("expected error for an unknown column")
	}
	ee, ok := AsError(err)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if ee.Kind != KindInvalidPlan {
		t.Errorf("Kind = %v, want InvalidPlan", ee.Kind)
	}
}

func TestFacadeRequiresSourceBeforeOperations(t *testing.T) {
	f, ctx := newTestFacade(t)

	_, err := f.AddOperation(ctx, op.Input{OpType: "limit", Limit: 5})
	if err == nil {
		t.Fatal("expected error adding an operation with no source open")
	}
	ee, ok := AsError(err)
	if !ok || ee.Kind != KindNoSource {
		t.Fatalf("expected KindNoSource, got %v", err)
	}
}

func TestFacadeSaveLoadStateRoundTrip(t *testing.T) {
	f, ctx := newTestFacade(t)
	path := writeFacadeSourceCSV(t)
	if _, err := f.OpenFile(ctx, path); err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := f.AddOperation(ctx, op.Input{OpType: "filter", Column: "status", FilterOp: "eq", Value: "paid"}); err != nil {
		t.Fatalf("AddOperation: %v", err)
	}

	statePath := filepath.Join(t.TempDir(), "session.dfr")
	if err := f.SaveState(ctx, statePath); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	f2, ctx2 := newTestFacade(t)
	if err := f2.LoadState(ctx2, statePath); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	ops, err := f2.GetOperations(ctx2)
	if err != nil {
		t.Fatalf("GetOperations: %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("GetOperations after load = %v, want 1 entry", ops)
	}

	meta, err := f2.GetFileMetadata(ctx2)
	if err != nil {
		t.Fatalf("GetFileMetadata: %v", err)
	}
	if meta.Path != path {
		t.Errorf("Path = %q, want %q", meta.Path, path)
	}
	if meta.Size <= 0 {
		t.Errorf("Size = %d, want > 0", meta.Size)
	}
}

func TestFacadeClearPipeline(t *testing.T) {
	f, ctx := newTestFacade(t)
	path := writeFacadeSourceCSV(t)
	if _, err := f.OpenFile(ctx, path); err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := f.AddOperation(ctx, op.Input{OpType: "limit", Limit: 2}); err != nil {
		t.Fatalf("AddOperation: %v", err)
	}
	if err := f.ClearPipeline(ctx); err != nil {
		t.Fatalf("ClearPipeline: %v", err)
	}
	ops, _ := f.GetOperations(ctx)
	if len(ops) != 0 {
		t.Fatalf("GetOperations after clear = %v, want empty", ops)
	}
}

func TestFacadeWithoutFileChooserErrors(t *testing.T) {
	f, ctx := newTestFacade(t)
	if _, _, err := f.PickDataFile(ctx); err == nil {
		t.Fatal("expected error when no FileChooser is configured")
	}
	if _, _, err := f.PickSavePath(ctx, ".csv"); err == nil {
		t.Fatal("expected error when no FileChooser is configured")
	}
}
