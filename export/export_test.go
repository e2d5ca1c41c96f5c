package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dfrcore/dfr/internal/engerr"
	"github.com/dfrcore/dfr/op"
	"github.com/dfrcore/dfr/plan"
	"github.com/dfrcore/dfr/source"
)

func writeExportSourceCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export-src.csv")
	content := "id,name,amount\n1,alice,10\n2,bob,20\n3,carol,30\n4,dave,40\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write source csv: %v", err)
	}
	return path
}

func buildExportPlan(t *testing.T, ops []op.Operation) *plan.LazyPlan {
	t.Helper()
	desc := source.Descriptor{Format: source.FormatCSV, Path: writeExportSourceCSV(t)}
	p, err := plan.Build(context.Background(), desc, ops, 5*time.Second)
	if err != nil {
		t.Fatalf("plan.Build: %v", err)
	}
	return p
}

func TestRunWritesCSVAndRenamesOnSuccess(t *testing.T) {
	p := buildExportPlan(t, []op.Operation{op.Sort{Column: "amount", Descending: true}})
	sinkPath := filepath.Join(t.TempDir(), "out.csv")

	var lastRows int64
	err := Run(context.Background(), p, FormatCSV, sinkPath, func(rows int64) bool {
		lastRows = rows
		return true
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if lastRows != 4 {
		t.Errorf("rows written = %d, want 4", lastRows)
	}

	data, err := os.ReadFile(sinkPath)
	if err != nil {
		t.Fatalf("read export output: %v", err)
	}
	if !strings.HasPrefix(string(data), "id,name,amount\n") {
		t.Errorf("unexpected CSV header: %q", data)
	}
	if _, err := os.Stat(sinkPath + ".tmp"); !os.IsNotExist(err) {
		t.Error("expected .tmp file to be removed after a successful export")
	}
}

func TestRunWritesParquet(t *testing.T) {
	p := buildExportPlan(t, nil)
	sinkPath := filepath.Join(t.TempDir(), "out.parquet")

	if err := Run(context.Background(), p, FormatParquet, sinkPath, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err := os.ReadFile(sinkPath)
	if err != nil {
		t.Fatalf("read export output: %v", err)
	}
	if string(data[:4]) != "PAR1" {
		t.Errorf("expected parquet magic bytes, got %q", data[:4])
	}
}

func TestRunAbortedByProgressDeletesTmpFile(t *testing.T) {
	p := buildExportPlan(t, nil)
	sinkPath := filepath.Join(t.TempDir(), "out.csv")

	err := Run(context.Background(), p, FormatCSV, sinkPath, func(rows int64) bool {
		return false
	})
	if err == nil {
		t.Fatal("expected an error when progress aborts the export")
	}
	ee, ok := engerr.As(err)
	if !ok || ee.Kind != engerr.KindCancelled {
		t.Fatalf("expected KindCancelled, got %v", err)
	}
	if _, statErr := os.Stat(sinkPath); !os.IsNotExist(statErr) {
		t.Error("expected no file at sinkPath after an aborted export")
	}
	if _, statErr := os.Stat(sinkPath + ".tmp"); !os.IsNotExist(statErr) {
		t.Error("expected the .tmp file to be removed after an aborted export")
	}
}

func TestRunRespectsCancelledContext(t *testing.T) {
	p := buildExportPlan(t, nil)
	sinkPath := filepath.Join(t.TempDir(), "out.csv")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Run(ctx, p, FormatCSV, sinkPath, nil)
	if err == nil {
		t.Fatal("expected an error for a pre-cancelled context")
	}
	if _, statErr := os.Stat(sinkPath); !os.IsNotExist(statErr) {
		t.Error("expected no file at sinkPath after a cancelled export")
	}
}

func TestRunRejectsUnknownFormat(t *testing.T) {
	p := buildExportPlan(t, nil)
	sinkPath := filepath.Join(t.TempDir(), "out.bin")

	err := Run(context.Background(), p, Format("xml"), sinkPath, nil)
	if err == nil {
		t.Fatal("expected an error for an unknown export format")
	}
	if _, statErr := os.Stat(sinkPath + ".tmp"); !os.IsNotExist(statErr) {
		t.Error("expected the .tmp file to be cleaned up for an unknown format")
	}
}
