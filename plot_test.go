package dfr

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dfrcore/dfr/op"
)

func writePlotSourceCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "series.csv")
	content := "day,temp,humidity,label\n2024-01-01,10,55,a\n2024-01-02,12,,b\n2024-01-03,15,60,c\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write source csv: %v", err)
	}
	return path
}

func openPlotFacade(t *testing.T) (*Facade, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	f, err := NewFacade(ctx, EngineConfig{GetPreviewWaitTimeout: 2 * time.Second}, nil)
	if err != nil {
		t.Fatalf("NewFacade: %v", err)
	}
	path := writePlotSourceCSV(t)
	if _, err := f.OpenFile(ctx, path); err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	return f, ctx
}

func TestGetPlotDataDropsNullsPairwise(t *testing.T) {
	f, ctx := openPlotFacade(t)

	data, err := f.GetPlotData(ctx, "temp", []string{"humidity"})
	if err != nil {
		t.Fatalf("GetPlotData: %v", err)
	}
	if len(data.Series) != 1 {
		t.Fatalf("Series = %v, want 1 entry", data.Series)
	}
	s := data.Series[0]
	if len(s.X) != 2 || len(s.Y) != 2 {
		t.Fatalf("expected the null humidity row to be dropped, got X=%v Y=%v", s.X, s.Y)
	}
}

func TestGetPlotDataRejectsNonNumericColumn(t *testing.T) {
	f, ctx := openPlotFacade(t)

	if _, err := f.GetPlotData(ctx, "label", []string{"temp"}); err == nil {
		t.Fatal("expected error for a non-numeric/datetime x column")
	}
}

func TestGetPlotDataRejectsUnknownColumn(t *testing.T) {
	f, ctx := openPlotFacade(t)

	if _, err := f.GetPlotData(ctx, "temp", []string{"does_not_exist"}); err == nil {
		t.Fatal("expected error for an unknown y column")
	}
}

func TestGetHistogramDataDropsNulls(t *testing.T) {
	f, ctx := openPlotFacade(t)

	data, err := f.GetHistogramData(ctx, []string{"humidity"})
	if err != nil {
		t.Fatalf("GetHistogramData: %v", err)
	}
	if len(data.Series) != 1 {
		t.Fatalf("Series = %v, want 1 entry", data.Series)
	}
	if len(data.Series[0].Values) != 2 {
		t.Fatalf("Values = %v, want 2 non-null entries", data.Series[0].Values)
	}
}

func TestGetHistogramDataRejectsNonNumericColumn(t *testing.T) {
	f, ctx := openPlotFacade(t)

	if _, err := f.GetHistogramData(ctx, []string{"label"}); err == nil {
		t.Fatal("expected error for a non-numeric histogram column")
	}
}

func TestGetPlotDataHonorsPipeline(t *testing.T) {
	f, ctx := openPlotFacade(t)
	if _, err := f.AddOperation(ctx, op.Input{OpType: "filter", Column: "temp", FilterOp: "gt", Value: "11"}); err != nil {
		t.Fatalf("AddOperation: %v", err)
	}

	data, err := f.GetPlotData(ctx, "temp", []string{"temp"})
	if err != nil {
		t.Fatalf("GetPlotData: %v", err)
	}
	if len(data.Series) != 1 || len(data.Series[0].X) != 2 {
		t.Fatalf("expected filter to be reflected in plot data, got %+v", data.Series)
	}
}
