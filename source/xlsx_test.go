package source

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/dfrcore/dfr/dtype"
)

func writeFixtureXLSX(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.xlsx")

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"id", "name", "amount"},
		{1, "alice", 10.5},
		{2, "bob", 20},
		{3, "carol", ""},
	}
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				t.Fatalf("CoordinatesToCellName: %v", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				t.Fatalf("SetCellValue: %v", err)
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	return path
}

func TestXLSXAdapterProbeAndScan(t *testing.T) {
	ctx := context.Background()
	path := writeFixtureXLSX(t)

	adapter, err := Open(ctx, Descriptor{Format: FormatXLSX, Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer adapter.Close()

	schema, err := adapter.ProbeSchema(ctx)
	if err != nil {
		t.Fatalf("ProbeSchema: %v", err)
	}
	if !schema.Has("id") || !schema.Has("name") || !schema.Has("amount") {
		t.Fatalf("schema missing expected columns: %+v", schema)
	}

	reader, err := adapter.Scan(ctx, ScanOptions{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	defer reader.Release()

	var total int64
	for reader.Next() {
		total += reader.RecordBatch().NumRows()
	}
	if total != 3 {
		t.Errorf("scanned %d rows, want 3", total)
	}
}

func TestXLSXAdapterReusesCache(t *testing.T) {
	ctx := context.Background()
	path := writeFixtureXLSX(t)

	a1, err := Open(ctx, Descriptor{Format: FormatXLSX, Path: path})
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	a1.Close()

	a2, err := Open(ctx, Descriptor{Format: FormatXLSX, Path: path})
	if err != nil {
		t.Fatalf("second Open (should reuse cache): %v", err)
	}
	defer a2.Close()

	if _, err := a2.ProbeSchema(ctx); err != nil {
		t.Fatalf("ProbeSchema on cached reopen: %v", err)
	}
}

func TestInferColumnDtype(t *testing.T) {
	cases := []struct {
		name string
		vals []string
		want dtype.Dtype
	}{
		{"all int", []string{"1", "2", "3"}, dtype.Int64},
		{"mixed int and float", []string{"1", "2.5"}, dtype.Float64},
		{"all bool", []string{"true", "false"}, dtype.Boolean},
		{"mixed types fall back to string", []string{"1", "x"}, dtype.String},
		{"all empty", []string{"", ""}, dtype.String},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := inferColumnDtype(c.vals); got != c.want {
				t.Errorf("inferColumnDtype(%v) = %v, want %v", c.vals, got, c.want)
			}
		})
	}
}
