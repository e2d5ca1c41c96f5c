package source

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dfrcore/dfr/dtype"
)

func TestParquetAdapterProbeAndScan(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fixture.parquet")
	writeFixtureParquet(t, path)

	adapter, err := Open(ctx, Descriptor{Format: FormatParquet, Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer adapter.Close()

	schema, err := adapter.ProbeSchema(ctx)
	if err != nil {
		t.Fatalf("ProbeSchema: %v", err)
	}
	if idx := schema.IndexOf("id"); idx < 0 || schema[idx].Type != dtype.Int64 {
		t.Errorf("id column = %+v, want Int64", schema)
	}
	if !schema.Has("name") {
		t.Errorf("schema missing name column: %+v", schema)
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

func TestParquetAdapterScanWithOffsetLimit(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fixture.parquet")
	writeFixtureParquet(t, path)

	adapter, err := Open(ctx, Descriptor{Format: FormatParquet, Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer adapter.Close()

	reader, err := adapter.Scan(ctx, ScanOptions{Offset: 1, Limit: 1})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	defer reader.Release()

	var total int64
	for reader.Next() {
		total += reader.RecordBatch().NumRows()
	}
	if total != 1 {
		t.Errorf("scanned %d rows, want 1", total)
	}
}

func TestParquetAdapterMissingFile(t *testing.T) {
	_, err := Open(context.Background(), Descriptor{Format: FormatParquet, Path: filepath.Join(t.TempDir(), "nope.parquet")})
	if err == nil {
		t.Fatal("expected error opening a missing parquet file")
	}
}
