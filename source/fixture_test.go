package source

import (
	"os"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// writeFixtureBatch builds a tiny two-column (id int64, name string)
// record batch for adapter fixtures.
func writeFixtureBatch(t *testing.T) (*arrow.Schema, arrow.RecordBatch) {
	t.Helper()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)

	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()
	b.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2, 3}, nil)
	b.Field(1).(*array.StringBuilder).AppendValues([]string{"alice", "bob", "carol"}, nil)

	batch := b.NewRecordBatch()
	t.Cleanup(batch.Release)
	return schema, batch
}

func writeFixtureParquet(t *testing.T, path string) {
	t.Helper()
	schema, batch := writeFixtureBatch(t)

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create parquet fixture: %v", err)
	}
	defer f.Close()

	writer, err := pqarrow.NewFileWriter(schema, f, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps())
	if err != nil {
		t.Fatalf("new parquet writer: %v", err)
	}
	if err := writer.WriteBuffered(batch); err != nil {
		t.Fatalf("write parquet batch: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close parquet writer: %v", err)
	}
}

func writeFixtureIPC(t *testing.T, path string) {
	t.Helper()
	schema, batch := writeFixtureBatch(t)

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create ipc fixture: %v", err)
	}
	defer f.Close()

	writer, err := ipc.NewFileWriter(f, ipc.WithSchema(schema), ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		t.Fatalf("new ipc writer: %v", err)
	}
	if err := writer.Write(batch); err != nil {
		t.Fatalf("write ipc batch: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close ipc writer: %v", err)
	}
}
