package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/dfrcore/dfr/dtype"
)

func buildBatch(t *testing.T, schema dtype.Schema, fill func(b *array.RecordBuilder)) arrow.RecordBatch {
	t.Helper()
	b := array.NewRecordBuilder(memory.DefaultAllocator, schema.ArrowSchema())
	defer b.Release()
	fill(b)
	batch := b.NewRecordBatch()
	t.Cleanup(batch.Release)
	return batch
}

func TestCSVSinkWritesHeaderAndRows(t *testing.T) {
	schema := dtype.Schema{{Name: "name", Type: dtype.String}, {Name: "amount", Type: dtype.Int64}}
	batch := buildBatch(t, schema, func(b *array.RecordBuilder) {
		b.Field(0).(*array.StringBuilder).AppendValues([]string{"alice", "bob"}, nil)
		b.Field(1).(*array.Int64Builder).AppendValues([]int64{10, 20}, nil)
	})

	var buf bytes.Buffer
	sink := newCSVSink(&buf)
	if err := sink.Write(schema, batch); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := buf.String()
	want := "name,amount\nalice,10\nbob,20\n"
	if got != want {
		t.Errorf("CSV output = %q, want %q", got, want)
	}
}

func TestCSVSinkRendersNullsAsEmpty(t *testing.T) {
	schema := dtype.Schema{{Name: "amount", Type: dtype.Int64}}
	batch := buildBatch(t, schema, func(b *array.RecordBuilder) {
		b.Field(0).(*array.Int64Builder).AppendValues([]int64{0}, []bool{false})
	})

	var buf bytes.Buffer
	sink := newCSVSink(&buf)
	if err := sink.Write(schema, batch); err != nil {
		t.Fatalf("Write: %v", err)
	}
	sink.Close()

	if !strings.Contains(buf.String(), "amount\n\n") {
		t.Errorf("expected a null cell to render as empty, got %q", buf.String())
	}
}

func TestCSVSinkQuotesSpecialCharacters(t *testing.T) {
	schema := dtype.Schema{{Name: "note", Type: dtype.String}}
	batch := buildBatch(t, schema, func(b *array.RecordBuilder) {
		b.Field(0).(*array.StringBuilder).AppendValues([]string{"a,b\nc"}, nil)
	})

	var buf bytes.Buffer
	sink := newCSVSink(&buf)
	if err := sink.Write(schema, batch); err != nil {
		t.Fatalf("Write: %v", err)
	}
	sink.Close()

	if !strings.Contains(buf.String(), `"a,b`+"\n"+`c"`) {
		t.Errorf("expected comma/newline cell to be quoted, got %q", buf.String())
	}
}
