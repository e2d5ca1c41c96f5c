package columnar

import (
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/dfrcore/dfr/dtype"
)

func TestCollectStreamingRespectsLimit(t *testing.T) {
	schema := dtype.Schema{{Name: "id", Type: dtype.Int64}}
	reader := newReaderFrom(t, schema, func(b *array.RecordBuilder) {
		b.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2, 3, 4, 5}, nil)
	})

	frame, err := CollectStreaming(context.Background(), reader, schema, 3)
	if err != nil {
		t.Fatalf("CollectStreaming: %v", err)
	}
	defer frame.Release()
	if frame.NumRows() != 3 {
		t.Errorf("NumRows = %d, want 3", frame.NumRows())
	}
}

func TestCollectStreamingUnboundedWithZeroLimit(t *testing.T) {
	schema := dtype.Schema{{Name: "id", Type: dtype.Int64}}
	reader := newReaderFrom(t, schema, func(b *array.RecordBuilder) {
		b.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2, 3}, nil)
	})

	frame, err := CollectStreaming(context.Background(), reader, schema, 0)
	if err != nil {
		t.Fatalf("CollectStreaming: %v", err)
	}
	defer frame.Release()
	if frame.NumRows() != 3 {
		t.Errorf("NumRows = %d, want 3 (unbounded)", frame.NumRows())
	}
}

func TestCollectStreamingRespectsCancelledContext(t *testing.T) {
	schema := dtype.Schema{{Name: "id", Type: dtype.Int64}}
	reader := newReaderFrom(t, schema, func(b *array.RecordBuilder) {
		b.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2, 3}, nil)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := CollectStreaming(ctx, reader, schema, 0); err == nil {
		t.Error("expected an error for a pre-cancelled context")
	}
}
