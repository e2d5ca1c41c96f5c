package columnar

import (
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/dfrcore/dfr/dtype"
)

func sampleFrame(t *testing.T) *Frame {
	t.Helper()
	schema := dtype.Schema{
		{Name: "id", Type: dtype.Int64},
		{Name: "amount", Type: dtype.Float64},
	}
	reader := newReaderFrom(t, schema, func(b *array.RecordBuilder) {
		b.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2, 3}, nil)
		b.Field(1).(*array.Float64Builder).AppendValues([]float64{10, 0, 30}, []bool{true, false, true})
	})
	frame, err := CollectStreaming(context.Background(), reader, schema, 0)
	if err != nil {
		t.Fatalf("CollectStreaming: %v", err)
	}
	t.Cleanup(frame.Release)
	return frame
}

func TestFrameRow(t *testing.T) {
	frame := sampleFrame(t)
	row, err := frame.Row(1)
	if err != nil {
		t.Fatalf("Row: %v", err)
	}
	if row[0] != int64(2) {
		t.Errorf("row[0] = %v, want 2", row[0])
	}
	if row[1] != nil {
		t.Errorf("row[1] = %v, want nil (null amount)", row[1])
	}
}

func TestFrameRowOutOfRange(t *testing.T) {
	frame := sampleFrame(t)
	if _, err := frame.Row(-1); err == nil {
		t.Error("expected error for negative row index")
	}
	if _, err := frame.Row(frame.NumRows()); err == nil {
		t.Error("expected error for row index == NumRows")
	}
}

func TestFrameIterRowsStopsEarly(t *testing.T) {
	frame := sampleFrame(t)
	var seen []int64
	err := frame.IterRows(context.Background(), 0, frame.NumRows(), func(index int64, row []any) bool {
		seen = append(seen, index)
		return index < 1
	})
	if err != nil {
		t.Fatalf("IterRows: %v", err)
	}
	if len(seen) != 2 {
		t.Errorf("IterRows visited %v rows, want 2 (stopped early)", seen)
	}
}

func TestFrameColumnF64(t *testing.T) {
	frame := sampleFrame(t)
	values, valid, err := frame.ColumnF64("amount")
	if err != nil {
		t.Fatalf("ColumnF64: %v", err)
	}
	if valid[1] {
		t.Error("expected amount[1] to be invalid (null)")
	}
	if values[0] != 10 || values[2] != 30 {
		t.Errorf("values = %v, want [10 _ 30]", values)
	}
}

func TestFrameColumnF64RejectsNonNumeric(t *testing.T) {
	schema := dtype.Schema{{Name: "label", Type: dtype.String}}
	reader := newReaderFrom(t, schema, func(b *array.RecordBuilder) {
		b.Field(0).(*array.StringBuilder).AppendValues([]string{"a"}, nil)
	})
	frame, err := CollectStreaming(context.Background(), reader, schema, 0)
	if err != nil {
		t.Fatalf("CollectStreaming: %v", err)
	}
	defer frame.Release()

	if _, _, err := frame.ColumnF64("label"); err == nil {
		t.Error("expected error for a non-numeric column")
	}
}

func TestFrameColumnI64(t *testing.T) {
	frame := sampleFrame(t)
	values, valid, err := frame.ColumnI64("id")
	if err != nil {
		t.Fatalf("ColumnI64: %v", err)
	}
	if len(values) != 3 || !valid[0] || values[0] != 1 {
		t.Errorf("values = %v valid = %v", values, valid)
	}
}

func TestFrameNumericBounds(t *testing.T) {
	frame := sampleFrame(t)
	min, max, nullCount, err := frame.NumericBounds("amount")
	if err != nil {
		t.Fatalf("NumericBounds: %v", err)
	}
	if min != 10 || max != 30 || nullCount != 1 {
		t.Errorf("NumericBounds = (%v, %v, %v), want (10, 30, 1)", min, max, nullCount)
	}
}

func TestFrameNumericBoundsAllNull(t *testing.T) {
	schema := dtype.Schema{{Name: "v", Type: dtype.Float64}}
	reader := newReaderFrom(t, schema, func(b *array.RecordBuilder) {
		b.Field(0).(*array.Float64Builder).AppendValues([]float64{0, 0}, []bool{false, false})
	})
	frame, err := CollectStreaming(context.Background(), reader, schema, 0)
	if err != nil {
		t.Fatalf("CollectStreaming: %v", err)
	}
	defer frame.Release()

	if _, _, _, err := frame.NumericBounds("v"); err == nil {
		t.Error("expected error when every value is null")
	}
}
