package columnar

import "github.com/dfrcore/dfr/dtype"

// ColumnStats summarizes one column's values over a Frame, feeding the
// preview package's PreviewResult.Stats.
type ColumnStats struct {
	Column    string
	Type      dtype.Dtype
	NullCount int64
	// Min/Max are populated only for numeric columns; both zero otherwise.
	Min, Max float64
	HasBounds bool
}

// Stats computes per-column summaries for every column in the frame.
// Non-numeric columns get only a null count; numeric columns additionally
// get min/max bounds.
func (f *Frame) Stats() []ColumnStats {
	out := make([]ColumnStats, len(f.schema))
	for i, field := range f.schema {
		cs := ColumnStats{Column: field.Name, Type: field.Type}
		if field.Type.IsNumeric() {
			if min, max, nullCount, err := f.NumericBounds(field.Name); err == nil {
				cs.Min, cs.Max, cs.HasBounds = min, max, true
				cs.NullCount = nullCount
			} else {
				cs.NullCount = countNulls(f, i)
			}
		} else {
			cs.NullCount = countNulls(f, i)
		}
		out[i] = cs
	}
	return out
}

func countNulls(f *Frame, col int) int64 {
	var n int64
	for _, b := range f.batches {
		c := b.Column(col)
		for i := 0; i < c.Len(); i++ {
			if c.IsNull(i) {
				n++
			}
		}
	}
	return n
}
