package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/dfrcore/dfr/dtype"
)

// csvSink writes RFC-4180 CSV: header row, LF newlines, quoting on any of
// `,"\n\r`, nulls rendered as the empty string — stdlib encoding/csv's
// default Writer already implements exactly this, so it is used directly
// rather than hand-rolled.
type csvSink struct {
	w             *csv.Writer
	headerWritten bool
}

func newCSVSink(w io.Writer) *csvSink {
	return &csvSink{w: csv.NewWriter(w)}
}

func (s *csvSink) Write(schema dtype.Schema, batch arrow.RecordBatch) error {
	if !s.headerWritten {
		if err := s.w.Write(schema.Names()); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		s.headerWritten = true
	}

	n := int(batch.NumRows())
	for row := 0; row < n; row++ {
		record := make([]string, len(schema))
		for col := range schema {
			record[col] = csvCell(batch.Column(col), row)
		}
		if err := s.w.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	return nil
}

func (s *csvSink) Close() error {
	s.w.Flush()
	return s.w.Error()
}

func csvCell(col arrow.Array, row int) string {
	if col.IsNull(row) {
		return ""
	}
	switch c := col.(type) {
	case *array.String:
		return c.Value(row)
	case *array.Int32:
		return fmt.Sprintf("%d", c.Value(row))
	case *array.Int64:
		return fmt.Sprintf("%d", c.Value(row))
	case *array.Float32:
		return fmt.Sprintf("%g", c.Value(row))
	case *array.Float64:
		return fmt.Sprintf("%g", c.Value(row))
	case *array.Boolean:
		if c.Value(row) {
			return "true"
		}
		return "false"
	case *array.Date32:
		return c.Value(row).ToTime().Format("2006-01-02")
	case *array.Timestamp:
		unit := arrow.Microsecond
		if tt, ok := c.DataType().(*arrow.TimestampType); ok {
			unit = tt.Unit
		}
		return c.Value(row).ToTime(unit).UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", col)
	}
}
