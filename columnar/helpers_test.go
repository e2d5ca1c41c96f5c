package columnar

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/dfrcore/dfr/dtype"
)

// newReaderFrom builds a single-batch array.RecordReader from schema,
// populated via fill, for exercising Apply without a real source adapter.
func newReaderFrom(t *testing.T, schema dtype.Schema, fill func(b *array.RecordBuilder)) *sliceReader {
	t.Helper()
	arrowSchema := schema.ArrowSchema()
	b := array.NewRecordBuilder(memory.DefaultAllocator, arrowSchema)
	defer b.Release()
	fill(b)
	rec := b.NewRecordBatch()
	defer rec.Release()
	return newSliceReader(arrowSchema, []arrow.RecordBatch{rec})
}
