package export

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/dfrcore/dfr/dtype"
)

// parquetRowGroupLength is the row group size the export contract
// requires: Date -> DATE, Datetime -> TIMESTAMP_MICROS (UTC), snappy
// compression, 65,536-row row groups.
const parquetRowGroupLength = 65536

// parquetSink writes batches to a single Parquet file via pqarrow's
// buffered file writer, which splits WriteBuffered calls into row groups
// of at most parquetRowGroupLength rows.
type parquetSink struct {
	writer *pqarrow.FileWriter
}

func newParquetSink(w io.Writer, schema dtype.Schema) (*parquetSink, error) {
	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithMaxRowGroupLength(parquetRowGroupLength),
	)
	writer, err := pqarrow.NewFileWriter(schema.ArrowSchema(), w, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return nil, err
	}
	return &parquetSink{writer: writer}, nil
}

func (s *parquetSink) Write(schema dtype.Schema, batch arrow.RecordBatch) error {
	return s.writer.WriteBuffered(batch)
}

func (s *parquetSink) Close() error {
	return s.writer.Close()
}
