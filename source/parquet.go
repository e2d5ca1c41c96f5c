package source

import (
	"context"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/dfrcore/dfr/dtype"
)

// parquetAdapter reads a Parquet file's footer schema and row groups
// directly via arrow-go, with no DuckDB round-trip and no type inference:
// the dtype each column carries is exactly what the file's own schema
// declares.
type parquetAdapter struct {
	path string
}

func openParquet(d Descriptor) (Adapter, error) {
	if _, err := os.Stat(d.Path); err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	return &parquetAdapter{path: d.Path}, nil
}

func (a *parquetAdapter) Close() error { return nil }

func (a *parquetAdapter) open() (*file.Reader, *pqarrow.FileReader, error) {
	rdr, err := file.OpenParquetFile(a.path, false)
	if err != nil {
		return nil, nil, fmt.Errorf("open parquet file: %w", err)
	}
	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		rdr.Close()
		return nil, nil, fmt.Errorf("open parquet reader: %w", err)
	}
	return rdr, fr, nil
}

func (a *parquetAdapter) ProbeSchema(ctx context.Context) (dtype.Schema, error) {
	rdr, fr, err := a.open()
	if err != nil {
		return nil, err
	}
	defer rdr.Close()

	schema, err := fr.Schema()
	if err != nil {
		return nil, fmt.Errorf("read parquet schema: %w", err)
	}
	return dtype.FromArrowSchema(schema)
}

func (a *parquetAdapter) Scan(ctx context.Context, opts ScanOptions) (array.RecordReader, error) {
	rdr, fr, err := a.open()
	if err != nil {
		return nil, err
	}
	defer rdr.Close()

	schema, err := fr.Schema()
	if err != nil {
		return nil, fmt.Errorf("read parquet schema: %w", err)
	}

	var colIndices []int
	if len(opts.Columns) > 0 {
		for _, name := range opts.Columns {
			idx := schema.FieldIndices(name)
			if len(idx) == 0 {
				return nil, fmt.Errorf("column %q not found in parquet file", name)
			}
			colIndices = append(colIndices, idx[0])
		}
	}

	reader, err := fr.GetRecordReader(ctx, colIndices, nil)
	if err != nil {
		return nil, fmt.Errorf("read parquet table: %w", err)
	}

	if opts.Offset > 0 || opts.Limit > 0 {
		return newWindowedReader(reader, opts.Offset, opts.Limit), nil
	}
	return reader, nil
}
