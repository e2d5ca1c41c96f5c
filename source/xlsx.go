package source

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/xuri/excelize/v2"

	"github.com/dfrcore/dfr/dtype"
)

// cacheSuffix names the Parquet file xlsxAdapter materializes a worksheet
// into on first open, beside the source file.
const cacheSuffix = ".dfrcache.parquet"

// xlsxAdapter reads one worksheet of an XLSX workbook. Because XLSX has no
// native columnar representation, the worksheet is materialized into a
// Parquet file beside the source on first open and every subsequent open
// reopens that cache directly through parquetAdapter, avoiding re-parsing
// the sheet.
type xlsxAdapter struct {
	desc      Descriptor
	cachePath string
	inner     *parquetAdapter
}

func openXLSX(ctx context.Context, d Descriptor) (Adapter, error) {
	cachePath := d.Path + cacheSuffix

	if _, err := os.Stat(cachePath); err != nil {
		if err := materializeXLSXCache(d, cachePath); err != nil {
			return nil, err
		}
	}

	inner, err := openParquet(Descriptor{Format: FormatParquet, Path: cachePath})
	if err != nil {
		return nil, err
	}
	return &xlsxAdapter{desc: d, cachePath: cachePath, inner: inner.(*parquetAdapter)}, nil
}

func (a *xlsxAdapter) Close() error { return a.inner.Close() }

func (a *xlsxAdapter) ProbeSchema(ctx context.Context) (dtype.Schema, error) {
	return a.inner.ProbeSchema(ctx)
}

func (a *xlsxAdapter) Scan(ctx context.Context, opts ScanOptions) (array.RecordReader, error) {
	return a.inner.Scan(ctx, opts)
}

func materializeXLSXCache(d Descriptor, cachePath string) error {
	f, err := excelize.OpenFile(d.Path)
	if err != nil {
		return fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheet := d.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return fmt.Errorf("xlsx file has no worksheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("read xlsx sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("xlsx sheet %q is empty", sheet)
	}

	header := rows[0]
	dataRows := rows[1:]

	columns := make([][]string, len(header))
	for i := range columns {
		columns[i] = make([]string, len(dataRows))
	}
	for r, row := range dataRows {
		for c := range header {
			if c < len(row) {
				columns[c][r] = row[c]
			}
		}
	}

	fields := make([]arrow.Field, len(header))
	dtypes := make([]dtype.Dtype, len(header))
	for i, name := range header {
		dt := inferColumnDtype(columns[i])
		dtypes[i] = dt
		fields[i] = arrow.Field{Name: name, Type: dt.Arrow(), Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer builder.Release()

	for i, dt := range dtypes {
		appendStringColumn(builder.Field(i), dt, columns[i])
	}

	record := builder.NewRecordBatch()
	defer record.Release()

	return writeParquetCache(cachePath, schema, record)
}

// inferColumnDtype infers a single dtype for a column of raw cell text,
// the same widen-to-common-type rule NDJSON inference uses: every
// non-empty value must parse as the candidate type, else fall back to a
// wider one, with String as the universal fallback.
func inferColumnDtype(values []string) dtype.Dtype {
	sawValue := false
	allInt := true
	allFloat := true
	allBool := true

	for _, v := range values {
		if v == "" {
			continue
		}
		sawValue = true
		if allInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				allFloat = false
			}
		}
		if allBool {
			if _, err := strconv.ParseBool(v); err != nil {
				allBool = false
			}
		}
	}

	switch {
	case !sawValue:
		return dtype.String
	case allInt:
		return dtype.Int64
	case allFloat:
		return dtype.Float64
	case allBool:
		return dtype.Boolean
	default:
		return dtype.String
	}
}

func appendStringColumn(b array.Builder, dt dtype.Dtype, values []string) {
	for _, v := range values {
		if v == "" {
			b.AppendNull()
			continue
		}
		switch dt {
		case dtype.Int64:
			n, _ := strconv.ParseInt(v, 10, 64)
			b.(*array.Int64Builder).Append(n)
		case dtype.Float64:
			n, _ := strconv.ParseFloat(v, 64)
			b.(*array.Float64Builder).Append(n)
		case dtype.Boolean:
			bb, _ := strconv.ParseBool(v)
			b.(*array.BooleanBuilder).Append(bb)
		default:
			b.(*array.StringBuilder).Append(strings.TrimSpace(v))
		}
	}
}

// writeParquetCache writes record to path with snappy compression, the
// same codec the export runner uses for Parquet output.
func writeParquetCache(path string, schema *arrow.Schema, record arrow.RecordBatch) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create parquet cache: %w", err)
	}
	defer out.Close()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	writer, err := pqarrow.NewFileWriter(schema, out, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}
	defer writer.Close()

	if err := writer.WriteBuffered(record); err != nil {
		return fmt.Errorf("write parquet cache: %w", err)
	}
	return nil
}
