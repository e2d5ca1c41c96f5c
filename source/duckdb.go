package source

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/dfrcore/dfr/dtype"
	"github.com/dfrcore/dfr/internal/sqlquote"
)

// duckdbAdapter backs csv, tsv, ndjson and ad-hoc sql descriptors through
// an in-process DuckDB connection, exactly the way the integration tests
// stand up DuckDB: sql.Open("duckdb", "") against the blank-imported
// driver.
type duckdbAdapter struct {
	db   *sql.DB
	desc Descriptor
}

func openDuckDB(_ context.Context, d Descriptor) (Adapter, error) {
	if d.Format != FormatSQL {
		if _, err := os.Stat(d.Path); err != nil {
			return nil, fmt.Errorf("open %s file: %w", d.Format, err)
		}
	}
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	return &duckdbAdapter{db: db, desc: d}, nil
}

func (a *duckdbAdapter) Close() error {
	return a.db.Close()
}

// selectQuery builds the base SELECT statement for the descriptor's
// format, without any ordering/filtering/limiting applied.
func (a *duckdbAdapter) selectQuery() (string, error) {
	switch a.desc.Format {
	case FormatSQL:
		return a.desc.Query, nil
	case FormatCSV, FormatTSV:
		delim := a.desc.Delimiter
		if delim == 0 {
			if a.desc.Format == FormatTSV {
				delim = '\t'
			} else {
				delim = ','
			}
		}
		sample := a.desc.SampleSize
		if sample <= 0 {
			sample = 100
		}
		hasHeader := "true"
		if !a.desc.HasHeader {
			hasHeader = "false"
		}
		return fmt.Sprintf(
			"SELECT * FROM read_csv(%s, delim=%s, header=%s, sample_size=%d, all_varchar=false)",
			sqlquote.Literal(a.desc.Path), sqlquote.Literal(string(delim)), hasHeader, sample,
		), nil
	case FormatNDJSON:
		return fmt.Sprintf("SELECT * FROM read_json_auto(%s)", sqlquote.Literal(a.desc.Path)), nil
	default:
		return "", fmt.Errorf("duckdb adapter does not handle format %q", a.desc.Format)
	}
}

func (a *duckdbAdapter) ProbeSchema(ctx context.Context) (dtype.Schema, error) {
	query, err := a.selectQuery()
	if err != nil {
		return nil, err
	}
	rows, err := a.db.QueryContext(ctx, "SELECT * FROM ("+query+") AS t LIMIT 0")
	if err != nil {
		return nil, fmt.Errorf("probe schema: %w", err)
	}
	defer rows.Close()

	cols, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("probe schema: %w", err)
	}

	schema := make(dtype.Schema, 0, len(cols))
	for _, c := range cols {
		dt, ok := duckdbTypeToDtype(c.DatabaseTypeName())
		if !ok {
			return nil, fmt.Errorf("column %q: unsupported duckdb type %q", c.Name(), c.DatabaseTypeName())
		}
		schema = append(schema, dtype.Field{Name: c.Name(), Type: dt})
	}
	return schema, nil
}

// duckdbTypeToDtype maps DuckDB's reported logical type name to the
// engine's closed dtype set. Unrecognized types are rejected rather than
// silently defaulting to String, since a silent widening would make the
// probed schema diverge from what Scan actually produces.
func duckdbTypeToDtype(name string) (dtype.Dtype, bool) {
	switch strings.ToUpper(name) {
	case "TINYINT", "SMALLINT", "INTEGER", "INT4", "INT32":
		return dtype.Int32, true
	case "BIGINT", "HUGEINT", "INT8", "INT64":
		return dtype.Int64, true
	case "FLOAT", "FLOAT4", "REAL":
		return dtype.Float32, true
	case "DOUBLE", "FLOAT8", "DECIMAL", "NUMERIC":
		return dtype.Float64, true
	case "VARCHAR", "TEXT", "STRING", "JSON", "UUID":
		return dtype.String, true
	case "BOOLEAN", "BOOL", "LOGICAL":
		return dtype.Boolean, true
	case "DATE":
		return dtype.Date, true
	case "TIMESTAMP", "TIMESTAMP_S", "TIMESTAMP_MS", "TIMESTAMP_NS", "DATETIME":
		return dtype.Datetime, true
	default:
		return dtype.Invalid, false
	}
}

func (a *duckdbAdapter) Scan(ctx context.Context, opts ScanOptions) (array.RecordReader, error) {
	query, err := a.selectQuery()
	if err != nil {
		return nil, err
	}

	full := "SELECT * FROM (" + query + ") AS t"
	if len(opts.Columns) > 0 {
		cols := make([]string, len(opts.Columns))
		for i, c := range opts.Columns {
			cols[i] = sqlquote.Identifier(c)
		}
		full = "SELECT " + strings.Join(cols, ", ") + " FROM (" + query + ") AS t"
	}
	if opts.Limit > 0 {
		full += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	if opts.Offset > 0 {
		full += fmt.Sprintf(" OFFSET %d", opts.Offset)
	}

	return a.runQuery(ctx, full)
}

// PushdownScan folds a leading prefix of ops into the base query's
// WHERE/ORDER BY/LIMIT/column list. It is a pure optimization: the caller
// (plan.Build) still validates and columnar.Apply still re-applies every
// op in the chain, so an adapter that folds nothing (absorbed == 0) is
// always correct, just slower.
func (a *duckdbAdapter) PushdownScan(ctx context.Context, ops []PushdownOp) (array.RecordReader, int, error) {
	base, err := a.selectQuery()
	if err != nil {
		return nil, 0, err
	}

	var where []string
	var order string
	var limit int64
	var selectCols []string
	absorbed := 0

prefix:
	for _, o := range ops {
		switch o.Tag {
		// A filter or sort after a limit applies to the limited rows only,
		// which one WHERE/ORDER BY ... LIMIT query cannot express.
		case "filter":
			clause, ok := filterClause(o)
			if !ok || limit > 0 {
				break prefix
			}
			where = append(where, clause)
		case "sort":
			if order != "" || limit > 0 {
				break prefix
			}
			dir := "ASC"
			if desc, _ := o.Params["descending"].(bool); desc {
				dir = "DESC"
			}
			order = fmt.Sprintf("%s %s NULLS LAST", sqlquote.Identifier(o.Column), dir)
		case "limit":
			n, _ := o.Params["n"].(int64)
			if n <= 0 {
				break prefix
			}
			if limit == 0 || n < limit {
				limit = n
			}
		case "select_columns":
			cols, _ := o.Params["columns"].([]string)
			if len(cols) == 0 {
				break prefix
			}
			selectCols = cols
		case "drop_column", "rename_column":
			// Folding these changes the result column set/names, which
			// would require rewriting every later reference; simpler and
			// safer to stop pushdown here and let columnar.Apply handle
			// the rest against the unmodified projection.
			break prefix
		default:
			break prefix
		}
		absorbed++
	}

	query := "SELECT "
	if len(selectCols) > 0 {
		quoted := make([]string, len(selectCols))
		for i, c := range selectCols {
			quoted[i] = sqlquote.Identifier(c)
		}
		query += strings.Join(quoted, ", ")
	} else {
		query += "*"
	}
	query += " FROM (" + base + ") AS t"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if order != "" {
		query += " ORDER BY " + order
	}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	reader, err := a.runQuery(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	return reader, absorbed, nil
}

func filterClause(o PushdownOp) (string, bool) {
	pred, _ := o.Params["predicate"].(string)
	value, _ := o.Params["value"].(string)
	col := sqlquote.Identifier(o.Column)
	switch pred {
	case "eq":
		return fmt.Sprintf("%s = %s", col, sqlquote.Literal(value)), true
	case "neq":
		return fmt.Sprintf("%s != %s", col, sqlquote.Literal(value)), true
	case "gt":
		return fmt.Sprintf("%s > %s", col, sqlquote.Literal(value)), true
	case "gte":
		return fmt.Sprintf("%s >= %s", col, sqlquote.Literal(value)), true
	case "lt":
		return fmt.Sprintf("%s < %s", col, sqlquote.Literal(value)), true
	case "lte":
		return fmt.Sprintf("%s <= %s", col, sqlquote.Literal(value)), true
	case "contains":
		return fmt.Sprintf("%s LIKE %s", col, sqlquote.Literal("%"+value+"%")), true
	case "is_null":
		return fmt.Sprintf("%s IS NULL", col), true
	case "is_not_null":
		return fmt.Sprintf("%s IS NOT NULL", col), true
	default:
		return "", false
	}
}

// runQuery executes query and materializes the result as a single Arrow
// record batch, row-scanned through database/sql into column builders.
// DuckDB result sets are expected to be preview/export sized (bounded by
// ScanOptions.Limit upstream), so a single in-memory batch is adequate;
// columnar.Apply consumes it through the same RecordReader interface as
// every other adapter regardless of batch count.
func (a *duckdbAdapter) runQuery(ctx context.Context, query string) (array.RecordReader, error) {
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	fields := make([]arrow.Field, len(colTypes))
	dtypes := make([]dtype.Dtype, len(colTypes))
	for i, c := range colTypes {
		dt, ok := duckdbTypeToDtype(c.DatabaseTypeName())
		if !ok {
			return nil, fmt.Errorf("column %q: unsupported duckdb type %q", c.Name(), c.DatabaseTypeName())
		}
		dtypes[i] = dt
		fields[i] = arrow.Field{Name: c.Name(), Type: dt.Arrow(), Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer builder.Release()

	dest := make([]any, len(colTypes))
	for i := range dest {
		dest[i] = new(any)
	}

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, d := range dest {
			appendValue(builder.Field(i), dtypes[i], *(d.(*any)))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	record := builder.NewRecordBatch()
	defer record.Release()
	return array.NewRecordReader(schema, []arrow.RecordBatch{record})
}

func appendValue(b array.Builder, dt dtype.Dtype, v any) {
	if v == nil {
		b.AppendNull()
		return
	}
	switch dt {
	case dtype.Int32:
		b.(*array.Int32Builder).Append(int32(toInt64(v)))
	case dtype.Int64:
		b.(*array.Int64Builder).Append(toInt64(v))
	case dtype.Float32:
		b.(*array.Float32Builder).Append(float32(toFloat64(v)))
	case dtype.Float64:
		b.(*array.Float64Builder).Append(toFloat64(v))
	case dtype.Boolean:
		bb, _ := v.(bool)
		b.(*array.BooleanBuilder).Append(bb)
	case dtype.Date:
		b.(*array.Date32Builder).Append(toDate32(v))
	case dtype.Datetime:
		b.(*array.TimestampBuilder).Append(toTimestamp(v))
	default:
		b.(*array.StringBuilder).Append(toString(v))
	}
}
