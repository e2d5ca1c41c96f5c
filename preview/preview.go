// Package preview computes and caches PreviewResult values for a lazy
// plan, keyed by its content-addressed plan.Hash. Concurrent requests for
// the same in-flight hash attach to the one execution already underway
// rather than each running the plan themselves.
package preview

import (
	"context"
	"fmt"
	"time"

	"github.com/dfrcore/dfr/columnar"
	"github.com/dfrcore/dfr/dtype"
	"github.com/dfrcore/dfr/op"
	"github.com/dfrcore/dfr/plan"
	"github.com/dfrcore/dfr/source"
)

// ColumnStat is one column's summary over the preview row window.
type ColumnStat struct {
	Name       string      `json:"name" msgpack:"name"`
	Dtype      dtype.Dtype `json:"dtype" msgpack:"dtype"`
	Min        float64     `json:"min,omitempty" msgpack:"min,omitempty"`
	Max        float64     `json:"max,omitempty" msgpack:"max,omitempty"`
	HasBounds  bool        `json:"has_bounds" msgpack:"has_bounds"`
	NullCount  int64       `json:"null_count" msgpack:"null_count"`
	ErrorCount int64       `json:"error_count" msgpack:"error_count"`
}

// Result is the materialized, display-ready preview of a plan: header
// names, stringified rows capped at the configured preview row limit, the
// schema's dtypes, the pipeline's true post-filter row count (TotalRows,
// which may exceed PreviewRows once the dataset outgrows the preview
// window), and per-column stats computed over the preview window only —
// never the whole dataset.
type Result struct {
	Headers     []string     `json:"headers" msgpack:"headers"`
	Rows        [][]string   `json:"rows" msgpack:"rows"`
	Dtypes      []dtype.Dtype `json:"dtypes" msgpack:"dtypes"`
	TotalRows   int64        `json:"total_rows" msgpack:"total_rows"`
	PreviewRows int64        `json:"preview_rows" msgpack:"preview_rows"`
	Stats       []ColumnStat `json:"stats" msgpack:"stats"`
}

// Execute runs p against its source, capped at rowLimit rows, and renders
// a Result. It is the uncached, single-shot computation Cache.Request
// wraps with memoization and single-flight deduplication.
func Execute(ctx context.Context, p *plan.LazyPlan, rowLimit int64) (Result, error) {
	frame, errorsByColumn, err := runCapped(ctx, p, rowLimit)
	if err != nil {
		return Result{}, err
	}
	defer frame.Release()

	total, err := countRows(ctx, p)
	if err != nil {
		return Result{}, err
	}

	return render(frame, errorsByColumn, total), nil
}

// Frame runs p capped at rowLimit rows the same way Execute does, but
// returns the materialized columnar.Frame itself rather than a
// stringified Result, for callers (plot extracts) that need typed
// column access. The caller must call Release on the returned frame.
func Frame(ctx context.Context, p *plan.LazyPlan, rowLimit int64) (*columnar.Frame, error) {
	frame, _, err := runCapped(ctx, p, rowLimit)
	return frame, err
}

func render(frame *columnar.Frame, errorsByColumn map[string]int64, totalRows int64) Result {
	schema := frame.Schema()
	headers := schema.Names()
	dtypes := make([]dtype.Dtype, len(schema))
	for i, f := range schema {
		dtypes[i] = f.Type
	}

	n := frame.NumRows()
	rows := make([][]string, 0, n)
	for i := int64(0); i < n; i++ {
		row, err := frame.Row(i)
		if err != nil {
			continue
		}
		rows = append(rows, stringifyRow(row))
	}

	rawStats := frame.Stats()
	stats := make([]ColumnStat, len(rawStats))
	for i, s := range rawStats {
		stats[i] = ColumnStat{
			Name:       s.Column,
			Dtype:      s.Type,
			Min:        s.Min,
			Max:        s.Max,
			HasBounds:  s.HasBounds,
			NullCount:  s.NullCount,
			ErrorCount: errorsByColumn[s.Column],
		}
	}

	return Result{
		Headers:     headers,
		Rows:        rows,
		Dtypes:      dtypes,
		TotalRows:   totalRows,
		PreviewRows: n,
		Stats:       stats,
	}
}

// runCapped executes p's source through every operation in p.Ops via
// columnar.Apply, capped at rowLimit output rows, and returns the
// materialized frame along with a per-column tally of coercion errors
// (CastColumn, ParseDatetime failures) accumulated along the way.
func runCapped(ctx context.Context, p *plan.LazyPlan, rowLimit int64) (*columnar.Frame, map[string]int64, error) {
	// A scan-level limit is applied only to an empty pipeline: filters,
	// sorts and fills must see every source row before the output is capped.
	opts := source.ScanOptions{}
	if len(p.Ops) == 0 {
		opts.Limit = rowLimit
	}
	reader, closeFn, err := p.Execute(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	defer closeFn()

	errorsByColumn := map[string]int64{}

	current := reader
	currentSchema, err := dtype.FromArrowSchema(current.Schema())
	if err != nil {
		return nil, nil, err
	}

	for _, o := range p.Ops {
		out, newSchema, stats, err := columnar.Apply(ctx, current, o, currentSchema)
		if err != nil {
			return nil, nil, err
		}
		current = out
		currentSchema = newSchema
		if stats != nil && stats.ErrorCount > 0 {
			if col := errorColumnFor(o); col != "" {
				errorsByColumn[col] += stats.ErrorCount
			}
		}
	}

	frame, err := columnar.CollectStreaming(ctx, current, currentSchema, rowLimit)
	if err != nil {
		return nil, nil, err
	}
	return frame, errorsByColumn, nil
}

// countRows runs p's source and every operation in p.Ops with no row cap
// and reports how many rows survive — the dataset's true post-filter size,
// which runCapped's windowed, rowLimit-bounded pass cannot report once the
// dataset exceeds the preview window. Filter/Sort/Limit still benefit from
// source.Pushdown when the adapter supports it; the operations that
// columnar.Apply materializes (Sort, FillNull, CastColumn, ParseDatetime)
// hold their whole input in memory again during this pass.
func countRows(ctx context.Context, p *plan.LazyPlan) (int64, error) {
	reader, closeFn, err := p.Execute(ctx, source.ScanOptions{})
	if err != nil {
		return 0, err
	}
	defer closeFn()

	current := reader
	currentSchema, err := dtype.FromArrowSchema(current.Schema())
	if err != nil {
		return 0, err
	}

	for _, o := range p.Ops {
		out, newSchema, _, err := columnar.Apply(ctx, current, o, currentSchema)
		if err != nil {
			return 0, err
		}
		current = out
		currentSchema = newSchema
	}
	defer current.Release()

	var total int64
	for current.Next() {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		total += current.RecordBatch().NumRows()
	}
	if err := current.Err(); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return total, nil
}

// errorColumnFor reports which column an operation's coercion errors (if
// any) should be attributed to in Result.Stats.
func errorColumnFor(o op.Operation) string {
	switch v := o.(type) {
	case op.CastColumn:
		return v.Column
	case op.ParseDatetime:
		return v.Column
	default:
		return ""
	}
}

func stringifyRow(row []any) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = stringifyCell(v)
	}
	return out
}

// stringifyCell renders a boxed cell value for display, matching the
// textual form a preview collaborator would show in a grid. Nulls render
// as the empty string.
func stringifyCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", t)
	}
}
