// Package plan builds validated operation pipelines against a source
// descriptor (LazyPlan), computes their content-addressed identity
// (Hash), and opportunistically folds leading operations into the
// source's own query when the source supports it.
package plan

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/dfrcore/dfr/dtype"
	"github.com/dfrcore/dfr/op"
	"github.com/dfrcore/dfr/source"
)

// LazyPlan is a validated (source, ops) pair: every operation has already
// passed op.Validate against the schema that precedes it, so Execute can
// assume the chain is well-formed.
type LazyPlan struct {
	Descriptor  source.Descriptor
	Ops         []op.Operation
	FinalSchema dtype.Schema
}

// Execute opens the plan's source and returns a reader over its rows with
// opts applied at the adapter level (opts.Limit/Offset window the source
// rows before any operation runs; opts is ignored when the adapter folds a
// pushdown prefix instead); the
// caller is still responsible for running every operation in Ops through
// columnar.Apply to get correct output — Execute alone does not apply the
// pipeline.
func (p *LazyPlan) Execute(ctx context.Context, opts source.ScanOptions) (array.RecordReader, func() error, error) {
	adapter, err := source.Open(ctx, p.Descriptor)
	if err != nil {
		return nil, nil, err
	}

	if pd, ok := adapter.(source.Pushdown); ok {
		pdOps := toPushdownOps(p.Ops)
		if len(pdOps) > 0 {
			reader, _, err := pd.PushdownScan(ctx, pdOps)
			if err == nil {
				return reader, adapter.Close, nil
			}
		}
	}

	reader, err := adapter.Scan(ctx, opts)
	if err != nil {
		adapter.Close()
		return nil, nil, err
	}
	return reader, adapter.Close, nil
}

// toPushdownOps converts the leading prefix of p.Ops (up to the first op
// without a pushdown shape) into source.PushdownOp values.
func toPushdownOps(ops []op.Operation) []source.PushdownOp {
	var out []source.PushdownOp
	for _, o := range ops {
		switch v := o.(type) {
		case op.Filter:
			out = append(out, source.PushdownOp{
				Tag: "filter", Column: v.Column,
				Params: map[string]any{"predicate": string(v.Predicate), "value": v.Value},
			})
		case op.Sort:
			out = append(out, source.PushdownOp{
				Tag: "sort", Column: v.Column,
				Params: map[string]any{"descending": v.Descending},
			})
		case op.Limit:
			out = append(out, source.PushdownOp{
				Tag:    "limit",
				Params: map[string]any{"n": v.N},
			})
		case op.SelectColumns:
			out = append(out, source.PushdownOp{
				Tag:    "select_columns",
				Params: map[string]any{"columns": v.Columns},
			})
		case op.DropColumn, op.RenameColumn:
			return out
		default:
			return out
		}
	}
	return out
}
