package plan

import (
	"context"
	"errors"
	"time"

	"github.com/dfrcore/dfr/dtype"
	"github.com/dfrcore/dfr/internal/engerr"
	"github.com/dfrcore/dfr/op"
	"github.com/dfrcore/dfr/source"
)

// Build opens descriptor, probes its schema (bounded by probeTimeout), and
// folds every operation in ops through op.Validate in order. The first
// validation failure aborts the build with engerr.KindInvalidPlan (or
// engerr.KindTypeError, when the failure is a dtype incompatibility);
// callers use this to decide whether to accept a pipeline edit, leaving
// prior state untouched on failure.
func Build(ctx context.Context, descriptor source.Descriptor, ops []op.Operation, probeTimeout time.Duration) (*LazyPlan, error) {
	adapter, err := source.Open(ctx, descriptor)
	if err != nil {
		return nil, engerr.New(engerr.KindIoError, "open source: %v", err)
	}
	defer adapter.Close()

	schema, err := source.ProbeWithTimeout(ctx, adapter, probeTimeout)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, engerr.New(engerr.KindTimeout, "probe schema: %v", err)
		}
		return nil, engerr.New(engerr.KindSchemaMismatch, "probe schema: %v", err)
	}

	current := schema
	for i, o := range ops {
		next, verr := op.Validate(o, current)
		if verr != nil {
			if ve, ok := verr.(*op.ValidationError); ok {
				if ve.IsTypeErr {
					return nil, engerr.New(engerr.KindTypeError, "operation %d: %s", i, ve.Msg)
				}
				return nil, engerr.NewInvalidPlan(i, ve.Msg)
			}
			return nil, engerr.NewInvalidPlan(i, verr.Error())
		}
		current = next
	}

	return &LazyPlan{Descriptor: descriptor, Ops: append([]op.Operation(nil), ops...), FinalSchema: current}, nil
}

// SchemaAt returns the schema that results from applying ops[:n] to base,
// used by session mutation methods to validate a single new operation
// against the pipeline's current tail schema without rebuilding the whole
// plan from scratch.
func SchemaAt(base dtype.Schema, ops []op.Operation, n int) (dtype.Schema, error) {
	current := base
	for i := 0; i < n && i < len(ops); i++ {
		next, err := op.Validate(ops[i], current)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}
