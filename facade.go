package dfr

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dfrcore/dfr/export"
	"github.com/dfrcore/dfr/internal/engerr"
	"github.com/dfrcore/dfr/op"
	"github.com/dfrcore/dfr/persist"
	"github.com/dfrcore/dfr/plan"
	"github.com/dfrcore/dfr/preview"
	"github.com/dfrcore/dfr/source"
)

// Facade is the engine's public command surface. One Facade owns exactly
// one Session, mutated exclusively by its worker goroutine so every
// command observes a total order of state transitions regardless of
// which caller goroutine issued it.
type Facade struct {
	cfg     EngineConfig
	w       *worker
	cache   *preview.Cache
	session *Session
	chooser FileChooser
}

// NewFacade starts the worker goroutine and preview cache for a new,
// sourceless session. The worker goroutine runs until ctx is cancelled.
func NewFacade(ctx context.Context, cfg EngineConfig, chooser FileChooser) (*Facade, error) {
	cfg = cfg.normalize()

	cache, err := preview.NewCache(int64(cfg.PreviewRowLimit), cfg.CacheEntries, cfg.CacheRowFootprint)
	if err != nil {
		return nil, fmt.Errorf("new preview cache: %w", err)
	}

	f := &Facade{
		cfg:     cfg,
		w:       newWorker(cfg.ExecutorParallelism),
		cache:   cache,
		session: newSession(),
		chooser: chooser,
	}
	go f.w.run(ctx)
	return f, nil
}

// Close does nothing and does not stop the worker goroutine: the worker
// stops when the ctx passed to NewFacade is cancelled.
func (f *Facade) Close() {
	// run exits when its ctx is cancelled; nothing else to release here,
	// since the worker holds no OS resources of its own.
}

// FileMetadata answers GetFileMetadata.
type FileMetadata struct {
	Path       string `json:"path"`
	SourceType string `json:"source_type"`
	Size       int64  `json:"size"`
}

// OpenFile probes path's format by extension then magic bytes, installs
// it as the session's source with an empty pipeline, and clears the
// preview cache and history so stale state from a prior file can't leak
// through.
func (f *Facade) OpenFile(ctx context.Context, path string) (string, error) {
	format, err := detectFormat(path)
	if err != nil {
		return "", err
	}
	descriptor := source.Descriptor{Format: format, Path: path}

	adapter, err := source.Open(ctx, descriptor)
	if err != nil {
		return "", engerr.New(engerr.KindIoError, "open %s: %v", path, err)
	}
	if _, err := source.ProbeWithTimeout(ctx, adapter, f.cfg.ProbeTimeout); err != nil {
		adapter.Close()
		return "", engerr.New(engerr.KindSchemaMismatch, "probe %s: %v", path, err)
	}
	adapter.Close()

	var msg string
	err = f.w.submit(ctx, func(ctx context.Context) {
		f.session = newSession()
		d := descriptor
		f.session.Source = &d
		f.cache.Invalidate()
		msg = fmt.Sprintf("opened %s as %s", path, format)
	})
	if err != nil {
		return "", err
	}
	return msg, nil
}

// requireSource returns a snapshot of the session's descriptor and
// pipeline, or KindNoSource if no file has been opened yet. Must be
// called from within a worker-submitted function.
func (s *Session) requireSource() (source.Descriptor, []op.Operation, error) {
	if s.Source == nil {
		return source.Descriptor{}, nil, engerr.New(engerr.KindNoSource, "no source open")
	}
	return *s.Source, append([]op.Operation(nil), s.Ops()...), nil
}

// buildPlan builds a LazyPlan from the session's current descriptor and
// pipeline. Must be called from within a worker-submitted function.
func (f *Facade) buildPlan(ctx context.Context) (*plan.LazyPlan, error) {
	descriptor, ops, err := f.session.requireSource()
	if err != nil {
		return nil, err
	}
	return plan.Build(ctx, descriptor, ops, f.cfg.ProbeTimeout)
}

// PreviewStatus is GetPreview's result: either a ready Result, or a
// "still computing" marker the caller may poll again after.
type PreviewStatus struct {
	Result PreviewResult
	Ready  bool
}

// GetPreview returns the cached preview for the session's current plan,
// computing it if necessary. If computation doesn't finish within
// EngineConfig.GetPreviewWaitTimeout, it returns a not-ready marker; the
// computation continues in the background and populates the cache for a
// later poll.
func (f *Facade) GetPreview(ctx context.Context) (PreviewStatus, error) {
	var p *plan.LazyPlan
	var buildErr error
	if err := f.w.submit(ctx, func(ctx context.Context) {
		p, buildErr = f.buildPlan(ctx)
	}); err != nil {
		return PreviewStatus{}, err
	}
	if buildErr != nil {
		return PreviewStatus{}, buildErr
	}

	type outcome struct {
		res preview.Result
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		err := f.w.pool.Go(ctx, func(ctx context.Context) error {
			res, _, err := f.cache.Request(ctx, p)
			ch <- outcome{res, err}
			return err
		})
		if err != nil {
			select {
			case ch <- outcome{err: err}:
			default:
			}
		}
	}()

	select {
	case o := <-ch:
		if o.err != nil {
			return PreviewStatus{}, o.err
		}
		return PreviewStatus{Result: o.res, Ready: true}, nil
	case <-time.After(f.cfg.GetPreviewWaitTimeout):
		return PreviewStatus{Ready: false}, nil
	case <-ctx.Done():
		return PreviewStatus{}, ctx.Err()
	}
}

// AddOperation parses in into an Operation, validates it against the
// session's current tail schema, and appends it. On validation failure
// the session is left unchanged.
func (f *Facade) AddOperation(ctx context.Context, in op.Input) (string, error) {
	o, err := op.Parse(in)
	if err != nil {
		return "", engerr.New(engerr.KindInvalidPlan, "parse operation: %v", err)
	}

	var desc string
	var opErr error
	err = f.w.submit(ctx, func(ctx context.Context) {
		descriptor, ops, rerr := f.session.requireSource()
		if rerr != nil {
			opErr = rerr
			return
		}
		adapter, aerr := source.Open(ctx, descriptor)
		if aerr != nil {
			opErr = engerr.New(engerr.KindIoError, "open source: %v", aerr)
			return
		}
		defer adapter.Close()
		base, perr := source.ProbeWithTimeout(ctx, adapter, f.cfg.ProbeTimeout)
		if perr != nil {
			opErr = engerr.New(engerr.KindSchemaMismatch, "probe schema: %v", perr)
			return
		}
		schema, serr := plan.SchemaAt(base, ops, len(ops))
		if serr != nil {
			opErr = toEngineError(serr, len(ops))
			return
		}
		if _, verr := op.Validate(o, schema); verr != nil {
			opErr = toEngineError(verr, len(ops))
			return
		}
		f.session.history.AddOperation(o)
		desc = o.Describe()
	})
	if err != nil {
		return "", err
	}
	if opErr != nil {
		return "", opErr
	}
	return desc, nil
}

// RemoveOperation deletes the operation at index, clearing redo history.
func (f *Facade) RemoveOperation(ctx context.Context, index int) error {
	var ok bool
	err := f.w.submit(ctx, func(ctx context.Context) {
		ok = f.session.history.RemoveOperation(index)
	})
	if err != nil {
		return err
	}
	if !ok {
		return engerr.New(engerr.KindInvalidPlan, "operation index %d out of range", index)
	}
	return nil
}

// UndoOperation moves the pipeline's last operation onto the undo stack.
func (f *Facade) UndoOperation(ctx context.Context) (bool, error) {
	var ok bool
	err := f.w.submit(ctx, func(ctx context.Context) {
		ok = f.session.history.Undo()
	})
	return ok, err
}

// RedoOperation moves the most recently undone operation back onto the
// pipeline, re-validating it against the current schema first — the
// source may have changed since the operation was undone. If it no
// longer validates, the stale redo entry is dropped and an error is
// returned instead of being silently restored.
func (f *Facade) RedoOperation(ctx context.Context) (bool, error) {
	var ok bool
	var opErr error
	err := f.w.submit(ctx, func(ctx context.Context) {
		candidate, has := f.session.history.PeekRedo()
		if !has {
			return
		}
		descriptor, ops, rerr := f.session.requireSource()
		if rerr != nil {
			opErr = rerr
			return
		}
		adapter, aerr := source.Open(ctx, descriptor)
		if aerr != nil {
			opErr = engerr.New(engerr.KindIoError, "open source: %v", aerr)
			return
		}
		defer adapter.Close()
		base, perr := source.ProbeWithTimeout(ctx, adapter, f.cfg.ProbeTimeout)
		if perr != nil {
			opErr = engerr.New(engerr.KindSchemaMismatch, "probe schema: %v", perr)
			return
		}
		schema, serr := plan.SchemaAt(base, ops, len(ops))
		if serr != nil {
			opErr = toEngineError(serr, len(ops))
			return
		}
		if _, verr := op.Validate(candidate, schema); verr != nil {
			f.session.history.DropRedo()
			opErr = toEngineError(verr, len(ops))
			return
		}
		ok = f.session.history.Redo()
	})
	if err != nil {
		return false, err
	}
	return ok, opErr
}

// ClearPipeline empties the operation list and history.
func (f *Facade) ClearPipeline(ctx context.Context) error {
	return f.w.submit(ctx, func(ctx context.Context) {
		f.session.history.ClearPipeline()
	})
}

// GetOperations returns the pipeline's operation descriptions in order.
func (f *Facade) GetOperations(ctx context.Context) ([]string, error) {
	var out []string
	err := f.w.submit(ctx, func(ctx context.Context) {
		ops := f.session.Ops()
		out = make([]string, len(ops))
		for i, o := range ops {
			out[i] = o.Describe()
		}
	})
	return out, err
}

// SaveState writes the session (source, ops, ui_hints) to path as a .dfr
// file, via write-to-temp then rename so a crash mid-write never
// corrupts an existing file.
func (f *Facade) SaveState(ctx context.Context, path string) error {
	var sess persist.Session
	var rerr error
	err := f.w.submit(ctx, func(ctx context.Context) {
		descriptor, ops, e := f.session.requireSource()
		if e != nil {
			rerr = e
			return
		}
		sess = persist.Session{Source: descriptor, Ops: ops, UIHints: f.session.UIHints}
	})
	if err != nil {
		return err
	}
	if rerr != nil {
		return rerr
	}

	data, err := persist.Encode(sess)
	if err != nil {
		return engerr.New(engerr.KindIoError, "encode session: %v", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return engerr.New(engerr.KindIoError, "write session file: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return engerr.New(engerr.KindIoError, "rename session file: %v", err)
	}
	return nil
}

// LoadState reads path as a .dfr file and installs it as the session's
// source, pipeline, and ui_hints, clearing history and the preview cache.
func (f *Facade) LoadState(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return engerr.New(engerr.KindIoError, "read session file: %v", err)
	}

	sess, err := persist.Decode(data)
	if err != nil {
		var uv *persist.UnsupportedVersionError
		if ok := asUnsupportedVersion(err, &uv); ok {
			return engerr.New(engerr.KindUnsupportedVer, "%v", err)
		}
		return engerr.New(engerr.KindDecodeError, "decode session file: %v", err)
	}

	return f.w.submit(ctx, func(ctx context.Context) {
		f.session = newSession()
		d := sess.Source
		f.session.Source = &d
		for _, o := range sess.Ops {
			f.session.history.AddOperation(o)
		}
		f.session.UIHints = sess.UIHints
		f.cache.Invalidate()
	})
}

func asUnsupportedVersion(err error, target **persist.UnsupportedVersionError) bool {
	if uv, ok := err.(*persist.UnsupportedVersionError); ok {
		*target = uv
		return true
	}
	return false
}

// ExportData re-builds the plan with no row cap and streams it to path in
// the requested format, reporting progress via progress. Returning false
// from progress aborts the export cleanly and removes the partial file.
func (f *Facade) ExportData(ctx context.Context, path string, format export.Format, progress export.Progress) (string, error) {
	var p *plan.LazyPlan
	var buildErr error
	if err := f.w.submit(ctx, func(ctx context.Context) {
		p, buildErr = f.buildPlan(ctx)
	}); err != nil {
		return "", err
	}
	if buildErr != nil {
		return "", buildErr
	}

	var exportErr error
	err := f.w.pool.Go(ctx, func(ctx context.Context) error {
		exportErr = export.Run(ctx, p, format, path, progress)
		return exportErr
	})
	if err != nil {
		return "", err
	}
	if exportErr != nil {
		return "", exportErr
	}
	return fmt.Sprintf("exported to %s", path), nil
}

// GetFileMetadata reports the session's current source path, format, and
// on-disk size.
func (f *Facade) GetFileMetadata(ctx context.Context) (FileMetadata, error) {
	var meta FileMetadata
	var rerr error
	err := f.w.submit(ctx, func(ctx context.Context) {
		if f.session.Source == nil {
			rerr = engerr.New(engerr.KindNoSource, "no source open")
			return
		}
		meta.Path = f.session.Source.Path
		meta.SourceType = string(f.session.Source.Format)
	})
	if err != nil {
		return FileMetadata{}, err
	}
	if rerr != nil {
		return FileMetadata{}, rerr
	}
	if info, statErr := os.Stat(meta.Path); statErr == nil {
		meta.Size = info.Size()
	}
	return meta, nil
}

// PickDataFile delegates to the facade's FileChooser collaborator.
func (f *Facade) PickDataFile(ctx context.Context) (string, bool, error) {
	if f.chooser == nil {
		return "", false, engerr.New(engerr.KindExecutionError, "no file chooser configured")
	}
	return f.chooser.PickDataFile(ctx)
}

// PickSavePath delegates to the facade's FileChooser collaborator.
func (f *Facade) PickSavePath(ctx context.Context, suggestedExt string) (string, bool, error) {
	if f.chooser == nil {
		return "", false, engerr.New(engerr.KindExecutionError, "no file chooser configured")
	}
	return f.chooser.PickSavePath(ctx, suggestedExt)
}

// toEngineError maps an op.ValidationError (or any other error) to the
// corresponding engerr.Error, defaulting unrecognized errors to
// InvalidPlan at the given operation index.
func toEngineError(err error, index int) error {
	if ve, ok := err.(*op.ValidationError); ok {
		if ve.IsTypeErr {
			return engerr.New(engerr.KindTypeError, "operation %d: %s", index, ve.Msg)
		}
		return engerr.NewInvalidPlan(index, ve.Msg)
	}
	if ee, ok := engerr.As(err); ok {
		return ee
	}
	return engerr.NewInvalidPlan(index, err.Error())
}

