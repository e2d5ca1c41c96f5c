package dfr

import (
	"context"

	"github.com/dfrcore/dfr/history"
	"github.com/dfrcore/dfr/op"
	"github.com/dfrcore/dfr/preview"
	"github.com/dfrcore/dfr/source"
)

// PreviewResult is the display-ready preview of a pipeline's current
// state: headers, stringified rows capped at the configured preview row
// limit, the schema's dtypes, and per-column stats computed over the
// preview window. It is a type alias for preview.Result so facade callers
// never need to import the preview package directly.
type PreviewResult = preview.Result

// ColumnStat is one column's summary within a PreviewResult.
type ColumnStat = preview.ColumnStat

// FileChooser is the external, GUI-owned file dialog collaborator. The
// engine never implements it; callers that want PickDataFile/PickSavePath
// wire in their own platform dialog.
type FileChooser interface {
	PickDataFile(ctx context.Context) (path string, ok bool, err error)
	PickSavePath(ctx context.Context, suggestedExt string) (path string, ok bool, err error)
}

// Session holds one active dataset source, its operation pipeline and
// undo/redo history, and a free-form UI hints bag the engine never
// interprets. The worker goroutine is the only thing that ever mutates a
// Session; callers reach it exclusively through Facade methods.
type Session struct {
	Source  *source.Descriptor
	history *history.Stack
	UIHints map[string]any
}

// newSession returns an empty Session with no source open.
func newSession() *Session {
	return &Session{history: history.NewStack(), UIHints: map[string]any{}}
}

// Ops returns the session's current operation pipeline.
func (s *Session) Ops() []op.Operation {
	if s.history == nil {
		return nil
	}
	return s.history.Ops()
}

// clone returns an independent copy of s, used so a failed mutation can
// be rolled back by simply discarding the clone rather than mutating s
// and unwinding partial state.
func (s *Session) clone() *Session {
	out := &Session{history: history.NewStack(), UIHints: map[string]any{}}
	if s.Source != nil {
		src := *s.Source
		out.Source = &src
	}
	for _, o := range s.Ops() {
		out.history.AddOperation(o)
	}
	for k, v := range s.UIHints {
		out.UIHints[k] = v
	}
	return out
}
