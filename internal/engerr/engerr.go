// Package engerr holds the engine's error Kind/Error types at a layer
// every package can import — including source, op, plan, and the root
// facade — without creating an import cycle back into the root package.
// The root package re-exports these as dfr.Kind/dfr.Error so callers never
// see this package's name.
package engerr

import "fmt"

// Kind enumerates the exhaustive set of error kinds the engine produces.
// The first token of every user-visible error string is one of these
// kinds.
type Kind string

const (
	KindNoSource          Kind = "NoSource"
	KindIoError           Kind = "IoError"
	KindDecodeError       Kind = "DecodeError"
	KindUnsupportedFormat Kind = "UnsupportedFormat"
	KindUnsupportedVer    Kind = "UnsupportedVersion"
	KindInvalidPlan       Kind = "InvalidPlan"
	KindTypeError         Kind = "TypeError"
	KindSchemaMismatch    Kind = "SchemaMismatch"
	KindTimeout           Kind = "Timeout"
	KindCancelled         Kind = "Cancelled"
	KindExecutionError    Kind = "ExecutionError"
	KindExportError       Kind = "ExportError"
)

// Error is the engine's error type. It renders as "<Kind>: <detail>",
// which collaborators may display verbatim.
type Error struct {
	Kind   Kind
	Detail string
	// Index is the operation index that failed validation, populated only
	// for KindInvalidPlan. Zero otherwise.
	Index int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// New builds an *Error with the given kind and formatted detail.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// NewInvalidPlan builds the InvalidPlan error plan.Build reports when
// folding an operation's schema at the given index fails validation.
func NewInvalidPlan(index int, reason string) *Error {
	return &Error{Kind: KindInvalidPlan, Detail: fmt.Sprintf("operation %d: %s", index, reason), Index: index}
}

// As unwraps err into an *Error, if it is one.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}
