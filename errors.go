package dfr

import "github.com/dfrcore/dfr/internal/engerr"

// Kind enumerates the exhaustive set of error kinds the engine produces.
// The first token of every user-visible error string is one of these
// kinds.
type Kind = engerr.Kind

const (
	KindNoSource          = engerr.KindNoSource
	KindIoError           = engerr.KindIoError
	KindDecodeError       = engerr.KindDecodeError
	KindUnsupportedFormat = engerr.KindUnsupportedFormat
	KindUnsupportedVer    = engerr.KindUnsupportedVer
	KindInvalidPlan       = engerr.KindInvalidPlan
	KindTypeError         = engerr.KindTypeError
	KindSchemaMismatch    = engerr.KindSchemaMismatch
	KindTimeout           = engerr.KindTimeout
	KindCancelled         = engerr.KindCancelled
	KindExecutionError    = engerr.KindExecutionError
	KindExportError       = engerr.KindExportError
)

// Error is the engine's error type. It renders as "<Kind>: <detail>",
// which collaborators may display verbatim. It is a type alias for
// internal/engerr.Error so every package in the module (source, op, plan,
// preview, persist, export) can construct and return the exact same
// concrete error type the facade exposes, without importing this package.
type Error = engerr.Error

// NewError builds an *Error with the given kind and formatted detail.
func NewError(kind Kind, format string, args ...any) *Error {
	return engerr.New(kind, format, args...)
}

// NewInvalidPlan builds the InvalidPlan error plan.Build reports when
// folding an operation's schema at the given index fails validation.
func NewInvalidPlan(index int, reason string) *Error {
	return engerr.NewInvalidPlan(index, reason)
}

// AsError unwraps err into an *Error, if it is one.
func AsError(err error) (*Error, bool) {
	return engerr.As(err)
}
