// Package errs defines the small closed set of error kinds spec.md §7
// names, so every layer (extractor, fetcher, store, HTTP handler) can
// classify a failure the same way without string matching.
package errs

import "errors"

// Kind is one of the semantic error categories spec.md §7 enumerates.
type Kind string

const (
	KindConfig   Kind = "config"
	KindFetch    Kind = "fetch"
	KindExtract  Kind = "extract"
	KindStore    Kind = "store"
	KindNotFound Kind = "not_found"
	KindDisabled Kind = "disabled"
)

// Error attaches a Kind and optional context to an underlying error.
type Error struct {
	Kind    Kind
	Context string
	Err     error
}

func (e *Error) Error() string {
	if e.Context == "" {
		return e.Err.Error()
	}
	return e.Context + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with kind and an optional context string (e.g. the
// offending XPath field name, or a script's own error message).
func New(kind Kind, context string, err error) *Error {
	return &Error{Kind: kind, Context: context, Err: err}
}

// KindOf reports the Kind of err, if err (or something it wraps) is one of
// our Errors.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is lets callers write errs.Is(err, errs.KindNotFound) instead of the more
// verbose KindOf round trip.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
