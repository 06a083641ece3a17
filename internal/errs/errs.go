// Package errs defines the error kinds surfaced by the portability engine.
//
// Every failure that crosses a package boundary is an *Error carrying a Kind.
// Callers branch on the kind with KindOf instead of matching concrete types:
//
//	dataset, rowErrs, err := importers.Parse(r, format)
//	switch errs.KindOf(err) {
//	case errs.KindParse:
//		// whole file rejected
//	case errs.KindFileSize, errs.KindFileFormat:
//		// rejected before parsing
//	}
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation and for the user-facing error code.
type Kind string

const (
	KindParse              Kind = "PARSE_ERROR"
	KindValidation         Kind = "VALIDATION_ERROR"
	KindDuplicateHandling  Kind = "DUPLICATE_HANDLING_ERROR"
	KindFileSize           Kind = "FILE_SIZE_ERROR"
	KindFileFormat         Kind = "FILE_FORMAT_ERROR"
	KindRateLimit          Kind = "RATE_LIMIT_ERROR"
	KindDatabaseConnection Kind = "DATABASE_CONNECTION_ERROR"
	KindNotFound           Kind = "NOT_FOUND"
	KindInvalidState       Kind = "INVALID_STATE"
	KindInternal           Kind = "INTERNAL_ERROR"
)

// Recoverable reports whether an error of this kind only affects a single record.
func (k Kind) Recoverable() bool {
	return k == KindValidation || k == KindDuplicateHandling
}

// Error is the structured error value used across the engine.
type Error struct {
	Kind    Kind
	Message string
	Line    int    // 1-based source line, 0 when not applicable
	Field   string // offending field, if any
	Details any
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Line > 0 {
		msg = fmt.Sprintf("line %d: %s", e.Line, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same kind, so errors.Is(err, errs.Parse) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons by kind.
var (
	Parse              = &Error{Kind: KindParse}
	Validation         = &Error{Kind: KindValidation}
	DuplicateHandling  = &Error{Kind: KindDuplicateHandling}
	FileSize           = &Error{Kind: KindFileSize}
	FileFormat         = &Error{Kind: KindFileFormat}
	RateLimit          = &Error{Kind: KindRateLimit}
	DatabaseConnection = &Error{Kind: KindDatabaseConnection}
	NotFound           = &Error{Kind: KindNotFound}
	InvalidState       = &Error{Kind: KindInvalidState}
)

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// AtLine creates an error attributed to a source line.
func AtLine(kind Kind, line int, format string, args ...any) *Error {
	return &Error{Kind: kind, Line: line, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, KindInternal for foreign errors and "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As extracts the *Error from err.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
