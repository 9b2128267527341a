package tablestore

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by Store wraps exactly one of these,
// so callers can branch with errors.Is.
var (
	ErrInvalidSchema = errors.New("invalid schema")
	ErrUnknownColumn = errors.New("unknown column")
	ErrNotFound      = errors.New("not found")
	ErrStorage       = errors.New("storage error")
)

// Kind names reported by KindOf.
const (
	KindInvalidSchema = "invalid_schema"
	KindUnknownColumn = "unknown_column"
	KindNotFound      = "not_found"
	KindStorage       = "storage_error"
)

// Error is the concrete error type returned by Store operations.
type Error struct {
	Kind error  // one of the Err* kinds above
	Op   string // operation that failed, e.g. "insert_row"
	Msg  string // short human-readable description
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

// Unwrap exposes both the kind and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func invalidSchema(op, format string, args ...any) error {
	return &Error{Kind: ErrInvalidSchema, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func unknownColumn(op, table, column string) error {
	return &Error{Kind: ErrUnknownColumn, Op: op, Msg: fmt.Sprintf("column %q does not exist in table %q", column, table)}
}

func notFound(op, format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func storageError(op, what string, err error) error {
	return &Error{Kind: ErrStorage, Op: op, Msg: "failed to " + what, Err: err}
}

// KindOf returns the short name of the error kind carried by err,
// or an empty string when err does not come from this package.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidSchema):
		return KindInvalidSchema
	case errors.Is(err, ErrUnknownColumn):
		return KindUnknownColumn
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrStorage):
		return KindStorage
	}
	return ""
}
