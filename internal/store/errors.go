package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested object does not exist.
var ErrNotFound = errors.New("not found")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// ErrorCode categorizes store failures.
type ErrorCode string

const (
	// CodeAttach indicates the store could not be opened or created.
	CodeAttach ErrorCode = "ATTACH"

	// CodeDestroy indicates the store files could not be removed.
	CodeDestroy ErrorCode = "DESTROY"

	// CodeIO indicates a read or write against an attached store failed.
	CodeIO ErrorCode = "IO"

	// CodeLocked indicates another handle owns the store lock.
	CodeLocked ErrorCode = "LOCKED"

	// CodeMissing indicates the store file does not exist.
	CodeMissing ErrorCode = "MISSING"

	// CodeMigration indicates the on-disk schema cannot be used with the
	// given options (migration not permitted, or schema newer than supported).
	CodeMigration ErrorCode = "MIGRATION"
)

// Error is the structured error reported by the store engine.
type Error struct {
	// Op is the operation that failed ("open", "apply", "destroy", ...).
	Op string

	// Code identifies the error category.
	Code ErrorCode

	// Path is the store file involved.
	Path string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("store %s %s", e.Op, e.Code)
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op string, code ErrorCode, path string, err error) *Error {
	return &Error{Op: op, Code: code, Path: path, Err: err}
}

// CodeOf returns the ErrorCode carried by err, or "" if err is not a store Error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsLocked reports whether err is a lock contention error.
func IsLocked(err error) bool { return CodeOf(err) == CodeLocked }

// IsMissing reports whether err indicates an absent store file.
func IsMissing(err error) bool { return CodeOf(err) == CodeMissing }

// IsIO reports whether err is an I/O failure against an attached store.
func IsIO(err error) bool { return CodeOf(err) == CodeIO }

// IsMigration reports whether err is a schema migration failure.
func IsMigration(err error) bool { return CodeOf(err) == CodeMigration }
