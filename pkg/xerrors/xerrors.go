package xerrors

import (
	"errors"
	iofs "io/fs"
	"os"
)

// Kind classifies mediad errors.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindBadRequest
)

// Error wraps an underlying error with additional metadata. Msg, when
// present, is the caller-visible diagnostic; Err carries internal detail
// that never leaves the server.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	base := kindString(e.Kind)
	if e.Msg != "" {
		base = e.Msg
	}
	if e.Op != "" {
		base = e.Op + ": " + base
	}
	if e.Err != nil {
		return base + ": " + e.Err.Error()
	}
	return base
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

func kindString(kind Kind) string {
	switch kind {
	case KindNotFound:
		return "not found"
	case KindBadRequest:
		return "bad request"
	default:
		return "internal error"
	}
}

// Wrap annotates err with the given metadata. If err is nil, Wrap returns nil.
func Wrap(kind Kind, op, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// E creates a new error with the provided metadata (no underlying error).
func E(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// KindOf extracts the Kind from err, walking wrapped errors as needed.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, iofs.ErrNotExist), errors.Is(err, os.ErrNotExist):
		return KindNotFound
	default:
		return KindInternal
	}
}

// Message returns the diagnostic intended for the caller. Errors without
// an explicit message fall back to the generic label for their kind.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return kindString(KindOf(err))
}
