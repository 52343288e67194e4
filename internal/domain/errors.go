package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure for callers on the other side of the boundary.
type ErrorKind string

const (
	// KindInvalidEncoding is bad bytes at the boundary, e.g. invalid UTF-8.
	KindInvalidEncoding ErrorKind = "InvalidEncoding"
	// KindDecodeError is well-formed bytes that do not decode into the expected shape.
	KindDecodeError ErrorKind = "DecodeError"
	// KindNotFound means no snippet has the requested name.
	KindNotFound ErrorKind = "NotFound"
	// KindStorage is a backend failure.
	KindStorage ErrorKind = "StorageError"
	// KindValidation is input rejected by a rule, e.g. an empty or duplicate name.
	KindValidation ErrorKind = "ValidationError"
	// KindInternal is anything not classified above.
	KindInternal ErrorKind = "Internal"
)

// Error is the single typed error carried from the codec and the repository
// up to the boundary.
type Error struct {
	Kind ErrorKind
	Op   string
	Name string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Name != "" {
		msg += fmt.Sprintf(" (%q)", e.Name)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: KindNotFound}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Name == "" && t.Err == nil
}

// Errorf builds an *Error of the given kind with a formatted cause.
func Errorf(kind ErrorKind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap tags err with a kind. A nil err yields nil.
func Wrap(kind ErrorKind, op, name string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Name: name, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain,
// or KindInternal when there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the human readable part of err without the kind prefix.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Name != "" {
		return fmt.Sprintf("%s %q", e.Kind, e.Name)
	}
	return string(e.Kind)
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return errors.Is(err, &Error{Kind: kind})
}
