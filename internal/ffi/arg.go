package ffi

import (
	"bytes"
	"unicode/utf8"
	"unsafe"

	"github.com/roguepikachu/nibb/internal/domain"
)

// Arg is a string argument received from the foreign caller: either a null
// pointer or the bytes up to the terminating NUL.
type Arg struct {
	null bool
	b    []byte
}

// Null is the argument for a null pointer.
func Null() Arg { return Arg{null: true} }

// Bytes wraps bytes already copied out of foreign memory.
func Bytes(b []byte) Arg {
	if b == nil {
		b = []byte{}
	}
	return Arg{b: b}
}

// String wraps a Go string.
func String(s string) Arg { return Arg{b: []byte(s)} }

// FromPointer copies the NUL-terminated string at p. A nil p is Null.
// The length is counted in Go ints, so there is no 32-bit limit on input size.
func FromPointer(p unsafe.Pointer) Arg {
	if p == nil {
		return Null()
	}
	n := 0
	for *(*byte)(unsafe.Add(p, n)) != 0 {
		n++
	}
	return Bytes(bytes.Clone(unsafe.Slice((*byte)(p), n)))
}

// Raw returns the bytes. A null pointer is a ValidationError.
func (a Arg) Raw(op string) ([]byte, error) {
	if a.null {
		return nil, domain.Errorf(domain.KindValidation, op, "null pointer argument")
	}
	return a.b, nil
}

// Text returns the bytes as a string; they must be valid UTF-8.
func (a Arg) Text(op string) (string, error) {
	b, err := a.Raw(op)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", domain.Errorf(domain.KindInvalidEncoding, op, "argument is not valid UTF-8")
	}
	return string(b), nil
}
