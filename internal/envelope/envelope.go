// Package envelope turns an operation's result into the two shapes the C boundary returns:
// a boolean, or a JSON document that is either the value or an error object.
package envelope

import (
	"context"
	"encoding/json"

	"github.com/roguepikachu/nibb/internal/domain"
	"github.com/roguepikachu/nibb/pkg/logger"
)

// ErrorBody is the JSON error object. Kind is one of the domain.ErrorKind values.
type ErrorBody struct {
	Kind    domain.ErrorKind `json:"kind"`
	Message string           `json:"message"`
}

// Outcome is either a value or an error, never both.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Ok wraps a successful value.
func Ok[T any](v T) Outcome[T] { return Outcome[T]{Value: v} }

// Fail wraps an error.
func Fail[T any](err error) Outcome[T] { return Outcome[T]{Err: err} }

// From builds an outcome from a (value, error) pair.
func From[T any](v T, err error) Outcome[T] {
	if err != nil {
		return Fail[T](err)
	}
	return Ok(v)
}

// OK reports whether the outcome holds a value.
func (o Outcome[T]) OK() bool { return o.Err == nil }

// Bool collapses the outcome to true or false. The error is logged, not returned.
func (o Outcome[T]) Bool(ctx context.Context) bool {
	if o.Err == nil {
		return true
	}
	report(ctx, o.Err, true)
	return false
}

// JSON renders the value with encode, or the error object when the outcome failed
// or encode itself failed.
func (o Outcome[T]) JSON(ctx context.Context, encode func(T) ([]byte, error)) []byte {
	if o.Err != nil {
		report(ctx, o.Err, false)
		return ErrorJSON(o.Err)
	}
	data, err := encode(o.Value)
	if err != nil {
		err = domain.Wrap(domain.KindInternal, "encode result", "", err)
		report(ctx, err, false)
		return ErrorJSON(err)
	}
	return data
}

// ErrorJSON renders err as {"kind": ..., "message": ...}.
func ErrorJSON(err error) []byte {
	body := ErrorBody{Kind: domain.KindOf(err), Message: domain.Message(err)}
	data, mErr := json.Marshal(body)
	if mErr != nil {
		// two strings always marshal
		return []byte(`{"kind":"Internal","message":"error encoding failed"}`)
	}
	return data
}

// report logs err. A boolean result carries no reason, so its NotFound is
// logged at info; a JSON result already hands the error to the caller.
func report(ctx context.Context, err error, collapsed bool) {
	kind := domain.KindOf(err)
	e := logger.WithField(ctx, "kind", string(kind))
	if kind == domain.KindNotFound {
		if collapsed {
			e.Infof("operation failed: %v", err)
		} else {
			e.Debugf("operation failed: %v", err)
		}
		return
	}
	e.Warnf("operation failed: %v", err)
}
