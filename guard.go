// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package guard

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"slices"
)

// Protect invokes work exactly once on the calling goroutine. If work
// completes normally, nil is returned. If work panics, the panic is
// recovered and described by the returned [Failure].
//
// Side effects performed by work before it panicked are not undone.
func Protect(work func()) (f *Failure) {
	defer func() {
		// recover must be called directly by the deferred func.
		r := recover()
		if r == nil {
			return
		}
		f = newFailure(r, debug.Stack())
	}()

	work()
	return nil
}

// Kind classifies the value a [Failure] was recovered from.
type Kind int

const (
	// KindUnknown is the zero Kind and is never produced by Protect.
	KindUnknown Kind = iota

	// KindRuntime is a panic raised by the Go runtime itself
	// e.g. nil dereference, index out of range or integer divide by zero.
	KindRuntime

	// KindError is a panic with an error value that is not a runtime.Error.
	KindError

	// KindValue is a panic with any non error value.
	KindValue
)

// String implements the [fmt.Stringer] interface.
func (k Kind) String() string {
	switch k {
	case KindRuntime:
		return "runtime"
	case KindError:
		return "error"
	case KindValue:
		return "value"
	default:
		return "unknown"
	}
}

// Failure describes a panic captured by [Protect]. A Failure is immutable.
type Failure struct {
	value  any
	reason string
	kind   Kind
	stack  []byte
}

func newFailure(v any, stack []byte) *Failure {
	return &Failure{
		value:  v,
		reason: describe(v),
		kind:   classify(v),
		stack:  stack,
	}
}

// describe renders v without letting a panicking String or Error
// method escape. fmt only absorbs one level of such panics.
func describe(v any) (reason string) {
	defer func() {
		if recover() != nil {
			reason = fmt.Sprintf("%T", v)
		}
	}()

	reason = fmt.Sprint(v)
	if reason == "" {
		reason = fmt.Sprintf("%T", v)
	}
	return reason
}

func classify(v any) Kind {
	switch v.(type) {
	case runtime.Error:
		return KindRuntime
	case error:
		return KindError
	default:
		return KindValue
	}
}

// Value returns the raw value passed to panic.
func (f *Failure) Value() any {
	return f.value
}

// Reason returns a human readable description of the panic value.
// It is never empty.
func (f *Failure) Reason() string {
	return f.reason
}

// Kind returns the classification of the panic value.
func (f *Failure) Kind() Kind {
	return f.kind
}

// Stack returns the stack trace of the goroutine at the time
// the panic was recovered.
func (f *Failure) Stack() []byte {
	return slices.Clone(f.stack)
}

// Error implements the [error] interface.
func (f *Failure) Error() string {
	return "recovered from panic: " + f.reason
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (f *Failure) Unwrap() error {
	err, ok := f.value.(error)
	if !ok {
		return nil
	}
	return err
}

// Err returns f as an error. Unlike assigning a *Failure to an error
// variable directly, Err returns an untyped nil when f is nil.
func (f *Failure) Err() error {
	if f == nil {
		return nil
	}
	return f
}

// LogValue implements the [slog.LogValuer] interface.
func (f *Failure) LogValue() slog.Value {
	if f == nil {
		return slog.Value{}
	}
	return slog.GroupValue(
		slog.String("reason", f.reason),
		slog.String("kind", f.kind.String()),
		slog.String("type", fmt.Sprintf("%T", f.value)),
	)
}

// AsFailure is a convenience for [errors.As] with a *Failure target.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if !errors.As(err, &f) {
		return nil, false
	}
	return f, true
}
