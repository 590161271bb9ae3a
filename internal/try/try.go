// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package try provides deferred error helpers.
package try

import (
	"errors"
	"fmt"
	"io"
)

// CloseError wraps the error returned by io.Closer.Close.
type CloseError struct {
	Cause error
}

// Error implements the [error] interface.
func (e CloseError) Error() string {
	return fmt.Sprintf("failed to close: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e CloseError) Unwrap() error {
	return e.Cause
}

// Close closes v if it implements io.Closer and joins any
// failure into err. It is meant to be deferred.
func Close(err *error, v any) {
	c, ok := v.(io.Closer)
	if !ok {
		return
	}

	cerr := c.Close()
	if cerr == nil {
		return
	}
	*err = errors.Join(*err, CloseError{Cause: cerr})
}
