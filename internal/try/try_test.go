// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package try

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type closeFunc func() error

func (f closeFunc) Close() error {
	return f()
}

func TestClose(t *testing.T) {
	t.Run("will update the error ref value", func(t *testing.T) {
		t.Run("if the close fails and the ref value is nil", func(t *testing.T) {
			closeErr := errors.New("close failed")
			c := closeFunc(func() error {
				return closeErr
			})

			f := func() (err error) {
				defer Close(&err, c)
				return nil
			}

			err := f()

			var cerr CloseError
			if !assert.ErrorAs(t, err, &cerr) {
				return
			}
			if !assert.ErrorIs(t, cerr, closeErr) {
				return
			}
		})

		t.Run("if the close fails and the ref value is non-nil", func(t *testing.T) {
			closeErr := errors.New("close failed")
			c := closeFunc(func() error {
				return closeErr
			})

			funcErr := errors.New("func error")
			f := func() (err error) {
				defer Close(&err, c)
				return funcErr
			}

			err := f()
			if !assert.ErrorIs(t, err, funcErr) {
				return
			}
			if !assert.ErrorIs(t, err, closeErr) {
				return
			}
		})
	})

	t.Run("will not change the error ref value", func(t *testing.T) {
		t.Run("if the value is not an io.Closer", func(t *testing.T) {
			funcErr := errors.New("func error")
			f := func() (err error) {
				defer Close(&err, struct{}{})
				return funcErr
			}

			err := f()
			if !assert.Equal(t, funcErr, err) {
				return
			}
		})

		t.Run("if Close succeeds", func(t *testing.T) {
			var closed bool
			c := closeFunc(func() error {
				closed = true
				return nil
			})

			f := func() (err error) {
				defer Close(&err, c)
				return nil
			}

			err := f()
			if !assert.Nil(t, err) {
				return
			}
			if !assert.True(t, closed) {
				return
			}
		})
	})
}
