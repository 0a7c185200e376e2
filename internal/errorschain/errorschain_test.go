/*
 * MIT License
 *
 * Copyright (c) 2022-2025 Arsene Tochemey Gandote
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package errorschain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestErrorsChain(t *testing.T) {
	e1 := errors.New("err1")
	e2 := errors.New("err2")

	t.Run("With ReturnFirst", func(t *testing.T) {
		called := false
		err := New(ReturnFirst()).
			AddError(nil).
			AddError(e1).
			AddError(e2).
			AddErrorFn(func() error { called = true; return nil }).
			Error()
		require.ErrorIs(t, err, e1)
		assert.NotErrorIs(t, err, e2)
		assert.False(t, called)
	})
	t.Run("With ReturnAll", func(t *testing.T) {
		calls := 0
		step := func(err error) func() error {
			return func() error { calls++; return err }
		}
		err := New(ReturnAll()).AddErrorFns(step(e1), step(nil), step(e2)).Error()
		assert.Equal(t, 3, calls)
		assert.Equal(t, []error{e1, e2}, multierr.Errors(err))
	})
	t.Run("With no error", func(t *testing.T) {
		assert.NoError(t, New().AddError(nil).AddErrorFn(func() error { return nil }).Error())
	})
}
