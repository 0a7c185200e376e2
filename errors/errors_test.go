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

package errors

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrors(t *testing.T) {
	t.Run("TimeoutError", func(t *testing.T) {
		err := NewTimeoutError(5*time.Second, `{"id":7,"type":"Dynamic"}`)
		require.EqualError(t, err, `Operation timed out after 5s, request data: {"id":7,"type":"Dynamic"}`)
		assert.ErrorIs(t, err, ErrTimeout)
		assert.NotErrorIs(t, err, ErrPeer)

		var timeoutErr *TimeoutError
		require.ErrorAs(t, error(err), &timeoutErr)
		assert.Equal(t, 5*time.Second, timeoutErr.After)

		short := NewTimeoutError(250*time.Millisecond, "req")
		assert.Equal(t, "Operation timed out after 0.25s, request data: req", short.Error())
	})
	t.Run("PeerError", func(t *testing.T) {
		err := NewPeerError("TypeError: x is not a function")
		require.EqualError(t, err, "TypeError: x is not a function")
		assert.ErrorIs(t, err, ErrPeer)
	})
	t.Run("PanicError", func(t *testing.T) {
		err := NewPanicError("boom")
		require.EqualError(t, err, "panic: boom")

		cause := errors.New("cause")
		err = NewPanicError(cause)
		assert.ErrorIs(t, err, cause)
	})
	t.Run("Wrappers", func(t *testing.T) {
		assert.ErrorIs(t, NewErrCorruptFrame("length=%d", 0), ErrCorruptFrame)
		assert.EqualError(t, NewErrCorruptFrame("length=%d", 0), "length=0: corrupt frame")
		assert.ErrorIs(t, NewErrTransportDisconnected(io.EOF), ErrTransportDisconnected)
		assert.ErrorIs(t, NewErrTransportDisconnected(io.EOF), io.EOF)
		assert.EqualError(t, NewErrDuplicateID(3), "id=(3) duplicate request id")
		assert.ErrorIs(t, NewErrUnknownCallback("c1"), ErrUnknownCallback)
		assert.ErrorIs(t, NewErrMarshal(io.ErrUnexpectedEOF), ErrMarshal)
		assert.ErrorIs(t, NewErrInvalidMessage(io.ErrUnexpectedEOF), ErrInvalidMessage)
		assert.ErrorIs(t, NewErrClassNotFound("Node"), ErrClassNotFound)
		assert.ErrorIs(t, NewErrInstanceNotFound("n1"), ErrInstanceNotFound)
	})
}
