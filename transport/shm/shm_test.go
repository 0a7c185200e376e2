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

package shm

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tochemey/enginebridge/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"))
}

func TestPair(t *testing.T) {
	t.Run("With both directions", func(t *testing.T) {
		client, server, err := NewPair(4096)
		require.NoError(t, err)
		defer func() {
			require.NoError(t, client.Close())
			require.NoError(t, server.Close())
		}()

		require.NoError(t, client.Send([]byte("request")))
		frame, err := server.Receive()
		require.NoError(t, err)
		assert.Equal(t, "request", string(frame))

		require.NoError(t, server.Send([]byte("reply")))
		frame, err = client.Receive()
		require.NoError(t, err)
		assert.Equal(t, "reply", string(frame))
	})
	t.Run("With producer blocked until the consumer drains", func(t *testing.T) {
		client, server, err := NewPair(headerSize + 128)
		require.NoError(t, err)
		defer func() {
			_ = client.Close()
			_ = server.Close()
		}()

		const count = 40
		sent := make(chan error, 1)
		go func() {
			for i := range count {
				if err := client.Send(bytes.Repeat([]byte{byte(i)}, 30)); err != nil {
					sent <- err
					return
				}
			}
			sent <- nil
		}()

		// the ring holds at most three of these messages
		time.Sleep(20 * time.Millisecond)
		select {
		case err := <-sent:
			t.Fatalf("producer finished without back-pressure: %v", err)
		default:
		}

		for i := range count {
			frame, err := server.Receive()
			require.NoError(t, err)
			require.Equal(t, bytes.Repeat([]byte{byte(i)}, 30), frame, "message %d", i)
		}
		require.NoError(t, <-sent)
	})
	t.Run("With Close unblocking Receive", func(t *testing.T) {
		client, server, err := NewPair(headerSize + 64)
		require.NoError(t, err)

		received := make(chan error, 1)
		go func() {
			_, err := server.Receive()
			received <- err
		}()

		time.Sleep(10 * time.Millisecond)
		require.NoError(t, server.Close())
		assert.ErrorIs(t, <-received, errors.ErrTransportDisconnected)
		require.NoError(t, client.Close())
	})
	t.Run("With Close unblocking a full producer", func(t *testing.T) {
		client, server, err := NewPair(headerSize + 64)
		require.NoError(t, err)

		require.NoError(t, client.Send(make([]byte, 40)))
		sendErr := make(chan error, 1)
		go func() {
			sendErr <- client.Send(make([]byte, 40))
		}()

		time.Sleep(10 * time.Millisecond)
		require.NoError(t, client.Close())
		assert.ErrorIs(t, <-sendErr, errors.ErrTransportDisconnected)
		require.NoError(t, server.Close())
	})
	t.Run("With invalid frames", func(t *testing.T) {
		client, server, err := NewPair(headerSize + 64)
		require.NoError(t, err)
		defer func() {
			_ = client.Close()
			_ = server.Close()
		}()

		assert.Equal(t, 56, client.MaxMessageSize())
		assert.ErrorIs(t, client.Send(make([]byte, 57)), errors.ErrFrameTooLarge)
		assert.ErrorIs(t, client.Send(nil), errors.ErrCorruptFrame)
	})
}
