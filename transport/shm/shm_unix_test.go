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

//go:build linux || darwin || freebsd

package shm

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/enginebridge/errors"
)

func TestNamedRegions(t *testing.T) {
	t.Run("With Create and Open", func(t *testing.T) {
		dir := t.TempDir()
		name := "bridge-" + uuid.NewString()

		server, err := Create(name, WithDir(dir), WithRegionSize(8192))
		require.NoError(t, err)

		client, err := Open(context.Background(), name, WithDir(dir))
		require.NoError(t, err)

		require.NoError(t, client.Send([]byte(`{"id":1,"type":"Dynamic"}`)))
		frame, err := server.Receive()
		require.NoError(t, err)
		assert.Equal(t, `{"id":1,"type":"Dynamic"}`, string(frame))

		require.NoError(t, server.Send([]byte(`{"id":1,"type":"Response"}`)))
		frame, err = client.Receive()
		require.NoError(t, err)
		assert.Equal(t, `{"id":1,"type":"Response"}`, string(frame))

		require.NoError(t, client.Close())
		require.NoError(t, server.Close())

		_, err = os.Stat(filepath.Join(dir, name+clientToServer))
		assert.True(t, os.IsNotExist(err))
		_, err = os.Stat(filepath.Join(dir, name+serverToClient+semSuffix))
		assert.True(t, os.IsNotExist(err))
	})
	t.Run("With Open before Create", func(t *testing.T) {
		dir := t.TempDir()
		_, err := Open(context.Background(), "missing", WithDir(dir), WithOpenAttempts(2))
		assert.Error(t, err)
	})
	t.Run("With Close unblocking Receive", func(t *testing.T) {
		dir := t.TempDir()
		server, err := Create("closing", WithDir(dir), WithRegionSize(4096))
		require.NoError(t, err)

		done := make(chan error, 1)
		go func() {
			_, err := server.Receive()
			done <- err
		}()

		require.NoError(t, server.Close())
		assert.Error(t, <-done)
	})
	t.Run("With Close unblocking a full producer", func(t *testing.T) {
		dir := t.TempDir()
		name := "full-" + uuid.NewString()
		server, err := Create(name, WithDir(dir), WithRegionSize(headerSize+64))
		require.NoError(t, err)
		client, err := Open(context.Background(), name, WithDir(dir))
		require.NoError(t, err)

		require.NoError(t, client.Send(make([]byte, 40)))
		sendErr := make(chan error, 1)
		go func() {
			sendErr <- client.Send(make([]byte, 40))
		}()

		time.Sleep(10 * time.Millisecond)
		require.NoError(t, client.Close())
		assert.ErrorIs(t, <-sendErr, errors.ErrTransportDisconnected)
		assert.ErrorIs(t, client.Send([]byte("late")), errors.ErrTransportDisconnected)
		require.NoError(t, server.Close())
	})
	t.Run("With pending message after Close", func(t *testing.T) {
		dir := t.TempDir()
		name := "pending-" + uuid.NewString()
		server, err := Create(name, WithDir(dir), WithRegionSize(4096))
		require.NoError(t, err)
		client, err := Open(context.Background(), name, WithDir(dir))
		require.NoError(t, err)

		require.NoError(t, client.Send([]byte("unread")))
		require.NoError(t, server.Close())

		_, err = server.Receive()
		assert.ErrorIs(t, err, errors.ErrTransportDisconnected)
		require.NoError(t, client.Close())
	})
}
