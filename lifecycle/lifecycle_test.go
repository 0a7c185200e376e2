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

package lifecycle

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travisjeffery/go-dynaport"
	"go.uber.org/atomic"

	"github.com/tochemey/enginebridge/log"
)

func freeAddress() string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(dynaport.Get(1)[0]))
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("With hooks answering ok", func(t *testing.T) {
		started := atomic.NewInt32(0)
		destroyed := atomic.NewBool(false)
		server := NewServer("127.0.0.1:0", Hooks{
			Start:   func(context.Context) error { started.Inc(); return nil },
			Destroy: func(context.Context) error { destroyed.Store(true); return nil },
		}, log.DiscardLogger)
		require.NoError(t, server.Start(ctx))
		t.Cleanup(func() { assert.NoError(t, server.Shutdown(ctx)) })

		client := NewClient(server.Addr().String())
		t.Cleanup(client.Close)

		require.NoError(t, client.Start(ctx))
		require.NoError(t, client.Restart(ctx))
		require.NoError(t, client.Destroy(ctx))
		assert.EqualValues(t, 1, started.Load())
		assert.True(t, destroyed.Load())
	})
	t.Run("With cleartext HTTP/2", func(t *testing.T) {
		server := NewServer("127.0.0.1:0", Hooks{}, nil)
		require.NoError(t, server.Start(ctx))
		t.Cleanup(func() { assert.NoError(t, server.Shutdown(ctx)) })

		client := NewClient(server.Addr().String(), WithH2C())
		t.Cleanup(client.Close)
		require.NoError(t, client.Start(ctx))
	})
	t.Run("With failing hook", func(t *testing.T) {
		server := NewServer("127.0.0.1:0", Hooks{
			Restart: func(context.Context) error { return stderrors.New("engine busy") },
		}, log.DiscardLogger)
		require.NoError(t, server.Start(ctx))
		t.Cleanup(func() { assert.NoError(t, server.Shutdown(ctx)) })

		client := NewClient(server.Addr().String())
		t.Cleanup(client.Close)
		err := client.Restart(ctx)
		require.ErrorIs(t, err, ErrUnexpectedResponse)
		assert.Contains(t, err.Error(), "engine busy")
	})
	t.Run("With body other than ok rejected", func(t *testing.T) {
		peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("okay"))
		}))
		t.Cleanup(peer.Close)

		client := NewClient(peer.Listener.Addr().String())
		t.Cleanup(client.Close)
		assert.ErrorIs(t, client.Start(ctx), ErrUnexpectedResponse)
	})
	t.Run("With WaitReady retrying until the peer is up", func(t *testing.T) {
		address := freeAddress()
		server := NewServer(address, Hooks{}, log.DiscardLogger)
		started := make(chan struct{})
		go func() {
			defer close(started)
			time.Sleep(150 * time.Millisecond)
			_ = server.Start(ctx)
		}()
		t.Cleanup(func() {
			<-started
			_ = server.Shutdown(ctx)
		})

		client := NewClient(address, WithAttempts(50))
		t.Cleanup(client.Close)
		require.NoError(t, client.WaitReady(ctx))
	})
	t.Run("With WaitReady giving up", func(t *testing.T) {
		client := NewClient(freeAddress(), WithAttempts(2))
		t.Cleanup(client.Close)
		assert.Error(t, client.WaitReady(ctx))
	})
	t.Run("With non GET method", func(t *testing.T) {
		server := NewServer("127.0.0.1:0", Hooks{}, log.DiscardLogger)
		require.NoError(t, server.Start(ctx))
		t.Cleanup(func() { assert.NoError(t, server.Shutdown(ctx)) })

		resp, err := http.Post("http://"+server.Addr().String()+PathStart, "text/plain", nil)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}
