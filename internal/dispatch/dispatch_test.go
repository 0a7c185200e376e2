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

package dispatch

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/goleak"

	"github.com/tochemey/enginebridge/engine"
	"github.com/tochemey/enginebridge/errors"
	"github.com/tochemey/enginebridge/internal/callback"
	"github.com/tochemey/enginebridge/internal/correlation"
	"github.com/tochemey/enginebridge/log"
	"github.com/tochemey/enginebridge/message"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu      sync.Mutex
	replies []*message.Message
	sent    chan *message.Message
}

func newRecorder() *recorder {
	return &recorder{sent: make(chan *message.Message, 64)}
}

func (r *recorder) send(_ context.Context, reply *message.Message) error {
	r.mu.Lock()
	r.replies = append(r.replies, reply)
	r.mu.Unlock()
	r.sent <- reply
	return nil
}

func (r *recorder) snapshot() []*message.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*message.Message(nil), r.replies...)
}

func (r *recorder) next(t *testing.T) *message.Message {
	t.Helper()
	select {
	case reply := <-r.sent:
		return reply
	case <-time.After(time.Second):
		require.FailNow(t, "no reply sent")
		return nil
	}
}

type fixture struct {
	table      *correlation.Table
	callbacks  *callback.Registry
	loop       *engine.Loop
	replies    *recorder
	dispatcher *Dispatcher
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		table:     correlation.New(log.DiscardLogger),
		callbacks: callback.NewRegistry(),
		loop:      engine.NewLoop(log.DiscardLogger),
		replies:   newRecorder(),
	}
	f.loop.Start()
	t.Cleanup(f.loop.Stop)
	f.dispatcher = New(f.table, f.callbacks, f.loop, f.replies.send, append([]Option{WithLogger(log.DiscardLogger)}, opts...)...)
	return f
}

func emit(id uint64, callbackID string, block bool, args ...any) *message.Message {
	return &message.Message{ID: id, Kind: message.EmitCallback, CallbackID: callbackID, Block: block, Params: args}
}

func double(_ context.Context, args []any) (any, error) {
	v, ok := message.AsInt64(args[0])
	if !ok {
		return nil, stderrors.New("expected an integer")
	}
	return v * 2, nil
}

func TestDispatchWithoutWaiter(t *testing.T) {
	t.Run("With blocking callback run on the engine loop", func(t *testing.T) {
		f := newFixture(t)
		onLoop := atomic.NewBool(false)
		_, err := f.callbacks.Register("c1", func(ctx context.Context, args []any) (any, error) {
			onLoop.Store(f.loop.OnLoop(ctx))
			return double(ctx, args)
		}, true)
		require.NoError(t, err)

		f.dispatcher.Dispatch(emit(11, "c1", true, int64(21)))

		reply := f.replies.next(t)
		assert.Equal(t, message.CallbackReply, reply.Kind)
		assert.EqualValues(t, 11, reply.ID)
		assert.EqualValues(t, 42, reply.Result)
		assert.True(t, onLoop.Load())
		assert.EqualValues(t, 1, f.dispatcher.Executed())
	})
	t.Run("With non blocking callback sending no reply", func(t *testing.T) {
		f := newFixture(t)
		called := make(chan struct{})
		_, err := f.callbacks.Register("c1", func(context.Context, []any) (any, error) {
			close(called)
			return nil, nil
		}, false)
		require.NoError(t, err)

		f.dispatcher.Dispatch(emit(3, "c1", false))
		<-called
		require.NoError(t, f.loop.Do(context.Background(), func(context.Context) error { return nil }))
		assert.Empty(t, f.replies.snapshot())
	})
	t.Run("With unknown callback dropped", func(t *testing.T) {
		f := newFixture(t)
		f.dispatcher.Dispatch(emit(5, "missing", true))

		assert.Eventually(t, func() bool { return f.dispatcher.Dropped() == 1 }, time.Second, 5*time.Millisecond)
		assert.Empty(t, f.replies.snapshot())
	})
	t.Run("With panicking callback answered with an error", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.callbacks.Register("c1", func(context.Context, []any) (any, error) {
			panic("kaboom")
		}, true)
		require.NoError(t, err)
		_, err = f.callbacks.Register("c2", double, true)
		require.NoError(t, err)

		f.dispatcher.Dispatch(emit(1, "c1", true))
		f.dispatcher.Dispatch(emit(2, "c2", true, 4))

		reply := f.replies.next(t)
		assert.EqualValues(t, 1, reply.ID)
		assert.True(t, reply.Failed())
		assert.Contains(t, reply.Error, "kaboom")

		reply = f.replies.next(t)
		assert.EqualValues(t, 2, reply.ID)
		assert.EqualValues(t, 8, reply.Result)
	})
	t.Run("With inbound requests served by the handler", func(t *testing.T) {
		handler := HandlerFunc(func(_ context.Context, request *message.Message) (any, error) {
			switch request.Kind {
			case message.Constructor:
				return "n1", nil
			case message.Dynamic:
				return request.Action + ":" + request.Params[0].(string), nil
			default:
				return nil, stderrors.New("unsupported")
			}
		})
		f := newFixture(t, WithHandler(handler))

		f.dispatcher.Dispatch(&message.Message{ID: 1, Kind: message.Constructor, Class: "Node"})
		f.dispatcher.Dispatch(&message.Message{ID: 2, Kind: message.Dynamic, InstanceID: "n1", Action: "setText", Params: []any{"hello"}})
		f.dispatcher.Dispatch(&message.Message{ID: 3, Kind: message.Static, Class: "Node", Action: "count"})
		f.dispatcher.Dispatch(&message.Message{ID: 0, Kind: message.Dynamic, InstanceID: "n1", Action: "setText", Params: []any{"async"}})

		reply := f.replies.next(t)
		assert.EqualValues(t, 1, reply.ID)
		assert.Equal(t, "n1", reply.InstanceID)

		reply = f.replies.next(t)
		assert.EqualValues(t, 2, reply.ID)
		assert.Equal(t, "setText:hello", reply.Result)

		reply = f.replies.next(t)
		assert.EqualValues(t, 3, reply.ID)
		assert.Equal(t, "unsupported", reply.Error)

		assert.Eventually(t, func() bool { return f.dispatcher.Executed() == 4 }, time.Second, 5*time.Millisecond)
		assert.Len(t, f.replies.snapshot(), 3)
	})
	t.Run("With no handler configured", func(t *testing.T) {
		f := newFixture(t)
		f.dispatcher.Dispatch(&message.Message{ID: 9, Kind: message.Static, Class: "Node", Action: "count"})

		reply := f.replies.next(t)
		assert.EqualValues(t, 9, reply.ID)
		assert.Equal(t, errors.ErrNoHandler.Error(), reply.Error)
	})
	t.Run("With duplicate id in flight dropped", func(t *testing.T) {
		f := newFixture(t)
		release := make(chan struct{})
		calls := atomic.NewInt32(0)
		_, err := f.callbacks.Register("c1", func(context.Context, []any) (any, error) {
			calls.Inc()
			<-release
			return nil, nil
		}, true)
		require.NoError(t, err)

		f.dispatcher.Dispatch(emit(7, "c1", true))
		require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
		f.dispatcher.Dispatch(emit(7, "c1", true))
		close(release)

		reply := f.replies.next(t)
		assert.EqualValues(t, 7, reply.ID)
		require.NoError(t, f.loop.Do(context.Background(), func(context.Context) error { return nil }))
		assert.EqualValues(t, 1, calls.Load())
		assert.EqualValues(t, 1, f.dispatcher.Dropped())
	})
}

func TestAwait(t *testing.T) {
	ctx := context.Background()

	t.Run("With callback executed by the waiter before its reply", func(t *testing.T) {
		f := newFixture(t)
		executor := make(chan bool, 1)
		_, err := f.callbacks.Register("c1", func(ctx context.Context, args []any) (any, error) {
			executor <- f.dispatcher.Owns(ctx) && !f.loop.OnLoop(ctx) && f.dispatcher.Busy()
			return double(ctx, args)
		}, true)
		require.NoError(t, err)

		request := &message.Message{ID: 1, Kind: message.Dynamic, InstanceID: "n2", Action: "click"}
		slot, err := f.table.Register(request)
		require.NoError(t, err)

		type outcome struct {
			reply   *message.Message
			err     error
			replies []*message.Message
		}
		done := make(chan outcome, 1)
		go func() {
			reply, err := f.dispatcher.Await(ctx, slot, time.Second)
			done <- outcome{reply: reply, err: err, replies: f.replies.snapshot()}
		}()

		require.Eventually(t, f.dispatcher.Busy, time.Second, time.Millisecond)
		// the receive goroutine yields the callback then the reply, back to back
		f.dispatcher.Dispatch(emit(50, "c1", true, 42))
		f.table.Resolve(message.NewResponse(1, "clicked"))

		result := <-done
		require.NoError(t, result.err)
		assert.Equal(t, "clicked", result.reply.Result)
		require.Len(t, result.replies, 1)
		assert.Equal(t, message.CallbackReply, result.replies[0].Kind)
		assert.EqualValues(t, 50, result.replies[0].ID)
		assert.EqualValues(t, 84, result.replies[0].Result)
		assert.True(t, <-executor)
		assert.False(t, f.dispatcher.Busy())
	})
	t.Run("With nested call made from a callback", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.callbacks.Register("outer", func(ctx context.Context, _ []any) (any, error) {
			slot, err := f.table.Register(&message.Message{ID: 2, Kind: message.Static, Class: "Page", Action: "title"})
			if err != nil {
				return nil, err
			}
			go func() {
				// while nested, the peer calls back once more
				assert.Eventually(t, func() bool { return f.table.Len() == 2 }, time.Second, time.Millisecond)
				f.dispatcher.Dispatch(emit(61, "inner", true, 1))
				f.table.Resolve(message.NewResponse(2, "home"))
			}()
			reply, err := f.dispatcher.Await(ctx, slot, time.Second)
			if err != nil {
				return nil, err
			}
			return reply.Result, nil
		}, true)
		require.NoError(t, err)
		_, err = f.callbacks.Register("inner", double, true)
		require.NoError(t, err)

		slot, err := f.table.Register(&message.Message{ID: 1, Kind: message.Dynamic, InstanceID: "n1", Action: "load"})
		require.NoError(t, err)

		type outcome struct {
			reply *message.Message
			err   error
		}
		done := make(chan outcome, 1)
		go func() {
			reply, err := f.dispatcher.Await(ctx, slot, 2*time.Second)
			done <- outcome{reply: reply, err: err}
		}()

		require.Eventually(t, f.dispatcher.Busy, time.Second, time.Millisecond)
		f.dispatcher.Dispatch(emit(60, "outer", true))

		reply := f.replies.next(t)
		assert.EqualValues(t, 61, reply.ID)
		assert.EqualValues(t, 2, reply.Result)
		reply = f.replies.next(t)
		assert.EqualValues(t, 60, reply.ID)
		assert.Equal(t, "home", reply.Result)

		f.table.Resolve(message.NewResponse(1, "loaded"))
		result := <-done
		require.NoError(t, result.err)
		assert.Equal(t, "loaded", result.reply.Result)
		assert.Zero(t, f.table.Len())
	})
	t.Run("With timeout evicting the slot", func(t *testing.T) {
		f := newFixture(t)
		slot, err := f.table.Register(&message.Message{ID: 4, Kind: message.Dynamic, InstanceID: "n1", Action: "noop"})
		require.NoError(t, err)

		start := time.Now()
		_, err = f.dispatcher.Await(ctx, slot, 50*time.Millisecond)
		require.ErrorIs(t, err, errors.ErrTimeout)
		assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
		assert.Zero(t, f.table.Len())

		// a late reply is a no-op
		assert.False(t, f.table.Resolve(message.NewResponse(4, nil)))
	})
	t.Run("With context cancellation", func(t *testing.T) {
		f := newFixture(t)
		slot, err := f.table.Register(&message.Message{ID: 5, Kind: message.Dynamic, InstanceID: "n1", Action: "noop"})
		require.NoError(t, err)

		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		_, err = f.dispatcher.Await(cctx, slot, time.Second)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Zero(t, f.table.Len())
	})
	t.Run("With concurrent waiters sharing one token", func(t *testing.T) {
		f := newFixture(t)
		running := atomic.NewInt32(0)
		overlap := atomic.NewBool(false)
		_, err := f.callbacks.Register("c1", func(context.Context, []any) (any, error) {
			if running.Inc() > 1 {
				overlap.Store(true)
			}
			time.Sleep(time.Millisecond)
			running.Dec()
			return nil, nil
		}, true)
		require.NoError(t, err)

		const callers = 8
		var wg sync.WaitGroup
		for i := range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id := uint64(100 + i)
				slot, err := f.table.Register(&message.Message{ID: id, Kind: message.Dynamic, InstanceID: "n1", Action: "work"})
				if !assert.NoError(t, err) {
					return
				}
				_, err = f.dispatcher.Await(ctx, slot, 2*time.Second)
				assert.NoError(t, err)
			}()
		}

		for i := range callers {
			f.dispatcher.Dispatch(emit(uint64(500+i), "c1", true))
		}
		for range callers {
			f.replies.next(t)
		}
		for i := range callers {
			f.table.Resolve(message.NewResponse(uint64(100+i), nil))
		}
		wg.Wait()
		assert.False(t, overlap.Load())
		assert.EqualValues(t, callers, f.dispatcher.Executed())
	})
}
