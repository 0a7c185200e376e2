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

package correlation

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tochemey/enginebridge/errors"
	"github.com/tochemey/enginebridge/log"
	"github.com/tochemey/enginebridge/message"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func request(id uint64) *message.Message {
	return &message.Message{ID: id, Kind: message.Dynamic, InstanceID: "n1", Action: "setText", Params: []any{"hello"}}
}

func TestTable(t *testing.T) {
	ctx := context.Background()

	t.Run("With reply resolving the slot", func(t *testing.T) {
		table := New(log.DiscardLogger)
		slot, err := table.Register(request(7))
		require.NoError(t, err)
		assert.Equal(t, 1, table.Len())

		go table.Resolve(message.NewResponse(7, nil))

		reply, err := table.Await(ctx, slot, time.Second)
		require.NoError(t, err)
		assert.EqualValues(t, 7, reply.ID)
		assert.Nil(t, reply.Result)
		assert.Zero(t, table.Len())
	})
	t.Run("With duplicate id", func(t *testing.T) {
		table := New(nil)
		_, err := table.Register(request(1))
		require.NoError(t, err)
		_, err = table.Register(request(1))
		assert.ErrorIs(t, err, errors.ErrDuplicateID)
		_, err = table.Register(request(0))
		assert.ErrorIs(t, err, errors.ErrInvalidMessage)
	})
	t.Run("With unknown reply", func(t *testing.T) {
		table := New(log.DiscardLogger)
		assert.False(t, table.Resolve(message.NewResponse(99, nil)))
	})
	t.Run("With timeout evicting the slot", func(t *testing.T) {
		table := New(log.DiscardLogger)
		slot, err := table.Register(request(3))
		require.NoError(t, err)

		start := time.Now()
		_, err = table.Await(ctx, slot, 50*time.Millisecond)
		elapsed := time.Since(start)

		require.ErrorIs(t, err, errors.ErrTimeout)
		assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
		assert.Less(t, elapsed, 500*time.Millisecond)
		assert.Contains(t, err.Error(), "Operation timed out after 0.05s, request data: Dynamic{id=3")
		assert.Zero(t, table.Len())

		// a late reply is a no-op and does not resurrect the caller
		assert.False(t, table.Resolve(message.NewResponse(3, "late")))
		_, err = slot.Result()
		assert.ErrorIs(t, err, errors.ErrTimeout)
	})
	t.Run("With context cancellation", func(t *testing.T) {
		table := New(log.DiscardLogger)
		slot, err := table.Register(request(4))
		require.NoError(t, err)

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err = table.Await(cctx, slot, time.Second)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, table.Len())
	})
	t.Run("With CancelAll", func(t *testing.T) {
		table := New(log.DiscardLogger)
		slots := make([]*Slot, 0, 10)
		for id := uint64(1); id <= 10; id++ {
			slot, err := table.Register(request(id))
			require.NoError(t, err)
			slots = append(slots, slot)
		}

		assert.Equal(t, 10, table.CancelAll(errors.ErrTransportDisconnected))
		assert.Zero(t, table.Len())
		for _, slot := range slots {
			_, err := table.Await(ctx, slot, time.Second)
			assert.ErrorIs(t, err, errors.ErrTransportDisconnected)
		}
	})
	t.Run("With Fail", func(t *testing.T) {
		table := New(log.DiscardLogger)
		slot, err := table.Register(request(5))
		require.NoError(t, err)
		assert.True(t, table.Fail(5, errors.ErrBridgeClosed))
		assert.False(t, table.Fail(5, errors.ErrBridgeClosed))
		_, err = table.Await(ctx, slot, time.Second)
		assert.ErrorIs(t, err, errors.ErrBridgeClosed)
	})
	t.Run("With Evict guarding a reused id", func(t *testing.T) {
		table := New(log.DiscardLogger)
		first, err := table.Register(request(6))
		require.NoError(t, err)
		assert.True(t, table.Evict(first))

		second, err := table.Register(request(6))
		require.NoError(t, err)
		assert.False(t, table.Evict(first))
		assert.Equal(t, 1, table.Len())
		assert.True(t, table.Evict(second))
	})
	t.Run("With concurrent requests resolved in any order", func(t *testing.T) {
		table := New(log.DiscardLogger)
		const n = 200

		slots := make([]*Slot, n)
		for i := range n {
			slot, err := table.Register(request(uint64(i + 1)))
			require.NoError(t, err)
			slots[i] = slot
		}

		order := rand.Perm(n)
		go func() {
			for _, i := range order {
				table.Resolve(message.NewResponse(uint64(i+1), int64(i+1)))
			}
		}()

		var wg sync.WaitGroup
		results := make([]any, n)
		for i := range n {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				reply, err := table.Await(ctx, slots[i], 5*time.Second)
				if err == nil {
					results[i] = reply.Result
				}
			}(i)
		}
		wg.Wait()

		for i := range n {
			assert.Equal(t, int64(i+1), results[i])
		}
		assert.Zero(t, table.Len())
	})
}
