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

package idgen

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounter(t *testing.T) {
	t.Run("With sequential ids", func(t *testing.T) {
		counter := NewCounter()
		assert.EqualValues(t, 1, counter.Next())
		assert.EqualValues(t, 2, counter.Next())
	})
	t.Run("With overflow wraps back to one", func(t *testing.T) {
		counter := newCounterAt(math.MaxUint32 - 1)
		assert.EqualValues(t, math.MaxUint32, counter.Next())
		assert.EqualValues(t, 1, counter.Next())
	})
	t.Run("With concurrent callers ids are unique", func(t *testing.T) {
		counter := NewCounter()
		const workers, perWorker = 8, 1000
		ids := make(chan uint64, workers*perWorker)
		var wg sync.WaitGroup
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range perWorker {
					ids <- counter.Next()
				}
			}()
		}
		wg.Wait()
		close(ids)

		seen := make(map[uint64]struct{}, workers*perWorker)
		for id := range ids {
			_, dup := seen[id]
			require.False(t, dup)
			seen[id] = struct{}{}
		}
		assert.Len(t, seen, workers*perWorker)
	})
}

func TestSnowflake(t *testing.T) {
	t.Run("With node and timestamp", func(t *testing.T) {
		at := Epoch.Add(90 * time.Minute)
		gen := NewSnowflake(7)
		gen.now = func() time.Time { return at }

		first := gen.Next()
		second := gen.Next()
		require.NotZero(t, first)
		assert.Greater(t, second, first)

		ts, node, seq := Decompose(second)
		assert.True(t, ts.Equal(at))
		assert.EqualValues(t, 7, node)
		assert.EqualValues(t, 1, seq)
	})
	t.Run("With clock moving backwards ids stay increasing", func(t *testing.T) {
		at := Epoch.Add(time.Hour)
		gen := NewSnowflake(1)
		gen.now = func() time.Time { return at }
		first := gen.Next()
		at = at.Add(-time.Second)
		assert.Greater(t, gen.Next(), first)
	})
	t.Run("With exhausted sequence waits for the next millisecond", func(t *testing.T) {
		start := Epoch.Add(time.Hour)
		calls := 0
		gen := NewSnowflake(2)
		gen.now = func() time.Time {
			calls++
			if calls > maxSequence+2 {
				return start.Add(time.Millisecond)
			}
			return start
		}
		var last uint64
		for range maxSequence + 2 {
			id := gen.Next()
			require.Greater(t, id, last)
			last = id
		}
		ts, _, seq := Decompose(last)
		assert.True(t, ts.Equal(start.Add(time.Millisecond)))
		assert.EqualValues(t, 0, seq)
	})
	t.Run("With distinct nodes ids never collide", func(t *testing.T) {
		at := Epoch.Add(time.Hour)
		a, b := NewSnowflake(1), NewSnowflake(2)
		a.now = func() time.Time { return at }
		b.now = a.now
		assert.NotEqual(t, a.Next(), b.Next())
	})
}
