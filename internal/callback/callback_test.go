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

package callback

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func double(_ context.Context, args []any) (any, error) {
	return args[0].(int64) * 2, nil
}

func TestRegistry(t *testing.T) {
	t.Run("With register and lookup", func(t *testing.T) {
		registry := NewRegistry()
		_, err := registry.Register("c1", double, true)
		require.NoError(t, err)

		reg, ok := registry.Lookup("c1")
		require.True(t, ok)
		assert.True(t, reg.Sync)
		result, err := reg.Handler(context.Background(), []any{int64(42)})
		require.NoError(t, err)
		assert.Equal(t, int64(84), result)

		_, ok = registry.Lookup("c2")
		assert.False(t, ok)
	})
	t.Run("With invalid registrations", func(t *testing.T) {
		registry := NewRegistry()
		_, err := registry.Register("", double, false)
		assert.Error(t, err)
		_, err = registry.Register("c1", nil, false)
		assert.Error(t, err)
		_, err = registry.Register("c1", double, false)
		require.NoError(t, err)
		_, err = registry.Register("c1", double, false)
		assert.Error(t, err)
	})
	t.Run("With unregister", func(t *testing.T) {
		registry := NewRegistry()
		_, err := registry.Register("c1", double, false)
		require.NoError(t, err)
		assert.True(t, registry.Unregister("c1"))
		assert.False(t, registry.Unregister("c1"))
		assert.Zero(t, registry.Len())
	})
	t.Run("With clear", func(t *testing.T) {
		registry := NewRegistry()
		var wg sync.WaitGroup
		for i := range 100 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, _ = registry.Register(fmt.Sprintf("cb-%d", i), double, i%2 == 0)
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 100, registry.Len())
		assert.Equal(t, 100, registry.Clear())
		assert.Zero(t, registry.Len())
		_, ok := registry.Lookup("cb-1")
		assert.False(t, ok)
	})
}
