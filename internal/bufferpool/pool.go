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

// Package bufferpool recycles frame buffers on the send path.
package bufferpool

import (
	"bytes"
	"sync"
)

// maxRetained caps the capacity of buffers returned to the pool so a single
// large frame does not pin memory for the lifetime of the process.
const maxRetained = 1 << 20

// Pool is the process-wide frame buffer pool
var Pool = New()

// BufferPool is a pool of bytes.Buffer
type BufferPool struct {
	pool sync.Pool
}

// New creates a BufferPool
func New() *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() any {
				return new(bytes.Buffer)
			},
		},
	}
}

// Get returns an empty buffer able to hold at least size bytes
func (p *BufferPool) Get(size int) *bytes.Buffer {
	buf := p.pool.Get().(*bytes.Buffer)
	buf.Grow(size)
	return buf
}

// Put resets the buffer and returns it to the pool
func (p *BufferPool) Put(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxRetained {
		return
	}
	buf.Reset()
	p.pool.Put(buf)
}
