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

// Package queue provides the unbounded multi-producer single-consumer queue
// used for inbound notifications and engine tasks.
package queue

import (
	"sync/atomic"

	uatomic "go.uber.org/atomic"
)

type node[T any] struct {
	value T
	next  atomic.Pointer[node[T]]
}

// Mpsc is a Multi-Producer-Single-Consumer queue.
// reference: https://concurrencyfreaks.blogspot.com/2014/04/multi-producer-single-consumer-queue.html
//
// Push may be called from any goroutine. Pop and IsEmpty must not run
// concurrently with each other; callers hand the consumer role over through a
// synchronizing primitive.
type Mpsc[T any] struct {
	head   atomic.Pointer[node[T]]
	tail   *node[T]
	length *uatomic.Int64
}

// NewMpsc creates an empty queue
func NewMpsc[T any]() *Mpsc[T] {
	stub := new(node[T])
	q := &Mpsc[T]{
		tail:   stub,
		length: uatomic.NewInt64(0),
	}
	q.head.Store(stub)
	return q
}

// Push appends the value (FIFO)
func (q *Mpsc[T]) Push(value T) {
	n := &node[T]{value: value}
	previous := q.head.Swap(n)
	q.length.Inc()
	previous.next.Store(n)
}

// Pop removes the oldest value. It returns false when the queue is empty.
func (q *Mpsc[T]) Pop() (T, bool) {
	var zero T
	next := q.tail.next.Load()
	if next == nil {
		return zero, false
	}
	q.tail = next
	value := next.value
	next.value = zero
	q.length.Dec()
	return value, true
}

// Len returns the number of queued values. A value being pushed may be
// counted before Pop can observe it.
func (q *Mpsc[T]) Len() int64 {
	return q.length.Load()
}

// IsEmpty reports whether Pop would return false
func (q *Mpsc[T]) IsEmpty() bool {
	return q.tail.next.Load() == nil
}
