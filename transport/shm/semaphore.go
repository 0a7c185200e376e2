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
	"sync"

	"github.com/tochemey/enginebridge/errors"
)

// Semaphore is the out-of-band wakeup primitive of one ring direction.
// The producer posts once per message and the consumer waits once per message.
type Semaphore interface {
	// Post increments the count
	Post() error
	// Wait blocks until the count is positive and decrements it.
	// It returns ErrTransportDisconnected once the semaphore is closed.
	Wait() error
	// Close unblocks every waiter
	Close() error
}

// localSemaphore is a counting semaphore for rings shared within one process.
type localSemaphore struct {
	mu     sync.Mutex
	cond   *sync.Cond
	count  int
	closed bool
}

var _ Semaphore = (*localSemaphore)(nil)

func newLocalSemaphore() *localSemaphore {
	s := new(localSemaphore)
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *localSemaphore) Post() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.NewErrTransportDisconnected(errSemaphoreClosed)
	}
	s.count++
	s.cond.Signal()
	return nil
}

func (s *localSemaphore) Wait() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.count == 0 && !s.closed {
		s.cond.Wait()
	}
	if s.closed {
		return errors.NewErrTransportDisconnected(errSemaphoreClosed)
	}
	s.count--
	return nil
}

func (s *localSemaphore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cond.Broadcast()
	return nil
}
