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

// Package correlation tracks outstanding requests until their reply arrives.
package correlation

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/tochemey/enginebridge/errors"
	"github.com/tochemey/enginebridge/log"
	"github.com/tochemey/enginebridge/message"
)

const shardCount = 64

var errZeroID = stderrors.New("request id must not be zero")

// Slot is the single-resolution holder of one pending request.
type Slot struct {
	request *message.Message
	done    chan struct{}
	once    sync.Once
	reply   *message.Message
	err     error
}

// Done is closed once the slot is resolved, failed or evicted
func (s *Slot) Done() <-chan struct{} {
	return s.done
}

// Request returns the outgoing message the slot was registered for
func (s *Slot) Request() *message.Message {
	return s.request
}

// Result returns the reply or the failure. Only valid once Done is closed.
func (s *Slot) Result() (*message.Message, error) {
	return s.reply, s.err
}

func (s *Slot) complete(reply *message.Message, err error) {
	s.once.Do(func() {
		s.reply = reply
		s.err = err
		close(s.done)
	})
}

type shard struct {
	mu    sync.Mutex
	slots map[uint64]*Slot
}

// Table maps request ids to their pending slot. Shard locks are held only for
// insert, remove and lookup; slots are completed after the lock is released.
type Table struct {
	shards [shardCount]shard
	size   *atomic.Int64
	logger log.Logger
}

// New creates an empty Table
func New(logger log.Logger) *Table {
	if logger == nil {
		logger = log.DiscardLogger
	}
	t := &Table{
		size:   atomic.NewInt64(0),
		logger: logger,
	}
	for i := range t.shards {
		t.shards[i].slots = make(map[uint64]*Slot)
	}
	return t
}

func (t *Table) shard(id uint64) *shard {
	return &t.shards[id&(shardCount-1)]
}

// Register inserts an empty slot for the request. It must be called before the
// request is sent so a racing reply always finds its slot.
func (t *Table) Register(request *message.Message) (*Slot, error) {
	id := request.ID
	if id == 0 {
		return nil, errors.NewErrInvalidMessage(errZeroID)
	}

	slot := &Slot{request: request, done: make(chan struct{})}
	s := t.shard(id)
	s.mu.Lock()
	if _, exists := s.slots[id]; exists {
		s.mu.Unlock()
		return nil, errors.NewErrDuplicateID(id)
	}
	s.slots[id] = slot
	s.mu.Unlock()

	t.size.Inc()
	return slot, nil
}

// Resolve delivers the reply to the slot registered under reply.ID and removes
// it. An unknown id, typically a reply arriving after its request timed out,
// is logged and ignored.
func (t *Table) Resolve(reply *message.Message) bool {
	slot := t.remove(reply.ID, nil)
	if slot == nil {
		t.logger.Warnf("correlation: dropping %s, no pending request", reply)
		return false
	}
	slot.complete(reply, nil)
	return true
}

// Await blocks until the slot resolves, ctx is done or timeout elapses.
// On timeout the slot is evicted and an *errors.TimeoutError carrying the
// request is returned.
func (t *Table) Await(ctx context.Context, slot *Slot, timeout time.Duration) (*message.Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-slot.Done():
		return slot.Result()
	case <-timer.C:
		if err := t.Expire(slot, timeout); err != nil {
			return nil, err
		}
		return slot.Result()
	case <-ctx.Done():
		return t.Abandon(slot, ctx.Err())
	}
}

// Abandon fails the slot with err unless it was resolved concurrently, and
// returns its final outcome.
func (t *Table) Abandon(slot *Slot, err error) (*message.Message, error) {
	if t.Evict(slot) {
		slot.complete(nil, err)
	}
	<-slot.Done()
	return slot.Result()
}

// Expire evicts a slot whose deadline passed and returns the timeout error.
// It returns nil when the slot was resolved concurrently.
func (t *Table) Expire(slot *Slot, timeout time.Duration) error {
	if !t.Evict(slot) {
		<-slot.Done()
		return nil
	}
	err := errors.NewTimeoutError(timeout, slot.request.String())
	slot.complete(nil, err)
	return err
}

// Evict removes the slot without resolving it. It returns false when the slot
// is no longer in the table.
func (t *Table) Evict(slot *Slot) bool {
	return t.remove(slot.request.ID, slot) != nil
}

// Fail completes the slot registered under id with err
func (t *Table) Fail(id uint64, err error) bool {
	slot := t.remove(id, nil)
	if slot == nil {
		return false
	}
	slot.complete(nil, err)
	return true
}

// CancelAll fails every outstanding slot with err so no caller waits forever
func (t *Table) CancelAll(err error) int {
	var cancelled []*Slot
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		for id, slot := range s.slots {
			delete(s.slots, id)
			cancelled = append(cancelled, slot)
		}
		s.mu.Unlock()
	}

	t.size.Sub(int64(len(cancelled)))
	for _, slot := range cancelled {
		slot.complete(nil, err)
	}
	return len(cancelled)
}

// Len returns the number of outstanding requests
func (t *Table) Len() int {
	return int(t.size.Load())
}

// remove deletes the slot under id. When expected is set it is removed only
// if it is still the registered slot.
func (t *Table) remove(id uint64, expected *Slot) *Slot {
	s := t.shard(id)
	s.mu.Lock()
	slot, ok := s.slots[id]
	if !ok || (expected != nil && slot != expected) {
		s.mu.Unlock()
		return nil
	}
	delete(s.slots, id)
	s.mu.Unlock()

	t.size.Dec()
	return slot
}
