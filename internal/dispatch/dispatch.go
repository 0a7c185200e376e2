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

// Package dispatch executes peer-initiated messages on the goroutine that
// holds the engine token.
//
// A goroutine waiting on its own pending request keeps serving inbound
// callbacks and requests while it waits, so a peer that calls back before
// replying never deadlocks the bridge. When nobody waits, a pump scheduled on
// the engine loop drains the queue instead.
package dispatch

import (
	"context"
	"fmt"
	"time"

	goset "github.com/deckarep/golang-set/v2"
	"go.uber.org/atomic"

	"github.com/tochemey/enginebridge/engine"
	"github.com/tochemey/enginebridge/errors"
	"github.com/tochemey/enginebridge/internal/callback"
	"github.com/tochemey/enginebridge/internal/correlation"
	"github.com/tochemey/enginebridge/internal/queue"
	"github.com/tochemey/enginebridge/log"
	"github.com/tochemey/enginebridge/message"
)

// Handler serves inbound Constructor, Static, Dynamic and DynamicProperty
// requests. For a Constructor the result is the new instance id.
type Handler interface {
	Handle(ctx context.Context, request *message.Message) (any, error)
}

// HandlerFunc adapts a function to a Handler
type HandlerFunc func(ctx context.Context, request *message.Message) (any, error)

// Handle implements Handler
func (f HandlerFunc) Handle(ctx context.Context, request *message.Message) (any, error) {
	return f(ctx, request)
}

// Sender writes a reply to the peer
type Sender func(ctx context.Context, reply *message.Message) error

type ownerKey struct{}

// Dispatcher runs the reentrant dispatch protocol for one connection.
type Dispatcher struct {
	table     *correlation.Table
	callbacks *callback.Registry
	handler   Handler
	loop      *engine.Loop
	send      Sender
	logger    log.Logger

	notifications *queue.Mpsc[*message.Message]
	// signal wakes the waiter holding the token
	signal chan struct{}
	// token is held by the only goroutine allowed to execute handlers
	token chan struct{}
	// busy counts the waiters, nested ones included, of the token holder
	busy          *atomic.Int32
	pumpScheduled *atomic.Bool
	inflight      goset.Set[uint64]

	executed *atomic.Uint64
	dropped  *atomic.Uint64
}

// New creates a Dispatcher. Pumps are posted to loop and replies go through send.
func New(table *correlation.Table, callbacks *callback.Registry, loop *engine.Loop, send Sender, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		table:         table,
		callbacks:     callbacks,
		loop:          loop,
		send:          send,
		logger:        log.DiscardLogger,
		notifications: queue.NewMpsc[*message.Message](),
		signal:        make(chan struct{}, 1),
		token:         make(chan struct{}, 1),
		busy:          atomic.NewInt32(0),
		pumpScheduled: atomic.NewBool(false),
		inflight:      goset.NewSet[uint64](),
		executed:      atomic.NewUint64(0),
		dropped:       atomic.NewUint64(0),
	}
	for _, opt := range opts {
		opt.Apply(d)
	}
	d.token <- struct{}{}
	return d
}

// Dispatch queues a peer-initiated message. It is called by the receive
// goroutine and never runs a handler itself.
func (d *Dispatcher) Dispatch(msg *message.Message) {
	if msg.ID != 0 && !d.inflight.Add(msg.ID) {
		d.logger.Warnf("dispatch: dropping %s, already in flight", msg)
		d.dropped.Inc()
		return
	}

	d.notifications.Push(msg)
	select {
	case d.signal <- struct{}{}:
	default:
	}

	if d.busy.Load() == 0 {
		d.schedulePump()
	}
}

// Await waits for the slot to resolve while executing queued messages.
// A caller that does not hold the engine token first competes for it; a
// handler calling back into the bridge already holds it through ctx.
func (d *Dispatcher) Await(ctx context.Context, slot *correlation.Slot, timeout time.Duration) (*message.Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	if !d.Owns(ctx) {
		select {
		case <-d.token:
		case <-slot.Done():
			return slot.Result()
		case <-timer.C:
			return d.expire(slot, timeout)
		case <-ctx.Done():
			return d.table.Abandon(slot, ctx.Err())
		}
		ctx = context.WithValue(ctx, ownerKey{}, d)
		defer d.release()
	}

	return d.wait(ctx, slot, timer, timeout)
}

// Owns reports whether ctx belongs to the goroutine holding the engine token
func (d *Dispatcher) Owns(ctx context.Context) bool {
	owner, ok := ctx.Value(ownerKey{}).(*Dispatcher)
	return ok && owner == d
}

// Busy reports whether a waiter is draining the queue
func (d *Dispatcher) Busy() bool {
	return d.busy.Load() > 0
}

// Pending returns the number of queued messages
func (d *Dispatcher) Pending() int64 {
	return d.notifications.Len()
}

// Executed returns the number of messages executed
func (d *Dispatcher) Executed() uint64 {
	return d.executed.Load()
}

// Dropped returns the number of messages dropped without execution
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

func (d *Dispatcher) wait(ctx context.Context, slot *correlation.Slot, timer *time.Timer, timeout time.Duration) (*message.Message, error) {
	d.busy.Inc()
	defer d.busy.Dec()

	for {
		d.drain(ctx)
		select {
		case <-slot.Done():
			// messages received ahead of the reply run before the caller resumes
			d.drain(ctx)
			return slot.Result()
		case <-d.signal:
		case <-timer.C:
			return d.expire(slot, timeout)
		case <-ctx.Done():
			return d.table.Abandon(slot, ctx.Err())
		}
	}
}

func (d *Dispatcher) expire(slot *correlation.Slot, timeout time.Duration) (*message.Message, error) {
	if err := d.table.Expire(slot, timeout); err != nil {
		return nil, err
	}
	return slot.Result()
}

// release hands the token back and covers messages queued after the last drain.
func (d *Dispatcher) release() {
	d.token <- struct{}{}
	if d.notifications.Len() > 0 && d.busy.Load() == 0 {
		d.schedulePump()
	}
}

func (d *Dispatcher) schedulePump() {
	if !d.pumpScheduled.CompareAndSwap(false, true) {
		return
	}
	if err := d.loop.Post(d.pump); err != nil {
		d.pumpScheduled.Store(false)
		d.logger.Debugf("dispatch: pump not scheduled: %v", err)
	}
}

func (d *Dispatcher) pump(ctx context.Context) {
	d.pumpScheduled.Store(false)
	select {
	case <-d.token:
	default:
		// the holder re-checks the queue on release
		return
	}
	d.drain(context.WithValue(ctx, ownerKey{}, d))
	d.release()
}

// drain runs queued messages. Only the token holder calls it.
func (d *Dispatcher) drain(ctx context.Context) {
	for {
		msg, ok := d.notifications.Pop()
		if !ok {
			return
		}
		d.execute(ctx, msg)
	}
}

func (d *Dispatcher) execute(ctx context.Context, msg *message.Message) {
	if msg.ID != 0 {
		defer d.inflight.Remove(msg.ID)
	}

	switch msg.Kind {
	case message.EmitCallback:
		d.invoke(ctx, msg)
	case message.Constructor, message.Static, message.Dynamic, message.DynamicProperty:
		d.serve(ctx, msg)
	default:
		d.logger.Errorf("dispatch: unexpected %s", msg)
		d.dropped.Inc()
	}
}

func (d *Dispatcher) invoke(ctx context.Context, msg *message.Message) {
	registration, ok := d.callbacks.Lookup(msg.CallbackID)
	if !ok {
		// the peer times out on its own
		d.logger.Error(errors.NewErrUnknownCallback(msg.CallbackID))
		d.dropped.Inc()
		return
	}

	result, err := safeCall(ctx, func(ctx context.Context) (any, error) {
		return registration.Handler(ctx, msg.Params)
	})
	d.executed.Inc()
	if err != nil {
		d.logger.Errorf("dispatch: callback %s failed: %v", msg.CallbackID, err)
	}

	if msg.ExpectsReply() {
		d.reply(ctx, message.NewCallbackReply(msg.ID, msg.CallbackID, result, err))
	}
}

func (d *Dispatcher) serve(ctx context.Context, msg *message.Message) {
	var (
		result any
		err    = errors.ErrNoHandler
	)
	if d.handler != nil {
		result, err = safeCall(ctx, func(ctx context.Context) (any, error) {
			return d.handler.Handle(ctx, msg)
		})
	}
	d.executed.Inc()
	if err != nil {
		d.logger.Errorf("dispatch: %s failed: %v", msg, err)
	}

	if msg.ExpectsReply() {
		d.reply(ctx, response(msg, result, err))
	}
}

func (d *Dispatcher) reply(ctx context.Context, reply *message.Message) {
	if err := d.send(context.WithoutCancel(ctx), reply); err != nil {
		d.logger.Errorf("dispatch: failed to send %s: %v", reply, err)
	}
}

func response(request *message.Message, result any, err error) *message.Message {
	if err != nil {
		return message.NewErrorResponse(request.ID, err)
	}
	if request.Kind != message.Constructor {
		return message.NewResponse(request.ID, result)
	}
	instanceID, ok := result.(string)
	if !ok || instanceID == "" {
		return message.NewErrorResponse(request.ID, errors.NewErrMarshal(fmt.Errorf("constructor of %s returned %T instead of an instance id", request.Class, result)))
	}
	return message.NewConstructed(request.ID, instanceID)
}

func safeCall(ctx context.Context, fn func(ctx context.Context) (any, error)) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, errors.NewPanicError(r)
		}
	}()
	return fn(ctx)
}
