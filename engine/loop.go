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

// Package engine provides the single goroutine that is allowed to touch the
// embedded engine. Any goroutine may hand it work; only the loop executes it.
package engine

import (
	"context"
	stderrors "errors"
	"runtime"
	"sync"

	"go.uber.org/atomic"

	"github.com/tochemey/enginebridge/errors"
	"github.com/tochemey/enginebridge/internal/queue"
	"github.com/tochemey/enginebridge/log"
)

// ErrLoopStopped is returned when work is handed to a stopped loop
var ErrLoopStopped = stderrors.New("engine loop stopped")

// Task is a unit of work executed on the loop goroutine. The context it
// receives identifies the loop, see OnLoop.
type Task func(ctx context.Context)

type loopKey struct{}

// Loop is a single-consumer task queue bound to one OS thread.
type Loop struct {
	tasks  *queue.Mpsc[Task]
	wake   chan struct{}
	stopCh chan struct{}
	done   chan struct{}

	// guards the stopped transition against concurrent Post so that the
	// final drain observes every accepted task
	mu      sync.RWMutex
	stopped *atomic.Bool
	started *atomic.Bool
	stopOne sync.Once

	executed *atomic.Uint64
	logger   log.Logger
}

// NewLoop creates a Loop. Call Start to run it.
func NewLoop(logger log.Logger) *Loop {
	if logger == nil {
		logger = log.DiscardLogger
	}
	return &Loop{
		tasks:    queue.NewMpsc[Task](),
		wake:     make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		stopped:  atomic.NewBool(false),
		started:  atomic.NewBool(false),
		executed: atomic.NewUint64(0),
		logger:   logger,
	}
}

// Start runs the loop goroutine. It is a no-op when already started.
func (l *Loop) Start() {
	if !l.started.CompareAndSwap(false, true) {
		return
	}
	go l.run()
}

// Post enqueues the task without waiting for it to run.
func (l *Loop) Post(task Task) error {
	if task == nil {
		return nil
	}

	l.mu.RLock()
	if l.stopped.Load() {
		l.mu.RUnlock()
		return ErrLoopStopped
	}
	l.tasks.Push(task)
	l.mu.RUnlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Do runs fn on the loop and waits for its result. When called from the loop
// itself fn runs inline, so nested Do calls never deadlock.
// A panic in fn is returned as an *errors.PanicError.
func (l *Loop) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if l.OnLoop(ctx) {
		return call(ctx, fn)
	}

	result := make(chan error, 1)
	if err := l.Post(func(ctx context.Context) {
		result <- call(ctx, fn)
	}); err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-l.done:
		select {
		case err := <-result:
			return err
		default:
			return ErrLoopStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnLoop reports whether ctx was handed out by this loop to a running task.
func (l *Loop) OnLoop(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	owner, ok := ctx.Value(loopKey{}).(*Loop)
	return ok && owner == l
}

// Stop refuses further tasks, runs the ones already queued and waits for the
// loop goroutine to exit. It is safe to call more than once.
func (l *Loop) Stop() {
	l.stopOne.Do(func() {
		l.mu.Lock()
		l.stopped.Store(true)
		l.mu.Unlock()
		close(l.stopCh)
		if !l.started.CompareAndSwap(false, true) {
			return
		}
		// never started: nothing will close done
		close(l.done)
	})
	<-l.done
}

// Stopped reports whether Stop was called
func (l *Loop) Stopped() bool {
	return l.stopped.Load()
}

// Executed returns the number of tasks run so far
func (l *Loop) Executed() uint64 {
	return l.executed.Load()
}

// Pending returns the number of queued tasks
func (l *Loop) Pending() int64 {
	return l.tasks.Len()
}

func (l *Loop) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(l.done)

	ctx := context.WithValue(context.Background(), loopKey{}, l)
	for {
		l.drain(ctx)
		select {
		case <-l.wake:
		case <-l.stopCh:
			l.drain(ctx)
			return
		}
	}
}

func (l *Loop) drain(ctx context.Context) {
	for {
		task, ok := l.tasks.Pop()
		if !ok {
			return
		}
		l.safeExecute(ctx, task)
	}
}

func (l *Loop) safeExecute(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Errorf("engine: task panicked: %v", errors.NewPanicError(r))
		}
		l.executed.Inc()
	}()
	task(ctx)
}

func call(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewPanicError(r)
		}
	}()
	return fn(ctx)
}
