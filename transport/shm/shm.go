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

// Package shm implements the shared-memory transport: one ring buffer per
// direction, each paired with a counting semaphore that wakes the consumer.
package shm

import (
	"context"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/flowchartsman/retry"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/tochemey/enginebridge/errors"
	"github.com/tochemey/enginebridge/log"
	"github.com/tochemey/enginebridge/transport"
)

const (
	// DefaultRegionSize is the size of each direction's region
	DefaultRegionSize = 1 << 20
	// DefaultName is the base name of the regions
	DefaultName = "enginebridge"

	clientToServer = ".c2s"
	serverToClient = ".s2c"
	semSuffix      = ".sem"

	minBackoff = 50 * time.Microsecond
	maxBackoff = time.Millisecond
)

var (
	errSemaphoreClosed = stderrors.New("semaphore closed")
	errTransportClosed = stderrors.New("transport closed")
)

// Transport is the shared-memory transport. The producer blocks while its
// ring is full; there is no give-up other than closing the transport.
type Transport struct {
	tx    *ring
	rx    *ring
	txSem Semaphore
	rxSem Semaphore

	// sendMu and recvMu are held while the rings are touched, so Close can
	// wait for in-flight operations before the regions are unmapped
	sendMu sync.Mutex
	recvMu sync.Mutex
	closed *atomic.Bool
	// semaphores are closed before regions
	semaphores []func() error
	regions    []func() error
	once       sync.Once
	err        error
	logger     log.Logger
}

var _ transport.Transport = (*Transport)(nil)

// Create creates and formats the regions and semaphores named after name.
// The creating side is the server: it receives on <name>.c2s and sends on <name>.s2c.
// Close removes the backing files.
func Create(name string, opts ...Option) (*Transport, error) {
	cfg := newConfig(opts...)
	t := newTransport(cfg.logger)

	inbound, err := mapRegion(cfg.path(name, clientToServer), cfg.regionSize, true)
	if err != nil {
		return nil, err
	}
	t.regions = append(t.regions, inbound.close)

	outbound, err := mapRegion(cfg.path(name, serverToClient), cfg.regionSize, true)
	if err != nil {
		return nil, t.abort(err)
	}
	t.regions = append(t.regions, outbound.close)

	if t.rx, err = initRing(inbound.mem); err != nil {
		return nil, t.abort(err)
	}
	if t.tx, err = initRing(outbound.mem); err != nil {
		return nil, t.abort(err)
	}

	rxSem, err := openFifoSemaphore(cfg.path(name, clientToServer+semSuffix), true)
	if err != nil {
		return nil, t.abort(err)
	}
	t.rxSem = rxSem
	t.semaphores = append(t.semaphores, rxSem.Close)

	txSem, err := openFifoSemaphore(cfg.path(name, serverToClient+semSuffix), true)
	if err != nil {
		return nil, t.abort(err)
	}
	t.txSem = txSem
	t.semaphores = append(t.semaphores, txSem.Close)

	cfg.logger.Infof("shm transport: created regions %s in %s (%d bytes)", name, cfg.dir, cfg.regionSize)
	return t, nil
}

// Open attaches to the regions created by the peer. The opening side is the
// client: it sends on <name>.c2s and receives on <name>.s2c. Open retries while
// the peer has not created the regions yet.
func Open(ctx context.Context, name string, opts ...Option) (*Transport, error) {
	cfg := newConfig(opts...)

	var t *Transport
	retrier := retry.NewRetrier(cfg.openAttempts, 10*time.Millisecond, 500*time.Millisecond)
	err := retrier.RunContext(ctx, func(context.Context) error {
		opened, err := open(name, cfg)
		if err != nil {
			cfg.logger.Debugf("shm transport: open %s failed: %v", name, err)
			return err
		}
		t = opened
		return nil
	})
	if err != nil {
		return nil, err
	}

	cfg.logger.Infof("shm transport: attached to regions %s in %s", name, cfg.dir)
	return t, nil
}

func open(name string, cfg *config) (*Transport, error) {
	t := newTransport(cfg.logger)

	outbound, err := mapRegion(cfg.path(name, clientToServer), 0, false)
	if err != nil {
		return nil, err
	}
	t.regions = append(t.regions, outbound.close)

	inbound, err := mapRegion(cfg.path(name, serverToClient), 0, false)
	if err != nil {
		return nil, t.abort(err)
	}
	t.regions = append(t.regions, inbound.close)

	if t.tx, err = attachRing(outbound.mem); err != nil {
		return nil, t.abort(err)
	}
	if t.rx, err = attachRing(inbound.mem); err != nil {
		return nil, t.abort(err)
	}

	txSem, err := openFifoSemaphore(cfg.path(name, clientToServer+semSuffix), false)
	if err != nil {
		return nil, t.abort(err)
	}
	t.txSem = txSem
	t.semaphores = append(t.semaphores, txSem.Close)

	rxSem, err := openFifoSemaphore(cfg.path(name, serverToClient+semSuffix), false)
	if err != nil {
		return nil, t.abort(err)
	}
	t.rxSem = rxSem
	t.semaphores = append(t.semaphores, rxSem.Close)
	return t, nil
}

// NewPair returns two connected transports backed by process memory.
// Each direction gets a ring of the given region size.
func NewPair(regionSize int) (*Transport, *Transport, error) {
	if regionSize <= 0 {
		regionSize = DefaultRegionSize
	}

	upstream, err := initRing(make([]byte, regionSize))
	if err != nil {
		return nil, nil, err
	}
	downstream, err := initRing(make([]byte, regionSize))
	if err != nil {
		return nil, nil, err
	}

	upSem, downSem := newLocalSemaphore(), newLocalSemaphore()

	client := newTransport(log.DiscardLogger)
	client.tx, client.txSem = upstream, upSem
	client.rx, client.rxSem = downstream, downSem
	// closing either side releases both waiters
	client.semaphores = []func() error{upSem.Close, downSem.Close}

	server := newTransport(log.DiscardLogger)
	server.tx, server.txSem = downstream, downSem
	server.rx, server.rxSem = upstream, upSem
	server.semaphores = []func() error{upSem.Close, downSem.Close}

	return client, server, nil
}

func newTransport(logger log.Logger) *Transport {
	return &Transport{
		closed: atomic.NewBool(false),
		logger: logger,
	}
}

// Send writes one message. It spin-waits with a bounded backoff while the
// ring lacks space and gives up only when the transport is closed.
func (t *Transport) Send(frame []byte) error {
	if len(frame) == 0 {
		return errors.NewErrCorruptFrame("empty frame")
	}
	if len(frame) > t.tx.maxMessage() {
		return fmt.Errorf("frame of %d bytes exceeds %d: %w", len(frame), t.tx.maxMessage(), errors.ErrFrameTooLarge)
	}

	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	backoff := minBackoff
	for {
		if t.closed.Load() {
			return errors.NewErrTransportDisconnected(errTransportClosed)
		}
		if t.tx.tryWrite(frame) {
			break
		}
		time.Sleep(backoff)
		backoff = min(2*backoff, maxBackoff)
	}

	if t.closed.Load() {
		return errors.NewErrTransportDisconnected(errTransportClosed)
	}
	return t.txSem.Post()
}

// Receive blocks on the semaphore until a message is published
func (t *Transport) Receive() ([]byte, error) {
	t.recvMu.Lock()
	defer t.recvMu.Unlock()

	for {
		if t.closed.Load() {
			return nil, errors.NewErrTransportDisconnected(errTransportClosed)
		}
		if err := t.rxSem.Wait(); err != nil {
			return nil, err
		}
		if t.closed.Load() {
			return nil, errors.NewErrTransportDisconnected(errTransportClosed)
		}

		frame, err := t.rx.read()
		if err != nil {
			t.logger.Errorf("shm transport: %v", err)
			return nil, err
		}
		if frame != nil {
			return frame, nil
		}
		t.logger.Warn("shm transport: woken on an empty ring")
	}
}

// Close releases the semaphores, waits for in-flight Send and Receive calls
// to leave the rings, then unmaps the regions. It is safe to call more than once.
func (t *Transport) Close() error {
	t.once.Do(func() {
		t.closed.Store(true)
		for _, closer := range t.semaphores {
			t.err = multierr.Append(t.err, closer())
		}

		t.sendMu.Lock()
		t.recvMu.Lock()
		defer t.sendMu.Unlock()
		defer t.recvMu.Unlock()

		for _, closer := range t.regions {
			t.err = multierr.Append(t.err, closer())
		}
	})
	return t.err
}

// MaxMessageSize returns the largest frame Send accepts
func (t *Transport) MaxMessageSize() int {
	return t.tx.maxMessage()
}

func (t *Transport) abort(err error) error {
	return multierr.Append(err, t.Close())
}

func (c *config) path(name, suffix string) string {
	return filepath.Join(c.dir, name+suffix)
}
