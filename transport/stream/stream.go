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

// Package stream implements the TCP transport.
package stream

import (
	"bufio"
	stderrors "errors"
	"io"
	"net"
	"sync"

	"go.uber.org/atomic"

	"github.com/tochemey/enginebridge/errors"
	"github.com/tochemey/enginebridge/internal/bufferpool"
	"github.com/tochemey/enginebridge/log"
	"github.com/tochemey/enginebridge/transport"
)

// Transport sends and receives frames over a single connection.
type Transport struct {
	conn         net.Conn
	reader       *bufio.Reader
	framing      Framing
	maxFrameSize int
	logger       log.Logger

	writeMu   sync.Mutex
	closed    *atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

var _ transport.Transport = (*Transport)(nil)

// New creates a Transport over conn. TCP_NODELAY is enabled on TCP connections
// and the configured ConnWrapper, if any, is applied.
func New(conn net.Conn, opts ...Option) (*Transport, error) {
	cfg := newConfig(opts...)
	return newTransport(conn, cfg)
}

func newTransport(conn net.Conn, cfg *config) (*Transport, error) {
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	if cfg.wrapper != nil {
		wrapped, err := cfg.wrapper.Wrap(conn)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		conn = wrapped
	}

	return &Transport{
		conn:         conn,
		reader:       bufio.NewReaderSize(conn, cfg.readBuffer),
		framing:      cfg.framing,
		maxFrameSize: cfg.maxFrameSize,
		logger:       cfg.logger,
		closed:       atomic.NewBool(false),
	}, nil
}

// Send writes one frame. Concurrent senders are serialized so frames never interleave.
func (t *Transport) Send(frame []byte) error {
	if t.closed.Load() {
		return errors.NewErrTransportDisconnected(net.ErrClosed)
	}

	buf := bufferpool.Pool.Get(len(frame) + lengthPrefixSize)
	defer bufferpool.Pool.Put(buf)

	if err := t.framing.appendFrame(buf, frame, t.maxFrameSize); err != nil {
		return err
	}

	t.writeMu.Lock()
	_, err := t.conn.Write(buf.Bytes())
	t.writeMu.Unlock()

	if err != nil {
		return errors.NewErrTransportDisconnected(err)
	}
	return nil
}

// Receive blocks until a full frame is available. A frame whose length is zero
// or exceeds the maximum frame size yields errors.ErrCorruptFrame.
func (t *Transport) Receive() ([]byte, error) {
	frame, err := t.framing.readFrame(t.reader, t.maxFrameSize)
	if err == nil {
		return frame, nil
	}
	if stderrors.Is(err, errors.ErrCorruptFrame) {
		t.logger.Errorf("stream transport: %v", err)
		return nil, err
	}
	if !t.closed.Load() && !stderrors.Is(err, io.EOF) {
		t.logger.Warnf("stream transport: read failed: %v", err)
	}
	return nil, errors.NewErrTransportDisconnected(err)
}

// Close closes the connection. It is safe to call more than once.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}

// LocalAddr returns the local network address
func (t *Transport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// RemoteAddr returns the peer network address
func (t *Transport) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}
