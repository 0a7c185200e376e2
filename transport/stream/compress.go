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

package stream

import (
	"errors"
	"io"
	"net"
	"time"
)

var (
	// ErrZstdEncoderInit is returned when a zstd encoder cannot be created
	ErrZstdEncoderInit = errors.New("zstd: failed to create encoder")
	// ErrZstdDecoderInit is returned when a zstd decoder cannot be created
	ErrZstdDecoderInit = errors.New("zstd: failed to create decoder")
	// ErrZstdInvalidOptions is returned when the zstd options are rejected
	ErrZstdInvalidOptions = errors.New("zstd: invalid options")
	// ErrBrotliWriterInit is returned when a brotli writer or reader cannot be created
	ErrBrotliWriterInit = errors.New("brotli: failed to create writer")
)

// ConnWrapper transforms a net.Conn, typically by adding a compression layer.
// Implementations must be safe to call from multiple goroutines.
type ConnWrapper interface {
	Wrap(conn net.Conn) (net.Conn, error)
}

type flushWriter interface {
	io.Writer
	Flush() error
}

// compressedConn flushes after every write so each frame reaches the peer
// as soon as it is sent. The bridge never coalesces calls.
type compressedConn struct {
	raw    net.Conn
	reader io.Reader
	writer flushWriter
}

var _ net.Conn = (*compressedConn)(nil)

func (c *compressedConn) Read(p []byte) (int, error) {
	return c.reader.Read(p)
}

func (c *compressedConn) Write(p []byte) (int, error) {
	n, err := c.writer.Write(p)
	if err != nil {
		return n, err
	}
	return n, c.writer.Flush()
}

func (c *compressedConn) Close() error {
	// closing the socket unblocks a pending Read on the decompressor
	return c.raw.Close()
}

func (c *compressedConn) LocalAddr() net.Addr                { return c.raw.LocalAddr() }
func (c *compressedConn) RemoteAddr() net.Addr               { return c.raw.RemoteAddr() }
func (c *compressedConn) SetDeadline(t time.Time) error      { return c.raw.SetDeadline(t) }
func (c *compressedConn) SetReadDeadline(t time.Time) error  { return c.raw.SetReadDeadline(t) }
func (c *compressedConn) SetWriteDeadline(t time.Time) error { return c.raw.SetWriteDeadline(t) }
