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
	"net"

	"github.com/andybalholm/brotli"
)

// BrotliConnWrapper wraps connections with Brotli compression.
type BrotliConnWrapper struct {
	level int
}

var _ ConnWrapper = (*BrotliConnWrapper)(nil)

// NewBrotliConnWrapper creates a BrotliConnWrapper at the given compression level
func NewBrotliConnWrapper(level int) *BrotliConnWrapper {
	if level < brotli.BestSpeed || level > brotli.BestCompression {
		level = brotli.DefaultCompression
	}
	return &BrotliConnWrapper{level: level}
}

// Wrap applies Brotli compression to conn.
func (b *BrotliConnWrapper) Wrap(conn net.Conn) (net.Conn, error) {
	bw := brotli.NewWriterLevel(conn, b.level)
	br := brotli.NewReader(conn)
	if bw == nil || br == nil {
		return nil, ErrBrotliWriterInit
	}
	return &compressedConn{raw: conn, reader: br, writer: bw}, nil
}
