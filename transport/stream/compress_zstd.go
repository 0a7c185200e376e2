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
	"net"

	"github.com/klauspost/compress/zstd"
)

// ZstdConnWrapper wraps connections with Zstandard compression.
// Encoding and decoding run synchronously on the calling goroutine.
type ZstdConnWrapper struct {
	encoderOpts []zstd.EOption
	decoderOpts []zstd.DOption
}

var _ ConnWrapper = (*ZstdConnWrapper)(nil)

// NewZstdConnWrapper creates a ZstdConnWrapper. It validates the encoder and
// decoder configuration eagerly.
func NewZstdConnWrapper(level zstd.EncoderLevel) (*ZstdConnWrapper, error) {
	w := &ZstdConnWrapper{
		encoderOpts: []zstd.EOption{
			zstd.WithEncoderLevel(level),
			zstd.WithWindowSize(256 << 10),
			zstd.WithEncoderConcurrency(1),
			zstd.WithLowerEncoderMem(true),
			zstd.WithZeroFrames(true),
		},
		decoderOpts: []zstd.DOption{
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderLowmem(true),
			zstd.WithDecoderMaxMemory(64 << 20),
		},
	}

	enc, err := zstd.NewWriter(nil, w.encoderOpts...)
	if err != nil {
		return nil, errors.Join(ErrZstdInvalidOptions, err)
	}
	_ = enc.Close()

	dec, err := zstd.NewReader(nil, w.decoderOpts...)
	if err != nil {
		return nil, errors.Join(ErrZstdInvalidOptions, err)
	}
	dec.Close()

	return w, nil
}

// Wrap applies Zstandard compression to conn.
func (z *ZstdConnWrapper) Wrap(conn net.Conn) (net.Conn, error) {
	enc, err := zstd.NewWriter(conn, z.encoderOpts...)
	if err != nil {
		return nil, errors.Join(ErrZstdEncoderInit, err)
	}

	dec, err := zstd.NewReader(conn, z.decoderOpts...)
	if err != nil {
		_ = enc.Close()
		return nil, errors.Join(ErrZstdDecoderInit, err)
	}

	// the encoder and decoder may still be in use by a concurrent Send or
	// Receive when the connection closes; they are left to the collector.
	return &compressedConn{raw: conn, reader: dec, writer: enc}, nil
}
