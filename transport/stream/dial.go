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
	"context"
	"net"
	"time"

	"github.com/flowchartsman/retry"
)

// Dial connects to the peer listening on address. Failed attempts are retried
// with backoff while the peer process comes up.
func Dial(ctx context.Context, address string, opts ...Option) (*Transport, error) {
	cfg := newConfig(opts...)
	dialer := &net.Dialer{
		Timeout:   cfg.dialTimeout,
		KeepAlive: 15 * time.Second,
	}

	var conn net.Conn
	retrier := retry.NewRetrier(cfg.dialAttempts, 50*time.Millisecond, time.Second)
	err := retrier.RunContext(ctx, func(ctx context.Context) error {
		c, err := dialer.DialContext(ctx, "tcp", address)
		if err != nil {
			cfg.logger.Debugf("stream transport: dial %s failed: %v", address, err)
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	cfg.logger.Infof("stream transport: connected to %s", address)
	return newTransport(conn, cfg)
}
