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
	"time"

	"github.com/tochemey/enginebridge/log"
)

// Option configures a stream transport
type Option interface {
	// Apply sets the Option value of a config.
	Apply(config *config)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(config *config)

// Apply applies the option
func (f OptionFunc) Apply(c *config) {
	f(c)
}

type config struct {
	framing      Framing
	maxFrameSize int
	wrapper      ConnWrapper
	logger       log.Logger
	dialTimeout  time.Duration
	dialAttempts int
	readBuffer   int
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		framing:      LengthPrefixed,
		maxFrameSize: DefaultMaxFrameSize,
		logger:       log.DiscardLogger,
		dialTimeout:  5 * time.Second,
		dialAttempts: 10,
		readBuffer:   64 << 10,
	}
	for _, opt := range opts {
		opt.Apply(cfg)
	}
	return cfg
}

// WithFraming sets the framing. Defaults to LengthPrefixed.
func WithFraming(framing Framing) Option {
	return OptionFunc(func(c *config) {
		c.framing = framing
	})
}

// WithMaxFrameSize bounds the size of a single frame. Defaults to DefaultMaxFrameSize.
func WithMaxFrameSize(size int) Option {
	return OptionFunc(func(c *config) {
		if size > 0 {
			c.maxFrameSize = size
		}
	})
}

// WithConnWrapper wraps every connection, typically with a compression layer.
// Both peers must use the same wrapper.
func WithConnWrapper(wrapper ConnWrapper) Option {
	return OptionFunc(func(c *config) {
		c.wrapper = wrapper
	})
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	})
}

// WithDialTimeout sets the timeout of a single dial attempt
func WithDialTimeout(timeout time.Duration) Option {
	return OptionFunc(func(c *config) {
		c.dialTimeout = timeout
	})
}

// WithDialAttempts sets how many times Dial tries to reach the peer
func WithDialAttempts(attempts int) Option {
	return OptionFunc(func(c *config) {
		if attempts > 0 {
			c.dialAttempts = attempts
		}
	})
}
