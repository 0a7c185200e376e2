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

package shm

import (
	"github.com/tochemey/enginebridge/log"
)

// Option configures a shared-memory transport
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
	dir          string
	regionSize   int
	openAttempts int
	logger       log.Logger
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		dir:          defaultDir(),
		regionSize:   DefaultRegionSize,
		openAttempts: 20,
		logger:       log.DiscardLogger,
	}
	for _, opt := range opts {
		opt.Apply(cfg)
	}
	return cfg
}

// WithDir sets the directory holding the backing files. Defaults to /dev/shm
// when present, the OS temp dir otherwise.
func WithDir(dir string) Option {
	return OptionFunc(func(c *config) {
		if dir != "" {
			c.dir = dir
		}
	})
}

// WithRegionSize sets the size of each direction's region, header included
func WithRegionSize(size int) Option {
	return OptionFunc(func(c *config) {
		if size > headerSize+slack {
			c.regionSize = size
		}
	})
}

// WithOpenAttempts sets how many times Open tries to attach to the peer's regions
func WithOpenAttempts(attempts int) Option {
	return OptionFunc(func(c *config) {
		if attempts > 0 {
			c.openAttempts = attempts
		}
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
