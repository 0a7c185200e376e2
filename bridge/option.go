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

package bridge

import (
	"time"

	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/tochemey/enginebridge/codec"
	"github.com/tochemey/enginebridge/engine"
	"github.com/tochemey/enginebridge/log"
	"github.com/tochemey/enginebridge/transport/shm"
	"github.com/tochemey/enginebridge/transport/stream"
)

// Option is the interface that applies a configuration option.
type Option interface {
	// Apply sets the Option value of a config.
	Apply(config *Config)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(config *Config)

// Apply applies the option
func (f OptionFunc) Apply(c *Config) {
	f(c)
}

// WithEncoding sets the message encoding. Both sides must agree on it.
func WithEncoding(encoding codec.Encoding) Option {
	return OptionFunc(func(c *Config) {
		c.encoding = encoding
	})
}

// WithFraming overrides the stream framing derived from the encoding
func WithFraming(framing stream.Framing) Option {
	return OptionFunc(func(c *Config) {
		c.framing = framing
		c.framingSet = true
	})
}

// WithSnowflakeIDs mints request ids with the snowflake scheme for the given node
func WithSnowflakeIDs(node uint16) Option {
	return OptionFunc(func(c *Config) {
		c.idScheme = SnowflakeIDs
		c.node = node
	})
}

// WithTimeout sets the reply timeout used when a call passes none
func WithTimeout(timeout time.Duration) Option {
	return OptionFunc(func(c *Config) {
		c.timeout = timeout
	})
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(c *Config) {
		c.logger = logger
	})
}

// WithHandler sets the handler serving the peer's requests
func WithHandler(handler Handler) Option {
	return OptionFunc(func(c *Config) {
		c.handler = handler
	})
}

// WithEngine runs handlers on an existing engine loop. The bridge then
// neither starts nor stops it.
func WithEngine(loop *engine.Loop) Option {
	return OptionFunc(func(c *Config) {
		c.engine = loop
	})
}

// WithMetrics registers the bridge otel instruments
func WithMetrics() Option {
	return OptionFunc(func(c *Config) {
		c.metrics = true
	})
}

// WithMeterProvider sets the meter provider used when metrics are enabled.
// Defaults to the global provider.
func WithMeterProvider(provider otelmetric.MeterProvider) Option {
	return OptionFunc(func(c *Config) {
		c.meterProvider = provider
	})
}

// WithStreamOptions adds stream transport options used by Dial
func WithStreamOptions(opts ...stream.Option) Option {
	return OptionFunc(func(c *Config) {
		c.streamOptions = append(c.streamOptions, opts...)
	})
}

// WithSharedMemoryOptions adds shared memory transport options used by
// CreateShared and OpenShared
func WithSharedMemoryOptions(opts ...shm.Option) Option {
	return OptionFunc(func(c *Config) {
		c.shmOptions = append(c.shmOptions, opts...)
	})
}
