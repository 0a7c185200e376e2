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
	"fmt"
	"time"

	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/tochemey/enginebridge/codec"
	"github.com/tochemey/enginebridge/engine"
	"github.com/tochemey/enginebridge/internal/idgen"
	"github.com/tochemey/enginebridge/internal/validation"
	"github.com/tochemey/enginebridge/log"
	"github.com/tochemey/enginebridge/transport/shm"
	"github.com/tochemey/enginebridge/transport/stream"
)

// Deployment constants
const (
	// DefaultTimeout bounds every call awaiting a reply
	DefaultTimeout = 5 * time.Second
	// DefaultHost is the loopback host both processes use
	DefaultHost = "127.0.0.1"
	// DefaultPort is the stream transport port
	DefaultPort = 9231
)

// IDScheme selects how request ids are minted
type IDScheme int

const (
	// CounterIDs uses a counter wrapping back to 1 after math.MaxUint32
	CounterIDs IDScheme = iota
	// SnowflakeIDs composes timestamp, node and sequence so several
	// producers can share one correlation space
	SnowflakeIDs
)

// Config holds the bridge settings
type Config struct {
	encoding      codec.Encoding
	framing       stream.Framing
	framingSet    bool
	idScheme      IDScheme
	node          uint16
	timeout       time.Duration
	logger        log.Logger
	handler       Handler
	engine        *engine.Loop
	metrics       bool
	meterProvider otelmetric.MeterProvider
	streamOptions []stream.Option
	shmOptions    []shm.Option
}

// NewConfig creates a Config with the defaults: text encoding, counter ids,
// a five seconds timeout and the discard logger.
func NewConfig(opts ...Option) *Config {
	config := &Config{
		encoding: codec.TextEncoding,
		idScheme: CounterIDs,
		timeout:  DefaultTimeout,
		logger:   log.DiscardLogger,
	}
	for _, opt := range opts {
		opt.Apply(config)
	}
	return config
}

// Encoding returns the message encoding
func (c *Config) Encoding() codec.Encoding {
	return c.encoding
}

// Framing returns the stream framing. Text defaults to newline-delimited
// frames and binary to length-prefixed frames.
func (c *Config) Framing() stream.Framing {
	if c.framingSet {
		return c.framing
	}
	if c.encoding == codec.TextEncoding {
		return stream.NewlineDelimited
	}
	return stream.LengthPrefixed
}

// IDScheme returns the request id scheme
func (c *Config) IDScheme() IDScheme {
	return c.idScheme
}

// Timeout returns the default reply timeout
func (c *Config) Timeout() time.Duration {
	return c.timeout
}

// Logger returns the logger
func (c *Config) Logger() log.Logger {
	return c.logger
}

// Handler returns the handler serving inbound requests
func (c *Config) Handler() Handler {
	return c.handler
}

// MetricsEnabled reports whether otel instruments are registered
func (c *Config) MetricsEnabled() bool {
	return c.metrics
}

// Validate checks the configuration
func (c *Config) Validate() error {
	return validation.New(validation.AllErrors()).
		AddAssertion(c.timeout > 0, "timeout must be positive").
		AddAssertion(c.logger != nil, "logger is required").
		AddAssertion(codec.New(c.encoding) != nil, fmt.Sprintf("unknown encoding %d", c.encoding)).
		AddAssertion(c.encoding != codec.BinaryEncoding || c.Framing() == stream.LengthPrefixed,
			"binary encoding requires length-prefixed framing").
		AddAssertion(c.idScheme == CounterIDs || c.idScheme == SnowflakeIDs, fmt.Sprintf("unknown id scheme %d", c.idScheme)).
		AddAssertion(c.idScheme != SnowflakeIDs || c.node < 1<<10, "snowflake node must fit in 10 bits").
		Validate()
}

func (c *Config) generator() idgen.Generator {
	if c.idScheme == SnowflakeIDs {
		return idgen.NewSnowflake(c.node)
	}
	return idgen.NewCounter()
}
