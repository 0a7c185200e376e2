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
	"context"
	"net"
	"strconv"

	"github.com/tochemey/enginebridge/internal/validation"
	"github.com/tochemey/enginebridge/transport"
	"github.com/tochemey/enginebridge/transport/shm"
	"github.com/tochemey/enginebridge/transport/stream"
)

// DefaultAddress is the stream address of the bridge server
var DefaultAddress = net.JoinHostPort(DefaultHost, strconv.Itoa(DefaultPort))

// Dial connects to the bridge server listening on address over the stream
// transport. Framing follows the configured encoding.
func Dial(ctx context.Context, address string, opts ...Option) (*Bridge, error) {
	config := NewConfig(opts...)
	if err := validation.New(validation.FailFast()).
		AddValidator(validation.NewAddressValidator(address)).
		AddValidator(config).
		Validate(); err != nil {
		return nil, err
	}

	t, err := stream.Dial(ctx, address, streamOptions(config)...)
	if err != nil {
		return nil, err
	}
	return wrap(t, opts)
}

// Listen binds address for a bridge server. Use Accept to serve the peer.
func Listen(ctx context.Context, address string, opts ...Option) (*stream.Listener, error) {
	config := NewConfig(opts...)
	if err := validation.New(validation.FailFast()).
		AddValidator(validation.NewAddressValidator(address)).
		AddValidator(config).
		Validate(); err != nil {
		return nil, err
	}
	return stream.Listen(ctx, address, streamOptions(config)...)
}

// Accept waits for the peer on the listener and bridges the connection.
// The listener stays open.
func Accept(listener *stream.Listener, opts ...Option) (*Bridge, error) {
	t, err := listener.Accept()
	if err != nil {
		return nil, err
	}
	return wrap(t, opts)
}

// CreateShared creates the shared memory regions named after name and
// returns the server side of the bridge
func CreateShared(name string, opts ...Option) (*Bridge, error) {
	config := NewConfig(opts...)
	if err := validation.New(validation.FailFast()).
		AddValidator(validation.NewNameValidator(name)).
		AddValidator(config).
		Validate(); err != nil {
		return nil, err
	}

	t, err := shm.Create(name, sharedOptions(config)...)
	if err != nil {
		return nil, err
	}
	return wrap(t, opts)
}

// OpenShared attaches to the shared memory regions created by the server
// and returns the client side of the bridge
func OpenShared(ctx context.Context, name string, opts ...Option) (*Bridge, error) {
	config := NewConfig(opts...)
	if err := validation.New(validation.FailFast()).
		AddValidator(validation.NewNameValidator(name)).
		AddValidator(config).
		Validate(); err != nil {
		return nil, err
	}

	t, err := shm.Open(ctx, name, sharedOptions(config)...)
	if err != nil {
		return nil, err
	}
	return wrap(t, opts)
}

func wrap(t transport.Transport, opts []Option) (*Bridge, error) {
	b, err := New(t, opts...)
	if err != nil {
		_ = t.Close()
		return nil, err
	}
	return b, nil
}

func streamOptions(config *Config) []stream.Option {
	return append([]stream.Option{
		stream.WithFraming(config.Framing()),
		stream.WithLogger(config.logger),
	}, config.streamOptions...)
}

func sharedOptions(config *Config) []shm.Option {
	return append([]shm.Option{shm.WithLogger(config.logger)}, config.shmOptions...)
}
