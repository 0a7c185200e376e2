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

// Package errorschain collects the errors of a sequence of steps, such as the
// ordered teardown of a bridge.
package errorschain

import "go.uber.org/multierr"

// Chain defines an error chain
type Chain struct {
	returnFirst bool
	err         error
	stopped     bool
}

// ChainOption configures a Chain at creation time.
type ChainOption func(*Chain)

// New creates a new error chain. Steps are evaluated in insertion order.
func New(opts ...ChainOption) *Chain {
	chain := new(Chain)
	for _, opt := range opts {
		opt(chain)
	}
	return chain
}

// ReturnFirst stops evaluating steps after the first error
func ReturnFirst() ChainOption {
	return func(c *Chain) { c.returnFirst = true }
}

// ReturnAll runs every step and combines their errors. This is the default.
func ReturnAll() ChainOption {
	return func(c *Chain) { c.returnFirst = false }
}

// AddError records err
func (c *Chain) AddError(err error) *Chain {
	if c.stopped || err == nil {
		return c
	}
	c.err = multierr.Append(c.err, err)
	c.stopped = c.returnFirst
	return c
}

// AddErrorFn runs fn unless the chain already stopped and records its error
func (c *Chain) AddErrorFn(fn func() error) *Chain {
	if c.stopped {
		return c
	}
	return c.AddError(fn())
}

// AddErrorFns runs every fn in order, see AddErrorFn
func (c *Chain) AddErrorFns(fns ...func() error) *Chain {
	for _, fn := range fns {
		c.AddErrorFn(fn)
	}
	return c
}

// Error returns the recorded error(s)
func (c *Chain) Error() error {
	return c.err
}
