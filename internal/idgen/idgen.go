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

// Package idgen mints request correlation ids.
package idgen

import (
	"math"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// Generator mints correlation ids. Ids are never zero.
type Generator interface {
	Next() uint64
}

// Counter is a monotonically increasing id generator wrapping back to 1 after math.MaxUint32.
type Counter struct {
	value *atomic.Uint32
}

var _ Generator = (*Counter)(nil)

// NewCounter creates a Counter whose first id is 1
func NewCounter() *Counter {
	return &Counter{value: atomic.NewUint32(0)}
}

// newCounterAt creates a Counter whose next id follows start
func newCounterAt(start uint32) *Counter {
	return &Counter{value: atomic.NewUint32(start)}
}

// Next returns the next id
func (c *Counter) Next() uint64 {
	for {
		current := c.value.Load()
		next := current + 1
		if current == math.MaxUint32 {
			next = 1
		}
		if c.value.CompareAndSwap(current, next) {
			return uint64(next)
		}
	}
}

const (
	nodeBits     = 10
	sequenceBits = 12
	maxNode      = 1<<nodeBits - 1
	maxSequence  = 1<<sequenceBits - 1
	timeShift    = nodeBits + sequenceBits
)

// Epoch is the reference instant of snowflake timestamps
var Epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Snowflake composes a 41-bit millisecond timestamp, a 10-bit node and a 12-bit
// sequence. Ids from distinct nodes never collide, which lets several producers
// share one correlation space.
type Snowflake struct {
	mu       sync.Mutex
	node     uint64
	lastMs   int64
	sequence uint64
	now      func() time.Time
}

var _ Generator = (*Snowflake)(nil)

// NewSnowflake creates a Snowflake for the given node. Only the lowest 10 bits of node are used.
func NewSnowflake(node uint16) *Snowflake {
	return &Snowflake{
		node: uint64(node) & maxNode,
		now:  time.Now,
	}
}

// Next returns the next id. When the sequence of the current millisecond is
// exhausted it waits for the next millisecond.
func (s *Snowflake) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := s.now().Sub(Epoch).Milliseconds()
	if ms < s.lastMs {
		// clock moved backwards, keep issuing from the last instant
		ms = s.lastMs
	}

	if ms == s.lastMs {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			for ms <= s.lastMs {
				time.Sleep(100 * time.Microsecond)
				ms = s.now().Sub(Epoch).Milliseconds()
			}
		}
	} else {
		s.sequence = 0
	}

	s.lastMs = ms
	return uint64(ms)<<timeShift | s.node<<sequenceBits | s.sequence
}

// Decompose splits a snowflake id into its timestamp, node and sequence
func Decompose(id uint64) (time.Time, uint16, uint16) {
	ms := int64(id >> timeShift)
	node := uint16((id >> sequenceBits) & maxNode)
	seq := uint16(id & maxSequence)
	return Epoch.Add(time.Duration(ms) * time.Millisecond), node, seq
}
