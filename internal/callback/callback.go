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

// Package callback keeps the callables this side handed to the peer.
package callback

import (
	"context"
	"fmt"
	"sync"

	"github.com/zeebo/xxh3"
	"go.uber.org/atomic"
)

const shardCount = 16

// Handler executes a callback with the arguments sent by the peer
type Handler func(ctx context.Context, args []any) (any, error)

// Registration binds a callback id to its handler. Sync is the blocking
// preference declared when the callable was marshalled.
type Registration struct {
	ID      string
	Handler Handler
	Sync    bool
}

type shard struct {
	mu            sync.RWMutex
	registrations map[string]*Registration
}

// Registry maps callback ids to registrations. Registrations outlive the call
// that created them until unregistered or cleared on shutdown. Handlers are
// never invoked under a registry lock.
type Registry struct {
	shards [shardCount]shard
	size   *atomic.Int64
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	r := &Registry{size: atomic.NewInt64(0)}
	for i := range r.shards {
		r.shards[i].registrations = make(map[string]*Registration)
	}
	return r
}

func (r *Registry) shard(id string) *shard {
	return &r.shards[xxh3.HashString(id)&(shardCount-1)]
}

// Register adds a registration. It fails when the id is already registered.
func (r *Registry) Register(id string, handler Handler, sync bool) (*Registration, error) {
	if id == "" || handler == nil {
		return nil, fmt.Errorf("callback id and handler are required")
	}

	reg := &Registration{ID: id, Handler: handler, Sync: sync}
	s := r.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.registrations[id]; ok {
		return nil, fmt.Errorf("callback %s is already registered", id)
	}
	s.registrations[id] = reg
	r.size.Inc()
	return reg, nil
}

// Unregister removes the registration. It returns false when id is unknown.
func (r *Registry) Unregister(id string) bool {
	s := r.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.registrations[id]; !ok {
		return false
	}
	delete(s.registrations, id)
	r.size.Dec()
	return true
}

// Lookup returns the registration of id
func (r *Registry) Lookup(id string) (*Registration, bool) {
	s := r.shard(id)
	s.mu.RLock()
	reg, ok := s.registrations[id]
	s.mu.RUnlock()
	return reg, ok
}

// Clear removes every registration and returns how many were released
func (r *Registry) Clear() int {
	released := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		released += len(s.registrations)
		clear(s.registrations)
		s.mu.Unlock()
	}
	r.size.Sub(int64(released))
	return released
}

// Len returns the number of registrations
func (r *Registry) Len() int {
	return int(r.size.Load())
}
