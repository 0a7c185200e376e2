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

package marshal

import (
	"context"
	"sync"
)

// Handler is the body of a callable handed to the peer
type Handler func(ctx context.Context, args []any) (any, error)

// Func is a local callable that crosses the bridge as a callback reference.
// It is registered the first time it is marshalled and keeps the same id
// until unregistered.
type Func struct {
	fn   Handler
	sync bool
	once sync.Once
	id   string
}

// NewFunc creates a callable. sync is advertised to the peer, which then
// waits for the callable to complete before proceeding.
func NewFunc(fn Handler, sync bool) *Func {
	return &Func{fn: fn, sync: sync}
}

// ID returns the callback id, empty until the callable was marshalled
func (f *Func) ID() string {
	return f.id
}

// Sync reports the blocking preference of the callable
func (f *Func) Sync() bool {
	return f.sync
}

// Ref references a local instance served by this side
type Ref struct {
	InstanceID   string
	InstanceType string
}

// RemoteObject is the local handle of an instance living on the peer
type RemoteObject struct {
	InstanceID   string
	InstanceType string
	peer         Peer
}

// NewRemoteObject creates a handle for the instance
func NewRemoteObject(instanceID, instanceType string, peer Peer) *RemoteObject {
	return &RemoteObject{InstanceID: instanceID, InstanceType: instanceType, peer: peer}
}

// Call invokes a method of the instance and waits for its result
func (o *RemoteObject) Call(ctx context.Context, action string, params ...any) (any, error) {
	return o.peer.CallDynamic(ctx, o.InstanceID, action, params, 0)
}

// CallAsync invokes a method without waiting for a reply
func (o *RemoteObject) CallAsync(ctx context.Context, action string, params ...any) error {
	return o.peer.CallDynamicAsync(ctx, o.InstanceID, action, params)
}

// Get reads a property of the instance
func (o *RemoteObject) Get(ctx context.Context, name string) (any, error) {
	return o.peer.GetProperty(ctx, o.InstanceID, name, 0)
}

// Set writes a property of the instance
func (o *RemoteObject) Set(ctx context.Context, name string, value any) (any, error) {
	return o.peer.SetProperty(ctx, o.InstanceID, name, value, 0)
}

// RemoteCallback is a callable registered by the peer
type RemoteCallback struct {
	CallbackID string
	Sync       bool
	peer       Peer
}

// Invoke emits the callback. A sync callback waits for the peer's reply.
func (c *RemoteCallback) Invoke(ctx context.Context, args ...any) (any, error) {
	return c.peer.EmitCallback(ctx, c.CallbackID, args, c.Sync, 0)
}
