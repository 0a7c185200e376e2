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
	"sync"
)

// Cache deduplicates remote instance handles by instance id so repeated
// references to one remote object resolve to the same *RemoteObject.
type Cache struct {
	mu        sync.RWMutex
	instances map[string]*RemoteObject
}

// NewCache creates an empty Cache
func NewCache() *Cache {
	return &Cache{instances: make(map[string]*RemoteObject)}
}

// Resolve returns the cached handle of instanceID, creating it when missing
func (c *Cache) Resolve(instanceID, instanceType string, peer Peer) *RemoteObject {
	c.mu.RLock()
	object, ok := c.instances[instanceID]
	c.mu.RUnlock()
	if ok {
		return object
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if object, ok := c.instances[instanceID]; ok {
		return object
	}
	object = NewRemoteObject(instanceID, instanceType, peer)
	c.instances[instanceID] = object
	return object
}

// Get returns the cached handle of instanceID
func (c *Cache) Get(instanceID string) (*RemoteObject, bool) {
	c.mu.RLock()
	object, ok := c.instances[instanceID]
	c.mu.RUnlock()
	return object, ok
}

// Forget drops the handle of instanceID
func (c *Cache) Forget(instanceID string) {
	c.mu.Lock()
	delete(c.instances, instanceID)
	c.mu.Unlock()
}

// Len returns the number of cached handles
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.instances)
}

// Reset drops every handle
func (c *Cache) Reset() {
	c.mu.Lock()
	clear(c.instances)
	c.mu.Unlock()
}
