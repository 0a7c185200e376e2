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

// Package host serves the peer's Constructor, Static, Dynamic and
// DynamicProperty requests against locally registered classes.
package host

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"

	"github.com/tochemey/enginebridge/errors"
	"github.com/tochemey/enginebridge/log"
	"github.com/tochemey/enginebridge/marshal"
	"github.com/tochemey/enginebridge/message"
)

// Object is an instance the peer drives through its instance id
type Object interface {
	// Call invokes the method named action
	Call(ctx context.Context, action string, params []any) (any, error)
	// Get reads the property name
	Get(ctx context.Context, name string) (any, error)
	// Set writes the property name
	Set(ctx context.Context, name string, value any) error
}

// Typed is implemented by objects reporting their instance type
type Typed interface {
	InstanceType() string
}

// Class describes a type the peer may construct or call statically.
// Either member may be nil.
type Class struct {
	New    func(ctx context.Context, params []any) (Object, error)
	Static func(ctx context.Context, action string, params []any) (any, error)
}

type instance struct {
	object Object
	kind   string
}

// Host keeps the registered classes and the live instances. Instance ids
// are minted here and never reused.
type Host struct {
	mu        sync.RWMutex
	classes   map[string]Class
	instances map[string]instance
	logger    log.Logger
}

// New creates an empty Host
func New(logger log.Logger) *Host {
	if logger == nil {
		logger = log.DiscardLogger
	}
	return &Host{
		classes:   make(map[string]Class),
		instances: make(map[string]instance),
		logger:    logger,
	}
}

// RegisterClass makes the class available to the peer under name
func (h *Host) RegisterClass(name string, class Class) error {
	if name == "" {
		return fmt.Errorf("class name is required")
	}
	if class.New == nil && class.Static == nil {
		return fmt.Errorf("class %s has neither a constructor nor static members", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.classes[name]; ok {
		return fmt.Errorf("class %s is already registered", name)
	}
	h.classes[name] = class
	return nil
}

// Adopt registers an existing object and returns its reference
func (h *Host) Adopt(object Object, instanceType string) marshal.Ref {
	id := uuid.NewString()
	h.mu.Lock()
	h.instances[id] = instance{object: object, kind: instanceType}
	h.mu.Unlock()
	return marshal.Ref{InstanceID: id, InstanceType: instanceType}
}

// Instance returns the object registered under instanceID
func (h *Host) Instance(instanceID string) (Object, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	inst, ok := h.instances[instanceID]
	return inst.object, ok
}

// Release forgets the instance. It returns false when instanceID is unknown.
func (h *Host) Release(instanceID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.instances[instanceID]; !ok {
		return false
	}
	delete(h.instances, instanceID)
	return true
}

// Len returns the number of live instances
func (h *Host) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.instances)
}

// Handle serves one inbound request. A Constructor returns the new
// instance id; objects returned by calls are adopted and returned as
// references.
func (h *Host) Handle(ctx context.Context, request *message.Message) (any, error) {
	switch request.Kind {
	case message.Constructor:
		return h.construct(ctx, request)
	case message.Static:
		class, err := h.class(request.Class)
		if err != nil {
			return nil, err
		}
		if class.Static == nil {
			return nil, fmt.Errorf("class %s has no static members", request.Class)
		}
		result, err := class.Static(ctx, request.Action, request.Params)
		return h.adopt(result), err
	case message.Dynamic:
		object, err := h.instance(request.InstanceID)
		if err != nil {
			return nil, err
		}
		result, err := object.Call(ctx, request.Action, request.Params)
		return h.adopt(result), err
	case message.DynamicProperty:
		object, err := h.instance(request.InstanceID)
		if err != nil {
			return nil, err
		}
		if request.Property == message.Set {
			if len(request.Params) != 1 {
				return nil, errors.NewErrInvalidMessage(fmt.Errorf("property set requires exactly one value"))
			}
			return nil, object.Set(ctx, request.Action, request.Params[0])
		}
		result, err := object.Get(ctx, request.Action)
		return h.adopt(result), err
	default:
		return nil, errors.NewErrInvalidMessage(fmt.Errorf("%s is not a request", request.Kind))
	}
}

func (h *Host) construct(ctx context.Context, request *message.Message) (any, error) {
	class, err := h.class(request.Class)
	if err != nil {
		return nil, err
	}
	if class.New == nil {
		return nil, fmt.Errorf("class %s cannot be constructed", request.Class)
	}

	object, err := class.New(ctx, request.Params)
	if err != nil {
		return nil, err
	}
	if object == nil {
		return nil, fmt.Errorf("constructor of %s returned no instance", request.Class)
	}

	ref := h.Adopt(object, request.Class)
	h.logger.Debugf("host: constructed %s as %s", request.Class, ref.InstanceID)
	return ref.InstanceID, nil
}

func (h *Host) class(name string) (Class, error) {
	h.mu.RLock()
	class, ok := h.classes[name]
	h.mu.RUnlock()
	if !ok {
		return Class{}, errors.NewErrClassNotFound(name)
	}
	return class, nil
}

func (h *Host) instance(instanceID string) (Object, error) {
	object, ok := h.Instance(instanceID)
	if !ok {
		return nil, errors.NewErrInstanceNotFound(instanceID)
	}
	return object, nil
}

// adopt replaces a returned object by a reference to it
func (h *Host) adopt(result any) any {
	object, ok := result.(Object)
	if !ok {
		return result
	}
	kind := reflect.TypeOf(object).String()
	if typed, ok := object.(Typed); ok {
		kind = typed.InstanceType()
	}
	return h.Adopt(object, kind)
}
