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

// Package marshal converts values crossing the bridge. Scalars, byte buffers,
// arrays and string-keyed maps pass through; callables and instance
// references are replaced by their wire form and materialised back on the
// receiving side.
package marshal

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/tochemey/enginebridge/errors"
	"github.com/tochemey/enginebridge/internal/callback"
	"github.com/tochemey/enginebridge/message"
)

// wire keys of callable and instance references
const (
	KeyCallbackID   = "callbackId"
	KeySyncCallback = "syncCallback"
	KeyInstanceID   = "instanceId"
	KeyInstanceType = "instanceType"
)

// Peer is the side of the bridge remote references call back into
type Peer interface {
	CallDynamic(ctx context.Context, instanceID, action string, params []any, timeout time.Duration) (any, error)
	CallDynamicAsync(ctx context.Context, instanceID, action string, params []any) error
	GetProperty(ctx context.Context, instanceID, name string, timeout time.Duration) (any, error)
	SetProperty(ctx context.Context, instanceID, name string, value any, timeout time.Duration) (any, error)
	EmitCallback(ctx context.Context, callbackID string, args []any, block bool, timeout time.Duration) (any, error)
}

// Marshaller converts values for one bridge. Callables are registered in its
// callback registry and inbound instance references go through its Cache.
type Marshaller struct {
	callbacks *callback.Registry
	cache     *Cache
	peer      Peer
}

// New creates a Marshaller
func New(callbacks *callback.Registry, cache *Cache, peer Peer) *Marshaller {
	if cache == nil {
		cache = NewCache()
	}
	return &Marshaller{
		callbacks: callbacks,
		cache:     cache,
		peer:      peer,
	}
}

// Cache returns the instance cache
func (m *Marshaller) Cache() *Cache {
	return m.cache
}

// MarshalAll converts outgoing values
func (m *Marshaller) MarshalAll(values []any) ([]any, error) {
	if len(values) == 0 {
		return values, nil
	}
	out := make([]any, len(values))
	for i, v := range values {
		converted, err := m.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("param %d: %w", i, err)
		}
		out[i] = converted
	}
	return out, nil
}

// Marshal converts one outgoing value to its wire form
func (m *Marshaller) Marshal(v any) (any, error) {
	switch value := v.(type) {
	case nil, bool, string, []byte,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return value, nil
	case *Func:
		return m.marshalFunc(value)
	case *RemoteObject:
		return reference(value.InstanceID, value.InstanceType), nil
	case Ref:
		return reference(value.InstanceID, value.InstanceType), nil
	case *RemoteCallback:
		return map[string]any{KeyCallbackID: value.CallbackID, KeySyncCallback: value.Sync}, nil
	case []any:
		return m.MarshalAll(value)
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, item := range value {
			converted, err := m.Marshal(item)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			out[k] = converted
		}
		return out, nil
	}
	return m.marshalReflect(v)
}

// marshalReflect handles typed slices and string-keyed maps
func (m *Marshaller) marshalReflect(v any) (any, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			converted, err := m.Marshal(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, errors.NewErrMarshal(fmt.Errorf("map key type %s is not a string", rv.Type().Key()))
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			converted, err := m.Marshal(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			out[iter.Key().String()] = converted
		}
		return out, nil
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		return m.Marshal(rv.Elem().Interface())
	}
	return nil, errors.NewErrMarshal(fmt.Errorf("unsupported type %T", v))
}

func (m *Marshaller) marshalFunc(fn *Func) (any, error) {
	if fn == nil || fn.fn == nil {
		return nil, errors.NewErrMarshal(fmt.Errorf("nil callable"))
	}

	var err error
	fn.once.Do(func() {
		id := uuid.NewString()
		handler := func(ctx context.Context, args []any) (any, error) {
			materialized, err := m.MaterializeAll(args)
			if err != nil {
				return nil, err
			}
			result, err := fn.fn(ctx, materialized)
			if err != nil {
				return nil, err
			}
			return m.Marshal(result)
		}
		if _, err = m.callbacks.Register(id, handler, fn.sync); err == nil {
			fn.id = id
		}
	})
	if err != nil {
		return nil, errors.NewErrMarshal(err)
	}
	if fn.id == "" {
		return nil, errors.NewErrMarshal(fmt.Errorf("callable registration failed"))
	}
	return map[string]any{KeyCallbackID: fn.id, KeySyncCallback: fn.sync}, nil
}

// MaterializeAll converts incoming values
func (m *Marshaller) MaterializeAll(values []any) ([]any, error) {
	if len(values) == 0 {
		return values, nil
	}
	out := make([]any, len(values))
	for i, v := range values {
		converted, err := m.Materialize(v)
		if err != nil {
			return nil, fmt.Errorf("param %d: %w", i, err)
		}
		out[i] = converted
	}
	return out, nil
}

// Materialize converts one incoming value. Callable references become
// *RemoteCallback and instance references the cached *RemoteObject.
func (m *Marshaller) Materialize(v any) (any, error) {
	switch value := v.(type) {
	case []any:
		return m.MaterializeAll(value)
	case map[string]any, map[any]any:
		fields, ok := message.AsMap(value)
		if !ok {
			return nil, errors.NewErrMarshal(fmt.Errorf("map with non string keys"))
		}
		return m.materializeMap(fields)
	default:
		return v, nil
	}
}

func (m *Marshaller) materializeMap(fields map[string]any) (any, error) {
	if id, ok := fields[KeyCallbackID].(string); ok && id != "" {
		sync, _ := message.AsBool(fields[KeySyncCallback])
		return &RemoteCallback{CallbackID: id, Sync: sync, peer: m.peer}, nil
	}

	if id, ok := fields[KeyInstanceID].(string); ok && id != "" {
		if kind, ok := fields[KeyInstanceType].(string); ok {
			return m.cache.Resolve(id, kind, m.peer), nil
		}
	}

	out := make(map[string]any, len(fields))
	for k, item := range fields {
		converted, err := m.Materialize(item)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = converted
	}
	return out, nil
}

func reference(instanceID, instanceType string) map[string]any {
	return map[string]any{KeyInstanceID: instanceID, KeyInstanceType: instanceType}
}
