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

	"github.com/tochemey/enginebridge/internal/dispatch"
	"github.com/tochemey/enginebridge/marshal"
	"github.com/tochemey/enginebridge/message"
)

// Handler serves the peer's Constructor, Static, Dynamic and DynamicProperty
// requests. Params reach it materialised: callable references are
// *marshal.RemoteCallback and instance references *marshal.RemoteObject.
// A Constructor returns the new instance id.
//
// Handlers run on the goroutine holding the engine token; calls they make
// back into the bridge must pass the ctx they were given.
type Handler interface {
	Handle(ctx context.Context, request *message.Message) (any, error)
}

// HandlerFunc adapts a function to a Handler
type HandlerFunc func(ctx context.Context, request *message.Message) (any, error)

// Handle implements Handler
func (f HandlerFunc) Handle(ctx context.Context, request *message.Message) (any, error) {
	return f(ctx, request)
}

// marshalling wraps a Handler with the conversion of params and result
func marshalling(handler Handler, marshaller *marshal.Marshaller) dispatch.Handler {
	return dispatch.HandlerFunc(func(ctx context.Context, request *message.Message) (any, error) {
		params, err := marshaller.MaterializeAll(request.Params)
		if err != nil {
			return nil, err
		}

		materialized := *request
		materialized.Params = params
		result, err := handler.Handle(ctx, &materialized)
		if err != nil {
			return nil, err
		}
		return marshaller.Marshal(result)
	})
}
