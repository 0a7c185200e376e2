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

// Package bridge is the public facade of the synchronous RPC bridge between
// a client process and a server process.
//
// Every call registers a pending slot before its request is sent and waits
// for the reply while still serving the peer's callbacks, so the peer may
// call back into this side before answering.
package bridge

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/tochemey/enginebridge/codec"
	"github.com/tochemey/enginebridge/engine"
	"github.com/tochemey/enginebridge/errors"
	"github.com/tochemey/enginebridge/internal/callback"
	"github.com/tochemey/enginebridge/internal/correlation"
	"github.com/tochemey/enginebridge/internal/dispatch"
	"github.com/tochemey/enginebridge/internal/errorschain"
	"github.com/tochemey/enginebridge/internal/idgen"
	"github.com/tochemey/enginebridge/internal/metric"
	"github.com/tochemey/enginebridge/log"
	"github.com/tochemey/enginebridge/marshal"
	"github.com/tochemey/enginebridge/message"
	"github.com/tochemey/enginebridge/transport"
)

// Bridge is one end of a 1:1 bridge over a single transport
type Bridge struct {
	config     *Config
	transport  transport.Transport
	codec      codec.Codec
	ids        idgen.Generator
	table      *correlation.Table
	callbacks  *callback.Registry
	loop       *engine.Loop
	ownsLoop   bool
	dispatcher *dispatch.Dispatcher
	marshaller *marshal.Marshaller
	logger     log.Logger

	closed    *atomic.Bool
	closeOnce sync.Once
	closeErr  error
	receivers *errgroup.Group

	timeouts      *atomic.Uint64
	peerErrors    *atomic.Uint64
	metrics       *metric.BridgeMetric
	registration  otelmetric.Registration
	metricOptions otelmetric.MeasurementOption
}

var _ marshal.Peer = (*Bridge)(nil)

// New creates a Bridge over t and starts its receive goroutine.
// The bridge owns t and closes it on Close.
func New(t transport.Transport, opts ...Option) (*Bridge, error) {
	if t == nil {
		return nil, errors.ErrTransportRequired
	}

	config := NewConfig(opts...)
	if err := config.Validate(); err != nil {
		return nil, err
	}

	b := &Bridge{
		config:     config,
		transport:  t,
		codec:      codec.New(config.encoding),
		ids:        config.generator(),
		table:      correlation.New(config.logger),
		callbacks:  callback.NewRegistry(),
		loop:       config.engine,
		logger:     config.logger,
		closed:     atomic.NewBool(false),
		receivers:  new(errgroup.Group),
		timeouts:   atomic.NewUint64(0),
		peerErrors: atomic.NewUint64(0),
	}

	if b.loop == nil {
		b.loop = engine.NewLoop(config.logger)
		b.ownsLoop = true
	}

	b.marshaller = marshal.New(b.callbacks, marshal.NewCache(), b)
	dispatchOpts := []dispatch.Option{dispatch.WithLogger(config.logger)}
	if config.handler != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithHandler(marshalling(config.handler, b.marshaller)))
	}
	b.dispatcher = dispatch.New(b.table, b.callbacks, b.loop, b.send, dispatchOpts...)

	if config.metrics {
		if err := b.registerMetrics(); err != nil {
			return nil, err
		}
	}

	if b.ownsLoop {
		b.loop.Start()
	}
	b.receivers.Go(b.receive)
	b.logger.Infof("bridge: started with %s encoding", b.codec.Name())
	return b, nil
}

// CallConstructor asks the peer to construct class and returns the instance id
func (b *Bridge) CallConstructor(ctx context.Context, class string, params []any, timeout time.Duration) (string, error) {
	reply, err := b.call(ctx, &message.Message{Kind: message.Constructor, Class: class, Params: params}, timeout)
	if err != nil {
		return "", err
	}
	if reply.InstanceID != "" {
		return reply.InstanceID, nil
	}
	if id, ok := reply.Result.(string); ok && id != "" {
		return id, nil
	}
	return "", errors.NewErrInvalidMessage(fmt.Errorf("constructor of %s returned no instance id", class))
}

// CallStatic invokes a static member of class
func (b *Bridge) CallStatic(ctx context.Context, class, action string, params []any, timeout time.Duration) (any, error) {
	return b.result(b.call(ctx, &message.Message{Kind: message.Static, Class: class, Action: action, Params: params}, timeout))
}

// CallDynamic invokes a method of a remote instance
func (b *Bridge) CallDynamic(ctx context.Context, instanceID, action string, params []any, timeout time.Duration) (any, error) {
	return b.result(b.call(ctx, &message.Message{Kind: message.Dynamic, InstanceID: instanceID, Action: action, Params: params}, timeout))
}

// CallDynamicAsync invokes a method without waiting for, or getting, a reply
func (b *Bridge) CallDynamicAsync(ctx context.Context, instanceID, action string, params []any) error {
	if b.closed.Load() {
		return errors.ErrBridgeClosed
	}

	params, err := b.marshaller.MarshalAll(params)
	if err != nil {
		return err
	}
	b.count(ctx, message.Dynamic)
	return b.send(ctx, &message.Message{Kind: message.Dynamic, InstanceID: instanceID, Action: action, Params: params})
}

// GetProperty reads a property of a remote instance
func (b *Bridge) GetProperty(ctx context.Context, instanceID, name string, timeout time.Duration) (any, error) {
	return b.result(b.call(ctx, &message.Message{Kind: message.DynamicProperty, InstanceID: instanceID, Action: name, Property: message.Get}, timeout))
}

// SetProperty writes a property of a remote instance
func (b *Bridge) SetProperty(ctx context.Context, instanceID, name string, value any, timeout time.Duration) (any, error) {
	return b.result(b.call(ctx, &message.Message{Kind: message.DynamicProperty, InstanceID: instanceID, Action: name, Property: message.Set, Params: []any{value}}, timeout))
}

// EmitCallback invokes a callable the peer registered. A blocking emit waits
// for the peer's CallbackReply; a non blocking one returns once sent.
func (b *Bridge) EmitCallback(ctx context.Context, callbackID string, args []any, block bool, timeout time.Duration) (any, error) {
	request := &message.Message{Kind: message.EmitCallback, CallbackID: callbackID, Params: args, Block: block}
	if block {
		return b.result(b.call(ctx, request, timeout))
	}

	if b.closed.Load() {
		return nil, errors.ErrBridgeClosed
	}
	params, err := b.marshaller.MarshalAll(args)
	if err != nil {
		return nil, err
	}
	request.Params = params
	request.ID = b.ids.Next()
	b.count(ctx, message.EmitCallback)
	return nil, b.send(ctx, request)
}

// RegisterCallback registers a callable under a caller chosen id. sync is
// the blocking preference advertised to the peer.
func (b *Bridge) RegisterCallback(callbackID string, fn marshal.Handler, sync bool) error {
	if b.closed.Load() {
		return errors.ErrBridgeClosed
	}
	if fn == nil {
		return fmt.Errorf("callback %s has no handler", callbackID)
	}
	_, err := b.callbacks.Register(callbackID, func(ctx context.Context, args []any) (any, error) {
		materialized, err := b.marshaller.MaterializeAll(args)
		if err != nil {
			return nil, err
		}
		result, err := fn(ctx, materialized)
		if err != nil {
			return nil, err
		}
		return b.marshaller.Marshal(result)
	}, sync)
	return err
}

// UnregisterCallback removes a registration. It returns false when unknown.
func (b *Bridge) UnregisterCallback(callbackID string) bool {
	return b.callbacks.Unregister(callbackID)
}

// Marshaller returns the value marshaller of the bridge
func (b *Bridge) Marshaller() *marshal.Marshaller {
	return b.marshaller
}

// Engine returns the loop handlers run on when no waiter holds the engine
func (b *Bridge) Engine() *engine.Loop {
	return b.loop
}

// Pending returns the number of calls awaiting a reply
func (b *Bridge) Pending() int {
	return b.table.Len()
}

// Callbacks returns the number of registered callbacks
func (b *Bridge) Callbacks() int {
	return b.callbacks.Len()
}

// Close tears the bridge down: callbacks are released and pending calls
// failed before the transport closes, then the receive goroutine and the
// engine loop stop. It is safe to call more than once.
//
// Close waits for an owned engine loop to exit, so a handler or callback
// must use Shutdown with the ctx it was given instead.
func (b *Bridge) Close() error {
	return b.Shutdown(context.Background())
}

// Shutdown is Close callable from a handler or callback. When ctx belongs to
// the engine loop, an owned loop stops once the running task returns
// instead of being waited for.
func (b *Bridge) Shutdown(ctx context.Context) error {
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		released := b.callbacks.Clear()
		cancelled := b.table.CancelAll(errors.ErrBridgeClosed)
		b.logger.Debugf("bridge: closing, %d callbacks released, %d calls cancelled", released, cancelled)

		b.closeErr = errorschain.New(errorschain.ReturnAll()).
			AddErrorFn(b.transport.Close).
			AddErrorFn(func() error {
				if err := b.receivers.Wait(); err != nil && !stderrors.Is(err, errors.ErrTransportDisconnected) {
					return err
				}
				return nil
			}).
			AddErrorFn(func() error {
				switch {
				case !b.ownsLoop:
				case b.loop.OnLoop(ctx):
					go b.loop.Stop()
				default:
					b.loop.Stop()
				}
				return nil
			}).
			AddErrorFn(func() error {
				if b.registration != nil {
					return b.registration.Unregister()
				}
				return nil
			}).
			Error()
		b.logger.Info("bridge: closed")
	})
	return b.closeErr
}

func (b *Bridge) call(ctx context.Context, request *message.Message, timeout time.Duration) (*message.Message, error) {
	if b.closed.Load() {
		return nil, errors.ErrBridgeClosed
	}
	if timeout <= 0 {
		timeout = b.config.timeout
	}

	params, err := b.marshaller.MarshalAll(request.Params)
	if err != nil {
		return nil, err
	}
	request.Params = params
	request.ID = b.ids.Next()

	slot, err := b.table.Register(request)
	if err != nil {
		b.logger.Errorf("bridge: dropping %s: %v", request, err)
		return nil, err
	}

	start := time.Now()
	b.count(ctx, request.Kind)
	if err := b.send(ctx, request); err != nil {
		b.table.Evict(slot)
		return nil, err
	}

	reply, err := b.dispatcher.Await(ctx, slot, timeout)
	b.observe(ctx, request.Kind, start)
	if err != nil {
		if stderrors.Is(err, errors.ErrTimeout) {
			b.timeouts.Inc()
			b.logger.Warn(err)
		}
		return nil, err
	}
	if reply.Failed() {
		b.peerErrors.Inc()
		return nil, errors.NewPeerError(reply.Error)
	}
	return reply, nil
}

func (b *Bridge) result(reply *message.Message, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return b.marshaller.Materialize(reply.Result)
}

// send encodes and writes one message. It is also the dispatcher's reply path.
func (b *Bridge) send(_ context.Context, msg *message.Message) error {
	frame, err := b.codec.Encode(msg)
	if err != nil {
		return err
	}
	if err := b.transport.Send(frame); err != nil {
		if stderrors.Is(err, errors.ErrTransportDisconnected) && !b.closed.Load() {
			b.disconnect(err)
		}
		return err
	}
	return nil
}

// receive is the single reader of the transport
func (b *Bridge) receive() error {
	for {
		frame, err := b.transport.Receive()
		if err != nil {
			if b.closed.Load() {
				return nil
			}
			b.logger.Errorf("bridge: receive failed: %v", err)
			b.disconnect(err)
			return err
		}

		msg, err := b.codec.Decode(frame)
		if err != nil {
			b.logger.Errorf("bridge: dropping undecodable frame: %v", err)
			continue
		}
		b.route(msg)
	}
}

func (b *Bridge) route(msg *message.Message) {
	if msg.Kind.IsReply() {
		b.table.Resolve(msg)
		return
	}

	if err := msg.Validate(); err != nil {
		b.logger.Errorf("bridge: invalid %s: %v", msg, err)
		if msg.ExpectsReply() {
			reply := message.NewErrorResponse(msg.ID, errors.NewErrInvalidMessage(err))
			if msg.Kind == message.EmitCallback {
				reply = message.NewCallbackReply(msg.ID, msg.CallbackID, nil, errors.NewErrInvalidMessage(err))
			}
			if err := b.send(context.Background(), reply); err != nil {
				b.logger.Debugf("bridge: failed to send %s: %v", reply, err)
			}
		}
		return
	}
	b.dispatcher.Dispatch(msg)
}

// disconnect fails every pending call and closes the transport. The bridge
// does not reconnect.
func (b *Bridge) disconnect(cause error) {
	failed := b.table.CancelAll(errors.NewErrTransportDisconnected(cause))
	if failed > 0 {
		b.logger.Warnf("bridge: %d pending calls failed on disconnect", failed)
	}
	if err := b.transport.Close(); err != nil {
		b.logger.Debugf("bridge: closing transport: %v", err)
	}
}

func (b *Bridge) registerMetrics() error {
	provider := metric.NewProvider(metric.WithMeterProvider(b.config.meterProvider))
	meter := provider.Meter()
	metrics, err := metric.NewBridgeMetric(meter)
	if err != nil {
		return err
	}

	b.metrics = metrics
	b.metricOptions = otelmetric.WithAttributes(attribute.String("bridge.encoding", b.codec.Name()))
	b.registration, err = meter.RegisterCallback(func(_ context.Context, observer otelmetric.Observer) error {
		observer.ObserveInt64(metrics.TimeoutCount(), int64(b.timeouts.Load()), b.metricOptions)
		observer.ObserveInt64(metrics.PeerErrorCount(), int64(b.peerErrors.Load()), b.metricOptions)
		observer.ObserveInt64(metrics.DispatchedCount(), int64(b.dispatcher.Executed()), b.metricOptions)
		observer.ObserveInt64(metrics.DroppedCount(), int64(b.dispatcher.Dropped()), b.metricOptions)
		observer.ObserveInt64(metrics.PendingCount(), int64(b.table.Len()), b.metricOptions)
		observer.ObserveInt64(metrics.CallbacksCount(), int64(b.callbacks.Len()), b.metricOptions)
		return nil
	}, metrics.Observables()...)
	return err
}

func (b *Bridge) count(ctx context.Context, kind message.Kind) {
	if b.metrics == nil {
		return
	}
	b.metrics.CallsCount().Add(ctx, 1, b.metricOptions, otelmetric.WithAttributes(attribute.String("call.kind", kind.String())))
}

func (b *Bridge) observe(ctx context.Context, kind message.Kind, start time.Time) {
	if b.metrics == nil {
		return
	}
	b.metrics.CallDuration().Record(ctx, time.Since(start).Milliseconds(), b.metricOptions, otelmetric.WithAttributes(attribute.String("call.kind", kind.String())))
}
