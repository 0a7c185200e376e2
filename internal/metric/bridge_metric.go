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

package metric

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// BridgeMetric defines the bridge instrumentation
type BridgeMetric struct {
	// Specifies the total number of outgoing calls per kind
	callsCount metric.Int64Counter
	// Specifies the latency of outgoing calls in milliseconds
	callDuration metric.Int64Histogram
	// Specifies the total number of calls that timed out
	timeoutCount metric.Int64ObservableCounter
	// Specifies the total number of calls failed by the peer
	peerErrorCount metric.Int64ObservableCounter
	// Specifies the total number of inbound messages executed
	dispatchedCount metric.Int64ObservableCounter
	// Specifies the total number of inbound messages dropped
	droppedCount metric.Int64ObservableCounter
	// Specifies the number of outstanding requests
	pendingCount metric.Int64ObservableGauge
	// Specifies the number of registered callbacks
	callbacksCount metric.Int64ObservableGauge
}

// NewBridgeMetric creates an instance of BridgeMetric
func NewBridgeMetric(meter metric.Meter) (*BridgeMetric, error) {
	bridgeMetric := new(BridgeMetric)
	var err error
	if bridgeMetric.callsCount, err = meter.Int64Counter(
		"bridge_calls_count",
		metric.WithDescription("Total number of outgoing calls"),
	); err != nil {
		return nil, fmt.Errorf("failed to create callsCount instrument, %w", err)
	}

	if bridgeMetric.callDuration, err = meter.Int64Histogram(
		"bridge_call_duration",
		metric.WithDescription("The latency of outgoing calls in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create callDuration instrument, %w", err)
	}

	if bridgeMetric.timeoutCount, err = meter.Int64ObservableCounter(
		"bridge_timeout_count",
		metric.WithDescription("Total number of calls that timed out"),
	); err != nil {
		return nil, fmt.Errorf("failed to create timeoutCount instrument, %w", err)
	}

	if bridgeMetric.peerErrorCount, err = meter.Int64ObservableCounter(
		"bridge_peer_error_count",
		metric.WithDescription("Total number of calls failed by the peer"),
	); err != nil {
		return nil, fmt.Errorf("failed to create peerErrorCount instrument, %w", err)
	}

	if bridgeMetric.dispatchedCount, err = meter.Int64ObservableCounter(
		"bridge_dispatched_count",
		metric.WithDescription("Total number of inbound messages executed"),
	); err != nil {
		return nil, fmt.Errorf("failed to create dispatchedCount instrument, %w", err)
	}

	if bridgeMetric.droppedCount, err = meter.Int64ObservableCounter(
		"bridge_dropped_count",
		metric.WithDescription("Total number of inbound messages dropped"),
	); err != nil {
		return nil, fmt.Errorf("failed to create droppedCount instrument, %w", err)
	}

	if bridgeMetric.pendingCount, err = meter.Int64ObservableGauge(
		"bridge_pending_requests",
		metric.WithDescription("Number of requests awaiting a reply"),
	); err != nil {
		return nil, fmt.Errorf("failed to create pendingCount instrument, %w", err)
	}

	if bridgeMetric.callbacksCount, err = meter.Int64ObservableGauge(
		"bridge_registered_callbacks",
		metric.WithDescription("Number of registered callbacks"),
	); err != nil {
		return nil, fmt.Errorf("failed to create callbacksCount instrument, %w", err)
	}

	return bridgeMetric, nil
}

// CallsCount returns the outgoing calls counter
func (x *BridgeMetric) CallsCount() metric.Int64Counter {
	return x.callsCount
}

// CallDuration returns the outgoing call latency histogram in milliseconds
func (x *BridgeMetric) CallDuration() metric.Int64Histogram {
	return x.callDuration
}

// TimeoutCount returns the total number of timed out calls
func (x *BridgeMetric) TimeoutCount() metric.Int64ObservableCounter {
	return x.timeoutCount
}

// PeerErrorCount returns the total number of calls failed by the peer
func (x *BridgeMetric) PeerErrorCount() metric.Int64ObservableCounter {
	return x.peerErrorCount
}

// DispatchedCount returns the total number of inbound messages executed
func (x *BridgeMetric) DispatchedCount() metric.Int64ObservableCounter {
	return x.dispatchedCount
}

// DroppedCount returns the total number of inbound messages dropped
func (x *BridgeMetric) DroppedCount() metric.Int64ObservableCounter {
	return x.droppedCount
}

// PendingCount returns the number of outstanding requests
func (x *BridgeMetric) PendingCount() metric.Int64ObservableGauge {
	return x.pendingCount
}

// CallbacksCount returns the number of registered callbacks
func (x *BridgeMetric) CallbacksCount() metric.Int64ObservableGauge {
	return x.callbacksCount
}

// Observables returns the asynchronous instruments to register a callback for
func (x *BridgeMetric) Observables() []metric.Observable {
	return []metric.Observable{
		x.timeoutCount,
		x.peerErrorCount,
		x.dispatchedCount,
		x.droppedCount,
		x.pendingCount,
		x.callbacksCount,
	}
}
