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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestNewProviderUsesGlobalProvider(t *testing.T) {
	prevProvider := otel.GetMeterProvider()
	baseProvider := noop.NewMeterProvider()
	baseMeter := baseProvider.Meter("base")

	recorder := &recorderMeterProvider{
		MeterProvider: baseProvider,
		meter:         baseMeter,
	}

	otel.SetMeterProvider(recorder)
	t.Cleanup(func() {
		otel.SetMeterProvider(prevProvider)
	})

	provider := NewProvider()
	require.NotNil(t, provider.Meter())
	require.Equal(t, baseMeter, provider.meter)
	require.Equal(t, []string{instrumentationName}, recorder.called)
}

func TestWithMeterProvider(t *testing.T) {
	custom := &recorderMeterProvider{
		MeterProvider: noop.NewMeterProvider(),
		meter:         noop.NewMeterProvider().Meter("custom"),
	}

	provider := NewProvider(WithMeterProvider(custom))
	require.Equal(t, custom, provider.meterProvider)
	require.Equal(t, custom.meter, provider.meter)

	provider = NewProvider(WithMeterProvider(nil))
	require.NotNil(t, provider.meterProvider)
}

func TestNewBridgeMetric(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	bridgeMetric, err := NewBridgeMetric(meter)
	require.NoError(t, err)

	assert.NotNil(t, bridgeMetric.CallsCount())
	assert.NotNil(t, bridgeMetric.CallDuration())
	assert.NotNil(t, bridgeMetric.TimeoutCount())
	assert.NotNil(t, bridgeMetric.PeerErrorCount())
	assert.NotNil(t, bridgeMetric.DispatchedCount())
	assert.NotNil(t, bridgeMetric.DroppedCount())
	assert.NotNil(t, bridgeMetric.PendingCount())
	assert.NotNil(t, bridgeMetric.CallbacksCount())
	assert.Len(t, bridgeMetric.Observables(), 6)
}

type recorderMeterProvider struct {
	metric.MeterProvider
	called []string
	meter  metric.Meter
}

func (p *recorderMeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	p.called = append(p.called, name)
	if p.meter != nil {
		return p.meter
	}
	return p.MeterProvider.Meter(name, opts...)
}
