package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/coachpo/simbroker/internal/observability"
)

// Bridge adapts an OpenTelemetry meter to the observability.Metrics
// interface. Instruments are created lazily, once per metric name.
type Bridge struct {
	meter metric.Meter

	mu         sync.Mutex
	counters   map[string]metric.Float64Counter
	histograms map[string]metric.Float64Histogram
	gauges     map[string]metric.Float64Gauge
}

var _ observability.Metrics = (*Bridge)(nil)

// NewBridge creates a metrics bridge over the given meter.
func NewBridge(meter metric.Meter) *Bridge {
	return &Bridge{
		meter:      meter,
		counters:   make(map[string]metric.Float64Counter),
		histograms: make(map[string]metric.Float64Histogram),
		gauges:     make(map[string]metric.Float64Gauge),
	}
}

// IncCounter implements observability.Metrics.
func (b *Bridge) IncCounter(name string, delta float64, labels map[string]string) {
	b.mu.Lock()
	counter, ok := b.counters[name]
	if !ok {
		var err error
		counter, err = b.meter.Float64Counter(name)
		if err != nil {
			b.mu.Unlock()
			return
		}
		b.counters[name] = counter
	}
	b.mu.Unlock()
	counter.Add(context.Background(), delta, metric.WithAttributes(toAttributes(labels)...))
}

// ObserveHistogram implements observability.Metrics.
func (b *Bridge) ObserveHistogram(name string, value float64, labels map[string]string) {
	b.mu.Lock()
	histogram, ok := b.histograms[name]
	if !ok {
		var err error
		histogram, err = b.meter.Float64Histogram(name)
		if err != nil {
			b.mu.Unlock()
			return
		}
		b.histograms[name] = histogram
	}
	b.mu.Unlock()
	histogram.Record(context.Background(), value, metric.WithAttributes(toAttributes(labels)...))
}

// SetGauge implements observability.Metrics.
func (b *Bridge) SetGauge(name string, value float64, labels map[string]string) {
	b.mu.Lock()
	gauge, ok := b.gauges[name]
	if !ok {
		var err error
		gauge, err = b.meter.Float64Gauge(name)
		if err != nil {
			b.mu.Unlock()
			return
		}
		b.gauges[name] = gauge
	}
	b.mu.Unlock()
	gauge.Record(context.Background(), value, metric.WithAttributes(toAttributes(labels)...))
}

func toAttributes(labels map[string]string) []attribute.KeyValue {
	if len(labels) == 0 {
		return nil
	}
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}
