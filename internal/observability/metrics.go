package observability

import "sync"

// Metrics provides counters, gauges, and histogram recording primitives.
type Metrics interface {
	IncCounter(name string, value float64, labels map[string]string)
	ObserveHistogram(name string, value float64, labels map[string]string)
	SetGauge(name string, value float64, labels map[string]string)
}

var defaultMetrics Metrics = noopMetrics{}

// SetMetrics overrides the global metrics implementation used by the system.
func SetMetrics(metrics Metrics) {
	if metrics == nil {
		defaultMetrics = noopMetrics{}
		return
	}
	defaultMetrics = metrics
}

// Telemetry returns the current global metrics collector.
func Telemetry() Metrics {
	return defaultMetrics
}

type noopMetrics struct{}

func (noopMetrics) IncCounter(string, float64, map[string]string)       {}
func (noopMetrics) ObserveHistogram(string, float64, map[string]string) {}
func (noopMetrics) SetGauge(string, float64, map[string]string)         {}

// Metric names emitted by the execution simulator.
const (
	MetricOrdersSubmitted = "sim.orders.submitted"
	MetricOrdersRejected  = "sim.orders.rejected"
	MetricOrdersFilled    = "sim.orders.filled"
	MetricOrdersCancelled = "sim.orders.cancelled"
	MetricExecutions      = "sim.executions"
	MetricQueueDepth      = "sim.queue.depth"
	MetricFillLatency     = "sim.fill.latency"
)

// SimulatorMetricsSnapshot captures simulator-focused runtime counters.
type SimulatorMetricsSnapshot struct {
	Submitted  map[string]int `json:"submitted"`
	Rejected   map[string]int `json:"rejected"`
	Filled     map[string]int `json:"filled"`
	Cancelled  map[string]int `json:"cancelled"`
	QueueDepth int            `json:"queue_depth"`
}

// RuntimeMetrics accumulates simulator metrics in-memory for periodic export.
type RuntimeMetrics struct {
	mu       sync.Mutex
	snapshot SimulatorMetricsSnapshot
}

// NewRuntimeMetrics constructs a metrics accumulator with empty maps.
func NewRuntimeMetrics() *RuntimeMetrics {
	metrics := new(RuntimeMetrics)
	metrics.snapshot = SimulatorMetricsSnapshot{
		Submitted: make(map[string]int),
		Rejected:  make(map[string]int),
		Filled:    make(map[string]int),
		Cancelled: make(map[string]int),
	}
	return metrics
}

// IncCounter implements Metrics by accumulating per-symbol counters.
func (m *RuntimeMetrics) IncCounter(name string, value float64, labels map[string]string) {
	symbol := labels["symbol"]
	m.mu.Lock()
	defer m.mu.Unlock()
	switch name {
	case MetricOrdersSubmitted:
		m.snapshot.Submitted[symbol] += int(value)
	case MetricOrdersRejected:
		m.snapshot.Rejected[symbol] += int(value)
	case MetricOrdersFilled:
		m.snapshot.Filled[symbol] += int(value)
	case MetricOrdersCancelled:
		m.snapshot.Cancelled[symbol] += int(value)
	}
}

// ObserveHistogram implements Metrics; the accumulator keeps counters only.
func (m *RuntimeMetrics) ObserveHistogram(string, float64, map[string]string) {}

// SetGauge implements Metrics by tracking the latest queue depth.
func (m *RuntimeMetrics) SetGauge(name string, value float64, _ map[string]string) {
	if name != MetricQueueDepth {
		return
	}
	m.mu.Lock()
	m.snapshot.QueueDepth = int(value)
	m.mu.Unlock()
}

// Snapshot copies the current simulator metrics state for reporting.
func (m *RuntimeMetrics) Snapshot() SimulatorMetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := SimulatorMetricsSnapshot{
		Submitted:  make(map[string]int, len(m.snapshot.Submitted)),
		Rejected:   make(map[string]int, len(m.snapshot.Rejected)),
		Filled:     make(map[string]int, len(m.snapshot.Filled)),
		Cancelled:  make(map[string]int, len(m.snapshot.Cancelled)),
		QueueDepth: m.snapshot.QueueDepth,
	}
	for k, v := range m.snapshot.Submitted {
		snapshot.Submitted[k] = v
	}
	for k, v := range m.snapshot.Rejected {
		snapshot.Rejected[k] = v
	}
	for k, v := range m.snapshot.Filled {
		snapshot.Filled[k] = v
	}
	for k, v := range m.snapshot.Cancelled {
		snapshot.Cancelled[k] = v
	}
	return snapshot
}
