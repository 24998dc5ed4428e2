// Package metrics provides Prometheus metrics for the guardrail service.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Evaluator strategy kinds accepted by SetEvaluatorStrategy.
const (
	StrategyDirect = "direct"
	StrategySolver = "solver"
)

// Manager manages all Prometheus metrics for the guardrail service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Check metrics
	checksTotal  *prometheus.CounterVec
	checkLatency *prometheus.HistogramVec
	findings     *prometheus.CounterVec

	// Evaluator selection
	evaluatorStrategy  *prometheus.GaugeVec
	evaluatorFallbacks *prometheus.CounterVec

	// Run lifecycle
	runsSubmitted prometheus.Counter
	runsDuplicate prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runDuration   prometheus.Histogram

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueued          prometheus.Counter
	queueDequeued          prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Report store
	storeLatency  *prometheus.HistogramVec
	storedReports prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "guardrail",
		subsystem:        "",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.checksTotal = auto.NewCounterVec(
		m.counterOpts("checks_total", "Total invariant checks by check name and outcome"),
		[]string{"check", "outcome"},
	)
	m.checkLatency = auto.NewHistogramVec(
		m.histogramOpts("check_latency_milliseconds", "Invariant check latency in milliseconds"),
		[]string{"check", "strategy"},
	)
	m.findings = auto.NewCounterVec(
		m.counterOpts("findings_total", "Findings recorded in run reports by invariant"),
		[]string{"invariant"},
	)

	m.evaluatorStrategy = auto.NewGaugeVec(
		m.gaugeOpts("evaluator_strategy", "Selected constraint evaluator strategy (1 for the active one)"),
		[]string{"strategy", "name"},
	)
	m.evaluatorFallbacks = auto.NewCounterVec(
		m.counterOpts("evaluator_fallbacks_total", "Times the solver strategy was unavailable and direct was used"),
		[]string{"reason"},
	)

	m.runsSubmitted = auto.NewCounter(m.counterOpts("runs_submitted_total", "Total validation runs accepted"))
	m.runsDuplicate = auto.NewCounter(m.counterOpts("runs_duplicate_total", "Total submissions answered from the idempotency index"))
	m.runsCompleted = auto.NewCounterVec(
		m.counterOpts("runs_completed_total", "Total validation runs finished by status"),
		[]string{"status"},
	)
	m.runDuration = auto.NewHistogram(m.histogramOpts("run_duration_milliseconds", "Validation run duration in milliseconds"))

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Current number of queued runs"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Queue utilization ratio (size / capacity)"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Total runs enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Total runs dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Total enqueue failures"))
	m.queueProcessingLatency = auto.NewHistogram(
		m.histogramOpts("queue_processing_latency_milliseconds", "Time between enqueue and pickup in milliseconds"),
	)

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Configured number of workers"))
	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count", "Workers currently processing a run"))
	m.workerProcessingLatency = auto.NewHistogram(
		m.histogramOpts("worker_processing_latency_milliseconds", "Worker processing latency in milliseconds"),
	)
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Total worker errors"))

	m.storeLatency = auto.NewHistogramVec(
		m.histogramOpts("store_latency_milliseconds", "Report store operation latency in milliseconds"),
		[]string{"op"},
	)
	m.storedReports = auto.NewGauge(m.gaugeOpts("stored_reports", "Number of reports held by the store"))

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorsByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Total errors by component"),
		[]string{"component", "error_type"},
	)
	m.errorsByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Total errors by endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap memory in use in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
}

// RecordCheck counts one invariant check with its outcome (ok, violation, precondition, error).
func RecordCheck(check, outcome string) {
	globalManager.checksTotal.WithLabelValues(check, outcome).Inc()
}

// RecordChecks adds n checks with the same outcome.
func RecordChecks(check, outcome string, n int) {
	if n <= 0 {
		return
	}
	globalManager.checksTotal.WithLabelValues(check, outcome).Add(float64(n))
}

// RecordCheckLatency records how long a check took under the given strategy.
func RecordCheckLatency(check, strategy string, latencyMs float64) {
	globalManager.checkLatency.WithLabelValues(check, strategy).Observe(latencyMs)
}

// RecordFinding counts a finding in a run report.
func RecordFinding(invariant string) {
	globalManager.findings.WithLabelValues(invariant).Inc()
}

// SetEvaluatorStrategy marks the active evaluator. Previously marked strategies are cleared.
func SetEvaluatorStrategy(strategy, name string) error {
	if strategy != StrategyDirect && strategy != StrategySolver {
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
	globalManager.evaluatorStrategy.Reset()
	globalManager.evaluatorStrategy.WithLabelValues(strategy, name).Set(1)
	return nil
}

// RecordEvaluatorFallback counts a fallback from the solver strategy to direct evaluation.
func RecordEvaluatorFallback(reason string) {
	globalManager.evaluatorFallbacks.WithLabelValues(reason).Inc()
}

// RecordRunSubmitted increments the accepted runs counter.
func RecordRunSubmitted() {
	globalManager.runsSubmitted.Inc()
}

// RecordRunDuplicate increments the idempotent replay counter.
func RecordRunDuplicate() {
	globalManager.runsDuplicate.Inc()
}

// RecordRunCompleted counts a finished run by terminal status.
func RecordRunCompleted(status string) {
	globalManager.runsCompleted.WithLabelValues(status).Inc()
}

// RecordRunDuration records the wall time of a run.
func RecordRunDuration(latencyMs float64) {
	globalManager.runDuration.Observe(latencyMs)
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records the time a run waited in the queue.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount adjusts the number of busy workers by delta.
func UpdateWorkerActiveCount(delta int) {
	globalManager.workerActiveCount.Add(float64(delta))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordStoreLatency records a report store operation (put, get, list).
func RecordStoreLatency(op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
}

// UpdateStoredReports sets the number of reports held by the store.
func UpdateStoredReports(count int) {
	globalManager.storedReports.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets heap memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
