// Package metrics provides Prometheus metrics for the arena match correlation pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the pipeline.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Core pipeline metrics
	recordingsProcessed  prometheus.Counter
	recordingsResolved   prometheus.Counter
	recordingsUnresolved *prometheus.CounterVec
	resolveLatency       prometheus.Histogram
	candidatesPerWindow  prometheus.Histogram
	estimatesByTier      *prometheus.CounterVec
	ambiguousMatches     prometheus.Counter
	claimConflicts       prometheus.Counter

	// Event stream quality
	malformedEvents  prometheus.Counter
	unknownLocations *prometheus.CounterVec
	eventsScanned    prometheus.Counter

	// Queue metrics
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueued    prometheus.Counter
	queueDequeued    prometheus.Counter
	queueErrors      prometheus.Counter

	// Worker metrics
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Sink metrics
	storeWriteLatency prometheus.Histogram
	storeQueryLatency prometheus.Histogram
	storeErrors       prometheus.Counter
	storeRecords      *prometheus.GaugeVec

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error breakdown
	errorRateByComponent *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "arena",
		subsystem:        "correlation",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix != "" {
		return m.metricPrefix + "_" + n
	}
	return n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	m.recordingsProcessed = m.counter("recordings_processed_total", "Total number of recordings taken through the pipeline")
	m.recordingsResolved = m.counter("recordings_resolved_total", "Total number of recordings matched to a session")
	m.recordingsUnresolved = m.counterVec("recordings_unresolved_total", "Recordings left unresolved, by error kind", "kind")
	m.resolveLatency = m.histogram("resolve_latency_milliseconds", "Per-recording resolution latency in milliseconds", m.histogramBuckets)
	m.candidatesPerWindow = m.histogram("candidates_per_window", "Number of candidate sessions found in a search window",
		[]float64{0, 1, 2, 3, 4, 6, 8, 12, 16})
	m.estimatesByTier = m.counterVec("estimates_total", "Timestamp estimates produced, by trust tier", "tier")
	m.ambiguousMatches = m.counter("ambiguous_matches_total", "Picks where the top two candidates tied")
	m.claimConflicts = m.counter("claim_conflicts_total", "Recordings that lost a session claim to another recording")

	m.malformedEvents = m.counter("malformed_events_total", "Event records skipped because they could not be parsed")
	m.unknownLocations = m.counterVec("unknown_locations_total", "Session markers with a location id missing from the table", "location_id")
	m.eventsScanned = m.counter("events_scanned_total", "Raw events read from the event stream")

	m.queueSize = m.gauge("queue_size", "Current number of recordings waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum number of recordings the queue accepts")
	m.queueUtilization = m.gauge("queue_utilization", "Queue fill ratio between 0 and 1")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Recordings accepted by the queue")
	m.queueDequeued = m.counter("queue_dequeued_total", "Recordings handed to workers")
	m.queueErrors = m.counter("queue_enqueue_errors_total", "Recordings the queue refused")

	m.workerActiveCount = m.gauge("worker_active_count", "Number of running workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Worker time per recording in milliseconds",
		[]float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 5000})
	m.workerErrors = m.counter("worker_errors_total", "Recordings a worker finished with an error")

	m.storeWriteLatency = m.histogram("store_write_latency_milliseconds", "Sink write latency in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250})
	m.storeQueryLatency = m.histogram("store_query_latency_milliseconds", "Sink query latency in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250})
	m.storeErrors = m.counter("store_errors_total", "Sink operations that failed")
	m.storeRecords = promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("store_records"),
		Help:        "Records held by the sink, by status",
		ConstLabels: m.customLabels,
	}, []string{"status"})

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_request_duration_milliseconds"),
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component and kind", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes in use")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordRecordingProcessed increments the processed counter.
func RecordRecordingProcessed() {
	if !globalManager.enabled {
		return
	}
	globalManager.recordingsProcessed.Inc()
}

// RecordRecordingResolved increments the resolved counter.
func RecordRecordingResolved() {
	if !globalManager.enabled {
		return
	}
	globalManager.recordingsResolved.Inc()
}

// RecordRecordingUnresolved counts an unresolved recording under its error kind.
func RecordRecordingUnresolved(kind string) {
	if !globalManager.enabled {
		return
	}
	globalManager.recordingsUnresolved.WithLabelValues(kind).Inc()
}

// RecordResolveLatency records the end-to-end resolution time of one recording.
func RecordResolveLatency(latencyMs float64) {
	globalManager.resolveLatency.Observe(latencyMs)
}

// RecordCandidatesPerWindow records how many candidates a window produced.
func RecordCandidatesPerWindow(n int) {
	globalManager.candidatesPerWindow.Observe(float64(n))
}

// RecordEstimate counts a timestamp estimate by tier name.
func RecordEstimate(tier string) {
	globalManager.estimatesByTier.WithLabelValues(tier).Inc()
}

// RecordAmbiguousMatch increments the ambiguous pick counter.
func RecordAmbiguousMatch() {
	globalManager.ambiguousMatches.Inc()
}

// RecordClaimConflict increments the lost-claim counter.
func RecordClaimConflict() {
	globalManager.claimConflicts.Inc()
}

// RecordMalformedEvents adds skipped malformed records.
func RecordMalformedEvents(n int) {
	if n <= 0 {
		return
	}
	globalManager.malformedEvents.Add(float64(n))
}

// RecordUnknownLocation counts a marker with an unmapped location id.
func RecordUnknownLocation(locationID string) {
	globalManager.unknownLocations.WithLabelValues(locationID).Inc()
}

// RecordEventsScanned adds to the scanned events counter.
func RecordEventsScanned(n int) {
	if n <= 0 {
		return
	}
	globalManager.eventsScanned.Add(float64(n))
}

// Queue metrics.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue fill ratio.
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

// RecordQueueEnqueueError increments the refused-enqueue counter.
func RecordQueueEnqueueError() {
	globalManager.queueErrors.Inc()
}

// Worker metrics.

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker time for one recording.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// Sink metrics.

// RecordStoreWriteLatency records a sink write.
func RecordStoreWriteLatency(latencyMs float64) {
	globalManager.storeWriteLatency.Observe(latencyMs)
}

// RecordStoreQueryLatency records a sink read.
func RecordStoreQueryLatency(latencyMs float64) {
	globalManager.storeQueryLatency.Observe(latencyMs)
}

// RecordStoreError increments the sink error counter.
func RecordStoreError() {
	globalManager.storeErrors.Inc()
}

// UpdateStoreRecords sets the number of stored records for a status.
func UpdateStoreRecords(status string, count int) {
	globalManager.storeRecords.WithLabelValues(status).Set(float64(count))
}

// HTTP metrics.

// RecordHTTPRequest increments the HTTP requests counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent increments the error counter for a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// System metrics.

// UpdateSystemMemoryUsage sets the heap usage in bytes.
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

// RefreshInterval reports how often gauge-style system metrics should be sampled.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}
