// Package metrics provides Prometheus metrics for the crew scoring service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	latencyBuckets   []float64
	scoreBuckets     []float64
	enabled          bool
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Scoring
	scoresComputed *prometheus.CounterVec
	scoreTotals    *prometheus.HistogramVec
	tierFallbacks  *prometheus.CounterVec
	scoringLatency prometheus.Histogram
	scoringErrors  prometheus.Counter
	batchSize      prometheus.Histogram

	// Submissions and dedupe
	submissionsAccepted  prometheus.Counter
	submissionsDuplicate prometheus.Counter
	submissionsRejected  *prometheus.CounterVec
	dedupeSize           prometheus.Gauge
	dedupeBackendErrors  prometheus.Counter

	// Leaderboard
	leaderboardUpdates      prometheus.Counter
	leaderboardErrors       prometheus.Counter
	crewsTotal              *prometheus.GaugeVec
	repositoryUpdateLatency prometheus.Histogram
	repositoryQueryLatency  prometheus.Histogram

	// Archive
	archiveWrites  *prometheus.CounterVec
	archiveLatency *prometheus.HistogramVec

	// Queue
	queueCapacity          prometheus.Gauge
	queueSize              prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueued          prometheus.Counter
	queueDequeued          prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerActiveCount       prometheus.Gauge
	workerMessagesPerSecond prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide registry served on /healthz

var globalManager = NewManager(WithRegistry(customRegistry)) //nolint:gochecknoglobals // singleton behind the Record* helpers

// defaultScoreBuckets spans the 0-100 scale plus bonus headroom.
var defaultScoreBuckets = []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100, 120} //nolint:gochecknoglobals // read-only

// NewManager creates a manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "xplor",
		subsystem:        "crewscore",
		latencyBuckets:   prometheus.DefBuckets,
		scoreBuckets:     defaultScoreBuckets,
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	b := m.latencyBuckets

	m.scoresComputed = m.counterVec("scores_computed_total", "Profiles scored by scheme and tier", "scheme", "tier")
	m.scoreTotals = m.histogramVec("score_total_points", "Distribution of composite totals", m.scoreBuckets, "scheme")
	m.tierFallbacks = m.counterVec("tier_fallbacks_total", "Totals outside every tier band", "scheme")
	m.scoringLatency = m.histogram("scoring_latency_milliseconds", "Scoring latency in milliseconds", b)
	m.scoringErrors = m.counter("scoring_errors_total", "Failed scoring attempts")
	m.batchSize = m.histogram("batch_size", "Profiles per batch request", []float64{1, 5, 10, 25, 50, 100, 250, 500})

	m.submissionsAccepted = m.counter("submissions_accepted_total", "Submissions accepted for scoring")
	m.submissionsDuplicate = m.counter("submissions_duplicate_total", "Duplicate submissions ignored")
	m.submissionsRejected = m.counterVec("submissions_rejected_total", "Submissions rejected by reason", "reason")
	m.dedupeSize = m.gauge("dedupe_size", "Submission ids held by the deduper")
	m.dedupeBackendErrors = m.counter("dedupe_backend_errors_total", "Deduper backend failures (fail open)")

	m.leaderboardUpdates = m.counter("leaderboard_updates_total", "Leaderboard entries changed")
	m.leaderboardErrors = m.counter("leaderboard_errors_total", "Leaderboard update failures")
	m.crewsTotal = m.gaugeVec("crews_total", "Ranked crew members per scheme", "scheme")
	m.repositoryUpdateLatency = m.histogram("repository_update_latency_milliseconds", "Leaderboard upsert latency", b)
	m.repositoryQueryLatency = m.histogram("repository_query_latency_milliseconds", "Leaderboard query latency", b)

	m.archiveWrites = m.counterVec("archive_writes_total", "Score card writes by status", "status")
	m.archiveLatency = m.histogramVec("archive_latency_milliseconds", "Archive operation latency", b, "op")

	m.queueCapacity = m.gauge("queue_capacity", "Submission queue capacity")
	m.queueSize = m.gauge("queue_size", "Submissions waiting in the queue")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue size over capacity")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Submissions enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Submissions dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Enqueue attempts refused")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds", "Enqueue latency", b)

	m.workerActiveCount = m.gauge("worker_active_count", "Running workers")
	m.workerMessagesPerSecond = m.gauge("worker_messages_per_second", "Submissions processed per second")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "End to end submission processing latency", b)
	m.workerErrors = m.counter("worker_errors_total", "Worker processing failures")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration", b, "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "type")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint", "endpoint", "method", "type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes in use")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

func on() bool { return globalManager != nil && globalManager.enabled }

// RecordScore counts a scored profile and its total.
func RecordScore(scheme, tier string, total int, tierMatched bool) {
	if !on() {
		return
	}
	globalManager.scoresComputed.WithLabelValues(scheme, tier).Inc()
	globalManager.scoreTotals.WithLabelValues(scheme).Observe(float64(total))
	if !tierMatched {
		globalManager.tierFallbacks.WithLabelValues(scheme).Inc()
	}
}

// RecordScoringLatency observes scoring latency in milliseconds.
func RecordScoringLatency(latencyMs float64) {
	if on() {
		globalManager.scoringLatency.Observe(latencyMs)
	}
}

// RecordScoringError counts a failed scoring attempt.
func RecordScoringError() {
	if on() {
		globalManager.scoringErrors.Inc()
	}
}

// RecordBatchSize observes the size of a batch request.
func RecordBatchSize(n int) {
	if on() {
		globalManager.batchSize.Observe(float64(n))
	}
}

// RecordSubmissionAccepted counts an accepted submission.
func RecordSubmissionAccepted() {
	if on() {
		globalManager.submissionsAccepted.Inc()
	}
}

// RecordSubmissionDuplicate counts an ignored duplicate.
func RecordSubmissionDuplicate() {
	if on() {
		globalManager.submissionsDuplicate.Inc()
	}
}

// RecordSubmissionRejected counts a rejected submission.
func RecordSubmissionRejected(reason string) {
	if on() {
		globalManager.submissionsRejected.WithLabelValues(reason).Inc()
	}
}

// UpdateDedupeSize sets the deduper size gauge.
func UpdateDedupeSize(size int64) {
	if on() {
		globalManager.dedupeSize.Set(float64(size))
	}
}

// RecordDedupeBackendError counts a deduper backend failure.
func RecordDedupeBackendError() {
	if on() {
		globalManager.dedupeBackendErrors.Inc()
	}
}

// RecordLeaderboardUpdate counts a changed leaderboard entry.
func RecordLeaderboardUpdate() {
	if on() {
		globalManager.leaderboardUpdates.Inc()
	}
}

// RecordLeaderboardError counts a failed leaderboard update.
func RecordLeaderboardError() {
	if on() {
		globalManager.leaderboardErrors.Inc()
	}
}

// UpdateCrewsTotal sets the ranked crew count of a scheme.
func UpdateCrewsTotal(scheme string, count int) {
	if on() {
		globalManager.crewsTotal.WithLabelValues(scheme).Set(float64(count))
	}
}

// RecordRepositoryUpdateLatency observes an upsert.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	if on() {
		globalManager.repositoryUpdateLatency.Observe(latencyMs)
	}
}

// RecordRepositoryQueryLatency observes a read.
func RecordRepositoryQueryLatency(latencyMs float64) {
	if on() {
		globalManager.repositoryQueryLatency.Observe(latencyMs)
	}
}

// RecordArchiveWrite counts a score card write; status is "ok" or "error".
func RecordArchiveWrite(status string) {
	if on() {
		globalManager.archiveWrites.WithLabelValues(status).Inc()
	}
}

// RecordArchiveLatency observes an archive operation.
func RecordArchiveLatency(op string, latencyMs float64) {
	if on() {
		globalManager.archiveLatency.WithLabelValues(op).Observe(latencyMs)
	}
}

// UpdateQueueCapacity sets the queue capacity gauge.
func UpdateQueueCapacity(capacity int) {
	if on() {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

// UpdateQueueSize sets queue size and utilization.
func UpdateQueueSize(size, capacity int) {
	if !on() {
		return
	}
	globalManager.queueSize.Set(float64(size))
	if capacity > 0 {
		globalManager.queueUtilization.Set(float64(size) / float64(capacity))
	}
}

// RecordQueueEnqueue counts an enqueue.
func RecordQueueEnqueue() {
	if on() {
		globalManager.queueEnqueued.Inc()
	}
}

// RecordQueueDequeue counts a dequeue.
func RecordQueueDequeue() {
	if on() {
		globalManager.queueDequeued.Inc()
	}
}

// RecordQueueEnqueueError counts a refused enqueue.
func RecordQueueEnqueueError() {
	if on() {
		globalManager.queueEnqueueErrors.Inc()
	}
}

// RecordQueueProcessingLatency observes enqueue latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	if on() {
		globalManager.queueProcessingLatency.Observe(latencyMs)
	}
}

// UpdateWorkerActiveCount sets the running worker gauge.
func UpdateWorkerActiveCount(count int) {
	if on() {
		globalManager.workerActiveCount.Set(float64(count))
	}
}

// UpdateWorkerMessagesPerSecond sets the throughput gauge.
func UpdateWorkerMessagesPerSecond(rate float64) {
	if on() {
		globalManager.workerMessagesPerSecond.Set(rate)
	}
}

// RecordWorkerProcessingLatency observes end to end processing.
func RecordWorkerProcessingLatency(latencyMs float64) {
	if on() {
		globalManager.workerProcessingLatency.Observe(latencyMs)
	}
}

// RecordWorkerError counts a worker failure.
func RecordWorkerError() {
	if on() {
		globalManager.workerErrors.Inc()
	}
}

// RecordHTTPRequest counts a request and observes its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	if !on() {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent counts an error raised by a component.
func RecordErrorByComponent(component, errorType string) {
	if on() {
		globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// RecordErrorByEndpoint counts an error returned by an endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if on() {
		globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
	}
}

// UpdateSystemMemoryUsage sets heap usage.
func UpdateSystemMemoryUsage(bytes uint64) {
	if on() {
		globalManager.systemMemoryUsage.Set(float64(bytes))
	}
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	if on() {
		globalManager.systemGoroutineCount.Set(float64(count))
	}
}

// RecordSystemGCPauseTime observes a GC pause.
func RecordSystemGCPauseTime(pauseMs float64) {
	if on() {
		globalManager.systemGCPauseTime.Observe(pauseMs)
	}
}

// GetRegistry returns the registry behind the global recorders.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Configure swaps the process-wide manager for one built with opts on a fresh
// registry. Call it once at startup, before recorders or /healthz run.
func Configure(opts ...Option) {
	reg := prometheus.NewRegistry()
	opts = append(append([]Option(nil), opts...), WithRegistry(reg))
	customRegistry = reg
	globalManager = NewManager(opts...)
}
