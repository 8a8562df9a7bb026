// Package metrics provides Prometheus metrics for the donor evaluation engine.
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

// Manager manages all Prometheus metrics for the evaluation engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	refreshInterval  time.Duration
	registry         prometheus.Registerer

	// Evaluation metrics
	evaluationsTotal    *prometheus.CounterVec
	evaluationDuration  prometheus.Histogram
	cohortSize          prometheus.Histogram
	rowsSkipped         prometheus.Counter
	statusTransitions   prometheus.Counter
	eligibilityOutcomes *prometheus.CounterVec
	computationDefaults prometheus.Counter

	// Configuration quality
	configErrors prometheus.Counter

	// Recalculation queue and workers
	recalcQueueSize     prometheus.Gauge
	recalcQueueCapacity prometheus.Gauge
	recalcEnqueued      prometheus.Counter
	recalcCoalesced     prometheus.Counter
	recalcEnqueueErrors prometheus.Counter
	recalcWorkerCount   prometheus.Gauge
	recalcWorkerErrors  prometheus.Counter
	recalcJobDurationMs prometheus.Histogram

	// System metrics
	storedExaminations   prometheus.Gauge
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "donoreval",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		refreshInterval:  defaultRefreshInterval,
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.evaluationsTotal = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "evaluations_total",
			Help:      "Total number of evaluation runs by scope (single or cohort)",
		},
		[]string{"scope"},
	)

	m.evaluationDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "evaluation_duration_milliseconds",
		Help:      "Histogram of evaluation run duration in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.cohortSize = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cohort_size",
		Help:      "Histogram of cohort sizes seen by cohort evaluations",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	})

	m.rowsSkipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cohort_rows_skipped_total",
		Help:      "Total number of cohort rows skipped because of malformed input",
	})

	m.statusTransitions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "status_transitions_total",
		Help:      "Total number of recomputations that flipped a persisted eligibility flag",
	})

	m.eligibilityOutcomes = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "eligibility_outcomes_total",
			Help:      "Total number of persisted results by outcome",
		},
		[]string{"outcome"},
	)

	m.computationDefaults = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "computation_defaults_total",
		Help:      "Total number of non-finite preference scores defaulted to zero",
	})

	m.configErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "configuration_errors_total",
		Help:      "Total number of evaluation runs aborted by configuration errors",
	})

	m.recalcQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "recalc_queue_size",
		Help:      "Current number of pending recalculation jobs",
	})

	m.recalcQueueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "recalc_queue_capacity",
		Help:      "Maximum recalculation queue capacity",
	})

	m.recalcEnqueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "recalc_enqueued_total",
		Help:      "Total number of recalculation jobs enqueued",
	})

	m.recalcCoalesced = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "recalc_coalesced_total",
		Help:      "Total number of recalculation requests merged into a pending job",
	})

	m.recalcEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "recalc_enqueue_errors_total",
		Help:      "Total number of recalculation jobs rejected by the queue",
	})

	m.recalcWorkerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "recalc_worker_count",
		Help:      "Number of recalculation workers",
	})

	m.recalcWorkerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "recalc_worker_errors_total",
		Help:      "Total number of recalculation jobs that failed",
	})

	m.recalcJobDurationMs = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "recalc_job_duration_milliseconds",
		Help:      "Recalculation job duration in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.storedExaminations = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stored_examinations",
		Help:      "Number of examinations known to the store",
	})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "System memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})
}

// RecordEvaluation counts an evaluation run by scope ("single" or "cohort").
func RecordEvaluation(scope string) {
	globalManager.evaluationsTotal.WithLabelValues(scope).Inc()
}

// RecordEvaluationDuration records an evaluation run duration in milliseconds.
func RecordEvaluationDuration(ms float64) {
	globalManager.evaluationDuration.Observe(ms)
}

// RecordCohortSize records the number of rows in a cohort evaluation.
func RecordCohortSize(n int) {
	globalManager.cohortSize.Observe(float64(n))
}

// RecordRowSkipped counts one malformed cohort row skipped.
func RecordRowSkipped() {
	globalManager.rowsSkipped.Inc()
}

// RecordStatusTransition counts a recomputation that flipped eligibility.
func RecordStatusTransition() {
	globalManager.statusTransitions.Inc()
}

// RecordOutcome counts a persisted result outcome ("eligible" or "ineligible").
func RecordOutcome(outcome string) {
	globalManager.eligibilityOutcomes.WithLabelValues(outcome).Inc()
}

// RecordComputationDefault counts a non-finite score defaulted to zero.
func RecordComputationDefault() {
	globalManager.computationDefaults.Inc()
}

// RecordConfigError counts a run aborted by bad configuration.
func RecordConfigError() {
	globalManager.configErrors.Inc()
}

// UpdateRecalcQueueSize sets the current recalculation queue depth.
func UpdateRecalcQueueSize(size int) {
	globalManager.recalcQueueSize.Set(float64(size))
}

// UpdateRecalcQueueCapacity sets the recalculation queue capacity.
func UpdateRecalcQueueCapacity(capacity int) {
	globalManager.recalcQueueCapacity.Set(float64(capacity))
}

// RecordRecalcEnqueued counts a job accepted by the queue.
func RecordRecalcEnqueued() {
	globalManager.recalcEnqueued.Inc()
}

// RecordRecalcCoalesced counts a request merged into an already-pending job.
func RecordRecalcCoalesced() {
	globalManager.recalcCoalesced.Inc()
}

// RecordRecalcEnqueueError counts a job rejected by the queue.
func RecordRecalcEnqueueError() {
	globalManager.recalcEnqueueErrors.Inc()
}

// UpdateRecalcWorkerCount sets the recalculation worker count.
func UpdateRecalcWorkerCount(count int) {
	globalManager.recalcWorkerCount.Set(float64(count))
}

// RecordRecalcWorkerError counts a failed recalculation job.
func RecordRecalcWorkerError() {
	globalManager.recalcWorkerErrors.Inc()
}

// RecordRecalcJobDuration records a recalculation job duration in milliseconds.
func RecordRecalcJobDuration(ms float64) {
	globalManager.recalcJobDurationMs.Observe(ms)
}

// UpdateStoredExaminations sets the number of examinations in the store.
func UpdateStoredExaminations(count int) {
	globalManager.storedExaminations.Set(float64(count))
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
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
