// Package metrics provides Prometheus metrics for the fantasy climbing service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace          string
	subsystem          string
	httpBuckets        []float64
	leaderboardBuckets []float64
	providerBuckets    []float64
	registry           prometheus.Registerer

	// Roster mutations
	rosterReplacements prometheus.Counter
	captainChanges     prometheus.Counter
	transfersCreated   prometheus.Counter
	transfersReverted  prometheus.Counter
	mutationRejections *prometheus.CounterVec
	draftLocksLatched  prometheus.Counter

	// Scoring
	leaderboardLatency      prometheus.Histogram
	leaderboardComputations prometheus.Counter
	teamEventScores         prometheus.Counter

	// Ingestion
	ingestItems  *prometheus.CounterVec
	ingestErrors *prometheus.CounterVec

	// Provider client
	providerRequests *prometheus.CounterVec
	providerLatency  prometheus.Histogram

	// Store
	storeRows         *prometheus.GaugeVec
	storeQueryLatency prometheus.Histogram
	storeReadRetries  prometheus.Counter
	storeTxFailures   prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorRateByComponent *prometheus.CounterVec
}

// Default latency buckets in milliseconds.
var (
	defaultLeaderboardBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500}    //nolint:gochecknoglobals // read-only defaults
	defaultProviderBuckets    = []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000} //nolint:gochecknoglobals // read-only defaults
)

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
		namespace:          "fantasy",
		subsystem:          "climbing",
		httpBuckets:        prometheus.DefBuckets,
		leaderboardBuckets: defaultLeaderboardBuckets,
		providerBuckets:    defaultProviderBuckets,
		registry:           prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.rosterReplacements = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "roster_replacements_total",
		Help:      "Total number of full roster replacements applied",
	})

	m.captainChanges = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "captain_changes_total",
		Help:      "Total number of captain changes applied",
	})

	m.transfersCreated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "transfers_created_total",
		Help:      "Total number of transfers created",
	})

	m.transfersReverted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "transfers_reverted_total",
		Help:      "Total number of transfers reverted",
	})

	m.mutationRejections = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "mutation_rejections_total",
		Help:      "Total number of rejected roster mutations by operation and reason",
	}, []string{"operation", "reason"})

	m.draftLocksLatched = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "draft_locks_latched_total",
		Help:      "Total number of leagues whose draft lock was latched",
	})

	m.leaderboardLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "leaderboard_latency_milliseconds",
		Help:      "Histogram of league leaderboard computation latency in milliseconds",
		Buckets:   m.leaderboardBuckets,
	})

	m.leaderboardComputations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "leaderboard_computations_total",
		Help:      "Total number of league leaderboards computed",
	})

	m.teamEventScores = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "team_event_scores_total",
		Help:      "Total number of team scores computed for a single event",
	})

	m.ingestItems = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ingest_items_total",
		Help:      "Total number of ingested items by kind",
	}, []string{"kind"})

	m.ingestErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ingest_errors_total",
		Help:      "Total number of ingestion item failures by kind",
	}, []string{"kind"})

	m.providerRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "provider_requests_total",
		Help:      "Total number of results provider requests by endpoint and status",
	}, []string{"endpoint", "status"})

	m.providerLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "provider_latency_milliseconds",
		Help:      "Histogram of results provider request latency in milliseconds",
		Buckets:   m.providerBuckets,
	})

	m.storeRows = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_rows",
		Help:      "Number of rows per table in the in-memory store",
	}, []string{"table"})

	m.storeQueryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_query_latency_milliseconds",
		Help:      "Histogram of store read latency in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250},
	})

	m.storeReadRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_read_retries_total",
		Help:      "Total number of retried store reads",
	})

	m.storeTxFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_tx_failures_total",
		Help:      "Total number of rolled back store transactions",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by endpoint, method and status code",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   m.httpBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_by_component_total",
		Help:      "Total number of errors by component and error type",
	}, []string{"component", "error_type"})
}

// RecordRosterReplacement increments the roster replacement counter.
func RecordRosterReplacement() {
	globalManager.rosterReplacements.Inc()
}

// RecordCaptainChange increments the captain change counter.
func RecordCaptainChange() {
	globalManager.captainChanges.Inc()
}

// RecordTransferCreated increments the created transfers counter.
func RecordTransferCreated() {
	globalManager.transfersCreated.Inc()
}

// RecordTransferReverted increments the reverted transfers counter.
func RecordTransferReverted() {
	globalManager.transfersReverted.Inc()
}

// RecordMutationRejected records a rejected mutation with its reason code.
func RecordMutationRejected(operation, reason string) {
	globalManager.mutationRejections.WithLabelValues(operation, reason).Inc()
}

// RecordDraftLockLatched increments the latched draft lock counter.
func RecordDraftLockLatched() {
	globalManager.draftLocksLatched.Inc()
}

// RecordLeaderboardLatency records leaderboard computation latency in milliseconds.
func RecordLeaderboardLatency(latencyMs float64) {
	globalManager.leaderboardLatency.Observe(latencyMs)
	globalManager.leaderboardComputations.Inc()
}

// RecordTeamEventScore increments the per-event team score counter.
func RecordTeamEventScore() {
	globalManager.teamEventScores.Inc()
}

// RecordIngestItems adds n ingested items of kind.
func RecordIngestItems(kind string, n int) {
	globalManager.ingestItems.WithLabelValues(kind).Add(float64(n))
}

// RecordIngestError increments the ingestion error counter for kind.
func RecordIngestError(kind string) {
	globalManager.ingestErrors.WithLabelValues(kind).Inc()
}

// RecordProviderRequest records one provider request and its latency.
func RecordProviderRequest(endpoint, status string, latencyMs float64) {
	globalManager.providerRequests.WithLabelValues(endpoint, status).Inc()
	globalManager.providerLatency.Observe(latencyMs)
}

// UpdateStoreRows sets the row count of a store table.
func UpdateStoreRows(table string, count int) {
	globalManager.storeRows.WithLabelValues(table).Set(float64(count))
}

// RecordStoreQueryLatency records store read latency in milliseconds.
func RecordStoreQueryLatency(latencyMs float64) {
	globalManager.storeQueryLatency.Observe(latencyMs)
}

// RecordStoreReadRetry increments the store read retry counter.
func RecordStoreReadRetry() {
	globalManager.storeReadRetries.Inc()
}

// RecordStoreTxFailure increments the rolled back transaction counter.
func RecordStoreTxFailure() {
	globalManager.storeTxFailures.Inc()
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
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
