package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics
var (
	// HTTPRequestDuration tracks request latency by method, path, and status.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestTimeout counts requests that hit the timeout threshold by path.
	HTTPRequestTimeout = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_timeout_total",
			Help: "Total number of HTTP request timeouts",
		},
		[]string{"path"},
	)
)

// Database metrics
var (
	// DBTransactionDuration tracks transaction duration by operation label.
	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_transaction_duration_seconds",
			Help:    "Duration of database transactions in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation"},
	)

	// DBOptimisticLockConflicts counts optimistic lock conflicts by repository.
	DBOptimisticLockConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_optimistic_lock_conflicts_total",
			Help: "Total number of optimistic lock conflicts",
		},
		[]string{"repository"},
	)

	// DBPoolConnectionsInUse gauges the number of in-use database connections.
	DBPoolConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_pool_connections_in_use",
			Help: "Number of database connections currently in use",
		},
	)

	// DBPoolConnectionsIdle gauges the number of idle database connections.
	DBPoolConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_pool_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)

// Outbox metrics
var (
	// OutboxPendingEvents gauges the number of unpublished outbox events.
	OutboxPendingEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "outbox_pending_events",
			Help: "Number of unpublished events in outbox",
		},
	)

	// OutboxOldestUnpublishedAge gauges the age in seconds of the oldest unpublished event.
	OutboxOldestUnpublishedAge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "outbox_oldest_unpublished_age_seconds",
			Help: "Age of the oldest unpublished outbox event in seconds",
		},
	)
)

// Business metrics
var (
	// IdempotencyCacheHits counts payment requests answered from the idempotency store.
	IdempotencyCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "idempotency_cache_hits_total",
			Help: "Total number of idempotency cache hits",
		},
	)

	// CardOperations counts card service operations by operation and outcome.
	CardOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "card_operations_total",
			Help: "Total number of card operations",
		},
		[]string{"operation", "outcome"},
	)

	// CardNumberGenerationAttempts tracks how many candidates were drawn per issued card.
	CardNumberGenerationAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "card_number_generation_attempts",
			Help:    "Number of candidate card numbers drawn per issuance",
			Buckets: []float64{1, 2, 3, 5, 10, 25, 50, 100},
		},
	)

	// PaymentsProcessed counts processed payments by final status.
	PaymentsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_processed_total",
			Help: "Total number of payments processed",
		},
		[]string{"status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns an HTTP middleware that records request metrics.
// Side effects: records Prometheus metrics and reads the current time.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip metrics endpoint itself
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.statusCode)
		path := routePattern(r)

		HTTPRequestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
		HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()

		if errors.Is(r.Context().Err(), context.DeadlineExceeded) {
			HTTPRequestTimeout.WithLabelValues(path).Inc()
		}
	})
}

// routePattern returns the matched chi route (e.g. "/cards/{id}") to keep label cardinality bounded.
// Requests that matched no route are labelled "unmatched".
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return "unmatched"
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}
	return "unmatched"
}

// RecordOptimisticLockConflict increments the optimistic lock conflict counter.
// Side effects: records a Prometheus metric.
func RecordOptimisticLockConflict(repository string) {
	DBOptimisticLockConflicts.WithLabelValues(repository).Inc()
}

// RecordTransactionDuration records a transaction duration.
// Side effects: records a Prometheus metric.
func RecordTransactionDuration(operation string, duration time.Duration) {
	DBTransactionDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordIdempotencyCacheHit increments the cache hit counter.
// Side effects: records a Prometheus metric.
func RecordIdempotencyCacheHit() {
	IdempotencyCacheHits.Inc()
}

// RecordCardOperation increments the card operation counter.
// Side effects: records a Prometheus metric.
func RecordCardOperation(operation, outcome string) {
	CardOperations.WithLabelValues(operation, outcome).Inc()
}

// RecordNumberGenerationAttempts observes the attempts spent finding an unused card number.
func RecordNumberGenerationAttempts(attempts int) {
	if attempts > 0 {
		CardNumberGenerationAttempts.Observe(float64(attempts))
	}
}

// RecordPaymentProcessed increments the payment counter.
// Side effects: records a Prometheus metric.
func RecordPaymentProcessed(status string) {
	PaymentsProcessed.WithLabelValues(status).Inc()
}

// SetOutboxPending sets the pending outbox gauge.
func SetOutboxPending(count int) {
	OutboxPendingEvents.Set(float64(count))
}

// RecordPoolStats copies pool statistics into the pool gauges.
func RecordPoolStats(inUse, idle int32) {
	DBPoolConnectionsInUse.Set(float64(inUse))
	DBPoolConnectionsIdle.Set(float64(idle))
}

// SetOutboxOldestAge sets the age of the oldest unpublished event; zero when the outbox is drained.
func SetOutboxOldestAge(age time.Duration) {
	OutboxOldestUnpublishedAge.Set(age.Seconds())
}
