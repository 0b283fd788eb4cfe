package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Engine metrics
	RecountsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bayes_recounts_total",
			Help: "Total number of item recounts",
		},
		[]string{"model", "result"},
	)

	RecountDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bayes_recount_duration_seconds",
			Help:    "Duration of a recount including the Bayesian update",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"model"},
	)

	ConstantResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bayes_constant_resolutions_total",
			Help: "How C and m were resolved: fixed, cached, refreshed or drifted",
		},
		[]string{"model", "source"},
	)

	BayesianUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bayes_score_updates_total",
			Help: "Total number of Bayesian rating writes by scope",
		},
		[]string{"model", "scope"},
	)

	BayesianRowsUpdated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bayes_score_rows_updated_total",
			Help: "Total number of item rows rescored",
		},
		[]string{"model"},
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bayes_cache_errors_total",
			Help: "Total number of constant cache failures",
		},
		[]string{"model", "operation"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordRecount records the outcome and latency of a recount.
func RecordRecount(model string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	RecountsTotal.WithLabelValues(model, result).Inc()
	RecountDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// RecordBayesianUpdate records a Bayesian rating write.
func RecordBayesianUpdate(model, scope string, rows int64) {
	BayesianUpdates.WithLabelValues(model, scope).Inc()
	BayesianRowsUpdated.WithLabelValues(model).Add(float64(rows))
}

// RecordAPIRequest records an API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
