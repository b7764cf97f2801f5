package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "resourcewise",
		Subsystem: "workflow",
		Name:      "stage_duration_seconds",
		Help:      "Time spent in each workflow stage",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"stage"})

	stageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resourcewise",
		Subsystem: "workflow",
		Name:      "stage_failures_total",
		Help:      "Stage handler failures by stage",
	}, []string{"stage"})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resourcewise",
		Subsystem: "workflow",
		Name:      "requests_total",
		Help:      "Workflow executions by terminal stage",
	}, []string{"outcome"})

	llmCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resourcewise",
		Subsystem: "llm",
		Name:      "calls_total",
		Help:      "Language model calls by operation and status",
	}, []string{"operation", "status"})

	llmLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "resourcewise",
		Subsystem: "llm",
		Name:      "latency_seconds",
		Help:      "Language model call latency",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"operation"})

	resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resourcewise",
		Subsystem: "fuzzy",
		Name:      "terms_total",
		Help:      "Fuzzy terms by the tier that resolved them",
	}, []string{"tier"})

	dbQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resourcewise",
		Subsystem: "db",
		Name:      "queries_total",
		Help:      "Generated query executions by outcome category",
	}, []string{"status"})

	dbLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "resourcewise",
		Subsystem: "db",
		Name:      "query_seconds",
		Help:      "Generated query execution time",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	})
)

// RecordStage observes one stage execution.
func RecordStage(stage string, d time.Duration, failed bool) {
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if failed {
		stageFailures.WithLabelValues(stage).Inc()
	}
}

// RecordRequest counts a finished workflow execution by its terminal stage.
func RecordRequest(outcome string) {
	requestsTotal.WithLabelValues(outcome).Inc()
}

// RecordLLMCall observes one language model call. status is "ok" or "error".
func RecordLLMCall(operation, status string, d time.Duration) {
	llmCalls.WithLabelValues(operation, status).Inc()
	llmLatency.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordResolution adds n terms resolved by tier ("static", "fuzzy", "vector", "unresolved").
func RecordResolution(tier string, n int) {
	if n > 0 {
		resolutions.WithLabelValues(tier).Add(float64(n))
	}
}

// RecordQuery observes one generated query execution. status is "ok" or an error category.
func RecordQuery(status string, d time.Duration) {
	dbQueries.WithLabelValues(status).Inc()
	dbLatency.Observe(d.Seconds())
}

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resourcewise",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status code",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "resourcewise",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	rateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resourcewise",
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter",
	}, []string{"route"})
)

// RecordHTTP observes one served request. route must be a bounded label such as "/sessions/{id}".
func RecordHTTP(method, route string, status int, d time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// RecordRateLimited counts a request rejected with 429.
func RecordRateLimited(route string) {
	rateLimited.WithLabelValues(route).Inc()
}
