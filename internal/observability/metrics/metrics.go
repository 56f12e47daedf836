package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "energywatch_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	fetchRequests *prometheus.CounterVec
	fetchLatency  *prometheus.HistogramVec

	partialFailures *prometheus.CounterVec

	evaluationsTotal *prometheus.CounterVec
	reportWrites     *prometheus.CounterVec
	reportLatency    *prometheus.HistogramVec
)

// Init registers observability metrics.
func Init() {
	registerOnce.Do(func() {
		fetchRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "fetch_requests_total",
				Help: "Total remote fetch requests by entity and result",
			},
			[]string{"entity", "result"},
		)
		fetchLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "fetch_latency_seconds",
				Help:    "Remote fetch latency in seconds by entity",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"entity"},
		)

		partialFailures = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "fanout_partial_failures_total",
				Help: "Total fan-out items that failed while siblings succeeded",
			},
			[]string{"operation"},
		)

		evaluationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alarm_evaluations_total",
				Help: "Total alarm evaluations by result",
			},
			[]string{"result"},
		)
		reportWrites = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_writes_total",
				Help: "Total report artifact writes by artifact and result",
			},
			[]string{"artifact", "result"},
		)
		reportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_write_latency_seconds",
				Help:    "Report artifact write latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"artifact"},
		)

		prometheus.MustRegister(
			fetchRequests,
			fetchLatency,
			partialFailures,
			evaluationsTotal,
			reportWrites,
			reportLatency,
		)
	})
}

// ObserveFetch records one remote request.
func ObserveFetch(entity, result string, duration time.Duration) {
	if entity == "" {
		entity = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if fetchRequests != nil {
		fetchRequests.WithLabelValues(entity, result).Inc()
	}
	if fetchLatency != nil {
		fetchLatency.WithLabelValues(entity).Observe(duration.Seconds())
	}
}

// IncPartialFailure counts a failed fan-out item.
func IncPartialFailure(operation string) {
	if operation == "" {
		operation = "unknown"
	}
	if partialFailures != nil {
		partialFailures.WithLabelValues(operation).Inc()
	}
}

// IncEvaluation counts one alarm evaluation.
func IncEvaluation(result string) {
	if result == "" {
		result = resultSuccess
	}
	if evaluationsTotal != nil {
		evaluationsTotal.WithLabelValues(result).Inc()
	}
}

// ObserveReportWrite records one report artifact write.
func ObserveReportWrite(artifact, result string, duration time.Duration) {
	if artifact == "" {
		artifact = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if reportWrites != nil {
		reportWrites.WithLabelValues(artifact, result).Inc()
	}
	if reportLatency != nil {
		reportLatency.WithLabelValues(artifact).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
