// Package metrics exposes Prometheus collectors for the ingestion service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchAttemptsTotal    *prometheus.CounterVec
	fetchDurationSeconds  *prometheus.HistogramVec
	retriesTotal          *prometheus.CounterVec
	rateLimitDelaySeconds *prometheus.HistogramVec
	rowsParsedTotal       prometheus.Counter
	rowsSkippedTotal      prometheus.Counter
	sinkWritesTotal       *prometheus.CounterVec
	runsTotal             *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_fetch_attempts_total",
				Help: "Fetch attempts, labeled by host and HTTP status (0 = transport error).",
			},
			[]string{"host", "status"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingest_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by host.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)

		retriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_retries_total",
				Help: "Retries performed, labeled by kind (transport, retry_after).",
			},
			[]string{"kind"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingest_rate_limit_delay_seconds",
				Help:    "Histogram of rate limit wait durations, labeled by host.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"host"},
		)

		rowsParsedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_rows_parsed_total",
				Help: "Player rows successfully parsed.",
			},
		)

		rowsSkippedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_rows_skipped_total",
				Help: "Player rows skipped due to malformed identity cells.",
			},
		)

		sinkWritesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_sink_writes_total",
				Help: "Sink write outcomes, labeled by sink and status.",
			},
			[]string{"sink", "status"},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_runs_total",
				Help: "Completed ingestion runs, labeled by terminal status.",
			},
			[]string{"status"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetchAttempt records one fetch attempt outcome.
func ObserveFetchAttempt(host string, status int, duration time.Duration) {
	if fetchAttemptsTotal == nil {
		return
	}
	fetchAttemptsTotal.WithLabelValues(host, strconv.Itoa(status)).Inc()
	fetchDurationSeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveRetry counts a retry of the given kind.
func ObserveRetry(kind string) {
	if retriesTotal == nil {
		return
	}
	retriesTotal.WithLabelValues(kind).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	if rateLimitDelaySeconds == nil {
		return
	}
	rateLimitDelaySeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveRows records parse results for one page.
func ObserveRows(parsed, skipped int) {
	if rowsParsedTotal == nil {
		return
	}
	rowsParsedTotal.Add(float64(parsed))
	rowsSkippedTotal.Add(float64(skipped))
}

// ObserveSinkWrite records one sink write outcome.
func ObserveSinkWrite(sink string, err error) {
	if sinkWritesTotal == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	sinkWritesTotal.WithLabelValues(sink, status).Inc()
}

// ObserveRun counts a completed run by terminal status.
func ObserveRun(status string) {
	if runsTotal == nil {
		return
	}
	runsTotal.WithLabelValues(status).Inc()
}
