// Package metrics exposes Prometheus collectors for the crawler service.
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
	crawlAttemptsTotal         *prometheus.CounterVec
	proxyDeactivationsTotal    *prometheus.CounterVec
	stageOutcomesTotal         *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_attempts_total",
				Help: "Total crawl attempts through the proxy pool, labeled by result.",
			},
			[]string{"result"},
		)

		proxyDeactivationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_proxy_deactivations_total",
				Help: "Total proxy deactivations, labeled by soft-failure reason.",
			},
			[]string{"reason"},
		)

		stageOutcomesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_stage_outcomes_total",
				Help: "Pipeline stage invocations, labeled by stage and outcome.",
			},
			[]string{"stage", "outcome"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCrawlAttempt increments the crawl attempt counter.
// Result is "success" or the soft-failure reason.
func ObserveCrawlAttempt(result string) {
	if crawlAttemptsTotal == nil {
		return
	}
	crawlAttemptsTotal.WithLabelValues(result).Inc()
}

// ObserveProxyDeactivation increments the deactivation counter for a reason.
func ObserveProxyDeactivation(reason string) {
	if proxyDeactivationsTotal == nil {
		return
	}
	proxyDeactivationsTotal.WithLabelValues(reason).Inc()
}

// ObserveStageOutcome increments the stage outcome counter.
func ObserveStageOutcome(stage, outcome string) {
	if stageOutcomesTotal == nil {
		return
	}
	stageOutcomesTotal.WithLabelValues(stage, outcome).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
