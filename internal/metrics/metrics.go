// Package metrics holds the Prometheus collectors for chat turns.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// turnsTotal counts finished turns by route and final state
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatrelay_turns_total",
		Help: "Chat turns by dispatch route and outcome",
	}, []string{"route", "outcome"})

	// envelopesTotal counts normalized upstream payloads by kind
	envelopesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatrelay_upstream_deltas_total",
		Help: "Normalized upstream payloads by kind",
	}, []string{"kind"})

	// upstreamDuration tracks time until the upstream answered (headers for streams)
	upstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chatrelay_upstream_duration_seconds",
		Help:    "Latency of the upstream completion call",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
	}, []string{"backend"})

	// titleFallbacks counts conversation titles that were not generated by the model
	titleFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_title_fallbacks_total",
		Help: "Conversation titles substituted after generation failed",
	})

	// rateLimited counts rejected requests
	rateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_rate_limited_total",
		Help: "Requests rejected by the per-user rate limiter",
	})
)

// ObserveTurn records a finished turn.
func ObserveTurn(route, outcome string) {
	turnsTotal.WithLabelValues(route, outcome).Inc()
}

// ObserveDelta records one normalized upstream payload.
func ObserveDelta(kind string) {
	envelopesTotal.WithLabelValues(kind).Inc()
}

// ObserveUpstream records upstream latency since start.
func ObserveUpstream(backend string, start time.Time) {
	upstreamDuration.WithLabelValues(backend).Observe(time.Since(start).Seconds())
}

// TitleFallback records a substituted conversation title.
func TitleFallback() {
	titleFallbacks.Inc()
}

// RateLimited records a rejected request.
func RateLimited() {
	rateLimited.Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
