// Package metrics exposes Prometheus instrumentation for the gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the gateway's Prometheus collectors.
type Metrics struct {
	Registry *prometheus.Registry

	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	ProviderRequests *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec

	RateLimitWait prometheus.Histogram

	TokensUsed *prometheus.CounterVec
}

// New creates a Metrics instance backed by its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aigate",
			Name:      "cache_hits_total",
			Help:      "Number of responses served from the cache.",
		}, []string{"vertical"}),
		CacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aigate",
			Name:      "cache_misses_total",
			Help:      "Number of requests that missed the cache.",
		}, []string{"vertical"}),
		ProviderRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aigate",
			Name:      "provider_requests_total",
			Help:      "Provider calls by operation and outcome.",
		}, []string{"operation", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aigate",
			Name:      "request_duration_seconds",
			Help:      "End to end request latency by operation.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
		RateLimitWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "aigate",
			Name:      "ratelimit_wait_seconds",
			Help:      "Time spent waiting for a rate limit token.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60},
		}),
		TokensUsed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aigate",
			Name:      "tokens_used_total",
			Help:      "Provider tokens consumed, by tenant and direction.",
		}, []string{"tenant", "direction"}),
	}
}

// ObserveCacheHit records a cache hit for the given vertical.
func (m *Metrics) ObserveCacheHit(vertical string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(vertical).Inc()
}

// ObserveCacheMiss records a cache miss for the given vertical.
func (m *Metrics) ObserveCacheMiss(vertical string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(vertical).Inc()
}

// ObserveProviderRequest records a provider call outcome.
func (m *Metrics) ObserveProviderRequest(operation, status string) {
	if m == nil {
		return
	}
	m.ProviderRequests.WithLabelValues(operation, status).Inc()
}

// ObserveDuration records end to end latency for an operation.
func (m *Metrics) ObserveDuration(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(operation).Observe(seconds)
}

// ObserveRateLimitWait records time spent blocked on the limiter.
func (m *Metrics) ObserveRateLimitWait(seconds float64) {
	if m == nil {
		return
	}
	m.RateLimitWait.Observe(seconds)
}

// ObserveTokens records token consumption for a tenant.
func (m *Metrics) ObserveTokens(tenant string, prompt, completion int) {
	if m == nil {
		return
	}
	m.TokensUsed.WithLabelValues(tenant, "prompt").Add(float64(prompt))
	m.TokensUsed.WithLabelValues(tenant, "completion").Add(float64(completion))
}
