// Package metrics exposes Prometheus counters and histograms for provider
// calls, cache lookups, digest runs and deliveries. A nil *Metrics is valid
// and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "digest"

// Metrics holds the registered collectors
type Metrics struct {
	registry *prometheus.Registry

	providerRequests *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	cacheLookups     *prometheus.CounterVec
	runs             *prometheus.CounterVec
	runDuration      prometheus.Histogram
	unavailable      prometheus.Gauge
	deliveries       *prometheus.CounterVec
}

// New creates collectors on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Market data provider calls by operation and outcome.",
		}, []string{"provider", "op", "outcome"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_seconds",
			Help:      "Market data provider call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "op"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Response cache lookups by result.",
		}, []string{"result"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Digest runs by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_seconds",
			Help:      "Digest run duration.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
		}),
		unavailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "positions_unavailable",
			Help:      "Positions without a usable quote in the last run.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Report deliveries by channel and outcome.",
		}, []string{"channel", "outcome"}),
	}

	m.registry.MustRegister(
		m.providerRequests,
		m.providerLatency,
		m.cacheLookups,
		m.runs,
		m.runDuration,
		m.unavailable,
		m.deliveries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveProvider records one provider call started at start
func (m *Metrics) ObserveProvider(provider, op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.providerRequests.WithLabelValues(provider, op, outcome(err)).Inc()
	m.providerLatency.WithLabelValues(provider, op).Observe(time.Since(start).Seconds())
}

// CacheLookup records a cache hit or miss
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveRun records a finished digest run
func (m *Metrics) ObserveRun(start time.Time, unavailable int, err error) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome(err)).Inc()
	m.runDuration.Observe(time.Since(start).Seconds())
	if err == nil {
		m.unavailable.Set(float64(unavailable))
	}
}

// ObserveDelivery records one delivery attempt
func (m *Metrics) ObserveDelivery(channel string, err error) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(channel, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
