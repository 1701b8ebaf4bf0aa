package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/loadorder/pkg/observability"
)

// Metrics exports resolver, cache and HTTP events to Prometheus. It
// implements the observability hook interfaces and owns its registry, so
// several servers (or tests) never collide on global registration.
type Metrics struct {
	registry *prometheus.Registry

	builds        *prometheus.CounterVec
	buildDuration prometheus.Histogram
	cycles        prometheus.Gauge
	sorts         *prometheus.CounterVec
	sortDuration  prometheus.Histogram
	cacheEvents   *prometheus.CounterVec
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	reloads       *prometheus.CounterVec
}

var (
	_ observability.ResolverHooks = (*Metrics)(nil)
	_ observability.CacheHooks    = (*Metrics)(nil)
	_ observability.HTTPHooks     = (*Metrics)(nil)
)

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		builds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loadorder_builds_total",
				Help: "Total number of graph builds",
			},
			[]string{"result"},
		),
		buildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "loadorder_build_duration_seconds",
				Help:    "Duration of graph builds",
				Buckets: prometheus.DefBuckets,
			},
		),
		cycles: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "loadorder_cycles",
				Help: "Number of cycles found by the most recent build",
			},
		),
		sorts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loadorder_sorts_total",
				Help: "Total number of load order extractions",
			},
			[]string{"result"},
		),
		sortDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "loadorder_sort_duration_seconds",
				Help:    "Duration of load order extractions",
				Buckets: prometheus.DefBuckets,
			},
		),
		cacheEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loadorder_cache_events_total",
				Help: "Order cache hits, misses and writes",
			},
			[]string{"key_type", "event"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loadorder_http_requests_total",
				Help: "Total number of HTTP requests served",
			},
			[]string{"method", "route", "status"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loadorder_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		reloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loadorder_registry_reloads_total",
				Help: "Registry reloads triggered by file changes",
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(
		m.builds,
		m.buildDuration,
		m.cycles,
		m.sorts,
		m.sortDuration,
		m.cacheEvents,
		m.requests,
		m.latency,
		m.reloads,
	)
	return m
}

// Install registers m as the process-wide resolver, cache and HTTP hooks.
func (m *Metrics) Install() {
	observability.SetResolverHooks(m)
	observability.SetCacheHooks(m)
	observability.SetHTTPHooks(m)
}

// Handler serves the collected metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) OnBuildStart(context.Context, int) {}

func (m *Metrics) OnBuildComplete(_ context.Context, _, cycles int, d time.Duration, err error) {
	m.builds.WithLabelValues(result(err)).Inc()
	m.buildDuration.Observe(d.Seconds())
	m.cycles.Set(float64(cycles))
}

func (m *Metrics) OnSortStart(context.Context, int) {}

func (m *Metrics) OnSortComplete(_ context.Context, _, _ int, d time.Duration, err error) {
	m.sorts.WithLabelValues(result(err)).Inc()
	m.sortDuration.Observe(d.Seconds())
}

func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.cacheEvents.WithLabelValues(keyType, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.cacheEvents.WithLabelValues(keyType, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, keyType string, _ int) {
	m.cacheEvents.WithLabelValues(keyType, "set").Inc()
}

func (m *Metrics) OnRequest(context.Context, string, string) {}

func (m *Metrics) OnResponse(_ context.Context, method, route string, status int, d time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) onReload(err error) {
	m.reloads.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
