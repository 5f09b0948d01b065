package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the permission engine
type Metrics struct {
	// HTTP surface
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Upstream authority client
	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamRequestDuration *prometheus.HistogramVec

	// Catalog cache
	CatalogCacheHitsTotal   prometheus.Counter
	CatalogCacheMissesTotal prometheus.Counter

	// Access resolution
	DegradedResolutionsTotal prometheus.Counter
	ForeignGrantsTotal       prometheus.Counter

	// Reconciliation
	ReconcileAppliesTotal *prometheus.CounterVec
	GrantsAddedTotal      prometheus.Counter
	GrantsRemovedTotal    prometheus.Counter

	// Preference store
	PrefsFallbackReadsTotal prometheus.Counter
	PrefsWriteErrorsTotal   *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raporhub_http_requests_total",
				Help: "Total HTTP requests by method, path and status",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "raporhub_http_request_duration_seconds",
				Help:    "HTTP request latency by method and path",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		UpstreamRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raporhub_upstream_requests_total",
				Help: "Calls to the reporting authority by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		UpstreamRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "raporhub_upstream_request_duration_seconds",
				Help:    "Reporting authority call latency by operation",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		CatalogCacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raporhub_catalog_cache_hits_total",
			Help: "Tenant catalog cache hits",
		}),
		CatalogCacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raporhub_catalog_cache_misses_total",
			Help: "Tenant catalog cache misses",
		}),
		DegradedResolutionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raporhub_degraded_resolutions_total",
			Help: "Access resolutions served in degraded mode",
		}),
		ForeignGrantsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raporhub_foreign_grants_total",
			Help: "Granted report ids ignored for not belonging to the tenant catalog",
		}),
		ReconcileAppliesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raporhub_reconcile_applies_total",
				Help: "Reconcile apply operations by outcome",
			},
			[]string{"outcome"},
		),
		GrantsAddedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raporhub_grants_added_total",
			Help: "Report grants added via reconciliation",
		}),
		GrantsRemovedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raporhub_grants_removed_total",
			Help: "Report grants removed via reconciliation",
		}),
		PrefsFallbackReadsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raporhub_prefs_fallback_reads_total",
			Help: "Preference reads served from the local cache tier",
		}),
		PrefsWriteErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raporhub_prefs_write_errors_total",
				Help: "Preference write failures by tier",
			},
			[]string{"tier"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.UpstreamRequestsTotal,
		m.UpstreamRequestDuration,
		m.CatalogCacheHitsTotal,
		m.CatalogCacheMissesTotal,
		m.DegradedResolutionsTotal,
		m.ForeignGrantsTotal,
		m.ReconcileAppliesTotal,
		m.GrantsAddedTotal,
		m.GrantsRemovedTotal,
		m.PrefsFallbackReadsTotal,
		m.PrefsWriteErrorsTotal,
	)

	return m
}

// Handler returns an HTTP handler serving the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTPRequest records a completed HTTP request
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveUpstreamRequest records a completed authority call
func (m *Metrics) ObserveUpstreamRequest(op string, err error, duration time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.UpstreamRequestsTotal.WithLabelValues(op, outcome).Inc()
	m.UpstreamRequestDuration.WithLabelValues(op).Observe(duration.Seconds())
}
