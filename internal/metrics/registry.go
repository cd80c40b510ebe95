// Package metrics holds the Prometheus instruments of one ipgate server
// instance. Each Registry owns its own prometheus.Registry so that several
// servers (and tests) never share counters.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ipgate"

// Registry holds the server instruments.
type Registry struct {
	reg *prometheus.Registry

	RequestsTotal     *prometheus.CounterVec
	ConnectionsActive prometheus.Gauge
	MalformedRequests prometheus.Counter
	HandlerPanics     prometheus.Counter
	MutationsTotal    *prometheus.CounterVec
	FetchDuration     *prometheus.HistogramVec
	FetchErrors       *prometheus.CounterVec
}

// New creates a Registry with all instruments registered, plus the Go
// runtime and process collectors.
func New() *Registry {
	r := &Registry{reg: prometheus.NewRegistry()}

	r.RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "Requests handled, by method and status code.",
	}, []string{"method", "code"})

	r.ConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connections_active",
		Help:      "Connections currently being handled.",
	})

	r.MalformedRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "malformed_requests_total",
		Help:      "Requests whose request line could not be parsed.",
	})

	r.HandlerPanics = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "handler_panics_total",
		Help:      "Connections whose handling panicked.",
	})

	r.MutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mutations_total",
		Help:      "Open/close mutations, by IP version, operation and mode.",
	}, []string{"ip_version", "operation", "mode"})

	r.FetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "rule_fetch_duration_seconds",
		Help:      "Duration of live rule fetches.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"ip_version"})

	r.FetchErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rule_fetch_errors_total",
		Help:      "Failed live rule fetches.",
	}, []string{"ip_version"})

	r.reg.MustRegister(
		r.RequestsTotal,
		r.ConnectionsActive,
		r.MalformedRequests,
		r.HandlerPanics,
		r.MutationsTotal,
		r.FetchDuration,
		r.FetchErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler returns an HTTP handler serving the registry in the Prometheus
// exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// ObserveRequest counts one handled request.
func (r *Registry) ObserveRequest(method string, code int) {
	r.RequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

// ObserveFetch records a live rule fetch.
func (r *Registry) ObserveFetch(version string, d time.Duration, err error) {
	r.FetchDuration.WithLabelValues(version).Observe(d.Seconds())
	if err != nil {
		r.FetchErrors.WithLabelValues(version).Inc()
	}
}

// ObserveMutation counts an open/close mutation.
func (r *Registry) ObserveMutation(version, operation string, dryRun bool) {
	mode := "applied"
	if dryRun {
		mode = "dry_run"
	}
	r.MutationsTotal.WithLabelValues(version, operation, mode).Inc()
}
