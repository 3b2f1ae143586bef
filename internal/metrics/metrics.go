// Package metrics provides Prometheus metrics for the rewrite helper.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Line outcome label values.
const (
	OutcomeRewritten   = "rewritten"
	OutcomePassThrough = "passthrough"
)

// Stream label values for write errors.
const (
	StreamOutput      = "stdout"
	StreamDiagnostics = "stderr"
)

// Line handling is sub-millisecond; admin requests use the wider buckets.
var (
	lineBuckets    = []float64{.00001, .000025, .00005, .0001, .00025, .0005, .001, .0025, .005, .01}
	defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
)

// Metrics holds all Prometheus metric collectors for the helper.
type Metrics struct {
	Registry *prometheus.Registry

	LinesTotal   *prometheus.CounterVec
	LineDuration prometheus.Histogram
	WriteErrors  *prometheus.CounterVec

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	scrapePath string
}

// New creates a Metrics instance with a custom registry and all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry:   reg,
		scrapePath: "/metrics",

		LinesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "squid_rewriter_lines_total",
			Help: "Total request lines answered, by outcome.",
		}, []string{"outcome"}),

		LineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "squid_rewriter_line_duration_seconds",
			Help:    "Time from reading a request line to flushing its response.",
			Buckets: lineBuckets,
		}),

		WriteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "squid_rewriter_write_errors_total",
			Help: "Failed writes to the response or diagnostic stream.",
		}, []string{"stream"}),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "squid_rewriter_admin_requests_total",
			Help: "Total admin HTTP requests.",
		}, []string{"method", "status_code", "path_prefix"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "squid_rewriter_admin_request_duration_seconds",
			Help:    "Admin HTTP request latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method", "status_code", "path_prefix"}),

		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "squid_rewriter_admin_requests_in_flight",
			Help: "Number of admin HTTP requests currently being processed.",
		}),
	}

	reg.MustRegister(
		m.LinesTotal,
		m.LineDuration,
		m.WriteErrors,
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
	)

	return m
}

// knownMethods lists the allowed HTTP method label values (bounded cardinality).
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// NormalizeMethod returns a bounded HTTP method label for Prometheus metrics.
// Non-standard methods are mapped to "other" to prevent cardinality explosion.
func NormalizeMethod(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}

// routePrefixes lists the fixed admin routes used as path labels.
var routePrefixes = []string{"/healthz", "/helper/status"}

// SetScrapePath records where the metrics handler is mounted so that scrapes
// get their own path label. Call it before serving.
func (m *Metrics) SetScrapePath(path string) {
	m.scrapePath = path
}

// NormalizePath returns a bounded path label for Prometheus metrics.
func (m *Metrics) NormalizePath(path string) string {
	for _, prefix := range routePrefixes {
		if matchPrefix(path, prefix) {
			return prefix
		}
	}
	if matchPrefix(path, m.scrapePath) {
		return m.scrapePath
	}
	return "other"
}

func matchPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
