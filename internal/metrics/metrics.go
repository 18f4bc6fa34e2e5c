// Package metrics registers the Prometheus collectors for builds, upstream
// calls and the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	buildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plasmiddb_builds_total",
			Help: "Catalog builds by outcome.",
		},
		[]string{"outcome"},
	)

	buildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "plasmiddb_build_duration_seconds",
		Help:    "Duration of catalog builds from fetch to snapshot.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	plasmidsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "plasmiddb_plasmids",
		Help: "Plasmids in the current catalog view.",
	})

	flaggedGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "plasmiddb_flagged_plasmids",
			Help: "Distinct plasmids with at least one violation, by severity.",
		},
		[]string{"severity"},
	)

	upstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plasmiddb_upstream_requests_total",
			Help: "Requests made to the inventory service.",
		},
		[]string{"endpoint", "status"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plasmiddb_http_requests_total",
			Help: "HTTP requests served.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "plasmiddb_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// ObserveBuild records a successful build.
func ObserveBuild(d time.Duration, plasmids, errorRecords, warningRecords int) {
	buildsTotal.WithLabelValues("ok").Inc()
	buildDuration.Observe(d.Seconds())
	plasmidsGauge.Set(float64(plasmids))
	flaggedGauge.WithLabelValues("error").Set(float64(errorRecords))
	flaggedGauge.WithLabelValues("warning").Set(float64(warningRecords))
}

// ObserveBuildFailure records a build that did not publish a view.
func ObserveBuildFailure() {
	buildsTotal.WithLabelValues("failed").Inc()
}

// ObserveUpstream records one request to the inventory service.
func ObserveUpstream(endpoint string, status int) {
	upstreamRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
}

// Middleware records request counts and latency labelled by chi route
// pattern, which keeps slugs out of the label set.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the original writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Flush forwards to the wrapped writer so streaming handlers keep working.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
