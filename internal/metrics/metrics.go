package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passbot_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "passbot_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	passesEmittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "passbot_passes_emitted_total",
			Help: "Passes produced by the extractor.",
		},
	)

	passesDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passbot_passes_dropped_total",
			Help: "Events or open passes discarded by the extractor, by reason.",
		},
		[]string{"reason"},
	)

	satellitesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passbot_satellites_total",
			Help: "Satellites processed by the tracker, by result.",
		},
		[]string{"result"},
	)

	calendarRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passbot_calendar_requests_total",
			Help: "Calendar API calls, by operation and result.",
		},
		[]string{"op", "result"},
	)

	tleFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passbot_tle_fetches_total",
			Help: "TLE downloads, by where the data came from and result.",
		},
		[]string{"origin", "result"},
	)

	predictionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "passbot_prediction_duration_seconds",
			Help:    "Time to search one satellite's window for passes.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(passesEmittedTotal)
	prometheus.MustRegister(passesDroppedTotal)
	prometheus.MustRegister(satellitesTotal)
	prometheus.MustRegister(calendarRequestsTotal)
	prometheus.MustRegister(tleFetchesTotal)
	prometheus.MustRegister(predictionDurationSeconds)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Drop reasons reported by RecordPassesDropped.
const (
	ReasonOrphaned       = "orphaned"
	ReasonMalformed      = "malformed"
	ReasonBelowThreshold = "below_threshold"
	ReasonElevationError = "elevation_error"
	ReasonTruncated      = "truncated"
)

// RecordPassesEmitted adds n extracted passes.
func RecordPassesEmitted(n int) {
	passesEmittedTotal.Add(float64(n))
}

// RecordPassesDropped adds n discards for reason. Zero counts are ignored.
func RecordPassesDropped(reason string, n int) {
	if n <= 0 {
		return
	}
	passesDroppedTotal.WithLabelValues(reason).Add(float64(n))
}

// RecordSatellite counts one tracked satellite.
func RecordSatellite(err error) {
	satellitesTotal.WithLabelValues(result(err)).Inc()
}

// RecordCalendarRequest counts one calendar call such as "insert" or "delete".
func RecordCalendarRequest(op string, err error) {
	calendarRequestsTotal.WithLabelValues(op, result(err)).Inc()
}

// RecordTLEFetch counts one TLE download. origin is "network" or "cache".
func RecordTLEFetch(origin string, err error) {
	tleFetchesTotal.WithLabelValues(origin, result(err)).Inc()
}

// ObservePrediction records how long a pass search took.
func ObservePrediction(d time.Duration) {
	predictionDurationSeconds.Observe(d.Seconds())
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

// knownRoutes are the exact paths served by the API.
var knownRoutes = map[string]bool{
	"/healthz":                  true,
	"/readyz":                   true,
	"/metrics":                  true,
	"/api/v1/passes":            true,
	"/api/v1/satellites/passes": true,
}

// normalizeRoute maps a request path to a bounded label so bot traffic
// cannot create unbounded series.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		path := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(path, r.Method).Observe(duration)
	})
}
