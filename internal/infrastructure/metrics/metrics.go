// Package metrics exposes the Prometheus collectors of the API.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "smartbudget"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	// Every response is HTTP 200, so outcomes are counted per action.
	actions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "actions_total",
			Help:      "Total number of dispatched actions by outcome.",
		},
		[]string{"action", "success"},
	)

	otpIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_issued_total",
			Help:      "One-time codes delivered by email.",
		},
	)

	sessionsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Sessions minted after a verified code.",
		},
	)

	sweptRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "swept_rows_total",
			Help:      "Expired rows removed by the sweep job.",
		},
		[]string{"collection"},
	)

	jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Scheduled job runs.",
		},
		[]string{"job", "success"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "run_duration_seconds",
			Help:      "Duration of scheduled job runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"job"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		actions,
		otpIssued,
		sessionsCreated,
		sweptRows,
		jobRuns,
		jobDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordAction counts one dispatched action. Unknown actions share a label.
func RecordAction(action string, success bool) {
	if action == "" {
		action = "none"
	}
	actions.WithLabelValues(action, strconv.FormatBool(success)).Inc()
}

// RecordOTPIssued counts a code that reached the mail server. It is the
// issuance count; verified logins are counted by RecordSessionCreated.
func RecordOTPIssued() { otpIssued.Inc() }

func RecordSessionCreated() { sessionsCreated.Inc() }

func RecordSwept(collection string, n int) {
	sweptRows.WithLabelValues(collection).Add(float64(n))
}

// RecordJobRun records metrics for one scheduled job run.
func RecordJobRun(job string, duration time.Duration, success bool) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	jobRuns.WithLabelValues(job, strconv.FormatBool(success)).Inc()
	jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// canonicalPath keeps the first path segment so label cardinality stays low.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	return "/" + strings.SplitN(trimmed, "/", 2)[0]
}
