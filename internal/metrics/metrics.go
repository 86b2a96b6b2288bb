// Package metrics provides Prometheus metrics for the owlplug engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Unit-of-work metrics
	tasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "owlplug_tasks_total",
			Help: "Total number of finished units of work",
		},
		[]string{"kind", "status"},
	)

	taskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "owlplug_task_duration_seconds",
			Help:    "Unit of work duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 4, 8),
		},
		[]string{"kind"},
	)

	// Install metrics
	downloadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "owlplug_download_bytes_total",
			Help: "Total bytes downloaded for package installs",
		},
	)

	installsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "owlplug_installs_total",
			Help: "Total successful installs by archive layout",
		},
		[]string{"layout"},
	)

	// Sync metrics
	fileStatsWrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "owlplug_file_stats_written_total",
			Help: "Total file stat entries persisted by directory syncs",
		},
	)

	// Explore metrics
	projectsExploredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "owlplug_projects_explored_total",
			Help: "Total project files explored",
		},
		[]string{"status"},
	)

	pluginReferencesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "owlplug_plugin_references_total",
			Help: "Total plugin references collected from project files",
		},
	)

	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "owlplug_http_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"method", "path", "status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordTask records a finished unit of work.
func RecordTask(kind, status string, duration time.Duration) {
	tasksTotal.WithLabelValues(kind, status).Inc()
	taskDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// AddDownloadBytes adds n downloaded bytes.
func AddDownloadBytes(n int64) {
	downloadBytesTotal.Add(float64(n))
}

// RecordInstall records a successful install of the given archive layout.
func RecordInstall(layout string) {
	installsTotal.WithLabelValues(layout).Inc()
}

// IncFileStatsWritten counts one persisted file stat entry.
func IncFileStatsWritten() {
	fileStatsWrittenTotal.Inc()
}

// RecordProjectExplored records an explored project and the plugin references it yielded.
func RecordProjectExplored(success bool, plugins int) {
	status := "success"
	if !success {
		status = "error"
	}
	projectsExploredTotal.WithLabelValues(status).Inc()
	pluginReferencesTotal.Add(float64(plugins))
}

// RecordHTTPRequest records an HTTP API request.
func RecordHTTPRequest(method, path string, status int) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records request metrics. Requests
// are labelled with the matched route pattern, not the raw path.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		RecordHTTPRequest(r.Method, route, rw.statusCode)
	})
}
