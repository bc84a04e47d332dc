package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cyp0633/taskcal/server/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskcal_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "resource", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskcal_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "resource"},
	)
)

// resourceLabel keeps the label set bounded: ids never become labels.
func resourceLabel(path string) string {
	if path == MetricsPath {
		return "metrics"
	}
	rp, err := storage.ParseResourcePath(path)
	if err != nil {
		return "unknown"
	}
	return rp.Type.String()
}

func observeRequest(method, resource string, status int, elapsed time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, resource, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, resource).Observe(elapsed.Seconds())
}

// statusRecorder remembers the status code written through it.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
