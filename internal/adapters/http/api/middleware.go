// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/plank/pkg/metrics"
)

// MetricsMiddleware wraps a handler to record request counts, latencies, and
// error series for one endpoint label.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		durationMs := float64(time.Since(start).Milliseconds())
		status := strconv.Itoa(sw.status)

		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, durationMs)

		if sw.status < http.StatusBadRequest {
			return
		}
		kind, severity := classifyStatus(sw.status)
		metrics.RecordErrorByEndpoint(endpoint, r.Method, kind)
		metrics.RecordErrorByType(kind, severity)
		metrics.RecordErrorLatency("http", kind, durationMs)
	}
}

// classifyStatus maps an error status to the label pair used by the error
// series. 429 is always frame backpressure in this service: the only handler
// that returns it is POST /frames when the queue is full.
func classifyStatus(status int) (kind, severity string) {
	switch {
	case status >= http.StatusInternalServerError:
		return "server_error", "high"
	case status == http.StatusTooManyRequests:
		return "backpressure", "medium"
	case status == http.StatusNotFound:
		return "not_found", "medium"
	default:
		return "client_error", "medium"
	}
}

// statusWriter captures the status code written by the wrapped handler.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	n, err := sw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("failed to write response: %w", err)
	}
	return n, nil
}
