package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/okian/scoutnotes/pkg/metrics"
)

// HTTP status code constants.
const (
	statusBadRequest    = 400
	statusUnauthorized  = 401
	statusNotFound      = 404
	statusConflict      = 409
	statusInternalError = 500
)

// MetricsMiddleware records request count, latency and error class for the
// named endpoint.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			// handler wrote nothing; net/http answers 200
			status = http.StatusOK
		}
		code := strconv.Itoa(status)
		metrics.RecordHTTPRequest(endpoint, r.Method, code)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, code, float64(time.Since(start).Milliseconds()))
		if status >= statusBadRequest {
			metrics.RecordHTTPError(endpoint, r.Method, errorClass(status), errorSeverity(status))
		}
	}
}

// errorClass buckets an error status for the http errors counter.
func errorClass(status int) string {
	switch {
	case status >= statusInternalError:
		return "server_error"
	case status == statusConflict:
		return "conflict"
	case status == statusNotFound:
		return "not_found"
	case status == statusUnauthorized:
		return "unauthorized"
	case status >= statusBadRequest:
		return "client_error"
	}
	return "unknown"
}

func errorSeverity(status int) string {
	if status >= statusInternalError {
		return "high"
	}
	if status >= statusBadRequest {
		return "medium"
	}
	return "low"
}
