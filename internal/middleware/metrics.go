package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/estatehub/marketplace/internal/app/metrics"
	"github.com/estatehub/marketplace/pkg/logger"
)

// MetricsMiddleware records HTTP metrics for each request, labelled by the
// mux route template.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		done := metrics.TrackInFlight()
		defer done()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		path := "unmatched"
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}
		metrics.RecordHTTPRequest(r.Method, path, wrapped.statusCode, time.Since(start))
	})
}

// LoggingMiddleware logs each request with its trace id.
func LoggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			entry := log.WithField("method", r.Method).
				WithField("path", r.URL.Path).
				WithField("status", wrapped.statusCode).
				WithField("duration_ms", time.Since(start).Milliseconds()).
				WithField("trace_id", TraceID(r.Context()))
			if claims, ok := ClaimsFrom(r.Context()); ok {
				entry = entry.WithField("user_id", claims.UserID)
			}
			if wrapped.statusCode >= http.StatusInternalServerError {
				entry.Error("request failed")
				return
			}
			entry.Info("request")
		})
	}
}

// responseWriter captures the status code. It forwards Hijack so websocket
// upgrades work through the chain.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.written = true
	rw.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
