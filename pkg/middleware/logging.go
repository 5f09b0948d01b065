package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/raporhub/raporhub/pkg/contextkeys"
	"github.com/raporhub/raporhub/pkg/observability"
)

// LoggingMiddleware logs every request with its status and duration and
// feeds the HTTP metrics
type LoggingMiddleware struct {
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewLoggingMiddleware creates a logging middleware. metrics may be nil.
func NewLoggingMiddleware(logger *observability.Logger, metrics *observability.Metrics) *LoggingMiddleware {
	return &LoggingMiddleware{logger: logger, metrics: metrics}
}

// Handler wraps an HTTP handler with request logging
func (m *LoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		path := routePattern(r)
		if m.metrics != nil {
			m.metrics.ObserveHTTPRequest(r.Method, path, sw.status, duration)
		}

		m.logger.WithFields(map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      sw.status,
			"duration_ms": duration.Milliseconds(),
			"request_id":  contextkeys.RequestIDFrom(r.Context()),
		}).Info("Handled request")
	})
}

// routePattern returns the mux route template so metric labels stay bounded
// regardless of path parameter values
func routePattern(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
