package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/raporhub/raporhub/pkg/httputil"
	"github.com/raporhub/raporhub/pkg/observability"
)

// Recovery turns handler panics into 500 responses instead of killing the
// connection
func Recovery(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.WithField("panic", rec).
						WithField("stack", string(debug.Stack())).
						WithField("path", r.URL.Path).
						Error("PANIC recovered in handler")
					httputil.WriteInternalError(w, errors.New("internal server error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
