package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/raporhub/raporhub/pkg/contextkeys"
)

// HeaderRequestID carries the request ID to and from the caller
const HeaderRequestID = "X-Request-ID"

// RequestID assigns each request a UUID, honoring one the caller already
// set, and echoes it on the response
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(HeaderRequestID, requestID)

		ctx := contextkeys.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
