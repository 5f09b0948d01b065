// Package middleware provides the HTTP middleware chain of the API server:
// caller identity extraction, request IDs, request logging with metrics, and
// panic recovery.
package middleware

import (
	"net/http"
	"strconv"

	"github.com/raporhub/raporhub/pkg/contextkeys"
	"github.com/raporhub/raporhub/pkg/httputil"
	"github.com/raporhub/raporhub/pkg/identity"
)

// Identity header names set by the authenticating reverse proxy
const (
	HeaderUserID = "X-User-ID"
	HeaderRole   = "X-User-Role"
	HeaderTenant = "X-Tenant-ID"
)

// IdentityMiddleware extracts the caller identity from the trusted headers
// the edge proxy sets after authentication. Requests without a complete,
// valid identity are rejected with 401 before any handler runs.
type IdentityMiddleware struct{}

// NewIdentityMiddleware creates an identity middleware
func NewIdentityMiddleware() *IdentityMiddleware {
	return &IdentityMiddleware{}
}

// Handler wraps an HTTP handler with identity extraction
func (m *IdentityMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := identityFromHeaders(r)
		if err != nil {
			httputil.WriteUnauthorized(w, err.Error())
			return
		}

		ctx := contextkeys.WithIdentity(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFromHeaders(r *http.Request) (identity.Identity, error) {
	userID, err := headerInt64(r, HeaderUserID)
	if err != nil {
		return identity.Identity{}, err
	}
	tenantID, err := headerInt64(r, HeaderTenant)
	if err != nil {
		return identity.Identity{}, err
	}
	role, err := identity.ParseRole(r.Header.Get(HeaderRole))
	if err != nil {
		return identity.Identity{}, err
	}

	id := identity.Identity{UserID: userID, TenantID: tenantID, Role: role}
	if err := id.Validate(); err != nil {
		return identity.Identity{}, err
	}
	return id, nil
}

func headerInt64(r *http.Request, name string) (int64, error) {
	raw := r.Header.Get(name)
	if raw == "" {
		return 0, &headerError{name: name, reason: "missing"}
	}
	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &headerError{name: name, reason: "not an integer"}
	}
	return val, nil
}

type headerError struct {
	name   string
	reason string
}

func (e *headerError) Error() string {
	return "header " + e.name + ": " + e.reason
}
