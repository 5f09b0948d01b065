// Package api exposes the permission engine over HTTP. Identity comes from
// trusted proxy headers; every /api/v1 route requires a complete identity.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/raporhub/raporhub/pkg/engine"
	"github.com/raporhub/raporhub/pkg/middleware"
	"github.com/raporhub/raporhub/pkg/observability"
)

// MaxPinnedReports is the most reports a user may pin at once
const MaxPinnedReports = 6

// Server is the HTTP API server
type Server struct {
	engine *engine.Engine
	router *mux.Router
	logger *observability.Logger
}

// NewServer creates an API server with all routes registered. metrics may
// be nil.
func NewServer(eng *engine.Engine, logger *observability.Logger, metrics *observability.Metrics) *Server {
	s := &Server{
		engine: eng,
		router: mux.NewRouter(),
		logger: logger,
	}
	s.setupRoutes(metrics)
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes(metrics *observability.Metrics) {
	s.router.Use(middleware.Recovery(s.logger))
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.NewLoggingMiddleware(s.logger, metrics).Handler)

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.Use(middleware.NewIdentityMiddleware().Handler)

	v1.HandleFunc("/reports", s.listReports).Methods("GET")

	v1.HandleFunc("/users/{user_id}/permissions", s.getPermissions).Methods("GET")
	v1.HandleFunc("/users/{user_id}/permissions", s.putPermissions).Methods("PUT")
	v1.HandleFunc("/users/{user_id}/permissions", s.revokePermissions).Methods("DELETE")

	v1.HandleFunc("/users/{user_id}/audit", s.getAuditTrail).Methods("GET")

	v1.HandleFunc("/preferences/pinned", s.getPinned).Methods("GET")
	v1.HandleFunc("/preferences/pinned", s.putPinned).Methods("PUT")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
