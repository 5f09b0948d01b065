package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/raporhub/raporhub/pkg/contextkeys"
	"github.com/raporhub/raporhub/pkg/engine"
	"github.com/raporhub/raporhub/pkg/httputil"
	"github.com/raporhub/raporhub/pkg/identity"
	"github.com/raporhub/raporhub/pkg/reconcile"
	"github.com/raporhub/raporhub/pkg/upstream"
)

func callerIdentity(w http.ResponseWriter, r *http.Request) (identity.Identity, bool) {
	id, ok := contextkeys.IdentityFrom(r.Context())
	if !ok {
		// identity middleware guards every route that reaches here
		httputil.WriteUnauthorized(w, "missing identity")
		return identity.Identity{}, false
	}
	return id, true
}

// listReports returns the caller's reports with per-report access flags
func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIdentity(w, r)
	if !ok {
		return
	}

	res, err := s.engine.ListReportsWithAccess(r.Context(), id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	httputil.WriteSuccess(w, res)
}

// getPermissions returns the grant snapshot that seeds an editing session
func (s *Server) getPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	targetUserID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	sess, err := s.engine.BeginEditingSession(r.Context(), id, targetUserID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	httputil.WriteSuccess(w, sess)
}

// putPermissions applies a desired end-state of grants for the target user.
// The body is one entry per decided report: {"12": true, "13": false}.
func (s *Server) putPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	targetUserID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	var body map[string]bool
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}
	desired, err := parseDesiredState(body)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	result, err := s.engine.ReconcileAndApply(r.Context(), id, targetUserID, desired)
	s.writeApplyOutcome(w, result, err)
}

// revokePermissions removes every grant the target user has
func (s *Server) revokePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	targetUserID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	result, err := s.engine.RevokeAll(r.Context(), id, targetUserID)
	s.writeApplyOutcome(w, result, err)
}

// getAuditTrail returns recent permission events for the target user
func (s *Server) getAuditTrail(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	targetUserID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}
	limit, err := httputil.ParseQueryInt(r, "limit", 50)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	events, err := s.engine.AuditTrail(r.Context(), id, targetUserID, limit)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"events": events})
}

type pinnedBody struct {
	Pinned []string `json:"pinned"`
}

// getPinned returns the caller's pinned reports, best effort
func (s *Server) getPinned(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, pinnedBody{Pinned: s.engine.PinnedReports(r.Context(), id)})
}

// putPinned stores the caller's pinned reports
func (s *Server) putPinned(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIdentity(w, r)
	if !ok {
		return
	}

	var body pinnedBody
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}
	if len(body.Pinned) > MaxPinnedReports {
		httputil.WriteBadRequest(w, fmt.Sprintf("at most %d reports can be pinned", MaxPinnedReports))
		return
	}

	s.engine.SetPinnedReports(r.Context(), id, body.Pinned)
	httputil.WriteNoContent(w)
}

func parseDesiredState(body map[string]bool) (map[int64]bool, error) {
	desired := make(map[int64]bool, len(body))
	for key, granted := range body {
		reportID, err := strconv.ParseInt(key, 10, 64)
		if err != nil || reportID <= 0 {
			return nil, fmt.Errorf("invalid report id %q", key)
		}
		desired[reportID] = granted
	}
	return desired, nil
}

// writeApplyOutcome maps a reconcile outcome to a response. A partial or
// failed apply returns 502 with the apply result so the caller sees exactly
// which ids landed.
func (s *Server) writeApplyOutcome(w http.ResponseWriter, result engine.ApplyResult, err error) {
	switch {
	case err == nil:
		httputil.WriteSuccess(w, result)
	case errors.Is(err, engine.ErrForbidden):
		httputil.WriteForbidden(w, err.Error())
	case len(result.Failures) > 0:
		httputil.WriteBadGateway(w, result)
	default:
		s.writeEngineError(w, err)
	}
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	var partial *reconcile.PartialError
	switch {
	case errors.Is(err, engine.ErrForbidden):
		httputil.WriteForbidden(w, err.Error())
	case errors.Is(err, upstream.ErrInvalidInput):
		httputil.WriteBadRequest(w, err.Error())
	case errors.Is(err, upstream.ErrUnavailable), errors.Is(err, upstream.ErrRejected),
		errors.Is(err, upstream.ErrMalformed), errors.As(err, &partial):
		httputil.WriteErrorMessage(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.WithError(err).Error("Unhandled engine error")
		httputil.WriteInternalError(w, err)
	}
}
