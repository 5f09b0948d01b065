// Package engine is the façade the dashboard UI and admin screens call.
// It composes the access resolver, the permission reconciler, the audit
// trail and the preference store behind the operations the product needs.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/raporhub/raporhub/pkg/access"
	"github.com/raporhub/raporhub/pkg/audit"
	"github.com/raporhub/raporhub/pkg/identity"
	"github.com/raporhub/raporhub/pkg/observability"
	"github.com/raporhub/raporhub/pkg/prefs"
	"github.com/raporhub/raporhub/pkg/reconcile"
)

// ErrForbidden marks an operation the caller's role does not permit
var ErrForbidden = errors.New("forbidden")

// GrantStore is the full grant surface of the reporting authority
type GrantStore interface {
	GetGrants(ctx context.Context, userID int64) ([]int64, error)
	AddGrants(ctx context.Context, userID int64, reportIDs []int64) error
	RemoveGrants(ctx context.Context, userID int64, reportIDs []int64) error
}

// Engine exposes the permission operations of the reporting dashboard
type Engine struct {
	access  *access.Resolver
	grants  GrantStore
	applier *reconcile.Applier
	prefs   *prefs.Store
	audit   audit.Log
	logger  *observability.Logger
}

// New creates an engine. auditLog may be nil, which disables auditing.
func New(accessResolver *access.Resolver, grants GrantStore, applier *reconcile.Applier, prefStore *prefs.Store, auditLog audit.Log, logger *observability.Logger) *Engine {
	if auditLog == nil {
		auditLog = audit.Nop{}
	}
	return &Engine{
		access:  accessResolver,
		grants:  grants,
		applier: applier,
		prefs:   prefStore,
		audit:   auditLog,
		logger:  logger,
	}
}

// ListReportsWithAccess resolves the visible reports for the caller
func (e *Engine) ListReportsWithAccess(ctx context.Context, id identity.Identity) (access.Resolution, error) {
	return e.access.ListReportsWithAccess(ctx, id)
}

// Session is the starting snapshot of a permission editing session
type Session struct {
	UserID int64   `json:"user_id"`
	Grants []int64 `json:"grants"`
}

// BeginEditingSession loads the authoritative grant snapshot for a target
// user so the admin UI can render the editing screen
func (e *Engine) BeginEditingSession(ctx context.Context, actor identity.Identity, targetUserID int64) (Session, error) {
	if err := e.authorize(actor); err != nil {
		return Session{}, err
	}
	grants, err := e.access.GrantSnapshot(ctx, actor.TenantID, targetUserID)
	if err != nil {
		return Session{}, err
	}
	return Session{UserID: targetUserID, Grants: grants}, nil
}

// ApplyResult reports what a reconcile-and-apply actually did
type ApplyResult struct {
	Added   []int64 `json:"added"`
	Removed []int64 `json:"removed"`
	// Grants is the authoritative grant set re-fetched after the apply;
	// null when the re-fetch itself failed
	Grants   []int64  `json:"grants"`
	Partial  bool     `json:"partial,omitempty"`
	Failures []string `json:"failures,omitempty"`
}

// ReconcileAndApply moves the target user's grants to the desired
// end-state. The desired map comes from an editing session: one entry per
// report the admin decided on, true to grant, false to revoke.
//
// The current grant set is re-fetched here rather than taken from the
// session, so a stale editing session cannot resurrect grants another admin
// already removed. After the apply the grants are fetched again — the
// locally mutated desired map is never trusted as the new source of truth.
func (e *Engine) ReconcileAndApply(ctx context.Context, actor identity.Identity, targetUserID int64, desired map[int64]bool) (ApplyResult, error) {
	if err := e.authorize(actor); err != nil {
		return ApplyResult{}, err
	}

	current, err := e.grants.GetGrants(ctx, targetUserID)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("cannot reconcile without the current grant set: %w", err)
	}

	ch := reconcile.Diff(current, desired)
	applyErr := e.applier.Apply(ctx, targetUserID, ch)

	e.recordAudit(ctx, audit.EventGrantApply, actor, targetUserID, ch, applyErr)

	result := e.buildResult(ctx, targetUserID, ch, applyErr)
	return result, applyErr
}

// RevokeAll removes every grant the target user has. This is the distinct
// remove-all signal, not a diff over the catalog.
func (e *Engine) RevokeAll(ctx context.Context, actor identity.Identity, targetUserID int64) (ApplyResult, error) {
	if err := e.authorize(actor); err != nil {
		return ApplyResult{}, err
	}

	current, err := e.grants.GetGrants(ctx, targetUserID)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("cannot revoke without the current grant set: %w", err)
	}

	revokeErr := e.grants.RemoveGrants(ctx, targetUserID, nil)

	ch := reconcile.Changes{ToRemove: current}
	e.recordAudit(ctx, audit.EventGrantRevokeAll, actor, targetUserID, ch, revokeErr)

	result := e.buildResult(ctx, targetUserID, ch, revokeErr)
	return result, revokeErr
}

// AuditTrail returns recent permission events for a target user
func (e *Engine) AuditTrail(ctx context.Context, actor identity.Identity, targetUserID int64, limit int) ([]*audit.Event, error) {
	if err := e.authorize(actor); err != nil {
		return nil, err
	}
	return e.audit.Search(ctx, audit.SearchFilter{
		TargetUserID: &targetUserID,
		TenantID:     &actor.TenantID,
		Limit:        limit,
	})
}

// PinnedReports returns the caller's pinned report ids, best effort
func (e *Engine) PinnedReports(ctx context.Context, id identity.Identity) []string {
	return e.prefs.Get(ctx, id.UserID)
}

// SetPinnedReports stores the caller's pinned report ids, best effort
func (e *Engine) SetPinnedReports(ctx context.Context, id identity.Identity, ids []string) {
	e.prefs.Set(ctx, id.UserID, ids)
}

func (e *Engine) authorize(actor identity.Identity) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	if !actor.Role.CanManageGrants() {
		return fmt.Errorf("role %s cannot manage report permissions: %w", actor.Role, ErrForbidden)
	}
	return nil
}

func (e *Engine) buildResult(ctx context.Context, targetUserID int64, ch reconcile.Changes, applyErr error) ApplyResult {
	result := ApplyResult{Added: ch.ToAdd, Removed: ch.ToRemove}

	var partial *reconcile.PartialError
	switch {
	case applyErr == nil:
	case errors.As(applyErr, &partial):
		result.Partial = true
		result.Added, result.Removed = partial.Applied()
		failedAdd, failedRemove := partial.Failed()
		if len(failedAdd) > 0 {
			result.Failures = append(result.Failures, fmt.Sprintf("add of %v failed: %v", failedAdd, partial.AddErr))
		}
		if len(failedRemove) > 0 {
			result.Failures = append(result.Failures, fmt.Sprintf("remove of %v failed: %v", failedRemove, partial.RemoveErr))
		}
	default:
		result.Added = nil
		result.Removed = nil
		result.Failures = append(result.Failures, applyErr.Error())
	}

	// success, partial or failure: only the authority knows the real state now
	refreshed, err := e.grants.GetGrants(ctx, targetUserID)
	if err != nil {
		e.logger.WithError(err).Warnf("Grant re-fetch after apply failed for user %d", targetUserID)
		result.Failures = append(result.Failures, fmt.Sprintf("grant re-fetch failed: %v", err))
		return result
	}
	result.Grants = refreshed
	return result
}

func (e *Engine) recordAudit(ctx context.Context, eventType audit.EventType, actor identity.Identity, targetUserID int64, ch reconcile.Changes, applyErr error) {
	status := audit.StatusSuccess
	detail := ""
	var partial *reconcile.PartialError
	switch {
	case applyErr == nil:
	case errors.As(applyErr, &partial):
		status = audit.StatusPartial
		detail = applyErr.Error()
	default:
		status = audit.StatusFailure
		detail = applyErr.Error()
	}

	event := &audit.Event{
		Type:         eventType,
		Status:       status,
		ActorID:      actor.UserID,
		TargetUserID: targetUserID,
		TenantID:     actor.TenantID,
		Added:        ch.ToAdd,
		Removed:      ch.ToRemove,
		Detail:       detail,
	}
	if err := e.audit.Record(ctx, event); err != nil {
		// auditing must not break a permission edit
		e.logger.WithError(err).Error("Failed to record audit event")
	}
}
