// Package access decides, per user, which reports are visible.
//
// Role policy, first match wins:
//  1. admin: every report in the tenant catalog, grant store never queried
//  2. super_admin: no reports, a hard denial
//  3. user: a report is visible iff it was explicitly granted
//
// When the grant store cannot be reached for a regular user the resolver
// enters degraded mode: exactly the first report in catalog order stays
// visible. Deny-all would lock every user out on a transient outage and
// allow-all would be a privilege escalation; both were rejected in favor of
// the bounded default.
package access

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/raporhub/raporhub/pkg/catalog"
	"github.com/raporhub/raporhub/pkg/identity"
	"github.com/raporhub/raporhub/pkg/observability"
)

// GrantSource fetches a user's explicitly granted report ids
type GrantSource interface {
	GetGrants(ctx context.Context, userID int64) ([]int64, error)
}

// Resolution is the outcome of resolving a user's report access
type Resolution struct {
	Reports []catalog.ReportWithAccess `json:"reports"`
	// Degraded is set when the grant store was unreachable and the
	// first-report default was applied
	Degraded bool `json:"degraded"`
}

// Resolver combines the tenant catalog, the caller's role and the grant set
// into per-report access decisions
type Resolver struct {
	catalog *catalog.Resolver
	grants  GrantSource
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewResolver creates an access resolver. metrics may be nil.
func NewResolver(cat *catalog.Resolver, grants GrantSource, logger *observability.Logger, metrics *observability.Metrics) *Resolver {
	return &Resolver{
		catalog: cat,
		grants:  grants,
		logger:  logger,
		metrics: metrics,
	}
}

// ListReportsWithAccess resolves the caller's visible reports.
//
// A catalog fetch failure is returned to the caller: "catalog unknown" and
// "catalog empty" need different UI treatment and must not be conflated. A
// grant fetch failure never fails the call; it flips the resolution into
// degraded mode instead.
func (r *Resolver) ListReportsWithAccess(ctx context.Context, id identity.Identity) (Resolution, error) {
	if err := id.Validate(); err != nil {
		return Resolution{}, err
	}

	// Admins and super admins do not need the grant set at all: admins see
	// everything by role, super admins see nothing by role.
	if id.Role != identity.RoleUser {
		reports, err := r.catalog.ListReports(ctx, id.TenantID)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Reports: r.withRoleAccess(reports, id.Role == identity.RoleAdmin)}, nil
	}

	// Catalog and grants are independent reads; fetch them concurrently.
	var (
		reports  []catalog.Report
		grants   []int64
		grantErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		reports, err = r.catalog.ListReports(gctx, id.TenantID)
		return err
	})
	g.Go(func() error {
		// a grant failure must not cancel the catalog fetch
		grants, grantErr = r.grants.GetGrants(gctx, id.UserID)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Resolution{}, err
	}

	if grantErr != nil {
		r.logger.WithError(grantErr).
			WithField("user_id", id.UserID).
			Warn("Grant store unreachable, resolving in degraded mode")
		if r.metrics != nil {
			r.metrics.DegradedResolutionsTotal.Inc()
		}
		return Resolution{Reports: r.withDegradedAccess(reports), Degraded: true}, nil
	}

	return Resolution{Reports: r.withGrantedAccess(id, reports, grants)}, nil
}

func (r *Resolver) withRoleAccess(reports []catalog.Report, hasAccess bool) []catalog.ReportWithAccess {
	out := make([]catalog.ReportWithAccess, 0, len(reports))
	for _, rep := range reports {
		out = append(out, r.enrich(rep, hasAccess))
	}
	return out
}

// withDegradedAccess grants only the first report in catalog order
func (r *Resolver) withDegradedAccess(reports []catalog.Report) []catalog.ReportWithAccess {
	out := make([]catalog.ReportWithAccess, 0, len(reports))
	for i, rep := range reports {
		out = append(out, r.enrich(rep, i == 0))
	}
	return out
}

// withGrantedAccess computes access from the explicit grant set. Grants are
// intersected with the tenant catalog: a granted id that is not in the
// caller's catalog never yields access.
func (r *Resolver) withGrantedAccess(id identity.Identity, reports []catalog.Report, grants []int64) []catalog.ReportWithAccess {
	inCatalog := make(map[int64]struct{}, len(reports))
	for _, rep := range reports {
		inCatalog[rep.ID] = struct{}{}
	}

	granted := make(map[int64]struct{}, len(grants))
	foreign := 0
	for _, gid := range grants {
		if _, ok := inCatalog[gid]; !ok {
			foreign++
			continue
		}
		granted[gid] = struct{}{}
	}
	if foreign > 0 {
		r.logger.WithFields(map[string]interface{}{
			"user_id": id.UserID,
			"count":   foreign,
		}).Warn("Ignoring granted report ids outside the tenant catalog")
		if r.metrics != nil {
			r.metrics.ForeignGrantsTotal.Add(float64(foreign))
		}
	}

	out := make([]catalog.ReportWithAccess, 0, len(reports))
	for _, rep := range reports {
		_, ok := granted[rep.ID]
		out = append(out, r.enrich(rep, ok))
	}
	return out
}

func (r *Resolver) enrich(rep catalog.Report, hasAccess bool) catalog.ReportWithAccess {
	c := r.catalog.Classify(rep)
	return catalog.ReportWithAccess{
		Report:    rep,
		Route:     c.Route,
		Icon:      c.Icon,
		Category:  c.Category,
		HasAccess: hasAccess,
	}
}

// GrantSnapshot returns the authoritative grant set for a user, filtered to
// the tenant catalog. Used to seed an editing session.
func (r *Resolver) GrantSnapshot(ctx context.Context, tenantID, userID int64) ([]int64, error) {
	reports, err := r.catalog.ListReports(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	grants, err := r.grants.GetGrants(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("grant snapshot for user %d: %w", userID, err)
	}

	inCatalog := make(map[int64]struct{}, len(reports))
	for _, rep := range reports {
		inCatalog[rep.ID] = struct{}{}
	}
	out := make([]int64, 0, len(grants))
	for _, gid := range grants {
		if _, ok := inCatalog[gid]; ok {
			out = append(out, gid)
		}
	}
	return out, nil
}
