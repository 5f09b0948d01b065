package catalog

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/raporhub/raporhub/pkg/observability"
)

// Source fetches a tenant's provisioned reports from the reporting authority
type Source interface {
	GetCatalog(ctx context.Context, tenantID int64) ([]Report, error)
}

type cacheEntry struct {
	reports   []Report
	fetchedAt time.Time
}

// Resolver retrieves tenant catalogs with an LRU+TTL cache in front of the
// authority. A fetch error is "catalog unknown", never "catalog empty":
// errors are returned as-is and nothing is cached for them.
type Resolver struct {
	src     Source
	rules   *Rules
	cache   *lru.Cache[int64, cacheEntry]
	ttl     time.Duration
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewResolver creates a catalog resolver. metrics may be nil.
func NewResolver(src Source, rules *Rules, cacheSize int, ttl time.Duration, logger *observability.Logger, metrics *observability.Metrics) (*Resolver, error) {
	if cacheSize <= 0 {
		cacheSize = 128
	}
	cache, err := lru.New[int64, cacheEntry](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog cache: %w", err)
	}
	return &Resolver{
		src:     src,
		rules:   rules,
		cache:   cache,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// ListReports returns the tenant's full report catalog in provisioning order
func (r *Resolver) ListReports(ctx context.Context, tenantID int64) ([]Report, error) {
	if entry, ok := r.cache.Get(tenantID); ok && time.Since(entry.fetchedAt) < r.ttl {
		if r.metrics != nil {
			r.metrics.CatalogCacheHitsTotal.Inc()
		}
		return entry.reports, nil
	}
	if r.metrics != nil {
		r.metrics.CatalogCacheMissesTotal.Inc()
	}
	return r.Refresh(ctx, tenantID)
}

// Refresh fetches the catalog from the authority, bypassing the cache, and
// stores the result on success
func (r *Resolver) Refresh(ctx context.Context, tenantID int64) ([]Report, error) {
	reports, err := r.src.GetCatalog(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("catalog fetch for tenant %d: %w", tenantID, err)
	}
	r.cache.Add(tenantID, cacheEntry{reports: reports, fetchedAt: time.Now()})
	return reports, nil
}

// Classify derives display metadata for a report
func (r *Resolver) Classify(report Report) Classification {
	return r.rules.Classify(report)
}

// Invalidate drops a tenant's cached catalog
func (r *Resolver) Invalidate(tenantID int64) {
	r.cache.Remove(tenantID)
}

// CachedTenants lists tenant ids currently held in the cache, used by the
// scheduled re-warm job
func (r *Resolver) CachedTenants() []int64 {
	return r.cache.Keys()
}

// RewarmCached refreshes every cached tenant catalog. Failures are logged
// and skipped; the stale entry stays until its TTL expires.
func (r *Resolver) RewarmCached(ctx context.Context) {
	for _, tenantID := range r.cache.Keys() {
		if _, err := r.Refresh(ctx, tenantID); err != nil {
			r.logger.WithError(err).Warnf("Catalog re-warm failed for tenant %d", tenantID)
		}
	}
}
