package engine

import (
	"context"
	"errors"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raporhub/raporhub/pkg/access"
	"github.com/raporhub/raporhub/pkg/audit"
	"github.com/raporhub/raporhub/pkg/catalog"
	"github.com/raporhub/raporhub/pkg/identity"
	"github.com/raporhub/raporhub/pkg/observability"
	"github.com/raporhub/raporhub/pkg/prefs"
	"github.com/raporhub/raporhub/pkg/reconcile"
)

// fakeGrantStore keeps a mutable grant set so post-apply re-fetches observe
// the effect of the mutations
type fakeGrantStore struct {
	grants    map[int64]bool
	getErr    error
	addErr    error
	removeErr error

	ops        []string
	lastRemove []int64
	removedNil bool
}

func newFakeGrantStore(ids ...int64) *fakeGrantStore {
	s := &fakeGrantStore{grants: make(map[int64]bool)}
	for _, id := range ids {
		s.grants[id] = true
	}
	return s
}

func (s *fakeGrantStore) GetGrants(ctx context.Context, userID int64) ([]int64, error) {
	s.ops = append(s.ops, "get")
	if s.getErr != nil {
		return nil, s.getErr
	}
	out := make([]int64, 0, len(s.grants))
	for id := range s.grants {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *fakeGrantStore) AddGrants(ctx context.Context, userID int64, reportIDs []int64) error {
	s.ops = append(s.ops, "add")
	if s.addErr != nil {
		return s.addErr
	}
	for _, id := range reportIDs {
		s.grants[id] = true
	}
	return nil
}

func (s *fakeGrantStore) RemoveGrants(ctx context.Context, userID int64, reportIDs []int64) error {
	s.ops = append(s.ops, "remove")
	s.lastRemove = reportIDs
	s.removedNil = reportIDs == nil
	if s.removeErr != nil {
		return s.removeErr
	}
	if reportIDs == nil {
		s.grants = make(map[int64]bool)
		return nil
	}
	for _, id := range reportIDs {
		delete(s.grants, id)
	}
	return nil
}

type memAudit struct {
	events []*audit.Event
}

func (m *memAudit) Record(ctx context.Context, event *audit.Event) error {
	m.events = append(m.events, event)
	return nil
}

func (m *memAudit) Search(ctx context.Context, filter audit.SearchFilter) ([]*audit.Event, error) {
	var out []*audit.Event
	for _, e := range m.events {
		if filter.TargetUserID != nil && e.TargetUserID != *filter.TargetUserID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

type fakeCatalogSource struct {
	reports []catalog.Report
}

func (f *fakeCatalogSource) GetCatalog(ctx context.Context, tenantID int64) ([]catalog.Report, error) {
	return f.reports, nil
}

type fakePrefsRemote struct {
	pinned map[int64][]string
	err    error
}

func (f *fakePrefsRemote) GetPreferences(ctx context.Context, userID int64) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pinned[userID], nil
}

func (f *fakePrefsRemote) SetPreferences(ctx context.Context, userID int64, ids []string) error {
	if f.err != nil {
		return f.err
	}
	if f.pinned == nil {
		f.pinned = make(map[int64][]string)
	}
	f.pinned[userID] = ids
	return nil
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

var admin = identity.Identity{UserID: 9, TenantID: 1, Role: identity.RoleAdmin}
var regular = identity.Identity{UserID: 10, TenantID: 1, Role: identity.RoleUser}

func newTestEngine(t *testing.T, store *fakeGrantStore, log *memAudit) *Engine {
	t.Helper()
	src := &fakeCatalogSource{reports: []catalog.Report{
		{ID: 1, Name: "Ciro"},
		{ID: 2, Name: "Bakiye"},
		{ID: 3, Name: "Stok"},
	}}
	cat, err := catalog.NewResolver(src, catalog.NewRules(), 8, time.Minute, testLogger(), nil)
	require.NoError(t, err)

	acc := access.NewResolver(cat, store, testLogger(), nil)
	applier := reconcile.NewApplier(store, testLogger(), nil)
	prefStore := prefs.NewStore(&fakePrefsRemote{}, nil, time.Minute, testLogger(), nil)
	return New(acc, store, applier, prefStore, log, testLogger())
}

func TestReconcileAndApplyMovesGrantsToDesiredState(t *testing.T) {
	store := newFakeGrantStore(2)
	log := &memAudit{}
	e := newTestEngine(t, store, log)

	result, err := e.ReconcileAndApply(context.Background(), admin, 42, map[int64]bool{1: true, 2: false, 3: true})
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 3}, result.Added)
	assert.Equal(t, []int64{2}, result.Removed)
	assert.Equal(t, []int64{1, 3}, result.Grants)
	assert.False(t, result.Partial)
	assert.Empty(t, result.Failures)

	// fetch current, remove before add, re-fetch the authoritative state
	assert.Equal(t, []string{"get", "remove", "add", "get"}, store.ops)

	require.Len(t, log.events, 1)
	assert.Equal(t, audit.EventGrantApply, log.events[0].Type)
	assert.Equal(t, audit.StatusSuccess, log.events[0].Status)
	assert.Equal(t, admin.UserID, log.events[0].ActorID)
	assert.Equal(t, int64(42), log.events[0].TargetUserID)
}

func TestReconcileAndApplyIsIdempotent(t *testing.T) {
	store := newFakeGrantStore(1, 3)
	e := newTestEngine(t, store, &memAudit{})
	desired := map[int64]bool{1: true, 2: false, 3: true}

	result, err := e.ReconcileAndApply(context.Background(), admin, 42, desired)
	require.NoError(t, err)
	assert.Empty(t, result.Added)
	assert.Empty(t, result.Removed)
	assert.Equal(t, []int64{1, 3}, result.Grants)

	// no add/remove calls when nothing changed
	assert.Equal(t, []string{"get", "get"}, store.ops)
}

func TestReconcileAndApplySurfacesPartialApply(t *testing.T) {
	store := newFakeGrantStore(2)
	store.addErr = errors.New("authority rejected the add")
	log := &memAudit{}
	e := newTestEngine(t, store, log)

	result, err := e.ReconcileAndApply(context.Background(), admin, 42, map[int64]bool{1: true, 2: false})

	var partial *reconcile.PartialError
	require.ErrorAs(t, err, &partial)
	assert.True(t, result.Partial)
	assert.Empty(t, result.Added)
	assert.Equal(t, []int64{2}, result.Removed)
	assert.Empty(t, result.Grants)
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0], "add of [1] failed")

	require.Len(t, log.events, 1)
	assert.Equal(t, audit.StatusPartial, log.events[0].Status)
}

func TestReconcileAndApplyRefusesWithoutCurrentGrants(t *testing.T) {
	store := newFakeGrantStore(2)
	store.getErr = errors.New("grant store down")
	e := newTestEngine(t, store, &memAudit{})

	_, err := e.ReconcileAndApply(context.Background(), admin, 42, map[int64]bool{1: true})
	require.Error(t, err)
	assert.Equal(t, []string{"get"}, store.ops)
}

func TestReconcileAndApplyForbiddenForRegularUser(t *testing.T) {
	store := newFakeGrantStore(2)
	e := newTestEngine(t, store, &memAudit{})

	_, err := e.ReconcileAndApply(context.Background(), regular, 42, map[int64]bool{1: true})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Empty(t, store.ops)
}

func TestRevokeAllSendsTheRemoveAllSignal(t *testing.T) {
	store := newFakeGrantStore(1, 2, 3)
	log := &memAudit{}
	e := newTestEngine(t, store, log)

	result, err := e.RevokeAll(context.Background(), admin, 42)
	require.NoError(t, err)

	assert.True(t, store.removedNil, "remove-all must be signalled with a nil id list")
	assert.Equal(t, []int64{1, 2, 3}, result.Removed)
	assert.Empty(t, result.Grants)

	require.Len(t, log.events, 1)
	assert.Equal(t, audit.EventGrantRevokeAll, log.events[0].Type)
	assert.Equal(t, audit.StatusSuccess, log.events[0].Status)
}

func TestBeginEditingSessionFiltersForeignGrants(t *testing.T) {
	// grant 99 belongs to no report in this tenant's catalog
	store := newFakeGrantStore(1, 99)
	e := newTestEngine(t, store, &memAudit{})

	sess, err := e.BeginEditingSession(context.Background(), admin, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), sess.UserID)
	assert.Equal(t, []int64{1}, sess.Grants)
}

func TestBeginEditingSessionForbiddenForRegularUser(t *testing.T) {
	e := newTestEngine(t, newFakeGrantStore(), &memAudit{})

	_, err := e.BeginEditingSession(context.Background(), regular, 42)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAuditTrailScopedToTargetUser(t *testing.T) {
	store := newFakeGrantStore(2)
	log := &memAudit{}
	e := newTestEngine(t, store, log)

	_, err := e.ReconcileAndApply(context.Background(), admin, 42, map[int64]bool{1: true})
	require.NoError(t, err)
	_, err = e.ReconcileAndApply(context.Background(), admin, 43, map[int64]bool{3: true})
	require.NoError(t, err)

	events, err := e.AuditTrail(context.Background(), admin, 42, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(42), events[0].TargetUserID)
}

func TestPinnedReportsRoundTrip(t *testing.T) {
	e := newTestEngine(t, newFakeGrantStore(), &memAudit{})

	e.SetPinnedReports(context.Background(), regular, []string{"ciro", "stok"})
	assert.Equal(t, []string{"ciro", "stok"}, e.PinnedReports(context.Background(), regular))
}
