package prefs

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"

	"github.com/raporhub/raporhub/pkg/observability"
)

type fakeRemote struct {
	ids    []string
	getErr error
	setErr error
	sets   int
}

func (f *fakeRemote) GetPreferences(ctx context.Context, userID int64) ([]string, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.ids, nil
}

func (f *fakeRemote) SetPreferences(ctx context.Context, userID int64, ids []string) error {
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	f.ids = ids
	return nil
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func newTestStore(t *testing.T, remote Remote) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(remote, client, 0, testLogger(), nil), mr
}

func TestGetPrefersRemote(t *testing.T) {
	remote := &fakeRemote{ids: []string{"3", "1"}}
	store, mr := newTestStore(t, remote)

	assert.Equal(t, []string{"3", "1"}, store.Get(context.Background(), 7))

	// the read warmed the fallback tier
	raw, err := mr.Get("prefs:pinned:7")
	assert.NoError(t, err)
	assert.JSONEq(t, `["3","1"]`, raw)
}

func TestGetFallsBackToLocal(t *testing.T) {
	remote := &fakeRemote{ids: []string{"5"}}
	store, _ := newTestStore(t, remote)

	// warm the local tier, then break the remote
	store.Set(context.Background(), 7, []string{"5"})
	remote.getErr = errors.New("authority down")

	assert.Equal(t, []string{"5"}, store.Get(context.Background(), 7))
}

func TestGetEmptyWhenBothTiersEmpty(t *testing.T) {
	remote := &fakeRemote{getErr: errors.New("authority down")}
	store, _ := newTestStore(t, remote)

	ids := store.Get(context.Background(), 7)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
}

func TestGetUnparseableLocalEntry(t *testing.T) {
	remote := &fakeRemote{getErr: errors.New("authority down")}
	store, mr := newTestStore(t, remote)

	mr.Set("prefs:pinned:7", "{not json")
	assert.Empty(t, store.Get(context.Background(), 7))

	// the bad entry was dropped
	assert.False(t, mr.Exists("prefs:pinned:7"))
}

func TestSetWritesBothTiers(t *testing.T) {
	remote := &fakeRemote{}
	store, mr := newTestStore(t, remote)

	store.Set(context.Background(), 7, []string{"2", "4"})

	assert.Equal(t, 1, remote.sets)
	assert.Equal(t, []string{"2", "4"}, remote.ids)
	raw, err := mr.Get("prefs:pinned:7")
	assert.NoError(t, err)
	assert.JSONEq(t, `["2","4"]`, raw)
}

func TestSetSurvivesRemoteFailure(t *testing.T) {
	remote := &fakeRemote{setErr: errors.New("authority down")}
	store, mr := newTestStore(t, remote)

	// must not panic or surface the failure
	store.Set(context.Background(), 7, []string{"9"})

	raw, err := mr.Get("prefs:pinned:7")
	assert.NoError(t, err)
	assert.JSONEq(t, `["9"]`, raw)

	// and the value remains readable when the remote stays down
	remote.getErr = errors.New("authority down")
	assert.Equal(t, []string{"9"}, store.Get(context.Background(), 7))
}

func TestNilLocalClient(t *testing.T) {
	remote := &fakeRemote{getErr: errors.New("authority down")}
	store := NewStore(remote, nil, 0, testLogger(), nil)

	assert.Empty(t, store.Get(context.Background(), 7))
	store.Set(context.Background(), 7, []string{"1"})
}
