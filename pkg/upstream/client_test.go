package upstream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raporhub/raporhub/pkg/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	client := NewClient(Config{BaseURL: srv.URL, Token: "test-token"}, testLogger(), nil)
	return client, srv
}

func TestGetCatalog(t *testing.T) {
	var gotPath, gotAuth string
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"reports": [{"id": 1, "name": "Ciro", "description": "Günlük ciro"}, {"id": 2, "name": "Stok"}]}`)
	}))
	defer srv.Close()

	reports, err := client.GetCatalog(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "/tenants/42/reports", gotPath)
	assert.Equal(t, "Bearer test-token", gotAuth)
	require.Len(t, reports, 2)
	assert.Equal(t, int64(1), reports[0].ID)
	assert.Equal(t, "Ciro", reports[0].Name)
}

func TestGetCatalogFailures(t *testing.T) {
	t.Run("server error is unavailable", func(t *testing.T) {
		client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "internal", http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := client.GetCatalog(context.Background(), 1)
		assert.ErrorIs(t, err, ErrUnavailable)
		assert.True(t, IsReadFailure(err))
	})

	t.Run("client error is rejected, not unavailable", func(t *testing.T) {
		client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer srv.Close()

		_, err := client.GetCatalog(context.Background(), 1)
		assert.ErrorIs(t, err, ErrRejected)
		assert.NotErrorIs(t, err, ErrUnavailable)
		// still a read failure so callers fall back to degraded mode
		assert.True(t, IsReadFailure(err))
	})

	t.Run("bad payload is malformed", func(t *testing.T) {
		client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"reports": [{`)
		}))
		defer srv.Close()

		_, err := client.GetCatalog(context.Background(), 1)
		assert.ErrorIs(t, err, ErrMalformed)
		assert.True(t, IsReadFailure(err))
	})

	t.Run("connection refused is unavailable", func(t *testing.T) {
		client := NewClient(Config{BaseURL: "http://127.0.0.1:1"}, testLogger(), nil)
		_, err := client.GetCatalog(context.Background(), 1)
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}

func TestAddGrants(t *testing.T) {
	t.Run("sends ids", func(t *testing.T) {
		var gotBody grantsPayload
		var gotMethod string
		client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			json.NewDecoder(r.Body).Decode(&gotBody)
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		require.NoError(t, client.AddGrants(context.Background(), 7, []int64{1, 3}))
		assert.Equal(t, http.MethodPost, gotMethod)
		assert.Equal(t, []int64{1, 3}, gotBody.ReportIDs)
	})

	t.Run("empty set rejected before any call", func(t *testing.T) {
		called := false
		client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		defer srv.Close()

		err := client.AddGrants(context.Background(), 7, nil)
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.False(t, called)
	})
}

func TestRemoveGrants(t *testing.T) {
	t.Run("nil means remove all and is sent as JSON null", func(t *testing.T) {
		var rawBody []byte
		client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawBody, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		require.NoError(t, client.RemoveGrants(context.Background(), 7, nil))
		assert.JSONEq(t, `{"report_ids": null}`, string(rawBody))
	})

	t.Run("empty set is a no-op without a call", func(t *testing.T) {
		called := false
		client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		defer srv.Close()

		require.NoError(t, client.RemoveGrants(context.Background(), 7, []int64{}))
		assert.False(t, called)
	})

	t.Run("explicit ids are sent as an array", func(t *testing.T) {
		var rawBody []byte
		client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawBody, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		require.NoError(t, client.RemoveGrants(context.Background(), 7, []int64{2}))
		assert.JSONEq(t, `{"report_ids": [2]}`, string(rawBody))
	})
}

func TestPreferences(t *testing.T) {
	t.Run("get", func(t *testing.T) {
		client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"pinned_report_ids": ["3", "1"]}`)
		}))
		defer srv.Close()

		ids, err := client.GetPreferences(context.Background(), 7)
		require.NoError(t, err)
		assert.Equal(t, []string{"3", "1"}, ids)
	})

	t.Run("set nil normalizes to empty array", func(t *testing.T) {
		var rawBody []byte
		client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawBody, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		require.NoError(t, client.SetPreferences(context.Background(), 7, nil))
		assert.JSONEq(t, `{"pinned_report_ids": []}`, string(rawBody))
	})
}

func TestPing(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ping", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	assert.NoError(t, client.Ping(context.Background()))
}
