// Package prefs stores a user's pinned reports in a two-tier layout: the
// remote preference store is primary, a local redis cache is the fallback.
//
// Pinned reports are a convenience, not a correctness feature. No operation
// here ever fails the caller: write failures are logged and read failures
// fall through remote → local cache → empty list.
package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/raporhub/raporhub/pkg/observability"
)

// Remote is the authority's preference surface
type Remote interface {
	GetPreferences(ctx context.Context, userID int64) ([]string, error)
	SetPreferences(ctx context.Context, userID int64, ids []string) error
}

// Store is the two-tier pinned-report store
type Store struct {
	remote  Remote
	local   *redis.Client
	ttl     time.Duration
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewStore creates a preference store. local and metrics may be nil; with a
// nil local client the fallback tier reads as empty.
func NewStore(remote Remote, local *redis.Client, ttl time.Duration, logger *observability.Logger, metrics *observability.Metrics) *Store {
	return &Store{
		remote:  remote,
		local:   local,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
	}
}

func cacheKey(userID int64) string {
	return fmt.Sprintf("prefs:pinned:%d", userID)
}

// Get returns the user's pinned report ids in pin order. Reads prefer the
// remote store; on any remote failure the local cache answers; with neither
// available the result is an empty list. Never returns an error.
func (s *Store) Get(ctx context.Context, userID int64) []string {
	ids, err := s.remote.GetPreferences(ctx, userID)
	if err == nil {
		if ids == nil {
			ids = []string{}
		}
		// keep the fallback tier warm with what the authority returned
		s.writeLocal(ctx, userID, ids)
		return ids
	}

	s.logger.WithError(err).
		WithField("user_id", userID).
		Debug("Remote preference read failed, falling back to local cache")
	if s.metrics != nil {
		s.metrics.PrefsFallbackReadsTotal.Inc()
	}
	return s.readLocal(ctx, userID)
}

// Set stores the user's pinned report ids in both tiers, best effort. A
// remote write failure is logged, never surfaced: the local copy keeps the
// UI consistent until the authority is reachable again.
func (s *Store) Set(ctx context.Context, userID int64, ids []string) {
	if ids == nil {
		ids = []string{}
	}

	if err := s.remote.SetPreferences(ctx, userID, ids); err != nil {
		s.logger.WithError(err).
			WithField("user_id", userID).
			Warn("Remote preference write failed, local cache keeps the value")
		if s.metrics != nil {
			s.metrics.PrefsWriteErrorsTotal.WithLabelValues("remote").Inc()
		}
	}

	s.writeLocal(ctx, userID, ids)
}

func (s *Store) readLocal(ctx context.Context, userID int64) []string {
	if s.local == nil {
		return []string{}
	}
	raw, err := s.local.Get(ctx, cacheKey(userID)).Result()
	if err != nil {
		if err != redis.Nil {
			s.logger.WithError(err).Debug("Local preference read failed")
		}
		return []string{}
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		s.logger.WithError(err).Warn("Local preference cache entry is unparseable, dropping it")
		s.local.Del(ctx, cacheKey(userID))
		return []string{}
	}
	return ids
}

func (s *Store) writeLocal(ctx context.Context, userID int64, ids []string) {
	if s.local == nil {
		return
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return
	}
	if err := s.local.Set(ctx, cacheKey(userID), data, s.ttl).Err(); err != nil {
		s.logger.WithError(err).Debug("Local preference write failed")
		if s.metrics != nil {
			s.metrics.PrefsWriteErrorsTotal.WithLabelValues("local").Inc()
		}
	}
}
