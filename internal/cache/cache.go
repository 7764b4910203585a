// Package cache serves the gig listing from Redis in front of a store.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"gigbook/internal/metrics"
	"gigbook/internal/models"
	"gigbook/internal/store"
)

const (
	keyPrefix     = "gigbook:"
	generationKey = keyPrefix + "gigs:gen"

	// retryAfter is how long Redis is bypassed after a failure.
	retryAfter = time.Minute
)

// Store is a cache-aside decorator over a store.Store. Only ListGigs is
// cached; every committed batch that touches gigs bumps a generation
// counter so stale listings are never read again.
type Store struct {
	store.Store

	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
	now       func() time.Time
}

// New wraps next with a Redis cache. A nil client or a non-positive ttl
// disables caching and every call goes straight to next.
func New(next store.Store, client *redis.Client, ttl time.Duration, logger zerolog.Logger) *Store {
	return &Store{
		Store:  next,
		redis:  client,
		ttl:    ttl,
		logger: logger.With().Str("component", "cache").Logger(),
		now:    time.Now,
	}
}

// ListGigs returns the cached listing for filter, reading through to the
// wrapped store on a miss.
func (s *Store) ListGigs(ctx context.Context, filter store.GigFilter) ([]models.Gig, error) {
	if !s.available() {
		metrics.IncCache("bypass")
		return s.Store.ListGigs(ctx, filter)
	}

	gen, err := s.redis.Get(ctx, generationKey).Int64()
	if err != nil && err != redis.Nil {
		s.markDown(err)
		metrics.IncCache("bypass")
		return s.Store.ListGigs(ctx, filter)
	}

	key := listKey(gen, filter)
	if val, err := s.redis.Get(ctx, key).Bytes(); err == nil {
		var gigs []models.Gig
		if err := json.Unmarshal(val, &gigs); err == nil {
			metrics.IncCache("hit")
			return gigs, nil
		}
	} else if err != redis.Nil {
		s.markDown(err)
	}

	metrics.IncCache("miss")
	gigs, err := s.Store.ListGigs(ctx, filter)
	if err != nil {
		return nil, err
	}
	s.write(ctx, key, gigs)
	return gigs, nil
}

// Apply commits b on the wrapped store and invalidates cached listings when
// the batch touched gigs.
func (s *Store) Apply(ctx context.Context, b *store.Batch) error {
	if err := s.Store.Apply(ctx, b); err != nil {
		return err
	}
	if b.TouchesGigs() {
		s.Invalidate(ctx)
	}
	return nil
}

// Invalidate drops every cached listing.
func (s *Store) Invalidate(ctx context.Context) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Incr(ctx, generationKey).Err(); err != nil {
		// Listings written under the old generation expire with the ttl.
		s.markDown(err)
		s.logger.Warn().Err(err).Msg("cache invalidation failed")
	}
}

// Ping checks both the wrapped store and Redis.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.Store.Ping(ctx); err != nil {
		return err
	}
	if s.redis == nil {
		return nil
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

func (s *Store) write(ctx context.Context, key string, gigs []models.Gig) {
	data, err := json.Marshal(gigs)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, data, s.ttl).Err(); err != nil {
		s.markDown(err)
	}
}

func (s *Store) available() bool {
	if s.redis == nil || s.ttl <= 0 {
		return false
	}
	if !s.isDown.Load() {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.now().Sub(s.lastCheck) < retryAfter {
		return false
	}
	s.lastCheck = s.now()
	s.isDown.Store(false)
	s.logger.Info().Msg("retrying redis")
	return true
}

func (s *Store) markDown(err error) {
	s.mu.Lock()
	s.lastCheck = s.now()
	s.mu.Unlock()
	if !s.isDown.Swap(true) {
		s.logger.Warn().Err(err).Msg("redis unavailable, bypassing cache")
	}
}

func listKey(gen int64, f store.GigFilter) string {
	return keyPrefix + "gigs:" + strconv.FormatInt(gen, 10) + ":" + f.FromDate + ":" + f.Status
}
