package cache

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigbook/internal/models"
	"gigbook/internal/store"
)

type countingStore struct {
	*store.Memory
	lists int
}

func (c *countingStore) ListGigs(ctx context.Context, f store.GigFilter) ([]models.Gig, error) {
	c.lists++
	return c.Memory.ListGigs(ctx, f)
}

func setup(t *testing.T) (*Store, *countingStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	backing := &countingStore{Memory: store.NewMemory()}
	require.NoError(t, backing.Apply(context.Background(), store.NewBatch().InsertGig(&models.Gig{
		ID: "g1", Venue: "Blue Room", Date: "2026-05-01", Status: models.GigOpen, SlotsTotal: 4,
	})))

	return New(backing, rdb, time.Minute, zerolog.New(io.Discard)), backing, mr
}

func TestStore_ListGigsHitsCache(t *testing.T) {
	ctx := context.Background()
	c, backing, _ := setup(t)
	filter := store.GigFilter{FromDate: "2026-01-01"}

	first, err := c.ListGigs(ctx, filter)
	require.NoError(t, err)
	second, err := c.ListGigs(ctx, filter)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, backing.lists)

	_, err = c.ListGigs(ctx, store.GigFilter{Status: models.GigClosed})
	require.NoError(t, err)
	assert.Equal(t, 2, backing.lists, "filters are cached separately")
}

func TestStore_ApplyInvalidatesOnGigWrites(t *testing.T) {
	ctx := context.Background()
	c, backing, _ := setup(t)

	_, err := c.ListGigs(ctx, store.GigFilter{})
	require.NoError(t, err)

	require.NoError(t, c.Apply(ctx, store.NewBatch().InsertBooking(&models.Booking{
		ID: "b1", GigID: "g1", ComedianID: "c1", Status: models.StatusPending,
	})))
	_, err = c.ListGigs(ctx, store.GigFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, backing.lists, "booking-only batches keep the listing")

	gig, err := c.GetGig(ctx, "g1")
	require.NoError(t, err)
	gig.Venue = "Green Room"
	require.NoError(t, c.Apply(ctx, store.NewBatch().UpdateGig(gig)))

	gigs, err := c.ListGigs(ctx, store.GigFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, backing.lists)
	require.Len(t, gigs, 1)
	assert.Equal(t, "Green Room", gigs[0].Venue)
}

func TestStore_FailedApplyDoesNotInvalidate(t *testing.T) {
	ctx := context.Background()
	c, _, mr := setup(t)

	stale := &models.Gig{ID: "g1", Version: 42}
	err := c.Apply(ctx, store.NewBatch().UpdateGig(stale))
	assert.ErrorIs(t, err, store.ErrVersionConflict)
	assert.False(t, mr.Exists(generationKey))
}

func TestStore_BypassesWhenRedisDown(t *testing.T) {
	ctx := context.Background()
	c, backing, mr := setup(t)
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	mr.Close()

	gigs, err := c.ListGigs(ctx, store.GigFilter{})
	require.NoError(t, err)
	assert.Len(t, gigs, 1)
	assert.True(t, c.isDown.Load())

	_, err = c.ListGigs(ctx, store.GigFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, backing.lists)
	assert.Error(t, c.Ping(ctx))

	require.NoError(t, mr.Restart())
	now = now.Add(2 * retryAfter)

	_, err = c.ListGigs(ctx, store.GigFilter{})
	require.NoError(t, err)
	assert.False(t, c.isDown.Load())
	_, err = c.ListGigs(ctx, store.GigFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, backing.lists, "cache serves again after recovery")
}

func TestStore_Disabled(t *testing.T) {
	ctx := context.Background()
	backing := &countingStore{Memory: store.NewMemory()}
	c := New(backing, nil, time.Minute, zerolog.New(io.Discard))

	_, err := c.ListGigs(ctx, store.GigFilter{})
	require.NoError(t, err)
	_, err = c.ListGigs(ctx, store.GigFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, backing.lists)
	assert.NoError(t, c.Ping(ctx))
}
