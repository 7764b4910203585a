package booking

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gigbook/internal/domain"
	"gigbook/internal/events"
	"gigbook/internal/models"
	"gigbook/internal/store"
)

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) PublishJSON(et string, p interface{}) error { return m.Called(et, p).Error(0) }

type mockRemover struct {
	mock.Mock
}

func (m *mockRemover) Remove(ctx context.Context, gigID, comedianID string) error {
	return m.Called(ctx, gigID, comedianID).Error(0)
}

var testNow = time.Date(2026, 4, 10, 18, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, st store.Store, remover LineupRemover) (*Service, *mockEventBus) {
	t.Helper()
	bus := new(mockEventBus)
	bus.On("PublishJSON", mock.Anything, mock.Anything).Return(nil)
	var seq atomic.Int64
	svc := NewService(st, remover, bus, zerolog.New(io.Discard),
		WithClock(func() time.Time { return testNow }),
		WithIDs(func() string { return fmt.Sprintf("b%d", seq.Add(1)) }),
	)
	return svc, bus
}

func putGig(t *testing.T, st store.Store, g *models.Gig) {
	t.Helper()
	if g.Status == "" {
		g.Status = models.GigOpen
	}
	require.NoError(t, st.Apply(context.Background(), store.NewBatch().InsertGig(g)))
}

func comic(id string) models.IdentityClaim {
	return models.IdentityClaim{SubjectID: id, Email: id + "@Comics.test", DisplayName: "Comic " + id}
}

func spottedGig(id string) *models.Gig {
	return &models.Gig{
		ID:   id,
		Date: "2026-05-01",
		Spots: []models.Spot{
			{Kind: models.SpotHost},
			{Kind: models.SpotTimed, Minutes: 5},
			{Kind: models.SpotTimed, Minutes: 5},
			{Kind: models.SpotTimed, Minutes: 10},
		},
	}
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	putGig(t, st, spottedGig("g1"))
	svc, bus := newTestService(t, st, nil)

	t.Run("Success", func(t *testing.T) {
		b, err := svc.Create(ctx, CreateRequest{GigID: "g1", Comedian: comic("c1"), RequestedSpotType: " 5min "})
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, b.Status)
		assert.Equal(t, "5min", b.RequestedSpotType)
		assert.Equal(t, "c1@comics.test", b.ComedianEmail)
		assert.Equal(t, "Comic c1", b.ComedianName)
		assert.Nil(t, b.AssignedSpotIndex)
		bus.AssertCalled(t, "PublishJSON", events.BookingCreated, mock.Anything)
	})

	t.Run("DuplicatePending", func(t *testing.T) {
		_, err := svc.Create(ctx, CreateRequest{GigID: "g1", Comedian: comic("c1")})
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("AllowedAgainAfterReject", func(t *testing.T) {
		list, err := st.ListBookings(ctx, store.BookingFilter{ComedianID: "c1"})
		require.NoError(t, err)
		require.Len(t, list, 1)

		_, err = svc.Reject(ctx, list[0].ID, "not this week", "boss@club.com")
		require.NoError(t, err)

		_, err = svc.Create(ctx, CreateRequest{GigID: "g1", Comedian: comic("c1")})
		assert.NoError(t, err)
	})

	t.Run("NameFallsBackToEmail", func(t *testing.T) {
		b, err := svc.Create(ctx, CreateRequest{GigID: "g1", Comedian: models.IdentityClaim{SubjectID: "c9", Email: "nine@comics.test"}})
		require.NoError(t, err)
		assert.Equal(t, "nine@comics.test", b.ComedianName)
	})

	t.Run("GigNotFound", func(t *testing.T) {
		_, err := svc.Create(ctx, CreateRequest{GigID: "nope", Comedian: comic("c2")})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Validation", func(t *testing.T) {
		_, err := svc.Create(ctx, CreateRequest{Comedian: comic("c2")})
		assert.ErrorIs(t, err, domain.ErrValidation)

		_, err = svc.Create(ctx, CreateRequest{GigID: "g1"})
		assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	})

	t.Run("NoCapacityCheckOnCreate", func(t *testing.T) {
		tiny := &models.Gig{ID: "tiny", Date: "2026-05-01", SlotsTotal: 1}
		putGig(t, st, tiny)
		for _, id := range []string{"x1", "x2", "x3"} {
			_, err := svc.Create(ctx, CreateRequest{GigID: "tiny", Comedian: comic(id)})
			assert.NoError(t, err)
		}
	})
}

func createPending(t *testing.T, svc *Service, gigID, comedianID, spot string) *models.Booking {
	t.Helper()
	b, err := svc.Create(context.Background(), CreateRequest{GigID: gigID, Comedian: comic(comedianID), RequestedSpotType: spot})
	require.NoError(t, err)
	return b
}

func TestService_ApproveAssignsSpots(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	putGig(t, st, spottedGig("g1"))
	svc, bus := newTestService(t, st, nil)

	first := createPending(t, svc, "g1", "c1", "5min")
	second := createPending(t, svc, "g1", "c2", "5min")
	third := createPending(t, svc, "g1", "c3", "5min")

	var got []int
	for _, b := range []*models.Booking{first, second, third} {
		approved, err := svc.Approve(ctx, b.ID, "boss@club.com")
		require.NoError(t, err)
		require.NotNil(t, approved.AssignedSpotIndex)
		assert.Equal(t, models.StatusApproved, approved.Status)
		assert.Equal(t, "boss@club.com", approved.ApprovedBy)
		assert.Equal(t, testNow, *approved.ApprovedAt)
		got = append(got, *approved.AssignedSpotIndex)
	}
	assert.Equal(t, []int{1, 2, 0}, got)

	gig, err := st.GetGig(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, gig.Lineup, 3)
	for i, e := range gig.Lineup {
		assert.Equal(t, i+1, e.Order)
		assert.Equal(t, got[i], *e.SpotIndex)
	}
	assert.Equal(t, "Comic c1", gig.Lineup[0].Name)

	stored, err := st.GetBooking(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, *stored.AssignedSpotIndex)

	bus.AssertCalled(t, "PublishJSON", events.BookingApproved, mock.Anything)
	bus.AssertCalled(t, "PublishJSON", events.LineupUpdated, events.GigPayload{GigID: "g1"})
}

func TestService_ApproveCapacity(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	putGig(t, st, &models.Gig{ID: "legacy", Date: "2026-05-01", SlotsTotal: 2})
	svc, _ := newTestService(t, st, nil)

	a := createPending(t, svc, "legacy", "c1", "")
	b := createPending(t, svc, "legacy", "c2", "")
	c := createPending(t, svc, "legacy", "c3", "")

	for _, bk := range []*models.Booking{a, b} {
		approved, err := svc.Approve(ctx, bk.ID, "boss@club.com")
		require.NoError(t, err)
		assert.Nil(t, approved.AssignedSpotIndex)
	}

	before, err := st.GetGig(ctx, "legacy")
	require.NoError(t, err)

	_, err = svc.Approve(ctx, c.ID, "boss@club.com")
	assert.ErrorIs(t, err, domain.ErrConflict)

	after, err := st.GetGig(ctx, "legacy")
	require.NoError(t, err)
	assert.Len(t, after.Lineup, 2)
	assert.Equal(t, before.Version, after.Version)

	pending, err := st.GetBooking(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, pending.Status)
}

func TestService_Idempotence(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	putGig(t, st, spottedGig("g1"))
	svc, _ := newTestService(t, st, nil)

	t.Run("RejectTwice", func(t *testing.T) {
		b := createPending(t, svc, "g1", "c1", "")
		_, err := svc.Reject(ctx, b.ID, "", "boss@club.com")
		require.NoError(t, err)
		snapshot, err := st.GetBooking(ctx, b.ID)
		require.NoError(t, err)

		_, err = svc.Reject(ctx, b.ID, "again", "boss@club.com")
		assert.ErrorIs(t, err, domain.ErrConflict)

		after, err := st.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, snapshot, after)
		assert.Empty(t, after.RejectionReason)
	})

	t.Run("ApproveTwice", func(t *testing.T) {
		b := createPending(t, svc, "g1", "c2", "Host")
		_, err := svc.Approve(ctx, b.ID, "boss@club.com")
		require.NoError(t, err)
		gigBefore, err := st.GetGig(ctx, "g1")
		require.NoError(t, err)

		_, err = svc.Approve(ctx, b.ID, "boss@club.com")
		assert.ErrorIs(t, err, domain.ErrConflict)

		gigAfter, err := st.GetGig(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, gigBefore, gigAfter)
	})

	t.Run("NoRejectAfterApprove", func(t *testing.T) {
		list, err := st.ListBookings(ctx, store.BookingFilter{ComedianID: "c2"})
		require.NoError(t, err)
		_, err = svc.Reject(ctx, list[0].ID, "", "boss@club.com")
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("NoApproveAfterReject", func(t *testing.T) {
		list, err := st.ListBookings(ctx, store.BookingFilter{ComedianID: "c1"})
		require.NoError(t, err)
		_, err = svc.Approve(ctx, list[0].ID, "boss@club.com")
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := svc.Approve(ctx, "ghost", "boss@club.com")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = svc.Reject(ctx, "ghost", "", "boss@club.com")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestService_RejectStoresReason(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	putGig(t, st, spottedGig("g1"))
	svc, bus := newTestService(t, st, nil)

	b := createPending(t, svc, "g1", "c1", "")
	rejected, err := svc.Reject(ctx, b.ID, "  full already ", "boss@club.com")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.Status)
	assert.Equal(t, "full already", rejected.RejectionReason)

	gig, err := st.GetGig(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, gig.Lineup)
	bus.AssertCalled(t, "PublishJSON", events.BookingRejected, mock.Anything)
}

// racingStore lets another approval land between Approve's read and its write.
type racingStore struct {
	*store.Memory
	once   sync.Once
	before func()
}

func (r *racingStore) Apply(ctx context.Context, b *store.Batch) error {
	for _, op := range b.Ops {
		if op.Kind == store.OpUpdateBooking && op.Booking.Status == models.StatusApproved {
			r.once.Do(r.before)
			break
		}
	}
	return r.Memory.Apply(ctx, b)
}

func TestService_ApproveLosesRaceWithoutPartialWrite(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	putGig(t, mem, &models.Gig{ID: "g1", Date: "2026-05-01", SlotsTotal: 1})

	plain, _ := newTestService(t, mem, nil)
	winner := createPending(t, plain, "g1", "winner", "")
	loser := createPending(t, plain, "g1", "loser", "")

	racing := &racingStore{Memory: mem}
	racing.before = func() {
		_, err := plain.Approve(ctx, winner.ID, "other@club.com")
		require.NoError(t, err)
	}
	svc, _ := newTestService(t, racing, nil)

	_, err := svc.Approve(ctx, loser.ID, "boss@club.com")
	assert.ErrorIs(t, err, domain.ErrConflict)

	gig, err := mem.GetGig(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, gig.Lineup, 1)
	assert.Equal(t, "winner", gig.Lineup[0].ComedianID)

	stored, err := mem.GetBooking(ctx, loser.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Nil(t, stored.AssignedSpotIndex)
}

func TestService_ConcurrentApprovalsRespectCapacity(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	putGig(t, st, spottedGig("g1"))
	svc, _ := newTestService(t, st, nil)

	var ids []string
	for i := 0; i < 12; i++ {
		ids = append(ids, createPending(t, svc, "g1", fmt.Sprintf("c%d", i), "5min").ID)
	}

	var wg sync.WaitGroup
	var ok atomic.Int32
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := svc.Approve(ctx, id, "boss@club.com"); err == nil {
				ok.Add(1)
			} else {
				assert.ErrorIs(t, err, domain.ErrConflict)
			}
		}(id)
	}
	wg.Wait()

	gig, err := st.GetGig(ctx, "g1")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(gig.Lineup), gig.Capacity())
	assert.Equal(t, int(ok.Load()), len(gig.Lineup))

	used := map[int]bool{}
	for i, e := range gig.Lineup {
		assert.Equal(t, i+1, e.Order)
		assert.False(t, used[*e.SpotIndex])
		used[*e.SpotIndex] = true
	}
}

func TestService_DecideDispatch(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	putGig(t, st, spottedGig("g1"))
	remover := new(mockRemover)
	svc, _ := newTestService(t, st, remover)

	b := createPending(t, svc, "g1", "c1", "Host")

	_, err := svc.Decide(ctx, b.ID, ActionRemove, "", "boss@club.com")
	assert.ErrorIs(t, err, domain.ErrConflict, "pending bookings cannot be removed")

	approved, err := svc.Decide(ctx, b.ID, ActionApprove, "", "boss@club.com")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, approved.Status)

	remover.On("Remove", ctx, "g1", "c1").Return(nil).Once()
	_, err = svc.Decide(ctx, b.ID, ActionRemove, "", "boss@club.com")
	assert.NoError(t, err)
	remover.AssertExpectations(t)

	_, err = svc.Decide(ctx, b.ID, Action(99), "", "boss@club.com")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestService_ListAndMyGigs(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	putGig(t, st, spottedGig("g1"))
	putGig(t, st, spottedGig("g2"))

	var clock atomic.Int64
	bus := new(mockEventBus)
	bus.On("PublishJSON", mock.Anything, mock.Anything).Return(nil)
	var seq atomic.Int64
	svc := NewService(st, nil, bus, zerolog.New(io.Discard),
		WithClock(func() time.Time { return testNow.Add(time.Duration(clock.Add(1)) * time.Minute) }),
		WithIDs(func() string { return fmt.Sprintf("b%d", seq.Add(1)) }),
	)

	a := createPending(t, svc, "g1", "c1", "")
	createPending(t, svc, "g2", "c1", "")
	createPending(t, svc, "g1", "c2", "")
	_, err := svc.Approve(ctx, a.ID, "boss@club.com")
	require.NoError(t, err)

	all, err := svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "b3", all[0].ID, "newest first")
	require.NotNil(t, all[0].Gig)
	assert.Equal(t, "g1", all[0].Gig.ID)

	pending, err := svc.List(ctx, ListFilter{GigID: "g1", Status: models.StatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "c2", pending[0].ComedianID)

	_, err = svc.List(ctx, ListFilter{Status: "weird"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	mine, err := svc.MyGigs(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, mine.Approved, 1)
	assert.Len(t, mine.Pending, 1)
	assert.Empty(t, mine.Rejected)
	assert.Equal(t, "g2", mine.Pending[0].Gig.ID)
}
