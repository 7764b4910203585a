package lineup

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigbook/internal/domain"
	"gigbook/internal/events"
	"gigbook/internal/models"
	"gigbook/internal/store"
)

var testNow = time.Date(2026, 4, 10, 18, 0, 0, 0, time.UTC)

type recorder struct {
	types []string
}

func (r *recorder) PublishJSON(et string, _ interface{}) error {
	r.types = append(r.types, et)
	return nil
}

func newTestManager(st store.Store) (*Manager, *recorder) {
	rec := &recorder{}
	return NewManager(st, rec, func() time.Time { return testNow }, zerolog.New(io.Discard)), rec
}

// seedThree stores a gig whose lineup holds a, b and c, each with an approved booking.
func seedThree(t *testing.T, st store.Store) {
	t.Helper()
	g := &models.Gig{
		ID:     "g1",
		Date:   "2026-05-01",
		Status: models.GigOpen,
		Spots:  []models.Spot{{Kind: models.SpotHost}, {Kind: models.SpotTimed, Minutes: 5}, {Kind: models.SpotTimed, Minutes: 10}},
		Lineup: []models.LineupEntry{
			{ComedianID: "a", Name: "A", Order: 1, SpotIndex: models.IntPtr(0)},
			{ComedianID: "b", Name: "B", Order: 2, SpotIndex: models.IntPtr(1)},
			{ComedianID: "c", Name: "C", Order: 3, SpotIndex: models.IntPtr(2)},
		},
	}
	b := store.NewBatch().InsertGig(g)
	for i, id := range []string{"a", "b", "c"} {
		b.InsertBooking(&models.Booking{
			ID:                "bk-" + id,
			GigID:             "g1",
			ComedianID:        id,
			Status:            models.StatusApproved,
			AssignedSpotIndex: models.IntPtr(i),
			CreatedAt:         testNow,
		})
	}
	require.NoError(t, st.Apply(context.Background(), b))
}

func TestManager_RemoveRenumbersAndCascades(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	seedThree(t, st)
	m, rec := newTestManager(st)

	require.NoError(t, m.Remove(ctx, "g1", "b"))

	gig, err := st.GetGig(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, gig.Lineup, 2)
	assert.Equal(t, "a", gig.Lineup[0].ComedianID)
	assert.Equal(t, 1, gig.Lineup[0].Order)
	assert.Equal(t, "c", gig.Lineup[1].ComedianID)
	assert.Equal(t, 2, gig.Lineup[1].Order)
	assert.Equal(t, 2, *gig.Lineup[1].SpotIndex, "spot indices are kept")

	removed, err := st.GetBooking(ctx, "bk-b")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRemoved, removed.Status)

	untouched, err := st.GetBooking(ctx, "bk-a")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, untouched.Status)

	assert.Equal(t, []string{events.BookingRemoved, events.LineupUpdated}, rec.types)
}

func TestManager_RemoveEdgeCases(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown gig", func(t *testing.T) {
		m, _ := newTestManager(store.NewMemory())
		assert.ErrorIs(t, m.Remove(ctx, "nope", "a"), domain.ErrNotFound)
	})

	t.Run("comedian nowhere", func(t *testing.T) {
		st := store.NewMemory()
		seedThree(t, st)
		m, _ := newTestManager(st)
		assert.ErrorIs(t, m.Remove(ctx, "g1", "zed"), domain.ErrNotFound)
	})

	t.Run("approved booking without lineup entry still cascades", func(t *testing.T) {
		st := store.NewMemory()
		seedThree(t, st)
		require.NoError(t, st.Apply(ctx, store.NewBatch().InsertBooking(&models.Booking{
			ID: "bk-d", GigID: "g1", ComedianID: "d", Status: models.StatusApproved, CreatedAt: testNow,
		})))
		m, rec := newTestManager(st)

		before, err := st.GetGig(ctx, "g1")
		require.NoError(t, err)
		require.NoError(t, m.Remove(ctx, "g1", "d"))

		after, err := st.GetGig(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, before.Version, after.Version)

		bk, err := st.GetBooking(ctx, "bk-d")
		require.NoError(t, err)
		assert.Equal(t, models.StatusRemoved, bk.Status)
		assert.Equal(t, []string{events.BookingRemoved}, rec.types)
	})

	t.Run("second removal finds nothing", func(t *testing.T) {
		st := store.NewMemory()
		seedThree(t, st)
		m, _ := newTestManager(st)
		require.NoError(t, m.Remove(ctx, "g1", "a"))
		assert.ErrorIs(t, m.Remove(ctx, "g1", "a"), domain.ErrNotFound)
	})

	t.Run("missing comedian id", func(t *testing.T) {
		m, _ := newTestManager(store.NewMemory())
		assert.ErrorIs(t, m.Remove(ctx, "g1", ""), domain.ErrValidation)
	})
}

func TestManager_Reorder(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	seedThree(t, st)
	m, rec := newTestManager(st)

	gig, err := m.Reorder(ctx, "g1", []models.LineupEntry{
		{ComedianID: "c", Name: "C", Order: 9, SpotIndex: models.IntPtr(2)},
		{ComedianID: "a", Name: "A", Order: 9, SpotIndex: models.IntPtr(0)},
		{ComedianID: "b", Name: "B", Order: 9, SpotIndex: models.IntPtr(1)},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, ids(gig.Lineup))
	assert.Equal(t, []int{1, 2, 3}, orders(gig.Lineup))

	stored, err := st.GetGig(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, gig.Lineup, stored.Lineup)
	assert.Equal(t, testNow, stored.UpdatedAt)
	assert.Equal(t, []string{events.LineupUpdated}, rec.types)
}

func TestManager_ReorderIsFullOverwrite(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	seedThree(t, st)
	m, _ := newTestManager(st)

	gig, err := m.Reorder(ctx, "g1", []models.LineupEntry{{ComedianID: "b", Name: "B"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(gig.Lineup))
	assert.Nil(t, gig.Lineup[0].SpotIndex)

	gig, err = m.Reorder(ctx, "g1", nil)
	require.NoError(t, err)
	assert.Empty(t, gig.Lineup)
}

func TestManager_ReorderValidation(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	seedThree(t, st)
	m, _ := newTestManager(st)

	tests := []struct {
		name    string
		entries []models.LineupEntry
	}{
		{"over capacity", []models.LineupEntry{{ComedianID: "a"}, {ComedianID: "b"}, {ComedianID: "c"}, {ComedianID: "d"}}},
		{"duplicate comedian", []models.LineupEntry{{ComedianID: "a"}, {ComedianID: "a"}}},
		{"blank comedian", []models.LineupEntry{{ComedianID: " "}}},
		{"spot out of range", []models.LineupEntry{{ComedianID: "a", SpotIndex: models.IntPtr(3)}}},
		{"negative spot", []models.LineupEntry{{ComedianID: "a", SpotIndex: models.IntPtr(-1)}}},
		{"duplicate spot", []models.LineupEntry{{ComedianID: "a", SpotIndex: models.IntPtr(1)}, {ComedianID: "b", SpotIndex: models.IntPtr(1)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Reorder(ctx, "g1", tt.entries)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	stored, err := st.GetGig(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(stored.Lineup))

	_, err = m.Reorder(ctx, "missing", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestManager_Execute(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	seedThree(t, st)
	m, _ := newTestManager(st)

	gig, err := m.Execute(ctx, Command{Op: OpRemove, GigID: "g1", ComedianID: "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, ids(gig.Lineup))

	gig, err = m.Execute(ctx, Command{Op: OpReorder, GigID: "g1", Entries: []models.LineupEntry{{ComedianID: "c"}, {ComedianID: "b"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, ids(gig.Lineup))

	_, err = m.Execute(ctx, Command{Op: Operation(7), GigID: "g1"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	op, err := ParseOperation("remove")
	require.NoError(t, err)
	assert.Equal(t, OpRemove, op)
	_, err = ParseOperation("shuffle")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func ids(lineup []models.LineupEntry) []string {
	out := make([]string, len(lineup))
	for i, e := range lineup {
		out[i] = e.ComedianID
	}
	return out
}

func orders(lineup []models.LineupEntry) []int {
	out := make([]int, len(lineup))
	for i, e := range lineup {
		out[i] = e.Order
	}
	return out
}
