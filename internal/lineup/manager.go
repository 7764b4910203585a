// Package lineup maintains a gig's running order.
package lineup

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"gigbook/internal/booking"
	"gigbook/internal/domain"
	"gigbook/internal/events"
	"gigbook/internal/metrics"
	"gigbook/internal/models"
	"gigbook/internal/store"
)

// Operation is an admin edit of a lineup.
type Operation int

const (
	OpReorder Operation = iota + 1
	OpRemove
)

func (o Operation) String() string {
	switch o {
	case OpReorder:
		return "reorder"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// ParseOperation maps the wire name of a lineup operation.
func ParseOperation(s string) (Operation, error) {
	switch s {
	case "reorder":
		return OpReorder, nil
	case "remove":
		return OpRemove, nil
	default:
		return 0, domain.Validation("action", "unknown action %q", s)
	}
}

// Command is one lineup edit.
type Command struct {
	Op         Operation
	GigID      string
	Entries    []models.LineupEntry // OpReorder
	ComedianID string               // OpRemove
}

// Manager edits lineups.
type Manager struct {
	store  store.Store
	fsm    *booking.FSM
	events events.Publisher
	now    func() time.Time
	logger zerolog.Logger
}

// NewManager creates a lineup manager. A nil clock means time.Now.
func NewManager(st store.Store, pub events.Publisher, now func() time.Time, logger zerolog.Logger) *Manager {
	if pub == nil {
		pub = events.Nop{}
	}
	if now == nil {
		now = time.Now
	}
	return &Manager{
		store:  st,
		fsm:    booking.NewFSM(),
		events: pub,
		now:    now,
		logger: logger.With().Str("component", "lineup").Logger(),
	}
}

// Execute runs cmd and returns the gig as stored afterwards.
func (m *Manager) Execute(ctx context.Context, cmd Command) (*models.Gig, error) {
	switch cmd.Op {
	case OpReorder:
		return m.Reorder(ctx, cmd.GigID, cmd.Entries)
	case OpRemove:
		if err := m.Remove(ctx, cmd.GigID, cmd.ComedianID); err != nil {
			return nil, err
		}
		g, err := m.store.GetGig(ctx, cmd.GigID)
		if err != nil {
			return nil, store.Classify(err, "gig", cmd.GigID)
		}
		return g, nil
	default:
		return nil, domain.Validation("action", "unknown action %s", cmd.Op)
	}
}

// Reorder overwrites the lineup with entries, re-stamping order by position.
// The write is checked against the version read here, not one held by the
// caller, so a reorder replaces whatever another admin saved before it.
func (m *Manager) Reorder(ctx context.Context, gigID string, entries []models.LineupEntry) (*models.Gig, error) {
	gig, err := m.store.GetGig(ctx, gigID)
	if err != nil {
		return nil, store.Classify(err, "gig", gigID)
	}
	if err := validateEntries(gig, entries); err != nil {
		metrics.IncGuardRejection("reorder", string(domain.KindOf(err)))
		return nil, err
	}

	lineup := make([]models.LineupEntry, len(entries))
	copy(lineup, entries)
	models.Renumber(lineup)
	gig.Lineup = lineup
	gig.UpdatedAt = m.now()

	if err := m.store.Apply(ctx, store.NewBatch().UpdateGig(gig)); err != nil {
		return nil, store.Classify(err, "gig", gigID)
	}

	m.publishLineup(gigID)
	m.logger.Info().Str("gig_id", gigID).Int("entries", len(lineup)).Msg("lineup reordered")
	return gig, nil
}

func validateEntries(gig *models.Gig, entries []models.LineupEntry) error {
	if len(entries) > gig.Capacity() {
		return domain.Validation("lineup", "%d entries exceed capacity %d", len(entries), gig.Capacity())
	}
	seen := make(map[string]bool, len(entries))
	spots := make(map[int]bool, len(entries))
	for i, e := range entries {
		id := strings.TrimSpace(e.ComedianID)
		if id == "" {
			return domain.Validation("lineup", "entry %d has no comedianId", i)
		}
		if seen[id] {
			return domain.Validation("lineup", "comedian %s appears twice", id)
		}
		seen[id] = true

		if e.SpotIndex == nil {
			continue
		}
		idx := *e.SpotIndex
		if idx < 0 || idx >= len(gig.Spots) {
			return domain.Validation("lineup", "entry %d spotIndex %d out of range", i, idx)
		}
		if spots[idx] {
			return domain.Validation("lineup", "spotIndex %d used twice", idx)
		}
		spots[idx] = true
	}
	return nil
}

// Remove takes comedianID off the gig's lineup, renumbers the rest and moves
// their approved bookings to removed, all in one batch.
func (m *Manager) Remove(ctx context.Context, gigID, comedianID string) error {
	if comedianID == "" {
		return domain.Validation("comedianId", "is required")
	}
	gig, err := m.store.GetGig(ctx, gigID)
	if err != nil {
		return store.Classify(err, "gig", gigID)
	}

	approved, err := m.store.ListBookings(ctx, store.BookingFilter{
		GigID:      gigID,
		ComedianID: comedianID,
		Statuses:   []models.BookingStatus{models.StatusApproved},
	})
	if err != nil {
		return domain.Upstream("store", err)
	}

	idx := gig.LineupIndex(comedianID)
	if idx < 0 && len(approved) == 0 {
		return domain.NotFound("lineup entry", comedianID)
	}

	now := m.now()
	batch := store.NewBatch()
	if idx >= 0 {
		lineup := make([]models.LineupEntry, 0, len(gig.Lineup)-1)
		lineup = append(lineup, gig.Lineup[:idx]...)
		lineup = append(lineup, gig.Lineup[idx+1:]...)
		models.Renumber(lineup)
		gig.Lineup = lineup
		gig.UpdatedAt = now
		batch.UpdateGig(gig)
	}

	removed := make([]*models.Booking, 0, len(approved))
	for i := range approved {
		b := &approved[i]
		next, err := m.fsm.Next(b.Status, booking.ActionRemove)
		if err != nil {
			return err
		}
		b.Status = next
		b.UpdatedAt = now
		batch.UpdateBooking(b)
		removed = append(removed, b)
	}

	if err := m.store.Apply(ctx, batch); err != nil {
		return store.Classify(err, "gig", gigID)
	}

	for _, b := range removed {
		metrics.IncBookingTransition(string(b.Status))
		if err := m.events.PublishJSON(events.BookingRemoved, events.BookingPayload{
			BookingID:  b.ID,
			GigID:      b.GigID,
			ComedianID: b.ComedianID,
			Status:     string(b.Status),
		}); err != nil {
			m.logger.Warn().Err(err).Str("booking_id", b.ID).Msg("event handlers failed")
		}
	}
	if idx >= 0 {
		m.publishLineup(gigID)
	}

	m.logger.Info().
		Str("gig_id", gigID).
		Str("comedian_id", comedianID).
		Int("bookings_removed", len(removed)).
		Msg("comedian removed from lineup")
	return nil
}

func (m *Manager) publishLineup(gigID string) {
	if err := m.events.PublishJSON(events.LineupUpdated, events.GigPayload{GigID: gigID}); err != nil {
		m.logger.Warn().Err(err).Str("gig_id", gigID).Msg("lineup event handlers failed")
	}
}
