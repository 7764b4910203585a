package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gigbook/internal/models"
)

// Memory is an in-process Store. Documents are copied on the way in and out.
type Memory struct {
	mu        sync.RWMutex
	gigs      map[string]*models.Gig
	bookings  map[string]*models.Booking
	comedians map[string]*models.Comedian
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		gigs:      make(map[string]*models.Gig),
		bookings:  make(map[string]*models.Booking),
		comedians: make(map[string]*models.Comedian),
	}
}

func (m *Memory) GetGig(_ context.Context, id string) (*models.Gig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.gigs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return g.Clone(), nil
}

func (m *Memory) ListGigs(_ context.Context, filter GigFilter) ([]models.Gig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Gig, 0, len(m.gigs))
	for _, g := range m.gigs {
		if filter.Matches(g) {
			out = append(out, *g.Clone())
		}
	}
	SortGigs(out)
	return out, nil
}

func (m *Memory) GetBooking(_ context.Context, id string) (*models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return b.Clone(), nil
}

func (m *Memory) ListBookings(_ context.Context, filter BookingFilter) ([]models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Booking, 0)
	for _, b := range m.bookings {
		if filter.Matches(b) {
			out = append(out, *b.Clone())
		}
	}
	SortBookings(out)
	return out, nil
}

func (m *Memory) GetComedian(_ context.Context, id string) (*models.Comedian, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.comedians[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *Memory) ListComedians(_ context.Context) ([]models.Comedian, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Comedian, 0, len(m.comedians))
	for _, c := range m.comedians {
		out = append(out, *c)
	}
	SortComedians(out)
	return out, nil
}

// Apply stages the batch on copies of the maps and swaps them in only if every op succeeds.
func (m *Memory) Apply(_ context.Context, b *Batch) error {
	if b.Empty() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	gigs := copyMap(m.gigs)
	bookings := copyMap(m.bookings)
	comedians := copyMap(m.comedians)

	for i, op := range b.Ops {
		if err := applyMemoryOp(op, gigs, bookings, comedians); err != nil {
			return fmt.Errorf("op %d %s %s: %w", i, op.Kind, op.ID, err)
		}
	}

	m.gigs, m.bookings, m.comedians = gigs, bookings, comedians
	b.Committed()
	return nil
}

func applyMemoryOp(op Op, gigs map[string]*models.Gig, bookings map[string]*models.Booking, comedians map[string]*models.Comedian) error {
	switch op.Kind {
	case OpInsertGig:
		if _, ok := gigs[op.ID]; ok {
			return ErrDuplicate
		}
		g := op.Gig.Clone()
		g.Version = 1
		gigs[op.ID] = g
	case OpUpdateGig:
		cur, ok := gigs[op.ID]
		if !ok {
			return ErrNotFound
		}
		if cur.Version != op.Gig.Version {
			return ErrVersionConflict
		}
		g := op.Gig.Clone()
		g.Version++
		gigs[op.ID] = g
	case OpDeleteGig:
		if _, ok := gigs[op.ID]; !ok {
			return ErrNotFound
		}
		delete(gigs, op.ID)
	case OpInsertBooking:
		if _, ok := bookings[op.ID]; ok {
			return ErrDuplicate
		}
		if hasActive(bookings, op.Booking) {
			return ErrDuplicate
		}
		bk := op.Booking.Clone()
		bk.Version = 1
		bookings[op.ID] = bk
	case OpUpdateBooking:
		cur, ok := bookings[op.ID]
		if !ok {
			return ErrNotFound
		}
		if cur.Version != op.Booking.Version {
			return ErrVersionConflict
		}
		if hasActive(bookings, op.Booking) {
			return ErrDuplicate
		}
		bk := op.Booking.Clone()
		bk.Version++
		bookings[op.ID] = bk
	case OpDeleteGigBookings:
		for id, bk := range bookings {
			if bk.GigID == op.ID {
				delete(bookings, id)
			}
		}
	case OpPutComedian:
		cur, ok := comedians[op.ID]
		switch {
		case op.Comedian.Version == 0 && ok:
			return ErrDuplicate
		case op.Comedian.Version != 0 && !ok:
			return ErrNotFound
		case ok && cur.Version != op.Comedian.Version:
			return ErrVersionConflict
		}
		c := *op.Comedian
		c.Version++
		comedians[op.ID] = &c
	default:
		return fmt.Errorf("unsupported op %d", op.Kind)
	}
	return nil
}

// hasActive reports whether another active booking exists for b's gig and comedian.
func hasActive(bookings map[string]*models.Booking, b *models.Booking) bool {
	if !b.Status.Active() {
		return false
	}
	for id, other := range bookings {
		if id == b.ID {
			continue
		}
		if other.GigID == b.GigID && other.ComedianID == b.ComedianID && other.Status.Active() {
			return true
		}
	}
	return false
}

func copyMap[T any](src map[string]*T) map[string]*T {
	dst := make(map[string]*T, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

// SortGigs orders gigs by date, then time, then id.
func SortGigs(gigs []models.Gig) {
	sort.SliceStable(gigs, func(i, j int) bool {
		if gigs[i].Date != gigs[j].Date {
			return gigs[i].Date < gigs[j].Date
		}
		if gigs[i].Time != gigs[j].Time {
			return gigs[i].Time < gigs[j].Time
		}
		return gigs[i].ID < gigs[j].ID
	})
}

// SortBookings orders bookings newest first.
func SortBookings(bookings []models.Booking) {
	sort.SliceStable(bookings, func(i, j int) bool {
		if !bookings[i].CreatedAt.Equal(bookings[j].CreatedAt) {
			return bookings[i].CreatedAt.After(bookings[j].CreatedAt)
		}
		return bookings[i].ID < bookings[j].ID
	})
}

// SortComedians orders profiles by name.
func SortComedians(cs []models.Comedian) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Name != cs[j].Name {
			return cs[i].Name < cs[j].Name
		}
		return cs[i].ID < cs[j].ID
	})
}
