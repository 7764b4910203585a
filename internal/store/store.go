// Package store defines the document store used by the services and an
// in-memory implementation. Backends live in subpackages.
package store

import (
	"context"
	"errors"

	"gigbook/internal/models"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrVersionConflict is returned when a document changed since it was read.
	ErrVersionConflict = errors.New("store: version conflict")
	// ErrDuplicate is returned when a write would create a second active booking
	// for the same gig and comedian, or reuse an id.
	ErrDuplicate = errors.New("store: duplicate")
)

// GigFilter narrows ListGigs. Zero values match everything.
type GigFilter struct {
	FromDate string // inclusive, YYYY-MM-DD
	Status   string
}

// BookingFilter narrows ListBookings. Zero values match everything.
type BookingFilter struct {
	GigID      string
	ComedianID string
	Statuses   []models.BookingStatus
}

// Matches reports whether b passes the filter.
func (f BookingFilter) Matches(b *models.Booking) bool {
	if f.GigID != "" && b.GigID != f.GigID {
		return false
	}
	if f.ComedianID != "" && b.ComedianID != f.ComedianID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if b.Status == s {
			return true
		}
	}
	return false
}

// Matches reports whether g passes the filter.
func (f GigFilter) Matches(g *models.Gig) bool {
	if f.FromDate != "" && g.Date < f.FromDate {
		return false
	}
	if f.Status != "" && g.Status != f.Status {
		return false
	}
	return true
}

// GigStore reads gigs.
type GigStore interface {
	GetGig(ctx context.Context, id string) (*models.Gig, error)
	ListGigs(ctx context.Context, filter GigFilter) ([]models.Gig, error)
}

// BookingStore reads bookings.
type BookingStore interface {
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]models.Booking, error)
}

// ComedianStore reads comedian profiles.
type ComedianStore interface {
	GetComedian(ctx context.Context, id string) (*models.Comedian, error)
	ListComedians(ctx context.Context) ([]models.Comedian, error)
}

// Store is the full document store. All writes go through Apply.
type Store interface {
	GigStore
	BookingStore
	ComedianStore

	// Apply executes every operation of the batch or none of them.
	// Updates are conditional on the document's Version; on success the
	// versions of the written documents are advanced in place.
	Apply(ctx context.Context, b *Batch) error

	Ping(ctx context.Context) error
	Close() error
}
