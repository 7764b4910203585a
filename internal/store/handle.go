package store

import (
	"context"
	"sync"

	"gigbook/internal/models"
)

// Opener builds the backing store on first use.
type Opener func(ctx context.Context) (Store, error)

// Handle is the process-wide store connection. It opens the backend once on
// first use and reuses it afterwards. A failed open is not retried.
type Handle struct {
	open Opener
	once sync.Once
	st   Store
	err  error
}

// NewHandle wraps an opener.
func NewHandle(open Opener) *Handle {
	return &Handle{open: open}
}

// Get returns the shared store, opening it on the first call.
func (h *Handle) Get(ctx context.Context) (Store, error) {
	h.once.Do(func() {
		h.st, h.err = h.open(ctx)
	})
	return h.st, h.err
}

func (h *Handle) GetGig(ctx context.Context, id string) (*models.Gig, error) {
	st, err := h.Get(ctx)
	if err != nil {
		return nil, err
	}
	return st.GetGig(ctx, id)
}

func (h *Handle) ListGigs(ctx context.Context, filter GigFilter) ([]models.Gig, error) {
	st, err := h.Get(ctx)
	if err != nil {
		return nil, err
	}
	return st.ListGigs(ctx, filter)
}

func (h *Handle) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	st, err := h.Get(ctx)
	if err != nil {
		return nil, err
	}
	return st.GetBooking(ctx, id)
}

func (h *Handle) ListBookings(ctx context.Context, filter BookingFilter) ([]models.Booking, error) {
	st, err := h.Get(ctx)
	if err != nil {
		return nil, err
	}
	return st.ListBookings(ctx, filter)
}

func (h *Handle) GetComedian(ctx context.Context, id string) (*models.Comedian, error) {
	st, err := h.Get(ctx)
	if err != nil {
		return nil, err
	}
	return st.GetComedian(ctx, id)
}

func (h *Handle) ListComedians(ctx context.Context) ([]models.Comedian, error) {
	st, err := h.Get(ctx)
	if err != nil {
		return nil, err
	}
	return st.ListComedians(ctx)
}

func (h *Handle) Apply(ctx context.Context, b *Batch) error {
	st, err := h.Get(ctx)
	if err != nil {
		return err
	}
	return st.Apply(ctx, b)
}

func (h *Handle) Ping(ctx context.Context) error {
	st, err := h.Get(ctx)
	if err != nil {
		return err
	}
	return st.Ping(ctx)
}

// Close closes the backend if it was opened.
func (h *Handle) Close() error {
	if h.st == nil {
		return nil
	}
	return h.st.Close()
}
