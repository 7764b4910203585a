package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"gigbook/internal/domain"
	"gigbook/internal/events"
	"gigbook/internal/metrics"
	"gigbook/internal/models"
	"gigbook/internal/slots"
	"gigbook/internal/store"
)

var activeStatuses = []models.BookingStatus{models.StatusPending, models.StatusApproved}

// LineupRemover takes a comedian off a gig and cascades their bookings.
type LineupRemover interface {
	Remove(ctx context.Context, gigID, comedianID string) error
}

// CreateRequest is a comedian's request for a spot.
type CreateRequest struct {
	GigID             string
	Comedian          models.IdentityClaim
	RequestedSpotType string
	Message           string
}

// ListFilter narrows the admin booking list.
type ListFilter struct {
	GigID  string
	Status models.BookingStatus
}

// Grouped holds one comedian's bookings by status.
type Grouped struct {
	Pending  []models.BookingWithGig `json:"pending"`
	Approved []models.BookingWithGig `json:"approved"`
	Rejected []models.BookingWithGig `json:"rejected"`
	Removed  []models.BookingWithGig `json:"removed"`
}

// Service runs the booking lifecycle against the store.
type Service struct {
	store  store.Store
	fsm    *FSM
	lineup LineupRemover
	events events.Publisher
	now    func() time.Time
	newID  func() string
	logger zerolog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDs overrides the booking id generator.
func WithIDs(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService creates a booking service.
func NewService(st store.Store, lineup LineupRemover, pub events.Publisher, logger zerolog.Logger, opts ...Option) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	s := &Service{
		store:  st,
		fsm:    NewFSM(),
		lineup: lineup,
		events: pub,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: logger.With().Str("component", "booking").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create records a pending request. Capacity is not checked here; it is
// enforced on approval.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Booking, error) {
	if req.GigID == "" {
		return nil, domain.Validation("gigId", "is required")
	}
	if req.Comedian.SubjectID == "" {
		return nil, domain.ErrUnauthenticated
	}

	if _, err := s.store.GetGig(ctx, req.GigID); err != nil {
		return nil, s.reject("create", store.Classify(err, "gig", req.GigID))
	}

	existing, err := s.store.ListBookings(ctx, store.BookingFilter{
		GigID:      req.GigID,
		ComedianID: req.Comedian.SubjectID,
		Statuses:   activeStatuses,
	})
	if err != nil {
		return nil, domain.Upstream("store", err)
	}
	if len(existing) > 0 {
		return nil, s.reject("create", domain.Conflict("you already have a booking request for this gig"))
	}

	name := strings.TrimSpace(req.Comedian.DisplayName)
	if name == "" {
		name = req.Comedian.Email
	}
	now := s.now()
	b := &models.Booking{
		ID:                s.newID(),
		GigID:             req.GigID,
		ComedianID:        req.Comedian.SubjectID,
		ComedianEmail:     strings.ToLower(req.Comedian.Email),
		ComedianName:      name,
		RequestedSpotType: strings.TrimSpace(req.RequestedSpotType),
		Message:           req.Message,
		Status:            models.StatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.store.Apply(ctx, store.NewBatch().InsertBooking(b)); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, s.reject("create", domain.Conflict("you already have a booking request for this gig"))
		}
		return nil, domain.Upstream("store", err)
	}

	metrics.IncBookingTransition(string(models.StatusPending))
	s.publish(events.BookingCreated, b, "")
	s.logger.Info().Str("booking_id", b.ID).Str("gig_id", b.GigID).Str("comedian_id", b.ComedianID).Msg("booking requested")
	return b, nil
}

// Approve moves a pending booking into the gig's lineup. The gig and booking
// writes are applied as one version-checked batch.
func (s *Service) Approve(ctx context.Context, bookingID, admin string) (*models.Booking, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, s.reject("approve", store.Classify(err, "booking", bookingID))
	}
	next, err := s.fsm.Next(b.Status, ActionApprove)
	if err != nil {
		return nil, s.reject("approve", err)
	}

	gig, err := s.store.GetGig(ctx, b.GigID)
	if err != nil {
		return nil, s.reject("approve", store.Classify(err, "gig", b.GigID))
	}
	if gig.IsFull() {
		return nil, s.reject("approve", domain.Conflict("gig %s is full (%d of %d)", gig.ID, len(gig.Lineup), gig.Capacity()))
	}
	if gig.LineupIndex(b.ComedianID) >= 0 {
		return nil, s.reject("approve", domain.Conflict("comedian is already in the lineup"))
	}

	var spot *int
	if gig.HasSpots() {
		idx, ok := slots.Assign(gig.Spots, gig.Lineup, b.RequestedSpotType)
		if !ok {
			return nil, s.reject("approve", domain.Conflict("gig %s has no free spot", gig.ID))
		}
		spot = models.IntPtr(idx)
	}

	now := s.now()
	gig.Lineup = append(gig.Lineup, models.LineupEntry{
		ComedianID: b.ComedianID,
		Name:       b.ComedianName,
		Email:      b.ComedianEmail,
		Order:      len(gig.Lineup) + 1,
		SpotIndex:  spot,
	})
	gig.UpdatedAt = now

	b.Status = next
	b.AssignedSpotIndex = spot
	b.ApprovedBy = admin
	b.ApprovedAt = &now
	b.UpdatedAt = now

	if err := s.store.Apply(ctx, store.NewBatch().UpdateGig(gig).UpdateBooking(b)); err != nil {
		return nil, s.reject("approve", store.Classify(err, "booking", bookingID))
	}

	metrics.IncBookingTransition(string(next))
	s.publish(events.BookingApproved, b, admin)
	if err := s.events.PublishJSON(events.LineupUpdated, events.GigPayload{GigID: gig.ID}); err != nil {
		s.logger.Warn().Err(err).Str("gig_id", gig.ID).Msg("lineup event handlers failed")
	}
	s.logger.Info().
		Str("booking_id", b.ID).
		Str("gig_id", gig.ID).
		Str("admin", admin).
		Str("spot", gig.SpotLabel(spot)).
		Msg("booking approved")
	return b, nil
}

// Reject closes a pending booking with an optional reason.
func (s *Service) Reject(ctx context.Context, bookingID, reason, admin string) (*models.Booking, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, s.reject("reject", store.Classify(err, "booking", bookingID))
	}
	next, err := s.fsm.Next(b.Status, ActionReject)
	if err != nil {
		return nil, s.reject("reject", err)
	}

	b.Status = next
	b.RejectionReason = strings.TrimSpace(reason)
	b.UpdatedAt = s.now()

	if err := s.store.Apply(ctx, store.NewBatch().UpdateBooking(b)); err != nil {
		return nil, s.reject("reject", store.Classify(err, "booking", bookingID))
	}

	metrics.IncBookingTransition(string(next))
	s.publish(events.BookingRejected, b, admin)
	s.logger.Info().Str("booking_id", b.ID).Str("admin", admin).Msg("booking rejected")
	return b, nil
}

// Remove takes the comedian off the gig's lineup; see lineup.Manager.Remove.
func (s *Service) Remove(ctx context.Context, gigID, comedianID string) error {
	return s.lineup.Remove(ctx, gigID, comedianID)
}

// Decide dispatches an admin action on a single booking.
func (s *Service) Decide(ctx context.Context, bookingID string, action Action, reason, admin string) (*models.Booking, error) {
	switch action {
	case ActionApprove:
		return s.Approve(ctx, bookingID, admin)
	case ActionReject:
		return s.Reject(ctx, bookingID, reason, admin)
	case ActionRemove:
		b, err := s.store.GetBooking(ctx, bookingID)
		if err != nil {
			return nil, store.Classify(err, "booking", bookingID)
		}
		if _, err := s.fsm.Next(b.Status, ActionRemove); err != nil {
			return nil, s.reject("remove", err)
		}
		if err := s.Remove(ctx, b.GigID, b.ComedianID); err != nil {
			return nil, err
		}
		return s.Get(ctx, bookingID)
	default:
		return nil, domain.Validation("action", "unknown action %s", action)
	}
}

// Get returns one booking.
func (s *Service) Get(ctx context.Context, bookingID string) (*models.Booking, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, store.Classify(err, "booking", bookingID)
	}
	return b, nil
}

// List returns bookings newest first, each with its gig.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]models.BookingWithGig, error) {
	f := store.BookingFilter{GigID: filter.GigID}
	if filter.Status != "" {
		if !filter.Status.Valid() {
			return nil, domain.Validation("status", "unknown status %q", filter.Status)
		}
		f.Statuses = []models.BookingStatus{filter.Status}
	}
	bookings, err := s.store.ListBookings(ctx, f)
	if err != nil {
		return nil, domain.Upstream("store", err)
	}
	return s.withGigs(ctx, bookings)
}

// MyGigs returns a comedian's bookings grouped by status.
func (s *Service) MyGigs(ctx context.Context, comedianID string) (*Grouped, error) {
	if comedianID == "" {
		return nil, domain.ErrUnauthenticated
	}
	bookings, err := s.store.ListBookings(ctx, store.BookingFilter{ComedianID: comedianID})
	if err != nil {
		return nil, domain.Upstream("store", err)
	}
	enriched, err := s.withGigs(ctx, bookings)
	if err != nil {
		return nil, err
	}

	g := &Grouped{
		Pending:  []models.BookingWithGig{},
		Approved: []models.BookingWithGig{},
		Rejected: []models.BookingWithGig{},
		Removed:  []models.BookingWithGig{},
	}
	for _, b := range enriched {
		switch b.Status {
		case models.StatusPending:
			g.Pending = append(g.Pending, b)
		case models.StatusApproved:
			g.Approved = append(g.Approved, b)
		case models.StatusRejected:
			g.Rejected = append(g.Rejected, b)
		case models.StatusRemoved:
			g.Removed = append(g.Removed, b)
		}
	}
	return g, nil
}

// withGigs attaches each booking's gig, loading every gig once. Bookings of
// deleted gigs keep a nil gig.
func (s *Service) withGigs(ctx context.Context, bookings []models.Booking) ([]models.BookingWithGig, error) {
	gigs := make(map[string]*models.Gig)
	out := make([]models.BookingWithGig, 0, len(bookings))
	for _, b := range bookings {
		g, seen := gigs[b.GigID]
		if !seen {
			var err error
			g, err = s.store.GetGig(ctx, b.GigID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return nil, domain.Upstream("store", err)
			}
			gigs[b.GigID] = g
		}
		out = append(out, models.BookingWithGig{Booking: b, Gig: g})
	}
	return out, nil
}

func (s *Service) publish(eventType string, b *models.Booking, actor string) {
	err := s.events.PublishJSON(eventType, events.BookingPayload{
		BookingID:  b.ID,
		GigID:      b.GigID,
		ComedianID: b.ComedianID,
		Status:     string(b.Status),
		SpotIndex:  b.AssignedSpotIndex,
		Actor:      actor,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Str("booking_id", b.ID).Msg("event handlers failed")
	}
}

// reject counts guard failures and passes the error through.
func (s *Service) reject(op string, err error) error {
	kind := domain.KindOf(err)
	if kind != domain.KindUpstream && kind != domain.KindInternal {
		metrics.IncGuardRejection(op, string(kind))
	}
	return err
}
