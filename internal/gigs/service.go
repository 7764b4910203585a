// Package gigs manages the gig catalogue.
package gigs

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"gigbook/internal/domain"
	"gigbook/internal/events"
	"gigbook/internal/models"
	"gigbook/internal/slots"
	"gigbook/internal/store"
)

// Templates resolves named spot layouts.
type Templates interface {
	Lookup(name string) ([]models.Spot, bool)
}

// CreateRequest describes a new gig. Spots win over Template, which wins
// over SlotsTotal.
type CreateRequest struct {
	Venue       string        `json:"venue"`
	Date        string        `json:"date"`
	Time        string        `json:"time"`
	Description string        `json:"description"`
	Spots       []models.Spot `json:"spots"`
	Template    string        `json:"template"`
	SlotsTotal  int           `json:"slotsTotal"`
	Status      string        `json:"status"`
	Notify      bool          `json:"notifyComedians"`
}

// UpdateRequest carries the fields an admin may change. Nil means unchanged.
type UpdateRequest struct {
	Venue       *string        `json:"venue"`
	Date        *string        `json:"date"`
	Time        *string        `json:"time"`
	Description *string        `json:"description"`
	Spots       *[]models.Spot `json:"spots"`
	Template    *string        `json:"template"`
	SlotsTotal  *int           `json:"slotsTotal"`
	Status      *string        `json:"status"`
}

// ListFilter narrows List.
type ListFilter struct {
	Status   string
	ShowPast bool
}

// View is a gig as served to clients.
type View struct {
	models.Gig
	SlotsAvailable int              `json:"slotsAvailable"`
	SpotInfo       []slots.SpotInfo `json:"spotInfo,omitempty"`
}

// NewView annotates g with its free capacity.
func NewView(g *models.Gig) View {
	return View{Gig: *g, SlotsAvailable: g.SlotsAvailable(), SpotInfo: slots.Describe(g)}
}

// Service manages gigs.
type Service struct {
	store     store.Store
	templates Templates
	events    events.Publisher
	now       func() time.Time
	newID     func() string
	logger    zerolog.Logger
}

// NewService creates a gig service. templates may be nil.
func NewService(st store.Store, templates Templates, pub events.Publisher, now func() time.Time, logger zerolog.Logger) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:     st,
		templates: templates,
		events:    pub,
		now:       now,
		newID:     uuid.NewString,
		logger:    logger.With().Str("component", "gigs").Logger(),
	}
}

// Create validates and stores a new gig.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Gig, error) {
	venue := strings.TrimSpace(req.Venue)
	if venue == "" {
		return nil, domain.Validation("venue", "is required")
	}
	if err := validateDate(req.Date); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Time) == "" {
		return nil, domain.Validation("time", "is required")
	}

	spots, err := s.resolveSpots(req.Spots, req.Template)
	if err != nil {
		return nil, err
	}
	if len(spots) == 0 && req.SlotsTotal <= 0 {
		return nil, domain.Validation("slotsTotal", "spots or a positive slotsTotal is required")
	}

	status := req.Status
	if status == "" {
		status = models.GigOpen
	}
	if err := validateStatus(status); err != nil {
		return nil, err
	}

	now := s.now()
	g := &models.Gig{
		ID:          s.newID(),
		Venue:       venue,
		Date:        req.Date,
		Time:        strings.TrimSpace(req.Time),
		Description: req.Description,
		Spots:       spots,
		Lineup:      []models.LineupEntry{},
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if len(spots) == 0 {
		g.SlotsTotal = req.SlotsTotal
	}

	if err := s.store.Apply(ctx, store.NewBatch().InsertGig(g)); err != nil {
		return nil, store.Classify(err, "gig", g.ID)
	}

	s.publish(events.GigCreated, events.GigPayload{GigID: g.ID, Notify: req.Notify})
	s.logger.Info().Str("gig_id", g.ID).Str("venue", g.Venue).Str("date", g.Date).Msg("gig created")
	return g, nil
}

// Update applies the allowed fields of req to the gig.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*models.Gig, error) {
	g, err := s.store.GetGig(ctx, id)
	if err != nil {
		return nil, store.Classify(err, "gig", id)
	}

	if req.Venue != nil {
		v := strings.TrimSpace(*req.Venue)
		if v == "" {
			return nil, domain.Validation("venue", "must not be empty")
		}
		g.Venue = v
	}
	if req.Date != nil {
		if err := validateDate(*req.Date); err != nil {
			return nil, err
		}
		g.Date = *req.Date
	}
	if req.Time != nil {
		t := strings.TrimSpace(*req.Time)
		if t == "" {
			return nil, domain.Validation("time", "must not be empty")
		}
		g.Time = t
	}
	if req.Description != nil {
		g.Description = *req.Description
	}
	if req.Status != nil {
		if err := validateStatus(*req.Status); err != nil {
			return nil, err
		}
		g.Status = *req.Status
	}
	if req.SlotsTotal != nil {
		if *req.SlotsTotal < 0 {
			return nil, domain.Validation("slotsTotal", "must not be negative")
		}
		g.SlotsTotal = *req.SlotsTotal
	}
	if req.Spots != nil || req.Template != nil {
		var inline []models.Spot
		var name string
		if req.Spots != nil {
			inline = *req.Spots
		}
		if req.Template != nil {
			name = *req.Template
		}
		spots, err := s.resolveSpots(inline, name)
		if err != nil {
			return nil, err
		}
		for _, e := range g.Lineup {
			if e.SpotIndex != nil && *e.SpotIndex >= len(spots) {
				return nil, domain.Validation("spots", "%s holds spot %d beyond the new layout", e.Name, *e.SpotIndex)
			}
		}
		g.Spots = spots
	}

	if g.Capacity() <= 0 {
		return nil, domain.Validation("slotsTotal", "spots or a positive slotsTotal is required")
	}
	if len(g.Lineup) > g.Capacity() {
		return nil, domain.Validation("capacity", "lineup has %d entries, capacity would be %d", len(g.Lineup), g.Capacity())
	}

	g.UpdatedAt = s.now()
	if err := s.store.Apply(ctx, store.NewBatch().UpdateGig(g)); err != nil {
		return nil, store.Classify(err, "gig", id)
	}

	s.publish(events.GigUpdated, events.GigPayload{GigID: id})
	s.logger.Info().Str("gig_id", id).Msg("gig updated")
	return g, nil
}

// Delete removes the gig and all of its bookings.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.store.GetGig(ctx, id); err != nil {
		return store.Classify(err, "gig", id)
	}
	if err := s.store.Apply(ctx, store.NewBatch().DeleteGigBookings(id).DeleteGig(id)); err != nil {
		return store.Classify(err, "gig", id)
	}
	s.publish(events.GigDeleted, events.GigPayload{GigID: id})
	s.logger.Info().Str("gig_id", id).Msg("gig deleted")
	return nil
}

// Get returns one gig.
func (s *Service) Get(ctx context.Context, id string) (*models.Gig, error) {
	g, err := s.store.GetGig(ctx, id)
	if err != nil {
		return nil, store.Classify(err, "gig", id)
	}
	return g, nil
}

// List returns upcoming gigs, or all gigs when ShowPast is set, in date order.
func (s *Service) List(ctx context.Context, f ListFilter) ([]View, error) {
	if f.Status != "" {
		if err := validateStatus(f.Status); err != nil {
			return nil, err
		}
	}
	filter := store.GigFilter{Status: f.Status}
	if !f.ShowPast {
		filter.FromDate = s.now().Format(models.DateLayout)
	}

	gigs, err := s.store.ListGigs(ctx, filter)
	if err != nil {
		return nil, domain.Upstream("store", err)
	}
	views := make([]View, len(gigs))
	for i := range gigs {
		views[i] = NewView(&gigs[i])
	}
	return views, nil
}

func (s *Service) resolveSpots(inline []models.Spot, template string) ([]models.Spot, error) {
	if len(inline) > 0 {
		for i, sp := range inline {
			if !sp.Valid() {
				return nil, domain.Validation("spots", "spot %d is invalid", i)
			}
		}
		return append([]models.Spot(nil), inline...), nil
	}
	template = strings.TrimSpace(template)
	if template == "" {
		return nil, nil
	}
	if s.templates == nil {
		return nil, domain.Validation("template", "no spot templates are configured")
	}
	spots, ok := s.templates.Lookup(template)
	if !ok {
		return nil, domain.Validation("template", "unknown template %q", template)
	}
	return spots, nil
}

func (s *Service) publish(eventType string, payload events.GigPayload) {
	if err := s.events.PublishJSON(eventType, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Str("gig_id", payload.GigID).Msg("event handlers failed")
	}
}

func validateDate(date string) error {
	if date == "" {
		return domain.Validation("date", "is required")
	}
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return domain.Validation("date", "must be YYYY-MM-DD")
	}
	return nil
}

func validateStatus(status string) error {
	switch status {
	case models.GigOpen, models.GigClosed, models.GigCancelled:
		return nil
	default:
		return domain.Validation("status", "unknown status %q", status)
	}
}
