// Package notify renders and sends comedian emails.
package notify

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"gigbook/internal/domain"
	"gigbook/internal/events"
	"gigbook/internal/metrics"
	"gigbook/internal/models"
	"gigbook/internal/store"
)

// Type names a notification.
type Type string

const (
	TypeNewGig          Type = "new_gig"
	TypeBookingApproved Type = "booking_approved"
	TypeLineupUpdated   Type = "lineup_updated"
	TypeGigReminder     Type = "gig_reminder"
)

// ParseType validates a wire notification type.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypeNewGig, TypeBookingApproved, TypeLineupUpdated, TypeGigReminder:
		return t, nil
	case "":
		return "", domain.Validation("type", "notification type is required")
	default:
		return "", domain.Validation("type", "unknown notification type %q", s)
	}
}

// Request asks for one notification.
type Request struct {
	Type      Type   `json:"type"`
	GigID     string `json:"gigId"`
	BookingID string `json:"bookingId"`
}

// Result reports what Dispatch sent.
type Result struct {
	EmailsSent int `json:"emailsSent"`
}

// Options configure a Service.
type Options struct {
	From    string
	SiteURL string
}

// Service builds notification emails from store state.
type Service struct {
	store  store.Store
	sender Sender
	opts   Options
	logger zerolog.Logger
}

func NewService(st store.Store, sender Sender, opts Options, logger zerolog.Logger) *Service {
	opts.SiteURL = strings.TrimRight(opts.SiteURL, "/")
	return &Service{
		store:  st,
		sender: sender,
		opts:   opts,
		logger: logger.With().Str("component", "notify").Logger(),
	}
}

// Dispatch sends the emails req asks for.
func (s *Service) Dispatch(ctx context.Context, req Request) (Result, error) {
	var (
		res Result
		err error
	)
	switch req.Type {
	case TypeNewGig:
		res, err = s.newGig(ctx, req.GigID)
	case TypeBookingApproved:
		res, err = s.bookingApproved(ctx, req.BookingID)
	case TypeLineupUpdated, TypeGigReminder:
		res, err = s.lineup(ctx, req.Type, req.GigID)
	default:
		_, err = ParseType(string(req.Type))
	}

	result := "ok"
	if err != nil {
		result = string(domain.KindOf(err))
	}
	metrics.IncNotification(string(req.Type), result)
	return res, err
}

func (s *Service) newGig(ctx context.Context, gigID string) (Result, error) {
	gig, err := s.gig(ctx, gigID)
	if err != nil {
		return Result{}, err
	}
	comedians, err := s.store.ListComedians(ctx)
	if err != nil {
		return Result{}, domain.Upstream("store", err)
	}

	data, err := s.data(gig)
	if err != nil {
		return Result{}, err
	}
	var res Result
	for _, c := range comedians {
		if c.Email == "" {
			continue
		}
		data.Name = c.Name
		if err := s.send(ctx, TypeNewGig, c.Email, data); err != nil {
			return res, err
		}
		res.EmailsSent++
	}
	return res, nil
}

func (s *Service) bookingApproved(ctx context.Context, bookingID string) (Result, error) {
	if bookingID == "" {
		return Result{}, domain.Validation("bookingId", "is required")
	}
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return Result{}, store.Classify(err, "booking", bookingID)
	}
	gig, err := s.gig(ctx, b.GigID)
	if err != nil {
		return Result{}, err
	}

	data, err := s.data(gig)
	if err != nil {
		return Result{}, err
	}
	data.Name = b.ComedianName
	if err := s.send(ctx, TypeBookingApproved, b.ComedianEmail, data); err != nil {
		return Result{}, err
	}
	return Result{EmailsSent: 1}, nil
}

func (s *Service) lineup(ctx context.Context, typ Type, gigID string) (Result, error) {
	gig, err := s.gig(ctx, gigID)
	if err != nil {
		return Result{}, err
	}
	data, err := s.data(gig)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, e := range gig.Lineup {
		if e.Email == "" {
			continue
		}
		data.Name = e.Name
		data.Position = e.Order
		if err := s.send(ctx, typ, e.Email, data); err != nil {
			return res, err
		}
		res.EmailsSent++
	}
	return res, nil
}

func (s *Service) gig(ctx context.Context, gigID string) (*models.Gig, error) {
	if gigID == "" {
		return nil, domain.Validation("gigId", "is required")
	}
	g, err := s.store.GetGig(ctx, gigID)
	if err != nil {
		return nil, store.Classify(err, "gig", gigID)
	}
	return g, nil
}

func (s *Service) data(g *models.Gig) (emailData, error) {
	desc, err := RenderDescription(g.Description)
	if err != nil {
		return emailData{}, domain.Validation("description", "cannot render: %v", err)
	}
	return emailData{Gig: g, Date: FormatDate(g.Date), Description: desc, SiteURL: s.opts.SiteURL}, nil
}

func (s *Service) send(ctx context.Context, typ Type, to string, data emailData) error {
	subject, html, err := render(typ, data)
	if err != nil {
		return err
	}
	id, err := s.sender.Send(ctx, Message{From: s.opts.From, To: []string{to}, Subject: subject, HTML: html})
	if err != nil {
		s.logger.Error().Err(err).Str("type", string(typ)).Str("to", to).Msg("email send failed")
		return domain.Upstream("send email", err)
	}
	s.logger.Info().Str("type", string(typ)).Str("to", to).Str("delivery_id", id).Msg("email sent")
	return nil
}

// Subscribe wires automatic notifications to bus. New gigs are announced
// when the creator asked for it or auto is set; approvals and lineup changes
// only when auto is set.
func (s *Service) Subscribe(bus *events.EventBus, auto bool) {
	bus.Subscribe(events.GigCreated, func(ev events.Event) error {
		var p events.GigPayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		if !p.Notify && !auto {
			return nil
		}
		return s.background(TypeNewGig, Request{Type: TypeNewGig, GigID: p.GigID})
	})
	if !auto {
		return
	}
	bus.Subscribe(events.BookingApproved, func(ev events.Event) error {
		var p events.BookingPayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		return s.background(TypeBookingApproved, Request{Type: TypeBookingApproved, BookingID: p.BookingID})
	})
	bus.Subscribe(events.LineupUpdated, func(ev events.Event) error {
		var p events.GigPayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		return s.background(TypeLineupUpdated, Request{Type: TypeLineupUpdated, GigID: p.GigID})
	})
}

// background dispatches outside the request context. A missing API key is
// not an error for automatic sends.
func (s *Service) background(typ Type, req Request) error {
	_, err := s.Dispatch(context.Background(), req)
	if errors.Is(err, ErrNotConfigured) {
		s.logger.Debug().Str("type", string(typ)).Msg("email not configured, skipping")
		return nil
	}
	return err
}
