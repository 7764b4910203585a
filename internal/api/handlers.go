package api

import (
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"gigbook/internal/auth"
	"gigbook/internal/booking"
	"gigbook/internal/domain"
	"gigbook/internal/export"
	"gigbook/internal/gigs"
	"gigbook/internal/lineup"
	"gigbook/internal/models"
	"gigbook/internal/notify"
	"gigbook/internal/profile"
)

type adminAuthRequest struct {
	Action   string `json:"action"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Token    string `json:"token"`
}

func (s *Server) adminAuth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req adminAuthRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, &s.logger, err)
		return
	}

	switch req.Action {
	case "login":
		res, err := s.deps.Auth.Login(req.Email, req.Password)
		if err != nil {
			writeError(w, &s.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	case "verify":
		token := req.Token
		if token == "" {
			token = r.Header.Get(auth.AdminTokenHeader)
		}
		res := s.deps.Auth.Verify(token)
		if !res.Valid {
			writeJSON(w, http.StatusUnauthorized, res)
			return
		}
		writeJSON(w, http.StatusOK, res)
	case "hash":
		h, err := s.deps.Auth.Hash(req.Password)
		if err != nil {
			writeError(w, &s.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"hash": h})
	default:
		writeError(w, &s.logger, domain.Validation("action", "must be login, verify or hash"))
	}
}

func (s *Server) adminCheck(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	d := s.deps.Gate.CheckAdmin(r.Header, claimFrom(r.Context()))
	writeJSON(w, http.StatusOK, auth.ReportOf(d))
}

func (s *Server) listGigs(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := r.URL.Query()
	views, err := s.deps.Gigs.List(r.Context(), gigs.ListFilter{
		Status:   q.Get("status"),
		ShowPast: q.Get("showPast") == "true",
	})
	if err != nil {
		writeError(w, &s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"gigs": views})
}

func (s *Server) createGig(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req gigs.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, &s.logger, err)
		return
	}
	g, err := s.deps.Gigs.Create(r.Context(), req)
	if err != nil {
		writeError(w, &s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"gigId": g.ID, "gig": gigs.NewView(g)})
}

func (s *Server) updateGig(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req gigs.UpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, &s.logger, err)
		return
	}
	g, err := s.deps.Gigs.Update(r.Context(), ps.ByName("id"), req)
	if err != nil {
		writeError(w, &s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"gig": gigs.NewView(g)})
}

func (s *Server) deleteGig(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := s.deps.Gigs.Delete(r.Context(), ps.ByName("id")); err != nil {
		writeError(w, &s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createBookingRequest struct {
	RequestedSpotType string `json:"requestedSpotType"`
	Message           string `json:"message"`
}

func (s *Server) createBooking(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req createBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, &s.logger, err)
		return
	}
	b, err := s.deps.Bookings.Create(r.Context(), booking.CreateRequest{
		GigID:             ps.ByName("id"),
		Comedian:          *claimFrom(r.Context()),
		RequestedSpotType: req.RequestedSpotType,
		Message:           req.Message,
	})
	if err != nil {
		writeError(w, &s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"bookingId": b.ID, "booking": b})
}

type lineupRequest struct {
	Action     string               `json:"action"`
	Lineup     []models.LineupEntry `json:"lineup"`
	ComedianID string               `json:"comedianId"`
}

func (s *Server) editLineup(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req lineupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, &s.logger, err)
		return
	}
	op, err := lineup.ParseOperation(req.Action)
	if err != nil {
		writeError(w, &s.logger, err)
		return
	}
	g, err := s.deps.Lineup.Execute(r.Context(), lineup.Command{
		Op:         op,
		GigID:      ps.ByName("id"),
		Entries:    req.Lineup,
		ComedianID: req.ComedianID,
	})
	if err != nil {
		writeError(w, &s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"gig": gigs.NewView(g)})
}

func bookingFilter(r *http.Request) booking.ListFilter {
	q := r.URL.Query()
	return booking.ListFilter{GigID: q.Get("gigId"), Status: models.BookingStatus(q.Get("status"))}
}

func (s *Server) listBookings(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list, err := s.deps.Bookings.List(r.Context(), bookingFilter(r))
	if err != nil {
		writeError(w, &s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": list})
}

func (s *Server) exportBookings(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list, err := s.deps.Bookings.List(r.Context(), bookingFilter(r))
	if err != nil {
		writeError(w, &s.logger, err)
		return
	}

	bookings := make([]models.Booking, len(list))
	byID := make(map[string]*models.Gig)
	for i, b := range list {
		bookings[i] = b.Booking
		if b.Gig != nil {
			byID[b.GigID] = b.Gig
		}
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="bookings.xlsx"`)
	if err := export.WriteBookings(w, bookings, byID); err != nil {
		s.logger.Error().Err(err).Msg("booking export failed")
	}
}

type decisionRequest struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

func (s *Server) decideBooking(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req decisionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, &s.logger, err)
		return
	}
	action, err := booking.ParseAction(req.Action)
	if err != nil {
		writeError(w, &s.logger, err)
		return
	}
	b, err := s.deps.Bookings.Decide(r.Context(), ps.ByName("id"), action, req.Reason, adminFrom(r.Context()).Email)
	if err != nil {
		writeError(w, &s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"booking": b})
}

func (s *Server) myGigs(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	grouped, err := s.deps.Bookings.MyGigs(r.Context(), claimFrom(r.Context()).SubjectID)
	if err != nil {
		writeError(w, &s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, grouped)
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	p, err := s.deps.Profiles.Get(r.Context(), *claimFrom(r.Context()))
	if err != nil {
		writeError(w, &s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var patch profile.Patch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, &s.logger, err)
		return
	}
	c, err := s.deps.Profiles.Update(r.Context(), *claimFrom(r.Context()), patch)
	if err != nil {
		writeError(w, &s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": c})
}

func (s *Server) listComedians(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	cs, err := s.deps.Profiles.ListComedians(r.Context())
	if err != nil {
		writeError(w, &s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comedians": cs})
}

type notificationRequest struct {
	Type      string `json:"type"`
	GigID     string `json:"gigId"`
	BookingID string `json:"bookingId"`
}

func (s *Server) sendNotification(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req notificationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, &s.logger, err)
		return
	}
	typ, err := notify.ParseType(strings.TrimSpace(req.Type))
	if err != nil {
		writeError(w, &s.logger, err)
		return
	}
	res, err := s.deps.Notify.Dispatch(r.Context(), notify.Request{Type: typ, GigID: req.GigID, BookingID: req.BookingID})
	if err != nil {
		writeError(w, &s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
