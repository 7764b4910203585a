// Package api exposes the booking services over HTTP.
package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"gigbook/internal/auth"
	"gigbook/internal/booking"
	"gigbook/internal/gigs"
	"gigbook/internal/lineup"
	"gigbook/internal/notify"
	"gigbook/internal/profile"
)

// Deps are the services behind the API.
type Deps struct {
	Auth     *auth.Authenticator
	Gate     *auth.Gate
	Identity *auth.IdentityVerifier
	Bookings *booking.Service
	Lineup   *lineup.Manager
	Gigs     *gigs.Service
	Profiles *profile.Service
	Notify   *notify.Service

	CORSOrigins []string
	LoginRate   int // admin auth attempts per IP per minute
}

type Server struct {
	deps    Deps
	router  *httprouter.Router
	limiter *ipLimiter
	logger  zerolog.Logger
}

func NewServer(deps Deps, logger zerolog.Logger) *Server {
	s := &Server{
		deps:    deps,
		router:  httprouter.New(),
		limiter: newIPLimiter(deps.LoginRate),
		logger:  logger.With().Str("component", "api").Logger(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	handle := func(method, path string, h httprouter.Handle) {
		r.Handle(method, path, instrument(path, h))
	}

	handle(http.MethodPost, "/api/admin/auth", s.limiter.Limit(s.adminAuth))
	handle(http.MethodGet, "/api/admin/check", s.adminCheck)

	handle(http.MethodGet, "/api/gigs", s.listGigs)
	handle(http.MethodPost, "/api/gigs", s.requireAdmin(s.createGig))
	handle(http.MethodPut, "/api/gigs/:id", s.requireAdmin(s.updateGig))
	handle(http.MethodDelete, "/api/gigs/:id", s.requireAdmin(s.deleteGig))
	handle(http.MethodPost, "/api/gigs/:id/bookings", s.requireIdentity(s.createBooking))
	handle(http.MethodPost, "/api/gigs/:id/lineup", s.requireAdmin(s.editLineup))

	handle(http.MethodGet, "/api/bookings", s.requireAdmin(s.listBookings))
	handle(http.MethodGet, "/api/export/bookings", s.requireAdmin(s.exportBookings))
	handle(http.MethodPost, "/api/bookings/:id/decision", s.requireAdmin(s.decideBooking))

	handle(http.MethodGet, "/api/me/gigs", s.requireIdentity(s.myGigs))
	handle(http.MethodGet, "/api/profile", s.requireIdentity(s.getProfile))
	handle(http.MethodPost, "/api/profile", s.requireIdentity(s.updateProfile))
	handle(http.MethodGet, "/api/comedians", s.requireAdmin(s.listComedians))
	handle(http.MethodPost, "/api/notifications", s.requireAdmin(s.sendNotification))

	r.NotFound = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
	r.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})
}

// Handler returns the router wrapped as CORS → security headers → logging → identity.
func (s *Server) Handler() http.Handler {
	origins := s.deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", auth.AdminTokenHeader},
	})
	return c.Handler(securityHeaders(s.logging(s.identity(s.router))))
}
