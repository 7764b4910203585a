package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"gigbook/internal/auth"
	"gigbook/internal/domain"
	"gigbook/internal/metrics"
	"gigbook/internal/models"
)

type ctxKey int

const (
	claimKey ctxKey = iota
	adminKey
)

func claimFrom(ctx context.Context) *models.IdentityClaim {
	c, _ := ctx.Value(claimKey).(*models.IdentityClaim)
	return c
}

func adminFrom(ctx context.Context) auth.AdminIdentity {
	a, _ := ctx.Value(adminKey).(auth.AdminIdentity)
	return a
}

// securityHeaders applies the usual hardening headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "frame-ancestors 'none'")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logging records method, path, status and duration of every request.
func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Str("remote", clientIP(r)).
			Msg("request")
	})
}

// instrument counts requests and latency under the route pattern.
func instrument(route string, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r, ps)
		metrics.ObserveHTTP(route, rec.status, time.Since(start))
	}
}

// identity attaches the verified identity claim, if any. A bad bearer token
// leaves the request anonymous.
func (s *Server) identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if token, ok := strings.CutPrefix(h, "Bearer "); ok && s.deps.Identity != nil {
			claim, err := s.deps.Identity.Verify(strings.TrimSpace(token))
			if err != nil {
				s.logger.Debug().Err(err).Msg("ignoring identity token")
			} else {
				r = r.WithContext(context.WithValue(r.Context(), claimKey, claim))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireIdentity(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if c := claimFrom(r.Context()); c == nil || c.SubjectID == "" {
			writeError(w, &s.logger, domain.ErrUnauthenticated)
			return
		}
		next(w, r, ps)
	}
}

// requireAdmin runs the admin gate. Missing or bad credentials are 401,
// a valid non-admin caller is 403.
func (s *Server) requireAdmin(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		d := s.deps.Gate.CheckAdmin(r.Header, claimFrom(r.Context()))
		switch v := d.(type) {
		case auth.AdminIdentity:
			metrics.IncAdminDecision(string(v.Method), true)
			next(w, r.WithContext(context.WithValue(r.Context(), adminKey, v)), ps)
		case auth.Denied:
			metrics.IncAdminDecision(string(v.Method), false)
			s.logger.Warn().Str("method", string(v.Method)).Str("email", v.Email).Str("reason", string(v.Reason)).Str("path", r.URL.Path).Msg("admin access denied")
			if v.Reason == auth.ReasonNotAdmin {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "admin access required"})
				return
			}
			writeError(w, &s.logger, domain.ErrUnauthenticated)
		}
	}
}
