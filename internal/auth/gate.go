package auth

import (
	"net/http"
	"strings"
	"time"

	"gigbook/internal/models"
)

// AdminTokenHeader carries the custom admin token.
const AdminTokenHeader = "X-Admin-Token"

// Method tells which credential produced a decision.
type Method string

const (
	MethodToken    Method = "token"
	MethodIdentity Method = "identity"
	MethodNone     Method = "none"
)

// DenyReason is the opaque reason reported for a denied decision.
type DenyReason string

const (
	ReasonInvalidToken  DenyReason = "invalid-or-expired"
	ReasonNotAdmin      DenyReason = "not-admin"
	ReasonNoCredentials DenyReason = "no-credentials"
)

// Decision is the closed result of CheckAdmin: AdminIdentity or Denied.
type Decision interface {
	decision()
	IsAdmin() bool
}

// AdminIdentity grants admin capability.
type AdminIdentity struct {
	Email  string
	Method Method
}

// Denied refuses admin capability.
type Denied struct {
	Method Method
	Email  string
	Reason DenyReason
}

func (AdminIdentity) decision() {}
func (Denied) decision()        {}

func (AdminIdentity) IsAdmin() bool { return true }
func (Denied) IsAdmin() bool        { return false }

// AllowList is a case-insensitive set of admin emails.
type AllowList map[string]struct{}

// NewAllowList builds an allow-list, ignoring blanks.
func NewAllowList(emails ...string) AllowList {
	al := make(AllowList, len(emails))
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			al[e] = struct{}{}
		}
	}
	return al
}

// ParseAllowList splits a comma separated list.
func ParseAllowList(csv string) AllowList {
	return NewAllowList(strings.Split(csv, ",")...)
}

// Contains reports whether email is allowed.
func (al AllowList) Contains(email string) bool {
	_, ok := al[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// Gate decides admin capability for a request.
type Gate struct {
	secret []byte
	admins AllowList
	now    func() time.Time
}

// NewGate builds a gate. A nil clock means time.Now.
func NewGate(secret []byte, admins AllowList, now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{secret: secret, admins: admins, now: now}
}

// CheckAdmin decides from the admin token header first, then the identity claim.
// It has no side effects.
func (g *Gate) CheckAdmin(h http.Header, claim *models.IdentityClaim) Decision {
	if token := strings.TrimSpace(h.Get(AdminTokenHeader)); token != "" {
		p, err := VerifyTokenAt(token, g.secret, g.now())
		if err != nil {
			return Denied{Method: MethodToken, Reason: ReasonInvalidToken}
		}
		if !g.admins.Contains(p.Email) {
			return Denied{Method: MethodToken, Email: p.Email, Reason: ReasonNotAdmin}
		}
		return AdminIdentity{Email: p.Email, Method: MethodToken}
	}

	if claim != nil && claim.Email != "" {
		email := strings.ToLower(claim.Email)
		if !g.admins.Contains(email) {
			return Denied{Method: MethodIdentity, Email: email, Reason: ReasonNotAdmin}
		}
		return AdminIdentity{Email: email, Method: MethodIdentity}
	}

	return Denied{Method: MethodNone, Reason: ReasonNoCredentials}
}

// Report flattens a decision for the admin check endpoint.
type Report struct {
	IsAdmin bool   `json:"isAdmin"`
	Email   string `json:"email,omitempty"`
	Method  Method `json:"method"`
	Reason  string `json:"reason,omitempty"`
}

// ReportOf converts d to its wire form.
func ReportOf(d Decision) Report {
	switch v := d.(type) {
	case AdminIdentity:
		return Report{IsAdmin: true, Email: v.Email, Method: v.Method}
	case Denied:
		return Report{Email: v.Email, Method: v.Method, Reason: string(v.Reason)}
	default:
		return Report{Method: MethodNone, Reason: string(ReasonNoCredentials)}
	}
}
