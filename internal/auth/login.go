package auth

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"gigbook/internal/domain"
)

// Credentials configures the administrator login.
type Credentials struct {
	Email        string // only this address may log in
	PasswordHash string // hex PBKDF2 hash; takes precedence over Password
	Password     string // plaintext fallback for setups without a hash
	Salt         string
	Secret       []byte
	AllowHash    bool
}

// LoginResult is returned by Login.
type LoginResult struct {
	Token     string `json:"token"`
	Email     string `json:"email"`
	ExpiresIn int64  `json:"expiresIn"`
}

// VerifyResult is returned by Verify.
type VerifyResult struct {
	Valid     bool   `json:"valid"`
	Email     string `json:"email,omitempty"`
	ExpiresIn int64  `json:"expiresIn,omitempty"`
}

// Authenticator runs the admin login, verify and hash actions.
type Authenticator struct {
	creds  Credentials
	now    func() time.Time
	logger zerolog.Logger
}

// NewAuthenticator creates an authenticator. A nil clock means time.Now.
func NewAuthenticator(creds Credentials, now func() time.Time, logger zerolog.Logger) *Authenticator {
	if now == nil {
		now = time.Now
	}
	return &Authenticator{
		creds:  creds,
		now:    now,
		logger: logger.With().Str("component", "admin-auth").Logger(),
	}
}

// Login checks email and password and issues an admin token.
func (a *Authenticator) Login(email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, domain.Validation("credentials", "email and password are required")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if a.creds.Email == "" || len(a.creds.Secret) == 0 {
		a.logger.Error().Msg("admin login is not configured")
		return nil, domain.ErrUnauthenticated
	}

	ok := strings.EqualFold(email, a.creds.Email) && a.checkPassword(password)
	if !ok {
		a.logger.Warn().Str("email", email).Msg("admin login failed")
		return nil, domain.ErrUnauthenticated
	}

	token, err := IssueToken(email, a.creds.Secret, a.now())
	if err != nil {
		return nil, err
	}
	a.logger.Info().Str("email", email).Msg("admin login")
	return &LoginResult{Token: token, Email: email, ExpiresIn: int64(TokenTTL / time.Second)}, nil
}

func (a *Authenticator) checkPassword(password string) bool {
	if a.creds.PasswordHash != "" {
		return VerifyPassword(password, a.creds.Salt, a.creds.PasswordHash)
	}
	if a.creds.Password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(a.creds.Password)) == 1
}

// Verify reports whether token is still valid and how long it has left.
func (a *Authenticator) Verify(token string) VerifyResult {
	now := a.now()
	p, err := VerifyTokenAt(token, a.creds.Secret, now)
	if err != nil {
		return VerifyResult{Valid: false}
	}
	return VerifyResult{
		Valid:     true,
		Email:     p.Email,
		ExpiresIn: int64(p.Expires().Sub(now) / time.Second),
	}
}

// Hash returns the stored form of password, for initial setup.
func (a *Authenticator) Hash(password string) (string, error) {
	if !a.creds.AllowHash {
		return "", domain.ErrForbidden
	}
	if password == "" {
		return "", domain.Validation("password", "is required")
	}
	return HashPassword(password, a.creds.Salt), nil
}
