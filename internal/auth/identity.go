package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gigbook/internal/models"
)

// ErrInvalidIdentity is returned for any unusable identity JWT.
var ErrInvalidIdentity = errors.New("invalid identity token")

type identityClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// IdentityVerifier turns the identity provider's HS256 JWT into a claim.
type IdentityVerifier struct {
	secret []byte
}

// NewIdentityVerifier creates a verifier for the shared secret.
func NewIdentityVerifier(secret []byte) *IdentityVerifier {
	return &IdentityVerifier{secret: secret}
}

// Verify parses and validates a bearer JWT.
func (v *IdentityVerifier) Verify(tokenString string) (*models.IdentityClaim, error) {
	if len(v.secret) == 0 {
		return nil, ErrInvalidIdentity
	}
	claims := &identityClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidIdentity
	}
	if claims.Subject == "" {
		return nil, ErrInvalidIdentity
	}
	return &models.IdentityClaim{
		SubjectID:   claims.Subject,
		Email:       strings.ToLower(claims.Email),
		DisplayName: claims.Name,
	}, nil
}

// Issue signs an identity JWT. Used by gigctl and tests; production identities come from the provider.
func (v *IdentityVerifier) Issue(claim models.IdentityClaim, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := identityClaims{
		Email: claim.Email,
		Name:  claim.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claim.SubjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
