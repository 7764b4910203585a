// Package auth implements the administrator access gate: signed admin tokens,
// password hashing, identity claims and the admin decision.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// TokenTTL is the lifetime of an admin token.
const TokenTTL = 24 * time.Hour

// ErrInvalidToken covers every verification failure: bad shape, bad encoding,
// bad signature or expiry. Callers get no detail about which one.
var ErrInvalidToken = errors.New("invalid or expired token")

var b64 = base64.RawURLEncoding

// Payload is the signed content of an admin token. Times are Unix milliseconds.
type Payload struct {
	Email     string `json:"email"`
	IssuedAt  int64  `json:"issuedAt"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Expires returns the expiry as time.
func (p Payload) Expires() time.Time {
	return time.UnixMilli(p.ExpiresAt)
}

// IssueToken mints a token for email valid for TokenTTL from now.
func IssueToken(email string, secret []byte, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("empty token secret")
	}
	p := Payload{
		Email:     strings.ToLower(strings.TrimSpace(email)),
		IssuedAt:  now.UnixMilli(),
		ExpiresAt: now.Add(TokenTTL).UnixMilli(),
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	encoded := b64.EncodeToString(raw)
	return encoded + "." + sign(encoded, secret), nil
}

// VerifyToken checks token against secret at the current time.
func VerifyToken(token string, secret []byte) (Payload, error) {
	return VerifyTokenAt(token, secret, time.Now())
}

// VerifyTokenAt checks token against secret at now.
func VerifyTokenAt(token string, secret []byte, now time.Time) (Payload, error) {
	if len(secret) == 0 {
		return Payload{}, ErrInvalidToken
	}
	parts := strings.Split(token, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Payload{}, ErrInvalidToken
	}

	// Compared on the encoded text so a non-canonical signature encoding fails too.
	expected := sign(parts[0], secret)
	if !hmac.Equal([]byte(expected), []byte(parts[1])) {
		return Payload{}, ErrInvalidToken
	}

	raw, err := b64.DecodeString(parts[0])
	if err != nil {
		return Payload{}, ErrInvalidToken
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, ErrInvalidToken
	}
	if p.Email == "" || p.ExpiresAt < now.UnixMilli() {
		return Payload{}, ErrInvalidToken
	}
	return p, nil
}

func sign(encodedPayload string, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(encodedPayload))
	return b64.EncodeToString(mac.Sum(nil))
}
