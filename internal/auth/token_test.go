package auth

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func TestIssueVerifyRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	token, err := IssueToken("Admin@Example.com", testSecret, now)
	require.NoError(t, err)

	t.Run("before expiry", func(t *testing.T) {
		p, err := VerifyTokenAt(token, testSecret, now.Add(23*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, "admin@example.com", p.Email)
		assert.Equal(t, now.UnixMilli(), p.IssuedAt)
		assert.Equal(t, now.Add(TokenTTL).UnixMilli(), p.ExpiresAt)
	})

	t.Run("exactly at expiry", func(t *testing.T) {
		_, err := VerifyTokenAt(token, testSecret, now.Add(TokenTTL))
		assert.NoError(t, err)
	})

	t.Run("after expiry", func(t *testing.T) {
		_, err := VerifyTokenAt(token, testSecret, now.Add(TokenTTL+time.Millisecond))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := VerifyTokenAt(token, []byte("other"), now)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestVerifyRejectsAnySingleCharacterFlip(t *testing.T) {
	now := time.Now()
	token, err := IssueToken("admin@example.com", testSecret, now)
	require.NoError(t, err)

	for i := 0; i < len(token); i++ {
		if token[i] == '.' {
			continue
		}
		flipped := []byte(token)
		if flipped[i] == 'A' {
			flipped[i] = 'B'
		} else {
			flipped[i] = 'A'
		}
		_, err := VerifyTokenAt(string(flipped), testSecret, now)
		assert.ErrorIs(t, err, ErrInvalidToken, "position %d", i)
	}
}

func TestVerifyMalformed(t *testing.T) {
	now := time.Now()
	validPayload := base64.RawURLEncoding.EncodeToString([]byte(`{"email":"a@b.c","issuedAt":1,"expiresAt":99999999999999}`))
	notJSON := base64.RawURLEncoding.EncodeToString([]byte("not json"))

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"no separator", "abcdef"},
		{"too many separators", "a.b.c"},
		{"empty signature", validPayload + "."},
		{"bad base64 payload", "!!!." + sign("!!!", testSecret)},
		{"bad json payload", notJSON + "." + sign(notJSON, testSecret)},
		{"padded signature", validPayload + "." + sign(validPayload, testSecret) + "="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := VerifyTokenAt(tt.token, testSecret, now)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	t.Run("correctly signed payload verifies", func(t *testing.T) {
		p, err := VerifyTokenAt(validPayload+"."+sign(validPayload, testSecret), testSecret, now)
		require.NoError(t, err)
		assert.Equal(t, "a@b.c", p.Email)
	})
}

func TestTokenUsesURLSafeUnpaddedEncoding(t *testing.T) {
	token, err := IssueToken("admin@example.com", testSecret, time.Now())
	require.NoError(t, err)
	assert.NotContains(t, token, "=")
	assert.NotContains(t, token, "+")
	assert.NotContains(t, token, "/")
	assert.Equal(t, 1, strings.Count(token, "."))
}

func TestIssueTokenRequiresSecret(t *testing.T) {
	_, err := IssueToken("a@b.c", nil, time.Now())
	assert.Error(t, err)
}
