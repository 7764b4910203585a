package auth

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// Password hashing parameters. Stored hashes depend on them.
const (
	PasswordIterations = 10000
	PasswordKeyLen     = 64
)

// HashPassword derives the hex PBKDF2-SHA512 hash of password under salt.
func HashPassword(password, salt string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), PasswordIterations, PasswordKeyLen, sha512.New)
	return hex.EncodeToString(key)
}

// VerifyPassword reports whether password hashes to stored. The comparison is constant time.
func VerifyPassword(password, salt, stored string) bool {
	if stored == "" {
		return false
	}
	got := HashPassword(password, salt)
	return subtle.ConstantTimeCompare([]byte(got), []byte(strings.ToLower(stored))) == 1
}
