package utils

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// refreshTokenBytes gives a 64-character hex token.
const refreshTokenBytes = 32

// NewRefreshToken returns an opaque refresh token for a login session.
// Only its hash is persisted on the user row.
func NewRefreshToken() (string, error) {
	return GenerateSecureRandomString(refreshTokenBytes)
}

// HashRefreshToken is the hex SHA-256 of the raw token.
func HashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// CompareRefreshTokenHash checks a raw token against the stored hash in constant time.
func CompareRefreshTokenHash(token string, storedHash string) bool {
	if storedHash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashRefreshToken(token)), []byte(storedHash)) == 1
}
