package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes password with bcrypt at cost. The SHA-256 digest is
// hashed instead of the raw bytes so passwords past bcrypt's 72-byte limit
// are accepted and fully significant.
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(digest(password)), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(digest(password))) == nil
}

// HashRefreshToken hashes a refresh token for storage, digested like
// HashPassword.
func HashRefreshToken(token string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(digest(token)), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash refresh token: %w", err)
	}
	return string(hash), nil
}

// CheckRefreshToken reports whether token matches a HashRefreshToken hash.
func CheckRefreshToken(hash, token string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(digest(token))) == nil
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
