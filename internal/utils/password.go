package utils

import (
	"fmt"

	"github.com/SscSPs/geexpress_backend/internal/apperrors"
	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength matches the short PINs couriers are issued at onboarding.
	MinPasswordLength = 4
	// bcrypt ignores input past 72 bytes; refuse it instead of truncating.
	maxPasswordBytes = 72
)

// ValidatePassword checks a new courier or admin password before it is hashed.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", apperrors.ErrValidation, MinPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("%w: password must be at most %d bytes", apperrors.ErrValidation, maxPasswordBytes)
	}
	return nil
}

// HashPassword returns the bcrypt hash stored on the user row.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPasswordHash reports whether password matches the stored hash.
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
